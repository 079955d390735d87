package tracker

import (
	"github.com/rs/zerolog"

	"trackersync/pkg/users"
)

// Guard offers reusable suppression predicates to trackers. Nothing calls them
// automatically; a tracker opts in from its Suppress hook.
type Guard struct {
	tracker string
	log     zerolog.Logger
}

// NewGuard returns a Guard that logs skip reasons on behalf of the named tracker.
func NewGuard(tracker string, log zerolog.Logger) Guard {
	return Guard{tracker: tracker, log: log}
}

// PreventForNonRegularUser reports true for managers and account managers.
func (g Guard) PreventForNonRegularUser(user users.User) bool {
	if user.IsRegularUser() {
		return false
	}
	g.log.Info().
		Str("tracker", g.tracker).
		Int64("user_id", user.UserID()).
		Str("user_type", string(user.Type())).
		Msgf("%s skipping dispatching for non-regular user %d", g.tracker, user.UserID())
	return true
}

// PreventForManagedRegularUser reports true for regular users currently under
// account management.
func (g Guard) PreventForManagedRegularUser(user users.User) bool {
	if !user.IsRegularUser() || !user.IsManaged() {
		return false
	}
	g.log.Info().
		Str("tracker", g.tracker).
		Int64("user_id", user.UserID()).
		Msgf("%s skipping dispatching for managed user %d", g.tracker, user.UserID())
	return true
}
