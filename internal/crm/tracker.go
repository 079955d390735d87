// Package crm syncs track events for regular users into the CRM log.
package crm

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"

	"trackersync/internal/tracker"
	"trackersync/pkg/models"
	"trackersync/pkg/postgres"
	"trackersync/pkg/users"
)

// Name identifies the CRM tracker in logs, metrics and queue names.
const Name = "crm"

// Tracker writes one crm_sync_log row per event and user.
type Tracker struct {
	db   *sql.DB
	keys *postgres.IdempotencyStore
	log  zerolog.Logger
}

// NewTracker creates a CRM tracker.
func NewTracker(db *sql.DB, log zerolog.Logger) *Tracker {
	return &Tracker{
		db:   db,
		keys: postgres.NewIdempotencyStore(db, Name),
		log:  log.With().Str("component", "crm").Logger(),
	}
}

func (t *Tracker) Name() string { return Name }

// Suppress skips managers and account managers; the CRM only tracks end users.
func (t *Tracker) Suppress(_ context.Context, g tracker.Guard, user users.User) (bool, error) {
	return g.PreventForNonRegularUser(user), nil
}

// Deliver records the event unless it was already synced.
func (t *Tracker) Deliver(ctx context.Context, user users.User, event models.TrackEvent) error {
	seen, err := t.keys.Seen(ctx, event.EventID)
	if err != nil {
		return err
	}
	if seen {
		t.log.Info().
			Str("event_id", event.EventID).
			Str("correlation_id", event.CorrelationID).
			Msg("duplicate event ignored")
		return nil
	}

	p := user.Details()
	_, err = t.db.ExecContext(ctx,
		`INSERT INTO crm_sync_log (event_id, correlation_id, event_name, user_id, user_type, user_email, user_name)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		event.EventID, event.CorrelationID, event.Name,
		p.ID, string(user.Type()), p.Email, p.FullName(),
	)
	if err != nil {
		return fmt.Errorf("write crm sync log: %w", err)
	}

	if err := t.keys.Mark(ctx, event.EventID); err != nil {
		t.log.Warn().Err(err).Str("event_id", event.EventID).Msg("failed to record idempotency key")
	}

	t.log.Info().
		Str("event_id", event.EventID).
		Str("event", event.Name).
		Int64("user_id", p.ID).
		Str("correlation_id", event.CorrelationID).
		Msg("synced")
	return nil
}
