// Package users holds the resolved user entities a tracker delivers events for,
// and the lookup port used to load them.
package users

import (
	"context"
	"errors"
	"time"

	"trackersync/pkg/models"
)

// ErrNotFound is returned by a Lookup when no user exists for the given id.
var ErrNotFound = errors.New("users: user not found")

// User is the capability set shared by every resolved user variant.
// The variant set is closed: *RegularUser, *Manager and *AccountManager.
type User interface {
	UserID() int64
	Type() models.UserType
	Details() Profile
	IsRegularUser() bool
	IsManaged() bool
	IsTestUser() bool
}

// Lookup loads fully typed users by id.
type Lookup interface {
	FindAccountManager(ctx context.Context, id int64) (*AccountManager, error)
	FindManager(ctx context.Context, id int64) (*Manager, error)
	// FindRegularUserWithManagers returns the user with its manager links loaded.
	FindRegularUserWithManagers(ctx context.Context, id int64) (*RegularUser, error)
}

// Profile holds the fields common to all user variants.
type Profile struct {
	ID          int64  `json:"id"`
	FirstName   string `json:"firstname"`
	LastName    string `json:"lastname"`
	Email       string `json:"email"`
	TestAccount bool   `json:"is_test"`
}

// UserID returns the numeric identifier.
func (p Profile) UserID() int64 { return p.ID }

// Details returns a copy of the profile.
func (p Profile) Details() Profile { return p }

// IsTestUser reports whether the account is flagged as internal or QA.
func (p Profile) IsTestUser() bool { return p.TestAccount }

// FullName joins first and last name.
func (p Profile) FullName() string {
	return models.EventTrackUser{FirstName: p.FirstName, LastName: p.LastName}.FullName()
}

// ManagerLink associates a regular user with the account manager overseeing it.
type ManagerLink struct {
	AccountManagerID int64      `json:"account_manager_id"`
	StartedAt        time.Time  `json:"started_at"`
	EndedAt          *time.Time `json:"ended_at,omitempty"`
}

// Active reports whether the link is still in effect.
func (l ManagerLink) Active() bool { return l.EndedAt == nil }

// RegularUser is an end-user account.
type RegularUser struct {
	Profile
	Managers []ManagerLink `json:"managers"`
}

func (u *RegularUser) Type() models.UserType { return models.UserTypeRegular }
func (u *RegularUser) IsRegularUser() bool   { return true }

// IsManaged reports whether an account manager currently oversees the user.
func (u *RegularUser) IsManaged() bool {
	for _, m := range u.Managers {
		if m.Active() {
			return true
		}
	}
	return false
}

// Manager is a customer-side manager account.
type Manager struct {
	Profile
}

func (u *Manager) Type() models.UserType { return models.UserTypeManager }
func (u *Manager) IsRegularUser() bool   { return false }
func (u *Manager) IsManaged() bool       { return false }

// AccountManager is an internal staff account that manages regular users.
type AccountManager struct {
	Profile
}

func (u *AccountManager) Type() models.UserType { return models.UserTypeAccountManager }
func (u *AccountManager) IsRegularUser() bool   { return false }
func (u *AccountManager) IsManaged() bool       { return false }

var (
	_ User = (*RegularUser)(nil)
	_ User = (*Manager)(nil)
	_ User = (*AccountManager)(nil)
)
