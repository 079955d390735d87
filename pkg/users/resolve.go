package users

import (
	"context"
	"errors"

	"trackersync/pkg/models"
)

// ErrUnknownType is returned by Resolve for a type tag outside the known set.
var ErrUnknownType = errors.New("users: unknown user type")

// Resolve loads the user identified by (t, id) through exactly one finder of l.
// A finder returning nil, or a user whose id differs, yields ErrNotFound.
func Resolve(ctx context.Context, l Lookup, t models.UserType, id int64) (User, error) {
	var (
		user User
		err  error
	)
	switch t {
	case models.UserTypeAccountManager:
		var u *AccountManager
		if u, err = l.FindAccountManager(ctx, id); u != nil {
			user = u
		}
	case models.UserTypeManager:
		var u *Manager
		if u, err = l.FindManager(ctx, id); u != nil {
			user = u
		}
	case models.UserTypeRegular:
		var u *RegularUser
		if u, err = l.FindRegularUserWithManagers(ctx, id); u != nil {
			user = u
		}
	default:
		return nil, ErrUnknownType
	}

	if err != nil {
		return nil, err
	}
	if user == nil || user.UserID() != id {
		return nil, ErrNotFound
	}
	return user, nil
}
