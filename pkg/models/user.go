package models

import "fmt"

// UserType tags which kind of account an event was raised for.
type UserType string

const (
	UserTypeRegular        UserType = "regular_user"
	UserTypeManager        UserType = "manager"
	UserTypeAccountManager UserType = "account_manager"
)

// Valid reports whether t is one of the known user types.
func (t UserType) Valid() bool {
	switch t {
	case UserTypeRegular, UserTypeManager, UserTypeAccountManager:
		return true
	}
	return false
}

// ParseUserType converts a raw tag into a UserType.
func ParseUserType(s string) (UserType, error) {
	t := UserType(s)
	if !t.Valid() {
		return "", fmt.Errorf("unknown user type %q", s)
	}
	return t, nil
}

// EventTrackUser is the lightweight user reference attached to a tracked event.
type EventTrackUser struct {
	ID        int64    `json:"id" binding:"required,gt=0" example:"42"`
	FirstName string   `json:"firstname" example:"Jane"`
	LastName  string   `json:"lastname" example:"Doe"`
	Type      UserType `json:"type" binding:"required,oneof=regular_user manager account_manager" example:"regular_user"`
}

// FullName joins the display name fields.
func (u EventTrackUser) FullName() string {
	switch {
	case u.FirstName == "":
		return u.LastName
	case u.LastName == "":
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}
