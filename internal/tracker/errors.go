package tracker

import (
	"fmt"

	"trackersync/pkg/models"
)

// UserNotFoundError is returned when the user reference cannot be resolved.
type UserNotFoundError struct {
	Tracker  string
	UserID   int64
	UserType models.UserType
}

func (e *UserNotFoundError) Error() string {
	return fmt.Sprintf("tracker %s: cannot find %s user with id %d", e.Tracker, e.UserType, e.UserID)
}

// SuppressionHookError wraps a failure of a tracker's Suppress hook.
type SuppressionHookError struct {
	Tracker string
	UserID  int64
	Err     error
}

func (e *SuppressionHookError) Error() string {
	return fmt.Sprintf("tracker %s: suppression check for user %d: %v", e.Tracker, e.UserID, e.Err)
}

func (e *SuppressionHookError) Unwrap() error { return e.Err }

// DeliveryError wraps a failure of a tracker's Deliver call.
type DeliveryError struct {
	Tracker string
	UserID  int64
	Err     error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("tracker %s: delivery for user %d: %v", e.Tracker, e.UserID, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// PanicError is a recovered panic from lookup, suppression or delivery code.
type PanicError struct {
	Value any
	Stack string
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}
