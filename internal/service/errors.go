package service

import (
	"errors"
	"time"
)

// Common service errors
var (
	// ErrNotFound is returned when a resource is not found
	ErrNotFound = errors.New("resource not found")

	// ErrInvalidInput is returned when input validation fails
	ErrInvalidInput = errors.New("invalid input")

	// ErrConflict is returned when there's a conflict (e.g., duplicate)
	ErrConflict = errors.New("resource conflict")

	// ErrForbidden is returned when a user may not act on a resource
	ErrForbidden = errors.New("forbidden")

	// ErrUserContextRequired is returned when user context is not available
	ErrUserContextRequired = errors.New("user context required")

	// ErrInvalidCredentials is returned for any failed login
	ErrInvalidCredentials = errors.New("authentication failed")

	// ErrEmailNotAllowed is returned when an email is outside the campus domain for the role
	ErrEmailNotAllowed = errors.New("email not allowed for role")

	// ErrEmailTaken is returned when registering an email that already exists
	ErrEmailTaken = errors.New("email already registered")

	// ErrItemNotFound is returned when a found item does not exist
	ErrItemNotFound = errors.New("item not found")

	// ErrNotFounder is returned when someone other than the founder manages an item
	ErrNotFounder = errors.New("only the founder can do this")

	// ErrItemHandedOver is returned when an item was already returned to its owner
	ErrItemHandedOver = errors.New("item has already been handed over")

	// ErrOwnItem is returned when a founder tries to claim their own report
	ErrOwnItem = errors.New("cannot claim your own report")

	// ErrAnswerCount is returned when the answers do not line up with the questions
	ErrAnswerCount = errors.New("answer count does not match question count")

	// ErrNotVerified is returned when a user who has not proven ownership tries to chat
	ErrNotVerified = errors.New("ownership not verified")

	// ErrInvalidImage is returned when the uploaded photo cannot be processed
	ErrInvalidImage = errors.New("invalid image")

	// ErrNotificationNotFound is returned when a notification is not found
	ErrNotificationNotFound = errors.New("notification not found")

	// ErrNotificationNotOwned is returned when trying to access a notification owned by another user
	ErrNotificationNotOwned = errors.New("notification does not belong to current user")
)

// ErrClaimLocked is a claim attempt rejected because the claimant used up their attempts
var ErrClaimLocked = errors.New("too many failed attempts")

// LockedError carries when a locked-out claimant may try again
type LockedError struct {
	Until time.Time
}

func (e *LockedError) Error() string {
	return ErrClaimLocked.Error()
}

func (e *LockedError) Is(target error) bool {
	return target == ErrClaimLocked
}

// RetryAfter returns the remaining lockout relative to now, at least one second
func (e *LockedError) RetryAfter(now time.Time) time.Duration {
	d := e.Until.Sub(now)
	if d < time.Second {
		return time.Second
	}
	return d
}
