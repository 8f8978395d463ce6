package domain

import "errors"

var (
	// ErrNotFound is returned when no contribution exists for an id.
	ErrNotFound = errors.New("not found")
	// ErrInvalidState is returned when a moderation action targets an item
	// that is not PENDING.
	ErrInvalidState = errors.New("invalid contribution state")
	// ErrStatusConflict is returned when the optimistic status guard fails:
	// the stored status no longer equals the expected prior status.
	ErrStatusConflict = errors.New("contribution status changed concurrently")
	// ErrInvalidInput is returned by intake when a submission is missing
	// required fields before it is worth persisting.
	ErrInvalidInput = errors.New("invalid input")
	// ErrDuplicateRoute is returned by the canonical store when a write
	// collides with an existing route; the store's uniqueness constraint is
	// the last line of defense against concurrent approvals.
	ErrDuplicateRoute = errors.New("route already exists")
)
