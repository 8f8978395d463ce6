package domain

// Status is the contribution lifecycle state. PENDING is the only initial
// state. PROCESSING marks an item as in flight inside a single run and is
// never persisted; a crash leaves the item PENDING so the next run retries
// it.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusApproved   Status = "APPROVED"
	StatusRejected   Status = "REJECTED"
	StatusDuplicate  Status = "DUPLICATE"
	StatusFailed     Status = "FAILED"
)

// ParseStatus maps a stored string back onto the closed status set.
func ParseStatus(s string) (Status, bool) {
	switch Status(s) {
	case StatusPending, StatusProcessing, StatusApproved, StatusRejected, StatusDuplicate, StatusFailed:
		return Status(s), true
	}
	return "", false
}

// Terminal reports whether the status ends the lifecycle.
func (s Status) Terminal() bool {
	switch s {
	case StatusApproved, StatusRejected, StatusDuplicate, StatusFailed:
		return true
	case StatusPending, StatusProcessing:
		return false
	}
	return false
}

// CanTransitionTo reports whether the lifecycle permits moving from s to
// next. Only PENDING items move; nothing ever moves back to PENDING, and
// PROCESSING is not a persistable target.
func (s Status) CanTransitionTo(next Status) bool {
	if s != StatusPending {
		return false
	}
	switch next {
	case StatusApproved, StatusRejected, StatusDuplicate, StatusFailed:
		return true
	case StatusPending, StatusProcessing:
		return false
	}
	return false
}
