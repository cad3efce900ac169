package appointment

// validTransitions is the sole source of truth for allowed status changes.
// Terminal statuses map to an empty slice: no outgoing edges, including
// self-loops.
var validTransitions = map[Status][]Status{
	// Client flow
	StatusRequested:   {StatusUnderReview, StatusRejected, StatusCancelled},
	StatusUnderReview: {StatusConfirmed, StatusRejected, StatusCancelled},

	// Vet flow + shared states
	StatusConfirmed: {StatusCompleted, StatusCancelled},

	// Legacy support
	StatusPending:  {StatusApproved, StatusRejected, StatusCancelled},
	StatusApproved: {StatusCompleted, StatusCancelled},

	// Final states
	StatusRejected:  {},
	StatusCompleted: {},
	StatusCancelled: {},
}

// ValidStatus reports whether s is a member of the closed status set.
func ValidStatus(s Status) bool {
	_, ok := validTransitions[s]
	return ok
}

// AllowedTransitions returns the legal destinations from the given status.
// The returned slice is a copy and may be retained by callers.
func AllowedTransitions(from Status) []Status {
	allowed, ok := validTransitions[from]
	if !ok {
		return nil
	}
	out := make([]Status, len(allowed))
	copy(out, allowed)
	return out
}

// CanTransition reports whether the table permits from -> to. The check is
// pure: it never touches storage.
func CanTransition(from, to Status) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Terminal reports whether the status has no outgoing edges.
func Terminal(s Status) bool {
	allowed, ok := validTransitions[s]
	return ok && len(allowed) == 0
}

// Canonical maps legacy statuses onto the current vocabulary. Stored rows keep
// their legacy value; only interpretation (e.g. which notification an update
// triggers) goes through this mapping.
func Canonical(s Status) Status {
	switch s {
	case StatusPending:
		return StatusRequested
	case StatusApproved:
		return StatusConfirmed
	default:
		return s
	}
}
