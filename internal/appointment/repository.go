package appointment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrClientNotFound      = errors.New("client not found")
	ErrPetNotFound         = errors.New("pet not found")

	// ErrForbidden means the acting client does not own the pet (or lacks
	// the role for a staff-only operation).
	ErrForbidden = errors.New("not allowed to act on this pet")

	// ErrInvalidStatus means the requested target is not in the closed
	// status set at all.
	ErrInvalidStatus = errors.New("invalid status")

	// ErrInvalidState means a stricter precondition on the current status
	// failed (e.g. mark-under-review requires exactly "requested").
	ErrInvalidState = errors.New("appointment is not in the required state")
)

// InvalidTransitionError reports a move the transition table forbids, with
// enough detail for the caller to act.
type InvalidTransitionError struct {
	Current   Status
	Requested Status
	Allowed   []Status
}

func (e *InvalidTransitionError) Error() string {
	allowed := make([]string, len(e.Allowed))
	for i, s := range e.Allowed {
		allowed[i] = string(s)
	}
	return fmt.Sprintf("cannot transition from %q to %q (allowed: %s)",
		e.Current, e.Requested, strings.Join(allowed, ", "))
}

// Repository contains all DB interactions needed by the lifecycle engine.
type Repository interface {
	GetUserByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetPetByID(ctx context.Context, id uuid.UUID) (*Pet, error)

	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)

	CreateAppointment(ctx context.Context, appt *Appointment) (*Appointment, error)

	// UpdateStatus performs a compare-and-swap: the row is updated only if
	// its status still equals from. A CAS miss (row exists but status moved)
	// and a missing row both surface as ErrAppointmentNotFound; callers
	// re-read to tell them apart.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status, adminNotes *string) (*Appointment, error)

	ListAppointments(ctx context.Context, filter ListFilter) ([]Detail, error)
}
