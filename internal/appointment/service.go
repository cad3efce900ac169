package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/provetcare/clinic-server/internal/notification"
)

// Notifier is the dispatcher contract the lifecycle engine fires events
// through. Delivery is best-effort: the Outcome is metadata, never an error.
type Notifier interface {
	Notify(ctx context.Context, event notification.Event, appt notification.AppointmentInfo, client notification.Recipient, meta notification.Meta) notification.Outcome
}

// InvalidStateError reports a failed precondition on the current status that
// is stricter than the generic transition table check.
type InvalidStateError struct {
	Current Status
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("appointment is in state %q, expected %q", e.Current, StatusRequested)
}

func (e *InvalidStateError) Is(target error) bool {
	return target == ErrInvalidState
}

type Service struct {
	repo     Repository
	notifier Notifier
	log      zerolog.Logger
}

func NewService(repo Repository, notifier Notifier, log zerolog.Logger) *Service {
	return &Service{
		repo:     repo,
		notifier: notifier,
		log:      log,
	}
}

type RequestInput struct {
	PetID       uuid.UUID
	ClientID    uuid.UUID
	Date        time.Time
	Time        string
	ServiceType string
	Notes       string
}

type FollowUpInput struct {
	PetID       uuid.UUID
	ClientID    uuid.UUID
	StaffID     uuid.UUID
	Date        time.Time
	Time        string
	ServiceType string
	Notes       string
}

// Result pairs the mutated appointment with the notification outcome so the
// caller can distinguish "it worked" from "it worked but nobody was emailed".
type Result struct {
	Appointment  *Appointment
	NextStep     string
	Notification notification.Outcome
}

// RequestAppointment creates a client-requested appointment in status
// "requested". The caller must own the pet.
func (s *Service) RequestAppointment(ctx context.Context, in RequestInput) (*Result, error) {
	pet, err := s.repo.GetPetByID(ctx, in.PetID)
	if err != nil {
		if errors.Is(err, ErrPetNotFound) {
			// Do not reveal whether the pet exists.
			return nil, ErrForbidden
		}
		return nil, fmt.Errorf("load pet: %w", err)
	}
	if pet.OwnerID != in.ClientID {
		return nil, ErrForbidden
	}

	appt, err := s.repo.CreateAppointment(ctx, &Appointment{
		PetID:       in.PetID,
		ClientID:    in.ClientID,
		Date:        in.Date,
		Time:        in.Time,
		ServiceType: in.ServiceType,
		Notes:       in.Notes,
		Status:      StatusRequested,
	})
	if err != nil {
		return nil, fmt.Errorf("create appointment: %w", err)
	}

	outcome := s.fireEvent(ctx, notification.EventAppointmentRequested, appt, notification.Meta{})

	return &Result{
		Appointment:  appt,
		NextStep:     "Un veterinario revisará tu solicitud pronto",
		Notification: outcome,
	}, nil
}

// CreateFollowUp creates a staff-scheduled appointment directly in status
// "confirmed", bypassing review. Both references must exist.
func (s *Service) CreateFollowUp(ctx context.Context, in FollowUpInput) (*Result, error) {
	if _, err := s.repo.GetUserByID(ctx, in.ClientID); err != nil {
		if errors.Is(err, ErrClientNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load client: %w", err)
	}

	if _, err := s.repo.GetPetByID(ctx, in.PetID); err != nil {
		if errors.Is(err, ErrPetNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load pet: %w", err)
	}

	staffID := in.StaffID
	appt, err := s.repo.CreateAppointment(ctx, &Appointment{
		PetID:          in.PetID,
		ClientID:       in.ClientID,
		Date:           in.Date,
		Time:           in.Time,
		ServiceType:    in.ServiceType,
		Notes:          in.Notes,
		Status:         StatusConfirmed,
		CreatedByAdmin: &staffID,
	})
	if err != nil {
		return nil, fmt.Errorf("create follow-up appointment: %w", err)
	}

	var vetName string
	if vet, err := s.repo.GetUserByID(ctx, in.StaffID); err != nil {
		s.log.Warn().Err(err).Str("staff_id", in.StaffID.String()).Msg("load vet for notification")
	} else {
		vetName = vet.FullName
	}

	outcome := s.fireEvent(ctx, notification.EventAppointmentConfirmedFollowUp, appt,
		notification.Meta{VetName: vetName})

	return &Result{
		Appointment:  appt,
		Notification: outcome,
	}, nil
}

// MarkUnderReview moves a requested appointment to under_review. The current
// status must be exactly "requested"; this is stricter than the table check.
func (s *Service) MarkUnderReview(ctx context.Context, id uuid.UUID) (*Result, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if appt.Status != StatusRequested {
		return nil, &InvalidStateError{Current: appt.Status}
	}

	updated, err := s.repo.UpdateStatus(ctx, id, StatusRequested, StatusUnderReview, nil)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, s.resolveCASMiss(ctx, id, func(current Status) error {
				return &InvalidStateError{Current: current}
			})
		}
		return nil, fmt.Errorf("mark under review: %w", err)
	}

	outcome := s.fireEvent(ctx, notification.EventAppointmentUnderReview, updated, notification.Meta{})

	return &Result{
		Appointment:  updated,
		Notification: outcome,
	}, nil
}

// ChangeStatus applies a staff transition. The transition table check is pure
// and runs before any persistence; the write itself is a compare-and-swap so
// racing staff cannot both apply transitions from a stale status.
func (s *Service) ChangeStatus(ctx context.Context, id uuid.UUID, newStatus Status, adminNotes *string) (*Result, error) {
	if !ValidStatus(newStatus) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, newStatus)
	}

	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if !CanTransition(appt.Status, newStatus) {
		return nil, &InvalidTransitionError{
			Current:   appt.Status,
			Requested: newStatus,
			Allowed:   AllowedTransitions(appt.Status),
		}
	}

	updated, err := s.repo.UpdateStatus(ctx, id, appt.Status, newStatus, adminNotes)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, s.resolveCASMiss(ctx, id, func(current Status) error {
				return &InvalidTransitionError{
					Current:   current,
					Requested: newStatus,
					Allowed:   AllowedTransitions(current),
				}
			})
		}
		return nil, fmt.Errorf("update status: %w", err)
	}

	var outcome notification.Outcome
	if event, ok := eventForStatus(newStatus, updated.StaffInitiated()); ok {
		meta := notification.Meta{}
		if adminNotes != nil {
			meta.Reason = *adminNotes
		}
		outcome = s.fireEvent(ctx, event, updated, meta)
	}

	return &Result{
		Appointment:  updated,
		Notification: outcome,
	}, nil
}

// ListAppointments returns appointments visible to the requester. Clients see
// only their own; staff see all. Filters are AND-combined exact matches.
func (s *Service) ListAppointments(ctx context.Context, filter ListFilter, requesterRole Role, requesterID uuid.UUID) ([]Detail, error) {
	if !requesterRole.Staff() {
		id := requesterID
		filter.ClientID = &id
	}

	details, err := s.repo.ListAppointments(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	return details, nil
}

// eventForStatus is the side table mapping a persisted transition to the
// notification it triggers. Staff-initiated appointments were already
// notified at creation, so their confirmation fires nothing further.
func eventForStatus(newStatus Status, staffInitiated bool) (notification.Event, bool) {
	switch Canonical(newStatus) {
	case StatusConfirmed:
		if staffInitiated {
			return notification.EventUnknown, false
		}
		return notification.EventAppointmentConfirmedClient, true
	case StatusRejected:
		return notification.EventAppointmentRejected, true
	default:
		return notification.EventUnknown, false
	}
}

// resolveCASMiss re-reads after a compare-and-swap miss. If the row is truly
// gone the not-found error stands; otherwise the fresh status (reflecting the
// concurrent writer's update) is handed to mkErr.
func (s *Service) resolveCASMiss(ctx context.Context, id uuid.UUID, mkErr func(current Status) error) error {
	current, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return err
	}
	return mkErr(current.Status)
}

// fireEvent looks up the client and dispatches the notification. Every
// failure mode here is folded into the returned Outcome; the status mutation
// has already committed and is never rolled back for a missed email.
func (s *Service) fireEvent(ctx context.Context, event notification.Event, appt *Appointment, meta notification.Meta) notification.Outcome {
	client, err := s.repo.GetUserByID(ctx, appt.ClientID)
	if err != nil {
		s.log.Error().Err(err).
			Str("appointment_id", appt.ID.String()).
			Stringer("event", event).
			Msg("load client for notification")
		return notification.Outcome{Attempted: true, Error: "client lookup failed: " + err.Error()}
	}

	return s.notifier.Notify(ctx, event,
		notification.AppointmentInfo{
			Date:        appt.Date,
			Time:        appt.Time,
			ServiceType: appt.ServiceType,
		},
		notification.Recipient{
			Name:  client.FullName,
			Email: client.Email,
		},
		meta,
	)
}
