package notification

import "time"

// Event identifies an appointment lifecycle notification. The set is closed:
// Dispatcher.Notify switches over every member, so adding an event means
// adding a template and a case, checked at review time rather than falling
// through a stringly default.
type Event int

const (
	EventUnknown Event = iota
	EventAppointmentRequested
	EventAppointmentUnderReview
	EventAppointmentConfirmedClient
	EventAppointmentConfirmedFollowUp
	EventAppointmentRejected
)

func (e Event) String() string {
	switch e {
	case EventAppointmentRequested:
		return "APPOINTMENT_REQUESTED"
	case EventAppointmentUnderReview:
		return "APPOINTMENT_UNDER_REVIEW"
	case EventAppointmentConfirmedClient:
		return "APPOINTMENT_CONFIRMED_CLIENT"
	case EventAppointmentConfirmedFollowUp:
		return "APPOINTMENT_CONFIRMED_FOLLOWUP"
	case EventAppointmentRejected:
		return "APPOINTMENT_REJECTED"
	default:
		return "UNKNOWN"
	}
}

// AppointmentInfo is the slice of an appointment the templates need. The
// dispatcher deliberately does not depend on the appointment package.
type AppointmentInfo struct {
	Date        time.Time
	Time        string
	ServiceType string
}

// Recipient is the client being notified.
type Recipient struct {
	Name  string
	Email string
}

// Meta carries per-event extras: the vet's display name for follow-up
// confirmations, the rejection reason for rejections.
type Meta struct {
	VetName string
	Reason  string
}

// Outcome is what a best-effort notification attempt produced. It is returned
// as metadata alongside the primary result and never as the operation's error.
type Outcome struct {
	Attempted bool
	Delivered bool
	Simulated bool
	Error     string
}
