package appointment

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusRequested   Status = "requested"
	StatusUnderReview Status = "under_review"
	StatusConfirmed   Status = "confirmed"
	StatusCompleted   Status = "completed"
	StatusRejected    Status = "rejected"
	StatusCancelled   Status = "cancelled"

	// Legacy statuses still present on old rows. They feed the same
	// transition table; see transitions.go.
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
)

type Role string

const (
	RoleClient Role = "client"
	RoleAdmin  Role = "admin"
	RoleVet    Role = "vet"
)

// Staff reports whether the role may triage appointments and issue prescriptions.
func (r Role) Staff() bool {
	return r == RoleAdmin || r == RoleVet
}

type User struct {
	ID        uuid.UUID
	FullName  string
	Email     string
	Phone     *string
	Role      Role
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Pet struct {
	ID        uuid.UUID
	OwnerID   uuid.UUID
	Name      string
	Species   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Appointment struct {
	ID          uuid.UUID
	PetID       uuid.UUID
	ClientID    uuid.UUID
	Date        time.Time
	Time        string
	ServiceType string
	Notes       string
	AdminNotes  string
	Status      Status
	// CreatedByAdmin is set when clinic staff created the appointment
	// directly (follow-up flow). It changes which notifications fire.
	CreatedByAdmin *uuid.UUID
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// StaffInitiated reports whether the appointment was created by staff rather
// than requested by the client.
func (a *Appointment) StaffInitiated() bool {
	return a.CreatedByAdmin != nil
}

// Detail is an appointment joined with the client and pet it belongs to,
// as listed on the staff dashboard.
type Detail struct {
	Appointment
	ClientName  string
	ClientEmail string
	ClientPhone *string
	PetName     string
	PetSpecies  string
}

// ListFilter narrows ListAppointments. Nil fields are not applied; set fields
// are exact-match predicates combined with AND.
type ListFilter struct {
	Status   *Status
	Date     *time.Time
	ClientID *uuid.UUID
}
