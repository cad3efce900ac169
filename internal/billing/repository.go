package billing

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrAppointmentNotFound  = errors.New("appointment not found")
	ErrInvoiceNotFound      = errors.New("invoice not found")
	ErrPrescriptionNotFound = errors.New("prescription not found")
)

// Tx is the set of row mutations available inside one atomic posting unit.
// Everything executed through a Tx either commits together or not at all.
type Tx interface {
	// GetAppointmentClientID resolves the billing party from the
	// appointment record. ErrAppointmentNotFound if the row is missing.
	GetAppointmentClientID(ctx context.Context, appointmentID uuid.UUID) (uuid.UUID, error)

	InsertPrescription(ctx context.Context, p *Prescription) error
	InsertPrescriptionItem(ctx context.Context, item *PrescriptionItem) error

	// GetInvoiceForAppointment returns the appointment's invoice with its
	// row locked for the remainder of the unit. ErrInvoiceNotFound if none
	// exists yet.
	GetInvoiceForAppointment(ctx context.Context, appointmentID uuid.UUID) (*Invoice, error)

	// CreateInvoice inserts a draft invoice. If a concurrent posting won
	// the race on the appointment's unique constraint, the now-existing
	// invoice is returned (locked) instead.
	CreateInvoice(ctx context.Context, appointmentID, clientID uuid.UUID) (*Invoice, error)

	// NextInvoiceItemPosition returns the position for the next appended
	// item, so items stay ordered across postings to the same invoice.
	NextInvoiceItemPosition(ctx context.Context, invoiceID uuid.UUID) (int, error)

	InsertInvoiceItem(ctx context.Context, item *InvoiceItem) error
	AddToInvoiceTotal(ctx context.Context, invoiceID uuid.UUID, amount decimal.Decimal) error
}

// DocumentSnapshot is the data frozen at posting time for the rendered
// prescription document.
type DocumentSnapshot struct {
	PrescriptionID uuid.UUID
	PetName        string
	Species        string
	OwnerName      string
	VetName        string
	Instructions   string
	Items          []LineItem
}

// Repository contains all DB interactions needed by the poster.
type Repository interface {
	// InTx runs fn inside a single transaction with at least
	// read-committed isolation, rolling back if fn errors.
	InTx(ctx context.Context, fn func(tx Tx) error) error

	// Document side effect, outside the atomic unit.
	GetDocumentSnapshot(ctx context.Context, prescriptionID uuid.UUID) (*DocumentSnapshot, error)
	SetDocumentPath(ctx context.Context, prescriptionID uuid.UUID, path string) error

	// Billing reads.
	ListInvoicesForClient(ctx context.Context, clientID uuid.UUID) ([]Invoice, error)
	GetInvoice(ctx context.Context, invoiceID uuid.UUID) (*Invoice, []InvoiceItem, error)
}
