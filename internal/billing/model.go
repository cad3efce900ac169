package billing

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	PrescriptionStatusIssued = "issued"
	InvoiceStatusDraft       = "draft"

	ItemTypePharmacy = "pharmacy"
	ItemTypeService  = "service"
)

type Prescription struct {
	ID            uuid.UUID
	AppointmentID uuid.UUID
	PetID         uuid.UUID
	VetID         uuid.UUID
	Instructions  string
	Status        string
	// DocumentPath is attached asynchronously after the posting commits.
	DocumentPath *string
	CreatedAt    time.Time
}

type PrescriptionItem struct {
	ID              uuid.UUID
	PrescriptionID  uuid.UUID
	InventoryItemID uuid.UUID
	Quantity        int
	Dosage          string
	Duration        string
	Position        int
}

type Invoice struct {
	ID            uuid.UUID
	AppointmentID uuid.UUID
	ClientID      uuid.UUID
	TotalAmount   decimal.Decimal
	Status        string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type InvoiceItem struct {
	ID          uuid.UUID
	InvoiceID   uuid.UUID
	ItemType    string
	ItemID      uuid.UUID
	Description string
	Quantity    int
	UnitPrice   decimal.Decimal
	Position    int
}

// LineTotal is quantity times the unit price snapshotted at posting time.
func (i InvoiceItem) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// LineItem is one prescribed catalog item as submitted by the vet. Name and
// UnitPrice are snapshots: later catalog price changes must not retroactively
// change historical invoices.
type LineItem struct {
	InventoryItemID uuid.UUID
	Name            string
	Quantity        int
	Dosage          string
	Duration        string
	UnitPrice       decimal.Decimal
}

// PostingResult identifies the records a successful posting produced.
type PostingResult struct {
	PrescriptionID uuid.UUID
	InvoiceID      uuid.UUID
}
