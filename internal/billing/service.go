package billing

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/provetcare/clinic-server/internal/document"
	"github.com/provetcare/clinic-server/internal/redisx"
)

var (
	ErrNoItems         = errors.New("prescription requires at least one item")
	ErrInvalidQuantity = errors.New("item quantity must be positive")
	ErrNegativePrice   = errors.New("item unit price must not be negative")
)

// Renderer produces the human-readable prescription document.
type Renderer interface {
	Render(ctx context.Context, p document.Prescription) (string, error)
}

// Service is the prescription/invoice poster. A posting mutates three records
// (prescription, prescription items, invoice plus its items) as one atomic
// unit; the document side effect runs after commit and never rolls it back.
type Service struct {
	repo     Repository
	locker   redisx.Locker
	renderer Renderer
	log      zerolog.Logger

	wg sync.WaitGroup
}

func NewService(repo Repository, locker redisx.Locker, renderer Renderer, log zerolog.Logger) *Service {
	return &Service{
		repo:     repo,
		locker:   locker,
		renderer: renderer,
		log:      log,
	}
}

type IssueInput struct {
	AppointmentID uuid.UUID
	PetID         uuid.UUID
	VetID         uuid.UUID
	Instructions  string
	Items         []LineItem
}

// IssuePrescription records a prescription and posts its billable items to
// the appointment's invoice, creating the invoice on first use. The posting
// runs under a per-appointment lock; the unique constraint on the invoice's
// appointment reference is the backstop when the lock is unavailable, with
// the loser appending to the winner's invoice.
func (s *Service) IssuePrescription(ctx context.Context, in IssueInput) (*PostingResult, error) {
	if len(in.Items) == 0 {
		return nil, ErrNoItems
	}
	for _, item := range in.Items {
		if item.Quantity <= 0 {
			return nil, fmt.Errorf("%w: %q has quantity %d", ErrInvalidQuantity, item.Name, item.Quantity)
		}
		if item.UnitPrice.IsNegative() {
			return nil, fmt.Errorf("%w: %q priced %s", ErrNegativePrice, item.Name, item.UnitPrice)
		}
	}

	var result *PostingResult

	post := func(ctx context.Context) error {
		return s.repo.InTx(ctx, func(tx Tx) error {
			res, err := s.post(ctx, tx, in)
			if err != nil {
				return err
			}
			result = res
			return nil
		})
	}

	err := s.locker.WithAppointmentLock(ctx, in.AppointmentID, post)
	if errors.Is(err, redisx.ErrLockNotAcquired) {
		s.log.Warn().
			Str("appointment_id", in.AppointmentID.String()).
			Msg("posting without appointment lock, relying on invoice constraint")
		err = post(ctx)
	}
	if err != nil {
		return nil, err
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.generateDocument(result.PrescriptionID, in)
	}()

	return result, nil
}

// post is the atomic unit. It runs entirely inside one transaction.
func (s *Service) post(ctx context.Context, tx Tx, in IssueInput) (*PostingResult, error) {
	// The billing party comes from the appointment record, never from the
	// caller, so a mistyped client cannot be billed.
	clientID, err := tx.GetAppointmentClientID(ctx, in.AppointmentID)
	if err != nil {
		return nil, err
	}

	presc := &Prescription{
		ID:            uuid.New(),
		AppointmentID: in.AppointmentID,
		PetID:         in.PetID,
		VetID:         in.VetID,
		Instructions:  in.Instructions,
		Status:        PrescriptionStatusIssued,
	}
	if err := tx.InsertPrescription(ctx, presc); err != nil {
		return nil, err
	}

	inv, err := tx.GetInvoiceForAppointment(ctx, in.AppointmentID)
	if errors.Is(err, ErrInvoiceNotFound) {
		inv, err = tx.CreateInvoice(ctx, in.AppointmentID, clientID)
	}
	if err != nil {
		return nil, err
	}

	basePos, err := tx.NextInvoiceItemPosition(ctx, inv.ID)
	if err != nil {
		return nil, err
	}

	for i, item := range in.Items {
		if err := tx.InsertPrescriptionItem(ctx, &PrescriptionItem{
			ID:              uuid.New(),
			PrescriptionID:  presc.ID,
			InventoryItemID: item.InventoryItemID,
			Quantity:        item.Quantity,
			Dosage:          item.Dosage,
			Duration:        item.Duration,
			Position:        i,
		}); err != nil {
			return nil, err
		}

		invItem := &InvoiceItem{
			ID:          uuid.New(),
			InvoiceID:   inv.ID,
			ItemType:    ItemTypePharmacy,
			ItemID:      item.InventoryItemID,
			Description: item.Name,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			Position:    basePos + i,
		}
		if err := tx.InsertInvoiceItem(ctx, invItem); err != nil {
			return nil, err
		}

		if err := tx.AddToInvoiceTotal(ctx, inv.ID, invItem.LineTotal()); err != nil {
			return nil, err
		}
	}

	return &PostingResult{
		PrescriptionID: presc.ID,
		InvoiceID:      inv.ID,
	}, nil
}

// generateDocument renders and attaches the prescription document. Failures
// here are logged only; the posting has already committed.
func (s *Service) generateDocument(prescriptionID uuid.UUID, in IssueInput) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	snap, err := s.repo.GetDocumentSnapshot(ctx, prescriptionID)
	if err != nil {
		s.log.Error().Err(err).
			Str("prescription_id", prescriptionID.String()).
			Msg("load document snapshot")
		return
	}

	items := make([]document.Item, len(in.Items))
	for i, item := range in.Items {
		items[i] = document.Item{
			Name:     item.Name,
			Quantity: item.Quantity,
			Dosage:   item.Dosage,
			Duration: item.Duration,
		}
	}

	path, err := s.renderer.Render(ctx, document.Prescription{
		PrescriptionID: prescriptionID.String(),
		PetName:        snap.PetName,
		Species:        snap.Species,
		OwnerName:      snap.OwnerName,
		VetName:        snap.VetName,
		Instructions:   snap.Instructions,
		Items:          items,
		IssuedAt:       time.Now(),
	})
	if err != nil {
		s.log.Error().Err(err).
			Str("prescription_id", prescriptionID.String()).
			Msg("render prescription document")
		return
	}

	if err := s.repo.SetDocumentPath(ctx, prescriptionID, path); err != nil {
		s.log.Error().Err(err).
			Str("prescription_id", prescriptionID.String()).
			Str("path", path).
			Msg("attach document path")
	}
}

// Wait blocks until in-flight document generation finishes. Called during
// graceful shutdown.
func (s *Service) Wait() {
	s.wg.Wait()
}

// ListInvoicesForClient returns a client's invoices, newest first.
func (s *Service) ListInvoicesForClient(ctx context.Context, clientID uuid.UUID) ([]Invoice, error) {
	invoices, err := s.repo.ListInvoicesForClient(ctx, clientID)
	if err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	return invoices, nil
}

// GetInvoice returns an invoice with its items in posting order.
func (s *Service) GetInvoice(ctx context.Context, invoiceID uuid.UUID) (*Invoice, []InvoiceItem, error) {
	inv, items, err := s.repo.GetInvoice(ctx, invoiceID)
	if err != nil {
		if errors.Is(err, ErrInvoiceNotFound) {
			return nil, nil, err
		}
		return nil, nil, fmt.Errorf("get invoice: %w", err)
	}
	return inv, items, nil
}
