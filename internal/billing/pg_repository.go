package billing

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

func (r *PgRepository) InTx(ctx context.Context, fn func(tx Tx) error) error {
	return pgx.BeginTxFunc(ctx, r.pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
		return fn(&pgTx{tx: tx})
	})
}

type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) GetAppointmentClientID(ctx context.Context, appointmentID uuid.UUID) (uuid.UUID, error) {
	var clientID uuid.UUID
	err := t.tx.QueryRow(ctx, `
		SELECT client_id FROM appointments WHERE id = $1
	`, appointmentID).Scan(&clientID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, ErrAppointmentNotFound
		}
		return uuid.Nil, err
	}
	return clientID, nil
}

func (t *pgTx) InsertPrescription(ctx context.Context, p *Prescription) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO prescriptions (id, appointment_id, pet_id, vet_id, instructions, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
	`, p.ID, p.AppointmentID, p.PetID, p.VetID, p.Instructions, p.Status)
	if err != nil {
		return fmt.Errorf("insert prescription: %w", err)
	}
	return nil
}

func (t *pgTx) InsertPrescriptionItem(ctx context.Context, item *PrescriptionItem) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO prescription_items (id, prescription_id, inventory_item_id, quantity, dosage, duration, position)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, item.ID, item.PrescriptionID, item.InventoryItemID, item.Quantity, item.Dosage, item.Duration, item.Position)
	if err != nil {
		return fmt.Errorf("insert prescription item: %w", err)
	}
	return nil
}

const invoiceColumns = `id, appointment_id, client_id, total_amount, status, created_at, updated_at`

func scanInvoice(row pgx.Row) (*Invoice, error) {
	var inv Invoice
	err := row.Scan(
		&inv.ID,
		&inv.AppointmentID,
		&inv.ClientID,
		&inv.TotalAmount,
		&inv.Status,
		&inv.CreatedAt,
		&inv.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvoiceNotFound
		}
		return nil, err
	}
	return &inv, nil
}

func (t *pgTx) GetInvoiceForAppointment(ctx context.Context, appointmentID uuid.UUID) (*Invoice, error) {
	row := t.tx.QueryRow(ctx, `
		SELECT `+invoiceColumns+`
		FROM invoices
		WHERE appointment_id = $1
		FOR UPDATE
	`, appointmentID)
	return scanInvoice(row)
}

func (t *pgTx) CreateInvoice(ctx context.Context, appointmentID, clientID uuid.UUID) (*Invoice, error) {
	id := uuid.New()

	row := t.tx.QueryRow(ctx, `
		INSERT INTO invoices (id, appointment_id, client_id, total_amount, status, created_at, updated_at)
		VALUES ($1, $2, $3, 0, 'draft', now(), now())
		ON CONFLICT (appointment_id) DO NOTHING
		RETURNING `+invoiceColumns+`
	`, id, appointmentID, clientID)

	inv, err := scanInvoice(row)
	if err == nil {
		return inv, nil
	}
	if !errors.Is(err, ErrInvoiceNotFound) {
		return nil, fmt.Errorf("create invoice: %w", err)
	}

	// Lost the race on the unique constraint: fetch the winner's invoice
	// and append to it.
	return t.GetInvoiceForAppointment(ctx, appointmentID)
}

func (t *pgTx) NextInvoiceItemPosition(ctx context.Context, invoiceID uuid.UUID) (int, error) {
	var next int
	err := t.tx.QueryRow(ctx, `
		SELECT COALESCE(MAX(position) + 1, 0) FROM invoice_items WHERE invoice_id = $1
	`, invoiceID).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("next invoice item position: %w", err)
	}
	return next, nil
}

func (t *pgTx) InsertInvoiceItem(ctx context.Context, item *InvoiceItem) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO invoice_items (id, invoice_id, item_type, item_id, description, quantity, unit_price, position)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, item.ID, item.InvoiceID, item.ItemType, item.ItemID, item.Description, item.Quantity, item.UnitPrice, item.Position)
	if err != nil {
		return fmt.Errorf("insert invoice item: %w", err)
	}
	return nil
}

func (t *pgTx) AddToInvoiceTotal(ctx context.Context, invoiceID uuid.UUID, amount decimal.Decimal) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE invoices
		SET total_amount = total_amount + $2,
		    updated_at = now()
		WHERE id = $1
	`, invoiceID, amount)
	if err != nil {
		return fmt.Errorf("update invoice total: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrInvoiceNotFound
	}
	return nil
}

// Non-transactional methods

func (r *PgRepository) GetDocumentSnapshot(ctx context.Context, prescriptionID uuid.UUID) (*DocumentSnapshot, error) {
	snap := DocumentSnapshot{PrescriptionID: prescriptionID}

	err := r.pool.QueryRow(ctx, `
		SELECT p.name, p.species, owner.full_name, vet.full_name, pr.instructions
		FROM prescriptions pr
		JOIN appointments a ON pr.appointment_id = a.id
		JOIN pets p ON pr.pet_id = p.id
		JOIN users owner ON a.client_id = owner.id
		JOIN users vet ON pr.vet_id = vet.id
		WHERE pr.id = $1
	`, prescriptionID).Scan(&snap.PetName, &snap.Species, &snap.OwnerName, &snap.VetName, &snap.Instructions)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPrescriptionNotFound
		}
		return nil, err
	}

	return &snap, nil
}

func (r *PgRepository) SetDocumentPath(ctx context.Context, prescriptionID uuid.UUID, path string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE prescriptions SET document_path = $2 WHERE id = $1
	`, prescriptionID, path)
	if err != nil {
		return fmt.Errorf("set document path: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrPrescriptionNotFound
	}
	return nil
}

func (r *PgRepository) ListInvoicesForClient(ctx context.Context, clientID uuid.UUID) ([]Invoice, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+invoiceColumns+`
		FROM invoices
		WHERE client_id = $1
		ORDER BY created_at DESC
	`, clientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *inv)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) GetInvoice(ctx context.Context, invoiceID uuid.UUID) (*Invoice, []InvoiceItem, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+invoiceColumns+`
		FROM invoices
		WHERE id = $1
	`, invoiceID)

	inv, err := scanInvoice(row)
	if err != nil {
		return nil, nil, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, invoice_id, item_type, item_id, description, quantity, unit_price, position
		FROM invoice_items
		WHERE invoice_id = $1
		ORDER BY position ASC
	`, invoiceID)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var items []InvoiceItem
	for rows.Next() {
		var it InvoiceItem
		err := rows.Scan(
			&it.ID,
			&it.InvoiceID,
			&it.ItemType,
			&it.ItemID,
			&it.Description,
			&it.Quantity,
			&it.UnitPrice,
			&it.Position,
		)
		if err != nil {
			return nil, nil, err
		}
		items = append(items, it)
	}

	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	return inv, items, nil
}
