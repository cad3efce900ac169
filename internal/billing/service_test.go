package billing

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/provetcare/clinic-server/internal/document"
	"github.com/provetcare/clinic-server/internal/redisx"
)

// memRepo is an in-memory Repository. Mutations inside InTx are staged on the
// fakeTx and only reach the store when fn returns nil, so rollback behavior is
// observable from tests.
type memRepo struct {
	mu sync.Mutex

	clients       map[uuid.UUID]uuid.UUID // appointment -> client
	prescriptions map[uuid.UUID]*Prescription
	prescItems    []PrescriptionItem
	invoices      map[uuid.UUID]*Invoice // keyed by appointment
	invoiceItems  map[uuid.UUID][]InvoiceItem
	docPaths      map[uuid.UUID]string

	// failOn aborts the transaction when the named Tx method runs.
	failOn  string
	failErr error
}

func newMemRepo() *memRepo {
	return &memRepo{
		clients:       make(map[uuid.UUID]uuid.UUID),
		prescriptions: make(map[uuid.UUID]*Prescription),
		invoices:      make(map[uuid.UUID]*Invoice),
		invoiceItems:  make(map[uuid.UUID][]InvoiceItem),
		docPaths:      make(map[uuid.UUID]string),
	}
}

func (r *memRepo) InTx(_ context.Context, fn func(tx Tx) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx := &fakeTx{repo: r, totalAdds: make(map[uuid.UUID]decimal.Decimal)}
	if err := fn(tx); err != nil {
		return err
	}
	tx.commit()
	return nil
}

func (r *memRepo) GetDocumentSnapshot(_ context.Context, prescriptionID uuid.UUID) (*DocumentSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.prescriptions[prescriptionID]
	if !ok {
		return nil, ErrPrescriptionNotFound
	}
	return &DocumentSnapshot{
		PrescriptionID: p.ID,
		PetName:        "Rocky",
		Species:        "Perro",
		OwnerName:      "Carlos Ramirez",
		VetName:        "Dr. Sofia Torres",
		Instructions:   p.Instructions,
	}, nil
}

func (r *memRepo) SetDocumentPath(_ context.Context, prescriptionID uuid.UUID, path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.prescriptions[prescriptionID]; !ok {
		return ErrPrescriptionNotFound
	}
	r.docPaths[prescriptionID] = path
	return nil
}

func (r *memRepo) ListInvoicesForClient(_ context.Context, clientID uuid.UUID) ([]Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Invoice
	for _, inv := range r.invoices {
		if inv.ClientID == clientID {
			out = append(out, *inv)
		}
	}
	return out, nil
}

func (r *memRepo) GetInvoice(_ context.Context, invoiceID uuid.UUID) (*Invoice, []InvoiceItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, inv := range r.invoices {
		if inv.ID == invoiceID {
			cp := *inv
			return &cp, append([]InvoiceItem(nil), r.invoiceItems[invoiceID]...), nil
		}
	}
	return nil, nil, ErrInvoiceNotFound
}

func (r *memRepo) invoiceFor(appointmentID uuid.UUID) *Invoice {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.invoices[appointmentID]
}

type fakeTx struct {
	repo *memRepo

	prescriptions []*Prescription
	prescItems    []*PrescriptionItem
	newInvoice    *Invoice
	invItems      []*InvoiceItem
	totalAdds     map[uuid.UUID]decimal.Decimal
}

func (t *fakeTx) fail(method string) error {
	if t.repo.failOn == method {
		return t.repo.failErr
	}
	return nil
}

func (t *fakeTx) GetAppointmentClientID(_ context.Context, appointmentID uuid.UUID) (uuid.UUID, error) {
	clientID, ok := t.repo.clients[appointmentID]
	if !ok {
		return uuid.Nil, ErrAppointmentNotFound
	}
	return clientID, nil
}

func (t *fakeTx) InsertPrescription(_ context.Context, p *Prescription) error {
	if err := t.fail("InsertPrescription"); err != nil {
		return err
	}
	cp := *p
	t.prescriptions = append(t.prescriptions, &cp)
	return nil
}

func (t *fakeTx) InsertPrescriptionItem(_ context.Context, item *PrescriptionItem) error {
	if err := t.fail("InsertPrescriptionItem"); err != nil {
		return err
	}
	cp := *item
	t.prescItems = append(t.prescItems, &cp)
	return nil
}

func (t *fakeTx) GetInvoiceForAppointment(_ context.Context, appointmentID uuid.UUID) (*Invoice, error) {
	if inv, ok := t.repo.invoices[appointmentID]; ok {
		cp := *inv
		return &cp, nil
	}
	return nil, ErrInvoiceNotFound
}

func (t *fakeTx) CreateInvoice(_ context.Context, appointmentID, clientID uuid.UUID) (*Invoice, error) {
	if err := t.fail("CreateInvoice"); err != nil {
		return nil, err
	}
	// Mirrors the unique constraint: a concurrent winner's invoice is
	// returned instead of a duplicate.
	if inv, ok := t.repo.invoices[appointmentID]; ok {
		cp := *inv
		return &cp, nil
	}
	inv := &Invoice{
		ID:            uuid.New(),
		AppointmentID: appointmentID,
		ClientID:      clientID,
		TotalAmount:   decimal.Zero,
		Status:        InvoiceStatusDraft,
	}
	t.newInvoice = inv
	cp := *inv
	return &cp, nil
}

func (t *fakeTx) NextInvoiceItemPosition(_ context.Context, invoiceID uuid.UUID) (int, error) {
	return len(t.repo.invoiceItems[invoiceID]), nil
}

func (t *fakeTx) InsertInvoiceItem(_ context.Context, item *InvoiceItem) error {
	if err := t.fail("InsertInvoiceItem"); err != nil {
		return err
	}
	cp := *item
	t.invItems = append(t.invItems, &cp)
	return nil
}

func (t *fakeTx) AddToInvoiceTotal(_ context.Context, invoiceID uuid.UUID, amount decimal.Decimal) error {
	if err := t.fail("AddToInvoiceTotal"); err != nil {
		return err
	}
	t.totalAdds[invoiceID] = t.totalAdds[invoiceID].Add(amount)
	return nil
}

func (t *fakeTx) commit() {
	r := t.repo
	for _, p := range t.prescriptions {
		r.prescriptions[p.ID] = p
	}
	for _, item := range t.prescItems {
		r.prescItems = append(r.prescItems, *item)
	}
	if t.newInvoice != nil {
		r.invoices[t.newInvoice.AppointmentID] = t.newInvoice
	}
	for _, item := range t.invItems {
		r.invoiceItems[item.InvoiceID] = append(r.invoiceItems[item.InvoiceID], *item)
	}
	for invoiceID, amount := range t.totalAdds {
		for _, inv := range r.invoices {
			if inv.ID == invoiceID {
				inv.TotalAmount = inv.TotalAmount.Add(amount)
			}
		}
	}
}

// memLocker serializes postings per appointment, like the Redis lock does.
type memLocker struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

func newMemLocker() *memLocker {
	return &memLocker{locks: make(map[uuid.UUID]*sync.Mutex)}
}

func (l *memLocker) WithAppointmentLock(ctx context.Context, appointmentID uuid.UUID, fn func(ctx context.Context) error) error {
	l.mu.Lock()
	m, ok := l.locks[appointmentID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[appointmentID] = m
	}
	l.mu.Unlock()

	m.Lock()
	defer m.Unlock()
	return fn(ctx)
}

// busyLocker simulates lock contention that outlasts the wait window.
type busyLocker struct{}

func (busyLocker) WithAppointmentLock(context.Context, uuid.UUID, func(ctx context.Context) error) error {
	return redisx.ErrLockNotAcquired
}

type fakeRenderer struct {
	mu       sync.Mutex
	rendered []document.Prescription
	err      error
}

func (r *fakeRenderer) Render(_ context.Context, p document.Prescription) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return "", r.err
	}
	r.rendered = append(r.rendered, p)
	return "/documents/prescription-" + p.PrescriptionID + ".html", nil
}

func (r *fakeRenderer) calls() []document.Prescription {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]document.Prescription(nil), r.rendered...)
}

type billingFixture struct {
	repo     *memRepo
	renderer *fakeRenderer
	svc      *Service

	appointmentID uuid.UUID
	clientID      uuid.UUID
	petID         uuid.UUID
	vetID         uuid.UUID
}

func newBillingFixture(t *testing.T) *billingFixture {
	t.Helper()
	repo := newMemRepo()
	renderer := &fakeRenderer{}
	f := &billingFixture{
		repo:          repo,
		renderer:      renderer,
		svc:           NewService(repo, newMemLocker(), renderer, zerolog.Nop()),
		appointmentID: uuid.New(),
		clientID:      uuid.New(),
		petID:         uuid.New(),
		vetID:         uuid.New(),
	}
	repo.clients[f.appointmentID] = f.clientID
	return f
}

func (f *billingFixture) issueInput(items ...LineItem) IssueInput {
	return IssueInput{
		AppointmentID: f.appointmentID,
		PetID:         f.petID,
		VetID:         f.vetID,
		Instructions:  "Administrar con comida",
		Items:         items,
	}
}

func price(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestIssuePrescriptionValidation(t *testing.T) {
	f := newBillingFixture(t)

	tests := []struct {
		name    string
		items   []LineItem
		wantErr error
	}{
		{"no items", nil, ErrNoItems},
		{"zero quantity", []LineItem{{InventoryItemID: uuid.New(), Name: "Amoxicilina", Quantity: 0, UnitPrice: price("10.00")}}, ErrInvalidQuantity},
		{"negative quantity", []LineItem{{InventoryItemID: uuid.New(), Name: "Amoxicilina", Quantity: -2, UnitPrice: price("10.00")}}, ErrInvalidQuantity},
		{"negative price", []LineItem{{InventoryItemID: uuid.New(), Name: "Amoxicilina", Quantity: 1, UnitPrice: price("-0.01")}}, ErrNegativePrice},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.IssuePrescription(context.Background(), f.issueInput(tt.items...))
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}

	if len(f.repo.prescriptions) != 0 || f.repo.invoiceFor(f.appointmentID) != nil {
		t.Error("rejected input must not persist anything")
	}
}

func TestIssuePrescriptionCreatesInvoice(t *testing.T) {
	f := newBillingFixture(t)

	res, err := f.svc.IssuePrescription(context.Background(), f.issueInput(
		LineItem{InventoryItemID: uuid.New(), Name: "Amoxicilina 250mg", Quantity: 2, Dosage: "1 cada 12h", Duration: "7 días", UnitPrice: price("10.00")},
		LineItem{InventoryItemID: uuid.New(), Name: "Shampoo medicado", Quantity: 1, UnitPrice: price("25.00")},
	))
	if err != nil {
		t.Fatalf("IssuePrescription: %v", err)
	}
	f.svc.Wait()

	presc, ok := f.repo.prescriptions[res.PrescriptionID]
	if !ok {
		t.Fatal("prescription not persisted")
	}
	if presc.Status != PrescriptionStatusIssued {
		t.Errorf("prescription status = %q, want %q", presc.Status, PrescriptionStatusIssued)
	}
	if len(f.repo.prescItems) != 2 {
		t.Fatalf("prescription items = %d, want 2", len(f.repo.prescItems))
	}

	inv := f.repo.invoiceFor(f.appointmentID)
	if inv == nil {
		t.Fatal("invoice not created")
	}
	if inv.ID != res.InvoiceID {
		t.Errorf("result invoice = %s, stored invoice = %s", res.InvoiceID, inv.ID)
	}
	if inv.ClientID != f.clientID {
		t.Errorf("invoice client = %s, want appointment's client %s", inv.ClientID, f.clientID)
	}
	if inv.Status != InvoiceStatusDraft {
		t.Errorf("invoice status = %q, want %q", inv.Status, InvoiceStatusDraft)
	}
	if !inv.TotalAmount.Equal(price("45.00")) {
		t.Errorf("invoice total = %s, want 45.00", inv.TotalAmount)
	}

	items := f.repo.invoiceItems[inv.ID]
	if len(items) != 2 {
		t.Fatalf("invoice items = %d, want 2", len(items))
	}
	for i, item := range items {
		if item.Position != i {
			t.Errorf("item %d position = %d", i, item.Position)
		}
		if item.ItemType != ItemTypePharmacy {
			t.Errorf("item %d type = %q, want %q", i, item.ItemType, ItemTypePharmacy)
		}
	}
}

func TestIssuePrescriptionAppendsToExistingInvoice(t *testing.T) {
	f := newBillingFixture(t)
	ctx := context.Background()

	first, err := f.svc.IssuePrescription(ctx, f.issueInput(
		LineItem{InventoryItemID: uuid.New(), Name: "Antiparasitario", Quantity: 1, UnitPrice: price("18.50")},
	))
	if err != nil {
		t.Fatalf("first posting: %v", err)
	}
	second, err := f.svc.IssuePrescription(ctx, f.issueInput(
		LineItem{InventoryItemID: uuid.New(), Name: "Vitaminas", Quantity: 3, UnitPrice: price("4.25")},
	))
	if err != nil {
		t.Fatalf("second posting: %v", err)
	}
	f.svc.Wait()

	if first.InvoiceID != second.InvoiceID {
		t.Fatalf("postings produced two invoices: %s and %s", first.InvoiceID, second.InvoiceID)
	}
	if first.PrescriptionID == second.PrescriptionID {
		t.Error("each posting must produce its own prescription")
	}

	inv := f.repo.invoiceFor(f.appointmentID)
	// 18.50 + 3*4.25
	if !inv.TotalAmount.Equal(price("31.25")) {
		t.Errorf("invoice total = %s, want 31.25", inv.TotalAmount)
	}

	items := f.repo.invoiceItems[inv.ID]
	if len(items) != 2 {
		t.Fatalf("invoice items = %d, want 2", len(items))
	}
	if items[0].Position != 0 || items[1].Position != 1 {
		t.Errorf("positions = %d, %d; want 0, 1", items[0].Position, items[1].Position)
	}
}

func TestIssuePrescriptionTotalMatchesLineItems(t *testing.T) {
	rng := rand.New(rand.NewSource(20260120))

	for run := 0; run < 20; run++ {
		t.Run(fmt.Sprintf("run_%d", run), func(t *testing.T) {
			f := newBillingFixture(t)
			ctx := context.Background()

			want := decimal.Zero
			postings := 1 + rng.Intn(5)
			for p := 0; p < postings; p++ {
				var items []LineItem
				for n := 1 + rng.Intn(4); n > 0; n-- {
					qty := 1 + rng.Intn(9)
					unit := decimal.NewFromInt(int64(rng.Intn(12000))).Div(decimal.NewFromInt(100))
					items = append(items, LineItem{
						InventoryItemID: uuid.New(),
						Name:            fmt.Sprintf("item-%d", n),
						Quantity:        qty,
						UnitPrice:       unit,
					})
					want = want.Add(unit.Mul(decimal.NewFromInt(int64(qty))))
				}
				if _, err := f.svc.IssuePrescription(ctx, f.issueInput(items...)); err != nil {
					t.Fatalf("posting %d: %v", p, err)
				}
			}
			f.svc.Wait()

			inv := f.repo.invoiceFor(f.appointmentID)
			if inv == nil {
				t.Fatal("invoice not created")
			}
			if !inv.TotalAmount.Equal(want) {
				t.Errorf("invoice total = %s, want %s", inv.TotalAmount, want)
			}

			sum := decimal.Zero
			for _, item := range f.repo.invoiceItems[inv.ID] {
				sum = sum.Add(item.LineTotal())
			}
			if !inv.TotalAmount.Equal(sum) {
				t.Errorf("invoice total %s does not match item sum %s", inv.TotalAmount, sum)
			}
		})
	}
}

func TestIssuePrescriptionConcurrentPostings(t *testing.T) {
	f := newBillingFixture(t)
	ctx := context.Background()
	const workers = 8

	var wg sync.WaitGroup
	errs := make([]error, workers)
	results := make([]*PostingResult, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = f.svc.IssuePrescription(ctx, f.issueInput(
				LineItem{InventoryItemID: uuid.New(), Name: fmt.Sprintf("med-%d", i), Quantity: 1, UnitPrice: price("5.00")},
			))
		}(i)
	}
	wg.Wait()
	f.svc.Wait()

	invoiceIDs := make(map[uuid.UUID]bool)
	for i := 0; i < workers; i++ {
		if errs[i] != nil {
			t.Fatalf("worker %d: %v", i, errs[i])
		}
		invoiceIDs[results[i].InvoiceID] = true
	}
	if len(invoiceIDs) != 1 {
		t.Fatalf("concurrent postings produced %d invoices, want exactly 1", len(invoiceIDs))
	}
	if len(f.repo.invoices) != 1 {
		t.Fatalf("stored invoices = %d, want 1", len(f.repo.invoices))
	}

	inv := f.repo.invoiceFor(f.appointmentID)
	items := f.repo.invoiceItems[inv.ID]
	if len(items) != workers {
		t.Fatalf("invoice items = %d, want %d", len(items), workers)
	}
	seen := make(map[int]bool)
	for _, item := range items {
		if seen[item.Position] {
			t.Errorf("duplicate item position %d", item.Position)
		}
		seen[item.Position] = true
	}
	if !inv.TotalAmount.Equal(price("40.00")) {
		t.Errorf("invoice total = %s, want 40.00", inv.TotalAmount)
	}
}

func TestIssuePrescriptionUnknownAppointment(t *testing.T) {
	f := newBillingFixture(t)

	in := f.issueInput(LineItem{InventoryItemID: uuid.New(), Name: "Amoxicilina", Quantity: 1, UnitPrice: price("10.00")})
	in.AppointmentID = uuid.New()

	_, err := f.svc.IssuePrescription(context.Background(), in)
	if !errors.Is(err, ErrAppointmentNotFound) {
		t.Fatalf("err = %v, want ErrAppointmentNotFound", err)
	}
	if len(f.repo.prescriptions) != 0 || len(f.repo.invoices) != 0 {
		t.Error("failed posting must not persist anything")
	}
}

func TestIssuePrescriptionRollsBackMidPosting(t *testing.T) {
	f := newBillingFixture(t)
	f.repo.failOn = "InsertInvoiceItem"
	f.repo.failErr = errors.New("deadlock detected")

	_, err := f.svc.IssuePrescription(context.Background(), f.issueInput(
		LineItem{InventoryItemID: uuid.New(), Name: "Amoxicilina", Quantity: 2, UnitPrice: price("10.00")},
	))
	if err == nil || !strings.Contains(err.Error(), "deadlock") {
		t.Fatalf("err = %v, want injected failure", err)
	}

	if len(f.repo.prescriptions) != 0 {
		t.Error("prescription survived a failed posting")
	}
	if len(f.repo.prescItems) != 0 {
		t.Error("prescription items survived a failed posting")
	}
	if len(f.repo.invoices) != 0 {
		t.Error("invoice survived a failed posting")
	}
	if len(f.renderer.calls()) != 0 {
		t.Error("document rendered for a posting that never committed")
	}
}

func TestIssuePrescriptionLockUnavailable(t *testing.T) {
	f := newBillingFixture(t)
	f.svc = NewService(f.repo, busyLocker{}, f.renderer, zerolog.Nop())

	res, err := f.svc.IssuePrescription(context.Background(), f.issueInput(
		LineItem{InventoryItemID: uuid.New(), Name: "Amoxicilina", Quantity: 1, UnitPrice: price("10.00")},
	))
	if err != nil {
		t.Fatalf("posting must fall back when the lock is unavailable: %v", err)
	}
	f.svc.Wait()

	inv := f.repo.invoiceFor(f.appointmentID)
	if inv == nil || inv.ID != res.InvoiceID {
		t.Fatal("fallback posting did not create the invoice")
	}
}

func TestDocumentGeneratedAfterCommit(t *testing.T) {
	f := newBillingFixture(t)

	res, err := f.svc.IssuePrescription(context.Background(), f.issueInput(
		LineItem{InventoryItemID: uuid.New(), Name: "Amoxicilina 250mg", Quantity: 2, Dosage: "1 cada 12h", Duration: "7 días", UnitPrice: price("10.00")},
	))
	if err != nil {
		t.Fatalf("IssuePrescription: %v", err)
	}
	f.svc.Wait()

	calls := f.renderer.calls()
	if len(calls) != 1 {
		t.Fatalf("renderer calls = %d, want 1", len(calls))
	}
	doc := calls[0]
	if doc.PrescriptionID != res.PrescriptionID.String() {
		t.Errorf("rendered prescription = %s, want %s", doc.PrescriptionID, res.PrescriptionID)
	}
	if doc.PetName != "Rocky" || doc.VetName != "Dr. Sofia Torres" {
		t.Errorf("snapshot not threaded into document: %+v", doc)
	}
	if len(doc.Items) != 1 || doc.Items[0].Dosage != "1 cada 12h" {
		t.Errorf("document items = %+v", doc.Items)
	}

	path, ok := f.repo.docPaths[res.PrescriptionID]
	if !ok {
		t.Fatal("document path not attached")
	}
	if !strings.Contains(path, res.PrescriptionID.String()) {
		t.Errorf("document path = %q", path)
	}
}

func TestDocumentFailureDoesNotAffectPosting(t *testing.T) {
	f := newBillingFixture(t)
	f.renderer.err = errors.New("disk full")

	res, err := f.svc.IssuePrescription(context.Background(), f.issueInput(
		LineItem{InventoryItemID: uuid.New(), Name: "Amoxicilina", Quantity: 1, UnitPrice: price("10.00")},
	))
	if err != nil {
		t.Fatalf("posting must not fail on document errors: %v", err)
	}
	f.svc.Wait()

	if _, ok := f.repo.prescriptions[res.PrescriptionID]; !ok {
		t.Error("prescription missing despite successful posting")
	}
	if _, ok := f.repo.docPaths[res.PrescriptionID]; ok {
		t.Error("document path attached despite render failure")
	}
}

func TestGetInvoice(t *testing.T) {
	f := newBillingFixture(t)

	res, err := f.svc.IssuePrescription(context.Background(), f.issueInput(
		LineItem{InventoryItemID: uuid.New(), Name: "Amoxicilina", Quantity: 2, UnitPrice: price("10.00")},
	))
	if err != nil {
		t.Fatalf("IssuePrescription: %v", err)
	}
	f.svc.Wait()

	inv, items, err := f.svc.GetInvoice(context.Background(), res.InvoiceID)
	if err != nil {
		t.Fatalf("GetInvoice: %v", err)
	}
	if !inv.TotalAmount.Equal(price("20.00")) {
		t.Errorf("total = %s, want 20.00", inv.TotalAmount)
	}
	if len(items) != 1 {
		t.Errorf("items = %d, want 1", len(items))
	}

	if _, _, err := f.svc.GetInvoice(context.Background(), uuid.New()); !errors.Is(err, ErrInvoiceNotFound) {
		t.Errorf("unknown invoice err = %v, want ErrInvoiceNotFound", err)
	}

	invoices, err := f.svc.ListInvoicesForClient(context.Background(), f.clientID)
	if err != nil {
		t.Fatalf("ListInvoicesForClient: %v", err)
	}
	if len(invoices) != 1 {
		t.Errorf("client invoices = %d, want 1", len(invoices))
	}
	if got, _ := f.svc.ListInvoicesForClient(context.Background(), uuid.New()); len(got) != 0 {
		t.Errorf("stranger invoices = %d, want 0", len(got))
	}
}
