package payment_test

import (
	"context"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"procura/internal/core/apperror"
	"procura/internal/core/id"
	"procura/internal/core/numerator"
	"procura/internal/core/types"
	"procura/internal/domain/documents/invoice"
	"procura/internal/domain/documents/payment"
	"procura/internal/domain/supplier"
	"procura/internal/infrastructure/storage/memory"
)

type fixture struct {
	store *memory.Store
	svc   *payment.Service
	sup   *supplier.Supplier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	sup := &supplier.Supplier{
		ID:          id.New(),
		Code:        "ACME",
		Name:        "Acme",
		WHTSubject:  true,
		WHTCategory: supplier.WHTServices,
		Active:      true,
		CreatedAt:   time.Now().UTC(),
		CreatedBy:   "seed",
	}
	require.NoError(t, store.Suppliers().Create(context.Background(), sup))

	svc := payment.NewService(store.Payments(), store.Invoices(), store.Suppliers(),
		payment.DefaultWHTPolicy(), &numerator.MockGenerator{}, store, store)
	return &fixture{store: store, svc: svc, sup: sup}
}

func (f *fixture) verifiedInvoice(t *testing.T, supplierID id.ID, total string) *invoice.Invoice {
	t.Helper()
	inv := invoice.New("ap-clerk")
	inv.Number = "INV-" + id.New().String()[24:]
	inv.SupplierID = supplierID
	inv.PurchaseOrderID = id.New()
	inv.SupplierInvoiceNumber = inv.Number
	inv.InvoiceDate = time.Now().UTC()
	inv.Currency = "USD"
	inv.Subtotal = types.MustMoney(total)
	inv.Total = types.MustMoney(total)
	inv.Status = invoice.StatusVerified
	require.NoError(t, f.store.Invoices().Create(context.Background(), inv))
	return inv
}

func TestCreateAggregatesInvoices(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.verifiedInvoice(t, f.sup.ID, "1200")
	b := f.verifiedInvoice(t, f.sup.ID, "800.50")

	p, err := f.svc.Create(ctx, "user-a", payment.CreateCommand{InvoiceIDs: []id.ID{a.ID, b.ID}})
	require.NoError(t, err)
	assert.Equal(t, "2000.50", p.Gross.StringFixed(2))
	assert.Equal(t, payment.StatusDraft, p.Status)
	assert.Equal(t, payment.MethodBankTransfer, p.PaymentMethod)
	assert.Equal(t, f.sup.ID, p.SupplierID)

	got, err := f.svc.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []id.ID{a.ID, b.ID}, got.InvoiceIDs)

	// An allocated invoice cannot join a second payment.
	_, err = f.svc.Create(ctx, "user-a", payment.CreateCommand{InvoiceIDs: []id.ID{a.ID}})
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
}

func TestCreateValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.verifiedInvoice(t, f.sup.ID, "100")
	other := f.verifiedInvoice(t, id.New(), "100")

	unverified := invoice.New("ap-clerk")
	unverified.Number = "INV-DRAFT"
	unverified.SupplierID = f.sup.ID
	unverified.Currency = "USD"
	unverified.Total = types.MustMoney("10")
	require.NoError(t, f.store.Invoices().Create(ctx, unverified))

	tests := []struct {
		name string
		ids  []id.ID
		code string
	}{
		{name: "no invoices", ids: nil, code: apperror.CodeValidation},
		{name: "duplicate invoice", ids: []id.ID{a.ID, a.ID}, code: apperror.CodeValidation},
		{name: "mixed suppliers", ids: []id.ID{a.ID, other.ID}, code: apperror.CodeValidation},
		{name: "unverified invoice", ids: []id.ID{unverified.ID}, code: apperror.CodeValidation},
		{name: "unknown invoice", ids: []id.ID{id.New()}, code: apperror.CodeNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Create(ctx, "user-a", payment.CreateCommand{InvoiceIDs: tt.ids})
			require.Error(t, err)
			assert.True(t, apperror.HasCode(err, tt.code), err.Error())
		})
	}

	// A failed create leaves no invoice allocated.
	got, err := f.store.Invoices().GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Nil(t, got.PaymentID)
}

func TestApprovalWorkflowSegregation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	inv := f.verifiedInvoice(t, f.sup.ID, "10000")

	p, err := f.svc.Create(ctx, "user-a", payment.CreateCommand{InvoiceIDs: []id.ID{inv.ID}})
	require.NoError(t, err)

	_, err = f.svc.Submit(ctx, "user-b", p.ID)
	assert.True(t, apperror.HasCode(err, apperror.CodeForbidden))

	p, err = f.svc.Submit(ctx, "user-a", p.ID)
	require.NoError(t, err)
	assert.Equal(t, "500.00", p.WHTAmount.StringFixed(2))
	assert.Equal(t, "9500.00", p.Net.StringFixed(2))

	_, err = f.svc.Approve(ctx, "user-a", p.ID)
	assert.True(t, apperror.HasCode(err, apperror.CodeSegregationOfDuties))

	p, err = f.svc.Approve(ctx, "user-b", p.ID)
	require.NoError(t, err)
	version := p.Version

	// A retried approval by the same approver changes nothing.
	p, err = f.svc.Approve(ctx, "user-b", p.ID)
	require.NoError(t, err)
	assert.Equal(t, payment.StatusApproved, p.Status)
	assert.Equal(t, version, p.Version)

	_, err = f.svc.Process(ctx, "user-b", p.ID, "EFT-1")
	assert.True(t, apperror.HasCode(err, apperror.CodeSegregationOfDuties))
	_, err = f.svc.Process(ctx, "user-a", p.ID, "EFT-1")
	assert.True(t, apperror.HasCode(err, apperror.CodeSegregationOfDuties))
	_, err = f.svc.Process(ctx, "user-c", p.ID, "")
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))

	p, err = f.svc.Process(ctx, "user-c", p.ID, "EFT-1")
	require.NoError(t, err)
	assert.Equal(t, payment.StatusProcessed, p.Status)
	assert.Equal(t, "EFT-1", p.BankReference)

	p, err = f.svc.Process(ctx, "user-c", p.ID, "EFT-1")
	require.NoError(t, err)
	assert.Equal(t, payment.StatusProcessed, p.Status)

	p, err = f.svc.ConfirmSettlement(ctx, "treasury", p.ID)
	require.NoError(t, err)
	assert.Equal(t, payment.StatusPaid, p.Status)
	assert.NotNil(t, p.PaidAt)

	paid, err := f.store.Invoices().GetByID(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, invoice.StatusPaid, paid.Status)
	assert.Equal(t, invoice.PaymentPaid, paid.PaymentStatus)
}

func TestRejectReturnsToDraftForResubmission(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	inv := f.verifiedInvoice(t, f.sup.ID, "900")

	p, err := f.svc.Create(ctx, "user-a", payment.CreateCommand{InvoiceIDs: []id.ID{inv.ID}})
	require.NoError(t, err)
	p, err = f.svc.Submit(ctx, "user-a", p.ID)
	require.NoError(t, err)
	// Below the threshold nothing is withheld.
	assert.True(t, p.WHTAmount.IsZero())
	assert.Equal(t, "900.00", p.Net.StringFixed(2))

	_, err = f.svc.Reject(ctx, "user-b", p.ID, "")
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
	_, err = f.svc.Reject(ctx, "user-a", p.ID, "wrong account")
	assert.True(t, apperror.HasCode(err, apperror.CodeSegregationOfDuties))

	p, err = f.svc.Reject(ctx, "user-b", p.ID, "wrong account")
	require.NoError(t, err)
	assert.Equal(t, payment.StatusDraft, p.Status)
	assert.Equal(t, "wrong account", p.RejectionReason)

	p, err = f.svc.Submit(ctx, "user-a", p.ID)
	require.NoError(t, err)
	assert.Equal(t, payment.StatusPendingApproval, p.Status)
	assert.Empty(t, p.RejectionReason)
}

func TestProcessBeforeApprovalIsInvalid(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	inv := f.verifiedInvoice(t, f.sup.ID, "5000")

	p, err := f.svc.Create(ctx, "user-a", payment.CreateCommand{InvoiceIDs: []id.ID{inv.ID}})
	require.NoError(t, err)
	_, err = f.svc.Submit(ctx, "user-a", p.ID)
	require.NoError(t, err)

	_, err = f.svc.Process(ctx, "user-c", p.ID, "EFT-2")
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidTransition))
	_, err = f.svc.ConfirmSettlement(ctx, "user-c", p.ID)
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidTransition))
}

func TestDeleteFreesInvoices(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	inv := f.verifiedInvoice(t, f.sup.ID, "300")

	p, err := f.svc.Create(ctx, "user-a", payment.CreateCommand{InvoiceIDs: []id.ID{inv.ID}})
	require.NoError(t, err)

	err = f.svc.Delete(ctx, "user-b", p.ID)
	assert.True(t, apperror.HasCode(err, apperror.CodeForbidden))

	require.NoError(t, f.svc.Delete(ctx, "user-a", p.ID))

	freed, err := f.store.Invoices().GetByID(ctx, inv.ID)
	require.NoError(t, err)
	assert.Nil(t, freed.PaymentID)
	assert.True(t, freed.Payable())

	_, err = f.svc.Create(ctx, "user-a", payment.CreateCommand{InvoiceIDs: []id.ID{inv.ID}})
	require.NoError(t, err)
}

func TestDeletedPaymentCannotProceed(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	inv := f.verifiedInvoice(t, f.sup.ID, "2000")

	p, err := f.svc.Create(ctx, "user-a", payment.CreateCommand{InvoiceIDs: []id.ID{inv.ID}})
	require.NoError(t, err)
	require.NoError(t, f.svc.Delete(ctx, "user-a", p.ID))

	_, err = f.svc.Submit(ctx, "user-a", p.ID)
	assert.True(t, apperror.HasCode(err, apperror.CodeNotFound))
	_, err = f.svc.Approve(ctx, "user-b", p.ID)
	assert.True(t, apperror.HasCode(err, apperror.CodeNotFound))
	_, err = f.svc.Process(ctx, "user-c", p.ID, "EFT-9")
	assert.True(t, apperror.HasCode(err, apperror.CodeNotFound))
	_, err = f.svc.ConfirmSettlement(ctx, "treasury", p.ID)
	assert.True(t, apperror.HasCode(err, apperror.CodeNotFound))
	err = f.svc.Delete(ctx, "user-a", p.ID)
	assert.True(t, apperror.HasCode(err, apperror.CodeNotFound))

	// Still readable, still a draft.
	got, err := f.svc.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, got.DeletionMark)
	assert.Equal(t, payment.StatusDraft, got.Status)
	assert.Empty(t, got.InvoiceIDs)
}

func TestSettlementRequiresAllocatedInvoices(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	p := payment.New("user-a")
	p.Number = "PAY-2026-00001"
	p.SupplierID = f.sup.ID
	p.Currency = "USD"
	p.Gross = types.MustMoney("2000")
	p.Net = p.Gross
	p.Status = payment.StatusProcessed
	p.ApprovedBy = "user-b"
	p.ProcessedBy = "user-c"
	p.BankReference = "EFT-3"
	require.NoError(t, f.store.Payments().Create(ctx, p))

	_, err := f.svc.ConfirmSettlement(ctx, "treasury", p.ID)
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))

	got, err := f.svc.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, payment.StatusProcessed, got.Status)
	assert.Nil(t, got.PaidAt)
}

func TestConcurrentApproveAndProcessOnlyOneWins(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	inv := f.verifiedInvoice(t, f.sup.ID, "1500")

	p, err := f.svc.Create(ctx, "user-a", payment.CreateCommand{InvoiceIDs: []id.ID{inv.ID}})
	require.NoError(t, err)
	_, err = f.svc.Submit(ctx, "user-a", p.ID)
	require.NoError(t, err)

	// race runs step once per actor concurrently and returns the winners.
	race := func(actors []string, step func(actor string) error) []string {
		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			winners []string
			refused int
		)
		for _, actor := range actors {
			wg.Add(1)
			go func() {
				defer wg.Done()
				err := step(actor)
				mu.Lock()
				defer mu.Unlock()
				if err == nil {
					winners = append(winners, actor)
					return
				}
				if apperror.HasCode(err, apperror.CodeInvalidTransition) ||
					apperror.HasCode(err, apperror.CodeConcurrentModification) {
					refused++
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, len(actors)-1, refused)
		return winners
	}

	approvers := []string{"approver-1", "approver-2", "approver-3", "approver-4"}
	winners := race(approvers, func(actor string) error {
		_, err := f.svc.Approve(ctx, actor, p.ID)
		return err
	})
	require.Len(t, winners, 1)

	got, err := f.svc.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, payment.StatusApproved, got.Status)
	assert.Equal(t, winners[0], got.ApprovedBy)

	processors := []string{"clerk-1", "clerk-2", "clerk-3"}
	winners = race(processors, func(actor string) error {
		_, err := f.svc.Process(ctx, actor, p.ID, "EFT-"+actor)
		return err
	})
	require.Len(t, winners, 1)

	got, err = f.svc.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, payment.StatusProcessed, got.Status)
	assert.Equal(t, winners[0], got.ProcessedBy)
	assert.Equal(t, "EFT-"+winners[0], got.BankReference)

	approvals := 0
	for _, eventType := range f.store.EventTypes() {
		if eventType == "payment.approve" {
			approvals++
		}
	}
	assert.Equal(t, 1, approvals)
}

// lockRecorder records the order in which invoices are locked.
type lockRecorder struct {
	invoice.Repository

	mu     sync.Mutex
	locked []id.ID
}

func (r *lockRecorder) GetForUpdate(ctx context.Context, docID id.ID) (*invoice.Invoice, error) {
	r.mu.Lock()
	r.locked = append(r.locked, docID)
	r.mu.Unlock()
	return r.Repository.GetForUpdate(ctx, docID)
}

func TestCreateLocksInvoicesInIDOrder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.verifiedInvoice(t, f.sup.ID, "100")
	b := f.verifiedInvoice(t, f.sup.ID, "200")
	c := f.verifiedInvoice(t, f.sup.ID, "300")

	recorder := &lockRecorder{Repository: f.store.Invoices()}
	svc := payment.NewService(f.store.Payments(), recorder, f.store.Suppliers(),
		payment.DefaultWHTPolicy(), &numerator.MockGenerator{}, f.store, f.store)

	requested := []id.ID{c.ID, a.ID, b.ID}
	p, err := svc.Create(ctx, "user-a", payment.CreateCommand{InvoiceIDs: requested})
	require.NoError(t, err)
	assert.Equal(t, "600.00", p.Gross.StringFixed(2))

	want := slices.Clone(requested)
	slices.SortFunc(want, id.Compare)
	assert.Equal(t, want, recorder.locked)
	assert.Equal(t, []id.ID{c.ID, a.ID, b.ID}, requested)
}
