// Package memory provides an in-process implementation of every repository
// contract plus a transaction manager, used by service tests and local runs.
//
// A transaction holds the store-wide lock for its whole duration, which gives
// the same serialization per row that FOR UPDATE gives in PostgreSQL. A failed
// transaction restores the snapshot taken when it began.
package memory

import (
	"context"
	"maps"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"procura/internal/core/apperror"
	"procura/internal/core/id"
	"procura/internal/domain"
	"procura/internal/domain/approval"
	"procura/internal/domain/budget"
	gr "procura/internal/domain/documents/goods_receipt"
	"procura/internal/domain/documents/invoice"
	"procura/internal/domain/documents/payment"
	po "procura/internal/domain/documents/purchase_order"
	"procura/internal/domain/documents/requisition"
	"procura/internal/domain/supplier"
)

type txKey struct{}

// Store keeps all rows in maps guarded by one mutex.
type Store struct {
	mu sync.Mutex
	st *state
}

type state struct {
	budgetLines      map[id.ID]budget.Line
	entries          []budget.Entry
	approvals        map[id.ID]approval.Approval
	suppliers        map[id.ID]supplier.Supplier
	requisitions     map[id.ID]requisition.Requisition
	requisitionLines map[id.ID][]requisition.Line
	orders           map[id.ID]po.PurchaseOrder
	orderLines       map[id.ID][]po.Line
	receipts         map[id.ID]gr.GoodsReceipt
	receiptLines     map[id.ID][]gr.Line
	discrepancies    map[id.ID][]gr.Discrepancy
	invoices         map[id.ID]invoice.Invoice
	invoiceLines     map[id.ID][]invoice.Line
	payments         map[id.ID]payment.Payment
	events           []domain.Event
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{st: &state{
		budgetLines:      make(map[id.ID]budget.Line),
		approvals:        make(map[id.ID]approval.Approval),
		suppliers:        make(map[id.ID]supplier.Supplier),
		requisitions:     make(map[id.ID]requisition.Requisition),
		requisitionLines: make(map[id.ID][]requisition.Line),
		orders:           make(map[id.ID]po.PurchaseOrder),
		orderLines:       make(map[id.ID][]po.Line),
		receipts:         make(map[id.ID]gr.GoodsReceipt),
		receiptLines:     make(map[id.ID][]gr.Line),
		discrepancies:    make(map[id.ID][]gr.Discrepancy),
		invoices:         make(map[id.ID]invoice.Invoice),
		invoiceLines:     make(map[id.ID][]invoice.Line),
		payments:         make(map[id.ID]payment.Payment),
	}}
}

// clone copies every table. Stored values are replaced on write and never
// mutated in place, so copying the maps is enough to restore them.
func (st *state) clone() *state {
	return &state{
		budgetLines:      maps.Clone(st.budgetLines),
		entries:          slices.Clip(st.entries),
		approvals:        maps.Clone(st.approvals),
		suppliers:        maps.Clone(st.suppliers),
		requisitions:     maps.Clone(st.requisitions),
		requisitionLines: maps.Clone(st.requisitionLines),
		orders:           maps.Clone(st.orders),
		orderLines:       maps.Clone(st.orderLines),
		receipts:         maps.Clone(st.receipts),
		receiptLines:     maps.Clone(st.receiptLines),
		discrepancies:    maps.Clone(st.discrepancies),
		invoices:         maps.Clone(st.invoices),
		invoiceLines:     maps.Clone(st.invoiceLines),
		payments:         maps.Clone(st.payments),
		events:           slices.Clip(st.events),
	}
}

// RunInTransaction implements tx.Manager. Nested calls join the outer transaction.
func (s *Store) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.inTx(ctx) {
		return fn(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.st.clone()
	if err := fn(context.WithValue(ctx, txKey{}, s)); err != nil {
		s.st = snapshot
		return err
	}
	return nil
}

func (s *Store) inTx(ctx context.Context) bool {
	owner, _ := ctx.Value(txKey{}).(*Store)
	return owner == s
}

// do runs fn against the current state, taking the lock unless ctx already holds it.
func (s *Store) do(ctx context.Context, fn func(st *state) error) error {
	if s.inTx(ctx) {
		return fn(s.st)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.st)
}

// Publish implements domain.EventPublisher. Events roll back with their transaction.
func (s *Store) Publish(ctx context.Context, event domain.Event) error {
	return s.do(ctx, func(st *state) error {
		event.Payload = maps.Clone(event.Payload)
		st.events = append(st.events, event)
		return nil
	})
}

// Events returns the committed events in publication order.
func (s *Store) Events() []domain.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.st.events)
}

// EventTypes returns the committed event types in publication order.
func (s *Store) EventTypes() []string {
	events := s.Events()
	out := make([]string, 0, len(events))
	for _, e := range events {
		out = append(out, e.EventType)
	}
	return out
}

// --- shared table helpers ---

type versioned[T any] interface {
	*T
	GetVersion() int
	SetVersion(v int)
}

func find[T any](m map[id.ID]T, entity string, key id.ID) (T, error) {
	v, ok := m[key]
	if !ok {
		return v, apperror.NewNotFound(entity, key.String())
	}
	return v, nil
}

func notFound(entity string, key any) error {
	return apperror.NewNotFound(entity, key)
}

func insert[T any](m map[id.ID]T, entity string, key id.ID, v T) error {
	if _, ok := m[key]; ok {
		return apperror.NewConflict(entity + " already exists").WithDetail("id", key.String())
	}
	m[key] = v
	return nil
}

// update replaces the row of doc when its version matches the stored one,
// then advances the version on both.
func update[T any, P versioned[T]](m map[id.ID]T, entity string, key id.ID, doc P, detach func(T) T) error {
	old, ok := m[key]
	if !ok {
		return apperror.NewNotFound(entity, key.String())
	}
	if P(&old).GetVersion() != doc.GetVersion() {
		return apperror.NewConcurrentModification(entity, key)
	}
	doc.SetVersion(doc.GetVersion() + 1)
	m[key] = detach(*doc)
	return nil
}

// markDeleted sets the deletion mark of a stored row.
func markDeleted[T any, P versioned[T]](m map[id.ID]T, entity string, key id.ID, mark func(P)) error {
	v, ok := m[key]
	if !ok {
		return apperror.NewNotFound(entity, key.String())
	}
	p := P(&v)
	mark(p)
	p.SetVersion(p.GetVersion() + 1)
	m[key] = v
	return nil
}

// page sorts by creation time and applies offset and limit.
func page[T any](items []T, f domain.ListFilter, created func(T) time.Time, number func(T) string) domain.ListResult[T] {
	desc := f.OrderBy == "" || strings.HasPrefix(f.OrderBy, "-")
	sort.SliceStable(items, func(i, j int) bool {
		ci, cj := created(items[i]), created(items[j])
		if ci.Equal(cj) {
			if desc {
				return number(items[i]) > number(items[j])
			}
			return number(items[i]) < number(items[j])
		}
		if desc {
			return ci.After(cj)
		}
		return ci.Before(cj)
	})

	result := domain.ListResult[T]{TotalCount: int64(len(items)), Limit: f.Limit, Offset: f.Offset}
	if f.Offset > 0 {
		if f.Offset >= len(items) {
			items = nil
		} else {
			items = items[f.Offset:]
		}
	}
	if f.Limit > 0 && len(items) > f.Limit {
		items = items[:f.Limit]
	}
	result.Items = items
	if result.Items == nil {
		result.Items = []T{}
	}
	return result
}

// matchCommon applies the shared filter fields.
func matchCommon(f domain.ListFilter, number, status, department string, deleted bool) bool {
	if deleted && !f.IncludeDeleted {
		return false
	}
	if f.Search != "" && !strings.Contains(strings.ToLower(number), strings.ToLower(f.Search)) {
		return false
	}
	if f.Status != "" && f.Status != status {
		return false
	}
	if f.Department != "" && department != "" && f.Department != department {
		return false
	}
	return true
}

func sameID(filter *id.ID, v id.ID) bool {
	return filter == nil || *filter == v
}
