package memory

import (
	"context"
	"slices"
	"time"

	"procura/internal/core/id"
	"procura/internal/domain"
	gr "procura/internal/domain/documents/goods_receipt"
	"procura/internal/domain/documents/invoice"
	"procura/internal/domain/documents/payment"
	po "procura/internal/domain/documents/purchase_order"
	"procura/internal/domain/documents/requisition"
)

// Requisitions returns the requisition repository.
func (s *Store) Requisitions() requisition.Repository { return requisitionRepo{s} }

// PurchaseOrders returns the purchase order repository.
func (s *Store) PurchaseOrders() po.Repository { return orderRepo{s} }

// GoodsReceipts returns the goods receipt repository.
func (s *Store) GoodsReceipts() gr.Repository { return receiptRepo{s} }

// Invoices returns the invoice repository.
func (s *Store) Invoices() invoice.Repository { return invoiceRepo{s} }

// Payments returns the payment repository.
func (s *Store) Payments() payment.Repository { return paymentRepo{s} }

// get copies the row out of m as a fresh pointer.
func get[T any](ctx context.Context, s *Store, pick func(st *state) map[id.ID]T, entity string, key id.ID, detach func(T) T) (*T, error) {
	var out *T
	err := s.do(ctx, func(st *state) error {
		v, err := find(pick(st), entity, key)
		if err != nil {
			return err
		}
		v = detach(v)
		out = &v
		return nil
	})
	return out, err
}

// --- requisitions ---

type requisitionRepo struct{ s *Store }

func detachRequisition(r requisition.Requisition) requisition.Requisition {
	r.Lines = nil
	r.Approvals = nil
	return r
}

func requisitions(st *state) map[id.ID]requisition.Requisition { return st.requisitions }

func (r requisitionRepo) Create(ctx context.Context, doc *requisition.Requisition) error {
	return r.s.do(ctx, func(st *state) error {
		return insert(st.requisitions, "requisition", doc.ID, detachRequisition(*doc))
	})
}

func (r requisitionRepo) GetByID(ctx context.Context, docID id.ID) (*requisition.Requisition, error) {
	return get(ctx, r.s, requisitions, "requisition", docID, detachRequisition)
}

func (r requisitionRepo) GetForUpdate(ctx context.Context, docID id.ID) (*requisition.Requisition, error) {
	return r.GetByID(ctx, docID)
}

func (r requisitionRepo) Update(ctx context.Context, doc *requisition.Requisition) error {
	return r.s.do(ctx, func(st *state) error {
		return update(st.requisitions, "requisition", doc.ID, doc, detachRequisition)
	})
}

func (r requisitionRepo) Delete(ctx context.Context, docID id.ID) error {
	return r.s.do(ctx, func(st *state) error {
		return markDeleted(st.requisitions, "requisition", docID, func(d *requisition.Requisition) { d.DeletionMark = true })
	})
}

func (r requisitionRepo) GetLines(ctx context.Context, docID id.ID) ([]requisition.Line, error) {
	var out []requisition.Line
	err := r.s.do(ctx, func(st *state) error {
		out = slices.Clone(st.requisitionLines[docID])
		return nil
	})
	return out, err
}

func (r requisitionRepo) SaveLines(ctx context.Context, docID id.ID, lines []requisition.Line) error {
	return r.s.do(ctx, func(st *state) error {
		st.requisitionLines[docID] = slices.Clone(lines)
		return nil
	})
}

func (r requisitionRepo) List(ctx context.Context, f requisition.ListFilter) (domain.ListResult[*requisition.Requisition], error) {
	var out domain.ListResult[*requisition.Requisition]
	err := r.s.do(ctx, func(st *state) error {
		var items []*requisition.Requisition
		for _, v := range st.requisitions {
			if !matchCommon(f.ListFilter, v.Number, string(v.Status), v.Department, v.DeletionMark) {
				continue
			}
			if f.RequesterID != "" && f.RequesterID != v.RequesterID {
				continue
			}
			if f.BudgetLineID != nil && (v.BudgetLineID == nil || *v.BudgetLineID != *f.BudgetLineID) {
				continue
			}
			doc := v
			items = append(items, &doc)
		}
		out = page(items, f.ListFilter,
			func(d *requisition.Requisition) time.Time { return d.CreatedAt },
			func(d *requisition.Requisition) string { return d.Number })
		return nil
	})
	return out, err
}

// --- purchase orders ---

type orderRepo struct{ s *Store }

func detachOrder(o po.PurchaseOrder) po.PurchaseOrder {
	o.Lines = nil
	return o
}

func orders(st *state) map[id.ID]po.PurchaseOrder { return st.orders }

func (r orderRepo) Create(ctx context.Context, doc *po.PurchaseOrder) error {
	return r.s.do(ctx, func(st *state) error {
		return insert(st.orders, "purchase_order", doc.ID, detachOrder(*doc))
	})
}

func (r orderRepo) GetByID(ctx context.Context, docID id.ID) (*po.PurchaseOrder, error) {
	return get(ctx, r.s, orders, "purchase_order", docID, detachOrder)
}

func (r orderRepo) GetForUpdate(ctx context.Context, docID id.ID) (*po.PurchaseOrder, error) {
	return r.GetByID(ctx, docID)
}

func (r orderRepo) Update(ctx context.Context, doc *po.PurchaseOrder) error {
	return r.s.do(ctx, func(st *state) error {
		return update(st.orders, "purchase_order", doc.ID, doc, detachOrder)
	})
}

func (r orderRepo) GetLines(ctx context.Context, docID id.ID) ([]po.Line, error) {
	var out []po.Line
	err := r.s.do(ctx, func(st *state) error {
		out = slices.Clone(st.orderLines[docID])
		return nil
	})
	return out, err
}

func (r orderRepo) SaveLines(ctx context.Context, docID id.ID, lines []po.Line) error {
	return r.s.do(ctx, func(st *state) error {
		st.orderLines[docID] = slices.Clone(lines)
		return nil
	})
}

func (r orderRepo) GetByRequisition(ctx context.Context, requisitionID id.ID) (*po.PurchaseOrder, error) {
	var out *po.PurchaseOrder
	err := r.s.do(ctx, func(st *state) error {
		for _, v := range st.orders {
			if v.RequisitionID == requisitionID {
				doc := v
				out = &doc
				return nil
			}
		}
		return notFound("purchase_order", requisitionID.String())
	})
	return out, err
}

func (r orderRepo) List(ctx context.Context, f po.ListFilter) (domain.ListResult[*po.PurchaseOrder], error) {
	var out domain.ListResult[*po.PurchaseOrder]
	err := r.s.do(ctx, func(st *state) error {
		var items []*po.PurchaseOrder
		for _, v := range st.orders {
			if !matchCommon(f.ListFilter, v.Number, string(v.Status), v.Department, v.DeletionMark) {
				continue
			}
			if !sameID(f.SupplierID, v.SupplierID) || !sameID(f.RequisitionID, v.RequisitionID) {
				continue
			}
			doc := v
			items = append(items, &doc)
		}
		out = page(items, f.ListFilter,
			func(d *po.PurchaseOrder) time.Time { return d.CreatedAt },
			func(d *po.PurchaseOrder) string { return d.Number })
		return nil
	})
	return out, err
}

// --- goods receipts ---

type receiptRepo struct{ s *Store }

func detachReceipt(g gr.GoodsReceipt) gr.GoodsReceipt {
	g.Lines = nil
	g.Discrepancies = nil
	return g
}

func receipts(st *state) map[id.ID]gr.GoodsReceipt { return st.receipts }

func (r receiptRepo) Create(ctx context.Context, doc *gr.GoodsReceipt) error {
	return r.s.do(ctx, func(st *state) error {
		return insert(st.receipts, "goods_receipt", doc.ID, detachReceipt(*doc))
	})
}

func (r receiptRepo) GetByID(ctx context.Context, docID id.ID) (*gr.GoodsReceipt, error) {
	return get(ctx, r.s, receipts, "goods_receipt", docID, detachReceipt)
}

func (r receiptRepo) GetForUpdate(ctx context.Context, docID id.ID) (*gr.GoodsReceipt, error) {
	return r.GetByID(ctx, docID)
}

func (r receiptRepo) Update(ctx context.Context, doc *gr.GoodsReceipt) error {
	return r.s.do(ctx, func(st *state) error {
		return update(st.receipts, "goods_receipt", doc.ID, doc, detachReceipt)
	})
}

func (r receiptRepo) GetLines(ctx context.Context, docID id.ID) ([]gr.Line, error) {
	var out []gr.Line
	err := r.s.do(ctx, func(st *state) error {
		out = slices.Clone(st.receiptLines[docID])
		return nil
	})
	return out, err
}

func (r receiptRepo) SaveLines(ctx context.Context, docID id.ID, lines []gr.Line) error {
	return r.s.do(ctx, func(st *state) error {
		st.receiptLines[docID] = slices.Clone(lines)
		return nil
	})
}

func (r receiptRepo) GetDiscrepancies(ctx context.Context, docID id.ID) ([]gr.Discrepancy, error) {
	var out []gr.Discrepancy
	err := r.s.do(ctx, func(st *state) error {
		out = slices.Clone(st.discrepancies[docID])
		return nil
	})
	return out, err
}

func (r receiptRepo) AddDiscrepancies(ctx context.Context, docID id.ID, items []gr.Discrepancy) error {
	return r.s.do(ctx, func(st *state) error {
		st.discrepancies[docID] = append(slices.Clone(st.discrepancies[docID]), items...)
		return nil
	})
}

func (r receiptRepo) ListPosted(ctx context.Context, purchaseOrderID id.ID) ([]*gr.GoodsReceipt, error) {
	var out []*gr.GoodsReceipt
	err := r.s.do(ctx, func(st *state) error {
		for _, v := range st.receipts {
			if v.PurchaseOrderID != purchaseOrderID || v.Status != gr.StatusPostedToInventory {
				continue
			}
			doc := v
			doc.Lines = slices.Clone(st.receiptLines[v.ID])
			out = append(out, &doc)
		}
		slices.SortFunc(out, func(a, b *gr.GoodsReceipt) int { return a.ReceivedAt.Compare(b.ReceivedAt) })
		return nil
	})
	return out, err
}

func (r receiptRepo) List(ctx context.Context, f gr.ListFilter) (domain.ListResult[*gr.GoodsReceipt], error) {
	var out domain.ListResult[*gr.GoodsReceipt]
	err := r.s.do(ctx, func(st *state) error {
		var items []*gr.GoodsReceipt
		for _, v := range st.receipts {
			if !matchCommon(f.ListFilter, v.Number, string(v.Status), "", v.DeletionMark) {
				continue
			}
			if !sameID(f.PurchaseOrderID, v.PurchaseOrderID) || !sameID(f.SupplierID, v.SupplierID) {
				continue
			}
			doc := v
			items = append(items, &doc)
		}
		out = page(items, f.ListFilter,
			func(d *gr.GoodsReceipt) time.Time { return d.CreatedAt },
			func(d *gr.GoodsReceipt) string { return d.Number })
		return nil
	})
	return out, err
}

// --- invoices ---

type invoiceRepo struct{ s *Store }

func detachInvoice(inv invoice.Invoice) invoice.Invoice {
	inv.Lines = nil
	inv.Discrepancies = slices.Clone(inv.Discrepancies)
	return inv
}

func invoices(st *state) map[id.ID]invoice.Invoice { return st.invoices }

func (r invoiceRepo) Create(ctx context.Context, doc *invoice.Invoice) error {
	return r.s.do(ctx, func(st *state) error {
		return insert(st.invoices, "invoice", doc.ID, detachInvoice(*doc))
	})
}

func (r invoiceRepo) GetByID(ctx context.Context, docID id.ID) (*invoice.Invoice, error) {
	return get(ctx, r.s, invoices, "invoice", docID, detachInvoice)
}

func (r invoiceRepo) GetForUpdate(ctx context.Context, docID id.ID) (*invoice.Invoice, error) {
	return r.GetByID(ctx, docID)
}

func (r invoiceRepo) Update(ctx context.Context, doc *invoice.Invoice) error {
	return r.s.do(ctx, func(st *state) error {
		return update(st.invoices, "invoice", doc.ID, doc, detachInvoice)
	})
}

func (r invoiceRepo) GetLines(ctx context.Context, docID id.ID) ([]invoice.Line, error) {
	var out []invoice.Line
	err := r.s.do(ctx, func(st *state) error {
		out = slices.Clone(st.invoiceLines[docID])
		return nil
	})
	return out, err
}

func (r invoiceRepo) SaveLines(ctx context.Context, docID id.ID, lines []invoice.Line) error {
	return r.s.do(ctx, func(st *state) error {
		st.invoiceLines[docID] = slices.Clone(lines)
		return nil
	})
}

func (r invoiceRepo) ExistsSupplierNumber(ctx context.Context, supplierID id.ID, number string, excludeID id.ID) (bool, error) {
	found := false
	err := r.s.do(ctx, func(st *state) error {
		for _, v := range st.invoices {
			if v.SupplierID == supplierID && v.SupplierInvoiceNumber == number && v.ID != excludeID {
				found = true
				return nil
			}
		}
		return nil
	})
	return found, err
}

func (r invoiceRepo) ListByPayment(ctx context.Context, paymentID id.ID) ([]*invoice.Invoice, error) {
	var out []*invoice.Invoice
	err := r.s.do(ctx, func(st *state) error {
		for _, v := range st.invoices {
			if v.PaymentID != nil && *v.PaymentID == paymentID {
				doc := detachInvoice(v)
				out = append(out, &doc)
			}
		}
		slices.SortFunc(out, func(a, b *invoice.Invoice) int {
			switch {
			case a.Number < b.Number:
				return -1
			case a.Number > b.Number:
				return 1
			}
			return 0
		})
		return nil
	})
	return out, err
}

func (r invoiceRepo) List(ctx context.Context, f invoice.ListFilter) (domain.ListResult[*invoice.Invoice], error) {
	var out domain.ListResult[*invoice.Invoice]
	err := r.s.do(ctx, func(st *state) error {
		var items []*invoice.Invoice
		for _, v := range st.invoices {
			if !matchCommon(f.ListFilter, v.Number, string(v.Status), "", v.DeletionMark) {
				continue
			}
			if !sameID(f.SupplierID, v.SupplierID) || !sameID(f.PurchaseOrderID, v.PurchaseOrderID) {
				continue
			}
			if f.PaymentStatus != "" && f.PaymentStatus != v.PaymentStatus {
				continue
			}
			doc := detachInvoice(v)
			items = append(items, &doc)
		}
		out = page(items, f.ListFilter,
			func(d *invoice.Invoice) time.Time { return d.CreatedAt },
			func(d *invoice.Invoice) string { return d.Number })
		return nil
	})
	return out, err
}

// --- payments ---

type paymentRepo struct{ s *Store }

func detachPayment(p payment.Payment) payment.Payment {
	p.InvoiceIDs = nil
	return p
}

func payments(st *state) map[id.ID]payment.Payment { return st.payments }

func (r paymentRepo) Create(ctx context.Context, p *payment.Payment) error {
	return r.s.do(ctx, func(st *state) error {
		return insert(st.payments, "payment", p.ID, detachPayment(*p))
	})
}

func (r paymentRepo) GetByID(ctx context.Context, paymentID id.ID) (*payment.Payment, error) {
	return get(ctx, r.s, payments, "payment", paymentID, detachPayment)
}

func (r paymentRepo) GetForUpdate(ctx context.Context, paymentID id.ID) (*payment.Payment, error) {
	return r.GetByID(ctx, paymentID)
}

func (r paymentRepo) Update(ctx context.Context, p *payment.Payment) error {
	return r.s.do(ctx, func(st *state) error {
		return update(st.payments, "payment", p.ID, p, detachPayment)
	})
}

func (r paymentRepo) Delete(ctx context.Context, paymentID id.ID) error {
	return r.s.do(ctx, func(st *state) error {
		return markDeleted(st.payments, "payment", paymentID, func(p *payment.Payment) { p.DeletionMark = true })
	})
}

func (r paymentRepo) List(ctx context.Context, f payment.ListFilter) (domain.ListResult[*payment.Payment], error) {
	var out domain.ListResult[*payment.Payment]
	err := r.s.do(ctx, func(st *state) error {
		var items []*payment.Payment
		for _, v := range st.payments {
			if !matchCommon(f.ListFilter, v.Number, string(v.Status), "", v.DeletionMark) {
				continue
			}
			if !sameID(f.SupplierID, v.SupplierID) {
				continue
			}
			doc := v
			items = append(items, &doc)
		}
		out = page(items, f.ListFilter,
			func(d *payment.Payment) time.Time { return d.CreatedAt },
			func(d *payment.Payment) string { return d.Number })
		return nil
	})
	return out, err
}
