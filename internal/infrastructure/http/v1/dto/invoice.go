package dto

import (
	"time"

	"procura/internal/core/id"
	"procura/internal/core/types"
	"procura/internal/domain/documents/invoice"
)

// InvoiceLineRequest is one billed order line.
type InvoiceLineRequest struct {
	PurchaseOrderLineID id.ID          `json:"purchaseOrderLineId" binding:"required"`
	Description         string         `json:"description"`
	Quantity            types.Quantity `json:"quantity"`
	UnitPrice           types.Money    `json:"unitPrice"`
}

// CreateInvoiceRequest is the body of POST /invoices.
type CreateInvoiceRequest struct {
	PurchaseOrderID       id.ID                `json:"purchaseOrderId" binding:"required"`
	GoodsReceiptID        *id.ID               `json:"goodsReceiptId"`
	SupplierInvoiceNumber string               `json:"supplierInvoiceNumber" binding:"required"`
	InvoiceDate           time.Time            `json:"invoiceDate" binding:"required"`
	DueDate               *time.Time           `json:"dueDate"`
	Tax                   types.Money          `json:"tax"`
	Lines                 []InvoiceLineRequest `json:"lines" binding:"required,min=1,dive"`
}

// ToCommand converts the request.
func (r CreateInvoiceRequest) ToCommand() invoice.CreateCommand {
	lines := make([]invoice.LineInput, len(r.Lines))
	for i, l := range r.Lines {
		lines[i] = invoice.LineInput{
			PurchaseOrderLineID: l.PurchaseOrderLineID,
			Description:         l.Description,
			Quantity:            l.Quantity,
			UnitPrice:           l.UnitPrice,
		}
	}
	return invoice.CreateCommand{
		PurchaseOrderID:       r.PurchaseOrderID,
		GoodsReceiptID:        r.GoodsReceiptID,
		SupplierInvoiceNumber: r.SupplierInvoiceNumber,
		InvoiceDate:           r.InvoiceDate,
		DueDate:               r.DueDate,
		Tax:                   r.Tax,
		Lines:                 lines,
	}
}

// UpdateInvoiceRequest is the body of PUT /invoices/:id.
type UpdateInvoiceRequest struct {
	Version int `json:"version" binding:"required,min=1"`
	CreateInvoiceRequest
}

// ToCommand converts the request.
func (r UpdateInvoiceRequest) ToCommand(docID id.ID) invoice.UpdateCommand {
	return invoice.UpdateCommand{
		ID:            docID,
		Version:       r.Version,
		CreateCommand: r.CreateInvoiceRequest.ToCommand(),
	}
}

// InvoiceListQuery adds invoice filters to ListQuery.
type InvoiceListQuery struct {
	ListQuery
	SupplierID      string `form:"supplierId"`
	PurchaseOrderID string `form:"purchaseOrderId"`
	PaymentStatus   string `form:"paymentStatus" binding:"omitempty,oneof=unpaid paid"`
}

// ToFilter converts the query.
func (q InvoiceListQuery) ToFilter() (invoice.ListFilter, error) {
	supplierID, err := optionalID(q.SupplierID)
	if err != nil {
		return invoice.ListFilter{}, err
	}
	orderID, err := optionalID(q.PurchaseOrderID)
	if err != nil {
		return invoice.ListFilter{}, err
	}
	return invoice.ListFilter{
		ListFilter:      q.ListQuery.ToFilter(),
		SupplierID:      supplierID,
		PurchaseOrderID: orderID,
		PaymentStatus:   invoice.PaymentStatus(q.PaymentStatus),
	}, nil
}
