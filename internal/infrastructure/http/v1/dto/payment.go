package dto

import (
	"procura/internal/core/id"
	"procura/internal/domain/documents/payment"
)

// CreatePaymentRequest is the body of POST /payments.
type CreatePaymentRequest struct {
	InvoiceIDs    []id.ID `json:"invoiceIds" binding:"required,min=1"`
	PaymentMethod string  `json:"paymentMethod" binding:"omitempty,oneof=bank_transfer cheque mobile_money"`
}

// ToCommand converts the request.
func (r CreatePaymentRequest) ToCommand() payment.CreateCommand {
	return payment.CreateCommand{
		InvoiceIDs:    r.InvoiceIDs,
		PaymentMethod: payment.Method(r.PaymentMethod),
	}
}

// ProcessRequest is the body of POST /payments/:id/process.
type ProcessRequest struct {
	BankReference string `json:"bankReference" binding:"required"`
}

// PaymentListQuery adds payment filters to ListQuery.
type PaymentListQuery struct {
	ListQuery
	SupplierID string `form:"supplierId"`
}

// ToFilter converts the query.
func (q PaymentListQuery) ToFilter() (payment.ListFilter, error) {
	supplierID, err := optionalID(q.SupplierID)
	if err != nil {
		return payment.ListFilter{}, err
	}
	return payment.ListFilter{
		ListFilter: q.ListQuery.ToFilter(),
		SupplierID: supplierID,
	}, nil
}
