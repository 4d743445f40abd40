package dto

import (
	"time"

	"procura/internal/core/id"
	"procura/internal/core/types"
	gr "procura/internal/domain/documents/goods_receipt"
)

// ReceiptLineRequest is one delivered order line.
type ReceiptLineRequest struct {
	PurchaseOrderLineID id.ID          `json:"purchaseOrderLineId" binding:"required"`
	Quantity            types.Quantity `json:"quantity"`
	Condition           string         `json:"condition"`
	BatchNumber         string         `json:"batchNumber"`
	ExpiryDate          *time.Time     `json:"expiryDate"`
}

// ReceiveRequest is the body of POST /goods-receipts.
type ReceiveRequest struct {
	PurchaseOrderID id.ID                `json:"purchaseOrderId" binding:"required"`
	DeliveryNote    string               `json:"deliveryNote"`
	Lines           []ReceiptLineRequest `json:"lines" binding:"required,min=1,dive"`
}

// ToCommand converts the request.
func (r ReceiveRequest) ToCommand() gr.ReceiveCommand {
	lines := make([]gr.LineInput, len(r.Lines))
	for i, l := range r.Lines {
		lines[i] = gr.LineInput{
			PurchaseOrderLineID: l.PurchaseOrderLineID,
			Quantity:            l.Quantity,
			Condition:           gr.Condition(l.Condition),
			BatchNumber:         l.BatchNumber,
			ExpiryDate:          l.ExpiryDate,
		}
	}
	return gr.ReceiveCommand{
		PurchaseOrderID: r.PurchaseOrderID,
		DeliveryNote:    r.DeliveryNote,
		Lines:           lines,
	}
}

// InspectRequest is the body of POST /goods-receipts/:id/inspect.
type InspectRequest struct {
	Outcome string `json:"outcome" binding:"required,oneof=passed rejected"`
	Notes   string `json:"notes"`
}

// AcceptLineRequest sets the accepted quantity of one receipt line.
type AcceptLineRequest struct {
	LineID   id.ID          `json:"lineId" binding:"required"`
	Accepted types.Quantity `json:"accepted"`
}

// AcceptRequest is the body of POST /goods-receipts/:id/accept.
// Without lines everything received is accepted.
type AcceptRequest struct {
	Lines  []AcceptLineRequest `json:"lines"`
	Reason string              `json:"reason"`
}

// ToCommand converts the request.
func (r AcceptRequest) ToCommand() gr.AcceptCommand {
	var lines []gr.AcceptLine
	for _, l := range r.Lines {
		lines = append(lines, gr.AcceptLine{LineID: l.LineID, Accepted: l.Accepted})
	}
	return gr.AcceptCommand{Lines: lines, Reason: r.Reason}
}

// GoodsReceiptListQuery adds receipt filters to ListQuery.
type GoodsReceiptListQuery struct {
	ListQuery
	PurchaseOrderID string `form:"purchaseOrderId"`
	SupplierID      string `form:"supplierId"`
}

// ToFilter converts the query.
func (q GoodsReceiptListQuery) ToFilter() (gr.ListFilter, error) {
	orderID, err := optionalID(q.PurchaseOrderID)
	if err != nil {
		return gr.ListFilter{}, err
	}
	supplierID, err := optionalID(q.SupplierID)
	if err != nil {
		return gr.ListFilter{}, err
	}
	return gr.ListFilter{
		ListFilter:      q.ListQuery.ToFilter(),
		PurchaseOrderID: orderID,
		SupplierID:      supplierID,
	}, nil
}
