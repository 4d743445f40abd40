package dto

import (
	"procura/internal/core/id"
	"procura/internal/core/types"
	po "procura/internal/domain/documents/purchase_order"
)

// OrderLineRequest overrides one line when converting a requisition.
type OrderLineRequest struct {
	RequisitionLineID *id.ID         `json:"requisitionLineId"`
	Description       string         `json:"description"`
	Quantity          types.Quantity `json:"quantity"`
	UnitPrice         types.Money    `json:"unitPrice"`
}

// CreatePurchaseOrderRequest is the body of POST /purchase-orders.
// Without lines the order copies the requisition lines.
type CreatePurchaseOrderRequest struct {
	RequisitionID id.ID              `json:"requisitionId" binding:"required"`
	SupplierID    id.ID              `json:"supplierId" binding:"required"`
	Lines         []OrderLineRequest `json:"lines"`
}

// ToCommand converts the request.
func (r CreatePurchaseOrderRequest) ToCommand() po.ConvertCommand {
	var lines []po.LineInput
	for _, l := range r.Lines {
		lines = append(lines, po.LineInput{
			RequisitionLineID: l.RequisitionLineID,
			Description:       l.Description,
			Quantity:          l.Quantity,
			UnitPrice:         l.UnitPrice,
		})
	}
	return po.ConvertCommand{
		RequisitionID: r.RequisitionID,
		SupplierID:    r.SupplierID,
		Lines:         lines,
	}
}

// AcknowledgeRequest is the body of POST /purchase-orders/:id/acknowledge.
type AcknowledgeRequest struct {
	SupplierReference string `json:"supplierReference"`
}

// PurchaseOrderListQuery adds order filters to ListQuery.
type PurchaseOrderListQuery struct {
	ListQuery
	SupplierID    string `form:"supplierId"`
	RequisitionID string `form:"requisitionId"`
}

// ToFilter converts the query.
func (q PurchaseOrderListQuery) ToFilter() (po.ListFilter, error) {
	supplierID, err := optionalID(q.SupplierID)
	if err != nil {
		return po.ListFilter{}, err
	}
	requisitionID, err := optionalID(q.RequisitionID)
	if err != nil {
		return po.ListFilter{}, err
	}
	return po.ListFilter{
		ListFilter:    q.ListQuery.ToFilter(),
		SupplierID:    supplierID,
		RequisitionID: requisitionID,
	}, nil
}
