package handlers

import (
	"github.com/gin-gonic/gin"

	po "procura/internal/domain/documents/purchase_order"
	"procura/internal/infrastructure/http/v1/dto"
)

// PurchaseOrderHandler handles purchase order endpoints.
type PurchaseOrderHandler struct {
	*BaseHandler
	service *po.Service
}

// NewPurchaseOrderHandler creates a new purchase order handler.
func NewPurchaseOrderHandler(base *BaseHandler, service *po.Service) *PurchaseOrderHandler {
	return &PurchaseOrderHandler{BaseHandler: base, service: service}
}

// List handles GET /purchase-orders
func (h *PurchaseOrderHandler) List(c *gin.Context) {
	var q dto.PurchaseOrderListQuery
	if !h.BindQuery(c, &q) {
		return
	}
	filter, err := q.ToFilter()
	if err != nil {
		h.BadQuery(c, err)
		return
	}
	result, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, result)
}

// Create handles POST /purchase-orders. Orders are always converted from an
// approved requisition.
func (h *PurchaseOrderHandler) Create(c *gin.Context) {
	var req dto.CreatePurchaseOrderRequest
	if !h.BindJSON(c, &req) {
		return
	}
	order, err := h.service.CreateFromRequisition(c.Request.Context(), h.Actor(c), req.ToCommand())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, order)
}

// Get handles GET /purchase-orders/:id
func (h *PurchaseOrderHandler) Get(c *gin.Context) {
	runGet(h.BaseHandler, c, h.service.Get)
}

// Issue handles POST /purchase-orders/:id/issue
func (h *PurchaseOrderHandler) Issue(c *gin.Context) {
	runTransition(h.BaseHandler, c, h.service.Issue)
}

// Acknowledge handles POST /purchase-orders/:id/acknowledge
func (h *PurchaseOrderHandler) Acknowledge(c *gin.Context) {
	docID, ok := h.ParseID(c)
	if !ok {
		return
	}
	var req dto.AcknowledgeRequest
	if c.Request.ContentLength != 0 && !h.BindJSON(c, &req) {
		return
	}
	order, err := h.service.Acknowledge(c.Request.Context(), h.Actor(c), docID, req.SupplierReference)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, order)
}

// Cancel handles POST /purchase-orders/:id/cancel
func (h *PurchaseOrderHandler) Cancel(c *gin.Context) {
	runWithReason(h.BaseHandler, c, h.service.Cancel)
}
