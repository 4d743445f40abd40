package handlers

import (
	"github.com/gin-gonic/gin"

	"procura/internal/domain/documents/payment"
	"procura/internal/infrastructure/http/v1/dto"
)

// PaymentHandler handles payment endpoints.
type PaymentHandler struct {
	*BaseHandler
	service *payment.Service
}

// NewPaymentHandler creates a new payment handler.
func NewPaymentHandler(base *BaseHandler, service *payment.Service) *PaymentHandler {
	return &PaymentHandler{BaseHandler: base, service: service}
}

// List handles GET /payments
func (h *PaymentHandler) List(c *gin.Context) {
	var q dto.PaymentListQuery
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

// Create handles POST /payments
func (h *PaymentHandler) Create(c *gin.Context) {
	var req dto.CreatePaymentRequest
	if !h.BindJSON(c, &req) {
		return
	}
	p, err := h.service.Create(c.Request.Context(), h.Actor(c), req.ToCommand())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, p)
}

// Get handles GET /payments/:id
func (h *PaymentHandler) Get(c *gin.Context) {
	runGet(h.BaseHandler, c, h.service.Get)
}

// Delete handles DELETE /payments/:id
func (h *PaymentHandler) Delete(c *gin.Context) {
	paymentID, ok := h.ParseID(c)
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), h.Actor(c), paymentID); err != nil {
		h.Error(c, err)
		return
	}
	h.NoContent(c)
}

// Submit handles POST /payments/:id/submit
func (h *PaymentHandler) Submit(c *gin.Context) {
	runTransition(h.BaseHandler, c, h.service.Submit)
}

// Approve handles POST /payments/:id/approve
func (h *PaymentHandler) Approve(c *gin.Context) {
	runTransition(h.BaseHandler, c, h.service.Approve)
}

// Reject handles POST /payments/:id/reject
func (h *PaymentHandler) Reject(c *gin.Context) {
	runWithReason(h.BaseHandler, c, h.service.Reject)
}

// Process handles POST /payments/:id/process
func (h *PaymentHandler) Process(c *gin.Context) {
	paymentID, ok := h.ParseID(c)
	if !ok {
		return
	}
	var req dto.ProcessRequest
	if !h.BindJSON(c, &req) {
		return
	}
	p, err := h.service.Process(c.Request.Context(), h.Actor(c), paymentID, req.BankReference)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, p)
}

// Settle handles POST /payments/:id/settle
func (h *PaymentHandler) Settle(c *gin.Context) {
	runTransition(h.BaseHandler, c, h.service.ConfirmSettlement)
}
