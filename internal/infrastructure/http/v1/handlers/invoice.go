package handlers

import (
	"github.com/gin-gonic/gin"

	"procura/internal/domain/documents/invoice"
	"procura/internal/infrastructure/http/v1/dto"
)

// InvoiceHandler handles supplier invoice endpoints.
type InvoiceHandler struct {
	*BaseHandler
	service *invoice.Service
}

// NewInvoiceHandler creates a new invoice handler.
func NewInvoiceHandler(base *BaseHandler, service *invoice.Service) *InvoiceHandler {
	return &InvoiceHandler{BaseHandler: base, service: service}
}

// List handles GET /invoices
func (h *InvoiceHandler) List(c *gin.Context) {
	var q dto.InvoiceListQuery
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

// Create handles POST /invoices
func (h *InvoiceHandler) Create(c *gin.Context) {
	var req dto.CreateInvoiceRequest
	if !h.BindJSON(c, &req) {
		return
	}
	inv, err := h.service.Create(c.Request.Context(), h.Actor(c), req.ToCommand())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, inv)
}

// Get handles GET /invoices/:id
func (h *InvoiceHandler) Get(c *gin.Context) {
	runGet(h.BaseHandler, c, h.service.Get)
}

// Update handles PUT /invoices/:id
func (h *InvoiceHandler) Update(c *gin.Context) {
	docID, ok := h.ParseID(c)
	if !ok {
		return
	}
	var req dto.UpdateInvoiceRequest
	if !h.BindJSON(c, &req) {
		return
	}
	inv, err := h.service.Update(c.Request.Context(), h.Actor(c), req.ToCommand(docID))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, inv)
}

// Submit handles POST /invoices/:id/submit
func (h *InvoiceHandler) Submit(c *gin.Context) {
	runTransition(h.BaseHandler, c, h.service.Submit)
}

// Resubmit handles POST /invoices/:id/resubmit
func (h *InvoiceHandler) Resubmit(c *gin.Context) {
	runTransition(h.BaseHandler, c, h.service.Resubmit)
}

// Verify handles POST /invoices/:id/verify. A failed match is persisted as a
// rejection and reported as MATCH_FAILURE with its discrepancies.
func (h *InvoiceHandler) Verify(c *gin.Context) {
	runTransition(h.BaseHandler, c, h.service.Verify)
}

// Match handles GET /invoices/:id/match. It evaluates the three-way match
// without changing the invoice.
func (h *InvoiceHandler) Match(c *gin.Context) {
	runGet(h.BaseHandler, c, h.service.CheckMatch)
}
