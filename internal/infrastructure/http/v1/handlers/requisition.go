package handlers

import (
	"github.com/gin-gonic/gin"

	"procura/internal/domain/documents/requisition"
	"procura/internal/infrastructure/http/v1/dto"
)

// RequisitionHandler handles purchase requisition endpoints.
type RequisitionHandler struct {
	*BaseHandler
	service *requisition.Service
}

// NewRequisitionHandler creates a new requisition handler.
func NewRequisitionHandler(base *BaseHandler, service *requisition.Service) *RequisitionHandler {
	return &RequisitionHandler{BaseHandler: base, service: service}
}

// List handles GET /requisitions
func (h *RequisitionHandler) List(c *gin.Context) {
	var q dto.RequisitionListQuery
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

// Create handles POST /requisitions
func (h *RequisitionHandler) Create(c *gin.Context) {
	var req dto.CreateRequisitionRequest
	if !h.BindJSON(c, &req) {
		return
	}
	doc, err := h.service.Create(c.Request.Context(), h.Actor(c), req.ToCommand())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, doc)
}

// Get handles GET /requisitions/:id
func (h *RequisitionHandler) Get(c *gin.Context) {
	runGet(h.BaseHandler, c, h.service.Get)
}

// Update handles PUT /requisitions/:id
func (h *RequisitionHandler) Update(c *gin.Context) {
	docID, ok := h.ParseID(c)
	if !ok {
		return
	}
	var req dto.UpdateRequisitionRequest
	if !h.BindJSON(c, &req) {
		return
	}
	doc, err := h.service.Update(c.Request.Context(), h.Actor(c), req.ToCommand(docID))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, doc)
}

// Delete handles DELETE /requisitions/:id
func (h *RequisitionHandler) Delete(c *gin.Context) {
	docID, ok := h.ParseID(c)
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), h.Actor(c), docID); err != nil {
		h.Error(c, err)
		return
	}
	h.NoContent(c)
}

// Submit handles POST /requisitions/:id/submit
func (h *RequisitionHandler) Submit(c *gin.Context) {
	runTransition(h.BaseHandler, c, h.service.Submit)
}

// Approve handles POST /requisitions/:id/approve
func (h *RequisitionHandler) Approve(c *gin.Context) {
	runDecision(h.BaseHandler, c, h.service.Approve)
}

// Reject handles POST /requisitions/:id/reject
func (h *RequisitionHandler) Reject(c *gin.Context) {
	runDecision(h.BaseHandler, c, h.service.Reject)
}

// Cancel handles POST /requisitions/:id/cancel
func (h *RequisitionHandler) Cancel(c *gin.Context) {
	runWithReason(h.BaseHandler, c, h.service.Cancel)
}
