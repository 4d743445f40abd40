package handlers

import (
	"github.com/gin-gonic/gin"

	"procura/internal/domain/budget"
	"procura/internal/infrastructure/http/v1/dto"
)

// BudgetHandler handles budget line endpoints.
type BudgetHandler struct {
	*BaseHandler
	service *budget.Service
}

// NewBudgetHandler creates a new budget handler.
func NewBudgetHandler(base *BaseHandler, service *budget.Service) *BudgetHandler {
	return &BudgetHandler{BaseHandler: base, service: service}
}

// List handles GET /budget-lines
func (h *BudgetHandler) List(c *gin.Context) {
	var q dto.BudgetListQuery
	if !h.BindQuery(c, &q) {
		return
	}
	result, err := h.service.List(c.Request.Context(), q.ToFilter())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, result)
}

// Create handles POST /budget-lines
func (h *BudgetHandler) Create(c *gin.Context) {
	var req dto.CreateBudgetLineRequest
	if !h.BindJSON(c, &req) {
		return
	}
	line, err := h.service.Create(c.Request.Context(), h.Actor(c), req.ToCommand())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, line)
}

// Get handles GET /budget-lines/:id
func (h *BudgetHandler) Get(c *gin.Context) {
	runGet(h.BaseHandler, c, h.service.Get)
}

// Update handles PUT /budget-lines/:id
func (h *BudgetHandler) Update(c *gin.Context) {
	lineID, ok := h.ParseID(c)
	if !ok {
		return
	}
	var req dto.UpdateBudgetLineRequest
	if !h.BindJSON(c, &req) {
		return
	}
	line, err := h.service.Update(c.Request.Context(), h.Actor(c), req.ToCommand(lineID))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, line)
}

// Delete handles DELETE /budget-lines/:id
func (h *BudgetHandler) Delete(c *gin.Context) {
	lineID, ok := h.ParseID(c)
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), h.Actor(c), lineID); err != nil {
		h.Error(c, err)
		return
	}
	h.NoContent(c)
}

// Submit handles POST /budget-lines/:id/submit
func (h *BudgetHandler) Submit(c *gin.Context) {
	runTransition(h.BaseHandler, c, h.service.Submit)
}

// Approve handles POST /budget-lines/:id/approve
func (h *BudgetHandler) Approve(c *gin.Context) {
	runDecision(h.BaseHandler, c, h.service.Approve)
}

// Reject handles POST /budget-lines/:id/reject
func (h *BudgetHandler) Reject(c *gin.Context) {
	runDecision(h.BaseHandler, c, h.service.Reject)
}

// Reallocate handles POST /budget-lines/:id/reallocate
func (h *BudgetHandler) Reallocate(c *gin.Context) {
	lineID, ok := h.ParseID(c)
	if !ok {
		return
	}
	var req dto.ReallocateRequest
	if !h.BindJSON(c, &req) {
		return
	}
	line, err := h.service.Reallocate(c.Request.Context(), h.Actor(c), lineID, req.Allocated)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, line)
}

// Journal handles GET /budget-lines/:id/journal
func (h *BudgetHandler) Journal(c *gin.Context) {
	lineID, ok := h.ParseID(c)
	if !ok {
		return
	}
	entries, err := h.service.Journal(c.Request.Context(), lineID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, gin.H{"items": entries})
}
