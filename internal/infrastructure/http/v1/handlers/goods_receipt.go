package handlers

import (
	"github.com/gin-gonic/gin"

	gr "procura/internal/domain/documents/goods_receipt"
	"procura/internal/infrastructure/http/v1/dto"
)

// GoodsReceiptHandler handles goods receipt endpoints.
type GoodsReceiptHandler struct {
	*BaseHandler
	service *gr.Service
}

// NewGoodsReceiptHandler creates a new goods receipt handler.
func NewGoodsReceiptHandler(base *BaseHandler, service *gr.Service) *GoodsReceiptHandler {
	return &GoodsReceiptHandler{BaseHandler: base, service: service}
}

// List handles GET /goods-receipts
func (h *GoodsReceiptHandler) List(c *gin.Context) {
	var q dto.GoodsReceiptListQuery
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

// Receive handles POST /goods-receipts
func (h *GoodsReceiptHandler) Receive(c *gin.Context) {
	var req dto.ReceiveRequest
	if !h.BindJSON(c, &req) {
		return
	}
	receipt, err := h.service.Receive(c.Request.Context(), h.Actor(c), req.ToCommand())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, receipt)
}

// Get handles GET /goods-receipts/:id
func (h *GoodsReceiptHandler) Get(c *gin.Context) {
	runGet(h.BaseHandler, c, h.service.Get)
}

// Inspect handles POST /goods-receipts/:id/inspect
func (h *GoodsReceiptHandler) Inspect(c *gin.Context) {
	docID, ok := h.ParseID(c)
	if !ok {
		return
	}
	var req dto.InspectRequest
	if !h.BindJSON(c, &req) {
		return
	}
	receipt, err := h.service.Inspect(c.Request.Context(), h.Actor(c), docID, gr.Inspection(req.Outcome), req.Notes)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, receipt)
}

// Accept handles POST /goods-receipts/:id/accept
func (h *GoodsReceiptHandler) Accept(c *gin.Context) {
	docID, ok := h.ParseID(c)
	if !ok {
		return
	}
	var req dto.AcceptRequest
	if c.Request.ContentLength != 0 && !h.BindJSON(c, &req) {
		return
	}
	receipt, err := h.service.Accept(c.Request.Context(), h.Actor(c), docID, req.ToCommand())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, receipt)
}

// Reject handles POST /goods-receipts/:id/reject
func (h *GoodsReceiptHandler) Reject(c *gin.Context) {
	runWithReason(h.BaseHandler, c, h.service.Reject)
}

// Post handles POST /goods-receipts/:id/post
func (h *GoodsReceiptHandler) Post(c *gin.Context) {
	runTransition(h.BaseHandler, c, h.service.Post)
}
