// Package handlers provides HTTP request handlers.
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"procura/internal/core/apperror"
	appctx "procura/internal/core/context"
	"procura/internal/core/id"
	"procura/internal/domain/approval"
	"procura/internal/infrastructure/http/v1/dto"
)

// BaseHandler provides common handler utilities.
type BaseHandler struct{}

// NewBaseHandler creates a new base handler.
func NewBaseHandler() *BaseHandler {
	return &BaseHandler{}
}

// BindJSON binds and validates JSON request body.
func (h *BaseHandler) BindJSON(c *gin.Context, obj any) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		h.Error(c, apperror.NewValidation("invalid request body").WithDetail("error", err.Error()))
		return false
	}
	return true
}

// BindQuery binds and validates query parameters.
func (h *BaseHandler) BindQuery(c *gin.Context, obj any) bool {
	if err := c.ShouldBindQuery(obj); err != nil {
		h.Error(c, apperror.NewValidation("invalid query parameters").WithDetail("error", err.Error()))
		return false
	}
	return true
}

// Error registers err on the Gin context and aborts the request.
// The JSON response is produced by middleware.ErrorHandler.
func (h *BaseHandler) Error(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

// Actor returns the authenticated user id. Auth guarantees it is set on
// every protected route.
func (h *BaseHandler) Actor(c *gin.Context) string {
	return appctx.GetUserID(c.Request.Context())
}

// ParseID reads the :id path parameter.
func (h *BaseHandler) ParseID(c *gin.Context) (id.ID, bool) {
	docID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format").WithDetail("id", c.Param("id")))
		return id.ID{}, false
	}
	return docID, true
}

// ParseLevel validates an approval level from a decision body.
func (h *BaseHandler) ParseLevel(c *gin.Context, req dto.DecisionRequest) (approval.Level, bool) {
	level := approval.Level(req.Level)
	if !level.Valid() {
		h.Error(c, apperror.NewValidation("unknown approval level").WithDetail("level", req.Level))
		return "", false
	}
	return level, true
}

// BadQuery reports a malformed query value.
func (h *BaseHandler) BadQuery(c *gin.Context, err error) {
	h.Error(c, apperror.NewValidation("invalid query parameters").WithDetail("error", err.Error()))
}

// Created sends 201 response with data.
func (h *BaseHandler) Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, data)
}

// OK sends 200 response with data.
func (h *BaseHandler) OK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, data)
}

// NoContent sends 204 response.
func (h *BaseHandler) NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// runTransition handles the common POST /:id/<action> shape with no body.
func runTransition[T any](h *BaseHandler, c *gin.Context, fn func(ctx context.Context, actor string, docID id.ID) (T, error)) {
	docID, ok := h.ParseID(c)
	if !ok {
		return
	}
	doc, err := fn(c.Request.Context(), h.Actor(c), docID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, doc)
}

// runWithReason handles transitions that require a reason body.
func runWithReason[T any](h *BaseHandler, c *gin.Context, fn func(ctx context.Context, actor string, docID id.ID, reason string) (T, error)) {
	docID, ok := h.ParseID(c)
	if !ok {
		return
	}
	var req dto.ReasonRequest
	if !h.BindJSON(c, &req) {
		return
	}
	doc, err := fn(c.Request.Context(), h.Actor(c), docID, req.Reason)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, doc)
}

// runDecision handles approve and reject at one approval level.
func runDecision[T any](h *BaseHandler, c *gin.Context, fn func(ctx context.Context, actor string, docID id.ID, level approval.Level, comments string) (T, error)) {
	docID, ok := h.ParseID(c)
	if !ok {
		return
	}
	var req dto.DecisionRequest
	if !h.BindJSON(c, &req) {
		return
	}
	level, ok := h.ParseLevel(c, req)
	if !ok {
		return
	}
	doc, err := fn(c.Request.Context(), h.Actor(c), docID, level, req.Comments)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, doc)
}

// runGet handles GET /:id.
func runGet[T any](h *BaseHandler, c *gin.Context, fn func(ctx context.Context, docID id.ID) (T, error)) {
	docID, ok := h.ParseID(c)
	if !ok {
		return
	}
	doc, err := fn(c.Request.Context(), docID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, doc)
}
