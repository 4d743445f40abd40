package v1

import (
	"github.com/gin-gonic/gin"
)

// ReadRouteHandler is implemented by every resource handler.
type ReadRouteHandler interface {
	List(c *gin.Context)
	Get(c *gin.Context)
}

// EditableRouteHandler is implemented by documents edited in draft.
type EditableRouteHandler interface {
	ReadRouteHandler
	Create(c *gin.Context)
	Update(c *gin.Context)
	Delete(c *gin.Context)
}

// ApprovalRouteHandler is implemented by documents routed through the
// approval matrix.
type ApprovalRouteHandler interface {
	Submit(c *gin.Context)
	Approve(c *gin.Context)
	Reject(c *gin.Context)
}

// RegisterReadRoutes registers GET "" and GET "/:id".
func RegisterReadRoutes(group *gin.RouterGroup, handler ReadRouteHandler) {
	group.GET("", handler.List)
	group.GET("/:id", handler.Get)
}

// RegisterEditableRoutes registers standard CRUD routes for a draft document.
//
// Usage:
//
//	handler := handlers.NewRequisitionHandler(base, svc.Requisitions)
//	RegisterEditableRoutes(v1.Group("/requisitions"), handler)
func RegisterEditableRoutes(group *gin.RouterGroup, handler EditableRouteHandler) {
	RegisterReadRoutes(group, handler)
	group.POST("", handler.Create)
	group.PUT("/:id", handler.Update)
	group.DELETE("/:id", handler.Delete)
}

// RegisterApprovalRoutes registers submit, approve and reject transitions.
func RegisterApprovalRoutes(group *gin.RouterGroup, handler ApprovalRouteHandler) {
	group.POST("/:id/submit", handler.Submit)
	group.POST("/:id/approve", handler.Approve)
	group.POST("/:id/reject", handler.Reject)
}
