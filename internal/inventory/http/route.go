package http

import (
	"github.com/gin-gonic/gin"
)

func RegisterRoutes(g *gin.RouterGroup, h *AreaHandler, authMiddleware, adminOnly gin.HandlerFunc) {
	group := g.Group("/areas")

	// === Authenticated Routes ===
	group.Use(authMiddleware)
	{
		group.GET("", h.List)
		group.GET("/:id", h.Get)
		group.GET("/:id/slots", h.ListSlots)
		group.GET("/:id/availability", h.Availability)
		group.GET("/:id/layout", h.Layout)
		group.GET("/:id/layout/thumbnail", h.LayoutThumbnail)
	}

	// === Admin Routes ===
	admin := group.Group("", adminOnly)
	{
		admin.POST("", h.Create)
		admin.POST("/:id/slots", h.AddSlot)
		admin.PUT("/:id/layout", h.UploadLayout)
	}
}
