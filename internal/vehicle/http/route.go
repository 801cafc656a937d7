package http

import (
	"github.com/gin-gonic/gin"
)

func RegisterRoutes(g *gin.RouterGroup, h *VehicleHandler, authMiddleware gin.HandlerFunc) {
	group := g.Group("/vehicles")

	// === Authenticated Routes ===
	group.Use(authMiddleware)
	{
		group.POST("", h.Register)
		group.GET("", h.List)
		group.GET("/:id", h.Get)
	}
}
