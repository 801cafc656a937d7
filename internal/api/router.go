package api

import (
	"net/http"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nekogravitycat/parking-booking-backend/internal/auth"
	"github.com/nekogravitycat/parking-booking-backend/internal/booking"
	bookingHttp "github.com/nekogravitycat/parking-booking-backend/internal/booking/http"
	"github.com/nekogravitycat/parking-booking-backend/internal/inventory"
	inventoryHttp "github.com/nekogravitycat/parking-booking-backend/internal/inventory/http"
	"github.com/nekogravitycat/parking-booking-backend/internal/telemetry"
	"github.com/nekogravitycat/parking-booking-backend/internal/vehicle"
	vehicleHttp "github.com/nekogravitycat/parking-booking-backend/internal/vehicle/http"
)

// Config carries everything the router needs to build its handlers.
type Config struct {
	IsProduction bool
	ProdOrigins  string
	ServiceName  string

	VehicleService   vehicle.Service
	InventoryService inventory.Service
	BookingService   booking.Service
	JWTManager       *auth.JWTManager

	// Gatherer backs /metrics. Nil disables the endpoint.
	Gatherer prometheus.Gatherer
}

// NewRouter initializes the HTTP router engine.
// It is responsible for assembling middleware (CORS, Logger, Tracing, Auth) and registering routes for various modules.
func NewRouter(cfg Config) *gin.Engine {
	r := gin.New()

	// Global Middleware:
	// - Logger: Logs request information to the console.
	// - Recovery: Captures panics to prevent server crashes and returns a 500 error.
	// - RequestID / Tracing: Tag every request and open a server span for it.
	r.Use(gin.Logger(), gin.Recovery())
	r.Use(telemetry.RequestID(), telemetry.Tracing(cfg.ServiceName))

	// Configure CORS (Cross-Origin Resource Sharing).
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = allowedOrigins(cfg.IsProduction, cfg.ProdOrigins)
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", telemetry.RequestIDHeader}
	corsConfig.ExposeHeaders = []string{telemetry.RequestIDHeader}
	r.Use(cors.New(corsConfig))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if cfg.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})))
	}

	// authMiddleware: Validates if the request contains a valid JWT.
	authMiddleware := auth.AuthRequired(cfg.JWTManager)
	// adminMiddleware: Further checks that the token carries the admin role.
	adminMiddleware := auth.RequireAdmin()

	// Initialize HTTP Handlers for each module (injecting Service dependencies).
	vehicleHandler := vehicleHttp.NewHandler(cfg.VehicleService)
	areaHandler := inventoryHttp.NewHandler(cfg.InventoryService)
	bookingHandler := bookingHttp.NewHandler(cfg.BookingService)

	// Register API routes under /v1
	v1 := r.Group("/v1")
	{
		vehicleHttp.RegisterRoutes(v1, vehicleHandler, authMiddleware)
		inventoryHttp.RegisterRoutes(v1, areaHandler, authMiddleware, adminMiddleware)
		bookingHttp.RegisterRoutes(v1, bookingHandler, authMiddleware)
	}

	return r
}

func allowedOrigins(isProduction bool, prodOrigins string) []string {
	if !isProduction {
		return []string{
			"http://localhost:8081", // Swagger
		}
	}

	var origins []string
	for _, o := range strings.Split(prodOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}
