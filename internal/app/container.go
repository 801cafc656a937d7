package app

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/nekogravitycat/parking-booking-backend/internal/allocation"
	"github.com/nekogravitycat/parking-booking-backend/internal/api"
	"github.com/nekogravitycat/parking-booking-backend/internal/auth"
	"github.com/nekogravitycat/parking-booking-backend/internal/booking"
	"github.com/nekogravitycat/parking-booking-backend/internal/compat"
	"github.com/nekogravitycat/parking-booking-backend/internal/inventory"
	"github.com/nekogravitycat/parking-booking-backend/internal/metrics"
	"github.com/nekogravitycat/parking-booking-backend/internal/pkg/storage"
	"github.com/nekogravitycat/parking-booking-backend/internal/vehicle"
)

// Config holds the dependencies and settings required to start the application.
type Config struct {
	IsProduction bool
	ProdOrigins  string
	ServiceName  string

	// DBPool selects the Postgres stores. Nil keeps everything in memory.
	DBPool      *pgxpool.Pool
	StoragePath string

	JWTSecret string
	JWTTTL    time.Duration

	// CompatRules overrides the default vehicle to slot class table.
	CompatRules    string
	HoldTTL        time.Duration
	SweepInterval  time.Duration
	SweepBatchSize int

	// Now overrides the coordinator clock; tests only.
	Now func() time.Time
}

// Container holds the initialized components that are needed externally.
type Container struct {
	Router      *gin.Engine
	JWTManager  *auth.JWTManager
	Inventory   inventory.Store
	Coordinator *booking.Coordinator
	Sweeper     *booking.Sweeper
	Registry    *prometheus.Registry
}

// NewContainer initializes all modules and returns the container.
func NewContainer(cfg Config) (*Container, error) {
	// Init Components
	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTTTL)

	matcher := compat.NewDefaultMatcher()
	if cfg.CompatRules != "" {
		rules, err := compat.ParseRules(cfg.CompatRules)
		if err != nil {
			return nil, fmt.Errorf("invalid compatibility rules: %w", err)
		}
		if matcher, err = compat.NewMatcher(rules); err != nil {
			return nil, fmt.Errorf("invalid compatibility rules: %w", err)
		}
	}

	blobs, err := storage.NewLocalStorage(cfg.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("failed to init storage: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	bookingMetrics, err := metrics.NewBooking(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	// Repositories
	var (
		store       inventory.Store
		vehicleRepo vehicle.Repository
		bookingRepo booking.Repository
	)
	if cfg.DBPool != nil {
		store = inventory.NewPgxStore(cfg.DBPool)
		vehicleRepo = vehicle.NewPgxRepository(cfg.DBPool)
		bookingRepo = booking.NewPgxRepository(cfg.DBPool)
	} else {
		store = inventory.NewMemoryStore()
		vehicleRepo = vehicle.NewMemoryRepository()
		bookingRepo = booking.NewMemoryRepository()
	}

	// Vehicle Module
	vehicleService := vehicle.NewService(vehicleRepo)

	// Inventory Module
	inventoryService := inventory.NewService(store, blobs)

	// Booking Module
	coordinator := booking.NewCoordinator(
		bookingRepo,
		store,
		vehicleService,
		allocation.NewPolicy(matcher, store),
		allocation.NewResolver(matcher, store),
		booking.Options{
			HoldTTL:        cfg.HoldTTL,
			SweepBatchSize: cfg.SweepBatchSize,
			Metrics:        bookingMetrics,
			Now:            cfg.Now,
		},
	)

	// Router
	router := api.NewRouter(api.Config{
		IsProduction:     cfg.IsProduction,
		ProdOrigins:      cfg.ProdOrigins,
		ServiceName:      cfg.ServiceName,
		VehicleService:   vehicleService,
		InventoryService: inventoryService,
		BookingService:   coordinator,
		JWTManager:       jwtManager,
		Gatherer:         registry,
	})

	return &Container{
		Router:      router,
		JWTManager:  jwtManager,
		Inventory:   store,
		Coordinator: coordinator,
		Sweeper:     booking.NewSweeper(coordinator, cfg.SweepInterval),
		Registry:    registry,
	}, nil
}
