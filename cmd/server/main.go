package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nekogravitycat/parking-booking-backend/internal/app"
	"github.com/nekogravitycat/parking-booking-backend/internal/config"
	"github.com/nekogravitycat/parking-booking-backend/internal/db"
	"github.com/nekogravitycat/parking-booking-backend/internal/inventory"
	"github.com/nekogravitycat/parking-booking-backend/internal/logging"
	"github.com/nekogravitycat/parking-booking-backend/internal/telemetry"
)

func main() {
	// For receiving Ctrl+C / SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load config
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logging.Init(cfg.ServiceName, cfg.AppEnv, cfg.LogLevel)

	tp, err := telemetry.Init(ctx, cfg.ServiceName, cfg.OTLPEndpoint)
	if err != nil {
		log.Fatalf("failed to init telemetry: %v", err)
	}

	// Connect DB; without a DSN every store lives in memory.
	var pool *pgxpool.Pool
	if cfg.DBDSN != "" {
		pool, err = db.NewPool(ctx, cfg.DBDSN, cfg.DBMaxConns)
		if err != nil {
			log.Fatalf("failed to connect to db: %v", err)
		}
		defer pool.Close()

		if err := db.EnsureSchema(ctx, pool); err != nil {
			log.Fatalf("failed to apply schema: %v", err)
		}
	} else {
		logging.Warn(ctx, "DB_DSN not set, using in-memory stores")
	}

	// Init components
	container, err := app.NewContainer(app.Config{
		IsProduction:   cfg.IsProduction,
		ProdOrigins:    cfg.ProdOrigins,
		ServiceName:    cfg.ServiceName,
		DBPool:         pool,
		StoragePath:    cfg.StoragePath,
		JWTSecret:      cfg.JWTSecret,
		JWTTTL:         cfg.JWTAccessTokenTTL,
		CompatRules:    cfg.CompatRules,
		HoldTTL:        cfg.HoldTTL,
		SweepInterval:  cfg.SweepInterval,
		SweepBatchSize: cfg.SweepBatchSize,
	})
	if err != nil {
		log.Fatalf("failed to init app: %v", err)
	}

	if cfg.InventorySeedFile != "" {
		if err := seedInventory(ctx, container.Inventory, cfg.InventorySeedFile); err != nil {
			log.Fatalf("failed to seed inventory: %v", err)
		}
	}

	if err := container.Coordinator.SyncHeldGauge(ctx); err != nil {
		logging.Warn(ctx, "failed to sync held slot gauge", "error", err.Error())
	}

	// Expiration sweeper stops with ctx.
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		container.Sweeper.Run(ctx)
	}()

	// Use http.Server for graceful shutdown
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           container.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Run server in separate goroutine
	go func() {
		logging.Info(ctx, "server running", "addr", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	// Wait for Ctrl+C
	<-ctx.Done()
	log.Println("shutdown signal received")

	// Create a shutdown context with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Shutdown HTTP server
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("server forced to shutdown: %v", err)
	}
	wg.Wait()

	if err := tp.Shutdown(shutdownCtx); err != nil {
		log.Printf("telemetry shutdown failed: %v", err)
	}

	log.Println("server exited gracefully")
}

func seedInventory(ctx context.Context, store inventory.Store, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	n, err := inventory.LoadSeed(ctx, store, f)
	if err != nil {
		return err
	}
	logging.Info(ctx, "inventory seeded", "slots", n, "file", path)
	return nil
}
