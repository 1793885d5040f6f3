package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/distrimax/fulfillgo/internal/config"
	"github.com/distrimax/fulfillgo/internal/database"
	"github.com/distrimax/fulfillgo/internal/handlers"
	"github.com/distrimax/fulfillgo/internal/jobs"
	"github.com/distrimax/fulfillgo/internal/models"
	"github.com/distrimax/fulfillgo/internal/packing"
	"github.com/distrimax/fulfillgo/internal/services/invoicing"
	"github.com/distrimax/fulfillgo/internal/websocket"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Failed to load config: %v", err)
	}

	db, err := database.Connect(cfg.Database)
	if err != nil {
		log.Fatalf("❌ Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.AutoMigrate(
		&models.UserAuth{},
		&models.Order{},
		&models.OrderItem{},
		&models.ItemVerification{},
		&models.ScanLogEntry{},
		&models.PackagingEvidence{},
		&models.PackagingAudit{},
		&models.Product{},
	); err != nil {
		log.Fatalf("❌ Failed to migrate database: %v", err)
	}
	log.Println("✅ Database schema synchronized")

	// WebSocket hub doubles as the progress publisher
	hub := websocket.NewHub()
	go hub.Run()

	lockTTL := time.Duration(cfg.Packing.DefaultTTLMinutes) * time.Minute
	locks := packing.NewLockManager(db.DB, hub, lockTTL)
	verifier := packing.NewVerifier(db.DB, locks, hub)
	reconciler := packing.NewReconciler(db.DB, hub)

	invoicingSvc := invoicing.NewService(db.DB, reconciler, invoicing.Config{
		URL:          cfg.Invoicing.URL,
		Database:     cfg.Invoicing.Database,
		Username:     cfg.Invoicing.Username,
		Password:     cfg.Invoicing.Password,
		SyncInterval: cfg.Invoicing.SyncInterval,
	})
	invoicingSvc.Start()
	defer invoicingSvc.Stop()

	sweep := jobs.NewLockSweepJob(locks, cfg.Packing.SweepSchedule)
	if err := sweep.Start(); err != nil {
		log.Fatalf("❌ Failed to start lock sweep: %v", err)
	}
	defer sweep.Stop()

	router := handlers.NewRouter(db, cfg, locks, verifier, invoicingSvc, hub)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("🚀 Server listening on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("❌ Server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("🛑 Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("⚠️  Forced shutdown: %v", err)
	}
	log.Println("👋 Server stopped")
}
