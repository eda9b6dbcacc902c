package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/syntrixbase/metasync/internal/config"
	"github.com/syntrixbase/metasync/internal/logging"
	"github.com/syntrixbase/metasync/internal/services"
)

func main() {
	// 0. Parse Command Line Flags
	runHTTP := flag.Bool("http", true, "Run health and metrics HTTP server")
	flag.Parse()

	// 1. Load Configuration
	cfg := config.LoadConfig()

	if err := logging.Initialize(cfg.Logging); err != nil {
		log.Fatalf("Failed to initialize logging: %v", err)
	}
	defer logging.Shutdown()

	// 2. Initialize Service Manager
	opts := services.Options{
		RunHTTP: *runHTTP,
	}
	mgr := services.NewManager(cfg, opts)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := mgr.Init(ctx); err != nil {
		log.Fatalf("Failed to initialize services: %v", err)
	}

	// 3. Start Services
	// Context for background tasks
	bgCtx, bgCancel := context.WithCancel(context.Background())
	defer bgCancel()

	if err := mgr.Start(bgCtx); err != nil {
		log.Fatalf("Failed to start services: %v", err)
	}

	// 4. Wait for Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down...")

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	// Cancel background tasks first
	bgCancel()

	mgr.Shutdown(shutdownCtx)

	log.Println("Stopped.")
}
