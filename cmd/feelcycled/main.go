package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SherClockHolmes/webpush-go"

	"github.com/wataru-taketani/feelcycle-hub-sub000/config"
	"github.com/wataru-taketani/feelcycle-hub-sub000/internal/api"
	"github.com/wataru-taketani/feelcycle-hub-sub000/internal/batch"
	"github.com/wataru-taketani/feelcycle-hub-sub000/internal/db"
	"github.com/wataru-taketani/feelcycle-hub-sub000/internal/notification"
	"github.com/wataru-taketani/feelcycle-hub-sub000/internal/scraper"
	"github.com/wataru-taketani/feelcycle-hub-sub000/internal/store"
	"github.com/wataru-taketani/feelcycle-hub-sub000/internal/waitlist"
)

func main() {
	logger := log.New(os.Stdout, "feelcycled ", log.LstdFlags)

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatalf("failed to load configuration from %s: %v", configPath, err)
	}
	logger.Printf("configuration loaded successfully from %s", configPath)

	if cfg.Push.PublicKey == "" || cfg.Push.PrivateKey == "" {
		logger.Fatalf("VAPID keys must be configured. Please generate them and add them to your config file.")
	}

	webpushOptions := webpush.Options{
		VAPIDPublicKey:  cfg.Push.PublicKey,
		VAPIDPrivateKey: cfg.Push.PrivateKey,
		Subscriber:      cfg.Push.Subject,
		TTL:             cfg.Push.TTL,
	}

	gormDB, err := db.Init(&cfg.Database)
	if err != nil {
		logger.Fatalf("failed to initialize database: %v", err)
	}
	logger.Println("database initialized successfully")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	appStore := store.NewGormStore(gormDB)
	logger.Println("data store initialized")

	session, err := scraper.NewSession(&cfg.Scraper)
	if err != nil {
		logger.Fatalf("failed to initialize scraping session: %v", err)
	}

	loc, err := time.LoadLocation(cfg.Scraper.Timezone)
	if err != nil {
		logger.Fatalf("failed to load timezone %q: %v", cfg.Scraper.Timezone, err)
	}

	workerPool := notification.NewWorkerPool(cfg.WorkerPool.Size, gormDB, &webpushOptions)
	workerPool.Start(ctx)

	coordinator := batch.NewCoordinator(&cfg.Batch, appStore, session)
	runner := batch.NewRunner(&cfg.Batch, coordinator)
	go runner.Run(ctx)

	waitlists := waitlist.NewService(gormDB, appStore, workerPool, &cfg.Monitor, loc)
	go waitlists.Run(ctx)

	router := api.NewRouter(ctx, &cfg.Server, appStore, waitlists, coordinator, runner, &webpushOptions)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Printf("HTTP server starting on port %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("HTTP server ListenAndServe: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	<-stop
	logger.Println("Shutdown signal received, stopping services...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Fatalf("HTTP server Shutdown: %v", err)
	}

	logger.Println("Server gracefully stopped")
}
