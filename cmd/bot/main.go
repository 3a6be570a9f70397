package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"botfleet/internal/config"
	"botfleet/internal/database"
	"botfleet/internal/delivery"
	"botfleet/internal/eventlog"
	"botfleet/internal/gateway"
	"botfleet/internal/i18n"
	"botfleet/internal/metrics"
	"botfleet/internal/processor"
	"botfleet/internal/referral"
	"botfleet/internal/storage"
	"botfleet/internal/tenant"
	"botfleet/internal/worker"
)

func main() {
	// Load Configuration
	cfg := config.LoadConfig()

	// Connect to Database
	db, err := database.ConnectPostgres(cfg)
	if err != nil {
		log.Fatalf("Could not connect to database: %v", err)
	}

	// Connect to Redis
	rdb, err := database.ConnectRedis(cfg)
	if err != nil {
		log.Fatalf("Could not connect to redis: %v", err)
	}

	metrics.Register()

	// Stores
	users := storage.NewUserStore(db)
	tenants := storage.NewTenantStore(db)
	payments := storage.NewPaymentStore(db)
	events := eventlog.NewSQLStore(db)

	// Pipeline
	client := delivery.NewClient(delivery.Config{
		BaseURL:        cfg.TelegramAPIURL,
		TotalTimeout:   cfg.DeliveryTotalTimeout,
		ConnectTimeout: cfg.DeliveryConnectTimeout,
		ReadTimeout:    cfg.DeliveryReadTimeout,
		MaxAttempts:    cfg.DeliveryMaxAttempts,
	})
	counter := referral.NewCounter(events, users, cfg.RequiredInvites)
	handlers := processor.NewHandlers(client, users, counter, events, payments,
		i18n.NewTranslator(), cfg.RequiredInvites)
	pool := processor.NewPool(cfg.WorkerCount, cfg.QueueSize, handlers)

	cache := tenant.NewCache(tenants, rdb, cfg.TenantCacheTTL)
	gw := gateway.New(cache, pool, cfg.AllowedSourceCIDRs)
	sweeper := worker.NewSweeper(events, rdb, cfg.SweepInterval, cfg.EventRetention)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool.Start(ctx)
	go sweeper.Start(ctx)

	mux := http.NewServeMux()
	mux.HandleFunc("/webhook/", gw.Handle)
	mux.HandleFunc("/health", healthHandler(db, rdb))
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Printf("Webhook server listening on :%s", cfg.HTTPPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c
	log.Println("Shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown failed: %v", err)
	}

	cancel()
	pool.Wait()
	log.Println("Shutdown complete")
}

func healthHandler(db *gorm.DB, rdb *redis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := map[string]string{"database": "ok", "redis": "ok"}
		healthy := true

		if sqlDB, err := db.DB(); err != nil || sqlDB.PingContext(ctx) != nil {
			status["database"] = "unavailable"
			healthy = false
		}
		if err := rdb.Ping(ctx).Err(); err != nil {
			status["redis"] = "unavailable"
			healthy = false
		}

		w.Header().Set("Content-Type", "application/json")
		if !healthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(status)
	}
}
