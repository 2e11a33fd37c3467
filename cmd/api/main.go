package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/valtrion/allocd/internal/adapter/handler"
	"github.com/valtrion/allocd/internal/adapter/repository/postgres"
	"github.com/valtrion/allocd/internal/core/services"
	"github.com/valtrion/allocd/internal/obs"
	"github.com/valtrion/allocd/internal/platform/clock"
	"github.com/valtrion/allocd/internal/platform/database"
	"github.com/valtrion/allocd/migrations"
)

func loadEnv(filepath string) {
	file, err := os.Open(filepath)

	if err != nil {
		log.Println("No .env file found, using OS environment variables.")
		return
	}

	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) == 2 {
			key := strings.TrimSpace(parts[0])
			value := strings.TrimSpace(parts[1])

			os.Setenv(key, value)
		}
	}

	if err := scanner.Err(); err != nil {
		log.Printf("Failed to read .env file: %v\n", err)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	loadEnv(".env")

	dbConfig := database.Config{
		Host:     envOr("DB_HOST", "localhost"),
		Port:     envOr("DB_PORT", "5432"),
		User:     envOr("DB_USER", "postgres"),
		Password: os.Getenv("DB_PASSWORD"),
		DBName:   envOr("DB_NAME", "allocd"),
	}

	db, err := database.NewPostgresDB(dbConfig)

	if err != nil {
		log.Fatalf("Failed to connect to db after retries: %v", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)
	defer db.Close()

	startupCtx, cancelStartup := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelStartup()

	if err := migrations.Apply(startupCtx, db); err != nil {
		log.Fatalf("Failed to apply migrations: %v", err)
	}

	redisHost := envOr("REDIS_HOST", "localhost")
	redisPort := envOr("REDIS_PORT", "6379")

	log.Printf("Connecting to Redis at %s:%s...", redisHost, redisPort)

	redisClient := redis.NewClient(&redis.Options{
		Addr: fmt.Sprintf("%s:%s", redisHost, redisPort),
		DB:   0,
	})

	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	log.Println("Redis connected successfully!")

	logger := obs.NewLogger()
	metrics := obs.NewMetrics()

	unitRepo := postgres.NewUnitRepository(db)
	requestRepo := postgres.NewRequestRepository(db)
	allocRepo := postgres.NewAllocationRepository(db)
	auditRepo := postgres.NewAuditRepository(db)

	allocationService := services.NewAllocationService(
		unitRepo, requestRepo, allocRepo, auditRepo,
		redisClient, clock.NewSystem(), logger, metrics,
	)

	allocationHandler := handler.NewAllocationHandler(allocationService)

	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()

	if raw := os.Getenv("SWEEP_INTERVAL"); raw != "" {
		interval, err := time.ParseDuration(raw)
		if err != nil || interval <= 0 {
			log.Fatalf("Invalid SWEEP_INTERVAL %q: %v", raw, err)
		}
		go allocationService.RunSweep(sweepCtx, interval)
	}

	mux := http.NewServeMux()

	mux.HandleFunc("/allocations/run-batch", allocationHandler.RunBatch)
	mux.HandleFunc("/allocations/", allocationHandler.Release)
	mux.HandleFunc("/units", allocationHandler.Units)
	mux.HandleFunc("/requests", allocationHandler.Requests)
	mux.HandleFunc("/audit", allocationHandler.Audit)
	mux.HandleFunc("/stats", allocationHandler.Stats)
	mux.Handle("/metrics", promhttp.Handler())

	port := envOr("PORT", "8080")

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      handler.RequestLogger(mux, logger),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Printf("Server starting on port :%s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server startup failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	<-quit
	log.Println("Shutting down server...")
	stopSweep()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exiting")
}
