// Package main runs the swap execution service: the HTTP/WebSocket API,
// the admission queue with its worker pool, and the order processor
// routing across the configured venues.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"swap-engine/internal/broadcast"
	"swap-engine/internal/processor"
	"swap-engine/internal/queue"
	"swap-engine/internal/router"
	"swap-engine/internal/server"
	"swap-engine/internal/storage"
	chstore "swap-engine/internal/storage/clickhouse"
	"swap-engine/internal/storage/memory"
	"swap-engine/internal/storage/migrations"
	pgstore "swap-engine/internal/storage/postgres"
	"swap-engine/internal/venue"
	"swap-engine/internal/venue/mock"
)

func main() {
	// Load .env file if exists
	_ = godotenv.Load()

	// Parse flags (env vars as defaults)
	addr := flag.String("addr", envOr("SERVER_ADDR", ":8080"), "HTTP listen address")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string (optional, quote analytics)")
	redisAddr := flag.String("redis-addr", os.Getenv("REDIS_ADDR"), "Redis address for the job queue")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage and queue instead of PostgreSQL/Redis")
	concurrency := flag.Int("concurrency", envOrInt("QUEUE_CONCURRENCY", queue.DefaultConcurrency), "Queue worker count")
	rateLimit := flag.Int("rate-limit", envOrInt("QUEUE_RATE_LIMIT", queue.DefaultRateLimit), "Max job starts per rate window")
	rateWindow := flag.Duration("rate-window", queue.DefaultRateWindow, "Rolling window for the job start cap")
	maxAttempts := flag.Int("max-attempts", envOrInt("PROCESSOR_MAX_ATTEMPTS", processor.DefaultMaxAttempts), "Pipeline attempts per order")
	venueDelay := flag.Duration("venue-delay", 500*time.Millisecond, "Simulated venue latency")

	flag.Parse()

	// Setup logger
	logger := log.New(os.Stdout, "[swap-engine] ", log.LstdFlags|log.Lshortfile)

	if !*useMemory && *postgresDSN == "" {
		logger.Fatal("--postgres-dsn is required (use --use-memory for in-memory storage)")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	orderStore, quoteStore, cleanup, err := createStores(ctx, *postgresDSN, *clickhouseDSN, *useMemory, logger)
	if err != nil {
		logger.Fatalf("Failed to create stores: %v", err)
	}
	defer cleanup()

	jobStore, err := createJobStore(ctx, *redisAddr, *useMemory, logger)
	if err != nil {
		logger.Fatalf("Failed to create job store: %v", err)
	}

	// Venues in fixed registration order; the earlier one wins quote ties.
	providers := []venue.Provider{
		mock.New("Raydium", 5, mock.WithDelay(*venueDelay)),
		mock.New("Meteora", 4, mock.WithDelay(*venueDelay)),
	}

	registry := broadcast.NewRegistry(logger)
	rt := router.New(providers, quoteStore, logger)
	proc := processor.New(orderStore, rt, registry, logger, processor.Config{
		MaxAttempts: *maxAttempts,
	})

	q := queue.New(jobStore, proc, logger, queue.Config{
		Concurrency: *concurrency,
		RateLimit:   *rateLimit,
		RateWindow:  *rateWindow,
	})
	q.Start(ctx)

	api := server.New(orderStore, q, registry, logger)
	httpSrv := &http.Server{
		Addr:    *addr,
		Handler: api.Handler(),
	}

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, initiating graceful shutdown...", sig)

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			logger.Printf("HTTP shutdown error: %v", err)
		}
		cancel()

		select {
		case sig := <-sigCh:
			logger.Printf("Received second signal %v, forcing immediate shutdown", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Println("Graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		}
	}()

	logger.Printf("Starting HTTP server on %s (venues: %v)", *addr, rt.Venues())
	if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("HTTP server error: %v", err)
	}

	if err := q.Close(); err != nil {
		logger.Printf("Queue shutdown error: %v", err)
	}
	logger.Println("Shutdown complete")
}

// createStores creates the order and quote stores. The quote store is
// nil when no ClickHouse DSN is configured in database mode.
func createStores(ctx context.Context, postgresDSN, clickhouseDSN string, useMemory bool, logger *log.Logger) (storage.OrderStore, storage.QuoteStore, func(), error) {
	if useMemory {
		return memory.NewOrderStore(), memory.NewQuoteStore(), func() {}, nil
	}

	pool, err := pgstore.NewPool(ctx, postgresDSN)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, nil, fmt.Errorf("run postgres migrations: %w", err)
	}

	if clickhouseDSN == "" {
		logger.Println("No ClickHouse DSN configured, quote analytics disabled")
		return pgstore.NewOrderStore(pool), nil, func() { pool.Close() }, nil
	}

	chConn, err := chstore.NewConn(ctx, clickhouseDSN)
	if err != nil {
		pool.Close()
		return nil, nil, nil, fmt.Errorf("connect to clickhouse: %w", err)
	}
	if err := migrations.RunClickhouseMigrations(ctx, chConn); err != nil {
		chConn.Close()
		pool.Close()
		return nil, nil, nil, fmt.Errorf("run clickhouse migrations: %w", err)
	}

	cleanup := func() {
		chConn.Close()
		pool.Close()
	}
	return pgstore.NewOrderStore(pool), chstore.NewQuoteStore(chConn), cleanup, nil
}

// createJobStore creates the queue backlog: Redis when configured,
// in-process otherwise.
func createJobStore(ctx context.Context, redisAddr string, useMemory bool, logger *log.Logger) (queue.JobStore, error) {
	if useMemory || redisAddr == "" {
		if !useMemory {
			logger.Println("No Redis address configured, using in-memory job queue")
		}
		return queue.NewMemoryStore(), nil
	}

	client := redis.NewClient(&redis.Options{Addr: redisAddr})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return queue.NewRedisStore(client, "swapq", logger), nil
}

// envOr returns the environment variable value or a fallback.
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// envOrInt returns the environment variable parsed as int or a fallback.
func envOrInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var n int
	if _, err := fmt.Sscanf(v, "%d", &n); err != nil {
		return fallback
	}
	return n
}
