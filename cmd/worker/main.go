// Package main is the entry point for the lotkeeper background worker.
// The worker runs the scheduled jobs the API never blocks on: outbox relay,
// expiry sweeps, aggregate reconciliation and movement archival.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"lotkeeper/internal/domain/alerts"
	"lotkeeper/internal/domain/events"
	v1 "lotkeeper/internal/infrastructure/http/v1"
	"lotkeeper/internal/infrastructure/storage/postgres"
	"lotkeeper/pkg/logger"
)

func main() {
	log, err := logger.New(logger.Config{
		Level:       getEnv("LOG_LEVEL", "info"),
		Development: getEnv("APP_ENV", "development") == "development",
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ctx = logger.WithLogger(ctx, log)

	log.Info("starting lotkeeper worker")

	pool, err := postgres.NewPool(ctx, postgres.DefaultPoolConfig(mustEnv("DATABASE_URL")))
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()

	txManager := postgres.NewTxManager(pool)
	services := v1.BuildServices(txManager, nil)

	// Alert rules are evaluated on every relayed inventory change.
	engine, err := alerts.NewEngine(alerts.DefaultRules)
	if err != nil {
		log.Fatalw("failed to compile alert rules", "error", err)
	}
	bus := events.NewBus()
	bus.Subscribe(alerts.Subscriber(engine, services.Inventory, alerts.LogNotifier{}))

	relay := postgres.NewOutboxRelay(pool.Unwrap(), bus, getEnvInt("OUTBOX_BATCH_SIZE", 100))

	archiver, err := postgres.NewMovementArchiver(txManager)
	if err != nil {
		log.Fatalw("failed to create movement archiver", "error", err)
	}

	w := &worker{
		log:              log.WithComponent("worker"),
		services:         services,
		relay:            relay,
		archiver:         archiver,
		relayInterval:    getEnvDuration("OUTBOX_POLL_INTERVAL", 500*time.Millisecond),
		sweepInterval:    getEnvDuration("EXPIRE_SWEEP_INTERVAL", 5*time.Minute),
		reconcileEvery:   getEnvDuration("RECONCILE_INTERVAL", time.Hour),
		archiveEvery:     getEnvDuration("ARCHIVE_INTERVAL", 24*time.Hour),
		archiveRetention: getEnvDuration("ARCHIVE_RETENTION", 90*24*time.Hour),
		outboxRetention:  getEnvDuration("OUTBOX_RETENTION", 24*time.Hour),
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		w.run(ctx)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down worker...")
	cancel()

	wg.Wait()
	log.Info("worker stopped")
}

type worker struct {
	log      *logger.Logger
	services v1.Services
	relay    *postgres.OutboxRelay
	archiver *postgres.MovementArchiver

	relayInterval    time.Duration
	sweepInterval    time.Duration
	reconcileEvery   time.Duration
	archiveEvery     time.Duration
	archiveRetention time.Duration
	outboxRetention  time.Duration
}

func (w *worker) run(ctx context.Context) {
	relayTicker := time.NewTicker(w.relayInterval)
	defer relayTicker.Stop()

	sweepTicker := time.NewTicker(w.sweepInterval)
	defer sweepTicker.Stop()

	reconcileTicker := time.NewTicker(w.reconcileEvery)
	defer reconcileTicker.Stop()

	archiveTicker := time.NewTicker(w.archiveEvery)
	defer archiveTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-relayTicker.C:
			if _, err := w.relay.ProcessBatch(ctx); err != nil {
				w.log.Errorw("outbox relay failed", "error", err)
			}

		case <-sweepTicker.C:
			w.expireSweep(ctx)

		case <-reconcileTicker.C:
			w.reconcile(ctx)

		case <-archiveTicker.C:
			w.archive(ctx)
		}
	}
}

func (w *worker) expireSweep(ctx context.Context) {
	expired, err := w.services.Batches.ExpireSweep(ctx, time.Now().UTC())
	if err != nil {
		w.log.Errorw("expire sweep failed", "error", err, "expired", expired)
		return
	}
	if expired > 0 {
		w.log.Infow("expire sweep done", "expired", expired)
	}
}

func (w *worker) reconcile(ctx context.Context) {
	reconciled, err := w.services.Inventory.ReconcileAll(ctx)
	if err != nil {
		w.log.Errorw("aggregate reconciliation failed", "error", err, "reconciled", reconciled)
	}
}

func (w *worker) archive(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-w.archiveRetention)
	archived, err := w.archiver.ArchiveOlderThan(ctx, cutoff)
	if err != nil {
		w.log.Errorw("movement archival failed", "error", err)
	} else if archived > 0 {
		w.log.Infow("movements archived", "count", archived)
	}

	purged, err := w.relay.PurgePublished(ctx, time.Now().UTC().Add(-w.outboxRetention))
	if err != nil {
		w.log.Errorw("outbox purge failed", "error", err)
	} else if purged > 0 {
		w.log.Infow("outbox purged", "count", purged)
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func mustEnv(key string) string {
	value := os.Getenv(key)
	if value == "" {
		fmt.Printf("required environment variable %s not set\n", key)
		os.Exit(1)
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var result int
		if _, err := fmt.Sscanf(value, "%d", &result); err == nil {
			return result
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
