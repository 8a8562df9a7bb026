package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/hematin/donoreval/internal/adapters/mq/queue"
	"github.com/hematin/donoreval/internal/adapters/mq/worker"
	"github.com/hematin/donoreval/internal/adapters/repository"
	"github.com/hematin/donoreval/internal/app"
	"github.com/hematin/donoreval/internal/config"
	"github.com/hematin/donoreval/internal/domain/normalize"
	"github.com/hematin/donoreval/pkg/logger"
	"github.com/hematin/donoreval/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTP server timeout constants.
const (
	readTimeout           = 10 * time.Second
	writeTimeout          = 10 * time.Second
	idleTimeout           = 60 * time.Second
	readHeaderTimeout     = 5 * time.Second
	shutdownTimeout       = 30 * time.Second
	systemMetricsInterval = 10 * time.Second
	storeMetricsInterval  = 5 * time.Second
	oneShotOverallTimeout = 5 * time.Minute
)

func main() {
	recalcEvent := flag.String("recalc", "", "recalculate one event cohort and exit")
	recalcAll := flag.Bool("recalc-all", false, "recalculate every known event cohort and exit")
	flag.Parse()

	// Initialize logging
	if err := logger.Init(); err != nil {
		// Use stderr for initialization errors since logger isn't available yet
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return
	}

	loggerInstance := logger.Get()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		return
	}

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		loggerInstance.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	store, admin, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		loggerInstance.Error(ctx, "failed to open store", logger.Error(err))
		return
	}
	defer closeStore()

	if cfg.SeedDefaults {
		if err := admin.SeedDefaults(ctx); err != nil {
			loggerInstance.Error(ctx, "failed to seed defaults", logger.Error(err))
			return
		}
	}

	dominators := cfg.Dominators
	if len(dominators) == 0 {
		dominators = normalize.DefaultDominators()
	}
	strategy, err := normalize.ForName(cfg.Strategy, dominators)
	if err != nil {
		loggerInstance.Error(ctx, "failed to build normalization strategy", logger.Error(err))
		return
	}

	recalcQueue := queue.NewInMemoryQueue(queue.WithCapacity(cfg.RecalcQueueSize))
	defer recalcQueue.Close()

	svc := app.New(store, strategy,
		app.WithLogger(loggerInstance),
		app.WithCohortTimeout(cfg.CohortTimeout()),
		app.WithRecalcQueue(recalcQueue),
	)

	loggerInstance.Info(ctx, "donor evaluation engine starting",
		logger.String("strategy", strategy.Name()),
		logger.String("db_driver", cfg.DBDriver),
	)

	// One-shot modes recompute and exit without serving.
	if *recalcEvent != "" || *recalcAll {
		runOneShot(ctx, svc, admin, *recalcEvent, *recalcAll)
		return
	}

	pool := worker.NewPool(cfg.RecalcWorkerCount, recalcQueue, svc)
	pool.Start(ctx)
	defer pool.Stop()

	// Start background metric updaters
	go startSystemMetricsUpdater(ctx)
	go startStoreMetricsUpdater(ctx, store, admin)

	// Metrics-only HTTP listener.
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              cfg.MetricsAddr,
		Handler:           mux,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		loggerInstance.Info(ctx, "starting metrics server", logger.String("addr", cfg.MetricsAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			os.Stderr.WriteString("metrics server failed: " + err.Error() + "\n")
			return
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()
	loggerInstance.Info(ctx, "shutting down...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		loggerInstance.Error(ctx, "metrics server shutdown failed", logger.Error(err))
	}
	if err := pool.Shutdown(shutdownCtx); err != nil {
		loggerInstance.Error(ctx, "worker pool shutdown failed", logger.Error(err))
	}

	loggerInstance.Info(ctx, "stopped")
}

// storeAdmin is the administrative surface both backends provide.
type storeAdmin interface {
	repository.Admin
	SeedDefaults(ctx context.Context) error
}

// openStore builds the configured store backend.
func openStore(ctx context.Context, cfg *config.Config) (repository.Store, storeAdmin, func(), error) {
	switch cfg.DBDriver {
	case "sqlite":
		s, err := repository.OpenSQLStore(ctx, cfg.DBDSN)
		if err != nil {
			return nil, nil, nil, err
		}
		return s, s, func() { _ = s.Close() }, nil
	default:
		s := repository.NewMemStore()
		return s, s, func() {}, nil
	}
}

// runOneShot recomputes the requested cohorts and returns.
func runOneShot(ctx context.Context, svc *app.Service, admin storeAdmin, eventID string, all bool) {
	log := logger.Get()
	ctx, cancel := context.WithTimeout(ctx, oneShotOverallTimeout)
	defer cancel()

	events := []string{eventID}
	if all {
		ids, err := admin.EventIDs(ctx)
		if err != nil {
			log.Error(ctx, "failed to list events", logger.Error(err))
			return
		}
		events = ids
	}

	for _, id := range events {
		results, err := svc.EvaluateCohort(ctx, id)
		if err != nil {
			log.Error(ctx, "cohort recalculation failed", logger.String("eventID", id), logger.Error(err))
			continue
		}
		eligible := 0
		for _, r := range results {
			if r.IsEligible {
				eligible++
			}
		}
		log.Info(ctx, "cohort recalculated",
			logger.String("eventID", id),
			logger.Int("examinations", len(results)),
			logger.Int("eligible", eligible),
		)
	}
}

// startSystemMetricsUpdater starts a background goroutine that updates system metrics.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// startStoreMetricsUpdater periodically refreshes the stored-examination gauge.
func startStoreMetricsUpdater(ctx context.Context, store repository.Store, admin storeAdmin) {
	ticker := time.NewTicker(storeMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			total := 0
			ids, err := admin.EventIDs(ctx)
			if err != nil {
				continue
			}
			for _, id := range ids {
				exams, err := store.ExaminationsForEvent(ctx, id)
				if err != nil {
					continue
				}
				total += len(exams)
			}
			metrics.UpdateStoredExaminations(total)
		}
	}
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())
}
