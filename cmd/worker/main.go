package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vikram-trellis/corgi-hack/internal/bootstrap"
	"github.com/vikram-trellis/corgi-hack/internal/config"
	"github.com/vikram-trellis/corgi-hack/internal/core/domain"
	"github.com/vikram-trellis/corgi-hack/internal/observability/logging"
	"github.com/vikram-trellis/corgi-hack/internal/observability/metrics"
)

const (
	itemTimeout    = 5 * time.Minute
	reconcileBatch = 50
)

func main() {
	cfg := config.Load()
	logger := logging.NewJSONLogger("claims-worker", cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	workerMetrics := metrics.NewWorkerMetrics("claims-worker")
	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{
		Logger:     logger,
		Resilience: workerMetrics.Calls(),
		AICalls:    workerMetrics.Calls(),
	})
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	metricsServer := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           workerMetrics.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	items := &errgroup.Group{}
	items.SetLimit(max(cfg.WorkerConcurrency, 1))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("worker_metrics_listening", "port", cfg.WorkerMetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return metricsServer.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		logger.Info("worker_subscribed", "subject_prefix", cfg.NATSSubjectPrefix, "concurrency", cfg.WorkerConcurrency)
		return app.Queue.SubscribeInboxReceived(gctx, func(handlerCtx context.Context, event domain.InboxReceived) error {
			if !event.ReceivedAt.IsZero() {
				workerMetrics.ObserveQueueLag(time.Since(event.ReceivedAt))
			}
			// The subscription context ends with the callback; analysis outlives it.
			itemCtx := context.WithoutCancel(handlerCtx)
			items.Go(func() error {
				processCtx, cancel := context.WithTimeout(itemCtx, itemTimeout)
				defer cancel()

				workerMetrics.StartItem()
				started := time.Now()
				err := app.Intake.ProcessInboxReceived(processCtx, event)
				workerMetrics.FinishItem(time.Since(started), err)
				if err != nil {
					logger.Error("inbox_analysis_failed", "inbox_id", event.InboxID, "error", err)
				}
				return nil
			})
			return nil
		})
	})
	g.Go(func() error {
		return reconcileLoop(gctx, app, cfg, workerMetrics, logger)
	})

	if err := g.Wait(); err != nil {
		logger.Error("worker_stopped", "error", err)
	}
	_ = items.Wait()
	logger.Info("worker_shutdown_complete")
}

// reconcileLoop completes conversions whose ledger record stayed pending past the configured age.
func reconcileLoop(ctx context.Context, app *bootstrap.App, cfg config.Config, m *metrics.WorkerMetrics, logger *slog.Logger) error {
	if cfg.ReconcilePendingInterval <= 0 {
		return nil
	}
	ticker := time.NewTicker(cfg.ReconcilePendingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			n, err := app.Converter.ReconcilePending(ctx, cfg.ReconcilePendingAfter, reconcileBatch)
			m.ReconcileSweepFinished(n, err)
			if err != nil {
				logger.Error("reconcile_pending_failed", "error", err)
				continue
			}
			if n > 0 {
				logger.Info("reconcile_pending_done", "reconciled", n)
			}
		}
	}
}
