package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fieldops_backend/internal/automation/generator"
	"fieldops_backend/internal/automation/processor"
	"fieldops_backend/internal/automation/repository"
	"fieldops_backend/internal/automation/service"
	"fieldops_backend/internal/scheduler"
	"fieldops_backend/platform/config"
	"fieldops_backend/platform/db"
	"fieldops_backend/platform/logger"
	"fieldops_backend/platform/telemetry"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting automation driver", "env", cfg.Env, "queue", cfg.GetAutomationQueue())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg,
			db.WithApplicationName("fieldops-scheduler"),
			db.WithMaxConns(int32(cfg.GetAutomationConcurrency()+5)),
		)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()

	telemetry.Register()

	repo := repository.New(pool)
	automations := service.New(repo, log)

	gen, err := generator.NewFromConfig(cfg)
	if err != nil {
		log.Error("failed to initialize content generator", "error", err)
		panic("failed to initialize content generator: " + err.Error())
	}
	if !cfg.IsAIEnabled() {
		log.Warn("MOONSHOT_API_KEY not configured; automations will fail with generator not configured")
	}
	proc := processor.New(automations, repo.Entities(), gen, cfg.GetGenerationTimeout(), log)

	client, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize task client", "error", err)
		panic("failed to initialize task client: " + err.Error())
	}
	defer func() { _ = client.Close() }()

	worker, err := scheduler.NewWorker(cfg, proc, log)
	if err != nil {
		log.Error("failed to initialize automation worker", "error", err)
		panic("failed to initialize automation worker: " + err.Error())
	}

	dispatcher := scheduler.NewDispatcher(automations, client, scheduler.DispatcherConfig{
		Interval:     cfg.GetAutomationPollInterval(),
		BatchSize:    cfg.GetAutomationBatchSize(),
		AccountLimit: cfg.GetAccountScanLimit(),
	}, log)
	reaper := scheduler.NewReaper(automations, log,
		cfg.GetAutomationReaperInterval(), cfg.GetAutomationStuckAfter(), cfg.GetAccountScanLimit())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return dispatcher.Run(gctx) })
	g.Go(func() error { return reaper.Run(gctx) })
	g.Go(func() error { return worker.Run(gctx) })
	g.Go(func() error {
		if addr := cfg.GetMetricsAddr(); addr != "" {
			log.Info("metrics listener started", "addr", addr)
		}
		return telemetry.Serve(gctx, cfg.GetMetricsAddr())
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("automation driver stopped", "error", err)
		os.Exit(1)
	}
	log.Info("automation driver stopped")
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return errors.New(name + ": invalid retry attempts")
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
