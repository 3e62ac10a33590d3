package scheduler

import (
	"context"
	"time"

	"fieldops_backend/internal/automation/domain"
	"fieldops_backend/platform/logger"

	"github.com/google/uuid"
)

// DueSource lists due work. *service.Service implements it.
type DueSource interface {
	ListAccountsWithDueWork(ctx context.Context, limit int) ([]uuid.UUID, error)
	GetDueAutomations(ctx context.Context, accountID uuid.UUID, limit int) ([]domain.WorkItem, error)
}

// Enqueuer hands items to the workers. *Client implements it.
type Enqueuer interface {
	EnqueueAutomation(ctx context.Context, item domain.WorkItem) (bool, error)
}

// DispatcherConfig tunes the polling loop.
type DispatcherConfig struct {
	Interval     time.Duration
	BatchSize    int
	AccountLimit int
}

// Dispatcher polls for due automations on a fixed interval and enqueues them.
// Claiming happens in the worker, so an item enqueued twice is processed once.
type Dispatcher struct {
	source   DueSource
	enqueuer Enqueuer
	cfg      DispatcherConfig
	log      *logger.Logger
}

func NewDispatcher(source DueSource, enqueuer Enqueuer, cfg DispatcherConfig, log *logger.Logger) *Dispatcher {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	return &Dispatcher{source: source, enqueuer: enqueuer, cfg: cfg, log: log}
}

// Run dispatches immediately and then on every tick until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.Tick(ctx)

	ticker := time.NewTicker(d.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			d.Tick(ctx)
		}
	}
}

// Tick runs one dispatch pass and returns the number of items enqueued.
// Failures are logged; the next tick retries.
func (d *Dispatcher) Tick(ctx context.Context) int {
	accounts, err := d.source.ListAccountsWithDueWork(ctx, d.cfg.AccountLimit)
	if err != nil {
		d.log.Warn("automation dispatch: list accounts failed", "error", err)
		return 0
	}

	enqueued := 0
	for _, accountID := range accounts {
		if ctx.Err() != nil {
			return enqueued
		}

		items, err := d.source.GetDueAutomations(ctx, accountID, d.cfg.BatchSize)
		if err != nil {
			d.log.Warn("automation dispatch: list due failed", "account_id", accountID.String(), "error", err)
			continue
		}

		for _, item := range items {
			ok, err := d.enqueuer.EnqueueAutomation(ctx, item)
			if err != nil {
				d.log.Warn("automation dispatch: enqueue failed",
					"automation_id", item.ID.String(),
					"account_id", accountID.String(),
					"error", err,
				)
				continue
			}
			if ok {
				enqueued++
			}
		}
	}

	if enqueued > 0 {
		d.log.Info("automation dispatch enqueued items", "count", enqueued, "accounts", len(accounts))
	}
	return enqueued
}
