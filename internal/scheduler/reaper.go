package scheduler

import (
	"context"
	"time"

	"fieldops_backend/platform/logger"

	"github.com/google/uuid"
)

const defaultReaperInterval = 5 * time.Minute

// StuckReaper fails processing items that were claimed too long ago.
// *service.Service implements it.
type StuckReaper interface {
	ListAccountsWithStuckWork(ctx context.Context, olderThan time.Duration, limit int) ([]uuid.UUID, error)
	ReapStuckAutomations(ctx context.Context, accountID uuid.UUID, olderThan time.Duration) (int, error)
}

// Reaper periodically fails stuck processing items.
type Reaper struct {
	automations  StuckReaper
	log          *logger.Logger
	interval     time.Duration
	stuckAfter   time.Duration
	accountLimit int
}

func NewReaper(automations StuckReaper, log *logger.Logger, interval, stuckAfter time.Duration, accountLimit int) *Reaper {
	if interval <= 0 {
		interval = defaultReaperInterval
	}
	return &Reaper{
		automations:  automations,
		log:          log,
		interval:     interval,
		stuckAfter:   stuckAfter,
		accountLimit: accountLimit,
	}
}

// Run reaps until ctx is cancelled. A non-positive stuckAfter disables it.
func (r *Reaper) Run(ctx context.Context) error {
	if r.stuckAfter <= 0 {
		r.log.Info("automation reaper disabled")
		return nil
	}

	r.Reap(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			r.Reap(ctx)
		}
	}
}

// Reap runs one pass and returns the number of items failed.
func (r *Reaper) Reap(ctx context.Context) int {
	accounts, err := r.automations.ListAccountsWithStuckWork(ctx, r.stuckAfter, r.accountLimit)
	if err != nil {
		r.log.Warn("automation reaper: list accounts failed", "error", err)
		return 0
	}

	total := 0
	for _, accountID := range accounts {
		n, err := r.automations.ReapStuckAutomations(ctx, accountID, r.stuckAfter)
		if err != nil {
			r.log.Warn("automation reaper failed", "account_id", accountID.String(), "error", err)
			continue
		}
		total += n
	}

	if total > 0 {
		r.log.Info("automation reaper failed stuck items", "count", total)
	}
	return total
}
