package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// sweepTimeout bounds one scheduled budget sweep.
const sweepTimeout = 2 * time.Minute

// BudgetScheduler runs the budget sweep on a cron schedule.
type BudgetScheduler struct {
	cron   *cron.Cron
	worker *EventWorker
	users  BudgetUserLister
}

// NewBudgetScheduler parses schedule (standard 5-field cron) in loc.
func NewBudgetScheduler(schedule string, loc *time.Location, w *EventWorker, users BudgetUserLister) (*BudgetScheduler, error) {
	if loc == nil {
		loc = time.Local
	}
	s := &BudgetScheduler{
		cron:   cron.New(cron.WithLocation(loc)),
		worker: w,
		users:  users,
	}
	if _, err := s.cron.AddFunc(schedule, s.run); err != nil {
		return nil, fmt.Errorf("schedule budget sweep %q: %w", schedule, err)
	}
	return s, nil
}

func (s *BudgetScheduler) run() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	if _, err := s.worker.SweepBudgets(ctx, s.users); err != nil {
		slog.ErrorContext(ctx, "Scheduled budget sweep failed", "error", err)
	}
}

func (s *BudgetScheduler) Start() {
	s.cron.Start()
	for _, e := range s.cron.Entries() {
		slog.Info("Budget sweep scheduled", "next_run", e.Next.Format(time.RFC3339))
	}
}

// Stop prevents new runs and waits for a running sweep to finish or ctx to end.
func (s *BudgetScheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
		slog.Warn("Budget sweep still running at shutdown")
	}
}
