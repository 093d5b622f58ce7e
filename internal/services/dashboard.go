package services

import (
	"context"
	"fmt"

	"fintrack/internal/core"
	"fintrack/internal/storage"
)

// DailySeriesDays is how many distinct recent days the dashboard chart shows.
const DailySeriesDays = 7

// DashboardStore is satisfied by *storage.SQLiteRepository.
type DashboardStore interface {
	DashboardSnapshot(ctx context.Context, userID int64, month core.DateRange, days int) (storage.DashboardSnapshot, error)
}

type DashboardService struct {
	store   DashboardStore
	balance *BalanceService
	home    string
}

// NewDashboardService takes month boundaries and the clock from balance.
func NewDashboardService(store DashboardStore, balance *BalanceService, homeCurrency string) *DashboardService {
	return &DashboardService{
		store:   store,
		balance: balance,
		home:    homeCurrency,
	}
}

// Get assembles the dashboard from a single database snapshot.
func (s *DashboardService) Get(ctx context.Context, userID int64) (core.Dashboard, error) {
	month := core.MonthRange(s.balance.now().In(s.balance.loc))
	snap, err := s.store.DashboardSnapshot(ctx, userID, month, DailySeriesDays)
	if err != nil {
		return core.Dashboard{}, fmt.Errorf("dashboard snapshot: %w", err)
	}

	d := core.Dashboard{
		Balance:      snap.Totals.Balance(),
		Totals:       snap.Totals,
		Budget:       core.BudgetStatus{MonthToDateExpense: snap.MonthToDate.Expense},
		DailySeries:  snap.DailySeries,
		Goals:        make([]core.GoalView, len(snap.Goals)),
		HomeCurrency: s.home,
	}
	if snap.Ceiling != nil {
		d.Budget = EvaluateBudget(*snap.Ceiling, snap.MonthToDate.Expense)
	}
	for i, g := range snap.Goals {
		d.Goals[i] = GoalView(g)
	}
	return d, nil
}
