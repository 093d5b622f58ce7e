package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
)

const DefaultWeeklyWindowDays = 30

// BalanceService derives balances and period aggregates from the ledger.
// Nothing is cached, so every read reflects all committed writes.
type BalanceService struct {
	store TransactionStore
	loc   *time.Location
	now   Clock
}

func NewBalanceService(store TransactionStore, loc *time.Location, now Clock) *BalanceService {
	if loc == nil {
		loc = time.Local
	}
	if now == nil {
		now = time.Now
	}
	return &BalanceService{store: store, loc: loc, now: now}
}

func (s *BalanceService) Totals(ctx context.Context, userID int64) (core.Totals, error) {
	return s.store.Aggregate(ctx, userID, core.DateRange{})
}

func (s *BalanceService) CurrentBalance(ctx context.Context, userID int64) (core.Money, error) {
	t, err := s.Totals(ctx, userID)
	if err != nil {
		return core.Money{}, err
	}
	return t.Balance(), nil
}

// MonthToDateExpense sums expenses in the current calendar month of the deployment zone.
func (s *BalanceService) MonthToDateExpense(ctx context.Context, userID int64) (core.Money, error) {
	t, err := s.store.Aggregate(ctx, userID, core.MonthRange(s.now().In(s.loc)))
	if err != nil {
		return core.Money{}, err
	}
	return t.Expense, nil
}

// WeeklyAverage spreads income and expense of the trailing windowDays over weeks.
func (s *BalanceService) WeeklyAverage(ctx context.Context, userID int64, windowDays int) (core.WeeklyAverage, error) {
	if windowDays <= 0 {
		return core.WeeklyAverage{}, core.InvalidInput("window must be at least one day")
	}
	t, err := s.store.Aggregate(ctx, userID, core.TrailingDays(s.now().In(s.loc), windowDays))
	if err != nil {
		return core.WeeklyAverage{}, err
	}
	return core.WeeklyAverage{
		WindowDays:     windowDays,
		IncomePerWeek:  perWeek(t.Income, windowDays),
		ExpensePerWeek: perWeek(t.Expense, windowDays),
		TotalIncome:    t.Income,
		TotalExpense:   t.Expense,
	}, nil
}

// perWeek computes total / (days/7) rounded half-up to cents.
func perWeek(total core.Money, days int) core.Money {
	if total.IsZero() {
		return core.Money{}
	}
	v := decimal.NewFromInt(total.Cents).
		Mul(decimal.NewFromInt(7)).
		Div(decimal.NewFromInt(int64(days))).
		Round(0)
	return core.Money{Cents: v.IntPart()}
}
