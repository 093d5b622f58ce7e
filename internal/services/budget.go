package services

import (
	"context"
	"errors"

	"fintrack/internal/core"
)

// Warning threshold as a ratio of the ceiling: 8/10.
const (
	warnNumerator   = 8
	warnDenominator = 10
)

type BudgetService struct {
	store   BudgetStore
	balance *BalanceService
	events  EventPublisher
}

func NewBudgetService(store BudgetStore, balance *BalanceService, events EventPublisher) *BudgetService {
	return &BudgetService{store: store, balance: balance, events: events}
}

// SetBudget upserts the user's monthly ceiling; zero is a valid ceiling.
func (s *BudgetService) SetBudget(ctx context.Context, userID int64, ceiling core.Money) error {
	if ceiling.Cents < 0 {
		return core.ErrInvalidAmount
	}
	if err := s.store.UpsertBudget(ctx, userID, ceiling); err != nil {
		return err
	}
	publish(ctx, s.events, budgetUpdated(userID, ceiling.Cents))
	return nil
}

func (s *BudgetService) Status(ctx context.Context, userID int64) (core.BudgetStatus, error) {
	mtd, err := s.balance.MonthToDateExpense(ctx, userID)
	if err != nil {
		return core.BudgetStatus{}, err
	}

	b, err := s.store.GetBudget(ctx, userID)
	if errors.Is(err, core.ErrNotFound) {
		return core.BudgetStatus{MonthToDateExpense: mtd}, nil
	}
	if err != nil {
		return core.BudgetStatus{}, err
	}
	return EvaluateBudget(b.Ceiling, mtd), nil
}

// EvaluateBudget applies the warning and over rules to a set ceiling.
func EvaluateBudget(ceiling, mtd core.Money) core.BudgetStatus {
	c := ceiling
	return core.BudgetStatus{
		Ceiling:            &c,
		MonthToDateExpense: mtd,
		IsWarning:          mtd.Cents*warnDenominator >= ceiling.Cents*warnNumerator,
		IsOver:             mtd.Cents > ceiling.Cents,
	}
}
