package services

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/storage"
)

// GoalService is the goal ledger. Deposits for one user are serialized
// in-process, and the store runs each deposit in a single write transaction.
type GoalService struct {
	store  GoalStore
	home   string
	events EventPublisher
	locks  *userLocks
	now    Clock
}

func NewGoalService(store GoalStore, homeCurrency string, events EventPublisher, now Clock) *GoalService {
	if now == nil {
		now = time.Now
	}
	return &GoalService{
		store:  store,
		home:   homeCurrency,
		events: events,
		locks:  newUserLocks(),
		now:    now,
	}
}

// CreateGoal starts a goal at zero progress.
func (s *GoalService) CreateGoal(ctx context.Context, userID int64, name string, target core.Money, deadline *core.Date) (int64, error) {
	g := core.Goal{
		UserID:   userID,
		Name:     strings.TrimSpace(name),
		Target:   target,
		Deadline: deadline,
	}
	if err := g.Validate(); err != nil {
		return 0, err
	}
	return s.store.CreateGoal(ctx, g)
}

func (s *GoalService) ListGoals(ctx context.Context, userID int64) ([]core.GoalView, error) {
	goals, err := s.store.ListGoals(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]core.GoalView, len(goals))
	for i, g := range goals {
		out[i] = GoalView(g)
	}
	return out, nil
}

func (s *GoalService) GetGoal(ctx context.Context, userID, goalID int64) (core.GoalView, error) {
	g, err := s.store.GetGoal(ctx, userID, goalID)
	if err != nil {
		return core.GoalView{}, err
	}
	return GoalView(g), nil
}

// Deposit transfers amount from the user's balance into the goal. Failures are
// checked in order: ErrInvalidAmount, ErrNotFound, ErrInsufficientBalance.
// On success the goal and a linked expense transaction are committed together.
func (s *GoalService) Deposit(ctx context.Context, userID, goalID int64, amount core.Money) (storage.DepositResult, error) {
	if err := amount.Validate(); err != nil {
		return storage.DepositResult{}, err
	}

	unlock := s.locks.Lock(userID)
	defer unlock()

	res, err := s.store.DepositToGoal(ctx, userID, goalID, amount, s.home, s.now())
	if err != nil {
		slog.InfoContext(ctx, "Goal deposit rejected",
			"user_id", userID,
			"goal_id", goalID,
			"amount_cents", amount.Cents,
			"error", err)
		return storage.DepositResult{}, err
	}

	publish(ctx, s.events, goalDeposited(userID, goalID, res.TransactionID, amount.Cents))
	return res, nil
}

func GoalView(g core.Goal) core.GoalView {
	return core.GoalView{Goal: g, Percent: g.ProgressPercent(), Completed: g.Completed()}
}
