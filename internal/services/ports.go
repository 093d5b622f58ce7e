// Package services implements the ledger operations on top of the record store:
// recording and listing transactions, balances, budgets, goals and the dashboard.
// Every operation takes the acting user id explicitly.
package services

import (
	"context"
	"time"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
	"fintrack/internal/currency"
	"fintrack/internal/storage"
)

// Ports implemented by storage.SQLiteRepository.
type (
	TransactionStore interface {
		InsertTransaction(ctx context.Context, t core.Transaction) (int64, error)
		GetTransaction(ctx context.Context, userID, id int64) (core.Transaction, error)
		ListTransactions(ctx context.Context, userID int64, f core.TransactionFilter) ([]core.Transaction, error)
		Aggregate(ctx context.Context, userID int64, r core.DateRange) (core.Totals, error)
		CategoryTotals(ctx context.Context, userID int64) ([]core.CategoryTotal, error)
		RecentDailyTotals(ctx context.Context, userID int64, days int) ([]core.DailyTotals, error)
	}

	BudgetStore interface {
		UpsertBudget(ctx context.Context, userID int64, ceiling core.Money) error
		GetBudget(ctx context.Context, userID int64) (core.Budget, error)
	}

	GoalStore interface {
		CreateGoal(ctx context.Context, g core.Goal) (int64, error)
		GetGoal(ctx context.Context, userID, goalID int64) (core.Goal, error)
		ListGoals(ctx context.Context, userID int64) ([]core.Goal, error)
		DepositToGoal(ctx context.Context, userID, goalID int64, amount core.Money, currency string, at time.Time) (storage.DepositResult, error)
	}

	UserStore interface {
		CreateUser(ctx context.Context, username, passwordHash string) (core.User, error)
		GetUserByUsername(ctx context.Context, username string) (core.User, error)
	}

	// Converter is satisfied by *currency.Normalizer.
	Converter interface {
		Home() string
		Normalize(ctx context.Context, amount core.Money, currency string) (currency.Conversion, error)
	}

	// EventPublisher is satisfied by *amqp.Client; nil disables publishing.
	EventPublisher interface {
		PublishEvent(ctx context.Context, e *amqp.LedgerEvent) error
	}
)

// Clock returns the current time; services call it once per operation.
type Clock func() time.Time

// publish announces a committed write. Failures are logged and never returned:
// the write is already durable.
func publish(ctx context.Context, p EventPublisher, e *amqp.LedgerEvent) {
	if p == nil {
		return
	}
	if err := p.PublishEvent(ctx, e); err != nil {
		logPublishFailure(ctx, e, err)
	}
}
