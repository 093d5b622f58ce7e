package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
	"fintrack/internal/sheets"
)

type (
	TransactionReader interface {
		GetTransaction(ctx context.Context, userID, id int64) (core.Transaction, error)
	}

	// BudgetChecker is satisfied by *services.BudgetService.
	BudgetChecker interface {
		Status(ctx context.Context, userID int64) (core.BudgetStatus, error)
	}

	BudgetUserLister interface {
		ListBudgetUserIDs(ctx context.Context) ([]int64, error)
	}
)

// EventWorker reacts to ledger events: it copies new transactions to the
// exporter and raises budget alerts.
type EventWorker struct {
	transactions TransactionReader
	budgets      BudgetChecker
	exporter     sheets.Exporter
	loc          *time.Location
}

// NewEventWorker builds a worker; a nil exporter disables exporting.
func NewEventWorker(transactions TransactionReader, budgets BudgetChecker, exporter sheets.Exporter, loc *time.Location) *EventWorker {
	if loc == nil {
		loc = time.Local
	}
	return &EventWorker{
		transactions: transactions,
		budgets:      budgets,
		exporter:     exporter,
		loc:          loc,
	}
}

// HandleEvent processes a single ledger event from AMQP. A returned error asks
// for redelivery, so permanent problems are logged and swallowed.
func (w *EventWorker) HandleEvent(ctx context.Context, e *amqp.LedgerEvent) error {
	slog.InfoContext(ctx, "Processing ledger event",
		"event_type", e.Type,
		"user_id", e.UserID,
		"transaction_id", e.TransactionID,
		"goal_id", e.GoalID)

	switch e.Type {
	case amqp.EventTransactionRecorded, amqp.EventGoalDeposited:
		if err := w.exportTransaction(ctx, e.UserID, e.TransactionID); err != nil {
			return fmt.Errorf("export transaction: %w", err)
		}
	case amqp.EventBudgetUpdated:
	default:
		slog.WarnContext(ctx, "Ignoring unknown event type", "event_type", e.Type)
		return nil
	}

	if _, err := w.CheckBudget(ctx, e.UserID); err != nil {
		return fmt.Errorf("check budget: %w", err)
	}
	return nil
}

func (w *EventWorker) exportTransaction(ctx context.Context, userID, id int64) error {
	if w.exporter == nil {
		return nil
	}
	if id <= 0 {
		slog.WarnContext(ctx, "Event without transaction id, nothing to export", "user_id", userID)
		return nil
	}

	done, err := w.exporter.Exported(ctx, id)
	if err != nil {
		return fmt.Errorf("check export index: %w", err)
	}
	if done {
		slog.DebugContext(ctx, "Transaction already exported", "transaction_id", id)
		return nil
	}

	t, err := w.transactions.GetTransaction(ctx, userID, id)
	if errors.Is(err, core.ErrNotFound) {
		slog.WarnContext(ctx, "Transaction vanished before export", "transaction_id", id, "user_id", userID)
		return nil
	}
	if err != nil {
		return err
	}

	ref, err := w.exporter.Export(ctx, sheets.RowFromTransaction(t, w.loc))
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "Transaction exported",
		"transaction_id", id,
		"user_id", userID,
		"row_ref", ref,
		"kind", t.Kind,
		"amount_cents", t.NormalizedAmount.Cents)
	return nil
}

// CheckBudget evaluates the user's budget and logs an alert when it is at the
// warning threshold or over the ceiling.
func (w *EventWorker) CheckBudget(ctx context.Context, userID int64) (core.BudgetStatus, error) {
	st, err := w.budgets.Status(ctx, userID)
	if err != nil {
		return core.BudgetStatus{}, err
	}
	if st.Ceiling == nil {
		return st, nil
	}

	switch {
	case st.IsOver:
		slog.WarnContext(ctx, "Budget exceeded",
			"user_id", userID,
			"ceiling_cents", st.Ceiling.Cents,
			"month_to_date_cents", st.MonthToDateExpense.Cents)
	case st.IsWarning:
		slog.WarnContext(ctx, "Budget warning",
			"user_id", userID,
			"ceiling_cents", st.Ceiling.Cents,
			"month_to_date_cents", st.MonthToDateExpense.Cents)
	}
	return st, nil
}

// SweepBudgets checks every user with a ceiling and returns how many alerts
// were raised. One user's failure does not stop the sweep.
func (w *EventWorker) SweepBudgets(ctx context.Context, users BudgetUserLister) (int, error) {
	ids, err := users.ListBudgetUserIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("list budget users: %w", err)
	}

	alerts := 0
	var errs []error
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return alerts, err
		}
		st, err := w.CheckBudget(ctx, id)
		if err != nil {
			errs = append(errs, fmt.Errorf("user %d: %w", id, err))
			continue
		}
		if st.IsWarning || st.IsOver {
			alerts++
		}
	}

	slog.InfoContext(ctx, "Budget sweep completed",
		"users", len(ids),
		"alerts", alerts,
		"errors", len(errs))
	return alerts, errors.Join(errs...)
}
