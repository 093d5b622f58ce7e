package services

import (
	"context"
	"log/slog"

	"fintrack/internal/amqp"
)

func logPublishFailure(ctx context.Context, e *amqp.LedgerEvent, err error) {
	slog.ErrorContext(ctx, "Failed to publish ledger event",
		"type", e.Type,
		"user_id", e.UserID,
		"transaction_id", e.TransactionID,
		"error", err)
}

func transactionRecorded(userID, txID, cents int64) *amqp.LedgerEvent {
	e := amqp.NewLedgerEvent(amqp.EventTransactionRecorded, userID)
	e.TransactionID = txID
	e.AmountCents = cents
	return e
}

func goalDeposited(userID, goalID, txID, cents int64) *amqp.LedgerEvent {
	e := amqp.NewLedgerEvent(amqp.EventGoalDeposited, userID)
	e.GoalID = goalID
	e.TransactionID = txID
	e.AmountCents = cents
	return e
}

func budgetUpdated(userID, ceilingCents int64) *amqp.LedgerEvent {
	e := amqp.NewLedgerEvent(amqp.EventBudgetUpdated, userID)
	e.AmountCents = ceilingCents
	return e
}
