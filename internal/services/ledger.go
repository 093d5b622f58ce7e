package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
)

// RecordInput is a user-entered transaction before normalization.
type RecordInput struct {
	Timestamp   *time.Time // nil means now
	Kind        core.Kind
	Category    string
	Amount      core.Money
	Currency    string // empty means the home currency
	Description string
}

type RecordResult struct {
	ID         int64
	Normalized core.Money
	Rate       decimal.Decimal
	Converted  bool
	// Warning wraps core.ErrCurrencyUnavailable when the amount was kept unconverted.
	Warning error
}

// LedgerService is the transaction store: append, list and category reports.
type LedgerService struct {
	store     TransactionStore
	converter Converter
	events    EventPublisher
	now       Clock
}

func NewLedgerService(store TransactionStore, converter Converter, events EventPublisher, now Clock) *LedgerService {
	if now == nil {
		now = time.Now
	}
	return &LedgerService{store: store, converter: converter, events: events, now: now}
}

// Record validates, normalizes and appends one transaction. A failed currency
// lookup does not fail the call; the result carries a warning instead.
func (s *LedgerService) Record(ctx context.Context, userID int64, in RecordInput) (RecordResult, error) {
	if err := in.Amount.Validate(); err != nil {
		return RecordResult{}, err
	}
	kind, err := core.ParseKind(string(in.Kind))
	if err != nil {
		return RecordResult{}, err
	}
	category, err := core.NormalizeCategory(in.Category)
	if err != nil {
		return RecordResult{}, err
	}
	cur, err := core.NormalizeCurrency(in.Currency, s.converter.Home())
	if err != nil {
		return RecordResult{}, err
	}

	ts := s.now()
	if in.Timestamp != nil && !in.Timestamp.IsZero() {
		ts = *in.Timestamp
	}

	// Network I/O happens here, before any write.
	conv, warn := s.converter.Normalize(ctx, in.Amount, cur)
	if warn != nil && !errors.Is(warn, core.ErrCurrencyUnavailable) {
		return RecordResult{}, fmt.Errorf("normalize amount: %w", warn)
	}

	t := core.Transaction{
		UserID:           userID,
		Timestamp:        ts,
		Kind:             kind,
		Category:         category,
		OriginalAmount:   in.Amount,
		OriginalCurrency: cur,
		NormalizedAmount: conv.Normalized,
		Description:      strings.TrimSpace(in.Description),
	}
	if err := t.Validate(); err != nil {
		return RecordResult{}, err
	}

	id, err := s.store.InsertTransaction(ctx, t)
	if err != nil {
		return RecordResult{}, fmt.Errorf("record transaction: %w", err)
	}

	publish(ctx, s.events, transactionRecorded(userID, id, t.NormalizedAmount.Cents))

	if warn != nil {
		slog.WarnContext(ctx, "Transaction recorded without conversion",
			"transaction_id", id,
			"user_id", userID,
			"currency", cur)
	}

	return RecordResult{
		ID:         id,
		Normalized: conv.Normalized,
		Rate:       conv.Rate,
		Converted:  conv.Converted,
		Warning:    warn,
	}, nil
}

// List returns the user's transactions newest first. A category of "all"
// (any case) or "" does not filter.
func (s *LedgerService) List(ctx context.Context, userID int64, f core.TransactionFilter) ([]core.Transaction, error) {
	f.MonthPrefix = strings.TrimSpace(f.MonthPrefix)
	if err := core.ValidateMonthPrefix(f.MonthPrefix); err != nil {
		return nil, err
	}
	f.Category = strings.TrimSpace(f.Category)
	if strings.EqualFold(f.Category, "all") {
		f.Category = ""
	}
	return s.store.ListTransactions(ctx, userID, f)
}

func (s *LedgerService) Get(ctx context.Context, userID, id int64) (core.Transaction, error) {
	return s.store.GetTransaction(ctx, userID, id)
}

// CategoryReport returns per-category totals with each category's share of
// its kind's total, in percent rounded to two decimals.
func (s *LedgerService) CategoryReport(ctx context.Context, userID int64) ([]core.CategoryTotal, error) {
	totals, err := s.store.CategoryTotals(ctx, userID)
	if err != nil {
		return nil, err
	}

	byKind := map[core.Kind]int64{}
	for _, ct := range totals {
		byKind[ct.Kind] += ct.Total.Cents
	}
	for i, ct := range totals {
		sum := byKind[ct.Kind]
		if sum == 0 {
			continue
		}
		pct, _ := decimal.NewFromInt(ct.Total.Cents).
			Mul(decimal.NewFromInt(100)).
			Div(decimal.NewFromInt(sum)).
			Round(2).
			Float64()
		totals[i].Percent = pct
	}
	return totals, nil
}
