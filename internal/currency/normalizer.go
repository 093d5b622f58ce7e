package currency

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
)

// Conversion describes how an amount was brought into the home currency.
type Conversion struct {
	Normalized core.Money
	Rate       decimal.Decimal
	Converted  bool
}

type Normalizer struct {
	provider RateProvider
	home     string
	timeout  time.Duration
}

// NewNormalizer builds a normalizer; provider may be nil when conversion is disabled.
func NewNormalizer(provider RateProvider, home string, timeout time.Duration) *Normalizer {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Normalizer{provider: provider, home: home, timeout: timeout}
}

func (n *Normalizer) Home() string {
	return n.home
}

// Rate is the raw converter call bounded by the normalizer timeout.
func (n *Normalizer) Rate(ctx context.Context, from, to string) (decimal.Decimal, error) {
	if from == to {
		return decimal.NewFromInt(1), nil
	}
	if n.provider == nil {
		return decimal.Decimal{}, fmt.Errorf("%w: %w", core.ErrCurrencyUnavailable, ErrDisabled)
	}
	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	rate, err := n.provider.Rate(ctx, from, to)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: %s to %s: %w", core.ErrCurrencyUnavailable, from, to, err)
	}
	return rate, nil
}

// Normalize converts amount from currency into the home currency. An error
// wrapping core.ErrCurrencyUnavailable is a warning: the Conversion is still
// usable and Normalized equals amount. A converted value outside the amount
// bound is a hard error wrapping core.ErrInvalidAmount.
func (n *Normalizer) Normalize(ctx context.Context, amount core.Money, currency string) (Conversion, error) {
	same := Conversion{Normalized: amount, Rate: decimal.NewFromInt(1)}
	if currency == n.home {
		return same, nil
	}

	rate, err := n.Rate(ctx, currency, n.home)
	if err != nil {
		slog.WarnContext(ctx, "Currency conversion unavailable, keeping original amount",
			"currency", currency,
			"home_currency", n.home,
			"amount_cents", amount.Cents,
			"error", err)
		return same, err
	}

	normalized, err := amount.Convert(rate)
	if err != nil {
		return same, fmt.Errorf("convert %s to %s at %s: %w", currency, n.home, rate, err)
	}
	slog.InfoContext(ctx, "Amount converted",
		"currency", currency,
		"home_currency", n.home,
		"rate", rate.String(),
		"amount_cents", amount.Cents,
		"normalized_cents", normalized.Cents)

	return Conversion{Normalized: normalized, Rate: rate, Converted: true}, nil
}
