// Package currency converts foreign amounts into the home currency.
//
// Providers answer "how many units of `to` is one unit of `from`". The
// Normalizer puts a hard timeout around them and never fails a caller: when
// no rate is available it falls back to the original amount and reports
// core.ErrCurrencyUnavailable as a warning.
package currency

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"

	"fintrack/internal/core"
)

var (
	ErrUnknownCurrency = errors.New("unknown currency")
	ErrDisabled        = errors.New("no rate provider configured")
)

// RateProvider returns the multiplier converting one unit of from into to.
type RateProvider interface {
	Rate(ctx context.Context, from, to string) (decimal.Decimal, error)
}

// HTTPProvider talks to an exchangerate-api v6 compatible endpoint:
// GET {baseURL}/{apiKey}/latest/{from}
type HTTPProvider struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewHTTPProvider(baseURL, apiKey string, client *http.Client) *HTTPProvider {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  client,
	}
}

type latestResponse struct {
	Result          string                     `json:"result"`
	ErrorType       string                     `json:"error-type"`
	ConversionRates map[string]decimal.Decimal `json:"conversion_rates"`
}

func (p *HTTPProvider) Rate(ctx context.Context, from, to string) (decimal.Decimal, error) {
	if p.apiKey == "" {
		return decimal.Decimal{}, ErrDisabled
	}
	endpoint := fmt.Sprintf("%s/%s/latest/%s", p.baseURL, url.PathEscape(p.apiKey), url.PathEscape(from))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("build rate request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("fetch rates for %s: %w", from, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decimal.Decimal{}, fmt.Errorf("fetch rates for %s: status %d", from, resp.StatusCode)
	}

	var body latestResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return decimal.Decimal{}, fmt.Errorf("decode rates: %w", err)
	}
	if body.Result != "success" {
		return decimal.Decimal{}, fmt.Errorf("rate provider error: %s", body.ErrorType)
	}

	rate, ok := body.ConversionRates[to]
	if !ok || !rate.IsPositive() {
		return decimal.Decimal{}, fmt.Errorf("%w: %s", ErrUnknownCurrency, to)
	}
	return rate, nil
}

// StaticProvider serves fixed rates expressed as units of home per unit of foreign.
type StaticProvider struct {
	home  string
	rates map[string]decimal.Decimal
}

// ParseStaticRates reads "USD=35.5,EUR=38.9".
func ParseStaticRates(home, table string) (*StaticProvider, error) {
	p := &StaticProvider{home: home, rates: map[string]decimal.Decimal{}}
	for _, pair := range strings.Split(table, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		code, value, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("invalid static rate %q: expected CODE=RATE", pair)
		}
		code, err := core.NormalizeCurrency(code, "")
		if err != nil || code == "" {
			return nil, fmt.Errorf("invalid static rate %q: bad currency code", pair)
		}
		rate, err := decimal.NewFromString(strings.TrimSpace(value))
		if err != nil || !rate.IsPositive() {
			return nil, fmt.Errorf("invalid static rate %q: rate must be a positive number", pair)
		}
		p.rates[code] = rate
	}
	return p, nil
}

func (p *StaticProvider) Len() int {
	return len(p.rates)
}

func (p *StaticProvider) toHome(code string) (decimal.Decimal, bool) {
	if code == p.home {
		return decimal.NewFromInt(1), true
	}
	r, ok := p.rates[code]
	return r, ok
}

func (p *StaticProvider) Rate(_ context.Context, from, to string) (decimal.Decimal, error) {
	f, ok := p.toHome(from)
	if !ok {
		return decimal.Decimal{}, fmt.Errorf("%w: %s", ErrUnknownCurrency, from)
	}
	t, ok := p.toHome(to)
	if !ok {
		return decimal.Decimal{}, fmt.Errorf("%w: %s", ErrUnknownCurrency, to)
	}
	return f.DivRound(t, 8), nil
}

// Chain asks each provider in turn and returns the first rate found.
type Chain []RateProvider

func (c Chain) Rate(ctx context.Context, from, to string) (decimal.Decimal, error) {
	errs := make([]error, 0, len(c))
	for _, p := range c {
		r, err := p.Rate(ctx, from, to)
		if err == nil {
			return r, nil
		}
		if ctx.Err() != nil {
			return decimal.Decimal{}, ctx.Err()
		}
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return decimal.Decimal{}, ErrDisabled
	}
	return decimal.Decimal{}, errors.Join(errs...)
}
