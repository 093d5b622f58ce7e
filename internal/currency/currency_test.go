package currency

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
)

func TestHTTPProviderRate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v6/secret/latest/USD" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"result":"success","base_code":"USD","conversion_rates":{"USD":1,"THB":35.52}}`))
	}))
	defer srv.Close()

	p := NewHTTPProvider(srv.URL+"/v6/", "secret", srv.Client())
	rate, err := p.Rate(context.Background(), "USD", "THB")
	if err != nil {
		t.Fatalf("rate: %v", err)
	}
	if !rate.Equal(decimal.RequireFromString("35.52")) {
		t.Fatalf("expected 35.52, got %s", rate)
	}

	if _, err := p.Rate(context.Background(), "USD", "XYZ"); !errors.Is(err, ErrUnknownCurrency) {
		t.Fatalf("expected ErrUnknownCurrency, got %v", err)
	}
	if _, err := p.Rate(context.Background(), "EUR", "THB"); err == nil {
		t.Fatalf("expected error for 404")
	}
}

func TestHTTPProviderErrorResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"result":"error","error-type":"invalid-key"}`))
	}))
	defer srv.Close()

	_, err := NewHTTPProvider(srv.URL, "bad", nil).Rate(context.Background(), "USD", "THB")
	if err == nil {
		t.Fatalf("expected provider error")
	}
}

func TestHTTPProviderWithoutKeyIsDisabled(t *testing.T) {
	if _, err := NewHTTPProvider("http://unused", "", nil).Rate(context.Background(), "USD", "THB"); !errors.Is(err, ErrDisabled) {
		t.Fatalf("expected ErrDisabled, got %v", err)
	}
}

func TestStaticProvider(t *testing.T) {
	p, err := ParseStaticRates("THB", "USD=35.5, EUR=38.9")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if p.Len() != 2 {
		t.Fatalf("expected 2 rates, got %d", p.Len())
	}
	cases := []struct {
		from, to, want string
	}{
		{"USD", "THB", "35.5"},
		{"THB", "THB", "1"},
		{"THB", "USD", "0.02816901"},
	}
	for _, tc := range cases {
		got, err := p.Rate(context.Background(), tc.from, tc.to)
		if err != nil || !got.Equal(decimal.RequireFromString(tc.want)) {
			t.Fatalf("%s->%s want %s, got %s (%v)", tc.from, tc.to, tc.want, got, err)
		}
	}
	if _, err := p.Rate(context.Background(), "JPY", "THB"); !errors.Is(err, ErrUnknownCurrency) {
		t.Fatalf("expected ErrUnknownCurrency, got %v", err)
	}

	for _, bad := range []string{"USD", "USD=abc", "USD=-1", "dollar=1"} {
		if _, err := ParseStaticRates("THB", bad); err == nil {
			t.Fatalf("%q expected error", bad)
		}
	}
}

type countingProvider struct {
	calls atomic.Int32
	delay time.Duration
	rate  decimal.Decimal
	err   error
}

func (c *countingProvider) Rate(ctx context.Context, from, to string) (decimal.Decimal, error) {
	c.calls.Add(1)
	if c.delay > 0 {
		select {
		case <-time.After(c.delay):
		case <-ctx.Done():
			return decimal.Decimal{}, ctx.Err()
		}
	}
	return c.rate, c.err
}

func TestChainFallsThrough(t *testing.T) {
	failing := &countingProvider{err: errors.New("down")}
	static, _ := ParseStaticRates("THB", "USD=35")
	rate, err := Chain{failing, static}.Rate(context.Background(), "USD", "THB")
	if err != nil || !rate.Equal(decimal.NewFromInt(35)) {
		t.Fatalf("expected fallback rate 35, got %s (%v)", rate, err)
	}

	_, err = Chain{failing}.Rate(context.Background(), "USD", "THB")
	if err == nil {
		t.Fatalf("expected joined error")
	}
}

func TestCachedProviderCollapsesLookups(t *testing.T) {
	upstream := &countingProvider{delay: 20 * time.Millisecond, rate: decimal.NewFromInt(35)}
	p := NewCachedProvider(upstream, time.Hour, 16)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := p.Rate(context.Background(), "USD", "THB"); err != nil {
				t.Errorf("rate: %v", err)
			}
		}()
	}
	wg.Wait()

	if _, err := p.Rate(context.Background(), "USD", "THB"); err != nil {
		t.Fatalf("rate: %v", err)
	}
	if n := upstream.calls.Load(); n != 1 {
		t.Fatalf("expected 1 upstream call, got %d", n)
	}
	if p.Cache().Size() != 1 {
		t.Fatalf("expected one cached pair")
	}
}

func TestNormalizerSameCurrency(t *testing.T) {
	n := NewNormalizer(nil, "THB", time.Second)
	conv, err := n.Normalize(context.Background(), core.Money{Cents: 1234}, "THB")
	if err != nil || conv.Normalized.Cents != 1234 || conv.Converted {
		t.Fatalf("unexpected %+v %v", conv, err)
	}
}

func TestNormalizerConverts(t *testing.T) {
	static, _ := ParseStaticRates("THB", "USD=35.5")
	n := NewNormalizer(static, "THB", time.Second)
	conv, err := n.Normalize(context.Background(), core.Money{Cents: 1000}, "USD")
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if !conv.Converted || conv.Normalized.Cents != 35500 {
		t.Fatalf("expected 355.00 THB, got %+v", conv)
	}
}

func TestNormalizerRejectsOverflowingConversion(t *testing.T) {
	static, _ := ParseStaticRates("THB", "USD=1000000")
	n := NewNormalizer(static, "THB", time.Second)
	conv, err := n.Normalize(context.Background(), core.Money{Cents: 1_000_000_000_000_000}, "USD")
	if !errors.Is(err, core.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	if errors.Is(err, core.ErrCurrencyUnavailable) {
		t.Fatalf("overflow must not be reported as a soft fallback: %v", err)
	}
	if conv.Converted {
		t.Fatalf("expected no conversion, got %+v", conv)
	}
}

func TestNormalizerFallsBackOnTimeout(t *testing.T) {
	slow := &countingProvider{delay: time.Minute, rate: decimal.NewFromInt(35)}
	n := NewNormalizer(slow, "THB", 20*time.Millisecond)

	start := time.Now()
	conv, err := n.Normalize(context.Background(), core.Money{Cents: 500}, "USD")
	if !errors.Is(err, core.ErrCurrencyUnavailable) {
		t.Fatalf("expected ErrCurrencyUnavailable, got %v", err)
	}
	if conv.Normalized.Cents != 500 || conv.Converted {
		t.Fatalf("expected same-value fallback, got %+v", conv)
	}
	if time.Since(start) > 5*time.Second {
		t.Fatalf("normalizer did not fail fast")
	}
}

func TestNormalizerWithoutProvider(t *testing.T) {
	n := NewNormalizer(nil, "THB", time.Second)
	conv, err := n.Normalize(context.Background(), core.Money{Cents: 500}, "EUR")
	if !errors.Is(err, core.ErrCurrencyUnavailable) || !errors.Is(err, ErrDisabled) {
		t.Fatalf("expected unavailable/disabled, got %v", err)
	}
	if conv.Normalized.Cents != 500 {
		t.Fatalf("expected fallback amount, got %d", conv.Normalized.Cents)
	}
}
