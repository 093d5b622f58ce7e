package currency

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"fintrack/internal/cache"
)

// CachedProvider memoizes rates per pair and collapses concurrent lookups of
// the same pair into one upstream call.
type CachedProvider struct {
	next  RateProvider
	rates *cache.LRUCache[decimal.Decimal]
	group singleflight.Group
}

func NewCachedProvider(next RateProvider, ttl time.Duration, size int) *CachedProvider {
	return &CachedProvider{
		next:  next,
		rates: cache.NewLRUCache[decimal.Decimal](size, ttl),
	}
}

// Cache exposes the underlying store so it can be registered for sweeping.
func (c *CachedProvider) Cache() *cache.LRUCache[decimal.Decimal] {
	return c.rates
}

func (c *CachedProvider) Rate(ctx context.Context, from, to string) (decimal.Decimal, error) {
	key := from + ":" + to
	if r, ok := c.rates.Get(key); ok {
		return r, nil
	}

	// Detached from ctx so one caller's timeout does not fail the shared fetch.
	ch := c.group.DoChan(key, func() (any, error) {
		r, err := c.next.Rate(context.WithoutCancel(ctx), from, to)
		if err != nil {
			return nil, err
		}
		c.rates.Set(key, r)
		slog.DebugContext(ctx, "Exchange rate cached", "from", from, "to", to, "rate", r.String())
		return r, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return decimal.Decimal{}, res.Err
		}
		return res.Val.(decimal.Decimal), nil
	case <-ctx.Done():
		return decimal.Decimal{}, ctx.Err()
	}
}
