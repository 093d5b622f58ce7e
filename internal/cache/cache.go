// Package cache holds the in-process caches: login sessions and exchange rates.
package cache

import (
	"context"
	"log/slog"
	"time"
)

// Cache defines a generic string-keyed cache
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, data T)
	Delete(key string)
	Size() int
}

// Cleaner is implemented by caches that can drop expired entries on demand
type Cleaner interface {
	CleanExpired() int
}

// Manager periodically sweeps every registered cache
type Manager struct {
	caches map[string]Cleaner
	done   chan struct{}
}

func NewManager() *Manager {
	return &Manager{caches: make(map[string]Cleaner)}
}

// Register adds a named cache; must be called before Start.
func (m *Manager) Register(name string, c Cleaner) {
	m.caches[name] = c
}

// Start sweeps until ctx is cancelled.
func (m *Manager) Start(ctx context.Context, interval time.Duration) {
	m.done = make(chan struct{})
	go m.run(ctx, interval)
}

func (m *Manager) run(ctx context.Context, interval time.Duration) {
	defer close(m.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.Sweep(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// Sweep cleans all caches once and returns the number of evicted entries.
func (m *Manager) Sweep(ctx context.Context) int {
	total := 0
	for name, c := range m.caches {
		n := c.CleanExpired()
		if n > 0 {
			slog.DebugContext(ctx, "Cache entries expired", "cache", name, "count", n)
		}
		total += n
	}
	return total
}

// Wait blocks until the sweeper started by Start has exited.
func (m *Manager) Wait() {
	if m.done != nil {
		<-m.done
	}
}
