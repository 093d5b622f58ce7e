package cache

import (
	"context"
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) now() time.Time          { return f.t }
func (f *fakeClock) advance(d time.Duration) { f.t = f.t.Add(d) }

func TestLRUEvictsLeastRecentlyUsed(t *testing.T) {
	c := NewLRUCache[int](2, time.Hour)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Get("a") // a is now most recent
	c.Set("c", 3)

	if _, ok := c.Get("b"); ok {
		t.Fatalf("expected b to be evicted")
	}
	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Fatalf("expected a=1, got %v %v", v, ok)
	}
	if c.Size() != 2 {
		t.Fatalf("expected size 2, got %d", c.Size())
	}
}

func TestLRUExpiry(t *testing.T) {
	clock := &fakeClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewLRUCache[string](10, time.Minute).WithClock(clock.now)
	c.Set("k", "v")

	clock.advance(59 * time.Second)
	if _, ok := c.Get("k"); !ok {
		t.Fatalf("expected entry to be alive")
	}
	clock.advance(time.Second)
	if _, ok := c.Get("k"); ok {
		t.Fatalf("expected entry to expire at ttl")
	}
}

func TestLRUTouchSlidesExpiry(t *testing.T) {
	clock := &fakeClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewLRUCache[int](10, time.Minute).WithClock(clock.now)
	c.Set("s", 7)

	clock.advance(50 * time.Second)
	if _, ok := c.Touch("s"); !ok {
		t.Fatalf("expected touch hit")
	}
	clock.advance(50 * time.Second)
	if v, ok := c.Get("s"); !ok || v != 7 {
		t.Fatalf("expected touched entry to survive, got %v %v", v, ok)
	}
}

func TestManagerSweep(t *testing.T) {
	clock := &fakeClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	sessions := NewLRUCache[int](10, time.Minute).WithClock(clock.now)
	rates := NewLRUCache[float64](10, time.Hour).WithClock(clock.now)
	sessions.Set("a", 1)
	sessions.Set("b", 2)
	rates.Set("USD", 35.5)

	m := NewManager()
	m.Register("sessions", sessions)
	m.Register("rates", rates)

	clock.advance(2 * time.Minute)
	if n := m.Sweep(context.Background()); n != 2 {
		t.Fatalf("expected 2 expired, got %d", n)
	}
	if sessions.Size() != 0 || rates.Size() != 1 {
		t.Fatalf("unexpected sizes %d %d", sessions.Size(), rates.Size())
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.Start(ctx, time.Millisecond)
	cancel()
	m.Wait()
}
