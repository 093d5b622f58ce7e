package amqp

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

// ackRecorder captures what dispatch did with a delivery.
type ackRecorder struct {
	acked   bool
	nacked  bool
	requeue bool
}

func (a *ackRecorder) Ack(uint64, bool) error {
	a.acked = true
	return nil
}

func (a *ackRecorder) Nack(_ uint64, _ bool, requeue bool) error {
	a.nacked, a.requeue = true, requeue
	return nil
}

func (a *ackRecorder) Reject(_ uint64, requeue bool) error {
	a.nacked, a.requeue = true, requeue
	return nil
}

func delivery(body string, redelivered bool) (amqp091.Delivery, *ackRecorder) {
	rec := &ackRecorder{}
	return amqp091.Delivery{Acknowledger: rec, Body: []byte(body), Redelivered: redelivered}, rec
}

func TestDispatch(t *testing.T) {
	valid := `{"type":"transaction.recorded","user_id":1,"transaction_id":9}`
	failing := func(context.Context, *LedgerEvent) error { return errors.New("sheet unavailable") }

	tests := []struct {
		name        string
		body        string
		redelivered bool
		handler     Handler
		wantAck     bool
		wantRequeue bool
	}{
		{"handled", valid, false, func(context.Context, *LedgerEvent) error { return nil }, true, false},
		{"first failure is requeued", valid, false, failing, false, true},
		{"second failure is dropped", valid, true, failing, false, false},
		{"poison message is dropped", `{"type":`, false, failing, false, false},
	}

	c := &Client{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, rec := delivery(tt.body, tt.redelivered)
			c.dispatch(context.Background(), d, tt.handler)

			if rec.acked != tt.wantAck {
				t.Errorf("acked = %v, want %v", rec.acked, tt.wantAck)
			}
			if !tt.wantAck && !rec.nacked {
				t.Error("expected a nack")
			}
			if rec.requeue != tt.wantRequeue {
				t.Errorf("requeue = %v, want %v", rec.requeue, tt.wantRequeue)
			}
		})
	}
}

func TestDispatchPassesDecodedEvent(t *testing.T) {
	var got *LedgerEvent
	d, _ := delivery(`{"type":"goal.deposited","user_id":4,"transaction_id":12,"goal_id":2,"amount_cents":5000}`, false)

	(&Client{}).dispatch(context.Background(), d, func(_ context.Context, e *LedgerEvent) error {
		got = e
		return nil
	})

	if got == nil || got.Type != EventGoalDeposited || got.UserID != 4 || got.GoalID != 2 || got.AmountCents != 5000 {
		t.Fatalf("handler received %+v", got)
	}
}

func TestExponentialBackoff(t *testing.T) {
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second, 16 * time.Second, maxBackoff, maxBackoff}
	for attempt, w := range want {
		if got := exponentialBackoff(attempt); got != w {
			t.Errorf("attempt %d: got %v, want %v", attempt, got, w)
		}
	}
	if got := exponentialBackoff(-3); got != time.Second {
		t.Errorf("negative attempt: got %v", got)
	}
}

func TestIsConnectionError(t *testing.T) {
	for _, err := range []error{amqp091.ErrClosed, io.ErrUnexpectedEOF, errors.New("dial tcp: connection refused"), errors.New("write: broken pipe")} {
		if !isConnectionError(err) {
			t.Errorf("%v should count as a connection error", err)
		}
	}
	for _, err := range []error{nil, errors.New("PRECONDITION_FAILED - inequivalent arg")} {
		if isConnectionError(err) {
			t.Errorf("%v should not count as a connection error", err)
		}
	}
}

func TestCircuitBreaker(t *testing.T) {
	c := &Client{}
	if c.isCircuitOpen() {
		t.Fatal("new client must start closed")
	}

	for i := 0; i < maxFailures-1; i++ {
		c.recordFailure()
	}
	if c.isCircuitOpen() {
		t.Fatal("circuit opened before reaching the failure threshold")
	}
	c.recordFailure()
	if !c.isCircuitOpen() {
		t.Fatal("circuit should open at the failure threshold")
	}

	c.lastFailure = time.Now().Add(-openTimeout - time.Second)
	if c.isCircuitOpen() || atomic.LoadInt32(&c.state) != StateHalfOpen {
		t.Fatal("circuit should go half-open once the timeout elapses")
	}

	c.recordFailure()
	if atomic.LoadInt32(&c.state) != StateOpen {
		t.Fatal("a failed half-open trial call must reopen the circuit")
	}

	c.recordSuccess()
	if c.isCircuitOpen() || atomic.LoadInt64(&c.failureCount) != 0 {
		t.Fatal("success must close the circuit and clear failures")
	}
}

func TestPublishEventShortCircuits(t *testing.T) {
	c := &Client{exchangeName: "fintrack"}
	e := NewLedgerEvent(EventBudgetUpdated, 7)

	atomic.StoreInt32(&c.state, StateOpen)
	c.lastFailure = time.Now()
	if err := c.PublishEvent(context.Background(), e); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("open circuit: got %v", err)
	}

	c.recordSuccess()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := c.PublishEvent(ctx, e); !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled context: got %v", err)
	}
}

func TestLedgerEventCodec(t *testing.T) {
	e := &LedgerEvent{
		Type:          EventGoalDeposited,
		UserID:        3,
		TransactionID: 99,
		GoalID:        5,
		AmountCents:   80000,
		Timestamp:     time.Date(2025, 3, 20, 12, 0, 0, 0, time.UTC),
	}
	data, err := e.ToJSON()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if !strings.Contains(string(data), `"type":"goal.deposited"`) {
		t.Errorf("unexpected wire format: %s", data)
	}

	parsed, err := LedgerEventFromJSON(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if parsed.Type != e.Type || parsed.UserID != e.UserID || parsed.TransactionID != e.TransactionID ||
		parsed.GoalID != e.GoalID || parsed.AmountCents != e.AmountCents || !parsed.Timestamp.Equal(e.Timestamp) {
		t.Errorf("parsed %+v, want %+v", parsed, e)
	}

	for name, body := range map[string]string{
		"bad user id type": `{"type":"transaction.recorded","user_id":"x"}`,
		"unknown type":     `{"type":"account.deleted","user_id":1}`,
		"missing user":     `{"type":"budget.updated"}`,
	} {
		if _, err := LedgerEventFromJSON([]byte(body)); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}
