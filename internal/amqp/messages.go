package amqp

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"
)

type EventType string

const (
	EventTransactionRecorded EventType = "transaction.recorded"
	EventGoalDeposited       EventType = "goal.deposited"
	EventBudgetUpdated       EventType = "budget.updated"
)

// LedgerEvent announces a committed write. It carries identifiers only; the
// worker reads the current state from the database.
type LedgerEvent struct {
	Type          EventType `json:"type"`
	UserID        int64     `json:"user_id"`
	TransactionID int64     `json:"transaction_id,omitempty"`
	GoalID        int64     `json:"goal_id,omitempty"`
	AmountCents   int64     `json:"amount_cents"`
	Timestamp     time.Time `json:"timestamp"`
}

func NewLedgerEvent(t EventType, userID int64) *LedgerEvent {
	return &LedgerEvent{
		Type:      t,
		UserID:    userID,
		Timestamp: time.Now(),
	}
}

func (e *LedgerEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// LedgerEventFromJSON decodes and sanity checks a message body.
func LedgerEventFromJSON(data []byte) (*LedgerEvent, error) {
	var e LedgerEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	switch e.Type {
	case EventTransactionRecorded, EventGoalDeposited, EventBudgetUpdated:
	default:
		return nil, fmt.Errorf("unknown event type %q", e.Type)
	}
	if e.UserID <= 0 {
		return nil, fmt.Errorf("event without user id")
	}
	return &e, nil
}
