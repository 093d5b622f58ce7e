package core

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

const (
	KindIncome  Kind = "income"
	KindExpense Kind = "expense"
)

type (
	Kind string

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	// Transaction is one immutable entry of a user's ledger. NormalizedAmount is
	// always expressed in the home currency and is what every balance sums.
	Transaction struct {
		ID               int64
		UserID           int64
		Timestamp        time.Time
		Kind             Kind
		Category         string
		OriginalAmount   Money
		OriginalCurrency string
		NormalizedAmount Money
		Description      string
	}

	Budget struct {
		UserID  int64
		Ceiling Money
	}

	Goal struct {
		ID       int64
		UserID   int64
		Name     string
		Target   Money
		Current  Money
		Deadline *Date
	}

	User struct {
		ID           int64
		Username     string
		PasswordHash string
	}
)

var ErrInvalidKind = errors.New("kind must be income or expense")

// ParseKind accepts "income" or "expense" in any case.
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindIncome:
		return KindIncome, nil
	case KindExpense:
		return KindExpense, nil
	}
	return "", InvalidInput(ErrInvalidKind.Error())
}

func (k Kind) String() string {
	return string(k)
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD date.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, InvalidInput("date must be YYYY-MM-DD")
	}
	return Date{Time: t}, nil
}

func (d Date) String() string {
	return d.Format(DateLayout)
}

func (m Money) Add(o Money) Money {
	return Money{Cents: m.Cents + o.Cents}
}

func (m Money) Sub(o Money) Money {
	return Money{Cents: m.Cents - o.Cents}
}

func (m Money) IsZero() bool {
	return m.Cents == 0
}

func (t Transaction) Validate() error {
	if t.UserID <= 0 {
		return InvalidInput("user id is required")
	}
	if t.Kind != KindIncome && t.Kind != KindExpense {
		return InvalidInput(ErrInvalidKind.Error())
	}
	if strings.TrimSpace(t.Category) == "" {
		return ErrEmptyCategory
	}
	if utf8.RuneCountInString(t.Description) > MaxDescriptionLen {
		return InvalidInput("description too long (max 200 characters)")
	}
	if err := t.OriginalAmount.Validate(); err != nil {
		return err
	}
	if t.NormalizedAmount.Cents < 0 {
		return ErrInvalidAmount
	}
	if t.Timestamp.IsZero() {
		return InvalidInput("timestamp is required")
	}
	return nil
}

// Validate checks a goal as submitted for creation.
func (g Goal) Validate() error {
	if err := g.Target.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(g.Name) == "" {
		return InvalidInput("goal name is required")
	}
	if g.Current.Cents < 0 {
		return ErrInvalidAmount
	}
	return nil
}

// ProgressPercent is current/target capped at 100, or 0 when the target is not positive.
func (g Goal) ProgressPercent() float64 {
	if g.Target.Cents <= 0 {
		return 0
	}
	pct := decimal.NewFromInt(g.Current.Cents).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(g.Target.Cents))
	if pct.GreaterThan(decimal.NewFromInt(100)) {
		return 100
	}
	f, _ := pct.Round(2).Float64()
	return f
}

// Completed is a derived view; completion never blocks further deposits.
func (g Goal) Completed() bool {
	return g.Target.Cents > 0 && g.Current.Cents >= g.Target.Cents
}

// Remaining is how much is still missing to reach the target, never negative.
func (g Goal) Remaining() Money {
	if g.Current.Cents >= g.Target.Cents {
		return Money{}
	}
	return g.Target.Sub(g.Current)
}
