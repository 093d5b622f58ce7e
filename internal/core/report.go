package core

import "time"

// Totals are sums of normalized amounts.
type Totals struct {
	Income  Money
	Expense Money
}

func (t Totals) Balance() Money {
	return t.Income.Sub(t.Expense)
}

// DateRange is half-open: Start <= ts < End. A zero bound is unbounded.
type DateRange struct {
	Start time.Time
	End   time.Time
}

func (r DateRange) IsZero() bool {
	return r.Start.IsZero() && r.End.IsZero()
}

// TransactionFilter narrows a listing. Empty fields do not filter.
type TransactionFilter struct {
	MonthPrefix string // YYYY-MM
	Category    string
}

type CategoryTotal struct {
	Category string
	Kind     Kind
	Total    Money
	Percent  float64 // share of the kind's total
}

type DailyTotals struct {
	Day     string // YYYY-MM-DD
	Income  Money
	Expense Money
}

type BudgetStatus struct {
	Ceiling            *Money
	MonthToDateExpense Money
	IsWarning          bool
	IsOver             bool
}

type WeeklyAverage struct {
	WindowDays     int
	IncomePerWeek  Money
	ExpensePerWeek Money
	TotalIncome    Money
	TotalExpense   Money
}

type GoalView struct {
	Goal
	Percent   float64
	Completed bool
}

type Dashboard struct {
	Balance      Money
	Totals       Totals
	Budget       BudgetStatus
	DailySeries  []DailyTotals
	Goals        []GoalView
	HomeCurrency string
}
