package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"fintrack/internal/core"
)

// pathID reads a positive integer mux variable.
func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(mux.Vars(r)[name], 10, 64)
	if err != nil || id <= 0 {
		return 0, core.InvalidInput(name + " must be a positive integer")
	}
	return id, nil
}

// JSON views. Money is rendered as a fixed two-decimal string so clients never
// round-trip amounts through floats.

type transactionView struct {
	ID               int64  `json:"id"`
	Timestamp        string `json:"timestamp"`
	Kind             string `json:"kind"`
	Category         string `json:"category"`
	Amount           string `json:"amount"`
	Currency         string `json:"currency"`
	NormalizedAmount string `json:"normalized_amount"`
	Description      string `json:"description"`
}

func newTransactionView(t core.Transaction, loc *time.Location) transactionView {
	return transactionView{
		ID:               t.ID,
		Timestamp:        core.FormatTimestamp(t.Timestamp, loc),
		Kind:             string(t.Kind),
		Category:         t.Category,
		Amount:           t.OriginalAmount.String(),
		Currency:         t.OriginalCurrency,
		NormalizedAmount: t.NormalizedAmount.String(),
		Description:      t.Description,
	}
}

type goalView struct {
	ID        int64   `json:"id"`
	Name      string  `json:"name"`
	Target    string  `json:"target"`
	Current   string  `json:"current"`
	Remaining string  `json:"remaining"`
	Deadline  *string `json:"deadline"`
	Percent   float64 `json:"percent"`
	Completed bool    `json:"completed"`
}

func newGoalView(g core.GoalView) goalView {
	v := goalView{
		ID:        g.ID,
		Name:      g.Name,
		Target:    g.Target.String(),
		Current:   g.Current.String(),
		Remaining: g.Remaining().String(),
		Percent:   g.Percent,
		Completed: g.Completed,
	}
	if g.Deadline != nil {
		d := g.Deadline.String()
		v.Deadline = &d
	}
	return v
}

func newGoalViews(goals []core.GoalView) []goalView {
	out := make([]goalView, len(goals))
	for i, g := range goals {
		out[i] = newGoalView(g)
	}
	return out
}

type budgetView struct {
	Ceiling            *string `json:"ceiling"`
	MonthToDateExpense string  `json:"month_to_date_expense"`
	IsWarning          bool    `json:"is_warning"`
	IsOver             bool    `json:"is_over"`
}

func newBudgetView(b core.BudgetStatus) budgetView {
	v := budgetView{
		MonthToDateExpense: b.MonthToDateExpense.String(),
		IsWarning:          b.IsWarning,
		IsOver:             b.IsOver,
	}
	if b.Ceiling != nil {
		c := b.Ceiling.String()
		v.Ceiling = &c
	}
	return v
}

type dailyView struct {
	Day     string `json:"day"`
	Income  string `json:"income"`
	Expense string `json:"expense"`
}

type dashboardView struct {
	HomeCurrency string      `json:"home_currency"`
	Balance      string      `json:"balance"`
	TotalIncome  string      `json:"total_income"`
	TotalExpense string      `json:"total_expense"`
	Budget       budgetView  `json:"budget"`
	DailySeries  []dailyView `json:"daily_series"`
	Goals        []goalView  `json:"goals"`
}

func newDashboardView(d core.Dashboard) dashboardView {
	v := dashboardView{
		HomeCurrency: d.HomeCurrency,
		Balance:      d.Balance.String(),
		TotalIncome:  d.Totals.Income.String(),
		TotalExpense: d.Totals.Expense.String(),
		Budget:       newBudgetView(d.Budget),
		DailySeries:  make([]dailyView, len(d.DailySeries)),
		Goals:        newGoalViews(d.Goals),
	}
	for i, day := range d.DailySeries {
		v.DailySeries[i] = dailyView{Day: day.Day, Income: day.Income.String(), Expense: day.Expense.String()}
	}
	return v
}
