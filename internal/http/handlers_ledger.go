package http

import (
	"net/http"
	"strconv"

	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/services"
)

type recordRequest struct {
	Kind        string      `json:"kind"`
	Category    string      `json:"category"`
	Amount      AmountField `json:"amount"`
	Currency    string      `json:"currency"`
	Description string      `json:"description"`
	Timestamp   string      `json:"timestamp"`
}

type recordResponse struct {
	ID               int64   `json:"id"`
	NormalizedAmount string  `json:"normalized_amount"`
	Rate             string  `json:"rate"`
	Converted        bool    `json:"converted"`
	Warning          *string `json:"warning,omitempty"`
}

func (s *Server) handleRecordTransaction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess := sessionFrom(ctx)

	var req recordRequest
	if err := decodeJSON(r, &req); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	amount, err := req.Amount.Amount()
	if err != nil {
		DomainError(r, err).Write(w)
		return
	}
	ts, err := parseOptionalTimestamp(req.Timestamp, s.loc)
	if err != nil {
		DomainError(r, err).Write(w)
		return
	}

	res, err := s.ledger.Record(ctx, sess.UserID, services.RecordInput{
		Timestamp:   ts,
		Kind:        core.Kind(req.Kind),
		Category:    sanitizeInput(req.Category),
		Amount:      amount,
		Currency:    req.Currency,
		Description: sanitizeInput(req.Description),
	})
	if err != nil {
		DomainError(r, err).Write(w)
		return
	}

	log.NewStructuredLogger(log.FromContext(ctx).WithComponent(log.ComponentLedger)).
		LogTransactionRecorded(ctx, sess.UserID, res.ID, req.Kind, req.Category, res.Normalized.Cents, req.Currency)

	body := recordResponse{
		ID:               res.ID,
		NormalizedAmount: res.Normalized.String(),
		Rate:             res.Rate.String(),
		Converted:        res.Converted,
	}
	if res.Warning != nil {
		msg := res.Warning.Error()
		body.Warning = &msg
	}
	NewJSONResponse().
		Status(http.StatusCreated).
		Header("Location", "/api/transactions/"+strconv.FormatInt(res.ID, 10)).
		Data(body).
		Write(w)
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess := sessionFrom(ctx)
	q := r.URL.Query()

	txs, err := s.ledger.List(ctx, sess.UserID, core.TransactionFilter{
		MonthPrefix: q.Get("month"),
		Category:    sanitizeInput(q.Get("category")),
	})
	if err != nil {
		DomainError(r, err).Write(w)
		return
	}
	balance, err := s.balance.CurrentBalance(ctx, sess.UserID)
	if err != nil {
		DomainError(r, err).Write(w)
		return
	}

	views := make([]transactionView, len(txs))
	for i, t := range txs {
		views[i] = newTransactionView(t, s.loc)
	}
	NewJSONResponse().
		Data(map[string]any{
			"balance":      balance.String(),
			"transactions": views,
		}).
		Write(w)
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		DomainError(r, err).Write(w)
		return
	}
	t, err := s.ledger.Get(r.Context(), sessionFrom(r.Context()).UserID, id)
	if err != nil {
		DomainError(r, err).Write(w)
		return
	}
	NewJSONResponse().Data(newTransactionView(t, s.loc)).Write(w)
}

type categoryTotalView struct {
	Category string  `json:"category"`
	Kind     string  `json:"kind"`
	Total    string  `json:"total"`
	Percent  float64 `json:"percent"`
}

func (s *Server) handleCategoryReport(w http.ResponseWriter, r *http.Request) {
	totals, err := s.ledger.CategoryReport(r.Context(), sessionFrom(r.Context()).UserID)
	if err != nil {
		DomainError(r, err).Write(w)
		return
	}
	views := make([]categoryTotalView, len(totals))
	for i, ct := range totals {
		views[i] = categoryTotalView{Category: ct.Category, Kind: string(ct.Kind), Total: ct.Total.String(), Percent: ct.Percent}
	}
	NewJSONResponse().Data(map[string]any{"categories": views}).Write(w)
}

func (s *Server) handleWeeklyReport(w http.ResponseWriter, r *http.Request) {
	days, err := queryInt(r.URL.Query(), "days", services.DefaultWeeklyWindowDays)
	if err != nil {
		DomainError(r, err).Write(w)
		return
	}
	avg, err := s.balance.WeeklyAverage(r.Context(), sessionFrom(r.Context()).UserID, days)
	if err != nil {
		DomainError(r, err).Write(w)
		return
	}
	NewJSONResponse().
		Data(map[string]any{
			"window_days":      avg.WindowDays,
			"income_per_week":  avg.IncomePerWeek.String(),
			"expense_per_week": avg.ExpensePerWeek.String(),
			"total_income":     avg.TotalIncome.String(),
			"total_expense":    avg.TotalExpense.String(),
		}).
		Write(w)
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	d, err := s.dashboard.Get(r.Context(), sessionFrom(r.Context()).UserID)
	if err != nil {
		DomainError(r, err).Write(w)
		return
	}
	NewJSONResponse().Data(newDashboardView(d)).Write(w)
}
