package http

import (
	"net/http"
	"strconv"

	"fintrack/internal/log"
	"fintrack/internal/services"
)

type createGoalRequest struct {
	Name     string      `json:"name"`
	Target   AmountField `json:"target"`
	Deadline string      `json:"deadline"`
}

type depositRequest struct {
	Amount AmountField `json:"amount"`
}

type ceilingRequest struct {
	Ceiling AmountField `json:"ceiling"`
}

func (s *Server) handleListGoals(w http.ResponseWriter, r *http.Request) {
	goals, err := s.goals.ListGoals(r.Context(), sessionFrom(r.Context()).UserID)
	if err != nil {
		DomainError(r, err).Write(w)
		return
	}
	NewJSONResponse().Data(map[string]any{"goals": newGoalViews(goals)}).Write(w)
}

func (s *Server) handleGetGoal(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		DomainError(r, err).Write(w)
		return
	}
	g, err := s.goals.GetGoal(r.Context(), sessionFrom(r.Context()).UserID, id)
	if err != nil {
		DomainError(r, err).Write(w)
		return
	}
	NewJSONResponse().Data(newGoalView(g)).Write(w)
}

func (s *Server) handleCreateGoal(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess := sessionFrom(ctx)

	var req createGoalRequest
	if err := decodeJSON(r, &req); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	target, err := req.Target.Amount()
	if err != nil {
		DomainError(r, err).Write(w)
		return
	}
	deadline, err := parseOptionalDate(req.Deadline)
	if err != nil {
		DomainError(r, err).Write(w)
		return
	}

	id, err := s.goals.CreateGoal(ctx, sess.UserID, sanitizeInput(req.Name), target, deadline)
	if err != nil {
		DomainError(r, err).Write(w)
		return
	}
	g, err := s.goals.GetGoal(ctx, sess.UserID, id)
	if err != nil {
		DomainError(r, err).Write(w)
		return
	}

	NewJSONResponse().
		Status(http.StatusCreated).
		Header("Location", "/api/goals/"+strconv.FormatInt(id, 10)).
		Data(newGoalView(g)).
		Write(w)
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess := sessionFrom(ctx)

	goalID, err := pathID(r, "id")
	if err != nil {
		DomainError(r, err).Write(w)
		return
	}
	var req depositRequest
	if err := decodeJSON(r, &req); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	amount, err := req.Amount.Amount()
	if err != nil {
		DomainError(r, err).Write(w)
		return
	}

	res, err := s.goals.Deposit(ctx, sess.UserID, goalID, amount)
	if err != nil {
		DomainError(r, err).Write(w)
		return
	}

	log.FromContext(ctx).InfoContext(ctx, "Goal deposit committed",
		log.FieldGoalID, goalID,
		log.FieldTransactionID, res.TransactionID,
		log.FieldAmountCents, amount.Cents,
		log.FieldOperation, log.OpDeposit)

	NewJSONResponse().
		Data(map[string]any{
			"goal":           newGoalView(services.GoalView(res.Goal)),
			"transaction_id": res.TransactionID,
			"balance":        res.BalanceAfter.String(),
		}).
		Write(w)
}

func (s *Server) handleBudgetStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.budget.Status(r.Context(), sessionFrom(r.Context()).UserID)
	if err != nil {
		DomainError(r, err).Write(w)
		return
	}
	NewJSONResponse().Data(newBudgetView(st)).Write(w)
}

func (s *Server) handleSetBudget(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess := sessionFrom(ctx)

	var req ceilingRequest
	if err := decodeJSON(r, &req); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	ceiling, err := req.Ceiling.Ceiling()
	if err != nil {
		DomainError(r, err).Write(w)
		return
	}
	if err := s.budget.SetBudget(ctx, sess.UserID, ceiling); err != nil {
		DomainError(r, err).Write(w)
		return
	}
	st, err := s.budget.Status(ctx, sess.UserID)
	if err != nil {
		DomainError(r, err).Write(w)
		return
	}
	NewJSONResponse().Data(newBudgetView(st)).Write(w)
}
