package http

import (
	"net/http"

	"fintrack/internal/core"
	"fintrack/internal/log"
)

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	u, err := s.auth.Register(r.Context(), sanitizeInput(req.Username), req.Password)
	if err != nil {
		DomainError(r, err).Write(w)
		return
	}

	log.FromContext(r.Context()).InfoContext(r.Context(), "User registered",
		log.FieldUserID, u.ID,
		log.FieldOperation, log.OpRegister)

	NewJSONResponse().
		Status(http.StatusCreated).
		Data(map[string]any{"id": u.ID, "username": u.Username}).
		Write(w)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	u, err := s.auth.Authenticate(r.Context(), sanitizeInput(req.Username), req.Password)
	if err != nil {
		DomainError(r, err).Write(w)
		return
	}

	token := s.sessions.Create(u)
	log.FromContext(r.Context()).InfoContext(r.Context(), "User logged in",
		log.FieldUserID, u.ID,
		log.FieldOperation, log.OpLogin)

	NewJSONResponse().
		Data(map[string]any{
			"token":      token,
			"token_type": "Bearer",
			"expires_in": int(s.sessions.TTL().Seconds()),
			"username":   u.Username,
		}).
		Write(w)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.sessions.Drop(bearerToken(r))
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

func handleCategories(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().
		Data(map[string][]string{
			"expense": core.ExpenseCategories,
			"income":  core.IncomeCategories,
		}).
		Write(w)
}
