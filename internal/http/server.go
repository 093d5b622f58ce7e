package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"fintrack/internal/log"
	"fintrack/internal/middleware/ratelimit"
	"fintrack/internal/middleware/security"
	"fintrack/internal/middleware/trace"
	"fintrack/internal/services"
)

// Pinger reports whether the record store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the services the API is a thin shell over.
type Deps struct {
	Ledger    *services.LedgerService
	Balance   *services.BalanceService
	Budget    *services.BudgetService
	Goals     *services.GoalService
	Dashboard *services.DashboardService
	Auth      *services.AuthService
	Sessions  *SessionManager
	Store     Pinger
	Logger    *log.Logger
	Location  *time.Location

	RateLimitPerMinute int
}

type Server struct {
	http.Server

	ledger    *services.LedgerService
	balance   *services.BalanceService
	budget    *services.BudgetService
	goals     *services.GoalService
	dashboard *services.DashboardService
	auth      *services.AuthService
	sessions  *SessionManager
	store     Pinger
	loc       *time.Location

	rateLimiter  *ratelimit.Limiter
	tracer       *trace.Middleware
	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, d Deps) *Server {
	if d.Location == nil {
		d.Location = time.Local
	}
	if d.Logger == nil {
		d.Logger = log.New(log.DefaultConfig())
	}

	ips := security.NewClientIPResolver()
	s := &Server{
		ledger:      d.Ledger,
		balance:     d.Balance,
		budget:      d.Budget,
		goals:       d.Goals,
		dashboard:   d.Dashboard,
		auth:        d.Auth,
		sessions:    d.Sessions,
		store:       d.Store,
		loc:         d.Location,
		rateLimiter: ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: d.RateLimitPerMinute}),
		tracer:      trace.NewMiddleware(ips.ClientIP),
	}

	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		NotFoundError("no such endpoint").Write(w)
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		MethodNotAllowedError().Write(w)
	})

	r.Use(log.Middleware(d.Logger.WithComponent(log.ComponentHTTP)))
	r.Use(s.tracer.Middleware)
	r.Use(security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware)
	r.Use(s.rateLimiter.Middleware(ips.ClientIP, func(w http.ResponseWriter, r *http.Request) {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
			log.FieldClientIP, ips.ClientIP(r),
			log.FieldPath, r.URL.Path)
		TooManyRequestsError().Write(w)
	}, http.MethodPost))

	r.HandleFunc("/healthz", handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/readyz", s.handleReady).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/register", s.handleRegister).Methods(http.MethodPost)
	api.HandleFunc("/login", s.handleLogin).Methods(http.MethodPost)
	api.HandleFunc("/logout", s.requireSession(s.handleLogout)).Methods(http.MethodPost)
	api.HandleFunc("/categories", handleCategories).Methods(http.MethodGet)

	api.HandleFunc("/dashboard", s.requireSession(s.handleDashboard)).Methods(http.MethodGet)
	api.HandleFunc("/transactions", s.requireSession(s.handleListTransactions)).Methods(http.MethodGet)
	api.HandleFunc("/transactions", s.requireSession(s.handleRecordTransaction)).Methods(http.MethodPost)
	api.HandleFunc("/transactions/{id:[0-9]+}", s.requireSession(s.handleGetTransaction)).Methods(http.MethodGet)
	api.HandleFunc("/reports/categories", s.requireSession(s.handleCategoryReport)).Methods(http.MethodGet)
	api.HandleFunc("/reports/weekly", s.requireSession(s.handleWeeklyReport)).Methods(http.MethodGet)
	api.HandleFunc("/budget", s.requireSession(s.handleBudgetStatus)).Methods(http.MethodGet)
	api.HandleFunc("/budget", s.requireSession(s.handleSetBudget)).Methods(http.MethodPut)
	api.HandleFunc("/goals", s.requireSession(s.handleListGoals)).Methods(http.MethodGet)
	api.HandleFunc("/goals", s.requireSession(s.handleCreateGoal)).Methods(http.MethodPost)
	api.HandleFunc("/goals/{id:[0-9]+}", s.requireSession(s.handleGetGoal)).Methods(http.MethodGet)
	api.HandleFunc("/goals/{id:[0-9]+}/deposit", s.requireSession(s.handleDeposit)).Methods(http.MethodPost)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Metrics returns request counters collected by the trace middleware.
func (s *Server) Metrics() trace.Metrics {
	return s.tracer.GetMetrics()
}

// Shutdown gracefully shuts down the server and its background routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Data(map[string]string{"status": "ok"}).Write(w)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.store.Ping(ctx); err != nil {
			log.FromContext(ctx).WarnContext(ctx, "Readiness check failed", log.FieldError, err)
			ErrorResponse(http.StatusServiceUnavailable, "not_ready", "record store unavailable").Write(w)
			return
		}
	}
	NewJSONResponse().Data(map[string]string{"status": "ready"}).Write(w)
}
