package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"fintrack/internal/cache"
	"fintrack/internal/core"
	"fintrack/internal/log"
)

// Session is the authenticated identity behind a bearer token.
type Session struct {
	UserID    int64
	Username  string
	CreatedAt time.Time
}

// SessionManager keeps login sessions in memory with sliding expiry. Sessions
// do not survive a restart; clients log in again.
type SessionManager struct {
	sessions *cache.LRUCache[Session]
	ttl      time.Duration
	now      func() time.Time
}

func NewSessionManager(ttl time.Duration, maxSessions int) *SessionManager {
	return &SessionManager{
		sessions: cache.NewLRUCache[Session](maxSessions, ttl),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Cache exposes the backing store so a cache.Manager can sweep it.
func (m *SessionManager) Cache() *cache.LRUCache[Session] {
	return m.sessions
}

func (m *SessionManager) TTL() time.Duration {
	return m.ttl
}

// Create opens a session for u and returns its token.
func (m *SessionManager) Create(u core.User) string {
	token := uuid.NewString()
	m.sessions.Set(token, Session{UserID: u.ID, Username: u.Username, CreatedAt: m.now()})
	return token
}

// Resolve returns the session and extends its lifetime.
func (m *SessionManager) Resolve(token string) (Session, bool) {
	if token == "" {
		return Session{}, false
	}
	return m.sessions.Touch(token)
}

func (m *SessionManager) Drop(token string) {
	m.sessions.Delete(token)
}

type sessionContextKey struct{}

// requireSession rejects requests without a live bearer token and hands the
// user id to the handler through the context.
func (s *Server) requireSession(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := s.sessions.Resolve(bearerToken(r))
		if !ok {
			UnauthorizedError().Write(w)
			return
		}
		ctx := context.WithValue(r.Context(), sessionContextKey{}, sess)
		ctx = log.NewContext(ctx, log.FromContext(ctx).With(log.FieldUserID, sess.UserID))
		next(w, r.WithContext(ctx))
	}
}

func sessionFrom(ctx context.Context) Session {
	sess, _ := ctx.Value(sessionContextKey{}).(Session)
	return sess
}

func bearerToken(r *http.Request) string {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
