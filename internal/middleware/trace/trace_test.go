package trace

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
)

func TestMiddleware_AssignsRequestID(t *testing.T) {
	m := NewMiddleware(func(*http.Request) string { return "127.0.0.1" })

	var seen string
	handler := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
		w.WriteHeader(http.StatusInternalServerError)
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/dashboard", nil))

	if _, err := uuid.Parse(seen); err != nil {
		t.Fatalf("request id %q is not a uuid: %v", seen, err)
	}
	if rr.Header().Get(RequestIDHeader) != seen {
		t.Errorf("response header = %q, want %q", rr.Header().Get(RequestIDHeader), seen)
	}

	metrics := m.GetMetrics()
	if metrics.TotalRequests != 1 || metrics.ServerErrors != 1 {
		t.Errorf("metrics = %+v", metrics)
	}
}

func TestMiddleware_ReusesWellFormedUpstreamID(t *testing.T) {
	m := NewMiddleware(nil)
	upstream := uuid.NewString()

	var seen string
	handler := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, upstream)
	handler.ServeHTTP(httptest.NewRecorder(), req)
	if seen != upstream {
		t.Errorf("request id = %q, want upstream %q", seen, upstream)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "<script>")
	handler.ServeHTTP(httptest.NewRecorder(), req)
	if seen == "<script>" {
		t.Error("malformed upstream id must be replaced")
	}
}
