package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/estatehub/marketplace/internal/app/domain/user"
	"github.com/estatehub/marketplace/internal/app/services/users"
	"github.com/estatehub/marketplace/internal/app/storage/memory"
	"github.com/estatehub/marketplace/pkg/logger"
)

func newUsers(t *testing.T) (*users.Service, string) {
	t.Helper()
	svc := users.New(memory.New(), users.TokenConfig{Secret: []byte("0123456789abcdef0123456789abcdef")}, logger.NewDiscard()).
		WithBcryptCost(bcrypt.MinCost)
	session, err := svc.Register(context.Background(), "ann@example.com", "Ann", "correct horse", user.RoleAgent)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	return svc, session.Token
}

// echoActor writes the caller id, or "anonymous".
var echoActor = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	actor := ActorFrom(r.Context())
	if actor.UserID == "" {
		_, _ = w.Write([]byte("anonymous"))
		return
	}
	_, _ = w.Write([]byte(string(actor.Role) + ":" + actor.UserID))
})

func TestAuthMiddlewareHandler(t *testing.T) {
	svc, token := newUsers(t)
	handler := NewAuthMiddleware(svc, logger.NewDiscard()).Handler(echoActor)

	tests := []struct {
		name       string
		header     string
		upgrade    bool
		query      string
		wantStatus int
		wantPrefix string
	}{
		{name: "anonymous", wantStatus: http.StatusOK, wantPrefix: "anonymous"},
		{name: "valid token", header: "Bearer " + token, wantStatus: http.StatusOK, wantPrefix: "agent:"},
		{name: "lowercase scheme", header: "bearer " + token, wantStatus: http.StatusOK, wantPrefix: "agent:"},
		{name: "bad token", header: "Bearer nope", wantStatus: http.StatusUnauthorized},
		{name: "basic auth", header: "Basic dXNlcjpwYXNz", wantStatus: http.StatusUnauthorized},
		{name: "websocket query token", upgrade: true, query: "?access_token=" + token, wantStatus: http.StatusOK, wantPrefix: "agent:"},
		{name: "query token ignored without upgrade", query: "?access_token=" + token, wantStatus: http.StatusOK, wantPrefix: "anonymous"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/users/me"+tt.query, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			if tt.upgrade {
				req.Header.Set("Upgrade", "websocket")
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.wantPrefix != "" && !strings.HasPrefix(rec.Body.String(), tt.wantPrefix) {
				t.Fatalf("body = %q, want prefix %q", rec.Body.String(), tt.wantPrefix)
			}
		})
	}
}

func TestRequireAuthAndRole(t *testing.T) {
	adminOnly := RequireRole(user.RoleAdmin)(echoActor)
	authOnly := RequireAuth(echoActor)

	serve := func(h http.Handler, claims *users.Claims) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if claims != nil {
			req = req.WithContext(WithClaims(req.Context(), *claims))
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	if got := serve(authOnly, nil); got != http.StatusUnauthorized {
		t.Fatalf("anonymous status = %d", got)
	}
	if got := serve(authOnly, &users.Claims{UserID: "u1", Role: user.RoleUser}); got != http.StatusOK {
		t.Fatalf("authenticated status = %d", got)
	}
	if got := serve(adminOnly, nil); got != http.StatusUnauthorized {
		t.Fatalf("anonymous admin status = %d", got)
	}
	if got := serve(adminOnly, &users.Claims{UserID: "u1", Role: user.RoleUser}); got != http.StatusForbidden {
		t.Fatalf("user admin status = %d", got)
	}
	if got := serve(adminOnly, &users.Claims{UserID: "root", Role: user.RoleAdmin}); got != http.StatusOK {
		t.Fatalf("admin status = %d", got)
	}
}

func TestCORSMiddleware(t *testing.T) {
	handler := NewCORSMiddleware([]string{"https://app.example.com", "*.estatehub.io"}).Handler(echoActor)

	tests := []struct {
		origin  string
		allowed bool
	}{
		{"https://app.example.com", true},
		{"https://admin.estatehub.io", true},
		{"https://estatehub.io.evil.com", false},
		{"https://evil.com", false},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Origin", tt.origin)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		got := rec.Header().Get("Access-Control-Allow-Origin") == tt.origin
		if got != tt.allowed {
			t.Fatalf("origin %s allowed = %v, want %v", tt.origin, got, tt.allowed)
		}
	}

	req := httptest.NewRequest(http.MethodOptions, "/api/properties", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", "PATCH")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("preflight status = %d", rec.Code)
	}
	if methods := rec.Header().Get("Access-Control-Allow-Methods"); methods == "" || !strings.Contains(methods, "PATCH") {
		t.Fatalf("allow methods = %q", methods)
	}
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(1, 2, logger.NewDiscard())
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }
	handler := rl.Handler(echoActor)

	do := func(remote string, claims *users.Claims) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = remote
		if claims != nil {
			req = req.WithContext(WithClaims(req.Context(), *claims))
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	for i := 0; i < 2; i++ {
		if rec := do("10.0.0.1:1234", nil); rec.Code != http.StatusOK {
			t.Fatalf("request %d status = %d", i, rec.Code)
		}
	}
	rec := do("10.0.0.1:5678", nil)
	if rec.Code != http.StatusTooManyRequests || rec.Header().Get("Retry-After") == "" {
		t.Fatalf("expected 429 with Retry-After, got %d", rec.Code)
	}
	if rec := do("10.0.0.2:1234", nil); rec.Code != http.StatusOK {
		t.Fatalf("other client status = %d", rec.Code)
	}
	if rec := do("10.0.0.1:1234", &users.Claims{UserID: "u1"}); rec.Code != http.StatusOK {
		t.Fatalf("authenticated users get their own bucket, status = %d", rec.Code)
	}

	now = now.Add(time.Second)
	if rec := do("10.0.0.1:1234", nil); rec.Code != http.StatusOK {
		t.Fatalf("bucket should refill, status = %d", rec.Code)
	}

	now = now.Add(time.Hour)
	if removed := rl.Cleanup(time.Minute); removed != 3 {
		t.Fatalf("removed = %d, want 3", removed)
	}
}

func TestTracingEchoesOrAssigns(t *testing.T) {
	var seen string
	handler := Tracing(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = TraceID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(TraceHeader, "trace-123")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if seen != "trace-123" || rec.Header().Get(TraceHeader) != "trace-123" {
		t.Fatalf("trace not propagated: ctx=%q header=%q", seen, rec.Header().Get(TraceHeader))
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if seen == "" || seen == "trace-123" || rec.Header().Get(TraceHeader) != seen {
		t.Fatalf("expected generated trace id, got %q", seen)
	}
}

func TestResponseWriterCapturesStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := &responseWriter{ResponseWriter: rec, statusCode: http.StatusOK}
	rw.WriteHeader(http.StatusTeapot)
	rw.WriteHeader(http.StatusOK)
	if rw.statusCode != http.StatusTeapot || rec.Code != http.StatusTeapot {
		t.Fatalf("status = %d/%d", rw.statusCode, rec.Code)
	}
	if _, _, err := rw.Hijack(); err == nil {
		t.Fatalf("recorder cannot be hijacked")
	}
}
