package middleware

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"chatrelay/internal/domain"
	"chatrelay/internal/domain/models"
	"chatrelay/internal/httputil"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stubResolver struct {
	user *models.AuthenticatedUser
	err  error
}

func (s stubResolver) Resolve(_ context.Context, _ http.Header) (*models.AuthenticatedUser, error) {
	return s.user, s.err
}

// echoUser writes the principal id seen by the wrapped handler.
var echoUser = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	if user := httputil.GetUser(r); user != nil {
		io.WriteString(w, user.PrincipalID)
		return
	}
	io.WriteString(w, "anonymous")
})

func TestAuth(t *testing.T) {
	alice := &models.AuthenticatedUser{PrincipalID: "alice"}

	tests := []struct {
		name       string
		resolver   stubResolver
		required   bool
		wantStatus int
		wantBody   string
	}{
		{"resolved", stubResolver{user: alice}, true, http.StatusOK, "alice"},
		{"missing identity required", stubResolver{err: domain.ErrUnauthorized}, true, http.StatusUnauthorized, `{"error":"authentication required"}`},
		{"missing identity optional", stubResolver{err: domain.ErrUnauthorized}, false, http.StatusOK, "anonymous"},
		{"resolver failure", stubResolver{err: errors.New("jwks down")}, false, http.StatusInternalServerError, `{"error":"identity resolution failed"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mw := Identify(tt.resolver, discardLogger())
			if tt.required {
				mw = Auth(tt.resolver, discardLogger())
			}
			rec := httptest.NewRecorder()
			mw(echoUser).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/history/list", nil))

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if rec.Body.String() != tt.wantBody {
				t.Errorf("body = %q, want %q", rec.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestRecovery(t *testing.T) {
	panicky := http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") })

	rec := httptest.NewRecorder()
	Recovery(discardLogger())(panicky).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d", rec.Code)
	}
	if got := rec.Body.String(); got != `{"error":"internal server error"}` {
		t.Errorf("body = %s", got)
	}
}

func TestUserLimiter_Allow(t *testing.T) {
	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l := NewUserLimiter(3)
	l.now = func() time.Time { return clock }

	for i := 0; i < 3; i++ {
		if !l.Allow("alice") {
			t.Fatalf("request %d denied within allowance", i+1)
		}
	}
	if l.Allow("alice") {
		t.Fatal("request allowed after allowance was spent")
	}
	if !l.Allow("bob") {
		t.Fatal("allowances must be per caller")
	}

	clock = clock.Add(20 * time.Second)
	if !l.Allow("alice") {
		t.Fatal("token not replenished after 20s at 3/min")
	}
}

func TestUserLimiter_SweepsIdleEntries(t *testing.T) {
	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l := NewUserLimiter(10)
	l.now = func() time.Time { return clock }

	l.Allow("alice")
	clock = clock.Add(limiterIdleTTL + time.Minute)
	l.Allow("bob")

	if _, ok := l.entries["alice"]; ok {
		t.Error("idle limiter was not swept")
	}
	if _, ok := l.entries["bob"]; !ok {
		t.Error("active limiter was swept")
	}
}

func TestRateLimit(t *testing.T) {
	l := NewUserLimiter(1)
	user := &models.AuthenticatedUser{PrincipalID: "alice"}
	handler := RateLimit(l, discardLogger())(echoUser)

	send := func() int {
		req := httptest.NewRequest(http.MethodPost, "/conversation", nil)
		req = req.WithContext(httputil.WithUser(req.Context(), user))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	if code := send(); code != http.StatusOK {
		t.Fatalf("first request status = %d", code)
	}
	if code := send(); code != http.StatusTooManyRequests {
		t.Fatalf("second request status = %d, want 429", code)
	}
}
