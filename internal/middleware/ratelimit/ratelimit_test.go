package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestLimiter(t *testing.T, limit int) (*Limiter, *time.Time) {
	t.Helper()
	rl := NewLimiter(Config{RequestsPerMinute: limit, Methods: DefaultConfig().Methods})
	t.Cleanup(rl.Stop)
	now := time.Date(2025, 4, 1, 10, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }
	return rl, &now
}

func TestAllowWindow(t *testing.T) {
	rl, now := newTestLimiter(t, 2)

	for i := 0; i < 2; i++ {
		if ok, _ := rl.Allow("10.0.0.1"); !ok {
			t.Fatalf("request %d rejected", i+1)
		}
	}
	*now = now.Add(20 * time.Second)
	ok, retry := rl.Allow("10.0.0.1")
	if ok {
		t.Fatal("third request in window allowed")
	}
	if retry != 40*time.Second {
		t.Errorf("retry = %v, want 40s", retry)
	}
	if ok, _ := rl.Allow("10.0.0.2"); !ok {
		t.Error("other client should not share the window")
	}

	*now = now.Add(time.Minute)
	if ok, _ := rl.Allow("10.0.0.1"); !ok {
		t.Error("new window should allow")
	}
	if got := rl.GetMetrics().Hits; got != 1 {
		t.Errorf("hits = %d, want 1", got)
	}
}

func TestCleanupStaleEntries(t *testing.T) {
	rl, now := newTestLimiter(t, 5)
	rl.Allow("a")
	*now = now.Add(15 * time.Minute)
	rl.Allow("b")
	rl.cleanupStaleEntries()
	if got := rl.ActiveClients(); got != 1 {
		t.Errorf("ActiveClients() = %d, want 1", got)
	}
}

func TestMiddlewareCountsWritesOnly(t *testing.T) {
	rl, _ := newTestLimiter(t, 1)
	var limited int
	h := rl.Middleware(func(*http.Request) string { return "c" }, func(w http.ResponseWriter, r *http.Request, retry time.Duration) {
		limited++
		w.Header().Set("Retry-After", RetryAfter(retry))
		w.WriteHeader(http.StatusTooManyRequests)
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	tests := []struct {
		method string
		want   int
	}{
		{http.MethodPost, http.StatusOK},
		{http.MethodGet, http.StatusOK},
		{http.MethodGet, http.StatusOK},
		{http.MethodDelete, http.StatusTooManyRequests},
	}
	for i, tt := range tests {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(tt.method, "/api/transactions", nil))
		if rec.Code != tt.want {
			t.Errorf("request %d %s: status %d, want %d", i, tt.method, rec.Code, tt.want)
		}
	}
	if limited != 1 {
		t.Errorf("onLimit called %d times, want 1", limited)
	}
}

func TestRetryAfter(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "1"},
		{400 * time.Millisecond, "1"},
		{42 * time.Second, "42"},
	}
	for _, tt := range tests {
		if got := RetryAfter(tt.in); got != tt.want {
			t.Errorf("RetryAfter(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
