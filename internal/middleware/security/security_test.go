package security

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestInspect(t *testing.T) {
	tests := []struct {
		name   string
		method string
		target string
		ua     string
		want   string
	}{
		{"ledger list", http.MethodGet, "/api/transactions?mode=Cash", "curl/8.5", ""},
		{"allocation", http.MethodPost, "/api/subscriptions", "rwactl", ""},
		{"dotenv probe", http.MethodGet, "/.env", "", "path:.env"},
		{"sql in query", http.MethodGet, "/api/residents?q=1%20union%20select", "", "query:union select"},
		{"scanner", http.MethodGet, "/api/balances", "sqlmap/1.7", "agent:sqlmap"},
		{"trace method", "TRACE", "/", "", "method:TRACE"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDetector()
			r := httptest.NewRequest(tt.method, tt.target, nil)
			r.Header.Set("User-Agent", tt.ua)
			if got := d.Inspect(r); got != tt.want {
				t.Errorf("Inspect() = %q, want %q", got, tt.want)
			}
			wantCount := int64(0)
			if tt.want != "" {
				wantCount = 1
			}
			if got := d.GetMetrics().SuspiciousRequests; got != wantCount {
				t.Errorf("SuspiciousRequests = %d, want %d", got, wantCount)
			}
		})
	}
}

func TestExtractClientIP(t *testing.T) {
	tests := []struct {
		name    string
		remote  string
		xff     string
		realIP  string
		want    string
		invalid int64
	}{
		{"direct", "203.0.113.7:5000", "", "", "203.0.113.7", 0},
		{"untrusted peer ignores xff", "203.0.113.7:5000", "198.51.100.1", "", "203.0.113.7", 0},
		{"trusted proxy xff", "10.0.0.2:5000", "198.51.100.1, 10.0.0.2", "", "198.51.100.1", 0},
		{"trusted proxy real ip", "127.0.0.1:5000", "", "198.51.100.9", "198.51.100.9", 0},
		{"garbage xff", "10.0.0.2:5000", "not-an-ip", "", "10.0.0.2", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDetector()
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remote
			if tt.xff != "" {
				r.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.realIP != "" {
				r.Header.Set("X-Real-IP", tt.realIP)
			}
			if got := d.ExtractClientIP(r); got != tt.want {
				t.Errorf("ExtractClientIP() = %q, want %q", got, tt.want)
			}
			if got := d.GetMetrics().InvalidIPAttempts; got != tt.invalid {
				t.Errorf("InvalidIPAttempts = %d, want %d", got, tt.invalid)
			}
		})
	}
}

func TestAddTrustedProxyRejectsGarbage(t *testing.T) {
	if err := NewDetector().AddTrustedProxy("nope"); err == nil {
		t.Fatal("expected error")
	}
}

func TestHeaders(t *testing.T) {
	h := NewHeadersMiddleware(DefaultHeadersConfig()).Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/balances", nil))
	if got := rec.Header().Get("Content-Security-Policy"); got != "default-src 'none'; frame-ancestors 'none'" {
		t.Errorf("CSP = %q", got)
	}
	if got := rec.Header().Get("Cache-Control"); got != "no-store" {
		t.Errorf("Cache-Control = %q, want no-store", got)
	}
	if rec.Header().Get("Strict-Transport-Security") != "" {
		t.Error("HSTS set on plain HTTP")
	}

	rec = httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	r.TLS = &tls.ConnectionState{}
	h.ServeHTTP(rec, r)
	if got := rec.Header().Get("Strict-Transport-Security"); got != "max-age=31536000" {
		t.Errorf("HSTS = %q", got)
	}
	if rec.Header().Get("Cache-Control") != "" {
		t.Error("Cache-Control set outside /api/")
	}
}
