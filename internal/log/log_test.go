package log

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newBuffered(component string) (*Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	h := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	return New(slog.New(h), component), &buf
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"", slog.LevelInfo, false},
		{"INFO", slog.LevelInfo, false},
		{"warning", slog.LevelWarn, false},
		{" error ", slog.LevelError, false},
		{"verbose", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestWithComponentKeepsAttributes(t *testing.T) {
	logger, buf := newBuffered(ComponentHTTP)
	logger.With(FieldRequestID, "req_1").WithComponent(ComponentSecurity).Info("flagged")

	out := buf.String()
	if !strings.Contains(out, "component=security") {
		t.Errorf("component not retagged: %s", out)
	}
	if strings.Contains(out, "component=http") {
		t.Errorf("old component still present: %s", out)
	}
	if !strings.Contains(out, "request_id=req_1") {
		t.Errorf("request id dropped: %s", out)
	}
}

func TestFieldsKeepOrderAndReplace(t *testing.T) {
	f := NewFields().
		WithOperation(OpCreate).
		WithEntry("e1", "Asha Rao", "REC-1/1", 10000).
		WithOperation(OpUpdate).
		WithError(nil).
		WithRequestID("")

	args := f.ToSlice()
	if len(args) != 5 {
		t.Fatalf("got %d fields, want 5: %v", len(args), args)
	}
	first := args[0].(slog.Attr)
	if first.Key != FieldOperation || first.Value.String() != OpUpdate {
		t.Errorf("first field = %v, want operation=update", first)
	}
	last := args[4].(slog.Attr)
	if last.Key != FieldAmountCents || last.Value.Int64() != 10000 {
		t.Errorf("last field = %v, want amount_cents=10000", last)
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	logger, buf := newBuffered(ComponentHTTP)
	var h http.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		FromContext(r.Context()).InfoContext(r.Context(), "handled")
	})
	h = RequestIDMiddleware(func(*http.Request) string { return "req_42" })(h)
	h = Middleware(logger)(h)

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if out := buf.String(); !strings.Contains(out, "request_id=req_42") || !strings.Contains(out, "component=http") {
		t.Errorf("unexpected log line: %s", out)
	}
}

func TestRequestIDMiddlewareWithoutID(t *testing.T) {
	logger, buf := newBuffered(ComponentHTTP)
	var h http.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		FromContext(r.Context()).InfoContext(r.Context(), "handled")
	})
	h = RequestIDMiddleware(func(*http.Request) string { return "" })(h)
	h = Middleware(logger)(h)

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if out := buf.String(); strings.Contains(out, "request_id") {
		t.Errorf("empty request id logged: %s", out)
	}
}

func TestFromContextFallsBackToDefault(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	FromContext(context.Background()).Info("fallback")
	if out := buf.String(); !strings.Contains(out, "component=app") {
		t.Errorf("unexpected log line: %s", out)
	}
}

func TestWithComponentSameComponent(t *testing.T) {
	logger, _ := newBuffered(ComponentHTTP)
	if logger.WithComponent(ComponentHTTP) != logger {
		t.Error("retagging with the same component built a new logger")
	}
	if logger.WithComponent(ComponentSecurity) == logger {
		t.Error("retagging with another component returned the same logger")
	}
}

func TestLogError(t *testing.T) {
	logger, buf := newBuffered(ComponentHTTP)
	NewStructuredLogger(logger).LogError(context.Background(), "failed", errors.New("boom"), OpExport, nil)
	out := buf.String()
	for _, want := range []string{"level=ERROR", "error=boom", "operation=export"} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in %s", want, out)
		}
	}
}
