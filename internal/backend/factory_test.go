package backend

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"rwa/internal/config"
)

func TestBackendType_IsValid(t *testing.T) {
	tests := []struct {
		bt   BackendType
		want bool
	}{
		{MemoryBackend, true},
		{SQLiteBackend, true},
		{PostgresBackend, true},
		{"sheets", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := tt.bt.IsValid(); got != tt.want {
			t.Errorf("%q.IsValid() = %v, want %v", tt.bt, got, tt.want)
		}
	}
}

func TestBackendTypes(t *testing.T) {
	got := strings.Join(BackendTypes(), ",")
	if got != "memory,sqlite,postgres" {
		t.Errorf("BackendTypes() = %q", got)
	}
}

func TestBackendType_Shared(t *testing.T) {
	if MemoryBackend.Shared() {
		t.Error("memory backend is process-local")
	}
	if !SQLiteBackend.Shared() || !PostgresBackend.Shared() {
		t.Error("durable backends are shared")
	}
}

func TestParseBackendType(t *testing.T) {
	if bt, err := ParseBackendType("sqlite"); err != nil || bt != SQLiteBackend {
		t.Errorf("ParseBackendType(sqlite) = %q, %v", bt, err)
	}
	if _, err := ParseBackendType("sheets"); err == nil || !strings.Contains(err.Error(), "memory") {
		t.Errorf("expected error listing the valid backends, got %v", err)
	}
}

func TestFromAppConfig(t *testing.T) {
	if _, err := FromAppConfig(nil); err == nil {
		t.Error("expected error for nil config")
	}
	if _, err := FromAppConfig(&config.Config{DataBackend: "sheets"}); err == nil {
		t.Error("expected error for unknown backend")
	}

	cfg, err := FromAppConfig(&config.Config{
		DataBackend:  "postgres",
		PostgresURL:  "postgres://localhost/rwa",
		AMQPURL:      "amqp://localhost",
		AMQPExchange: "rwa",
		AMQPQueue:    "ledger_events",
	})
	if err != nil {
		t.Fatalf("FromAppConfig() error = %v", err)
	}
	if cfg.Type != PostgresBackend || cfg.PostgresURL != "postgres://localhost/rwa" || cfg.Events.Queue != "ledger_events" {
		t.Errorf("unexpected backend config %+v", cfg)
	}
	if cfg.DataDirectory != "data" {
		t.Errorf("DataDirectory = %q, want default", cfg.DataDirectory)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"memory", Config{Type: MemoryBackend}, false},
		{"sqlite without path", Config{Type: SQLiteBackend}, true},
		{"sqlite", Config{Type: SQLiteBackend, SQLiteDBPath: "x.db"}, false},
		{"postgres without url", Config{Type: PostgresBackend}, true},
		{"unknown", Config{Type: "csv"}, true},
		{"events without queue", Config{Type: MemoryBackend, Events: EventsConfig{URL: "amqp://localhost", Exchange: "rwa"}}, true},
		{"events", Config{Type: MemoryBackend, Events: EventsConfig{URL: "amqp://localhost", Exchange: "rwa", Queue: "q"}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCreateBackend_Memory(t *testing.T) {
	dir := t.TempDir()
	seed := "Asha Rao, 12\nVikram Shah, 14\n"
	if err := os.WriteFile(filepath.Join(dir, "seed_residents.txt"), []byte(seed), 0o644); err != nil {
		t.Fatal(err)
	}

	res, err := NewFactory(nil).CreateBackend(context.Background(), Config{Type: MemoryBackend, DataDirectory: dir})
	if err != nil {
		t.Fatalf("CreateBackend() error = %v", err)
	}
	defer res.Cleanup()

	if res.Publisher != nil {
		t.Error("memory backend must not publish events")
	}
	if res.Listen != nil {
		t.Error("memory backend has no listener")
	}
	residents, err := res.Store.ListResidents(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(residents) != 2 {
		t.Errorf("got %d residents, want 2", len(residents))
	}
}

func TestCreateBackend_SQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "rwa.db")

	res, err := NewFactory(nil).CreateBackend(context.Background(), Config{Type: SQLiteBackend, SQLiteDBPath: path})
	if err != nil {
		t.Fatalf("CreateBackend() error = %v", err)
	}
	if res.Publisher != nil {
		t.Error("publisher must be nil without AMQP_URL")
	}
	if res.Listen == nil {
		t.Error("sqlite backend must watch for changes from other processes")
	}
	if err := res.Cleanup(); err != nil {
		t.Errorf("Cleanup() error = %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("database file not created: %v", err)
	}
}

func TestCreateBackend_Invalid(t *testing.T) {
	if _, err := NewFactory(nil).CreateBackend(context.Background(), Config{Type: "sheets"}); err == nil {
		t.Error("expected error for invalid backend")
	}
}
