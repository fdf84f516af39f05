package backend

import (
	"context"
	"fmt"
	"slices"

	"rwa/internal/services"
	"rwa/internal/store"
)

// CleanupFunc releases everything a backend opened.
type CleanupFunc func() error

// BackendResult is an opened ledger backend.
type BackendResult struct {
	Store store.Store

	// Publisher is nil when change events are disabled.
	Publisher services.EventPublisher

	// Listen relays changes written by other processes to store
	// subscribers. Nil for single-process backends.
	Listen func(ctx context.Context) error

	Cleanup CleanupFunc
}

type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// BackendType names a ledger store implementation.
type BackendType string

const (
	MemoryBackend   BackendType = "memory"
	SQLiteBackend   BackendType = "sqlite"
	PostgresBackend BackendType = "postgres"
)

var backendTypes = []BackendType{MemoryBackend, SQLiteBackend, PostgresBackend}

// ParseBackendType accepts the DATA_BACKEND spellings.
func ParseBackendType(s string) (BackendType, error) {
	bt := BackendType(s)
	if !bt.IsValid() {
		return "", fmt.Errorf("unknown backend %q: must be one of %v", s, BackendTypes())
	}
	return bt, nil
}

func (bt BackendType) String() string {
	return string(bt)
}

func (bt BackendType) IsValid() bool {
	return slices.Contains(backendTypes, bt)
}

// Shared reports whether several processes can open the backend at once.
// The worker and rwactl only see the server's ledger through a shared one.
func (bt BackendType) Shared() bool {
	return bt == SQLiteBackend || bt == PostgresBackend
}

// BackendTypes lists the accepted DATA_BACKEND values.
func BackendTypes() []string {
	out := make([]string, len(backendTypes))
	for i, t := range backendTypes {
		out[i] = t.String()
	}
	return out
}
