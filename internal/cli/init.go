// Package cli holds the process bootstrap shared by cmd/rwa, cmd/rwa-worker
// and cmd/rwactl, and the rwactl operator commands.
package cli

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"rwa/internal/backend"
	"rwa/internal/config"
	"rwa/internal/log"
	"rwa/internal/services"
)

// SetupLogger builds a text logger at level and makes it the default.
// Unknown levels fall back to info.
func SetupLogger(w io.Writer, level string) *slog.Logger {
	lvl, err := log.ParseLevel(level)
	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)
	if err != nil {
		logger.Warn("Falling back to info log level", "error", err)
	}
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig(logger *slog.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	return cfg
}

// Rules converts the configured ledger policies.
func Rules(cfg *config.Config) services.Rules {
	return services.Rules{
		Policy:         cfg.MatchPolicy(),
		Due:            cfg.Due(),
		StrictReceipts: cfg.StrictReceipts(),
	}
}

// OpenBackend creates the configured store and, when AMQP is configured,
// its event publisher. The caller runs Cleanup.
func OpenBackend(ctx context.Context, logger *slog.Logger, cfg *config.Config) (*backend.BackendResult, error) {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	return backend.NewFactory(logger).CreateBackend(ctx, bcfg)
}

// OpenStore is OpenBackend without the event publisher, for processes that
// consume ledger events rather than produce them.
func OpenStore(ctx context.Context, logger *slog.Logger, cfg *config.Config) (*backend.BackendResult, error) {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	bcfg.Events = backend.EventsConfig{}
	return backend.NewFactory(logger).CreateBackend(ctx, bcfg)
}

// Services wires the ledger and report services over an opened backend.
func Services(cfg *config.Config, b *backend.BackendResult) (*services.LedgerService, *services.ReportService) {
	rules := Rules(cfg)
	return services.NewLedgerService(b.Store, b.Publisher, rules),
		services.NewReportService(b.Store, b.Store, rules)
}

// GracefulShutdown returns a context cancelled on SIGINT or SIGTERM. The
// signal is logged once.
func GracefulShutdown(logger *slog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigChan)

		select {
		case sig := <-sigChan:
			logger.Info("Shutdown signal received", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}
