package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/alecthomas/kong"

	"rwa/internal/backend"
	"rwa/internal/cli"
)

var (
	// Version contains the application version number. It's set via ldflags
	// when building.
	Version = ""

	// CommitSHA contains the SHA of the commit that this application was built
	// against. It's set via ldflags when building.
	CommitSHA = ""

	rwactl struct {
		Version kong.VersionFlag `help:"Show version information"`
		cli.Commands
	}
)

func main() {
	cli.LoadEnvFile()

	// Operator output goes to stdout; logs stay on stderr.
	logger := cli.SetupLogger(os.Stderr, envOr("LOG_LEVEL", "warn"))
	cfg := cli.LoadAndValidateConfig(logger)

	ctx, cancel := cli.GracefulShutdown(logger)
	defer cancel()

	b, err := cli.OpenBackend(ctx, logger, cfg)
	if err != nil {
		logger.Error("Failed to open backend", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}

	if !backend.BackendType(cfg.DataBackend).Shared() {
		logger.Warn("Memory backend: changes made by rwactl are lost on exit", "backend", cfg.DataBackend)
	}

	ledger, reports := cli.Services(cfg, b)
	app := &cli.App{
		Ctx:     ctx,
		Ledger:  ledger,
		Reports: reports,
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
	}

	kctx := kong.Parse(&rwactl,
		kong.Vars{
			"version": buildVersion(),
		},
		kong.Name("rwactl"),
		kong.Description("Operator console for the residents' association ledger."),
		kong.UsageOnError(),
		kong.Bind(app),
	)

	err = kctx.Run()
	if cerr := b.Cleanup(); cerr != nil {
		logger.Warn("Backend cleanup failed", "error", cerr)
	}

	var cmdErr *cli.CommandError
	if errors.As(err, &cmdErr) {
		os.Exit(cmdErr.ExitCode())
	}
	kctx.FatalIfErrorf(err)
}

func buildVersion() string {
	if Version == "" {
		Version = "dev"
	}
	if CommitSHA == "" {
		return Version
	}
	return fmt.Sprintf("%s (%s)", Version, CommitSHA)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
