package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"rwa/internal/cli"
	"rwa/internal/feed"
	apphttp "rwa/internal/http"
	"rwa/internal/services"
	gsheet "rwa/internal/sheets/google"
)

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger(os.Stdout, os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(logger)

	ctx, cancel := cli.GracefulShutdown(logger)
	defer cancel()

	b, err := cli.OpenBackend(ctx, logger, cfg)
	if err != nil {
		logger.Error("Failed to open backend", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	defer b.Cleanup()

	ledger, reports := cli.Services(cfg, b)
	hub := feed.NewHub()

	opts := apphttp.Options{
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		IdempotencyTTL:     cfg.IdempotencyTTL,
		TrustedProxies:     cfg.TrustedProxies,
	}

	var exporter *services.ReportExporter
	if cfg.GoogleSpreadsheetID != "" {
		client, err := gsheet.New(ctx, gsheet.Options{
			SpreadsheetID: cfg.GoogleSpreadsheetID,
			LedgerSheet:   cfg.GoogleLedgerSheetName,
			ReportSheet:   cfg.GoogleReportSheetName,
		}, cfg.Due())
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", "error", err)
			os.Exit(1)
		}
		exporter = services.NewReportExporter(reports, client, services.ReportExporterConfig{
			Interval: cfg.ReportInterval,
		})
		opts.Exporter = exporter
	} else {
		logger.Info("Report export disabled - no GOOGLE_SPREADSHEET_ID provided")
	}

	srv := apphttp.NewServer(":"+cfg.Port, ledger, reports, hub, opts)

	// Configure server timeouts and limits
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 30 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return hub.Run(gctx, b.Store)
	})

	if b.Listen != nil {
		g.Go(func() error {
			return b.Listen(gctx)
		})
	}

	if exporter != nil {
		g.Go(func() error {
			if err := exporter.Start(gctx); err != nil {
				return err
			}
			<-gctx.Done()
			stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer stopCancel()
			return exporter.Stop(stopCtx)
		})
	}

	g.Go(func() error {
		logger.Info("Starting rwa server", "port", cfg.Port, "backend", cfg.DataBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
			return err
		}
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Server stopped with error", "error", err)
		b.Cleanup()
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}
