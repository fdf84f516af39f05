package main

import (
	"context"
	"errors"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"rwa/internal/amqp"
	"rwa/internal/backend"
	"rwa/internal/cli"
	gsheet "rwa/internal/sheets/google"
	"rwa/internal/worker"
)

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger(os.Stdout, os.Getenv("LOG_LEVEL"))
	logger.Info("Starting rwa-worker")

	cfg := cli.LoadAndValidateConfig(logger)
	if cfg.AMQPURL == "" || cfg.GoogleSpreadsheetID == "" {
		logger.Error("rwa-worker needs AMQP_URL and GOOGLE_SPREADSHEET_ID")
		os.Exit(1)
	}
	if !backend.BackendType(cfg.DataBackend).Shared() {
		logger.Error("rwa-worker needs a shared backend", "backend", cfg.DataBackend)
		os.Exit(1)
	}

	ctx, cancel := cli.GracefulShutdown(logger)
	defer cancel()

	b, err := cli.OpenStore(ctx, logger, cfg)
	if err != nil {
		logger.Error("Failed to open backend", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	defer b.Cleanup()

	sheets, err := gsheet.New(ctx, gsheet.Options{
		SpreadsheetID: cfg.GoogleSpreadsheetID,
		LedgerSheet:   cfg.GoogleLedgerSheetName,
		ReportSheet:   cfg.GoogleReportSheetName,
	}, cfg.Due())
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", "error", err)
		os.Exit(1)
	}
	logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	mirror := worker.NewMirrorWorker(b.Store, sheets)

	// Recover from events missed while the worker was down.
	if err := mirror.StartupSync(ctx); err != nil {
		logger.Error("Failed startup sync", "error", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return amqpClient.ConsumeLedgerEvents(gctx, mirror.HandleEvent)
	})

	g.Go(func() error {
		ticker := time.NewTicker(cfg.ReportInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				if err := mirror.StartupSync(gctx); err != nil {
					logger.Error("Periodic mirror resync failed", "error", err)
				}
			}
		}
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker stopped with error", "error", err)
		amqpClient.Close()
		b.Cleanup()
		os.Exit(1)
	}
	logger.Info("Worker shutdown complete")
}
