package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"rwa/internal/core"
	"rwa/internal/sheets"
)

// ReportExporterConfig holds configuration for the report exporter
type ReportExporterConfig struct {
	// Interval is how often the current FY matrix is rewritten (default: 1h)
	Interval time.Duration

	// Opening is the opening balance written with the matrix
	Opening core.Money
}

// DefaultReportExporterConfig returns sensible defaults
func DefaultReportExporterConfig() ReportExporterConfig {
	return ReportExporterConfig{Interval: time.Hour}
}

// ReportExporter periodically publishes the current financial-year matrix.
type ReportExporter struct {
	reports *ReportService
	writer  sheets.ReportWriter
	config  ReportExporterConfig

	// Lifecycle management
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewReportExporter(reports *ReportService, writer sheets.ReportWriter, config ReportExporterConfig) *ReportExporter {
	if config.Interval <= 0 {
		config.Interval = DefaultReportExporterConfig().Interval
	}
	return &ReportExporter{
		reports: reports,
		writer:  writer,
		config:  config,
	}
}

// Start begins the export loop. Returns an error if already running.
func (e *ReportExporter) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return fmt.Errorf("report exporter is already running")
	}
	e.running = true
	e.stopCh = make(chan struct{})
	e.doneCh = make(chan struct{})
	e.mu.Unlock()

	go e.runLoop(ctx)

	slog.InfoContext(ctx, "Report exporter started", "interval", e.config.Interval)

	return nil
}

// Stop gracefully stops the exporter and waits for completion.
func (e *ReportExporter) Stop(ctx context.Context) error {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return nil
	}
	stopCh, doneCh := e.stopCh, e.doneCh
	e.mu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
		slog.InfoContext(ctx, "Report exporter stopped gracefully")
	case <-ctx.Done():
		slog.WarnContext(ctx, "Report exporter stop timed out")
		return ctx.Err()
	}

	e.mu.Lock()
	e.running = false
	e.mu.Unlock()

	return nil
}

func (e *ReportExporter) IsRunning() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

func (e *ReportExporter) runLoop(ctx context.Context) {
	defer close(e.doneCh)

	ticker := time.NewTicker(e.config.Interval)
	defer ticker.Stop()

	// Export immediately on startup
	e.exportOnce(ctx)

	for {
		select {
		case <-e.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.exportOnce(ctx)
		}
	}
}

func (e *ReportExporter) exportOnce(ctx context.Context) {
	if err := e.Export(ctx, e.reports.CurrentFinancialYear()); err != nil {
		slog.ErrorContext(ctx, "Failed to export financial year report", "error", err)
	}
}

// Export builds and writes the matrix for fy.
func (e *ReportExporter) Export(ctx context.Context, fy core.FinancialYear) error {
	m, err := e.reports.FinancialYear(ctx, fy, e.config.Opening)
	if err != nil {
		return err
	}
	if err := e.writer.WriteFinancialYear(ctx, m); err != nil {
		return fmt.Errorf("write financial year %s: %w", fy, err)
	}
	slog.InfoContext(ctx, "Exported financial year report",
		"fy", fy.String(),
		"residents", len(m.Rows),
		"collected_cents", m.TotalCollected.Cents)
	return nil
}
