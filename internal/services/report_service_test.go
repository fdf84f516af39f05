package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"rwa/internal/core"
	"rwa/internal/store/memory"
)

func seedReports(t *testing.T) (*ReportService, *LedgerService) {
	t.Helper()
	st := memory.New([]core.Resident{
		{ID: "r1", Name: "Asha", HouseNo: "A-1"},
		{ID: "r2", Name: "Bina", HouseNo: "B-2"},
	})
	ledger := NewLedgerService(st, nil, Rules{})
	reports := NewReportService(st, st, Rules{})
	reports.now = func() time.Time { return time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC) }
	return reports, ledger
}

func TestReportService_BalancesAndDashboard(t *testing.T) {
	reports, ledger := seedReports(t)
	ctx := context.Background()

	for i, tx := range []core.Transaction{
		{Amount: core.MoneyFromUnits(500), Mode: core.Cash, Type: core.Received, Reason: "Donation", ResidentName: "Asha", HouseNo: "A-1", Date: core.NewDate(2025, 4, 2), ReceiptNo: "D1"},
		{Amount: core.MoneyFromUnits(200), Mode: core.Account, Type: core.Paid, Date: core.NewDate(2025, 4, 3), ReceiptNo: "V1"},
	} {
		if _, err := ledger.Record(ctx, tx); err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
	}

	b, err := reports.Balances(ctx)
	if err != nil {
		t.Fatalf("Balances() error = %v", err)
	}
	if b.Cash != core.MoneyFromUnits(500) || b.Account != core.MoneyFromUnits(-200) || b.Treasury != core.MoneyFromUnits(300) {
		t.Errorf("Balances() = %+v", b)
	}

	d, err := reports.Dashboard(ctx)
	if err != nil {
		t.Fatalf("Dashboard() error = %v", err)
	}
	if len(d.Recent) != 2 || d.Recent[0].ReceiptNo != "V1" {
		t.Errorf("Dashboard().Recent = %v", d.Recent)
	}
}

func TestReportService_DashboardShowsSevenNewest(t *testing.T) {
	reports, ledger := seedReports(t)
	ctx := context.Background()
	for day := 1; day <= 10; day++ {
		_, err := ledger.Record(ctx, core.Transaction{
			Amount: core.MoneyFromUnits(10), Mode: core.Cash, Type: core.Paid,
			Date: core.NewDate(2025, 5, day), ReceiptNo: "V",
		})
		if err != nil {
			t.Fatal(err)
		}
	}
	d, _ := reports.Dashboard(ctx)
	if len(d.Recent) != RecentEntries || d.Recent[0].Date.Day() != 10 {
		t.Errorf("Recent = %d entries, first day %d", len(d.Recent), d.Recent[0].Date.Day())
	}
}

func TestReportService_FinancialYear(t *testing.T) {
	reports, ledger := seedReports(t)
	ctx := context.Background()

	_, err := ledger.Allocate(ctx, AllocationRequest{
		ResidentName: "Asha", HouseNo: "A-1",
		From: ym(2025, 4), To: ym(2025, 5),
		Amount: core.MoneyFromUnits(200), Mode: core.Cash, ReceiptBase: "R",
	})
	if err != nil {
		t.Fatal(err)
	}

	fy := reports.CurrentFinancialYear()
	if fy.StartYear != 2025 {
		t.Fatalf("CurrentFinancialYear() = %v", fy)
	}
	m, err := reports.FinancialYear(ctx, fy, core.MoneyFromUnits(1000))
	if err != nil {
		t.Fatalf("FinancialYear() error = %v", err)
	}
	row := m.Rows[0]
	if row.AmountPaid != core.MoneyFromUnits(200) || row.Due != core.MoneyFromUnits(1000) {
		t.Errorf("row = %+v", row)
	}
	if m.TotalCollected != core.MoneyFromUnits(200) || m.ClosingBalance != core.MoneyFromUnits(1200) {
		t.Errorf("totals = %v / %v", m.TotalCollected, m.ClosingBalance)
	}

	_, err = reports.FinancialYear(ctx, fy, core.Money{Cents: -1})
	if !errors.Is(err, core.ErrNegativeOpening) {
		t.Errorf("negative opening error = %v", err)
	}
}

func TestReportService_ResidentsAndHistory(t *testing.T) {
	reports, ledger := seedReports(t)
	ctx := context.Background()

	_, err := ledger.Record(ctx, core.Transaction{
		ResidentName: "Bina", HouseNo: "B-2", Amount: core.MoneyFromUnits(50),
		Mode: core.Cash, Type: core.Received, Reason: "Hall booking",
		Date: core.NewDate(2025, 4, 9), ReceiptNo: "H1",
	})
	if err != nil {
		t.Fatal(err)
	}
	// same house, different name: not part of Bina's history
	_, err = ledger.Record(ctx, core.Transaction{
		ResidentName: "Tenant", HouseNo: "B-2", Amount: core.MoneyFromUnits(50),
		Mode: core.Cash, Type: core.Received, Reason: "Hall booking",
		Date: core.NewDate(2025, 4, 10), ReceiptNo: "H2",
	})
	if err != nil {
		t.Fatal(err)
	}

	found, err := reports.SearchResidents(ctx, "b-")
	if err != nil || len(found) != 1 || found[0].Name != "Bina" {
		t.Errorf("SearchResidents() = %v, %v", found, err)
	}

	r, history, err := reports.ResidentHistory(ctx, "r2")
	if err != nil {
		t.Fatalf("ResidentHistory() error = %v", err)
	}
	if r.Name != "Bina" || len(history) != 1 || history[0].ReceiptNo != "H1" {
		t.Errorf("history = %v", history)
	}

	if _, _, err := reports.ResidentHistory(ctx, "nope"); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("unknown resident error = %v", err)
	}
}

func TestReportService_TransactionsAndSummary(t *testing.T) {
	reports, ledger := seedReports(t)
	ctx := context.Background()
	for _, tx := range []core.Transaction{
		{Amount: core.MoneyFromUnits(100), Mode: core.Cash, Type: core.Received, ResidentName: "Asha", HouseNo: "A-1", Reason: core.SubscriptionReason(ym(2025, 4)), Date: core.NewDate(2025, 4, 1), ReceiptNo: "S"},
		{Amount: core.MoneyFromUnits(30), Mode: core.Account, Type: core.Paid, Date: core.NewDate(2025, 4, 20), ReceiptNo: "V"},
		{Amount: core.MoneyFromUnits(70), Mode: core.Cash, Type: core.Received, ResidentName: "Asha", HouseNo: "A-1", Date: core.NewDate(2025, 5, 2), ReceiptNo: "O"},
	} {
		if _, err := ledger.Record(ctx, tx); err != nil {
			t.Fatal(err)
		}
	}

	cash, err := reports.Transactions(ctx, core.Filter{Mode: core.Cash})
	if err != nil || len(cash) != 2 || cash[0].ReceiptNo != "O" {
		t.Errorf("Transactions(cash) = %v, %v", cash, err)
	}

	months, err := reports.MonthlySummary(ctx)
	if err != nil || len(months) != 2 {
		t.Fatalf("MonthlySummary() = %v, %v", months, err)
	}
	if months[0].Month != ym(2025, 4) || months[0].Net() != core.MoneyFromUnits(70) {
		t.Errorf("April summary = %+v", months[0])
	}
}

type recordingReportWriter struct {
	mu      sync.Mutex
	written []core.FYMatrix
	err     error
}

func (w *recordingReportWriter) WriteFinancialYear(_ context.Context, m core.FYMatrix) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.written = append(w.written, m)
	return w.err
}

func (w *recordingReportWriter) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.written)
}

func TestDefaultReportExporterConfig(t *testing.T) {
	config := DefaultReportExporterConfig()
	if config.Interval != time.Hour {
		t.Errorf("expected Interval 1h, got %v", config.Interval)
	}
	if !config.Opening.IsZero() {
		t.Errorf("expected zero opening balance, got %v", config.Opening)
	}
}

func TestReportExporter_Export(t *testing.T) {
	reports, _ := seedReports(t)
	w := &recordingReportWriter{}
	exporter := NewReportExporter(reports, w, ReportExporterConfig{Interval: time.Minute, Opening: core.MoneyFromUnits(10)})

	if err := exporter.Export(context.Background(), core.FinancialYear{StartYear: 2024}); err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if w.count() != 1 || w.written[0].Year.StartYear != 2024 || len(w.written[0].Rows) != 2 {
		t.Errorf("written = %+v", w.written)
	}

	w.err = errors.New("quota exceeded")
	if err := exporter.Export(context.Background(), core.FinancialYear{StartYear: 2024}); err == nil {
		t.Error("Export() should surface writer errors")
	}
}

func TestReportExporter_Lifecycle(t *testing.T) {
	reports, _ := seedReports(t)
	w := &recordingReportWriter{}
	exporter := NewReportExporter(reports, w, ReportExporterConfig{Interval: time.Hour})

	if exporter.IsRunning() {
		t.Error("exporter should not be running initially")
	}
	if err := exporter.Stop(context.Background()); err != nil {
		t.Errorf("Stop on idle exporter should not error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := exporter.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := exporter.Start(ctx); err == nil {
		t.Error("expected error when starting already running exporter")
	}

	deadline := time.Now().Add(2 * time.Second)
	for w.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if w.count() == 0 {
		t.Error("exporter should write once on startup")
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), time.Second)
	defer stopCancel()
	if err := exporter.Stop(stopCtx); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if exporter.IsRunning() {
		t.Error("exporter should not be running after Stop")
	}
}
