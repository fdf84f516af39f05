package services

import (
	"context"
	"fmt"
	"time"

	"rwa/internal/core"
	"rwa/internal/store"
)

// RecentEntries is how many entries the dashboard shows.
const RecentEntries = 7

// Dashboard is the landing view: balances plus the newest entries.
type Dashboard struct {
	Balances core.Balances
	Recent   []core.Transaction
}

// ReportService derives read-side views from store snapshots. Nothing it
// computes is persisted.
type ReportService struct {
	ledger    store.LedgerStore
	residents store.ResidentDirectory
	rules     Rules
	now       func() time.Time
}

func NewReportService(ledger store.LedgerStore, residents store.ResidentDirectory, rules Rules) *ReportService {
	if rules.Policy == "" {
		rules.Policy = core.MatchNameOrHouse
	}
	if rules.Due.Cents <= 0 {
		rules.Due = core.DefaultSubscriptionDue
	}
	return &ReportService{ledger: ledger, residents: residents, rules: rules, now: time.Now}
}

func (s *ReportService) Due() core.Money { return s.rules.Due }

func (s *ReportService) snapshot(ctx context.Context) ([]core.Transaction, error) {
	entries, err := s.ledger.Snapshot(ctx)
	if err != nil {
		return nil, core.Persist("snapshot", err)
	}
	return entries, nil
}

func (s *ReportService) Balances(ctx context.Context) (core.Balances, error) {
	entries, err := s.snapshot(ctx)
	if err != nil {
		return core.Balances{}, err
	}
	return core.Aggregate(entries), nil
}

func (s *ReportService) Dashboard(ctx context.Context) (Dashboard, error) {
	entries, err := s.snapshot(ctx)
	if err != nil {
		return Dashboard{}, err
	}
	return Dashboard{
		Balances: core.Aggregate(entries),
		Recent:   core.Recent(entries, RecentEntries),
	}, nil
}

// Transactions lists entries matching f, newest first.
func (s *ReportService) Transactions(ctx context.Context, f core.Filter) ([]core.Transaction, error) {
	entries, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return f.Apply(entries), nil
}

// MonthlySummary groups the ledger by calendar month.
func (s *ReportService) MonthlySummary(ctx context.Context) ([]core.MonthSummary, error) {
	entries, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return core.SummarizeByMonth(entries), nil
}

// FinancialYear builds the compliance matrix for fy over every registered
// resident.
func (s *ReportService) FinancialYear(ctx context.Context, fy core.FinancialYear, opening core.Money) (core.FYMatrix, error) {
	residents, err := s.residents.ListResidents(ctx)
	if err != nil {
		return core.FYMatrix{}, core.Persist("list residents", err)
	}
	entries, err := s.snapshot(ctx)
	if err != nil {
		return core.FYMatrix{}, err
	}
	m, err := core.BuildMatrix(fy, residents, entries, opening, s.rules.Policy, s.rules.Due)
	if err != nil {
		return core.FYMatrix{}, fmt.Errorf("build financial year %s: %w", fy, err)
	}
	return m, nil
}

// CurrentFinancialYear is the FY containing today.
func (s *ReportService) CurrentFinancialYear() core.FinancialYear {
	return core.CurrentFinancialYear(s.now())
}

func (s *ReportService) Residents(ctx context.Context) ([]core.Resident, error) {
	residents, err := s.residents.ListResidents(ctx)
	if err != nil {
		return nil, core.Persist("list residents", err)
	}
	return residents, nil
}

// SearchResidents matches query against names and house numbers.
func (s *ReportService) SearchResidents(ctx context.Context, query string) ([]core.Resident, error) {
	residents, err := s.Residents(ctx)
	if err != nil {
		return nil, err
	}
	return core.SearchResidents(residents, query), nil
}

// ResidentHistory returns the resident and their entries, newest first.
func (s *ReportService) ResidentHistory(ctx context.Context, id string) (core.Resident, []core.Transaction, error) {
	r, err := s.residents.GetResident(ctx, id)
	if err != nil {
		return core.Resident{}, nil, core.Persist("get resident", err)
	}
	entries, err := s.snapshot(ctx)
	if err != nil {
		return core.Resident{}, nil, err
	}
	return r, core.History(entries, r), nil
}
