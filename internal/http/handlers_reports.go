package http

import (
	"bytes"
	"net/http"
	"strings"
	"time"

	"rwa/internal/core"
	"rwa/internal/export"
	"rwa/internal/log"
)

const csvContentType = "text/csv; charset=utf-8"

func (s *Server) handleBalances(w http.ResponseWriter, r *http.Request) {
	b, err := s.reports.Balances(r.Context())
	if err != nil {
		s.writeServiceError(w, r, log.OpRead, err)
		return
	}
	NewJSONResponse().JSON(toBalancesJSON(b)).Write(w)
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	d, err := s.reports.Dashboard(r.Context())
	if err != nil {
		s.writeServiceError(w, r, log.OpRead, err)
		return
	}
	NewJSONResponse().JSON(dashboardJSON{
		Balances: toBalancesJSON(d.Balances),
		Recent:   toTransactionsJSON(d.Recent),
	}).Write(w)
}

func (s *Server) handleMonthlySummary(w http.ResponseWriter, r *http.Request) {
	ms, err := s.reports.MonthlySummary(r.Context())
	if err != nil {
		s.writeServiceError(w, r, log.OpRead, err)
		return
	}
	NewJSONResponse().JSON(toSummariesJSON(ms)).Write(w)
}

// handleFinancialYear renders the resident-by-month matrix as JSON, or as
// CSV when format=csv.
func (s *Server) handleFinancialYear(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	fy, err := ParseFinancialYear(q, time.Now())
	if err != nil {
		s.writeServiceError(w, r, log.OpRead, err)
		return
	}
	opening, err := core.ParseOpening(q.Get("opening"))
	if err != nil {
		s.writeServiceError(w, r, log.OpRead, err)
		return
	}

	m, err := s.reports.FinancialYear(r.Context(), fy, opening)
	if err != nil {
		s.writeServiceError(w, r, log.OpRead, err)
		return
	}

	if !strings.EqualFold(q.Get("format"), "csv") {
		NewJSONResponse().JSON(toFYMatrixJSON(m)).Write(w)
		return
	}

	var buf bytes.Buffer
	if err := export.WriteFinancialYearCSV(&buf, m); err != nil {
		s.writeServiceError(w, r, log.OpExport, err)
		return
	}
	NewJSONResponse().
		Header("Content-Disposition", attachment(export.FileName("subscriptions", fy.String()))).
		Raw(csvContentType, buf.Bytes()).
		Write(w)
}

// handleExportTransactions downloads the filtered ledger as CSV.
func (s *Server) handleExportTransactions(w http.ResponseWriter, r *http.Request) {
	f, err := ParseFilter(r.URL.Query())
	if err != nil {
		s.writeServiceError(w, r, log.OpExport, err)
		return
	}
	entries, err := s.reports.Transactions(r.Context(), f)
	if err != nil {
		s.writeServiceError(w, r, log.OpExport, err)
		return
	}

	var buf bytes.Buffer
	if err := export.WriteTransactionsCSV(&buf, entries, s.reports.Due()); err != nil {
		s.writeServiceError(w, r, log.OpExport, err)
		return
	}
	NewJSONResponse().
		Header("Content-Disposition", attachment(export.FileName("transactions", exportLabel(f)))).
		Raw(csvContentType, buf.Bytes()).
		Write(w)
}

func exportLabel(f core.Filter) string {
	var parts []string
	if f.Mode != "" {
		parts = append(parts, strings.ToLower(string(f.Mode)))
	}
	if f.Type != "" {
		parts = append(parts, strings.ToLower(string(f.Type)))
	}
	return strings.Join(parts, "_")
}

func attachment(name string) string {
	return `attachment; filename="` + name + `"`
}
