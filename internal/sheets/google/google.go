package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"rwa/internal/core"
	"rwa/internal/export"
	ports "rwa/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

const ledgerLastColumn = "M"

// LedgerHeader is the first row of the mirrored ledger sheet.
var LedgerHeader = append(append([]string{"ID"}, export.TransactionHeader...), "Receipt No", "Period")

// Options names the spreadsheet and its tabs.
type Options struct {
	SpreadsheetID string
	LedgerSheet   string
	ReportSheet   string
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	ledgerSheet   string
	// Base name of the report tab; the FY label is prefixed per year.
	reportBase string
	due        core.Money

	// serialises row lookups with the writes that depend on them
	mu sync.Mutex
}

// Ensure interface conformance
var (
	_ ports.LedgerMirror = (*Client)(nil)
	_ ports.ReportWriter = (*Client)(nil)
)

// New creates a Sheets client authenticated with a service account.
func New(ctx context.Context, opts Options, due core.Money) (*Client, error) {
	svc, err := newSheetsService(ctx)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return NewWithService(svc, opts, due)
}

// NewWithService wraps an existing Sheets service.
func NewWithService(svc *gsheet.Service, opts Options, due core.Money) (*Client, error) {
	if strings.TrimSpace(opts.SpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	if strings.TrimSpace(opts.LedgerSheet) == "" {
		opts.LedgerSheet = "Ledger"
	}
	if strings.TrimSpace(opts.ReportSheet) == "" {
		opts.ReportSheet = "Subscriptions"
	}
	return &Client{
		svc:           svc,
		spreadsheetID: strings.TrimSpace(opts.SpreadsheetID),
		ledgerSheet:   strings.TrimSpace(opts.LedgerSheet),
		reportBase:    strings.TrimSpace(opts.ReportSheet),
		due:           due,
	}, nil
}

// newSheetsService initializes a Sheets Service using Service Account credentials.
// Uses GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS.
func newSheetsService(ctx context.Context) (*gsheet.Service, error) {
	credentialsJSON, err := serviceAccountCredentials()
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "Creating Google Sheets service with Service Account",
		"credentials_size", len(credentialsJSON),
		"scope", gsheet.SpreadsheetsScope)

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	return service, nil
}

func serviceAccountCredentials() ([]byte, error) {
	if inline := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON")); inline != "" {
		return []byte(inline), nil
	}
	path := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if path == "" {
		path = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}
	if path == "" {
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read service account file: %w", err)
	}
	return data, nil
}

// UpsertEntry implements ports.LedgerMirror. The row holding tx.ID is
// overwritten, or a new row is appended.
func (c *Client) UpsertEntry(ctx context.Context, tx core.Transaction) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	ids, err := c.readIDs(ctx)
	if err != nil {
		return err
	}
	row := ledgerRow(tx, c.due)

	if n := findRow(ids, tx.ID); n > 0 {
		rng := fmt.Sprintf("%s!A%d:%s%d", quoteSheet(c.ledgerSheet), n, ledgerLastColumn, n)
		_, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, &gsheet.ValueRange{Values: [][]any{row}}).
			ValueInputOption("USER_ENTERED").Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("failed to update %s: %w", rng, err)
		}
		return nil
	}

	values := [][]any{row}
	if len(ids) == 0 {
		values = [][]any{toRow(LedgerHeader), row}
	}
	rng := fmt.Sprintf("%s!A:%s", quoteSheet(c.ledgerSheet), ledgerLastColumn)
	_, err = c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, &gsheet.ValueRange{Values: values}).
		ValueInputOption("USER_ENTERED").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to append to sheet %s: %w", c.ledgerSheet, err)
	}
	return nil
}

// RemoveEntry implements ports.LedgerMirror. Missing rows are not an error.
func (c *Client) RemoveEntry(ctx context.Context, id string) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	ids, err := c.readIDs(ctx)
	if err != nil {
		return err
	}
	n := findRow(ids, id)
	if n <= 0 {
		slog.DebugContext(ctx, "Mirrored row already absent", "id", id)
		return nil
	}
	sheetID, err := c.sheetID(ctx, c.ledgerSheet, false)
	if err != nil {
		return err
	}
	req := &gsheet.BatchUpdateSpreadsheetRequest{Requests: []*gsheet.Request{{
		DeleteDimension: &gsheet.DeleteDimensionRequest{Range: &gsheet.DimensionRange{
			SheetId:    sheetID,
			Dimension:  "ROWS",
			StartIndex: int64(n - 1),
			EndIndex:   int64(n),
		}},
	}}}
	if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("delete row %d of %s: %w", n, c.ledgerSheet, err)
	}
	return nil
}

// ReplaceAll implements ports.LedgerMirror.
func (c *Client) ReplaceAll(ctx context.Context, entries []core.Transaction) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	values := make([][]any, 0, len(entries)+1)
	values = append(values, toRow(LedgerHeader))
	for _, tx := range entries {
		values = append(values, ledgerRow(tx, c.due))
	}
	return c.rewrite(ctx, c.ledgerSheet, values)
}

// WriteFinancialYear implements ports.ReportWriter. Each FY gets its own
// tab, e.g. "2024-2025 Subscriptions".
func (c *Client) WriteFinancialYear(ctx context.Context, m core.FYMatrix) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	title := fyPrefixedName(c.reportBase, m.Year)
	if _, err := c.sheetID(ctx, title, true); err != nil {
		return err
	}
	records := export.FinancialYearRecords(m)
	values := make([][]any, len(records))
	for i, r := range records {
		values[i] = toRow(r)
	}
	return c.rewrite(ctx, title, values)
}

func (c *Client) rewrite(ctx context.Context, sheet string, values [][]any) error {
	all := quoteSheet(sheet)
	if _, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, all, &gsheet.ClearValuesRequest{}).Context(ctx).Do(); err != nil {
		return fmt.Errorf("clear sheet %s: %w", sheet, err)
	}
	rng := all + "!A1"
	_, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, &gsheet.ValueRange{Values: values}).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("write sheet %s: %w", sheet, err)
	}
	slog.InfoContext(ctx, "Rewrote sheet", "sheet", sheet, "rows", len(values))
	return nil
}

func (c *Client) readIDs(ctx context.Context) ([]string, error) {
	rng := fmt.Sprintf("%s!A:A", quoteSheet(c.ledgerSheet))
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	ids := make([]string, len(resp.Values))
	for i, row := range resp.Values {
		if len(row) > 0 {
			ids[i] = strings.TrimSpace(fmt.Sprint(row[0]))
		}
	}
	return ids, nil
}

// sheetID looks up a tab by title, adding it when create is set.
func (c *Client) sheetID(ctx context.Context, title string, create bool) (int64, error) {
	ss, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets(properties(sheetId,title))").Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("read spreadsheet metadata: %w", err)
	}
	for _, s := range ss.Sheets {
		if s.Properties != nil && s.Properties.Title == title {
			return s.Properties.SheetId, nil
		}
	}
	if !create {
		return 0, fmt.Errorf("sheet %q not found", title)
	}

	req := &gsheet.BatchUpdateSpreadsheetRequest{Requests: []*gsheet.Request{{
		AddSheet: &gsheet.AddSheetRequest{Properties: &gsheet.SheetProperties{Title: title}},
	}}}
	resp, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("add sheet %q: %w", title, err)
	}
	slog.InfoContext(ctx, "Added sheet", "sheet", title)
	for _, r := range resp.Replies {
		if r.AddSheet != nil && r.AddSheet.Properties != nil {
			return r.AddSheet.Properties.SheetId, nil
		}
	}
	return 0, nil
}

func ledgerRow(tx core.Transaction, due core.Money) []any {
	rec := append([]string{tx.ID}, export.TransactionRecord(tx, due)...)
	rec = append(rec, tx.ReceiptNo, tx.SubscriptionPeriod)
	return toRow(rec)
}

func toRow(rec []string) []any {
	out := make([]any, len(rec))
	for i, v := range rec {
		out[i] = v
	}
	return out
}

// findRow returns the 1-based sheet row holding id, or 0.
func findRow(ids []string, id string) int {
	if id == "" {
		return 0
	}
	for i, v := range ids {
		if v == id {
			return i + 1
		}
	}
	return 0
}

// fyPrefixedName returns "<fy> <base>" unless base already starts with the FY label.
func fyPrefixedName(base string, fy core.FinancialYear) string {
	base = strings.TrimSpace(base)
	label := fy.String()
	if strings.HasPrefix(base, label+" ") || base == label {
		return base
	}
	if base == "" {
		return label
	}
	return label + " " + base
}

// quoteSheet renders a tab title for A1 notation.
func quoteSheet(title string) string {
	return "'" + strings.ReplaceAll(title, "'", "''") + "'"
}
