package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"rwa/internal/core"
	"rwa/internal/store"

	_ "modernc.org/sqlite"
)

const (
	dateLayout = "2006-01-02"

	transactionColumns = `id, resident_id, resident_name, house_no, amount_cents, mode, type, reason,
		date, payment_date, receipt_no, subscription_period, created_at`
)

// SQLiteRepository is the single-file ledger backend.
type SQLiteRepository struct {
	db       *sql.DB
	dsn      string
	notifier *store.Notifier
	now      func() time.Time
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_txlock=immediate"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// one writer at a time keeps the conditional insert serialised
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	repo := &SQLiteRepository{db: db, dsn: dsn, now: time.Now}
	repo.notifier = store.NewNotifier(repo.Snapshot)
	return repo, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Append implements store.LedgerStore
func (r *SQLiteRepository) Append(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}
	tx, err := r.insert(ctx, r.db, tx)
	if err != nil {
		return core.Transaction{}, core.Persist("create transaction", err)
	}
	slog.InfoContext(ctx, "Transaction saved to SQLite",
		"id", tx.ID,
		"receipt", tx.ReceiptNo,
		"amount_cents", tx.Amount.Cents,
		"type", tx.Type)
	r.notifier.Notify(ctx)
	return tx, nil
}

// AppendSubscription implements store.LedgerStore
func (r *SQLiteRepository) AppendSubscription(ctx context.Context, tx core.Transaction, policy core.MatchPolicy) (core.Transaction, error) {
	created, err := r.AppendSubscriptions(ctx, []core.Transaction{tx}, policy)
	if err != nil {
		var dup *core.DuplicateSubscriptionError
		if errors.As(err, &dup) {
			return core.Transaction{}, core.ErrDuplicateSubscription
		}
		return core.Transaction{}, err
	}
	return created[0], nil
}

// AppendSubscriptions implements store.BatchAppender. The batch commits in
// a single immediate transaction.
func (r *SQLiteRepository) AppendSubscriptions(ctx context.Context, txs []core.Transaction, policy core.MatchPolicy) ([]core.Transaction, error) {
	for _, tx := range txs {
		if err := tx.Validate(); err != nil {
			return nil, err
		}
	}

	dbTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, core.Persist("begin subscription batch", err)
	}
	defer dbTx.Rollback()

	out := make([]core.Transaction, 0, len(txs))
	for _, tx := range txs {
		taken, err := r.subscriptionTaken(ctx, dbTx, tx, "", policy)
		if err != nil {
			return nil, core.Persist("check subscription", err)
		}
		if taken {
			return nil, &core.DuplicateSubscriptionError{Month: tx.Date.YearMonth(), Resident: core.IdentityOf(tx).String()}
		}
		created, err := r.insert(ctx, dbTx, tx)
		if err != nil {
			return nil, core.Persist("create subscription", err)
		}
		out = append(out, created)
	}
	if err := dbTx.Commit(); err != nil {
		return nil, core.Persist("commit subscription batch", err)
	}

	slog.InfoContext(ctx, "Subscription entries saved to SQLite", "count", len(out))
	r.notifier.Notify(ctx)
	return out, nil
}

// Update implements store.LedgerStore
func (r *SQLiteRepository) Update(ctx context.Context, tx core.Transaction) error {
	return r.update(ctx, tx, "")
}

// UpdateSubscription implements store.LedgerStore
func (r *SQLiteRepository) UpdateSubscription(ctx context.Context, tx core.Transaction, policy core.MatchPolicy) error {
	if policy == "" {
		policy = core.MatchNameOrHouse
	}
	return r.update(ctx, tx, policy)
}

func (r *SQLiteRepository) update(ctx context.Context, tx core.Transaction, policy core.MatchPolicy) error {
	if err := tx.Validate(); err != nil {
		return err
	}
	dbTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Persist("begin update", err)
	}
	defer dbTx.Rollback()

	if policy != "" {
		taken, err := r.subscriptionTaken(ctx, dbTx, tx, tx.ID, policy)
		if err != nil {
			return core.Persist("check subscription", err)
		}
		if taken {
			return core.ErrDuplicateSubscription
		}
	}

	ym := tx.Date.YearMonth()
	res, err := dbTx.ExecContext(ctx, `UPDATE transactions SET
		resident_id = ?, resident_name = ?, house_no = ?, amount_cents = ?, mode = ?, type = ?,
		reason = ?, date = ?, payment_date = ?, receipt_no = ?, subscription_period = ?,
		is_subscription = ?, period_year = ?, period_month = ?
		WHERE id = ?`,
		tx.ResidentID, tx.ResidentName, tx.HouseNo, tx.Amount.Cents, string(tx.Mode), string(tx.Type),
		tx.Reason, formatDate(tx.Date), formatDate(tx.PaymentDate), tx.ReceiptNo, tx.SubscriptionPeriod,
		boolInt(tx.IsSubscription()), ym.Year, ym.Month,
		tx.ID)
	if err != nil {
		return core.Persist("update transaction", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.ErrNotFound
	}
	if err := dbTx.Commit(); err != nil {
		return core.Persist("commit update", err)
	}
	slog.InfoContext(ctx, "Transaction updated in SQLite", "id", tx.ID)
	r.notifier.Notify(ctx)
	return nil
}

// Delete implements store.LedgerStore
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id)
	if err != nil {
		return core.Persist("delete transaction", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.ErrNotFound
	}
	slog.InfoContext(ctx, "Transaction deleted from SQLite", "id", id)
	r.notifier.Notify(ctx)
	return nil
}

// Get implements store.LedgerStore
func (r *SQLiteRepository) Get(ctx context.Context, id string) (core.Transaction, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = ?`, id)
	tx, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, core.ErrNotFound
	}
	if err != nil {
		return core.Transaction{}, core.Persist("get transaction", err)
	}
	return tx, nil
}

// Snapshot implements store.LedgerStore
func (r *SQLiteRepository) Snapshot(ctx context.Context) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+transactionColumns+` FROM transactions ORDER BY date DESC, created_at DESC`)
	if err != nil {
		return nil, core.Persist("list transactions", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, core.Persist("scan transaction", err)
		}
		out = append(out, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, core.Persist("list transactions", err)
	}
	return out, nil
}

// Subscribe implements store.LedgerStore. Changes made by other processes
// are delivered while Watch is running.
func (r *SQLiteRepository) Subscribe(ctx context.Context, onChange func([]core.Transaction)) (func(), error) {
	return r.notifier.Subscribe(ctx, onChange)
}

// WatchInterval is how often Watch polls the database file.
const WatchInterval = 2 * time.Second

// Watch relays commits made by other processes, such as rwactl, to
// subscribers until ctx is done. SQLite has no change channel, so it polls
// PRAGMA data_version on a connection of its own. A commit made through r
// may be delivered twice.
func (r *SQLiteRepository) Watch(ctx context.Context) error {
	return r.watch(ctx, WatchInterval, func() {})
}

// watch calls ready once the baseline version has been read.
func (r *SQLiteRepository) watch(ctx context.Context, every time.Duration, ready func()) error {
	db, err := sql.Open("sqlite", r.dsn)
	if err != nil {
		return fmt.Errorf("open watch connection: %w", err)
	}
	defer db.Close()

	conn, err := db.Conn(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("acquire watch connection: %w", err)
	}
	defer conn.Close()

	version := func() (int64, error) {
		var v int64
		err := conn.QueryRowContext(ctx, "PRAGMA data_version").Scan(&v)
		return v, err
	}
	last, err := version()
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("read data_version: %w", err)
	}
	ready()
	slog.InfoContext(ctx, "Watching SQLite for external changes", "interval", every)

	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		v, err := version()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read data_version: %w", err)
		}
		if v != last {
			last = v
			r.notifier.Notify(ctx)
		}
	}
}

// ListResidents implements store.ResidentDirectory
func (r *SQLiteRepository) ListResidents(ctx context.Context) ([]core.Resident, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, house_no, contact FROM residents ORDER BY name, house_no`)
	if err != nil {
		return nil, core.Persist("list residents", err)
	}
	defer rows.Close()

	var out []core.Resident
	for rows.Next() {
		var res core.Resident
		if err := rows.Scan(&res.ID, &res.Name, &res.HouseNo, &res.Contact); err != nil {
			return nil, core.Persist("scan resident", err)
		}
		out = append(out, res)
	}
	return out, core.Persist("list residents", rows.Err())
}

// AddResident implements store.ResidentDirectory
func (r *SQLiteRepository) AddResident(ctx context.Context, res core.Resident) (string, error) {
	if err := res.Validate(); err != nil {
		return "", err
	}
	id := uuid.NewString()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO residents (id, name, house_no, contact, created_at) VALUES (?, ?, ?, ?, ?)`,
		id, strings.TrimSpace(res.Name), strings.TrimSpace(res.HouseNo), strings.TrimSpace(res.Contact),
		r.now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return "", core.Persist("create resident", err)
	}
	slog.InfoContext(ctx, "Resident registered", "id", id, "house_no", res.HouseNo)
	return id, nil
}

// GetResident implements store.ResidentDirectory
func (r *SQLiteRepository) GetResident(ctx context.Context, id string) (core.Resident, error) {
	var res core.Resident
	err := r.db.QueryRowContext(ctx, `SELECT id, name, house_no, contact FROM residents WHERE id = ?`, id).
		Scan(&res.ID, &res.Name, &res.HouseNo, &res.Contact)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Resident{}, core.ErrNotFound
	}
	if err != nil {
		return core.Resident{}, core.Persist("get resident", err)
	}
	return res, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (r *SQLiteRepository) insert(ctx context.Context, db execer, tx core.Transaction) (core.Transaction, error) {
	tx.ID = uuid.NewString()
	tx.CreatedAt = r.now().UTC()
	ym := tx.Date.YearMonth()
	_, err := db.ExecContext(ctx, `INSERT INTO transactions (
		id, resident_id, resident_name, house_no, amount_cents, mode, type, reason, date, payment_date,
		receipt_no, subscription_period, is_subscription, period_year, period_month, created_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tx.ID, tx.ResidentID, tx.ResidentName, tx.HouseNo, tx.Amount.Cents, string(tx.Mode), string(tx.Type),
		tx.Reason, formatDate(tx.Date), formatDate(tx.PaymentDate), tx.ReceiptNo, tx.SubscriptionPeriod,
		boolInt(tx.IsSubscription()), ym.Year, ym.Month, tx.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return core.Transaction{}, err
	}
	return tx, nil
}

func (r *SQLiteRepository) subscriptionTaken(ctx context.Context, q queryer, tx core.Transaction, excludeID string, policy core.MatchPolicy) (bool, error) {
	ym := tx.Date.YearMonth()
	clause, args := store.MatchClause(policy, core.IdentityOf(tx), store.QuestionMark, 4)
	query := `SELECT COUNT(1) FROM transactions
		WHERE is_subscription = 1 AND period_year = ? AND period_month = ? AND id <> ? AND ` + clause
	var n int
	if err := q.QueryRowContext(ctx, query, append([]any{ym.Year, ym.Month, excludeID}, args...)...).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTransaction(s scanner) (core.Transaction, error) {
	var (
		tx                core.Transaction
		mode, typ         string
		date, paymentDate string
		createdAt         string
	)
	err := s.Scan(&tx.ID, &tx.ResidentID, &tx.ResidentName, &tx.HouseNo, &tx.Amount.Cents, &mode, &typ,
		&tx.Reason, &date, &paymentDate, &tx.ReceiptNo, &tx.SubscriptionPeriod, &createdAt)
	if err != nil {
		return core.Transaction{}, err
	}
	tx.Mode = core.Mode(mode)
	tx.Type = core.TxType(typ)
	if tx.Date, err = parseDate(date); err != nil {
		return core.Transaction{}, fmt.Errorf("parse date %q: %w", date, err)
	}
	if tx.PaymentDate, err = parseDate(paymentDate); err != nil {
		return core.Transaction{}, fmt.Errorf("parse payment date %q: %w", paymentDate, err)
	}
	if createdAt != "" {
		tx.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	}
	return tx, nil
}

func formatDate(d core.Date) string {
	if d.IsEmpty() {
		return ""
	}
	return d.Format(dateLayout)
}

func parseDate(s string) (core.Date, error) {
	if s == "" {
		return core.Date{}, nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return core.Date{}, err
	}
	return core.Date{Time: t}, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

var (
	_ store.Store         = (*SQLiteRepository)(nil)
	_ store.BatchAppender = (*SQLiteRepository)(nil)
)
