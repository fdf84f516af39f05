// Package postgres is the multi-writer ledger backend. Conditional inserts
// are serialised per month with transaction-scoped advisory locks, and
// mutations from any process are broadcast with LISTEN/NOTIFY.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"rwa/internal/core"
	"rwa/internal/store"
)

const (
	// ChangeChannel is the NOTIFY channel carrying ledger mutations.
	ChangeChannel = "ledger_changed"

	// subscriptionLockSpace namespaces the advisory locks taken per month.
	subscriptionLockSpace = 0x525741

	transactionColumns = `id, resident_id, resident_name, house_no, amount_cents, mode, type, reason,
		date, payment_date, receipt_no, subscription_period, created_at`
)

// Repository is a store.Store over a pgx pool.
type Repository struct {
	pool       *pgxpool.Pool
	notifier   *store.Notifier
	instanceID string
}

// Connect opens the pool, checks connectivity and applies migrations.
func Connect(ctx context.Context, url string) (*Repository, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := RunMigrations(pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	r := &Repository{pool: pool, instanceID: uuid.NewString()}
	r.notifier = store.NewNotifier(r.Snapshot)
	return r, nil
}

func (r *Repository) Close() error {
	r.pool.Close()
	return nil
}

// Append implements store.LedgerStore
func (r *Repository) Append(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}
	var out core.Transaction
	err := pgx.BeginFunc(ctx, r.pool, func(dbTx pgx.Tx) error {
		var err error
		out, err = r.insert(ctx, dbTx, tx)
		if err != nil {
			return err
		}
		return r.publish(ctx, dbTx, out.ID)
	})
	if err != nil {
		return core.Transaction{}, core.Persist("create transaction", err)
	}
	slog.InfoContext(ctx, "Transaction saved to Postgres", "id", out.ID, "receipt", out.ReceiptNo)
	r.notifier.Notify(ctx)
	return out, nil
}

// AppendSubscription implements store.LedgerStore
func (r *Repository) AppendSubscription(ctx context.Context, tx core.Transaction, policy core.MatchPolicy) (core.Transaction, error) {
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

// AppendSubscriptions implements store.BatchAppender
func (r *Repository) AppendSubscriptions(ctx context.Context, txs []core.Transaction, policy core.MatchPolicy) ([]core.Transaction, error) {
	for _, tx := range txs {
		if err := tx.Validate(); err != nil {
			return nil, err
		}
	}
	out := make([]core.Transaction, 0, len(txs))
	err := pgx.BeginFunc(ctx, r.pool, func(dbTx pgx.Tx) error {
		for _, key := range lockKeys(txs) {
			if _, err := dbTx.Exec(ctx, `SELECT pg_advisory_xact_lock($1, $2)`, subscriptionLockSpace, key); err != nil {
				return fmt.Errorf("lock month: %w", err)
			}
		}
		for _, tx := range txs {
			taken, err := subscriptionTaken(ctx, dbTx, tx, "", policy)
			if err != nil {
				return err
			}
			if taken {
				return &core.DuplicateSubscriptionError{Month: tx.Date.YearMonth(), Resident: core.IdentityOf(tx).String()}
			}
			created, err := r.insert(ctx, dbTx, tx)
			if err != nil {
				return err
			}
			out = append(out, created)
		}
		return r.publish(ctx, dbTx, "batch")
	})
	if err != nil {
		return nil, core.Persist("create subscription batch", err)
	}
	slog.InfoContext(ctx, "Subscription entries saved to Postgres", "count", len(out))
	r.notifier.Notify(ctx)
	return out, nil
}

// Update implements store.LedgerStore
func (r *Repository) Update(ctx context.Context, tx core.Transaction) error {
	return r.update(ctx, tx, "")
}

// UpdateSubscription implements store.LedgerStore
func (r *Repository) UpdateSubscription(ctx context.Context, tx core.Transaction, policy core.MatchPolicy) error {
	if policy == "" {
		policy = core.MatchNameOrHouse
	}
	return r.update(ctx, tx, policy)
}

func (r *Repository) update(ctx context.Context, tx core.Transaction, policy core.MatchPolicy) error {
	if err := tx.Validate(); err != nil {
		return err
	}
	err := pgx.BeginFunc(ctx, r.pool, func(dbTx pgx.Tx) error {
		if policy != "" {
			if _, err := dbTx.Exec(ctx, `SELECT pg_advisory_xact_lock($1, $2)`, subscriptionLockSpace, lockKey(tx.Date.YearMonth())); err != nil {
				return fmt.Errorf("lock month: %w", err)
			}
			taken, err := subscriptionTaken(ctx, dbTx, tx, tx.ID, policy)
			if err != nil {
				return err
			}
			if taken {
				return core.ErrDuplicateSubscription
			}
		}
		ym := tx.Date.YearMonth()
		tag, err := dbTx.Exec(ctx, `UPDATE transactions SET
			resident_id = $1, resident_name = $2, house_no = $3, amount_cents = $4, mode = $5, type = $6,
			reason = $7, date = $8, payment_date = $9, receipt_no = $10, subscription_period = $11,
			is_subscription = $12, period_year = $13, period_month = $14
			WHERE id = $15`,
			tx.ResidentID, tx.ResidentName, tx.HouseNo, tx.Amount.Cents, string(tx.Mode), string(tx.Type),
			tx.Reason, tx.Date.Time, nullableDate(tx.PaymentDate), tx.ReceiptNo, tx.SubscriptionPeriod,
			tx.IsSubscription(), ym.Year, ym.Month, tx.ID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return core.ErrNotFound
		}
		return r.publish(ctx, dbTx, tx.ID)
	})
	if err != nil {
		return core.Persist("update transaction", err)
	}
	r.notifier.Notify(ctx)
	return nil
}

// Delete implements store.LedgerStore
func (r *Repository) Delete(ctx context.Context, id string) error {
	err := pgx.BeginFunc(ctx, r.pool, func(dbTx pgx.Tx) error {
		tag, err := dbTx.Exec(ctx, `DELETE FROM transactions WHERE id = $1`, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return core.ErrNotFound
		}
		return r.publish(ctx, dbTx, id)
	})
	if err != nil {
		return core.Persist("delete transaction", err)
	}
	r.notifier.Notify(ctx)
	return nil
}

// Get implements store.LedgerStore
func (r *Repository) Get(ctx context.Context, id string) (core.Transaction, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = $1`, id)
	tx, err := scanTransaction(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Transaction{}, core.ErrNotFound
	}
	if err != nil {
		return core.Transaction{}, core.Persist("get transaction", err)
	}
	return tx, nil
}

// Snapshot implements store.LedgerStore
func (r *Repository) Snapshot(ctx context.Context) ([]core.Transaction, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+transactionColumns+` FROM transactions ORDER BY date DESC, created_at DESC`)
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
	return out, core.Persist("list transactions", rows.Err())
}

// Subscribe implements store.LedgerStore. Changes from other processes are
// delivered while Listen is running.
func (r *Repository) Subscribe(ctx context.Context, onChange func([]core.Transaction)) (func(), error) {
	return r.notifier.Subscribe(ctx, onChange)
}

// Listen relays NOTIFY events from other processes to subscribers until ctx
// is cancelled.
func (r *Repository) Listen(ctx context.Context) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire listen connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+ChangeChannel); err != nil {
		return fmt.Errorf("listen %s: %w", ChangeChannel, err)
	}
	slog.InfoContext(ctx, "Listening for ledger changes", "channel", ChangeChannel)

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("wait for notification: %w", err)
		}
		if isForeign(n, r.instanceID) {
			r.notifier.Notify(ctx)
		}
	}
}

// ListResidents implements store.ResidentDirectory
func (r *Repository) ListResidents(ctx context.Context) ([]core.Resident, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, house_no, contact FROM residents ORDER BY name, house_no`)
	if err != nil {
		return nil, core.Persist("list residents", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (core.Resident, error) {
		var res core.Resident
		err := row.Scan(&res.ID, &res.Name, &res.HouseNo, &res.Contact)
		return res, err
	})
	if err != nil {
		return nil, core.Persist("list residents", err)
	}
	return out, nil
}

// AddResident implements store.ResidentDirectory
func (r *Repository) AddResident(ctx context.Context, res core.Resident) (string, error) {
	if err := res.Validate(); err != nil {
		return "", err
	}
	id := uuid.NewString()
	_, err := r.pool.Exec(ctx, `INSERT INTO residents (id, name, house_no, contact) VALUES ($1, $2, $3, $4)`,
		id, strings.TrimSpace(res.Name), strings.TrimSpace(res.HouseNo), strings.TrimSpace(res.Contact))
	if err != nil {
		return "", core.Persist("create resident", err)
	}
	return id, nil
}

// GetResident implements store.ResidentDirectory
func (r *Repository) GetResident(ctx context.Context, id string) (core.Resident, error) {
	var res core.Resident
	err := r.pool.QueryRow(ctx, `SELECT id, name, house_no, contact FROM residents WHERE id = $1`, id).
		Scan(&res.ID, &res.Name, &res.HouseNo, &res.Contact)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Resident{}, core.ErrNotFound
	}
	if err != nil {
		return core.Resident{}, core.Persist("get resident", err)
	}
	return res, nil
}

func (r *Repository) insert(ctx context.Context, dbTx pgx.Tx, tx core.Transaction) (core.Transaction, error) {
	tx.ID = uuid.NewString()
	ym := tx.Date.YearMonth()
	err := dbTx.QueryRow(ctx, `INSERT INTO transactions (
		id, resident_id, resident_name, house_no, amount_cents, mode, type, reason, date, payment_date,
		receipt_no, subscription_period, is_subscription, period_year, period_month
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	RETURNING created_at`,
		tx.ID, tx.ResidentID, tx.ResidentName, tx.HouseNo, tx.Amount.Cents, string(tx.Mode), string(tx.Type),
		tx.Reason, tx.Date.Time, nullableDate(tx.PaymentDate), tx.ReceiptNo, tx.SubscriptionPeriod,
		tx.IsSubscription(), ym.Year, ym.Month).Scan(&tx.CreatedAt)
	if err != nil {
		return core.Transaction{}, err
	}
	return tx, nil
}

func (r *Repository) publish(ctx context.Context, dbTx pgx.Tx, id string) error {
	_, err := dbTx.Exec(ctx, `SELECT pg_notify($1, $2)`, ChangeChannel, r.instanceID+":"+id)
	return err
}

func subscriptionTaken(ctx context.Context, dbTx pgx.Tx, tx core.Transaction, excludeID string, policy core.MatchPolicy) (bool, error) {
	ym := tx.Date.YearMonth()
	clause, args := store.MatchClause(policy, core.IdentityOf(tx), store.Dollar, 4)
	var taken bool
	err := dbTx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM transactions
		WHERE is_subscription AND period_year = $1 AND period_month = $2 AND id <> $3 AND `+clause+`)`,
		append([]any{ym.Year, ym.Month, excludeID}, args...)...).Scan(&taken)
	return taken, err
}

// lockKey maps a month to its advisory lock key.
func lockKey(ym core.YearMonth) int32 {
	return int32(ym.Year*100 + ym.Month)
}

// lockKeys returns the distinct month keys of a batch in ascending order so
// concurrent batches acquire locks in the same order.
func lockKeys(txs []core.Transaction) []int32 {
	seen := make(map[int32]struct{}, len(txs))
	keys := make([]int32, 0, len(txs))
	for _, tx := range txs {
		k := lockKey(tx.Date.YearMonth())
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// isForeign reports whether a notification came from another process.
func isForeign(n *pgconn.Notification, instanceID string) bool {
	if n == nil || n.Channel != ChangeChannel {
		return false
	}
	origin, _, _ := strings.Cut(n.Payload, ":")
	return origin != instanceID
}

func scanTransaction(row pgx.Row) (core.Transaction, error) {
	var (
		tx          core.Transaction
		mode, typ   string
		date        time.Time
		paymentDate *time.Time
	)
	err := row.Scan(&tx.ID, &tx.ResidentID, &tx.ResidentName, &tx.HouseNo, &tx.Amount.Cents, &mode, &typ,
		&tx.Reason, &date, &paymentDate, &tx.ReceiptNo, &tx.SubscriptionPeriod, &tx.CreatedAt)
	if err != nil {
		return core.Transaction{}, err
	}
	tx.Mode = core.Mode(mode)
	tx.Type = core.TxType(typ)
	tx.Date = core.DateOf(date)
	if paymentDate != nil {
		tx.PaymentDate = core.DateOf(*paymentDate)
	}
	return tx, nil
}

func nullableDate(d core.Date) *time.Time {
	if d.IsEmpty() {
		return nil
	}
	t := d.Time
	return &t
}

var (
	_ store.Store         = (*Repository)(nil)
	_ store.BatchAppender = (*Repository)(nil)
)
