package memory

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"rwa/internal/core"
	"rwa/internal/store"
)

// Store keeps the ledger and resident directory in process memory.
type Store struct {
	mu        sync.Mutex
	entries   []core.Transaction
	residents []core.Resident
	notifier  *store.Notifier
	now       func() time.Time
}

func New(residents []core.Resident) *Store {
	s := &Store{now: time.Now}
	for _, r := range dedupeResidents(residents) {
		if r.ID == "" {
			r.ID = uuid.NewString()
		}
		s.residents = append(s.residents, r)
	}
	s.notifier = store.NewNotifier(s.Snapshot)
	return s
}

// NewFromFiles seeds the directory from base/seed_residents.txt, one
// "Name,HouseNo" per line.
func NewFromFiles(base string) *Store {
	var residents []core.Resident
	for _, line := range readLines(filepath.Join(base, "seed_residents.txt")) {
		name, house, ok := strings.Cut(line, ",")
		if !ok {
			continue
		}
		residents = append(residents, core.Resident{Name: strings.TrimSpace(name), HouseNo: strings.TrimSpace(house)})
	}
	return New(residents)
}

func (s *Store) Close() error { return nil }

// Append stores a normal entry.
func (s *Store) Append(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}
	s.mu.Lock()
	tx = s.insertLocked(tx)
	s.mu.Unlock()
	s.notifier.Notify(ctx)
	return tx, nil
}

// AppendSubscription stores tx unless the month is already charged.
func (s *Store) AppendSubscription(ctx context.Context, tx core.Transaction, policy core.MatchPolicy) (core.Transaction, error) {
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}
	s.mu.Lock()
	if core.IsPaid(s.entries, core.IdentityOf(tx), tx.Date.YearMonth(), "", policy) {
		s.mu.Unlock()
		return core.Transaction{}, core.ErrDuplicateSubscription
	}
	tx = s.insertLocked(tx)
	s.mu.Unlock()
	s.notifier.Notify(ctx)
	return tx, nil
}

// AppendSubscriptions stores the whole batch or nothing.
func (s *Store) AppendSubscriptions(ctx context.Context, txs []core.Transaction, policy core.MatchPolicy) ([]core.Transaction, error) {
	for _, tx := range txs {
		if err := tx.Validate(); err != nil {
			return nil, err
		}
	}
	s.mu.Lock()
	// check against the log and earlier entries of the same batch
	pending := append([]core.Transaction(nil), s.entries...)
	for _, tx := range txs {
		if core.IsPaid(pending, core.IdentityOf(tx), tx.Date.YearMonth(), "", policy) {
			s.mu.Unlock()
			return nil, &core.DuplicateSubscriptionError{Month: tx.Date.YearMonth(), Resident: core.IdentityOf(tx).String()}
		}
		pending = append(pending, tx)
	}
	out := make([]core.Transaction, 0, len(txs))
	for _, tx := range txs {
		out = append(out, s.insertLocked(tx))
	}
	s.mu.Unlock()
	s.notifier.Notify(ctx)
	return out, nil
}

func (s *Store) Update(ctx context.Context, tx core.Transaction) error {
	return s.update(ctx, tx, "")
}

func (s *Store) UpdateSubscription(ctx context.Context, tx core.Transaction, policy core.MatchPolicy) error {
	if policy == "" {
		policy = core.MatchNameOrHouse
	}
	return s.update(ctx, tx, policy)
}

func (s *Store) update(ctx context.Context, tx core.Transaction, policy core.MatchPolicy) error {
	if err := tx.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	idx := s.indexLocked(tx.ID)
	if idx < 0 {
		s.mu.Unlock()
		return core.ErrNotFound
	}
	if policy != "" && core.IsPaid(s.entries, core.IdentityOf(tx), tx.Date.YearMonth(), tx.ID, policy) {
		s.mu.Unlock()
		return core.ErrDuplicateSubscription
	}
	tx.CreatedAt = s.entries[idx].CreatedAt
	s.entries[idx] = tx
	s.mu.Unlock()
	s.notifier.Notify(ctx)
	return nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	idx := s.indexLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		return core.ErrNotFound
	}
	s.entries = append(s.entries[:idx], s.entries[idx+1:]...)
	s.mu.Unlock()
	s.notifier.Notify(ctx)
	return nil
}

func (s *Store) Get(_ context.Context, id string) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.indexLocked(id)
	if idx < 0 {
		return core.Transaction{}, core.ErrNotFound
	}
	return s.entries[idx], nil
}

// Snapshot returns a copy of the log, newest first.
func (s *Store) Snapshot(_ context.Context) ([]core.Transaction, error) {
	s.mu.Lock()
	out := append([]core.Transaction(nil), s.entries...)
	s.mu.Unlock()
	core.SortByDateDesc(out)
	return out, nil
}

func (s *Store) Subscribe(ctx context.Context, onChange func([]core.Transaction)) (func(), error) {
	return s.notifier.Subscribe(ctx, onChange)
}

// ListResidents returns residents ordered by name.
func (s *Store) ListResidents(_ context.Context) ([]core.Resident, error) {
	s.mu.Lock()
	out := append([]core.Resident(nil), s.residents...)
	s.mu.Unlock()
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) AddResident(_ context.Context, r core.Resident) (string, error) {
	if err := r.Validate(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r.ID = uuid.NewString()
	s.residents = append(s.residents, r)
	return r.ID, nil
}

func (s *Store) GetResident(_ context.Context, id string) (core.Resident, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.residents {
		if r.ID == id {
			return r, nil
		}
	}
	return core.Resident{}, core.ErrNotFound
}

func (s *Store) insertLocked(tx core.Transaction) core.Transaction {
	tx.ID = uuid.NewString()
	tx.CreatedAt = s.now().UTC()
	s.entries = append(s.entries, tx)
	return tx
}

func (s *Store) indexLocked(id string) int {
	for i, e := range s.entries {
		if e.ID == id {
			return i
		}
	}
	return -1
}

func readLines(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out
}

func dedupeResidents(in []core.Resident) []core.Resident {
	seen := map[string]struct{}{}
	out := make([]core.Resident, 0, len(in))
	for _, r := range in {
		if r.Validate() != nil {
			continue
		}
		key := r.Name + "\x00" + r.HouseNo
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, r)
	}
	return out
}

var (
	_ store.Store         = (*Store)(nil)
	_ store.BatchAppender = (*Store)(nil)
)
