package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sheikh-saqib/double-entry-ledger/internal/interfaces"
	"github.com/sheikh-saqib/double-entry-ledger/internal/models"
)

// MemoryLedgerStore is an in-memory implementation of interfaces.LedgerStore.
// Units of work stage their writes and apply them in one step on commit.
// Sequence locks are per period, so writers on different periods never wait
// on each other.
type MemoryLedgerStore struct {
	mu             sync.RWMutex
	accounts       *models.AccountArena
	counterparties map[string]models.Counterparty
	periods        map[string]models.FiscalPeriod
	entries        map[string]models.LedgerEntry
	numbers        map[string]map[int64]string // period id -> number -> entry id
	sequences      map[string]int64

	lockMu       sync.Mutex
	seqLocks     map[string]*sync.Mutex
	companyLocks map[string]*sync.Mutex
}

func NewMemoryLedgerStore() *MemoryLedgerStore {
	return &MemoryLedgerStore{
		accounts:       models.NewAccountArena(),
		counterparties: make(map[string]models.Counterparty),
		periods:        make(map[string]models.FiscalPeriod),
		entries:        make(map[string]models.LedgerEntry),
		numbers:        make(map[string]map[int64]string),
		sequences:      make(map[string]int64),
		seqLocks:       make(map[string]*sync.Mutex),
		companyLocks:   make(map[string]*sync.Mutex),
	}
}

func (m *MemoryLedgerStore) namedLock(locks map[string]*sync.Mutex, key string) *sync.Mutex {
	m.lockMu.Lock()
	defer m.lockMu.Unlock()

	if _, exists := locks[key]; !exists {
		locks[key] = &sync.Mutex{}
	}
	return locks[key]
}

// WithinTx implements interfaces.LedgerStore.
func (m *MemoryLedgerStore) WithinTx(ctx context.Context, fn func(tx interfaces.LedgerTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	tx := &memoryTx{
		store:     m,
		held:      make(map[*sync.Mutex]bool),
		sequences: make(map[string]int64),
	}
	// Staged writes are dropped on error or panic; release runs either way.
	defer tx.release()

	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return tx.commit()
}

func (m *MemoryLedgerStore) GetEntry(ctx context.Context, id string) (models.LedgerEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, ok := m.entries[id]
	if !ok {
		return models.LedgerEntry{}, fmt.Errorf("entry %s: %w", id, interfaces.ErrNotFound)
	}
	return copyEntry(entry), nil
}

func (m *MemoryLedgerStore) ListEntries(ctx context.Context, periodID string) ([]models.LedgerEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]models.LedgerEntry, 0, len(m.numbers[periodID]))
	for _, id := range m.numbers[periodID] {
		result = append(result, copyEntry(m.entries[id]))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Number < result[j].Number })
	return result, nil
}

func (m *MemoryLedgerStore) PostingsByAccountCode(ctx context.Context, code string) ([]models.Posting, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	acc, ok := m.accounts.ByCode(code)
	if !ok {
		return nil, fmt.Errorf("account %s: %w", code, interfaces.ErrNotFound)
	}

	var result []models.Posting
	for _, e := range m.entries {
		for _, p := range e.Postings {
			if p.AccountID == acc.ID {
				result = append(result, p)
			}
		}
	}
	return result, nil
}

func (m *MemoryLedgerStore) DeleteEntry(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[id]
	if !ok {
		return fmt.Errorf("entry %s: %w", id, interfaces.ErrNotFound)
	}
	delete(m.entries, id)
	delete(m.numbers[entry.PeriodID], entry.Number)
	return nil
}

func (m *MemoryLedgerStore) CreateAccount(ctx context.Context, acc models.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.accounts.Add(acc)
}

func (m *MemoryLedgerStore) CreateCounterparty(ctx context.Context, cp models.Counterparty) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if cp.AccountID != nil {
		if _, ok := m.accounts.Get(*cp.AccountID); !ok {
			return fmt.Errorf("counterparty account %s: %w", *cp.AccountID, interfaces.ErrNotFound)
		}
	}
	m.counterparties[cp.ID] = cp
	return nil
}

// Accounts exposes the chart of accounts arena. Callers must not mutate it.
func (m *MemoryLedgerStore) Accounts() *models.AccountArena {
	return m.accounts
}

type memoryTx struct {
	store *MemoryLedgerStore

	held      map[*sync.Mutex]bool
	order     []*sync.Mutex
	periods   []models.FiscalPeriod
	entries   []models.LedgerEntry
	sequences map[string]int64
}

func (t *memoryTx) lock(mu *sync.Mutex) {
	if t.held[mu] {
		return
	}
	mu.Lock()
	t.held[mu] = true
	t.order = append(t.order, mu)
}

func (t *memoryTx) release() {
	for i := len(t.order) - 1; i >= 0; i-- {
		t.order[i].Unlock()
	}
	t.order = nil
	t.held = map[*sync.Mutex]bool{}
}

func (t *memoryTx) AccountIDByCode(ctx context.Context, code string) (string, error) {
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()

	acc, ok := t.store.accounts.ByCode(code)
	if !ok {
		return "", fmt.Errorf("account %s: %w", code, interfaces.ErrNotFound)
	}
	return acc.ID, nil
}

func (t *memoryTx) CounterpartyExists(ctx context.Context, id string) (bool, error) {
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()

	_, ok := t.store.counterparties[id]
	return ok, nil
}

// allPeriods returns committed and staged periods.
func (t *memoryTx) allPeriods() []models.FiscalPeriod {
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()

	out := make([]models.FiscalPeriod, 0, len(t.store.periods)+len(t.periods))
	for _, p := range t.store.periods {
		out = append(out, p)
	}
	return append(out, t.periods...)
}

func (t *memoryTx) PeriodByID(ctx context.Context, id string) (models.FiscalPeriod, error) {
	for _, p := range t.allPeriods() {
		if p.ID == id {
			return p, nil
		}
	}
	return models.FiscalPeriod{}, fmt.Errorf("fiscal period %s: %w", id, interfaces.ErrNotFound)
}

func (t *memoryTx) PeriodsContaining(ctx context.Context, companyID string, day time.Time) ([]models.FiscalPeriod, error) {
	var out []models.FiscalPeriod
	for _, p := range t.allPeriods() {
		if companyID != "" && p.CompanyID != companyID {
			continue
		}
		if p.Contains(day) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (t *memoryTx) PeriodsOverlapping(ctx context.Context, companyID string, start, end time.Time) ([]models.FiscalPeriod, error) {
	probe := models.FiscalPeriod{Start: start, End: end}

	var out []models.FiscalPeriod
	for _, p := range t.allPeriods() {
		if p.CompanyID == companyID && p.Overlaps(probe) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (t *memoryTx) InsertPeriod(ctx context.Context, p models.FiscalPeriod) error {
	if _, err := t.PeriodByID(ctx, p.ID); err == nil {
		return fmt.Errorf("fiscal period %s already exists", p.ID)
	}
	t.periods = append(t.periods, p)
	return nil
}

func (t *memoryTx) LockCompany(ctx context.Context, companyID string) error {
	t.lock(t.store.namedLock(t.store.companyLocks, companyID))
	return nil
}

func (t *memoryTx) LockSequence(ctx context.Context, periodID string) (int64, error) {
	t.lock(t.store.namedLock(t.store.seqLocks, periodID))

	if n, ok := t.sequences[periodID]; ok {
		return n, nil
	}

	t.store.mu.RLock()
	defer t.store.mu.RUnlock()

	if n, ok := t.store.sequences[periodID]; ok {
		return n, nil
	}
	// First allocation in this period: continue from whatever is stored.
	var last int64
	for n := range t.store.numbers[periodID] {
		if n > last {
			last = n
		}
	}
	return last, nil
}

func (t *memoryTx) StoreSequence(ctx context.Context, periodID string, number int64) error {
	if !t.held[t.store.namedLock(t.store.seqLocks, periodID)] {
		return fmt.Errorf("sequence for period %s stored without holding its lock", periodID)
	}
	t.sequences[periodID] = number
	return nil
}

func (t *memoryTx) InsertEntry(ctx context.Context, entry models.LedgerEntry) error {
	if _, err := t.PeriodByID(ctx, entry.PeriodID); err != nil {
		return fmt.Errorf("insert entry %s: %w", entry.ID, err)
	}

	t.store.mu.RLock()
	for _, p := range entry.Postings {
		if _, ok := t.store.accounts.Get(p.AccountID); !ok {
			t.store.mu.RUnlock()
			return fmt.Errorf("posting %s references missing account %s", p.ID, p.AccountID)
		}
	}
	t.store.mu.RUnlock()

	for _, staged := range t.entries {
		if staged.PeriodID == entry.PeriodID && staged.Number == entry.Number {
			return fmt.Errorf("entry number %d in period %s: %w", entry.Number, entry.PeriodID, interfaces.ErrConflict)
		}
	}

	t.entries = append(t.entries, copyEntry(entry))
	return nil
}

func (t *memoryTx) EntryByID(ctx context.Context, id string) (models.LedgerEntry, error) {
	for _, e := range t.entries {
		if e.ID == id {
			return copyEntry(e), nil
		}
	}
	return t.store.GetEntry(ctx, id)
}

func (t *memoryTx) commit() error {
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()

	// Unique (period, number) check before anything is applied.
	for _, e := range t.entries {
		if _, taken := s.numbers[e.PeriodID][e.Number]; taken {
			return fmt.Errorf("entry number %d in period %s: %w", e.Number, e.PeriodID, interfaces.ErrConflict)
		}
	}

	for _, p := range t.periods {
		s.periods[p.ID] = p
	}
	for _, e := range t.entries {
		s.entries[e.ID] = e
		if s.numbers[e.PeriodID] == nil {
			s.numbers[e.PeriodID] = make(map[int64]string)
		}
		s.numbers[e.PeriodID][e.Number] = e.ID
	}
	for periodID, n := range t.sequences {
		s.sequences[periodID] = n
	}
	return nil
}

func copyEntry(e models.LedgerEntry) models.LedgerEntry {
	postings := make([]models.Posting, len(e.Postings))
	copy(postings, e.Postings)
	e.Postings = postings
	return e
}

// Compile-time check: ensure MemoryLedgerStore implements LedgerStore interface
var _ interfaces.LedgerStore = (*MemoryLedgerStore)(nil)
