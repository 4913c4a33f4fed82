package interfaces

import (
	"context"
	"errors"
	"time"

	"github.com/sheikh-saqib/double-entry-ledger/internal/models"
)

var (
	// ErrNotFound is returned (possibly wrapped) when a looked-up row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned (possibly wrapped) when the store rejects a write because
	// a concurrent transaction won: unique (period, number) or serialization failures.
	ErrConflict = errors.New("concurrent write conflict")
)

// LedgerStore is the persistence boundary of the ledger.
// Writes go through WithinTx; the read methods only see committed data.
type LedgerStore interface {
	// WithinTx runs fn in one unit of work. It commits when fn returns nil and
	// rolls back on error or panic. Locks taken through LedgerTx are released
	// when WithinTx returns.
	WithinTx(ctx context.Context, fn func(tx LedgerTx) error) error

	GetEntry(ctx context.Context, id string) (models.LedgerEntry, error)
	ListEntries(ctx context.Context, periodID string) ([]models.LedgerEntry, error)
	PostingsByAccountCode(ctx context.Context, code string) ([]models.Posting, error)
	DeleteEntry(ctx context.Context, id string) error

	CreateAccount(ctx context.Context, acc models.Account) error
	CreateCounterparty(ctx context.Context, cp models.Counterparty) error
}

// LedgerTx is the view of the store available inside a unit of work.
type LedgerTx interface {
	AccountIDByCode(ctx context.Context, code string) (string, error)
	CounterpartyExists(ctx context.Context, id string) (bool, error)

	PeriodByID(ctx context.Context, id string) (models.FiscalPeriod, error)
	// PeriodsContaining returns the periods whose range includes day. An empty
	// companyID matches every company.
	PeriodsContaining(ctx context.Context, companyID string, day time.Time) ([]models.FiscalPeriod, error)
	PeriodsOverlapping(ctx context.Context, companyID string, start, end time.Time) ([]models.FiscalPeriod, error)
	InsertPeriod(ctx context.Context, p models.FiscalPeriod) error
	// LockCompany serializes period registration for one company.
	LockCompany(ctx context.Context, companyID string) error

	// LockSequence takes the exclusive per-period numbering lock and returns the
	// last number handed out in that period (0 when none).
	LockSequence(ctx context.Context, periodID string) (int64, error)
	StoreSequence(ctx context.Context, periodID string, number int64) error

	InsertEntry(ctx context.Context, entry models.LedgerEntry) error
	EntryByID(ctx context.Context, id string) (models.LedgerEntry, error)
}
