package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/sheikh-saqib/double-entry-ledger/internal/interfaces"
	"github.com/sheikh-saqib/double-entry-ledger/internal/ledger"
	"github.com/sheikh-saqib/double-entry-ledger/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	for _, code := range []string{codeUniqueViolation, codeSerializationFailure, codeDeadlockDetected} {
		err := classify(fmt.Errorf("insert: %w", &pq.Error{Code: pq.ErrorCode(code)}))
		assert.ErrorIs(t, err, interfaces.ErrConflict, code)

		var pqErr *pq.Error
		assert.ErrorAs(t, err, &pqErr, "driver error dropped from chain")
	}

	fk := &pq.Error{Code: "23503"}
	assert.Same(t, error(fk), classify(fk))
	assert.NoError(t, classify(nil))

	plain := errors.New("connection reset")
	assert.Same(t, plain, classify(plain))
}

// testStore connects to LEDGER_TEST_POSTGRES_DSN. Every test works under a
// fresh company and fresh account codes, so runs can share one database.
func testStore(t *testing.T) *PostgresLedgerStore {
	t.Helper()

	dsn := os.Getenv("LEDGER_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("LEDGER_TEST_POSTGRES_DSN not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	store, err := Open(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.Migrate(ctx))
	return store
}

type pgFixture struct {
	ledger  *ledger.Ledger
	store   *PostgresLedgerStore
	period  models.FiscalPeriod
	company string
	cash    string
	sales   string
}

func newPGFixture(t *testing.T) pgFixture {
	store := testStore(t)
	ctx := context.Background()
	suffix := uuid.NewString()[:8]

	f := pgFixture{
		store:   store,
		company: "co-" + suffix,
		cash:    "572." + suffix,
		sales:   "700." + suffix,
	}
	require.NoError(t, store.CreateAccount(ctx, models.Account{ID: uuid.NewString(), Code: f.cash, Description: "Banks"}))
	require.NoError(t, store.CreateAccount(ctx, models.Account{ID: uuid.NewString(), Code: f.sales, Description: "Sales"}))

	f.ledger = ledger.NewLedger(store)
	period, err := f.ledger.RegisterPeriod(ctx, models.FiscalPeriod{
		CompanyID: f.company,
		Start:     time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		End:       time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC),
		Open:      true,
	})
	require.NoError(t, err)
	f.period = period
	return f
}

func (f pgFixture) sale(memo string, amount int64) models.EntryDraft {
	a := decimal.NewFromInt(amount)
	return models.EntryDraft{
		CompanyID: f.company,
		Date:      time.Date(2024, 8, 20, 0, 0, 0, 0, time.UTC),
		Memo:      memo,
		Postings: []models.PostingDraft{
			{AccountCode: f.cash, Debit: a, Credit: decimal.Zero},
			{AccountCode: f.sales, Debit: decimal.Zero, Credit: a},
		},
	}
}

func TestPostgresCreateAndRead(t *testing.T) {
	f := newPGFixture(t)
	ctx := context.Background()

	created, err := f.ledger.CreateEntry(ctx, f.sale("Card payment", 75))
	require.NoError(t, err)
	assert.Equal(t, int64(1), created.Number)

	stored, err := f.store.GetEntry(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, f.period.ID, stored.PeriodID)
	require.Len(t, stored.Postings, 2)
	assert.Equal(t, f.cash, stored.Postings[0].AccountCode)
	assert.Equal(t, "75.00", stored.Postings[0].Debit.StringFixed(2))

	balance, err := f.ledger.GetBalance(ctx, f.sales)
	require.NoError(t, err)
	assert.Equal(t, "-75.00", balance.StringFixed(2))
}

func TestPostgresConcurrentNumbering(t *testing.T) {
	f := newPGFixture(t)
	ctx := context.Background()

	const writers = 24
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := f.ledger.CreateEntry(ctx, f.sale(fmt.Sprintf("sale %d", i), int64(i+1))); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	entries, err := f.store.ListEntries(ctx, f.period.ID)
	require.NoError(t, err)
	require.Len(t, entries, writers)
	for i, e := range entries {
		assert.Equal(t, int64(i+1), e.Number)
		assert.Len(t, e.Postings, 2)
	}
}

func TestPostgresRollbackAndDelete(t *testing.T) {
	f := newPGFixture(t)
	ctx := context.Background()

	bad := f.sale("unknown account", 10)
	bad.Postings[1].AccountCode = "missing-" + f.sales
	_, err := f.ledger.CreateEntry(ctx, bad)
	var notFound *ledger.AccountNotFoundError
	require.ErrorAs(t, err, &notFound)

	first, err := f.ledger.CreateEntry(ctx, f.sale("first", 10))
	require.NoError(t, err)
	assert.Equal(t, int64(1), first.Number)

	require.NoError(t, f.ledger.DeleteEntry(ctx, first.ID))
	postings, err := f.store.PostingsByAccountCode(ctx, f.cash)
	require.NoError(t, err)
	assert.Empty(t, postings)

	second, err := f.ledger.CreateEntry(ctx, f.sale("second", 10))
	require.NoError(t, err)
	assert.Equal(t, int64(2), second.Number)
}
