package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sheikh-saqib/double-entry-ledger/internal/interfaces"
	"github.com/sheikh-saqib/double-entry-ledger/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var year2024 = models.FiscalPeriod{
	ID:        "p-2024",
	CompanyID: "ACME",
	Start:     time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	End:       time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC),
	Open:      true,
}

func seededStore(t *testing.T) *MemoryLedgerStore {
	t.Helper()

	ctx := context.Background()
	store := NewMemoryLedgerStore()
	require.NoError(t, store.CreateAccount(ctx, models.Account{ID: "acc-572", Code: "572"}))
	require.NoError(t, store.CreateAccount(ctx, models.Account{ID: "acc-700", Code: "700"}))
	require.NoError(t, store.WithinTx(ctx, func(tx interfaces.LedgerTx) error {
		return tx.InsertPeriod(ctx, year2024)
	}))
	return store
}

func entry(id string, number int64) models.LedgerEntry {
	amount := decimal.NewFromInt(10)
	return models.LedgerEntry{
		ID:       id,
		PeriodID: year2024.ID,
		Number:   number,
		Date:     time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		Postings: []models.Posting{
			{ID: id + "-1", EntryID: id, AccountID: "acc-572", AccountCode: "572", Debit: amount, Credit: decimal.Zero},
			{ID: id + "-2", EntryID: id, AccountID: "acc-700", AccountCode: "700", Debit: decimal.Zero, Credit: amount},
		},
	}
}

func TestWithinTxCommits(t *testing.T) {
	store := seededStore(t)
	ctx := context.Background()

	err := store.WithinTx(ctx, func(tx interfaces.LedgerTx) error {
		last, err := tx.LockSequence(ctx, year2024.ID)
		if err != nil {
			return err
		}
		if err := tx.StoreSequence(ctx, year2024.ID, last+1); err != nil {
			return err
		}
		if err := tx.InsertEntry(ctx, entry("e1", last+1)); err != nil {
			return err
		}

		staged, err := tx.EntryByID(ctx, "e1")
		require.NoError(t, err)
		assert.Equal(t, int64(1), staged.Number)

		_, err = store.GetEntry(ctx, "e1")
		assert.ErrorIs(t, err, interfaces.ErrNotFound, "staged entry visible outside its unit of work")
		return nil
	})
	require.NoError(t, err)

	stored, err := store.GetEntry(ctx, "e1")
	require.NoError(t, err)
	assert.Len(t, stored.Postings, 2)

	postings, err := store.PostingsByAccountCode(ctx, "572")
	require.NoError(t, err)
	assert.Len(t, postings, 1)
}

func TestWithinTxRollsBackOnError(t *testing.T) {
	store := seededStore(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := store.WithinTx(ctx, func(tx interfaces.LedgerTx) error {
		last, _ := tx.LockSequence(ctx, year2024.ID)
		_ = tx.StoreSequence(ctx, year2024.ID, last+1)
		if err := tx.InsertEntry(ctx, entry("e1", last+1)); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	entries, err := store.ListEntries(ctx, year2024.ID)
	require.NoError(t, err)
	assert.Empty(t, entries)

	// The sequence write was discarded with the rest.
	require.NoError(t, store.WithinTx(ctx, func(tx interfaces.LedgerTx) error {
		last, err := tx.LockSequence(ctx, year2024.ID)
		assert.Equal(t, int64(0), last)
		return err
	}))
}

func TestWithinTxReleasesLocksOnPanic(t *testing.T) {
	store := seededStore(t)
	ctx := context.Background()

	assert.Panics(t, func() {
		_ = store.WithinTx(ctx, func(tx interfaces.LedgerTx) error {
			_, _ = tx.LockSequence(ctx, year2024.ID)
			panic("fn blew up")
		})
	})

	done := make(chan error, 1)
	go func() {
		done <- store.WithinTx(ctx, func(tx interfaces.LedgerTx) error {
			_, err := tx.LockSequence(ctx, year2024.ID)
			return err
		})
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("sequence lock still held after panic")
	}
}

func TestWithinTxHonoursCancelledContext(t *testing.T) {
	store := seededStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := store.WithinTx(ctx, func(tx interfaces.LedgerTx) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestStoreSequenceRequiresLock(t *testing.T) {
	store := seededStore(t)
	ctx := context.Background()

	err := store.WithinTx(ctx, func(tx interfaces.LedgerTx) error {
		return tx.StoreSequence(ctx, year2024.ID, 1)
	})
	assert.Error(t, err)
}

func TestInsertEntryRejectsDuplicateNumber(t *testing.T) {
	store := seededStore(t)
	ctx := context.Background()

	require.NoError(t, store.WithinTx(ctx, func(tx interfaces.LedgerTx) error {
		return tx.InsertEntry(ctx, entry("e1", 1))
	}))

	// A writer that skipped the sequence lock collides at commit.
	err := store.WithinTx(ctx, func(tx interfaces.LedgerTx) error {
		return tx.InsertEntry(ctx, entry("e2", 1))
	})
	assert.ErrorIs(t, err, interfaces.ErrConflict)

	// And inside its own unit of work.
	err = store.WithinTx(ctx, func(tx interfaces.LedgerTx) error {
		if err := tx.InsertEntry(ctx, entry("e3", 2)); err != nil {
			return err
		}
		return tx.InsertEntry(ctx, entry("e4", 2))
	})
	assert.ErrorIs(t, err, interfaces.ErrConflict)

	entries, err := store.ListEntries(ctx, year2024.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "e1", entries[0].ID)
}

func TestInsertEntryRequiresPeriodAndAccounts(t *testing.T) {
	store := seededStore(t)
	ctx := context.Background()

	orphan := entry("e1", 1)
	orphan.PeriodID = "p-1999"
	err := store.WithinTx(ctx, func(tx interfaces.LedgerTx) error {
		return tx.InsertEntry(ctx, orphan)
	})
	assert.ErrorIs(t, err, interfaces.ErrNotFound)

	dangling := entry("e2", 1)
	dangling.Postings[1].AccountID = "acc-999"
	err = store.WithinTx(ctx, func(tx interfaces.LedgerTx) error {
		return tx.InsertEntry(ctx, dangling)
	})
	assert.Error(t, err)
}

func TestSequenceSeedsFromExistingNumbers(t *testing.T) {
	store := seededStore(t)
	ctx := context.Background()

	require.NoError(t, store.WithinTx(ctx, func(tx interfaces.LedgerTx) error {
		return tx.InsertEntry(ctx, entry("legacy", 41))
	}))

	require.NoError(t, store.WithinTx(ctx, func(tx interfaces.LedgerTx) error {
		last, err := tx.LockSequence(ctx, year2024.ID)
		assert.Equal(t, int64(41), last)
		return err
	}))
}

func TestPeriodQueries(t *testing.T) {
	store := seededStore(t)
	ctx := context.Background()

	other := year2024
	other.ID = "p-globex"
	other.CompanyID = "GLOBEX"

	require.NoError(t, store.WithinTx(ctx, func(tx interfaces.LedgerTx) error {
		require.NoError(t, tx.InsertPeriod(ctx, other))
		assert.Error(t, tx.InsertPeriod(ctx, other), "duplicate id accepted")

		day := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

		acme, err := tx.PeriodsContaining(ctx, "ACME", day)
		require.NoError(t, err)
		assert.Len(t, acme, 1)

		all, err := tx.PeriodsContaining(ctx, "", day)
		require.NoError(t, err)
		assert.Len(t, all, 2, "staged period not visible inside its unit of work")

		overlapping, err := tx.PeriodsOverlapping(ctx, "GLOBEX", day, day)
		require.NoError(t, err)
		require.Len(t, overlapping, 1)
		assert.Equal(t, "p-globex", overlapping[0].ID)
		return nil
	}))
}

func TestDeleteEntry(t *testing.T) {
	store := seededStore(t)
	ctx := context.Background()

	require.NoError(t, store.WithinTx(ctx, func(tx interfaces.LedgerTx) error {
		return tx.InsertEntry(ctx, entry("e1", 1))
	}))
	require.NoError(t, store.DeleteEntry(ctx, "e1"))

	_, err := store.GetEntry(ctx, "e1")
	assert.ErrorIs(t, err, interfaces.ErrNotFound)
	assert.ErrorIs(t, store.DeleteEntry(ctx, "e1"), interfaces.ErrNotFound)

	postings, err := store.PostingsByAccountCode(ctx, "572")
	require.NoError(t, err)
	assert.Empty(t, postings)
}

func TestCreateCounterpartyRequiresAccount(t *testing.T) {
	store := seededStore(t)
	ctx := context.Background()

	missing := "acc-430"
	err := store.CreateCounterparty(ctx, models.Counterparty{ID: "cp-1", Name: "Iberia", AccountID: &missing})
	assert.ErrorIs(t, err, interfaces.ErrNotFound)

	require.NoError(t, store.CreateCounterparty(ctx, models.Counterparty{ID: "cp-2", Name: "Globex"}))
	require.NoError(t, store.WithinTx(ctx, func(tx interfaces.LedgerTx) error {
		ok, err := tx.CounterpartyExists(ctx, "cp-2")
		assert.True(t, ok)
		return err
	}))
}
