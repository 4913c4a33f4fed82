package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/sheikh-saqib/double-entry-ledger/internal/models"
	"github.com/sheikh-saqib/double-entry-ledger/internal/storage/memory"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

const testCompany = "ACME"

func day(s string) time.Time {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		panic(err)
	}
	return t
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func strPtr(s string) *string { return &s }

func line(code, debit, credit string) models.PostingDraft {
	return models.PostingDraft{AccountCode: code, Debit: dec(debit), Credit: dec(credit), Memo: code}
}

type fixture struct {
	ledger *Ledger
	store  *memory.MemoryLedgerStore
	period models.FiscalPeriod
}

// newFixture seeds a small chart of accounts, one counterparty and the 2024
// fiscal period for testCompany.
func newFixture(t *testing.T, opts ...Option) fixture {
	t.Helper()

	ctx := context.Background()
	store := memory.NewMemoryLedgerStore()

	require.NoError(t, store.CreateAccount(ctx, models.Account{ID: "acc-4", Code: "4", Description: "Creditors and debtors"}))
	require.NoError(t, store.CreateAccount(ctx, models.Account{ID: "acc-6", Code: "6", Description: "Purchases and expenses"}))
	require.NoError(t, store.CreateAccount(ctx, models.Account{ID: "acc-7", Code: "7", Description: "Sales and income"}))
	for _, acc := range []models.Account{
		{ID: "acc-400", Code: "400", Description: "Suppliers", ParentID: strPtr("acc-4")},
		{ID: "acc-430", Code: "430", Description: "Customers", ParentID: strPtr("acc-4")},
		{ID: "acc-472", Code: "472", Description: "Input VAT", ParentID: strPtr("acc-4")},
		{ID: "acc-477", Code: "477", Description: "Output VAT", ParentID: strPtr("acc-4")},
		{ID: "acc-572", Code: "572", Description: "Banks"},
		{ID: "acc-600", Code: "600", Description: "Purchases", ParentID: strPtr("acc-6")},
		{ID: "acc-700", Code: "700", Description: "Sales", ParentID: strPtr("acc-7")},
	} {
		require.NoError(t, store.CreateAccount(ctx, acc))
	}
	require.NoError(t, store.CreateCounterparty(ctx, models.Counterparty{ID: "cp-1", TaxID: "B12345678", Name: "Iberia Supplies SL", AccountID: strPtr("acc-430")}))

	l := NewLedger(store, opts...)
	period, err := l.RegisterPeriod(ctx, models.FiscalPeriod{
		CompanyID: testCompany,
		Start:     day("2024-01-01"),
		End:       day("2024-12-31"),
		Open:      true,
	})
	require.NoError(t, err)

	return fixture{ledger: l, store: store, period: period}
}

func balancedDraft(memo string) models.EntryDraft {
	return models.EntryDraft{
		CompanyID: testCompany,
		Date:      day("2024-03-15"),
		Memo:      memo,
		Postings: []models.PostingDraft{
			line("572", "250.00", "0"),
			line("700", "0", "250.00"),
		},
	}
}
