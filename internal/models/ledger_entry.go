package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// LedgerEntry is one numbered journal entry inside a fiscal period.
// It is written together with its postings and never updated afterwards.
type LedgerEntry struct {
	ID             string
	PeriodID       string
	Number         int64 // sequence within PeriodID, starts at 1
	Date           time.Time
	Memo           string
	CounterpartyID *string
	CreatedAt      time.Time
	Postings       []Posting
}

// Posting is a single line of an entry against one account.
type Posting struct {
	ID          string
	EntryID     string
	AccountID   string
	AccountCode string
	Debit       decimal.Decimal
	Credit      decimal.Decimal
	Memo        string
}

// Totals returns the debit and credit sums of the entry's postings.
func (e LedgerEntry) Totals() (debit, credit decimal.Decimal) {
	debit, credit = decimal.Zero, decimal.Zero
	for _, p := range e.Postings {
		debit = debit.Add(p.Debit)
		credit = credit.Add(p.Credit)
	}
	return debit, credit
}

// DateOf truncates t to a calendar day in UTC.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
