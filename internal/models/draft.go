package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// EntryDraft is the caller's request to record an entry.
type EntryDraft struct {
	CompanyID      string
	Date           time.Time
	Memo           string
	PeriodID       *string // trusted as-is unless period checks are enabled
	CounterpartyID *string
	Postings       []PostingDraft
}

// PostingDraft is one requested line, addressed by account code.
type PostingDraft struct {
	AccountCode string          `json:"account_code"`
	Debit       decimal.Decimal `json:"debit"`
	Credit      decimal.Decimal `json:"credit"`
	Memo        string          `json:"memo"`
}

// Direction says whether an invoice was received (expense) or issued (income).
type Direction string

const (
	DirectionExpense Direction = "expense"
	DirectionIncome  Direction = "income"
)

// InvoiceDraft is a commercial invoice to be turned into a three line entry.
type InvoiceDraft struct {
	CompanyID               string
	Date                    time.Time
	Memo                    string
	PeriodID                *string
	CounterpartyAccountCode string
	CounterpartyID          string
	Base                    decimal.Decimal
	TaxRate                 int64
	AccountCode             string // income or expense account
	Direction               Direction
}
