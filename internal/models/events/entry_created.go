package events

import (
	"time"

	"github.com/shopspring/decimal"
)

const EntryCreatedTopic = "ledger.entry_created"

type EntryCreated struct {
	EntryID        string          `json:"entry_id"`
	PeriodID       string          `json:"period_id"`
	Number         int64           `json:"number"`
	Date           string          `json:"date"`
	Memo           string          `json:"memo"`
	CounterpartyID *string         `json:"counterparty_id,omitempty"`
	Total          decimal.Decimal `json:"total"`
	Lines          int             `json:"lines"`
	OccurredAt     time.Time       `json:"occurred_at"`
}

// Key is the partition key used when the event is published.
func (e EntryCreated) Key() string {
	return e.EntryID
}
