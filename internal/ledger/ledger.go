package ledger

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sheikh-saqib/double-entry-ledger/internal/interfaces"
	"github.com/sheikh-saqib/double-entry-ledger/internal/models"
	"github.com/sheikh-saqib/double-entry-ledger/internal/models/events"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Ledger records balanced entries. Every write runs as a single unit of work
// on the store; nothing is kept between calls except configuration.
type Ledger struct {
	store interfaces.LedgerStore

	publisher interfaces.EventPublisher
	topic     string
	taxRules  TaxRulesSource
	logger    *zap.Logger
	now       func() time.Time

	periodChecks   bool
	exclusiveSides bool
}

type Option func(*Ledger)

func WithLogger(logger *zap.Logger) Option {
	return func(l *Ledger) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithPublisher emits an EntryCreated event on topic after each commit.
func WithPublisher(p interfaces.EventPublisher, topic string) Option {
	return func(l *Ledger) {
		l.publisher = p
		if topic != "" {
			l.topic = topic
		}
	}
}

func WithTaxRules(src TaxRulesSource) Option {
	return func(l *Ledger) {
		if src != nil {
			l.taxRules = src
		}
	}
}

// WithPeriodChecks verifies explicitly supplied periods: they must exist,
// contain the entry date and be open. Without it they are trusted.
func WithPeriodChecks() Option {
	return func(l *Ledger) { l.periodChecks = true }
}

// WithExclusiveSides rejects posting lines that carry both a debit and a credit.
func WithExclusiveSides() Option {
	return func(l *Ledger) { l.exclusiveSides = true }
}

func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

func NewLedger(store interfaces.LedgerStore, opts ...Option) *Ledger {
	l := &Ledger{
		store:    store,
		topic:    events.EntryCreatedTopic,
		taxRules: DefaultTaxRules,
		logger:   zap.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// CreateEntry validates, numbers and stores a new entry with its postings.
// The returned entry is read back from the store before commit.
func (l *Ledger) CreateEntry(ctx context.Context, draft models.EntryDraft) (models.LedgerEntry, error) {
	if err := validatePostings(draft.Postings, l.exclusiveSides); err != nil {
		return models.LedgerEntry{}, err
	}
	if draft.Date.IsZero() {
		return models.LedgerEntry{}, &InvalidInputError{Field: "date", Reason: "date is required"}
	}

	var created models.LedgerEntry
	err := l.store.WithinTx(ctx, func(tx interfaces.LedgerTx) error {
		entry, err := l.buildEntry(ctx, tx, draft)
		if err != nil {
			return err
		}

		if err := tx.InsertEntry(ctx, entry); err != nil {
			return storeError("insert entry", err)
		}

		created, err = tx.EntryByID(ctx, entry.ID)
		if err != nil {
			return storeError("read back entry", err)
		}
		return nil
	})
	if err != nil {
		err = storeError("create entry", err)
		l.logFailure("create entry failed", err)
		return models.LedgerEntry{}, err
	}

	l.logger.Debug("entry created",
		zap.String("entry_id", created.ID),
		zap.String("period_id", created.PeriodID),
		zap.Int64("number", created.Number),
		zap.Int("postings", len(created.Postings)),
	)
	l.publish(ctx, created)

	return created, nil
}

func (l *Ledger) buildEntry(ctx context.Context, tx interfaces.LedgerTx, draft models.EntryDraft) (models.LedgerEntry, error) {
	entry := models.LedgerEntry{
		ID:             uuid.NewString(),
		Date:           models.DateOf(draft.Date),
		Memo:           draft.Memo,
		CounterpartyID: draft.CounterpartyID,
		CreatedAt:      l.now().UTC(),
		Postings:       make([]models.Posting, 0, len(draft.Postings)),
	}

	accounts := NewAccountDirectory(tx)
	for _, p := range draft.Postings {
		accountID, err := accounts.Resolve(ctx, p.AccountCode)
		if err != nil {
			return models.LedgerEntry{}, err
		}
		entry.Postings = append(entry.Postings, models.Posting{
			ID:          uuid.NewString(),
			EntryID:     entry.ID,
			AccountID:   accountID,
			AccountCode: p.AccountCode,
			Debit:       p.Debit,
			Credit:      p.Credit,
			Memo:        p.Memo,
		})
	}

	if draft.CounterpartyID != nil {
		ok, err := tx.CounterpartyExists(ctx, *draft.CounterpartyID)
		if err != nil {
			return models.LedgerEntry{}, storeError("check counterparty", err)
		}
		if !ok {
			return models.LedgerEntry{}, &CounterpartyNotFoundError{ID: *draft.CounterpartyID}
		}
	}

	periodID, err := NewFiscalPeriodResolver(tx, l.periodChecks).Resolve(ctx, draft.PeriodID, draft.CompanyID, draft.Date)
	if err != nil {
		return models.LedgerEntry{}, err
	}
	entry.PeriodID = periodID

	entry.Number, err = NewSequenceAllocator(tx).Next(ctx, periodID)
	if err != nil {
		return models.LedgerEntry{}, err
	}

	return entry, nil
}

// RegisterPeriod adds a fiscal period for a company. Periods of the same
// company may not overlap.
func (l *Ledger) RegisterPeriod(ctx context.Context, p models.FiscalPeriod) (models.FiscalPeriod, error) {
	if strings.TrimSpace(p.CompanyID) == "" {
		return models.FiscalPeriod{}, &InvalidInputError{Field: "company_id", Reason: "company is required"}
	}
	if p.Start.IsZero() || p.End.IsZero() {
		return models.FiscalPeriod{}, &InvalidInputError{Field: "range", Reason: "start and end are required"}
	}

	p.Start, p.End = models.DateOf(p.Start), models.DateOf(p.End)
	if p.Start.After(p.End) {
		return models.FiscalPeriod{}, &InvalidInputError{Field: "range", Reason: "start is after end"}
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}

	err := l.store.WithinTx(ctx, func(tx interfaces.LedgerTx) error {
		return registerPeriod(ctx, tx, p)
	})
	if err != nil {
		return models.FiscalPeriod{}, storeError("register fiscal period", err)
	}

	l.logger.Info("fiscal period registered",
		zap.String("period_id", p.ID),
		zap.String("company_id", p.CompanyID),
		zap.String("start", p.Start.Format(time.DateOnly)),
		zap.String("end", p.End.Format(time.DateOnly)),
	)
	return p, nil
}

func (l *Ledger) GetEntry(ctx context.Context, id string) (models.LedgerEntry, error) {
	entry, err := l.store.GetEntry(ctx, id)
	if errors.Is(err, interfaces.ErrNotFound) {
		return models.LedgerEntry{}, &EntryNotFoundError{ID: id}
	}
	if err != nil {
		return models.LedgerEntry{}, storeError("get entry", err)
	}
	return entry, nil
}

// ListEntries returns the committed entries of a period ordered by number.
func (l *Ledger) ListEntries(ctx context.Context, periodID string) ([]models.LedgerEntry, error) {
	entries, err := l.store.ListEntries(ctx, periodID)
	if err != nil {
		return []models.LedgerEntry{}, storeError("list entries", err)
	}
	return entries, nil
}

// GetBalance returns debit minus credit over all postings to the account.
func (l *Ledger) GetBalance(ctx context.Context, accountCode string) (decimal.Decimal, error) {
	postings, err := l.store.PostingsByAccountCode(ctx, accountCode)
	if errors.Is(err, interfaces.ErrNotFound) {
		return decimal.Zero, &AccountNotFoundError{Code: accountCode}
	}
	if err != nil {
		return decimal.Zero, storeError("get balance", err)
	}

	balance := decimal.Zero
	for _, p := range postings {
		balance = balance.Add(p.Debit).Sub(p.Credit)
	}
	return balance, nil
}

// DeleteEntry removes an entry and its postings. The period's sequence
// counter is left alone so the number is not handed out again.
func (l *Ledger) DeleteEntry(ctx context.Context, id string) error {
	err := l.store.DeleteEntry(ctx, id)
	if errors.Is(err, interfaces.ErrNotFound) {
		return &EntryNotFoundError{ID: id}
	}
	if err != nil {
		return storeError("delete entry", err)
	}

	l.logger.Info("entry deleted", zap.String("entry_id", id))
	return nil
}

func (l *Ledger) publish(ctx context.Context, entry models.LedgerEntry) {
	if l.publisher == nil {
		return
	}

	total, _ := entry.Totals()
	event := events.EntryCreated{
		EntryID:        entry.ID,
		PeriodID:       entry.PeriodID,
		Number:         entry.Number,
		Date:           entry.Date.Format(time.DateOnly),
		Memo:           entry.Memo,
		CounterpartyID: entry.CounterpartyID,
		Total:          total,
		Lines:          len(entry.Postings),
		OccurredAt:     entry.CreatedAt,
	}

	// The entry is committed at this point; a lost event must not look like a
	// failed write to the caller.
	if err := l.publisher.Publish(ctx, l.topic, event); err != nil {
		l.logger.Warn("publish entry created event",
			zap.String("entry_id", entry.ID),
			zap.String("topic", l.topic),
			zap.Error(err),
		)
	}
}

func (l *Ledger) logFailure(msg string, err error) {
	switch KindOf(err) {
	case KindPersistence:
		l.logger.Error(msg, zap.Error(err))
	case KindConflict:
		l.logger.Warn(msg, zap.Error(err))
	default:
		l.logger.Debug(msg, zap.Error(err), zap.Stringer("kind", KindOf(err)))
	}
}
