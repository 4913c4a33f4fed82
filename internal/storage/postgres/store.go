package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	interfaces "github.com/sheikh-saqib/double-entry-ledger/internal/interfaces" // interface LedgerStore
	"github.com/sheikh-saqib/double-entry-ledger/internal/models"
)

// SQLSTATE codes that mean another transaction won a race.
const (
	codeUniqueViolation      = "23505"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
)

type PostgresLedgerStore struct {
	db *sql.DB
}

func NewPostgresLedgerStore(db *sql.DB) *PostgresLedgerStore {
	return &PostgresLedgerStore{
		db: db,
	}
}

// Open connects with the lib/pq driver and checks the connection.
func Open(ctx context.Context, dsn string) (*PostgresLedgerStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return NewPostgresLedgerStore(db), nil
}

func (p *PostgresLedgerStore) Migrate(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

func (p *PostgresLedgerStore) Close() error {
	return p.db.Close()
}

// WithinTx runs fn in a READ COMMITTED transaction. Numbering is serialized
// by the row lock taken in LockSequence, not by the isolation level.
func (p *PostgresLedgerStore) WithinTx(ctx context.Context, fn func(tx interfaces.LedgerTx) error) (err error) {
	dbTx, err := p.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", classify(err))
	}

	defer func() {
		if r := recover(); r != nil {
			dbTx.Rollback()
			panic(r)
		}
	}()

	if err = fn(&pgTx{tx: dbTx}); err != nil {
		if rbErr := dbTx.Rollback(); rbErr != nil {
			return fmt.Errorf("transaction error: %w, rollback error: %v", err, rbErr)
		}
		return err
	}

	if err = dbTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", classify(err))
	}
	return nil
}

// readTx runs fn on a read-only snapshot so multi-statement reads agree.
func (p *PostgresLedgerStore) readTx(ctx context.Context, fn func(q queryer) error) error {
	dbTx, err := p.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return err
	}
	defer dbTx.Rollback()

	if err := fn(dbTx); err != nil {
		return err
	}
	return dbTx.Commit()
}

func (p *PostgresLedgerStore) GetEntry(ctx context.Context, id string) (models.LedgerEntry, error) {
	var entry models.LedgerEntry
	err := p.readTx(ctx, func(q queryer) error {
		var err error
		entry, err = loadEntry(ctx, q, id)
		return err
	})
	return entry, err
}

func (p *PostgresLedgerStore) ListEntries(ctx context.Context, periodID string) ([]models.LedgerEntry, error) {
	const entriesQuery = `SELECT id, period_id, number, entry_date, memo, counterparty_id, created_at
	FROM entries WHERE period_id = $1 ORDER BY number`
	const postingsQuery = `SELECT p.id, p.entry_id, p.account_id, a.code, p.debit, p.credit, p.memo
	FROM postings p
	JOIN entries e ON e.id = p.entry_id
	JOIN accounts a ON a.id = p.account_id
	WHERE e.period_id = $1
	ORDER BY e.number, p.line`

	var entries []models.LedgerEntry
	err := p.readTx(ctx, func(q queryer) error {
		rows, err := q.QueryContext(ctx, entriesQuery, periodID)
		if err != nil {
			return err
		}
		defer rows.Close()

		index := make(map[string]int)
		for rows.Next() {
			entry, err := scanEntry(rows)
			if err != nil {
				return err
			}
			index[entry.ID] = len(entries)
			entries = append(entries, entry)
		}
		if err := rows.Err(); err != nil {
			return err
		}

		postings, err := queryPostings(ctx, q, postingsQuery, periodID)
		if err != nil {
			return err
		}
		for _, posting := range postings {
			if i, ok := index[posting.EntryID]; ok {
				entries[i].Postings = append(entries[i].Postings, posting)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []models.LedgerEntry{}
	}
	return entries, nil
}

func (p *PostgresLedgerStore) PostingsByAccountCode(ctx context.Context, code string) ([]models.Posting, error) {
	const query = `SELECT p.id, p.entry_id, p.account_id, a.code, p.debit, p.credit, p.memo
	FROM postings p
	JOIN accounts a ON a.id = p.account_id
	WHERE a.code = $1
	ORDER BY p.entry_id, p.line`

	var postings []models.Posting
	err := p.readTx(ctx, func(q queryer) error {
		var exists int
		err := q.QueryRowContext(ctx, `SELECT 1 FROM accounts WHERE code = $1`, code).Scan(&exists)
		if err == sql.ErrNoRows {
			return fmt.Errorf("account %s: %w", code, interfaces.ErrNotFound)
		}
		if err != nil {
			return err
		}

		postings, err = queryPostings(ctx, q, query, code)
		return err
	})
	return postings, err
}

func (p *PostgresLedgerStore) DeleteEntry(ctx context.Context, id string) error {
	res, err := p.db.ExecContext(ctx, `DELETE FROM entries WHERE id = $1`, id)
	if err != nil {
		return classify(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("entry %s: %w", id, interfaces.ErrNotFound)
	}
	return nil
}

func (p *PostgresLedgerStore) CreateAccount(ctx context.Context, acc models.Account) error {
	const query = `INSERT INTO accounts (id, code, description, parent_id) VALUES ($1, $2, $3, $4)`

	_, err := p.db.ExecContext(ctx, query, acc.ID, acc.Code, acc.Description, acc.ParentID)
	return err
}

func (p *PostgresLedgerStore) CreateCounterparty(ctx context.Context, cp models.Counterparty) error {
	const query = `INSERT INTO counterparties (id, tax_id, name, account_id) VALUES ($1, $2, $3, $4)`

	_, err := p.db.ExecContext(ctx, query, cp.ID, cp.TaxID, cp.Name, cp.AccountID)
	return err
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type pgTx struct {
	tx *sql.Tx
}

func (t *pgTx) AccountIDByCode(ctx context.Context, code string) (string, error) {
	var id string
	err := t.tx.QueryRowContext(ctx, `SELECT id FROM accounts WHERE code = $1`, code).Scan(&id)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("account %s: %w", code, interfaces.ErrNotFound)
	}
	return id, err
}

func (t *pgTx) CounterpartyExists(ctx context.Context, id string) (bool, error) {
	var exists int
	err := t.tx.QueryRowContext(ctx, `SELECT 1 FROM counterparties WHERE id = $1`, id).Scan(&exists)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

const periodColumns = `id, company_id, start_date, end_date, open`

func (t *pgTx) PeriodByID(ctx context.Context, id string) (models.FiscalPeriod, error) {
	row := t.tx.QueryRowContext(ctx, `SELECT `+periodColumns+` FROM fiscal_periods WHERE id = $1`, id)

	var p models.FiscalPeriod
	err := row.Scan(&p.ID, &p.CompanyID, &p.Start, &p.End, &p.Open)
	if err == sql.ErrNoRows {
		return models.FiscalPeriod{}, fmt.Errorf("fiscal period %s: %w", id, interfaces.ErrNotFound)
	}
	return p, err
}

func (t *pgTx) PeriodsContaining(ctx context.Context, companyID string, day time.Time) ([]models.FiscalPeriod, error) {
	const query = `SELECT ` + periodColumns + ` FROM fiscal_periods
	WHERE start_date <= $1 AND end_date >= $1 AND ($2 = '' OR company_id = $2)`

	return t.queryPeriods(ctx, query, models.DateOf(day), companyID)
}

func (t *pgTx) PeriodsOverlapping(ctx context.Context, companyID string, start, end time.Time) ([]models.FiscalPeriod, error) {
	const query = `SELECT ` + periodColumns + ` FROM fiscal_periods
	WHERE company_id = $1 AND start_date <= $3 AND end_date >= $2`

	return t.queryPeriods(ctx, query, companyID, models.DateOf(start), models.DateOf(end))
}

func (t *pgTx) queryPeriods(ctx context.Context, query string, args ...any) ([]models.FiscalPeriod, error) {
	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var periods []models.FiscalPeriod
	for rows.Next() {
		var p models.FiscalPeriod
		if err := rows.Scan(&p.ID, &p.CompanyID, &p.Start, &p.End, &p.Open); err != nil {
			return nil, err
		}
		periods = append(periods, p)
	}
	return periods, rows.Err()
}

func (t *pgTx) InsertPeriod(ctx context.Context, p models.FiscalPeriod) error {
	const query = `INSERT INTO fiscal_periods (id, company_id, start_date, end_date, open) VALUES ($1, $2, $3, $4, $5)`

	_, err := t.tx.ExecContext(ctx, query, p.ID, p.CompanyID, models.DateOf(p.Start), models.DateOf(p.End), p.Open)
	return classify(err)
}

func (t *pgTx) LockCompany(ctx context.Context, companyID string) error {
	_, err := t.tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, "fiscal_periods:"+companyID)
	return classify(err)
}

func (t *pgTx) LockSequence(ctx context.Context, periodID string) (int64, error) {
	// The counter row is created from the current maximum the first time a
	// period is numbered. Concurrent creators wait on each other's insert.
	const seed = `INSERT INTO period_sequences (period_id, last_number)
	SELECT $1, COALESCE(MAX(number), 0) FROM entries WHERE period_id = $1
	ON CONFLICT (period_id) DO NOTHING`
	const lock = `SELECT last_number FROM period_sequences WHERE period_id = $1 FOR UPDATE`

	if _, err := t.tx.ExecContext(ctx, seed, periodID); err != nil {
		return 0, classify(err)
	}

	var last int64
	if err := t.tx.QueryRowContext(ctx, lock, periodID).Scan(&last); err != nil {
		return 0, classify(err)
	}
	return last, nil
}

func (t *pgTx) StoreSequence(ctx context.Context, periodID string, number int64) error {
	const query = `UPDATE period_sequences SET last_number = $2 WHERE period_id = $1`

	_, err := t.tx.ExecContext(ctx, query, periodID, number)
	return classify(err)
}

func (t *pgTx) InsertEntry(ctx context.Context, entry models.LedgerEntry) error {
	const entryQuery = `INSERT INTO entries (id, period_id, number, entry_date, memo, counterparty_id, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)`
	const postingQuery = `INSERT INTO postings (id, entry_id, account_id, line, debit, credit, memo)
	VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := t.tx.ExecContext(ctx, entryQuery,
		entry.ID, entry.PeriodID, entry.Number, models.DateOf(entry.Date), entry.Memo, entry.CounterpartyID, entry.CreatedAt)
	if err != nil {
		return classify(err)
	}

	for i, posting := range entry.Postings {
		_, err := t.tx.ExecContext(ctx, postingQuery,
			posting.ID, entry.ID, posting.AccountID, i, posting.Debit.StringFixed(2), posting.Credit.StringFixed(2), posting.Memo)
		if err != nil {
			return classify(err)
		}
	}
	return nil
}

func (t *pgTx) EntryByID(ctx context.Context, id string) (models.LedgerEntry, error) {
	return loadEntry(ctx, t.tx, id)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (models.LedgerEntry, error) {
	var (
		entry          models.LedgerEntry
		counterpartyID sql.NullString
	)
	err := row.Scan(&entry.ID, &entry.PeriodID, &entry.Number, &entry.Date, &entry.Memo, &counterpartyID, &entry.CreatedAt)
	if err != nil {
		return models.LedgerEntry{}, err
	}
	if counterpartyID.Valid {
		entry.CounterpartyID = &counterpartyID.String
	}
	entry.Date = models.DateOf(entry.Date)
	return entry, nil
}

func loadEntry(ctx context.Context, q queryer, id string) (models.LedgerEntry, error) {
	const entryQuery = `SELECT id, period_id, number, entry_date, memo, counterparty_id, created_at
	FROM entries WHERE id = $1`
	const postingsQuery = `SELECT p.id, p.entry_id, p.account_id, a.code, p.debit, p.credit, p.memo
	FROM postings p
	JOIN accounts a ON a.id = p.account_id
	WHERE p.entry_id = $1
	ORDER BY p.line`

	entry, err := scanEntry(q.QueryRowContext(ctx, entryQuery, id))
	if err == sql.ErrNoRows {
		return models.LedgerEntry{}, fmt.Errorf("entry %s: %w", id, interfaces.ErrNotFound)
	}
	if err != nil {
		return models.LedgerEntry{}, err
	}

	entry.Postings, err = queryPostings(ctx, q, postingsQuery, id)
	if err != nil {
		return models.LedgerEntry{}, err
	}
	return entry, nil
}

func queryPostings(ctx context.Context, q queryer, query string, args ...any) ([]models.Posting, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	postings := []models.Posting{}
	for rows.Next() {
		var posting models.Posting
		err := rows.Scan(
			&posting.ID,
			&posting.EntryID,
			&posting.AccountID,
			&posting.AccountCode,
			&posting.Debit,
			&posting.Credit,
			&posting.Memo,
		)
		if err != nil {
			return nil, err
		}
		postings = append(postings, posting)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return postings, nil
}

// classify marks driver errors caused by a concurrent writer with
// interfaces.ErrConflict, keeping the original error in the chain.
func classify(err error) error {
	if err == nil {
		return nil
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch string(pqErr.Code) {
		case codeUniqueViolation, codeSerializationFailure, codeDeadlockDetected:
			return fmt.Errorf("%w: %w", interfaces.ErrConflict, err)
		}
	}
	return err
}

var _ interfaces.LedgerStore = (*PostgresLedgerStore)(nil)

var _ interfaces.LedgerTx = (*pgTx)(nil)
