// Package sqlite is a single-file LedgerStore backed by mattn/go-sqlite3.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/sheikh-saqib/double-entry-ledger/internal/interfaces"
	"github.com/sheikh-saqib/double-entry-ledger/internal/models"
)

const dateLayout = time.DateOnly

// Store keeps the ledger in one SQLite file.
//
// SQLite allows one writer at a time. Transactions start with BEGIN IMMEDIATE
// and the pool holds a single connection, so units of work run one after the
// other and per-period numbering cannot race.
type Store struct {
	db     *sql.DB
	dbPath string
}

// Open opens (creating if needed) the database at dbPath and initializes the schema.
func Open(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	connStr := fmt.Sprintf("file:%s?_foreign_keys=on&_journal_mode=WAL&_txlock=immediate&_busy_timeout=5000", dbPath)
	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Store{db: db, dbPath: dbPath}, nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Store) Path() string {
	return s.dbPath
}

// WithinTx executes fn within a transaction. If fn returns an error or
// panics the transaction is rolled back, otherwise it is committed.
func (s *Store) WithinTx(ctx context.Context, fn func(tx interfaces.LedgerTx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", classify(err))
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(&sqliteTx{tx: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("transaction error: %w, rollback error: %v", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", classify(err))
	}
	return nil
}

func (s *Store) GetEntry(ctx context.Context, id string) (models.LedgerEntry, error) {
	return loadEntry(ctx, s.db, id)
}

func (s *Store) ListEntries(ctx context.Context, periodID string) ([]models.LedgerEntry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM entries WHERE period_id = ? ORDER BY number`, periodID)
	if err != nil {
		return nil, err
	}

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	entries := make([]models.LedgerEntry, 0, len(ids))
	for _, id := range ids {
		entry, err := loadEntry(ctx, s.db, id)
		if errors.Is(err, interfaces.ErrNotFound) {
			continue // deleted since the id scan
		}
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (s *Store) PostingsByAccountCode(ctx context.Context, code string) ([]models.Posting, error) {
	var accountID string
	err := s.db.QueryRowContext(ctx, `SELECT id FROM accounts WHERE code = ?`, code).Scan(&accountID)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("account %s: %w", code, interfaces.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	const query = `SELECT p.id, p.entry_id, p.account_id, a.code, p.debit, p.credit, p.memo
	FROM postings p JOIN accounts a ON a.id = p.account_id
	WHERE p.account_id = ?
	ORDER BY p.entry_id, p.line`
	return queryPostings(ctx, s.db, query, accountID)
}

// DeleteEntry removes the entry; postings follow through ON DELETE CASCADE.
func (s *Store) DeleteEntry(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM entries WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete entry: %w", err)
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

func (s *Store) CreateAccount(ctx context.Context, acc models.Account) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO accounts (id, code, description, parent_id) VALUES (?, ?, ?, ?)`,
		acc.ID, acc.Code, acc.Description, acc.ParentID,
	)
	if err != nil {
		return fmt.Errorf("failed to create account %s: %w", acc.Code, err)
	}
	return nil
}

func (s *Store) CreateCounterparty(ctx context.Context, cp models.Counterparty) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO counterparties (id, tax_id, name, account_id) VALUES (?, ?, ?, ?)`,
		cp.ID, cp.TaxID, cp.Name, cp.AccountID,
	)
	if err != nil {
		return fmt.Errorf("failed to create counterparty %s: %w", cp.ID, err)
	}
	return nil
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type sqliteTx struct {
	tx *sql.Tx
}

func (t *sqliteTx) AccountIDByCode(ctx context.Context, code string) (string, error) {
	var id string
	err := t.tx.QueryRowContext(ctx, `SELECT id FROM accounts WHERE code = ?`, code).Scan(&id)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("account %s: %w", code, interfaces.ErrNotFound)
	}
	return id, err
}

func (t *sqliteTx) CounterpartyExists(ctx context.Context, id string) (bool, error) {
	var count int
	err := t.tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM counterparties WHERE id = ?`, id).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

const periodColumns = `id, company_id, start_date, end_date, open`

func (t *sqliteTx) PeriodByID(ctx context.Context, id string) (models.FiscalPeriod, error) {
	periods, err := t.queryPeriods(ctx, `SELECT `+periodColumns+` FROM fiscal_periods WHERE id = ?`, id)
	if err != nil {
		return models.FiscalPeriod{}, err
	}
	if len(periods) == 0 {
		return models.FiscalPeriod{}, fmt.Errorf("fiscal period %s: %w", id, interfaces.ErrNotFound)
	}
	return periods[0], nil
}

func (t *sqliteTx) PeriodsContaining(ctx context.Context, companyID string, day time.Time) ([]models.FiscalPeriod, error) {
	const query = `SELECT ` + periodColumns + ` FROM fiscal_periods
	WHERE start_date <= ?1 AND end_date >= ?1 AND (?2 = '' OR company_id = ?2)`

	return t.queryPeriods(ctx, query, day.Format(dateLayout), companyID)
}

func (t *sqliteTx) PeriodsOverlapping(ctx context.Context, companyID string, start, end time.Time) ([]models.FiscalPeriod, error) {
	const query = `SELECT ` + periodColumns + ` FROM fiscal_periods
	WHERE company_id = ? AND start_date <= ? AND end_date >= ?`

	return t.queryPeriods(ctx, query, companyID, end.Format(dateLayout), start.Format(dateLayout))
}

func (t *sqliteTx) queryPeriods(ctx context.Context, query string, args ...any) ([]models.FiscalPeriod, error) {
	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var periods []models.FiscalPeriod
	for rows.Next() {
		var (
			p          models.FiscalPeriod
			start, end string
		)
		if err := rows.Scan(&p.ID, &p.CompanyID, &start, &end, &p.Open); err != nil {
			return nil, err
		}
		if p.Start, err = time.Parse(dateLayout, start); err != nil {
			return nil, fmt.Errorf("fiscal period %s start: %w", p.ID, err)
		}
		if p.End, err = time.Parse(dateLayout, end); err != nil {
			return nil, fmt.Errorf("fiscal period %s end: %w", p.ID, err)
		}
		periods = append(periods, p)
	}
	return periods, rows.Err()
}

func (t *sqliteTx) InsertPeriod(ctx context.Context, p models.FiscalPeriod) error {
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO fiscal_periods (id, company_id, start_date, end_date, open) VALUES (?, ?, ?, ?, ?)`,
		p.ID, p.CompanyID, p.Start.Format(dateLayout), p.End.Format(dateLayout), p.Open,
	)
	return err
}

// LockCompany is a no-op: BEGIN IMMEDIATE already excludes other writers.
func (t *sqliteTx) LockCompany(ctx context.Context, companyID string) error {
	return nil
}

func (t *sqliteTx) LockSequence(ctx context.Context, periodID string) (int64, error) {
	const seed = `INSERT OR IGNORE INTO period_sequences (period_id, last_number)
	SELECT ?1, COALESCE(MAX(number), 0) FROM entries WHERE period_id = ?1`

	if _, err := t.tx.ExecContext(ctx, seed, periodID); err != nil {
		return 0, classify(err)
	}

	var last int64
	err := t.tx.QueryRowContext(ctx, `SELECT last_number FROM period_sequences WHERE period_id = ?`, periodID).Scan(&last)
	if err != nil {
		return 0, classify(err)
	}
	return last, nil
}

func (t *sqliteTx) StoreSequence(ctx context.Context, periodID string, number int64) error {
	_, err := t.tx.ExecContext(ctx, `UPDATE period_sequences SET last_number = ? WHERE period_id = ?`, number, periodID)
	return classify(err)
}

func (t *sqliteTx) InsertEntry(ctx context.Context, entry models.LedgerEntry) error {
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO entries (id, period_id, number, entry_date, memo, counterparty_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.PeriodID, entry.Number, entry.Date.Format(dateLayout), entry.Memo,
		entry.CounterpartyID, entry.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return classify(err)
	}

	for i, p := range entry.Postings {
		_, err := t.tx.ExecContext(ctx,
			`INSERT INTO postings (id, entry_id, account_id, line, debit, credit, memo) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			p.ID, entry.ID, p.AccountID, i, p.Debit.StringFixed(2), p.Credit.StringFixed(2), p.Memo,
		)
		if err != nil {
			return classify(err)
		}
	}
	return nil
}

func (t *sqliteTx) EntryByID(ctx context.Context, id string) (models.LedgerEntry, error) {
	return loadEntry(ctx, t.tx, id)
}

func loadEntry(ctx context.Context, q queryer, id string) (models.LedgerEntry, error) {
	const query = `SELECT id, period_id, number, entry_date, memo, counterparty_id, created_at
	FROM entries WHERE id = ?`

	var (
		entry          models.LedgerEntry
		date, created  string
		counterpartyID sql.NullString
	)
	err := q.QueryRowContext(ctx, query, id).Scan(
		&entry.ID, &entry.PeriodID, &entry.Number, &date, &entry.Memo, &counterpartyID, &created,
	)
	if err == sql.ErrNoRows {
		return models.LedgerEntry{}, fmt.Errorf("entry %s: %w", id, interfaces.ErrNotFound)
	}
	if err != nil {
		return models.LedgerEntry{}, err
	}

	if entry.Date, err = time.Parse(dateLayout, date); err != nil {
		return models.LedgerEntry{}, fmt.Errorf("entry %s date: %w", id, err)
	}
	if entry.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
		return models.LedgerEntry{}, fmt.Errorf("entry %s created_at: %w", id, err)
	}
	if counterpartyID.Valid {
		entry.CounterpartyID = &counterpartyID.String
	}

	const postingsQuery = `SELECT p.id, p.entry_id, p.account_id, a.code, p.debit, p.credit, p.memo
	FROM postings p JOIN accounts a ON a.id = p.account_id
	WHERE p.entry_id = ?
	ORDER BY p.line`
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
		var p models.Posting
		if err := rows.Scan(&p.ID, &p.EntryID, &p.AccountID, &p.AccountCode, &p.Debit, &p.Credit, &p.Memo); err != nil {
			return nil, err
		}
		postings = append(postings, p)
	}
	return postings, rows.Err()
}

// classify marks lock contention and unique violations with interfaces.ErrConflict,
// keeping the driver error in the chain.
func classify(err error) error {
	if err == nil {
		return nil
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		switch {
		case sqliteErr.Code == sqlite3.ErrBusy, sqliteErr.Code == sqlite3.ErrLocked:
			return fmt.Errorf("%w: %w", interfaces.ErrConflict, err)
		case sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique:
			return fmt.Errorf("%w: %w", interfaces.ErrConflict, err)
		}
	}
	return err
}

var (
	_ interfaces.LedgerStore = (*Store)(nil)
	_ interfaces.LedgerTx    = (*sqliteTx)(nil)
)
