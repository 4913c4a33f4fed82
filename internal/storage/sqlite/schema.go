package sqlite

// schema mirrors the postgres tables. Dates are stored as YYYY-MM-DD text and
// amounts as fixed two-decimal text so that no value passes through REAL.
const schema = `
CREATE TABLE IF NOT EXISTS accounts (
	id          TEXT PRIMARY KEY,
	code        TEXT NOT NULL UNIQUE,
	description TEXT NOT NULL DEFAULT '',
	parent_id   TEXT REFERENCES accounts(id)
);

CREATE TABLE IF NOT EXISTS counterparties (
	id         TEXT PRIMARY KEY,
	tax_id     TEXT NOT NULL DEFAULT '',
	name       TEXT NOT NULL DEFAULT '',
	account_id TEXT REFERENCES accounts(id)
);

CREATE TABLE IF NOT EXISTS fiscal_periods (
	id         TEXT PRIMARY KEY,
	company_id TEXT NOT NULL,
	start_date TEXT NOT NULL,
	end_date   TEXT NOT NULL,
	open       INTEGER NOT NULL DEFAULT 1,
	CHECK (start_date <= end_date)
);

CREATE INDEX IF NOT EXISTS idx_fiscal_periods_company ON fiscal_periods(company_id, start_date, end_date);

CREATE TABLE IF NOT EXISTS period_sequences (
	period_id   TEXT PRIMARY KEY REFERENCES fiscal_periods(id) ON DELETE CASCADE,
	last_number INTEGER NOT NULL CHECK (last_number >= 0)
);

CREATE TABLE IF NOT EXISTS entries (
	id              TEXT PRIMARY KEY,
	period_id       TEXT NOT NULL REFERENCES fiscal_periods(id),
	number          INTEGER NOT NULL,
	entry_date      TEXT NOT NULL,
	memo            TEXT NOT NULL DEFAULT '',
	counterparty_id TEXT REFERENCES counterparties(id),
	created_at      TEXT NOT NULL,
	UNIQUE (period_id, number)
);

CREATE TABLE IF NOT EXISTS postings (
	id         TEXT PRIMARY KEY,
	entry_id   TEXT NOT NULL REFERENCES entries(id) ON DELETE CASCADE,
	account_id TEXT NOT NULL REFERENCES accounts(id),
	line       INTEGER NOT NULL,
	debit      TEXT NOT NULL DEFAULT '0.00',
	credit     TEXT NOT NULL DEFAULT '0.00',
	memo       TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_postings_entry ON postings(entry_id);
CREATE INDEX IF NOT EXISTS idx_postings_account ON postings(account_id);
`
