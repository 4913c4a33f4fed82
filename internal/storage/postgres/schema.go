package postgres

// schema creates the ledger tables. Every statement is idempotent.
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
	start_date DATE NOT NULL,
	end_date   DATE NOT NULL,
	open       BOOLEAN NOT NULL DEFAULT TRUE,
	CHECK (start_date <= end_date)
);

CREATE INDEX IF NOT EXISTS fiscal_periods_company_idx ON fiscal_periods (company_id, start_date, end_date);

CREATE TABLE IF NOT EXISTS period_sequences (
	period_id   TEXT PRIMARY KEY REFERENCES fiscal_periods(id) ON DELETE CASCADE,
	last_number BIGINT NOT NULL CHECK (last_number >= 0)
);

CREATE TABLE IF NOT EXISTS entries (
	id              TEXT PRIMARY KEY,
	period_id       TEXT NOT NULL REFERENCES fiscal_periods(id),
	number          BIGINT NOT NULL,
	entry_date      DATE NOT NULL,
	memo            TEXT NOT NULL DEFAULT '',
	counterparty_id TEXT REFERENCES counterparties(id),
	created_at      TIMESTAMPTZ NOT NULL,
	CONSTRAINT entries_period_number_key UNIQUE (period_id, number)
);

CREATE TABLE IF NOT EXISTS postings (
	id         TEXT PRIMARY KEY,
	entry_id   TEXT NOT NULL REFERENCES entries(id) ON DELETE CASCADE,
	account_id TEXT NOT NULL REFERENCES accounts(id),
	line       INTEGER NOT NULL,
	debit      NUMERIC(14,2) NOT NULL DEFAULT 0 CHECK (debit >= 0),
	credit     NUMERIC(14,2) NOT NULL DEFAULT 0 CHECK (credit >= 0),
	memo       TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS postings_entry_idx ON postings (entry_id);
CREATE INDEX IF NOT EXISTS postings_account_idx ON postings (account_id);
`
