package ledger

import (
	"context"
	"errors"

	"github.com/sheikh-saqib/double-entry-ledger/internal/interfaces"
)

// AccountDirectory resolves account codes to ids for a single unit of work.
// Each code hits the store at most once.
type AccountDirectory struct {
	tx    interfaces.LedgerTx
	cache map[string]string
}

func NewAccountDirectory(tx interfaces.LedgerTx) *AccountDirectory {
	return &AccountDirectory{
		tx:    tx,
		cache: make(map[string]string),
	}
}

// Resolve returns the id of the account with exactly this code.
func (d *AccountDirectory) Resolve(ctx context.Context, code string) (string, error) {
	if id, ok := d.cache[code]; ok {
		return id, nil
	}

	id, err := d.tx.AccountIDByCode(ctx, code)
	if errors.Is(err, interfaces.ErrNotFound) {
		return "", &AccountNotFoundError{Code: code}
	}
	if err != nil {
		return "", storeError("resolve account", err)
	}

	d.cache[code] = id
	return id, nil
}

// storeError maps an error coming out of a store onto the ledger error set.
func storeError(op string, err error) error {
	if err == nil {
		return nil
	}
	if KindOf(err) != KindUnknown {
		return err
	}
	if errors.Is(err, interfaces.ErrConflict) {
		return &ConflictError{Err: err}
	}
	return &PersistenceError{Op: op, Err: err}
}
