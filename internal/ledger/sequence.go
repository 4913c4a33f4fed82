package ledger

import (
	"context"
	"fmt"

	"github.com/sheikh-saqib/double-entry-ledger/internal/interfaces"
)

// SequenceAllocator hands out entry numbers within a fiscal period.
//
// Next takes the period's sequence lock through the unit of work. The lock is
// held until the unit of work ends, so the number cannot be handed out twice
// before the entry row carrying it is committed.
type SequenceAllocator struct {
	tx interfaces.LedgerTx
}

func NewSequenceAllocator(tx interfaces.LedgerTx) *SequenceAllocator {
	return &SequenceAllocator{tx: tx}
}

func (a *SequenceAllocator) Next(ctx context.Context, periodID string) (int64, error) {
	last, err := a.tx.LockSequence(ctx, periodID)
	if err != nil {
		return 0, storeError("lock period sequence", err)
	}
	if last < 0 {
		return 0, &PersistenceError{Op: "lock period sequence", Err: fmt.Errorf("negative counter %d for period %s", last, periodID)}
	}

	next := last + 1
	if err := a.tx.StoreSequence(ctx, periodID, next); err != nil {
		return 0, storeError("store period sequence", err)
	}
	return next, nil
}
