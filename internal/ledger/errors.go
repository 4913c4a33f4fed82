package ledger

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ErrorKind groups ledger errors by how a caller should react to them.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	// KindValidation: the request itself is wrong. Fix the input.
	KindValidation
	// KindReference: the request names something that does not exist.
	KindReference
	// KindConflict: a concurrent writer won. Retry the whole call.
	KindConflict
	// KindPersistence: storage failed. Nothing was committed.
	KindPersistence
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindReference:
		return "reference"
	case KindConflict:
		return "conflict"
	case KindPersistence:
		return "persistence"
	default:
		return "unknown"
	}
}

type kinded interface {
	Kind() ErrorKind
}

// KindOf classifies err. Errors not produced by this package are KindUnknown.
func KindOf(err error) ErrorKind {
	var k kinded
	if errors.As(err, &k) {
		return k.Kind()
	}
	return KindUnknown
}

// BalanceError is returned when debits and credits differ.
type BalanceError struct {
	Difference decimal.Decimal // debit minus credit
}

func (e *BalanceError) Error() string {
	return fmt.Sprintf("entry is unbalanced: debit - credit = %s", e.Difference.StringFixed(2))
}

func (e *BalanceError) Kind() ErrorKind { return KindValidation }

type InvalidInputError struct {
	Field  string
	Reason string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *InvalidInputError) Kind() ErrorKind { return KindValidation }

type InvalidTaxRateError struct {
	Rate int64
}

func (e *InvalidTaxRateError) Error() string {
	return fmt.Sprintf("tax rate %d%% is not allowed", e.Rate)
}

func (e *InvalidTaxRateError) Kind() ErrorKind { return KindValidation }

type PeriodOverlapError struct {
	ExistingID string
}

func (e *PeriodOverlapError) Error() string {
	return fmt.Sprintf("fiscal period overlaps existing period %s", e.ExistingID)
}

func (e *PeriodOverlapError) Kind() ErrorKind { return KindValidation }

type PeriodClosedError struct {
	PeriodID string
}

func (e *PeriodClosedError) Error() string {
	return fmt.Sprintf("fiscal period %s is closed", e.PeriodID)
}

func (e *PeriodClosedError) Kind() ErrorKind { return KindValidation }

type AccountNotFoundError struct {
	Code string
}

func (e *AccountNotFoundError) Error() string {
	return fmt.Sprintf("account %q does not exist", e.Code)
}

func (e *AccountNotFoundError) Kind() ErrorKind { return KindReference }

// PeriodNotFoundError is returned when no single fiscal period owns the entry.
// Matches > 1 means several periods claimed the date.
type PeriodNotFoundError struct {
	Date     time.Time
	PeriodID string
	Matches  int
}

func (e *PeriodNotFoundError) Error() string {
	switch {
	case e.PeriodID != "":
		return fmt.Sprintf("fiscal period %s does not exist", e.PeriodID)
	case e.Matches > 1:
		return fmt.Sprintf("%d fiscal periods contain %s", e.Matches, e.Date.Format(time.DateOnly))
	default:
		return fmt.Sprintf("no fiscal period contains %s", e.Date.Format(time.DateOnly))
	}
}

func (e *PeriodNotFoundError) Kind() ErrorKind { return KindReference }

type CounterpartyNotFoundError struct {
	ID string
}

func (e *CounterpartyNotFoundError) Error() string {
	return fmt.Sprintf("counterparty %s does not exist", e.ID)
}

func (e *CounterpartyNotFoundError) Kind() ErrorKind { return KindReference }

type EntryNotFoundError struct {
	ID string
}

func (e *EntryNotFoundError) Error() string {
	return fmt.Sprintf("entry %s does not exist", e.ID)
}

func (e *EntryNotFoundError) Kind() ErrorKind { return KindReference }

// ConflictError means the store detected a concurrent write on the same
// sequence. The call had no effect and may be retried from scratch.
type ConflictError struct {
	Err error
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("concurrent entry creation conflict: %v", e.Err)
}

func (e *ConflictError) Unwrap() error { return e.Err }

func (e *ConflictError) Kind() ErrorKind { return KindConflict }

type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func (e *PersistenceError) Kind() ErrorKind { return KindPersistence }
