package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/sheikh-saqib/double-entry-ledger/internal/interfaces"
	"github.com/sheikh-saqib/double-entry-ledger/internal/models"
)

// FiscalPeriodResolver finds the period an entry belongs to.
type FiscalPeriodResolver struct {
	tx interfaces.LedgerTx
	// verifyExplicit makes an explicitly supplied period go through the same
	// existence, date range and open checks as a looked-up one.
	verifyExplicit bool
}

func NewFiscalPeriodResolver(tx interfaces.LedgerTx, verifyExplicit bool) *FiscalPeriodResolver {
	return &FiscalPeriodResolver{tx: tx, verifyExplicit: verifyExplicit}
}

// Resolve returns explicitID when given, otherwise the single period of the
// company containing day.
func (r *FiscalPeriodResolver) Resolve(ctx context.Context, explicitID *string, companyID string, day time.Time) (string, error) {
	day = models.DateOf(day)

	if explicitID != nil {
		if !r.verifyExplicit {
			return *explicitID, nil
		}
		return r.verify(ctx, *explicitID, day)
	}

	periods, err := r.tx.PeriodsContaining(ctx, companyID, day)
	if err != nil {
		return "", storeError("resolve fiscal period", err)
	}

	if len(periods) != 1 {
		return "", &PeriodNotFoundError{Date: day, Matches: len(periods)}
	}
	return periods[0].ID, nil
}

func (r *FiscalPeriodResolver) verify(ctx context.Context, id string, day time.Time) (string, error) {
	p, err := r.tx.PeriodByID(ctx, id)
	if errors.Is(err, interfaces.ErrNotFound) {
		return "", &PeriodNotFoundError{Date: day, PeriodID: id}
	}
	if err != nil {
		return "", storeError("load fiscal period", err)
	}

	if !p.Contains(day) {
		return "", &InvalidInputError{
			Field:  "date",
			Reason: day.Format(time.DateOnly) + " is outside fiscal period " + id,
		}
	}
	if !p.Open {
		return "", &PeriodClosedError{PeriodID: id}
	}
	return p.ID, nil
}

// registerPeriod inserts p unless it overlaps another period of the same company.
func registerPeriod(ctx context.Context, tx interfaces.LedgerTx, p models.FiscalPeriod) error {
	if err := tx.LockCompany(ctx, p.CompanyID); err != nil {
		return storeError("lock company", err)
	}

	existing, err := tx.PeriodsOverlapping(ctx, p.CompanyID, p.Start, p.End)
	if err != nil {
		return storeError("find overlapping periods", err)
	}
	if len(existing) > 0 {
		return &PeriodOverlapError{ExistingID: existing[0].ID}
	}

	if err := tx.InsertPeriod(ctx, p); err != nil {
		return storeError("insert fiscal period", err)
	}
	return nil
}
