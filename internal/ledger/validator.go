package ledger

import (
	"fmt"
	"strings"

	"github.com/sheikh-saqib/double-entry-ledger/internal/models"
	"github.com/shopspring/decimal"
)

// amountPlaces is the number of fractional digits every amount is kept at.
const amountPlaces = 2

// ValidatePostings checks that postings balance exactly and are well formed.
// The balance check always comes first.
func ValidatePostings(postings []models.PostingDraft) error {
	return validatePostings(postings, false)
}

func validatePostings(postings []models.PostingDraft, exclusiveSides bool) error {
	debit, credit := decimal.Zero, decimal.Zero
	for _, p := range postings {
		debit = debit.Add(p.Debit)
		credit = credit.Add(p.Credit)
	}

	if diff := debit.Sub(credit); !diff.IsZero() {
		return &BalanceError{Difference: diff}
	}

	if len(postings) == 0 {
		return &InvalidInputError{Field: "postings", Reason: "at least one posting is required"}
	}

	for i, p := range postings {
		field := fmt.Sprintf("postings[%d]", i)

		if strings.TrimSpace(p.AccountCode) == "" {
			return &InvalidInputError{Field: field + ".account_code", Reason: "account code is required"}
		}
		if err := checkAmount(field+".debit", p.Debit); err != nil {
			return err
		}
		if err := checkAmount(field+".credit", p.Credit); err != nil {
			return err
		}
		if exclusiveSides && !p.Debit.IsZero() && !p.Credit.IsZero() {
			return &InvalidInputError{Field: field, Reason: "a line carries either a debit or a credit, not both"}
		}
	}

	return nil
}

func checkAmount(field string, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return &InvalidInputError{Field: field, Reason: "amount must not be negative"}
	}
	if !amount.Equal(amount.Truncate(amountPlaces)) {
		return &InvalidInputError{Field: field, Reason: "amount has more than two decimal places"}
	}
	return nil
}
