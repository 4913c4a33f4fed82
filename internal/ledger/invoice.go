package ledger

import (
	"context"
	"fmt"
	"strings"

	"github.com/sheikh-saqib/double-entry-ledger/internal/models"
	"github.com/shopspring/decimal"
)

var oneHundred = decimal.NewFromInt(100)

// DefaultTaxRules applies to every company when no other source is configured.
var DefaultTaxRules = StaticTaxRules{
	InputTaxAccount:  "472",
	OutputTaxAccount: "477",
	Rates:            []int64{4, 10, 21},
}

// TaxRulesSource returns the tax accounts and rates that apply to a company.
type TaxRulesSource interface {
	RulesFor(companyID string) (models.TaxRules, error)
}

// StaticTaxRules applies the same rules to every company.
type StaticTaxRules models.TaxRules

func (s StaticTaxRules) RulesFor(string) (models.TaxRules, error) {
	return models.TaxRules(s), nil
}

// ComputeTax returns base * rate / 100 rounded half away from zero to cents.
func ComputeTax(base decimal.Decimal, rate int64) decimal.Decimal {
	return base.Mul(decimal.NewFromInt(rate)).Div(oneHundred).Round(amountPlaces)
}

// BuildInvoicePostings lays out the three lines of an invoice entry.
func BuildInvoicePostings(inv models.InvoiceDraft, rules models.TaxRules) ([]models.PostingDraft, error) {
	if !inv.Base.IsPositive() {
		return nil, &InvalidInputError{Field: "base", Reason: "taxable base must be greater than zero"}
	}
	if err := checkAmount("base", inv.Base); err != nil {
		return nil, err
	}
	if !rules.AllowsRate(inv.TaxRate) {
		return nil, &InvalidTaxRateError{Rate: inv.TaxRate}
	}
	if strings.TrimSpace(inv.AccountCode) == "" {
		return nil, &InvalidInputError{Field: "account_code", Reason: "income or expense account is required"}
	}
	if strings.TrimSpace(inv.CounterpartyAccountCode) == "" {
		return nil, &InvalidInputError{Field: "counterparty_account_code", Reason: "counterparty account is required"}
	}

	tax := ComputeTax(inv.Base, inv.TaxRate)
	total := inv.Base.Add(tax)

	baseMemo := "Base " + inv.Memo
	taxMemo := fmt.Sprintf("Tax %d%% %s", inv.TaxRate, inv.Memo)
	totalMemo := "Total " + inv.Memo

	switch inv.Direction {
	case models.DirectionExpense:
		return []models.PostingDraft{
			{AccountCode: inv.AccountCode, Debit: inv.Base, Credit: decimal.Zero, Memo: baseMemo},
			{AccountCode: rules.InputTaxAccount, Debit: tax, Credit: decimal.Zero, Memo: taxMemo},
			{AccountCode: inv.CounterpartyAccountCode, Debit: decimal.Zero, Credit: total, Memo: totalMemo},
		}, nil
	case models.DirectionIncome:
		return []models.PostingDraft{
			{AccountCode: inv.CounterpartyAccountCode, Debit: total, Credit: decimal.Zero, Memo: totalMemo},
			{AccountCode: inv.AccountCode, Debit: decimal.Zero, Credit: inv.Base, Memo: baseMemo},
			{AccountCode: rules.OutputTaxAccount, Debit: decimal.Zero, Credit: tax, Memo: taxMemo},
		}, nil
	default:
		return nil, &InvalidInputError{Field: "direction", Reason: fmt.Sprintf("unknown direction %q", inv.Direction)}
	}
}

// CreateInvoiceEntry records an invoice as a balanced entry linked to its
// counterparty. The link is written in the same unit of work as the entry.
func (l *Ledger) CreateInvoiceEntry(ctx context.Context, inv models.InvoiceDraft) (models.LedgerEntry, error) {
	if strings.TrimSpace(inv.CounterpartyID) == "" {
		return models.LedgerEntry{}, &InvalidInputError{Field: "counterparty_id", Reason: "counterparty is required"}
	}

	rules, err := l.taxRules.RulesFor(inv.CompanyID)
	if err != nil {
		return models.LedgerEntry{}, &InvalidInputError{Field: "company_id", Reason: err.Error()}
	}

	postings, err := BuildInvoicePostings(inv, rules)
	if err != nil {
		return models.LedgerEntry{}, err
	}

	counterpartyID := inv.CounterpartyID
	return l.CreateEntry(ctx, models.EntryDraft{
		CompanyID:      inv.CompanyID,
		Date:           inv.Date,
		Memo:           inv.Memo,
		PeriodID:       inv.PeriodID,
		CounterpartyID: &counterpartyID,
		Postings:       postings,
	})
}
