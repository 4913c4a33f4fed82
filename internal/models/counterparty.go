package models

// Counterparty is a customer or supplier that an entry can be linked to.
type Counterparty struct {
	ID        string
	TaxID     string
	Name      string
	AccountID *string
}
