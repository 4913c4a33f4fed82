package models

import "time"

// FiscalPeriod is a date range owned by a company in which entries are recorded.
// Start and End are both inclusive.
type FiscalPeriod struct {
	ID        string
	CompanyID string
	Start     time.Time
	End       time.Time
	Open      bool
}

// Contains reports whether day falls inside the period.
func (p FiscalPeriod) Contains(day time.Time) bool {
	day = DateOf(day)
	return !day.Before(DateOf(p.Start)) && !day.After(DateOf(p.End))
}

// Overlaps reports whether the two ranges share at least one day.
func (p FiscalPeriod) Overlaps(other FiscalPeriod) bool {
	return !DateOf(p.Start).After(DateOf(other.End)) && !DateOf(other.Start).After(DateOf(p.End))
}
