package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the canonical day-precision layout for transaction dates.
const DateLayout = "2006-01-02"

// Source records how a transaction entered the system.
type Source string

// Transaction sources.
const (
	SourceManual Source = "manual"
	SourceCSV    Source = "csv"
	SourceOFX    Source = "ofx"
)

// Valid reports whether s is a known source.
func (s Source) Valid() bool {
	switch s {
	case SourceManual, SourceCSV, SourceOFX:
		return true
	}
	return false
}

// Provenance records who attached a category to a transaction.
type Provenance string

// Category association provenance.
const (
	AddedByUser Provenance = "user"
	AddedByRule Provenance = "rule"
)

// Transaction represents a single owner-scoped financial transaction.
type Transaction struct {
	Date        time.Time             `json:"date"` // Day precision, UTC midnight. Zero means missing.
	CreatedAt   time.Time             `json:"createdAt"`
	ID          string                `json:"id"`
	OwnerID     string                `json:"ownerId"`
	Description string                `json:"description"`
	Source      Source                `json:"source"`
	Amount      decimal.Decimal       `json:"amount"`
	Categories  []TransactionCategory `json:"categories"`
	Flags       FlagSet               `json:"flags"`
	WasApproved bool                  `json:"wasApproved"` // An approved review exists for this transaction.
}

// TransactionCategory links a transaction to a category.
type TransactionCategory struct {
	CreatedAt     time.Time  `json:"createdAt"`
	RuleID        *string    `json:"ruleId,omitempty"`
	TransactionID string     `json:"transactionId"`
	CategoryID    string     `json:"categoryId"`
	AddedBy       Provenance `json:"addedBy"`
}

// IsFlagged reports whether any flag is set.
func (t *Transaction) IsFlagged() bool {
	return len(t.Flags) > 0
}

// HasDate reports whether the transaction carries a date.
func (t *Transaction) HasDate() bool {
	return !t.Date.IsZero()
}

// HasDescription reports whether the description is non-blank.
func (t *Transaction) HasDescription() bool {
	return strings.TrimSpace(t.Description) != ""
}

// CategoryIDs returns the ids of all linked categories.
func (t *Transaction) CategoryIDs() []string {
	ids := make([]string, 0, len(t.Categories))
	for _, c := range t.Categories {
		ids = append(ids, c.CategoryID)
	}
	return ids
}

// HasCategory reports whether categoryID is linked to the transaction.
func (t *Transaction) HasCategory(categoryID string) bool {
	for _, c := range t.Categories {
		if c.CategoryID == categoryID {
			return true
		}
	}
	return false
}

// DuplicateKey identifies transactions that look like the same real-world entry.
// Amounts are compared by value so "10" and "10.00" collide.
func (t *Transaction) DuplicateKey() string {
	date := ""
	if t.HasDate() {
		date = t.Date.Format(DateLayout)
	}
	return t.Amount.String() + "|" + date + "|" + t.Description
}

// TruncateDay normalizes a timestamp to UTC midnight of its calendar day.
func TruncateDay(ts time.Time) time.Time {
	if ts.IsZero() {
		return ts
	}
	y, m, d := ts.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a calendar date in one of the accepted layouts and
// truncates it to the day.
func ParseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	var firstErr error
	for _, layout := range []string{DateLayout, time.RFC3339, time.RFC3339Nano, "01/02/2006"} {
		ts, err := time.Parse(layout, value)
		if err == nil {
			return TruncateDay(ts), nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return time.Time{}, firstErr
}
