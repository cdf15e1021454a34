package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the calendar date format exchanged with the extraction service.
const DateLayout = "2006-01-02"

// ErrIncompleteDraft is returned when a draft cannot be submitted yet.
var ErrIncompleteDraft = errors.New("draft is incomplete")

// DraftTransaction is an unconfirmed transaction being filled in by the user
// or by receipt extraction. Every field stays nil until it is known.
type DraftTransaction struct {
	Amount      *decimal.Decimal `json:"amount"`
	Direction   *Direction       `json:"direction"`
	Date        *string          `json:"date"` // YYYY-MM-DD
	Description *string          `json:"description"`
	Category    *string          `json:"category"`
}

// Merge returns a copy of d with every non-nil field of patch applied.
func (d DraftTransaction) Merge(patch DraftTransaction) DraftTransaction {
	if patch.Amount != nil {
		d.Amount = patch.Amount
	}
	if patch.Direction != nil {
		d.Direction = patch.Direction
	}
	if patch.Date != nil {
		d.Date = patch.Date
	}
	if patch.Description != nil {
		d.Description = patch.Description
	}
	if patch.Category != nil {
		d.Category = patch.Category
	}
	return d
}

// IsEmpty reports whether no field of the draft has been set.
func (d DraftTransaction) IsEmpty() bool {
	return d.Amount == nil && d.Direction == nil && d.Date == nil &&
		d.Description == nil && d.Category == nil
}

// NewTransaction is the payload sent to the ledger to record a transaction.
type NewTransaction struct {
	Amount      decimal.Decimal
	Direction   Direction
	Date        *time.Time
	Description string
	Category    string
}

// ToNewTransaction validates a confirmed draft. Direction defaults to Debit
// and the date is optional, leaving the ledger to stamp it.
func (d DraftTransaction) ToNewTransaction() (NewTransaction, error) {
	if d.Amount == nil {
		return NewTransaction{}, fmt.Errorf("%w: amount is required", ErrIncompleteDraft)
	}
	if !d.Amount.IsPositive() {
		return NewTransaction{}, fmt.Errorf("%w: amount must be greater than zero, got %s", ErrIncompleteDraft, d.Amount)
	}

	tx := NewTransaction{
		Amount:    *d.Amount,
		Direction: Debit,
	}
	if d.Direction != nil && *d.Direction == Credit {
		tx.Direction = Credit
	}
	if d.Description != nil {
		tx.Description = strings.TrimSpace(*d.Description)
	}
	if d.Category != nil {
		tx.Category = strings.TrimSpace(*d.Category)
	}
	if d.Date != nil && strings.TrimSpace(*d.Date) != "" {
		date, err := time.Parse(DateLayout, strings.TrimSpace(*d.Date))
		if err != nil {
			return NewTransaction{}, fmt.Errorf("%w: invalid date %q", ErrIncompleteDraft, *d.Date)
		}
		tx.Date = &date
	}

	return tx, nil
}
