package domain

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Direction tells whether a transaction adds to or takes from the balance.
type Direction string

const (
	// Credit increases the balance.
	Credit Direction = "credit"
	// Debit decreases the balance.
	Debit Direction = "debit"
)

// Label returns the display form used in tables and exports.
func (d Direction) Label() string {
	if d == Credit {
		return "Credit"
	}
	return "Debit"
}

// TransactionRecord is one entry of the ledger as fetched from the account API.
// Records are owned by the ledger source and are never mutated here.
type TransactionRecord struct {
	ID           string          `json:"id"`
	Date         time.Time       `json:"date"`
	Amount       decimal.Decimal `json:"amount"` // always a non-negative magnitude
	Direction    Direction       `json:"direction"`
	Description  string          `json:"description"`
	Category     string          `json:"category,omitempty"`     // "" when absent
	Counterparty string          `json:"counterparty,omitempty"` // used for search only
}

// SignedAmount returns the effect of the transaction on the balance.
func (t TransactionRecord) SignedAmount() decimal.Decimal {
	if t.Direction == Credit {
		return t.Amount
	}
	return t.Amount.Neg()
}

// BalancePoint is one point of a reconstructed balance trajectory.
type BalancePoint struct {
	Sequence int             `json:"sequence"`
	Balance  decimal.Decimal `json:"balance"`
	Label    string          `json:"label"`
}

// Snapshot is the state of the ledger as seen by a single fetch.
type Snapshot struct {
	Balance      decimal.Decimal     `json:"balance"`
	Transactions []TransactionRecord `json:"transactions"`
	FetchedAt    time.Time           `json:"fetched_at"`
}

// Budget is a monthly spending limit for one category.
type Budget struct {
	ID       string          `json:"id"`
	Category string          `json:"category"`
	Limit    decimal.Decimal `json:"limit"`
}

// SortMostRecentFirst returns a copy of txs ordered by date, newest first.
// Records sharing a timestamp keep their relative order.
func SortMostRecentFirst(txs []TransactionRecord) []TransactionRecord {
	sorted := make([]TransactionRecord, len(txs))
	copy(sorted, txs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.After(sorted[j].Date)
	})
	return sorted
}
