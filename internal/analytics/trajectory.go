// Package analytics derives dashboard views from a fetched ledger snapshot.
// Every function here is pure and allocates its own output.
package analytics

import (
	"github.com/dvloznov/spendquest/internal/domain"
	"github.com/shopspring/decimal"
)

// DefaultWindowSize is how many recent transactions the balance chart covers.
const DefaultWindowSize = 20

// OpeningLabel labels the balance before the oldest transaction of a window.
const OpeningLabel = "Opening balance"

// Window returns the size most recent records of a most-recent-first list.
// Shorter lists are returned whole; nothing is padded.
func Window(transactions []domain.TransactionRecord, size int) []domain.TransactionRecord {
	if size <= 0 || size > len(transactions) {
		size = len(transactions)
	}
	window := make([]domain.TransactionRecord, size)
	copy(window, transactions[:size])
	return window
}

// Reconstruct rebuilds the balance trajectory across window, which must be
// ordered most-recent-first and end at the current balance.
//
// The first point is the balance before the oldest transaction of the window,
// followed by one point per transaction in chronological order. The last
// point always equals balance. If the window is not a contiguous suffix of the
// full history the intermediate points are only an approximation.
func Reconstruct(balance decimal.Decimal, window []domain.TransactionRecord) []domain.BalancePoint {
	opening := balance
	for _, tx := range window {
		opening = opening.Sub(tx.SignedAmount())
	}

	points := make([]domain.BalancePoint, 0, len(window)+1)
	points = append(points, domain.BalancePoint{
		Sequence: 0,
		Balance:  opening,
		Label:    OpeningLabel,
	})

	running := opening
	for i := len(window) - 1; i >= 0; i-- {
		tx := window[i]
		running = running.Add(tx.SignedAmount())
		points = append(points, domain.BalancePoint{
			Sequence: len(points),
			Balance:  running,
			Label:    pointLabel(tx),
		})
	}

	return points
}

// IsChronological reports whether window is ordered most-recent-first.
func IsChronological(window []domain.TransactionRecord) bool {
	for i := 1; i < len(window); i++ {
		if window[i].Date.After(window[i-1].Date) {
			return false
		}
	}
	return true
}

func pointLabel(tx domain.TransactionRecord) string {
	if tx.Description != "" {
		return tx.Description
	}
	if tx.Date.IsZero() {
		return tx.ID
	}
	return tx.Date.Format(domain.DateLayout)
}
