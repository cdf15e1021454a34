package ledgerapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/dvloznov/spendquest/internal/domain"
	"github.com/shopspring/decimal"
)

type balanceResponse struct {
	Balance decimal.Decimal `json:"balance"`
}

type transactionsResponse struct {
	Transactions []transactionDTO `json:"transactions"`
}

type transactionDTO struct {
	ID           string          `json:"_id"`
	Date         timestamp       `json:"date"`
	Amount       decimal.Decimal `json:"amount"`
	Description  string          `json:"description"`
	IsReceived   bool            `json:"isReceived"`
	Category     string          `json:"category"`
	Counterparty string          `json:"counterparty"`
}

type budgetDTO struct {
	ID       string          `json:"_id"`
	Category string          `json:"category"`
	Limit    decimal.Decimal `json:"limit"`
}

type createTransactionRequest struct {
	Amount      json.Number `json:"amount"`
	Description string      `json:"description"`
	IsReceived  bool        `json:"isReceived"`
	Category    string      `json:"category,omitempty"`
	Date        string      `json:"date,omitempty"`
}

// toRecord converts the wire form. Amounts are stored as magnitudes; the
// direction comes from isReceived alone. Dates sent without a zone are read
// in loc.
func (t transactionDTO) toRecord(loc *time.Location) domain.TransactionRecord {
	direction := domain.Debit
	if t.IsReceived {
		direction = domain.Credit
	}
	return domain.TransactionRecord{
		ID:           t.ID,
		Date:         t.Date.in(loc),
		Amount:       t.Amount.Abs(),
		Direction:    direction,
		Description:  t.Description,
		Category:     strings.TrimSpace(t.Category),
		Counterparty: t.Counterparty,
	}
}

func (b budgetDTO) toBudget() domain.Budget {
	return domain.Budget{ID: b.ID, Category: b.Category, Limit: b.Limit}
}

func newCreateTransactionRequest(tx domain.NewTransaction) createTransactionRequest {
	req := createTransactionRequest{
		Amount:      json.Number(tx.Amount.String()),
		Description: tx.Description,
		IsReceived:  tx.Direction == domain.Credit,
		Category:    tx.Category,
	}
	if tx.Date != nil {
		req.Date = tx.Date.Format(domain.DateLayout)
	}
	return req
}

// timestamp accepts ISO 8601 strings, bare dates and Unix epochs in
// seconds or milliseconds.
type timestamp struct {
	time.Time
	floating bool // parsed from a layout without a zone
}

// epochMillisThreshold separates second and millisecond epochs; 1e11 seconds
// is far in the future while 1e11 milliseconds is March 1973.
const epochMillisThreshold = 100_000_000_000

var floatingLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	domain.DateLayout,
}

// in returns the instant, placing a floating wall-clock time in loc.
func (t timestamp) in(loc *time.Location) time.Time {
	if !t.floating || loc == nil {
		return t.Time
	}
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), loc)
}

func (t *timestamp) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("timestamp: %w", err)
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return nil
		}
		if parsed, err := time.Parse(time.RFC3339Nano, s); err == nil {
			*t = timestamp{Time: parsed}
			return nil
		}
		for _, layout := range floatingLayouts {
			if parsed, err := time.Parse(layout, s); err == nil {
				*t = timestamp{Time: parsed, floating: true}
				return nil
			}
		}
		return fmt.Errorf("timestamp: unsupported format %q", s)
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	epoch, err := n.Int64()
	if err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	if epoch >= epochMillisThreshold || epoch <= -epochMillisThreshold {
		*t = timestamp{Time: time.UnixMilli(epoch).UTC()}
	} else {
		*t = timestamp{Time: time.Unix(epoch, 0).UTC()}
	}
	return nil
}
