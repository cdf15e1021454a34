package bigquery

import (
	"math/big"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/dvloznov/spendquest/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// numericScale is the fractional precision of the BigQuery NUMERIC type.
const numericScale = 9

type TransactionRow struct {
	TransactionID string `bigquery:"transaction_id"` // REQUIRED
	UserID        string `bigquery:"user_id"`        // REQUIRED

	TransactionDate civil.Date            `bigquery:"transaction_date"` // REQUIRED
	BookingDatetime bigquery.NullDateTime `bigquery:"booking_datetime"` // NULLABLE

	Amount    *big.Rat            `bigquery:"amount"`    // REQUIRED NUMERIC, signed
	Direction bigquery.NullString `bigquery:"direction"` // NULLABLE

	RawDescription string              `bigquery:"raw_description"` // REQUIRED STRING
	CategoryName   bigquery.NullString `bigquery:"category_name"`   // NULLABLE
	Counterparty   bigquery.NullString `bigquery:"counterparty"`    // NULLABLE

	CreatedTS time.Time `bigquery:"created_ts"` // REQUIRED
}

type balanceRow struct {
	Balance *big.Rat `bigquery:"balance"`
}

// toRecord converts a stored row, reading the zone-less date columns in loc.
// The stored amount is signed; the direction
// column wins when present, otherwise the sign decides.
func (r TransactionRow) toRecord(loc *time.Location) domain.TransactionRecord {
	amount := ratToDecimal(r.Amount)

	direction := domain.Debit
	switch {
	case r.Direction.Valid && strings.EqualFold(r.Direction.StringVal, string(domain.Credit)):
		direction = domain.Credit
	case !r.Direction.Valid && amount.IsPositive():
		direction = domain.Credit
	}

	date := r.TransactionDate.In(loc)
	if r.BookingDatetime.Valid {
		date = r.BookingDatetime.DateTime.In(loc)
	}

	return domain.TransactionRecord{
		ID:           r.TransactionID,
		Date:         date,
		Amount:       amount.Abs(),
		Direction:    direction,
		Description:  r.RawDescription,
		Category:     strings.TrimSpace(r.CategoryName.StringVal),
		Counterparty: r.Counterparty.StringVal,
	}
}

func newTransactionRow(userID string, tx domain.NewTransaction, now time.Time) *TransactionRow {
	date := now
	if tx.Date != nil {
		date = *tx.Date
	}

	signed := tx.Amount.Abs()
	if tx.Direction != domain.Credit {
		signed = signed.Neg()
	}

	direction := tx.Direction
	if direction == "" {
		direction = domain.Debit
	}

	return &TransactionRow{
		TransactionID:   uuid.NewString(),
		UserID:          userID,
		TransactionDate: civil.DateOf(date),
		Amount:          signed.Rat(),
		Direction:       nullString(string(direction)),
		RawDescription:  tx.Description,
		CategoryName:    nullString(tx.Category),
		CreatedTS:       now.UTC(),
	}
}

func nullString(s string) bigquery.NullString {
	s = strings.TrimSpace(s)
	return bigquery.NullString{StringVal: s, Valid: s != ""}
}

func ratToDecimal(r *big.Rat) decimal.Decimal {
	if r == nil {
		return decimal.Zero
	}
	return decimal.RequireFromString(r.FloatString(numericScale))
}
