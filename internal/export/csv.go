// Package export turns transaction lists into downloadable documents and
// pushes them to external sinks.
package export

import (
	"errors"
	"strings"
	"time"

	"github.com/dvloznov/spendquest/internal/domain"
)

// DefaultDateLayout renders dates as day/month/year with a 24h clock.
const DefaultDateLayout = "02/01/2006 15:04:05"

// CSVContentType is the media type of documents produced by CSV.
const CSVContentType = "text/csv; charset=utf-8"

var csvHeader = []string{"Date", "Description", "Amount", "Type", "Category"}

// ErrNothingToExport is returned when there are no transactions to export.
var ErrNothingToExport = errors.New("no transactions to export")

// Document is a rendered export ready to be downloaded or archived.
type Document struct {
	Filename    string
	ContentType string
	Content     []byte
}

// Options controls how records are rendered.
type Options struct {
	DateLayout string
	Location   *time.Location
}

func (o Options) withDefaults() Options {
	if o.DateLayout == "" {
		o.DateLayout = DefaultDateLayout
	}
	if o.Location == nil {
		o.Location = time.Local
	}
	return o
}

// Filename returns the export file name for the given day.
func Filename(now time.Time) string {
	return "transactions_" + now.Format("2006-01-02") + ".csv"
}

// CSV renders transactions as a CSV document. Descriptions are always quoted;
// other fields are quoted only when they need it.
func CSV(transactions []domain.TransactionRecord, now time.Time, opts Options) (Document, error) {
	if len(transactions) == 0 {
		return Document{}, ErrNothingToExport
	}
	opts = opts.withDefaults()

	var b strings.Builder
	writeRow(&b, csvHeader, -1)
	for _, tx := range transactions {
		writeRow(&b, []string{
			tx.Date.In(opts.Location).Format(opts.DateLayout),
			tx.Description,
			tx.Amount.String(),
			tx.Direction.Label(),
			tx.Category,
		}, 1)
	}

	return Document{
		Filename:    Filename(now),
		ContentType: CSVContentType,
		Content:     []byte(b.String()),
	}, nil
}

// writeRow writes one record. The field at forceQuote is always quoted.
func writeRow(b *strings.Builder, fields []string, forceQuote int) {
	for i, field := range fields {
		if i > 0 {
			b.WriteByte(',')
		}
		if i == forceQuote || needsQuotes(field) {
			b.WriteByte('"')
			b.WriteString(strings.ReplaceAll(field, `"`, `""`))
			b.WriteByte('"')
			continue
		}
		b.WriteString(field)
	}
	b.WriteByte('\n')
}

func needsQuotes(field string) bool {
	return strings.ContainsAny(field, ",\"\r\n")
}
