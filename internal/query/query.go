// Package query filters and paginates a transaction list for table views.
package query

import (
	"strings"

	"github.com/dvloznov/spendquest/internal/domain"
)

// DefaultPageSize is the number of rows shown per table page.
const DefaultPageSize = 10

// Filter selects transactions by free text and category.
type Filter struct {
	Search   string
	Category string
}

// Page is one window of a filtered transaction list.
type Page struct {
	Items      []domain.TransactionRecord `json:"items"`
	Page       int                        `json:"page"`
	TotalPages int                        `json:"total_pages"`
	TotalCount int                        `json:"total_count"`
}

// Matches reports whether tx satisfies the filter. Search is a
// case-insensitive substring match over description and counterparty;
// Category must match exactly.
func (f Filter) Matches(tx domain.TransactionRecord) bool {
	if f.Category != "" && tx.Category != f.Category {
		return false
	}
	if f.Search == "" {
		return true
	}
	haystack := strings.ToLower(tx.Description + " " + tx.Counterparty)
	return strings.Contains(haystack, strings.ToLower(f.Search))
}

// Apply returns the transactions matching f in their original order.
func Apply(transactions []domain.TransactionRecord, f Filter) []domain.TransactionRecord {
	result := make([]domain.TransactionRecord, 0, len(transactions))
	for _, tx := range transactions {
		if f.Matches(tx) {
			result = append(result, tx)
		}
	}
	return result
}

// TotalPages returns the number of pages needed for count items, at least one.
func TotalPages(count, pageSize int) int {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	pages := (count + pageSize - 1) / pageSize
	if pages < 1 {
		return 1
	}
	return pages
}

// ClampPage moves page into [1, totalPages].
func ClampPage(page, totalPages int) int {
	if page < 1 {
		return 1
	}
	if page > totalPages {
		return totalPages
	}
	return page
}

// Paginate returns the requested page of items, clamping the page number.
func Paginate(items []domain.TransactionRecord, page, pageSize int) Page {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	totalPages := TotalPages(len(items), pageSize)
	page = ClampPage(page, totalPages)

	start := (page - 1) * pageSize
	end := start + pageSize
	if end > len(items) {
		end = len(items)
	}

	pageItems := make([]domain.TransactionRecord, end-start)
	copy(pageItems, items[start:end])

	return Page{
		Items:      pageItems,
		Page:       page,
		TotalPages: totalPages,
		TotalCount: len(items),
	}
}

// Run filters transactions and returns the requested page.
func Run(transactions []domain.TransactionRecord, search, category string, page, pageSize int) Page {
	filtered := Apply(transactions, Filter{Search: search, Category: category})
	return Paginate(filtered, page, pageSize)
}
