package query

import "github.com/dvloznov/spendquest/internal/domain"

// State is the filter and page selection of one table view.
// Changing the search term or the category sends the view back to page 1.
//
// The HTTP and CLI listings are stateless: each request builds a fresh State
// and passes the page explicitly, so the reset does not carry across
// requests. Callers must send page=1 themselves after changing the search
// term or the category.
type State struct {
	Search   string
	Category string
	Page     int
	PageSize int
}

// NewState returns a State on page 1 with the given page size.
func NewState(pageSize int) *State {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &State{Page: 1, PageSize: pageSize}
}

// SetSearch updates the search term.
func (s *State) SetSearch(search string) {
	if search != s.Search {
		s.Search = search
		s.Page = 1
	}
}

// SetCategory updates the category filter.
func (s *State) SetCategory(category string) {
	if category != s.Category {
		s.Category = category
		s.Page = 1
	}
}

// SetPage records the requested page. It is clamped when Result runs.
func (s *State) SetPage(page int) {
	s.Page = page
}

// Filter returns the current filter.
func (s *State) Filter() Filter {
	return Filter{Search: s.Search, Category: s.Category}
}

// Result applies the state to transactions and stores the clamped page.
func (s *State) Result(transactions []domain.TransactionRecord) Page {
	p := Run(transactions, s.Search, s.Category, s.Page, s.PageSize)
	s.Page = p.Page
	return p
}
