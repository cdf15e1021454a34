package query

import (
	"testing"

	"github.com/dvloznov/spendquest/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestState_FilterChangesResetPage(t *testing.T) {
	s := NewState(10)
	s.SetPage(3)

	s.SetSearch("coffee")
	assert.Equal(t, 1, s.Page)

	s.SetPage(2)
	s.SetSearch("coffee") // unchanged term keeps the page
	assert.Equal(t, 2, s.Page)

	s.SetCategory("Food")
	assert.Equal(t, 1, s.Page)

	s.SetPage(4)
	s.SetCategory("Food")
	assert.Equal(t, 4, s.Page)
	assert.Equal(t, Filter{Search: "coffee", Category: "Food"}, s.Filter())
}

func TestState_ResultClampsPage(t *testing.T) {
	txs := records(25)
	s := NewState(10)

	s.SetPage(7)
	p := s.Result(txs)
	assert.Equal(t, 3, p.Page)
	assert.Equal(t, 3, s.Page)

	s.SetPage(-1)
	p = s.Result(txs)
	assert.Equal(t, 1, p.Page)

	s.SetSearch("nothing matches")
	p = s.Result(txs)
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, 1, p.TotalPages)
	assert.Equal(t, 0, p.TotalCount)
}

func TestNewState_DefaultPageSize(t *testing.T) {
	s := NewState(0)

	assert.Equal(t, DefaultPageSize, s.PageSize)
	assert.Equal(t, 1, s.Page)
	assert.Empty(t, s.Result([]domain.TransactionRecord{}).Items)
}
