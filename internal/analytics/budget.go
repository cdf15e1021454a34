package analytics

import (
	"time"

	"github.com/dvloznov/spendquest/internal/domain"
	"github.com/shopspring/decimal"
)

// BudgetStatus is the spending of the current month against one budget.
type BudgetStatus struct {
	Budget  domain.Budget   `json:"budget"`
	Spent   decimal.Decimal `json:"spent"`
	Percent int64           `json:"percent"` // capped at 100 for display
	Over    bool            `json:"over"`
}

// BudgetUsage computes, for each budget, the debits of now's month whose
// category matches the budget category exactly.
func BudgetUsage(transactions []domain.TransactionRecord, budgets []domain.Budget, now time.Time) []BudgetStatus {
	spent := make(map[string]decimal.Decimal)
	for _, tx := range transactions {
		if tx.Direction != domain.Debit || tx.Category == "" || !InSameMonth(tx.Date, now) {
			continue
		}
		spent[tx.Category] = spent[tx.Category].Add(tx.Amount)
	}

	statuses := make([]BudgetStatus, 0, len(budgets))
	for _, b := range budgets {
		s := spent[b.Category]
		status := BudgetStatus{
			Budget: b,
			Spent:  s,
			Over:   s.GreaterThan(b.Limit),
		}
		if b.Limit.IsPositive() {
			pct := s.Div(b.Limit).Mul(hundred).Round(0)
			status.Percent = decimal.Min(pct, hundred).IntPart()
		}
		statuses = append(statuses, status)
	}

	return statuses
}
