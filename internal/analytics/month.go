package analytics

import (
	"time"

	"github.com/dvloznov/spendquest/internal/domain"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// MonthSummary holds the income and expense totals of one calendar month.
type MonthSummary struct {
	Income      decimal.Decimal `json:"income"`
	Expense     decimal.Decimal `json:"expense"`
	SavingsRate int64           `json:"savings_rate"` // whole percent, never negative
}

// InSameMonth reports whether t falls in the calendar month of now, using
// now's location.
func InSameMonth(t, now time.Time) bool {
	local := t.In(now.Location())
	return local.Year() == now.Year() && local.Month() == now.Month()
}

// AggregateMonth totals the transactions dated in the calendar month of now.
func AggregateMonth(transactions []domain.TransactionRecord, now time.Time) MonthSummary {
	summary := MonthSummary{
		Income:  decimal.Zero,
		Expense: decimal.Zero,
	}

	for _, tx := range transactions {
		if !InSameMonth(tx.Date, now) {
			continue
		}
		if tx.Direction == domain.Credit {
			summary.Income = summary.Income.Add(tx.Amount)
		} else {
			summary.Expense = summary.Expense.Add(tx.Amount)
		}
	}

	summary.SavingsRate = SavingsRate(summary.Income, summary.Expense)
	return summary
}

// SavingsRate returns (income-expense)/income as a whole percentage, floored
// at zero. A month without income has a rate of zero.
func SavingsRate(income, expense decimal.Decimal) int64 {
	if !income.IsPositive() {
		return 0
	}
	rate := income.Sub(expense).Div(income).Mul(hundred).Round(0)
	if rate.IsNegative() {
		return 0
	}
	return rate.IntPart()
}
