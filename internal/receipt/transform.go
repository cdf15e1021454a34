package receipt

import (
	"encoding/json"
	"strings"

	"github.com/dvloznov/spendquest/internal/domain"
	"github.com/shopspring/decimal"
)

// transformModelOutputToDraft maps the decoded model object onto a draft.
// Missing, null and mistyped fields stay unset; the direction is always set.
func transformModelOutputToDraft(obj map[string]interface{}) *domain.DraftTransaction {
	draft := &domain.DraftTransaction{
		Amount:      getOptionalDecimalField(obj, "amount"),
		Category:    getOptionalStringField(obj, "category"),
		Date:        getOptionalStringField(obj, "date"),
		Description: getOptionalStringField(obj, "description"),
	}

	direction := domain.Debit
	if t := getOptionalStringField(obj, "type"); t != nil && strings.EqualFold(strings.TrimSpace(*t), "credit") {
		direction = domain.Credit
	}
	draft.Direction = &direction

	return draft
}

func getOptionalStringField(m map[string]interface{}, key string) *string {
	v, ok := m[key]
	if !ok || v == nil {
		return nil
	}
	s, ok := v.(string)
	if !ok {
		return nil
	}
	return &s
}

func getOptionalDecimalField(m map[string]interface{}, key string) *decimal.Decimal {
	v, ok := m[key]
	if !ok || v == nil {
		return nil
	}

	var d decimal.Decimal
	switch n := v.(type) {
	case json.Number:
		parsed, err := decimal.NewFromString(n.String())
		if err != nil {
			return nil
		}
		d = parsed
	case float64:
		d = decimal.NewFromFloat(n)
	default:
		return nil
	}
	return &d
}
