package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func ptr[T any](v T) *T { return &v }

func TestDraftTransaction_ToNewTransaction(t *testing.T) {
	tests := []struct {
		name      string
		draft     DraftTransaction
		wantErr   bool
		wantDir   Direction
		wantDate  string
		wantDesc  string
		wantCateg string
	}{
		{
			name:    "missing amount",
			draft:   DraftTransaction{Description: ptr("Coffee")},
			wantErr: true,
		},
		{
			name:    "zero amount",
			draft:   DraftTransaction{Amount: ptr(decimal.Zero)},
			wantErr: true,
		},
		{
			name:    "negative amount",
			draft:   DraftTransaction{Amount: ptr(decimal.NewFromInt(-5))},
			wantErr: true,
		},
		{
			name:    "bad date",
			draft:   DraftTransaction{Amount: ptr(decimal.NewFromInt(5)), Date: ptr("19/10/2026")},
			wantErr: true,
		},
		{
			name:    "direction defaults to debit",
			draft:   DraftTransaction{Amount: ptr(decimal.NewFromInt(5))},
			wantDir: Debit,
		},
		{
			name: "credit with date and trimmed text",
			draft: DraftTransaction{
				Amount:      ptr(decimal.RequireFromString("1200.50")),
				Direction:   ptr(Credit),
				Date:        ptr("2026-10-01"),
				Description: ptr("  Salary "),
				Category:    ptr(" Income "),
			},
			wantDir:   Credit,
			wantDate:  "2026-10-01",
			wantDesc:  "Salary",
			wantCateg: "Income",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.draft.ToNewTransaction()
			if tt.wantErr {
				if !errors.Is(err, ErrIncompleteDraft) {
					t.Fatalf("ToNewTransaction() error = %v, want ErrIncompleteDraft", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ToNewTransaction() unexpected error: %v", err)
			}
			if got.Direction != tt.wantDir {
				t.Errorf("Direction = %q, want %q", got.Direction, tt.wantDir)
			}
			if tt.wantDate == "" && got.Date != nil {
				t.Errorf("Date = %v, want nil", got.Date)
			}
			if tt.wantDate != "" && (got.Date == nil || got.Date.Format(DateLayout) != tt.wantDate) {
				t.Errorf("Date = %v, want %s", got.Date, tt.wantDate)
			}
			if got.Description != tt.wantDesc {
				t.Errorf("Description = %q, want %q", got.Description, tt.wantDesc)
			}
			if got.Category != tt.wantCateg {
				t.Errorf("Category = %q, want %q", got.Category, tt.wantCateg)
			}
		})
	}
}

func TestDraftTransaction_Merge(t *testing.T) {
	base := DraftTransaction{Amount: ptr(decimal.NewFromInt(10)), Description: ptr("Lunch")}
	merged := base.Merge(DraftTransaction{Description: ptr("Dinner"), Category: ptr("Food")})

	if !merged.Amount.Equal(decimal.NewFromInt(10)) {
		t.Errorf("Amount = %s, want 10", merged.Amount)
	}
	if *merged.Description != "Dinner" {
		t.Errorf("Description = %q, want Dinner", *merged.Description)
	}
	if *merged.Category != "Food" {
		t.Errorf("Category = %q, want Food", *merged.Category)
	}
	if *base.Description != "Lunch" {
		t.Errorf("Merge modified the receiver: %q", *base.Description)
	}
	if !(DraftTransaction{}).IsEmpty() || merged.IsEmpty() {
		t.Error("IsEmpty() mismatch")
	}
}

func TestSortMostRecentFirst(t *testing.T) {
	day := func(d int) time.Time { return time.Date(2026, 10, d, 12, 0, 0, 0, time.UTC) }
	txs := []TransactionRecord{
		{ID: "a", Date: day(1)},
		{ID: "b", Date: day(3)},
		{ID: "c", Date: day(2)},
		{ID: "d", Date: day(3)},
	}

	got := SortMostRecentFirst(txs)

	want := []string{"b", "d", "c", "a"}
	for i, id := range want {
		if got[i].ID != id {
			t.Fatalf("position %d = %s, want %s (got %v)", i, got[i].ID, id, got)
		}
	}
	if txs[0].ID != "a" {
		t.Error("SortMostRecentFirst modified its input")
	}
}

func TestTransactionRecord_SignedAmount(t *testing.T) {
	credit := TransactionRecord{Amount: decimal.NewFromInt(200), Direction: Credit}
	debit := TransactionRecord{Amount: decimal.NewFromInt(50), Direction: Debit}

	if !credit.SignedAmount().Equal(decimal.NewFromInt(200)) {
		t.Errorf("credit SignedAmount = %s", credit.SignedAmount())
	}
	if !debit.SignedAmount().Equal(decimal.NewFromInt(-50)) {
		t.Errorf("debit SignedAmount = %s", debit.SignedAmount())
	}
	if Credit.Label() != "Credit" || Debit.Label() != "Debit" {
		t.Error("unexpected direction labels")
	}
}
