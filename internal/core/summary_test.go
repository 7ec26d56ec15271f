package core

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestAggregateEmpty(t *testing.T) {
	stats := Aggregate(nil, nil)
	for name, v := range map[string]decimal.Decimal{
		"income":   stats.TotalIncome,
		"expense":  stats.TotalExpense,
		"balance":  stats.Balance,
		"borrowed": stats.PendingBorrowed,
		"lent":     stats.PendingLent,
	} {
		if !v.IsZero() {
			t.Errorf("%s = %s, want 0", name, v)
		}
	}
}

func TestAggregateTotals(t *testing.T) {
	txs := []Transaction{
		{Type: Income, Amount: mustAmount(t, "1000.10")},
		{Type: Expense, Amount: mustAmount(t, "250.00")},
		{Type: Expense, Amount: mustAmount(t, "0.1")},
		{Type: Expense, Amount: mustAmount(t, "0.2")},
		{Type: "transfer", Amount: mustAmount(t, "999")},
		{Type: Income},
	}
	debts := []Debt{
		{Type: Borrowed, Status: Pending, Amount: mustAmount(t, "40")},
		{Type: Lent, Status: Pending, Amount: mustAmount(t, "500")},
		{Type: Lent, Status: Settled, Amount: mustAmount(t, "700")},
		{Type: "gift", Status: Pending, Amount: mustAmount(t, "3")},
	}

	stats := Aggregate(txs, debts)

	checks := []struct {
		name string
		got  decimal.Decimal
		want string
	}{
		{"income", stats.TotalIncome, "1000.10"},
		{"expense", stats.TotalExpense, "250.3"},
		{"balance", stats.Balance, "749.8"},
		{"borrowed", stats.PendingBorrowed, "40"},
		{"lent", stats.PendingLent, "500"},
	}
	for _, c := range checks {
		if !c.got.Equal(mustAmount(t, c.want)) {
			t.Errorf("%s = %s, want %s", c.name, c.got, c.want)
		}
	}
	if !stats.TotalIncome.Sub(stats.TotalExpense).Equal(stats.Balance) {
		t.Fatalf("balance must equal income - expense exactly")
	}
}

func TestAggregateNegativeBalance(t *testing.T) {
	stats := Aggregate([]Transaction{{Type: Expense, Amount: mustAmount(t, "5")}}, nil)
	if stats.BalanceNonNegative() || FormatTaka(stats.Balance) != "-৳5.00" {
		t.Fatalf("unexpected balance %s", stats.Balance)
	}
}

func TestAggregateSettledDebtsContributeNothing(t *testing.T) {
	debts := []Debt{
		{Type: Lent, Status: Settled, Amount: mustAmount(t, "500")},
		{Type: Borrowed, Status: Settled, Amount: mustAmount(t, "20")},
	}
	stats := Aggregate(nil, debts)
	if !stats.PendingLent.IsZero() || !stats.PendingBorrowed.IsZero() {
		t.Fatalf("settled debts leaked into pending totals: %+v", stats)
	}
}
