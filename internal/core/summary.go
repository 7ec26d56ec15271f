package core

import "github.com/shopspring/decimal"

// DashboardStats is a point-in-time summary derived from a user's records.
type DashboardStats struct {
	TotalIncome     decimal.Decimal
	TotalExpense    decimal.Decimal
	Balance         decimal.Decimal
	PendingBorrowed decimal.Decimal
	PendingLent     decimal.Decimal
}

// Aggregate computes dashboard totals from all of a user's transactions and
// their pending debts. Unknown kinds fall in no bucket, and a debt that is not
// pending contributes nothing even if the caller forgot to filter it out.
func Aggregate(transactions []Transaction, debts []Debt) DashboardStats {
	stats := DashboardStats{
		TotalIncome:     decimal.Zero,
		TotalExpense:    decimal.Zero,
		PendingBorrowed: decimal.Zero,
		PendingLent:     decimal.Zero,
	}

	for _, t := range transactions {
		switch t.Type {
		case Income:
			stats.TotalIncome = stats.TotalIncome.Add(t.Amount)
		case Expense:
			stats.TotalExpense = stats.TotalExpense.Add(t.Amount)
		}
	}

	for _, d := range debts {
		if d.Status != Pending {
			continue
		}
		switch d.Type {
		case Borrowed:
			stats.PendingBorrowed = stats.PendingBorrowed.Add(d.Amount)
		case Lent:
			stats.PendingLent = stats.PendingLent.Add(d.Amount)
		}
	}

	stats.Balance = stats.TotalIncome.Sub(stats.TotalExpense)
	return stats
}

// BalanceNonNegative is used by the dashboard to pick the balance colour.
func (s DashboardStats) BalanceNonNegative() bool {
	return !s.Balance.IsNegative()
}
