package http

import (
	"html/template"
	"io/fs"

	"github.com/shopspring/decimal"

	"hisab/internal/auth"
	"hisab/internal/core"
	"hisab/internal/views"
)

var templateFuncs = template.FuncMap{
	"taka": func(d decimal.Decimal) string { return core.FormatTaka(d) },
}

func parseTemplates(fsys fs.FS) (*template.Template, error) {
	return template.New("").Funcs(templateFuncs).ParseFS(fsys, "templates/*.html")
}

type dashboardData struct {
	Stats core.DashboardStats
	Err   string
}

type transactionRow struct {
	ID          string
	Type        string
	Category    string
	Description string
	Amount      string
	Date        string
}

type debtRow struct {
	ID          string
	Type        string
	Person      string
	Description string
	Amount      string
	Date        string
	Badge       string
	Settled     bool
	SettledDate string
}

type listData[T any] struct {
	Items   []T
	Loading bool
	Err     string
}

type formData[In any] struct {
	Input In
	Error string
}

type pageData struct {
	Title           string
	User            auth.User
	Dashboard       dashboardData
	Transactions    listData[transactionRow]
	Debts           listData[debtRow]
	TransactionForm formData[core.TransactionInput]
	DebtForm        formData[core.DebtInput]
}

type authData struct {
	Title    string
	Mode     string
	Email    string
	FullName string
	Error    string
	Notice   string
}

func newDashboardData(snap views.Snapshot[core.DashboardStats]) dashboardData {
	d := dashboardData{Stats: snap.Value}
	if snap.Err != nil {
		d.Err = "Failed to load dashboard"
	}
	return d
}

func newTransactionList(snap views.Snapshot[[]core.Transaction]) listData[transactionRow] {
	out := listData[transactionRow]{Loading: snap.Loading}
	if snap.Err != nil {
		out.Err = "Failed to load transactions"
	}
	for _, tx := range snap.Value {
		out.Items = append(out.Items, transactionRow{
			ID:          tx.ID,
			Type:        string(tx.Type),
			Category:    tx.Category,
			Description: tx.Description,
			Amount:      tx.SignedAmount(),
			Date:        tx.Date.Display(),
		})
	}
	return out
}

func newDebtList(snap views.Snapshot[[]core.Debt]) listData[debtRow] {
	out := listData[debtRow]{Loading: snap.Loading}
	if snap.Err != nil {
		out.Err = "Failed to load debt records"
	}
	for _, d := range snap.Value {
		row := debtRow{
			ID:          d.ID,
			Type:        string(d.Type),
			Person:      d.PersonName,
			Description: d.Description,
			Amount:      core.FormatTaka(d.Amount),
			Date:        d.Date.Display(),
			Badge:       debtBadge(d.Type),
			Settled:     d.Status == core.Settled,
		}
		if d.SettledDate != nil {
			row.SettledDate = d.SettledDate.Display()
		}
		out.Items = append(out.Items, row)
	}
	return out
}

func debtBadge(t core.DebtType) string {
	if t == core.Lent {
		return "They owe me"
	}
	return "I owe"
}
