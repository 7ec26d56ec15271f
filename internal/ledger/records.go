package ledger

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"hisab/internal/core"
	"hisab/internal/store"
)

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func transactionRecord(id, userID string, tx core.NewTransaction, createdAt time.Time) store.Record {
	return store.Record{
		"id":               id,
		"user_id":          userID,
		"type":             string(tx.Type),
		"category":         tx.Category,
		"amount":           tx.Amount,
		"description":      nullable(tx.Description),
		"transaction_date": tx.Date.String(),
		"created_at":       createdAt.UTC(),
	}
}

func debtRecord(id, userID string, d core.NewDebt) store.Record {
	return store.Record{
		"id":           id,
		"user_id":      userID,
		"type":         string(d.Type),
		"person_name":  d.PersonName,
		"amount":       d.Amount,
		"description":  nullable(d.Description),
		"debt_date":    d.Date.String(),
		"status":       string(core.Pending),
		"settled_date": nil,
	}
}

func toTransaction(rec store.Record) (core.Transaction, error) {
	amount, ok := rec["amount"].(decimal.Decimal)
	if !ok {
		return core.Transaction{}, fmt.Errorf("transaction %s: amount is %T", rec.String("id"), rec["amount"])
	}
	date, err := core.ParseDate(rec.String("transaction_date"))
	if err != nil {
		return core.Transaction{}, fmt.Errorf("transaction %s: %w", rec.String("id"), err)
	}
	created, _ := rec["created_at"].(time.Time)
	return core.Transaction{
		ID:          rec.String("id"),
		UserID:      rec.String("user_id"),
		Type:        core.TransactionType(rec.String("type")),
		Category:    rec.String("category"),
		Amount:      amount,
		Description: rec.String("description"),
		Date:        date,
		CreatedAt:   created,
	}, nil
}

func toDebt(rec store.Record) (core.Debt, error) {
	amount, ok := rec["amount"].(decimal.Decimal)
	if !ok {
		return core.Debt{}, fmt.Errorf("debt %s: amount is %T", rec.String("id"), rec["amount"])
	}
	date, err := core.ParseDate(rec.String("debt_date"))
	if err != nil {
		return core.Debt{}, fmt.Errorf("debt %s: %w", rec.String("id"), err)
	}
	d := core.Debt{
		ID:          rec.String("id"),
		UserID:      rec.String("user_id"),
		Type:        core.DebtType(rec.String("type")),
		PersonName:  rec.String("person_name"),
		Amount:      amount,
		Description: rec.String("description"),
		Status:      core.DebtStatus(rec.String("status")),
		Date:        date,
	}
	if s := rec.String("settled_date"); s != "" {
		settled, err := core.ParseDate(s)
		if err != nil {
			return core.Debt{}, fmt.Errorf("debt %s: %w", d.ID, err)
		}
		d.SettledDate = &settled
	}
	return d, nil
}

// payload renders a record with JSON-friendly values for events.
func payload(rec store.Record) map[string]any {
	out := make(map[string]any, len(rec))
	for k, v := range rec {
		if d, ok := v.(decimal.Decimal); ok {
			out[k] = d.String()
			continue
		}
		out[k] = v
	}
	return out
}
