// Package sheets defines the spreadsheet mirror of the ledger and the row
// layout shared by its adapters.
package sheets

import (
	"context"
	"fmt"
	"time"

	"hisab/internal/events"
	"hisab/internal/store"
)

// Ports for outbound adapters.
type (
	// RowAppender appends one row to the mirror sheet and returns the
	// reference of the written range.
	RowAppender interface {
		AppendRow(ctx context.Context, row Row) (rowRef string, err error)
	}

	// HeaderWriter writes the column titles when the sheet is empty.
	HeaderWriter interface {
		EnsureHeader(ctx context.Context) error
	}
)

// Header is the title row of the mirror sheet.
var Header = Row{"timestamp", "event", "user_id", "record_id", "type", "name", "amount", "date", "status"}

// Row is one sheet row, in Header order.
type Row []string

// Values converts the row for the Sheets API.
func (r Row) Values() []any {
	out := make([]any, len(r))
	for i, v := range r {
		out[i] = v
	}
	return out
}

// RowFromEvent lays out a ledger event as a mirror row. Delete events carry
// no record, so only the identifying columns are filled.
func RowFromEvent(e events.Event) Row {
	field := func(key string) string {
		v, ok := e.Record[key]
		if !ok || v == nil {
			return ""
		}
		return fmt.Sprint(v)
	}

	name := field("category")
	date := field("transaction_date")
	if e.Collection == store.Debts {
		name = field("person_name")
		date = field("debt_date")
		if e.Type == events.DebtSettled {
			date = field("settled_date")
		}
	}

	return Row{
		e.Timestamp.UTC().Format(time.RFC3339),
		string(e.Type),
		e.UserID,
		e.RecordID,
		field("type"),
		name,
		field("amount"),
		date,
		field("status"),
	}
}
