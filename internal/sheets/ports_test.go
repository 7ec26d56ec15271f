package sheets

import (
	"testing"
	"time"

	"hisab/internal/events"
	"hisab/internal/store"
)

func TestRowFromEvent(t *testing.T) {
	ts := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)

	tests := []struct {
		name string
		e    events.Event
		want Row
	}{
		{
			name: "transaction created",
			e: events.Event{
				Type: events.TransactionCreated, Collection: store.Transactions,
				RecordID: "t1", UserID: "u1", Timestamp: ts,
				Record: map[string]any{"type": "expense", "category": "Food", "amount": "250.00", "transaction_date": "2024-01-15", "description": nil},
			},
			want: Row{"2024-01-15T10:30:00Z", "transaction.created", "u1", "t1", "expense", "Food", "250.00", "2024-01-15", ""},
		},
		{
			name: "debt created",
			e: events.Event{
				Type: events.DebtCreated, Collection: store.Debts,
				RecordID: "d1", UserID: "u1", Timestamp: ts,
				Record: map[string]any{"type": "lent", "person_name": "Alice", "amount": "500", "debt_date": "2024-02-01", "status": "pending"},
			},
			want: Row{"2024-01-15T10:30:00Z", "debt.created", "u1", "d1", "lent", "Alice", "500", "2024-02-01", "pending"},
		},
		{
			name: "debt settled uses settlement date",
			e: events.Event{
				Type: events.DebtSettled, Collection: store.Debts,
				RecordID: "d1", UserID: "u1", Timestamp: ts,
				Record: map[string]any{"status": "settled", "settled_date": "2024-03-01"},
			},
			want: Row{"2024-01-15T10:30:00Z", "debt.settled", "u1", "d1", "", "", "", "2024-03-01", "settled"},
		},
		{
			name: "delete has no record",
			e:    events.Event{Type: events.TransactionDeleted, Collection: store.Transactions, RecordID: "t1", UserID: "u1", Timestamp: ts},
			want: Row{"2024-01-15T10:30:00Z", "transaction.deleted", "u1", "t1", "", "", "", "", ""},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RowFromEvent(tt.e)
			if len(got) != len(Header) {
				t.Fatalf("row has %d cells, header %d", len(got), len(Header))
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("%s = %q, want %q", Header[i], got[i], tt.want[i])
				}
			}
		})
	}
}
