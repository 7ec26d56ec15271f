package memory

import (
	"context"
	"testing"

	"hisab/internal/store"
	"hisab/internal/store/storetest"
)

func TestStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store { return New() })
}

func TestQueryReturnsCopies(t *testing.T) {
	s := New()
	ctx := store.WithOwner(context.Background(), "u1")
	if err := s.Insert(ctx, store.Debts, store.Record{
		"id": "d1", "user_id": "u1", "type": "lent", "person_name": "Karim",
		"amount": "10", "debt_date": "2024-03-01", "status": "pending",
	}); err != nil {
		t.Fatal(err)
	}

	rows, _ := s.Query(ctx, store.Debts, store.Query{})
	rows[0]["status"] = "settled"

	again, _ := s.Query(ctx, store.Debts, store.Query{})
	if again[0].String("status") != "pending" {
		t.Fatal("mutating a query result changed stored data")
	}
}
