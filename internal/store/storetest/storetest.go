// Package storetest holds the behaviour every store provider must share.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"hisab/internal/store"
)

// Run exercises a provider. newStore must return an empty store.
func Run(t *testing.T, newStore func(t *testing.T) store.Store) {
	t.Helper()
	tests := []struct {
		name string
		fn   func(t *testing.T, s store.Store)
	}{
		{"InsertAndQueryOrdered", testInsertAndQueryOrdered},
		{"OwnershipIsolation", testOwnershipIsolation},
		{"AnonymousRejected", testAnonymousRejected},
		{"UpdateSettlesDebt", testUpdateSettlesDebt},
		{"DeleteIgnoresForeignRows", testDeleteIgnoresForeignRows},
		{"UsersNeedServiceRole", testUsersNeedServiceRole},
		{"ExactAmounts", testExactAmounts},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStore(t)
			t.Cleanup(func() { _ = s.Close() })
			tt.fn(t, s)
		})
	}
}

func owner(t *testing.T, id string) context.Context {
	t.Helper()
	return store.WithOwner(context.Background(), id)
}

func txRecord(userID, typ, amount, date string, created time.Time) store.Record {
	return store.Record{
		"id":               uuid.NewString(),
		"user_id":          userID,
		"type":             typ,
		"category":         "General",
		"amount":           decimal.RequireFromString(amount),
		"description":      nil,
		"transaction_date": date,
		"created_at":       created,
	}
}

func debtRecord(userID, typ, person, date string) store.Record {
	return store.Record{
		"id":          uuid.NewString(),
		"user_id":     userID,
		"type":        typ,
		"person_name": person,
		"amount":      decimal.RequireFromString("100"),
		"description": "note",
		"debt_date":   date,
		"status":      "pending",
	}
}

func testInsertAndQueryOrdered(t *testing.T, s store.Store) {
	u := uuid.NewString()
	ctx := owner(t, u)
	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	older := txRecord(u, "income", "10", "2024-03-01", base)
	newer := txRecord(u, "expense", "20", "2024-03-01", base.Add(time.Minute))
	latest := txRecord(u, "expense", "30", "2024-03-05", base)
	for _, r := range []store.Record{older, newer, latest} {
		if err := s.Insert(ctx, store.Transactions, r); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	rows, err := s.Query(ctx, store.Transactions, store.Query{
		Order: []store.Order{store.Desc("transaction_date"), store.Desc("created_at")},
	})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	want := []string{latest.String("id"), newer.String("id"), older.String("id")}
	for i, id := range want {
		if rows[i].String("id") != id {
			t.Fatalf("row %d: got %s, want %s", i, rows[i].String("id"), id)
		}
	}
	if rows[0]["description"] != nil {
		t.Fatalf("absent description should read back as nil, got %v", rows[0]["description"])
	}
}

func testOwnershipIsolation(t *testing.T, s store.Store) {
	a, b := uuid.NewString(), uuid.NewString()
	if err := s.Insert(owner(t, a), store.Debts, debtRecord(a, "lent", "Karim", "2024-03-01")); err != nil {
		t.Fatal(err)
	}
	if err := s.Insert(owner(t, b), store.Debts, debtRecord(b, "borrowed", "Rahim", "2024-03-02")); err != nil {
		t.Fatal(err)
	}

	rows, err := s.Query(owner(t, a), store.Debts, store.Query{})
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || rows[0].String("person_name") != "Karim" {
		t.Fatalf("owner a sees %v", rows)
	}

	err = s.Insert(owner(t, a), store.Debts, debtRecord(b, "lent", "Sneaky", "2024-03-03"))
	if !errors.Is(err, store.ErrForbidden) {
		t.Fatalf("insert for another owner: expected ErrForbidden, got %v", err)
	}
}

func testAnonymousRejected(t *testing.T, s store.Store) {
	_, err := s.Query(context.Background(), store.Transactions, store.Query{})
	if !errors.Is(err, store.ErrNoOwner) {
		t.Fatalf("expected ErrNoOwner, got %v", err)
	}
}

func testUpdateSettlesDebt(t *testing.T, s store.Store) {
	u := uuid.NewString()
	ctx := owner(t, u)
	first := debtRecord(u, "lent", "Karim", "2024-03-01")
	second := debtRecord(u, "borrowed", "Rahim", "2024-03-02")
	for _, r := range []store.Record{first, second} {
		if err := s.Insert(ctx, store.Debts, r); err != nil {
			t.Fatal(err)
		}
	}

	settle := store.Record{"status": "settled", "settled_date": "2024-03-10"}
	n, err := s.Update(ctx, store.Debts, first.String("id"), settle, store.Eq("status", "pending"))
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if n != 1 {
		t.Fatalf("update changed %d rows, want 1", n)
	}

	// The status filter makes a second settle a no-op.
	n, err = s.Update(ctx, store.Debts, first.String("id"), store.Record{"settled_date": "2024-03-11"}, store.Eq("status", "pending"))
	if err != nil || n != 0 {
		t.Fatalf("conditional update of settled debt: n=%d err=%v", n, err)
	}

	rows, err := s.Query(ctx, store.Debts, store.Query{
		Order: []store.Order{store.Asc("status"), store.Desc("debt_date")},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].String("status") != "pending" || rows[1].String("status") != "settled" {
		t.Fatalf("pending rows must sort first: %v", rows)
	}
	if rows[1].String("settled_date") != "2024-03-10" {
		t.Fatalf("settled_date = %v", rows[1]["settled_date"])
	}

	pending, err := s.Query(ctx, store.Debts, store.Query{Filters: []store.Filter{store.Eq("status", "pending")}})
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 || pending[0].String("id") != second.String("id") {
		t.Fatalf("pending filter returned %v", pending)
	}

	if n, err := s.Update(ctx, store.Debts, uuid.NewString(), store.Record{"status": "settled"}); err != nil || n != 0 {
		t.Fatalf("update of missing row should be a no-op, got n=%d err=%v", n, err)
	}
}

func testDeleteIgnoresForeignRows(t *testing.T, s store.Store) {
	a, b := uuid.NewString(), uuid.NewString()
	rec := txRecord(a, "income", "5", "2024-03-01", time.Now())
	if err := s.Insert(owner(t, a), store.Transactions, rec); err != nil {
		t.Fatal(err)
	}

	if n, err := s.Delete(owner(t, b), store.Transactions, rec.String("id")); err != nil || n != 0 {
		t.Fatalf("foreign delete should silently match nothing, got n=%d err=%v", n, err)
	}
	rows, _ := s.Query(owner(t, a), store.Transactions, store.Query{})
	if len(rows) != 1 {
		t.Fatalf("row deleted by another owner")
	}

	if n, err := s.Delete(owner(t, a), store.Transactions, rec.String("id")); err != nil || n != 1 {
		t.Fatalf("owner delete: n=%d err=%v", n, err)
	}
	rows, _ = s.Query(owner(t, a), store.Transactions, store.Query{})
	if len(rows) != 0 {
		t.Fatalf("expected empty after delete, got %d", len(rows))
	}
	if n, err := s.Delete(owner(t, a), store.Transactions, rec.String("id")); err != nil || n != 0 {
		t.Fatalf("second delete: n=%d err=%v", n, err)
	}
}

func testUsersNeedServiceRole(t *testing.T, s store.Store) {
	svc := store.WithServiceRole(context.Background())
	user := store.Record{
		"id":            uuid.NewString(),
		"email":         "a@example.com",
		"password_hash": "hash",
		"full_name":     "Ayesha",
		"created_at":    time.Now().UTC(),
	}
	if err := s.Insert(svc, store.Users, user); err != nil {
		t.Fatalf("service insert: %v", err)
	}

	dup := user.Clone()
	dup["id"] = uuid.NewString()
	if err := s.Insert(svc, store.Users, dup); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("duplicate email: expected ErrConflict, got %v", err)
	}

	if _, err := s.Query(owner(t, user.String("id")), store.Users, store.Query{}); !errors.Is(err, store.ErrForbidden) {
		t.Fatalf("owner reading users: expected ErrForbidden, got %v", err)
	}

	rows, err := s.Query(svc, store.Users, store.Query{Filters: []store.Filter{store.Eq("email", "a@example.com")}})
	if err != nil || len(rows) != 1 {
		t.Fatalf("lookup by email: %v %v", rows, err)
	}
}

func testExactAmounts(t *testing.T, s store.Store) {
	u := uuid.NewString()
	ctx := owner(t, u)
	rec := txRecord(u, "expense", "1.005", "2024-03-01", time.Now())
	if err := s.Insert(ctx, store.Transactions, rec); err != nil {
		t.Fatal(err)
	}
	rows, err := s.Query(ctx, store.Transactions, store.Query{})
	if err != nil || len(rows) != 1 {
		t.Fatalf("query: %v %v", rows, err)
	}
	got, ok := rows[0]["amount"].(decimal.Decimal)
	if !ok || !got.Equal(decimal.RequireFromString("1.005")) {
		t.Fatalf("amount = %v", rows[0]["amount"])
	}
}
