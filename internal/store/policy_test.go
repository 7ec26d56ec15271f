package store

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

func TestAuthorize(t *testing.T) {
	owned := WithOwner(context.Background(), "u1")

	tests := []struct {
		name       string
		ctx        context.Context
		collection string
		wantErr    error
	}{
		{"owner on transactions", owned, Transactions, nil},
		{"owner on debts", owned, Debts, nil},
		{"owner on users", owned, Users, ErrForbidden},
		{"anonymous", context.Background(), Transactions, ErrNoOwner},
		{"empty owner", WithOwner(context.Background(), ""), Debts, ErrNoOwner},
		{"service role on users", WithServiceRole(context.Background()), Users, nil},
		{"unknown collection", owned, "budgets", ErrUnknownCollection},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Authorize(tt.ctx, tt.collection)
			if tt.wantErr == nil && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestScopeCheckInsert(t *testing.T) {
	scope, err := Authorize(WithOwner(context.Background(), "u1"), Transactions)
	if err != nil {
		t.Fatal(err)
	}

	if err := scope.CheckInsert(Record{"id": "t1", "user_id": "u1", "category": "Food"}); err != nil {
		t.Fatalf("own row rejected: %v", err)
	}
	if err := scope.CheckInsert(Record{"id": "t1", "user_id": "u2"}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("foreign row accepted: %v", err)
	}
	if err := scope.CheckInsert(Record{"user_id": "u1"}); !errors.Is(err, ErrMissingID) {
		t.Fatalf("missing id accepted: %v", err)
	}
	if err := scope.CheckInsert(Record{"id": "t1", "user_id": "u1", "tags": "x"}); !errors.Is(err, ErrUnknownColumn) {
		t.Fatalf("unknown column accepted: %v", err)
	}
}

func TestScopeCheckPatch(t *testing.T) {
	scope, _ := Authorize(WithOwner(context.Background(), "u1"), Debts)

	if err := scope.CheckPatch(Record{"status": "settled", "settled_date": "2024-03-10"}); err != nil {
		t.Fatalf("valid patch rejected: %v", err)
	}
	if err := scope.CheckPatch(Record{"user_id": "u2"}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("owner change accepted: %v", err)
	}
	if err := scope.CheckPatch(Record{"id": "x"}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("id change accepted: %v", err)
	}
}

func TestScopeConstrain(t *testing.T) {
	scope, _ := Authorize(WithOwner(context.Background(), "u1"), Debts)
	got := scope.Constrain([]Filter{Eq("status", "pending")})
	want := []Filter{Eq("status", "pending"), Eq("user_id", "u1")}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}

	service, _ := Authorize(WithServiceRole(context.Background()), Users)
	if got := service.ByID("u9"); !reflect.DeepEqual(got, []Filter{Eq("id", "u9")}) {
		t.Fatalf("service scope should not add owner filter: %v", got)
	}
	got = scope.ByID("d1", Eq("status", "pending"))
	want = []Filter{Eq("id", "d1"), Eq("status", "pending"), Eq("user_id", "u1")}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ByID with extra filters: got %v, want %v", got, want)
	}
}

func TestScopeCheckQuery(t *testing.T) {
	scope, _ := Authorize(WithOwner(context.Background(), "u1"), Transactions)
	if err := scope.CheckQuery(Query{Order: []Order{Desc("transaction_date")}}); err != nil {
		t.Fatal(err)
	}
	if err := scope.CheckQuery(Query{Order: []Order{Desc("debt_date")}}); !errors.Is(err, ErrUnknownColumn) {
		t.Fatalf("expected unknown column, got %v", err)
	}
}
