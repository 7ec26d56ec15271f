package core

import (
	"errors"
	"strings"
	"testing"
)

func TestDateValidate(t *testing.T) {
	cases := []struct {
		d  Date
		ok bool
	}{
		{NewDate(2025, 1, 1), true},
		{NewDate(2025, 12, 31), true},
		{Date{}, false},
	}
	for i, tc := range cases {
		err := tc.d.Validate()
		if tc.ok && err != nil {
			t.Fatalf("case %d expected ok, got %v", i, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2024-01-15")
	if err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if d.String() != "2024-01-15" || d.Display() != "Jan 15, 2024" {
		t.Fatalf("unexpected formatting: %q %q", d.String(), d.Display())
	}
	for _, bad := range []string{"", "2024-13-01", "2024-02-30", "15/01/2024"} {
		if _, err := ParseDate(bad); err == nil {
			t.Fatalf("%q expected error", bad)
		}
	}
}

func validationMessage(t *testing.T, err error) string {
	t.Helper()
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	return verr.Message
}

func TestTransactionInputParse(t *testing.T) {
	good := TransactionInput{Type: "expense", Category: "Food", Amount: "250.00", Date: "2024-01-15"}
	tx, err := good.Parse()
	if err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if tx.Type != Expense || tx.Category != "Food" || tx.Amount.String() != "250" || tx.Date.String() != "2024-01-15" {
		t.Fatalf("unexpected parse result: %+v", tx)
	}

	tests := []struct {
		name string
		in   TransactionInput
		want string
	}{
		{"bad type", TransactionInput{Type: "transfer", Category: "x", Amount: "1", Date: "2024-01-01"}, "Type must be income or expense"},
		{"empty category", TransactionInput{Type: "income", Amount: "1", Date: "2024-01-01"}, "Category is required"},
		{"zero amount", TransactionInput{Type: "income", Category: "x", Amount: "0", Date: "2024-01-01"}, "Amount must be positive"},
		{"negative amount", TransactionInput{Type: "income", Category: "x", Amount: "-5", Date: "2024-01-01"}, "Amount must be positive"},
		{"non-numeric amount", TransactionInput{Type: "income", Category: "x", Amount: "abc", Date: "2024-01-01"}, "Amount must be a valid number"},
		{"long description", TransactionInput{Type: "income", Category: "x", Amount: "1", Description: strings.Repeat("a", 501), Date: "2024-01-01"}, "Description must be less than 500 characters"},
		{"missing date", TransactionInput{Type: "income", Category: "x", Amount: "1"}, "Date is required"},
		{"malformed date", TransactionInput{Type: "income", Category: "x", Amount: "1", Date: "yesterday"}, "Date must be a valid date (YYYY-MM-DD)"},
		{"first violation wins", TransactionInput{Type: "income", Amount: "0"}, "Category is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.in.Parse()
			if got := validationMessage(t, err); got != tt.want {
				t.Errorf("message = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDescriptionBoundary(t *testing.T) {
	in := TransactionInput{Type: "income", Category: "x", Amount: "1", Date: "2024-01-01", Description: strings.Repeat("é", 500)}
	if _, err := in.Parse(); err != nil {
		t.Fatalf("500 characters should be accepted, got %v", err)
	}
	d := DebtInput{Type: "lent", PersonName: "Bob", Amount: "1", Date: "2024-01-01", Description: strings.Repeat("a", 501)}
	if _, err := d.Parse(); err == nil {
		t.Fatalf("501 characters should be rejected for debts too")
	}
}

func TestDebtInputParse(t *testing.T) {
	d, err := DebtInput{Type: "lent", PersonName: "Alice", Amount: "500.00", Date: "2024-02-01"}.Parse()
	if err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if d.Type != Lent || d.PersonName != "Alice" || !d.Amount.Equal(mustAmount(t, "500")) {
		t.Fatalf("unexpected parse result: %+v", d)
	}

	tests := []struct {
		name string
		in   DebtInput
		want string
	}{
		{"bad type", DebtInput{Type: "gift", PersonName: "A", Amount: "1", Date: "2024-01-01"}, "Type must be borrowed or lent"},
		{"empty person", DebtInput{Type: "lent", Amount: "1", Date: "2024-01-01"}, "Person name is required"},
		{"long person", DebtInput{Type: "lent", PersonName: strings.Repeat("p", 101), Amount: "1", Date: "2024-01-01"}, "Person name must be at most 100 characters"},
		{"zero amount", DebtInput{Type: "borrowed", PersonName: "A", Amount: "0.00", Date: "2024-01-01"}, "Amount must be positive"},
		{"missing date", DebtInput{Type: "borrowed", PersonName: "A", Amount: "3"}, "Date is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.in.Parse()
			if got := validationMessage(t, err); got != tt.want {
				t.Errorf("message = %q, want %q", got, tt.want)
			}
		})
	}

	if _, err := (DebtInput{Type: "lent", PersonName: strings.Repeat("p", 100), Amount: "1", Date: "2024-01-01"}).Parse(); err != nil {
		t.Fatalf("100 character name should be accepted, got %v", err)
	}
}
