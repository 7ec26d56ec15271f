package core

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

const (
	Income  TransactionType = "income"
	Expense TransactionType = "expense"

	Borrowed DebtType = "borrowed"
	Lent     DebtType = "lent"

	Pending DebtStatus = "pending"
	Settled DebtStatus = "settled"
)

const (
	MaxDescriptionLen = 500
	MaxPersonNameLen  = 100

	dateLayout        = "2006-01-02"
	displayDateLayout = "Jan 02, 2006"
)

type (
	TransactionType string
	DebtType        string
	DebtStatus      string

	Date struct {
		time.Time
	}

	Transaction struct {
		ID          string
		UserID      string
		Type        TransactionType
		Category    string
		Amount      decimal.Decimal
		Description string
		Date        Date
		CreatedAt   time.Time
	}

	Debt struct {
		ID          string
		UserID      string
		Type        DebtType
		PersonName  string
		Amount      decimal.Decimal
		Description string
		Status      DebtStatus
		Date        Date
		SettledDate *Date
	}

	// NewTransaction is a validated transaction ready to be stored.
	NewTransaction struct {
		Type        TransactionType
		Category    string
		Amount      decimal.Decimal
		Description string
		Date        Date
	}

	// NewDebt is a validated debt ready to be stored. Status is always pending.
	NewDebt struct {
		Type        DebtType
		PersonName  string
		Amount      decimal.Decimal
		Description string
		Date        Date
	}
)

var (
	ErrInvalidAmount = errors.New("invalid amount")
	ErrInvalidDate   = errors.New("invalid date")
)

// ValidationError reports the first schema rule an input violated.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func invalid(field, msg string) error {
	return &ValidationError{Field: field, Message: msg}
}

func (t TransactionType) Valid() bool {
	return t == Income || t == Expense
}

func (t DebtType) Valid() bool {
	return t == Borrowed || t == Lent
}

func (s DebtStatus) Valid() bool {
	return s == Pending || s == Settled
}

// ParseDate parses a calendar date in YYYY-MM-DD form.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// Today returns the current calendar date in the server's local zone.
func Today() Date {
	now := time.Now()
	return NewDate(now.Year(), int(now.Month()), now.Day())
}

// String formats the date as YYYY-MM-DD, the persisted form.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}

// Display formats the date for humans, e.g. "Jan 15, 2024".
func (d Date) Display() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(displayDateLayout)
}

func (d Date) Validate() error {
	if d.IsZero() {
		return errors.New("date cannot be zero")
	}
	return nil
}

// TransactionInput is raw transaction form input.
type TransactionInput struct {
	Type        string
	Category    string
	Amount      string
	Description string
	Date        string
}

// Parse validates the input in schema order and returns the first violation.
func (in TransactionInput) Parse() (NewTransaction, error) {
	typ := TransactionType(in.Type)
	if !typ.Valid() {
		return NewTransaction{}, invalid("type", "Type must be income or expense")
	}
	if in.Category == "" {
		return NewTransaction{}, invalid("category", "Category is required")
	}
	amount, err := validateAmount(in.Amount)
	if err != nil {
		return NewTransaction{}, err
	}
	if err := validateDescription(in.Description); err != nil {
		return NewTransaction{}, err
	}
	date, err := validateDate(in.Date)
	if err != nil {
		return NewTransaction{}, err
	}
	return NewTransaction{
		Type:        typ,
		Category:    in.Category,
		Amount:      amount,
		Description: in.Description,
		Date:        date,
	}, nil
}

// DebtInput is raw debt form input.
type DebtInput struct {
	Type        string
	PersonName  string
	Amount      string
	Description string
	Date        string
}

// Parse validates the input in schema order and returns the first violation.
func (in DebtInput) Parse() (NewDebt, error) {
	typ := DebtType(in.Type)
	if !typ.Valid() {
		return NewDebt{}, invalid("type", "Type must be borrowed or lent")
	}
	if in.PersonName == "" {
		return NewDebt{}, invalid("person_name", "Person name is required")
	}
	if utf8.RuneCountInString(in.PersonName) > MaxPersonNameLen {
		return NewDebt{}, invalid("person_name", "Person name must be at most 100 characters")
	}
	amount, err := validateAmount(in.Amount)
	if err != nil {
		return NewDebt{}, err
	}
	if err := validateDescription(in.Description); err != nil {
		return NewDebt{}, err
	}
	date, err := validateDate(in.Date)
	if err != nil {
		return NewDebt{}, err
	}
	return NewDebt{
		Type:        typ,
		PersonName:  in.PersonName,
		Amount:      amount,
		Description: in.Description,
		Date:        date,
	}, nil
}

func validateAmount(s string) (decimal.Decimal, error) {
	amount, err := ParseAmount(s)
	switch {
	case errors.Is(err, ErrNotANumber):
		return decimal.Zero, invalid("amount", "Amount must be a valid number")
	case err != nil:
		return decimal.Zero, invalid("amount", "Amount must be positive")
	}
	return amount, nil
}

func validateDescription(s string) error {
	if utf8.RuneCountInString(s) > MaxDescriptionLen {
		return invalid("description", "Description must be less than 500 characters")
	}
	return nil
}

func validateDate(s string) (Date, error) {
	if strings.TrimSpace(s) == "" {
		return Date{}, invalid("date", "Date is required")
	}
	d, err := ParseDate(s)
	if err != nil {
		return Date{}, invalid("date", "Date must be a valid date (YYYY-MM-DD)")
	}
	return d, nil
}

// Settleable reports whether the debt can still transition to settled.
func (d Debt) Settleable() bool {
	return d.Status == Pending
}
