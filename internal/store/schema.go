package store

// Kind describes how a column value is represented in a Record.
type Kind int

const (
	// KindText values are Go strings.
	KindText Kind = iota
	// KindUUID values are canonical UUID strings.
	KindUUID
	// KindDecimal values are decimal.Decimal.
	KindDecimal
	// KindDate values are "YYYY-MM-DD" strings.
	KindDate
	// KindTime values are time.Time in UTC.
	KindTime
)

// Column is a persisted field.
type Column struct {
	Name     string
	Kind     Kind
	Nullable bool
}

// Schema describes a collection.
type Schema struct {
	Name    string
	Columns []Column
	// Owned collections carry a user_id column and are scoped to the owner.
	Owned bool
	// Unique lists columns that must not repeat across rows.
	Unique []string
}

// Column returns the named column.
func (s Schema) Column(name string) (Column, bool) {
	for _, c := range s.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// ColumnNames returns the column names in declaration order.
func (s Schema) ColumnNames() []string {
	names := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		names[i] = c.Name
	}
	return names
}

const (
	Transactions = "transactions"
	Debts        = "debts"
	Users        = "users"

	FieldID     = "id"
	FieldUserID = "user_id"
)

var schemas = map[string]Schema{
	Transactions: {
		Name:  Transactions,
		Owned: true,
		Columns: []Column{
			{Name: FieldID, Kind: KindUUID},
			{Name: FieldUserID, Kind: KindUUID},
			{Name: "type", Kind: KindText},
			{Name: "category", Kind: KindText},
			{Name: "amount", Kind: KindDecimal},
			{Name: "description", Kind: KindText, Nullable: true},
			{Name: "transaction_date", Kind: KindDate},
			{Name: "created_at", Kind: KindTime},
		},
	},
	Debts: {
		Name:  Debts,
		Owned: true,
		Columns: []Column{
			{Name: FieldID, Kind: KindUUID},
			{Name: FieldUserID, Kind: KindUUID},
			{Name: "type", Kind: KindText},
			{Name: "person_name", Kind: KindText},
			{Name: "amount", Kind: KindDecimal},
			{Name: "description", Kind: KindText, Nullable: true},
			{Name: "debt_date", Kind: KindDate},
			{Name: "status", Kind: KindText},
			{Name: "settled_date", Kind: KindDate, Nullable: true},
		},
	},
	Users: {
		Name:   Users,
		Unique: []string{"email"},
		Columns: []Column{
			{Name: FieldID, Kind: KindUUID},
			{Name: "email", Kind: KindText},
			{Name: "password_hash", Kind: KindText},
			{Name: "full_name", Kind: KindText},
			{Name: "created_at", Kind: KindTime},
		},
	},
}

// Lookup returns the schema of a collection.
func Lookup(collection string) (Schema, bool) {
	s, ok := schemas[collection]
	return s, ok
}

// Collections returns every known collection name.
func Collections() []string {
	return []string{Transactions, Debts, Users}
}
