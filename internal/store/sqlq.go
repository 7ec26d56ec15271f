package store

import (
	"fmt"
	"strings"
)

// Dialect adapts statement building to a SQL engine.
type Dialect interface {
	// Placeholder returns the bind expression for the n-th (1-based) argument.
	Placeholder(n int, col Column) string
	// SelectExpr returns the expression used to read col.
	SelectExpr(col Column) string
	// Encode converts a normalized value to a driver argument.
	Encode(col Column, v any) (any, error)
}

// Statement is a built SQL statement and its arguments.
type Statement struct {
	SQL  string
	Args []any
}

type builder struct {
	d      Dialect
	schema Schema
	args   []any
}

func (b *builder) bind(col Column, v any) (string, error) {
	nv, err := Normalize(col.Kind, v)
	if err != nil {
		return "", fmt.Errorf("%s.%s: %w", b.schema.Name, col.Name, err)
	}
	enc, err := b.d.Encode(col, nv)
	if err != nil {
		return "", err
	}
	b.args = append(b.args, enc)
	return b.d.Placeholder(len(b.args), col), nil
}

func (b *builder) where(filters []Filter) (string, error) {
	if len(filters) == 0 {
		return "", nil
	}
	parts := make([]string, 0, len(filters))
	for _, f := range filters {
		col, ok := b.schema.Column(f.Field)
		if !ok {
			return "", fmt.Errorf("%w: %s.%s", ErrUnknownColumn, b.schema.Name, f.Field)
		}
		if f.Value == nil {
			parts = append(parts, col.Name+" IS NULL")
			continue
		}
		ph, err := b.bind(col, f.Value)
		if err != nil {
			return "", err
		}
		parts = append(parts, col.Name+" = "+ph)
	}
	return " WHERE " + strings.Join(parts, " AND "), nil
}

// BuildInsert builds an INSERT for rec. Columns absent from rec are omitted.
func BuildInsert(d Dialect, schema Schema, rec Record) (Statement, error) {
	b := &builder{d: d, schema: schema}
	var cols, phs []string
	for _, col := range schema.Columns {
		v, ok := rec[col.Name]
		if !ok {
			continue
		}
		if v == nil {
			cols = append(cols, col.Name)
			phs = append(phs, "NULL")
			continue
		}
		ph, err := b.bind(col, v)
		if err != nil {
			return Statement{}, err
		}
		cols = append(cols, col.Name)
		phs = append(phs, ph)
	}
	if len(cols) == 0 {
		return Statement{}, fmt.Errorf("insert into %s: empty record", schema.Name)
	}
	sql := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		schema.Name, strings.Join(cols, ", "), strings.Join(phs, ", "))
	return Statement{SQL: sql, Args: b.args}, nil
}

// BuildSelect builds a SELECT of every schema column.
func BuildSelect(d Dialect, schema Schema, filters []Filter, order []Order) (Statement, error) {
	b := &builder{d: d, schema: schema}
	exprs := make([]string, len(schema.Columns))
	for i, col := range schema.Columns {
		exprs[i] = d.SelectExpr(col)
	}
	where, err := b.where(filters)
	if err != nil {
		return Statement{}, err
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "SELECT %s FROM %s%s", strings.Join(exprs, ", "), schema.Name, where)
	if len(order) > 0 {
		terms := make([]string, 0, len(order))
		for _, o := range order {
			if _, ok := schema.Column(o.Field); !ok {
				return Statement{}, fmt.Errorf("%w: %s.%s", ErrUnknownColumn, schema.Name, o.Field)
			}
			dir := "ASC"
			if o.Desc {
				dir = "DESC"
			}
			terms = append(terms, o.Field+" "+dir)
		}
		sb.WriteString(" ORDER BY ")
		sb.WriteString(strings.Join(terms, ", "))
	}
	return Statement{SQL: sb.String(), Args: b.args}, nil
}

// BuildUpdate builds an UPDATE applying patch to rows matching filters.
func BuildUpdate(d Dialect, schema Schema, filters []Filter, patch Record) (Statement, error) {
	b := &builder{d: d, schema: schema}
	var sets []string
	for _, col := range schema.Columns {
		v, ok := patch[col.Name]
		if !ok {
			continue
		}
		if v == nil {
			sets = append(sets, col.Name+" = NULL")
			continue
		}
		ph, err := b.bind(col, v)
		if err != nil {
			return Statement{}, err
		}
		sets = append(sets, col.Name+" = "+ph)
	}
	if len(sets) == 0 {
		return Statement{}, fmt.Errorf("update %s: empty patch", schema.Name)
	}
	where, err := b.where(filters)
	if err != nil {
		return Statement{}, err
	}
	sql := fmt.Sprintf("UPDATE %s SET %s%s", schema.Name, strings.Join(sets, ", "), where)
	return Statement{SQL: sql, Args: b.args}, nil
}

// BuildDelete builds a DELETE of rows matching filters.
func BuildDelete(d Dialect, schema Schema, filters []Filter) (Statement, error) {
	b := &builder{d: d, schema: schema}
	where, err := b.where(filters)
	if err != nil {
		return Statement{}, err
	}
	return Statement{SQL: "DELETE FROM " + schema.Name + where, Args: b.args}, nil
}

// ScanRecord turns a row of raw driver values, in schema column order, into
// a normalized record.
func ScanRecord(schema Schema, values []any) (Record, error) {
	if len(values) != len(schema.Columns) {
		return nil, fmt.Errorf("scan %s: got %d values for %d columns",
			schema.Name, len(values), len(schema.Columns))
	}
	rec := make(Record, len(values))
	for i, col := range schema.Columns {
		v, err := Normalize(col.Kind, values[i])
		if err != nil {
			return nil, fmt.Errorf("scan %s.%s: %w", schema.Name, col.Name, err)
		}
		rec[col.Name] = v
	}
	return rec, nil
}
