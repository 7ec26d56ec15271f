package store

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TimeLayout is the fixed-width UTC layout used where timestamps are stored
// as text. Fixed width keeps lexical and chronological order identical.
const TimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Normalize converts v to the Record representation of kind.
func Normalize(kind Kind, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	if b, ok := v.([]byte); ok {
		v = string(b)
	}
	switch kind {
	case KindText, KindUUID:
		switch x := v.(type) {
		case string:
			return x, nil
		case fmt.Stringer:
			return x.String(), nil
		}
	case KindDate:
		switch x := v.(type) {
		case string:
			// Drivers may hand dates back with a time suffix.
			if len(x) > len("2006-01-02") {
				x = x[:len("2006-01-02")]
			}
			if _, err := time.Parse("2006-01-02", x); err != nil {
				return nil, fmt.Errorf("invalid date %q: %w", x, err)
			}
			return x, nil
		case time.Time:
			return x.Format("2006-01-02"), nil
		case fmt.Stringer:
			return Normalize(kind, x.String())
		}
	case KindDecimal:
		switch x := v.(type) {
		case decimal.Decimal:
			return x, nil
		case string:
			d, err := decimal.NewFromString(strings.TrimSpace(x))
			if err != nil {
				return nil, fmt.Errorf("invalid decimal %q: %w", x, err)
			}
			return d, nil
		case int64:
			return decimal.NewFromInt(x), nil
		case float64:
			return decimal.NewFromFloat(x), nil
		}
	case KindTime:
		switch x := v.(type) {
		case time.Time:
			return x.UTC(), nil
		case string:
			t, err := time.Parse(time.RFC3339Nano, x)
			if err != nil {
				return nil, fmt.Errorf("invalid timestamp %q: %w", x, err)
			}
			return t.UTC(), nil
		}
	}
	return nil, fmt.Errorf("unsupported value %T for column kind %d", v, kind)
}

// NormalizeRecord normalizes every field of rec against schema.
func NormalizeRecord(schema Schema, rec Record) (Record, error) {
	out := make(Record, len(rec))
	for k, v := range rec {
		col, ok := schema.Column(k)
		if !ok {
			return nil, fmt.Errorf("%w: %s.%s", ErrUnknownColumn, schema.Name, k)
		}
		nv, err := Normalize(col.Kind, v)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", schema.Name, k, err)
		}
		out[k] = nv
	}
	return out, nil
}

// Compare orders two normalized values of the same kind. nil sorts first.
func Compare(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	switch x := a.(type) {
	case string:
		if y, ok := b.(string); ok {
			return strings.Compare(x, y)
		}
	case decimal.Decimal:
		if y, ok := b.(decimal.Decimal); ok {
			return x.Cmp(y)
		}
	case time.Time:
		if y, ok := b.(time.Time); ok {
			return x.Compare(y)
		}
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

// Equal reports whether two normalized values are equal.
func Equal(a, b any) bool {
	return Compare(a, b) == 0
}
