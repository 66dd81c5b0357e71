// Package types defines the value model shared by every layer of
// RustQL: the lexer emits literals as Value, the catalog stores rows
// of Value, and the executor evaluates expressions to Value.
package types

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Kind is the tag of a Value's variant.
type Kind int

const (
	Null Kind = iota
	Integer
	Float
	Text
	Boolean
	Date
	Time
	DateTime
)

func (k Kind) String() string {
	switch k {
	case Null:
		return "NULL"
	case Integer:
		return "INTEGER"
	case Float:
		return "FLOAT"
	case Text:
		return "TEXT"
	case Boolean:
		return "BOOLEAN"
	case Date:
		return "DATE"
	case Time:
		return "TIME"
	case DateTime:
		return "DATETIME"
	default:
		return "UNKNOWN"
	}
}

const dateLayout = "2006-01-02"
const timeLayout = "15:04:05"
const dateTimeLayout = "2006-01-02T15:04:05Z"

// Value is a tagged union over the scalar types RustQL columns hold.
// Every field is a plain comparable scalar so Value itself can be
// used directly as a Go map key (the index maps in package catalog
// rely on this).
type Value struct {
	kind Kind
	i    int64   // Integer; Date/Time/DateTime as nanoseconds (UTC, time-of-day for Time)
	f    float64 // Float
	s    string  // Text
	b    bool    // Boolean
}

func NewNull() Value               { return Value{kind: Null} }
func NewInteger(i int64) Value     { return Value{kind: Integer, i: i} }
func NewFloat(f float64) Value     { return Value{kind: Float, f: f} }
func NewText(s string) Value       { return Value{kind: Text, s: s} }
func NewBoolean(b bool) Value      { return Value{kind: Boolean, b: b} }

func NewDate(t time.Time) Value {
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return Value{kind: Date, i: d.UnixNano()}
}

func NewTime(t time.Time) Value {
	ns := int64(t.Hour())*int64(time.Hour) + int64(t.Minute())*int64(time.Minute) + int64(t.Second())*int64(time.Second)
	return Value{kind: Time, i: ns}
}

func NewDateTime(t time.Time) Value {
	return Value{kind: DateTime, i: t.UTC().UnixNano()}
}

func (v Value) Kind() Kind  { return v.kind }
func (v Value) IsNull() bool { return v.kind == Null }

func (v Value) Integer() int64  { return v.i }
func (v Value) Float() float64  { return v.f }
func (v Value) Text() string    { return v.s }
func (v Value) Boolean() bool   { return v.b }

// AsTime reconstructs the time.Time a Date/Time/DateTime value encodes.
func (v Value) AsTime() time.Time {
	switch v.kind {
	case Date, DateTime:
		return time.Unix(0, v.i).UTC()
	case Time:
		return time.Unix(0, v.i).UTC()
	default:
		return time.Time{}
	}
}

// Numeric reports whether the value participates in numeric comparison,
// and its value promoted to float64.
func (v Value) Numeric() (float64, bool) {
	switch v.kind {
	case Integer:
		return float64(v.i), true
	case Float:
		return v.f, true
	default:
		return 0, false
	}
}

// String renders a Value the way EXPLAIN key_args and error messages do.
func (v Value) String() string {
	switch v.kind {
	case Null:
		return "NULL"
	case Integer:
		return strconv.FormatInt(v.i, 10)
	case Float:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case Text:
		return "'" + strings.ReplaceAll(v.s, "'", "''") + "'"
	case Boolean:
		if v.b {
			return "TRUE"
		}
		return "FALSE"
	case Date:
		return v.AsTime().Format(dateLayout)
	case Time:
		return v.AsTime().Format(timeLayout)
	case DateTime:
		return v.AsTime().Format(dateTimeLayout)
	default:
		return "?"
	}
}

// MarshalISO renders the value the way the JSON persistence adapter
// stores it: dates/times as ISO-8601 strings, booleans as JSON
// booleans, numbers as numbers, Null as nil.
func (v Value) MarshalISO() interface{} {
	switch v.kind {
	case Null:
		return nil
	case Integer:
		return v.i
	case Float:
		return v.f
	case Text:
		return v.s
	case Boolean:
		return v.b
	case Date:
		return v.AsTime().Format(dateLayout)
	case Time:
		return v.AsTime().Format(timeLayout)
	case DateTime:
		return v.AsTime().Format(dateTimeLayout)
	default:
		return nil
	}
}

// ParseISO rebuilds a Value of the given declared Kind from the JSON
// representation produced by MarshalISO. It tolerates the loose
// numeric typing JSON decoding into interface{} produces (all JSON
// numbers arrive as float64).
func ParseISO(kind Kind, raw interface{}) (Value, error) {
	if raw == nil {
		return NewNull(), nil
	}
	switch kind {
	case Integer:
		switch n := raw.(type) {
		case float64:
			return NewInteger(int64(n)), nil
		case int64:
			return NewInteger(n), nil
		}
	case Float:
		switch n := raw.(type) {
		case float64:
			return NewFloat(n), nil
		case int64:
			return NewFloat(float64(n)), nil
		}
	case Text:
		if s, ok := raw.(string); ok {
			return NewText(s), nil
		}
	case Boolean:
		if b, ok := raw.(bool); ok {
			return NewBoolean(b), nil
		}
	case Date:
		if s, ok := raw.(string); ok {
			t, err := time.Parse(dateLayout, s)
			if err != nil {
				return Value{}, fmt.Errorf("invalid DATE literal %q: %w", s, err)
			}
			return NewDate(t), nil
		}
	case Time:
		if s, ok := raw.(string); ok {
			t, err := time.Parse(timeLayout, s)
			if err != nil {
				return Value{}, fmt.Errorf("invalid TIME literal %q: %w", s, err)
			}
			return NewTime(t), nil
		}
	case DateTime:
		if s, ok := raw.(string); ok {
			t, err := time.Parse(dateTimeLayout, s)
			if err != nil {
				return Value{}, fmt.Errorf("invalid DATETIME literal %q: %w", s, err)
			}
			return NewDateTime(t), nil
		}
	}
	return Value{}, fmt.Errorf("cannot decode %v as %s", raw, kind)
}

// Compare orders two non-null values of compatible kinds. It returns
// an error wrapping ErrTypeMismatch when the kinds cannot be compared
// at all (a Null operand included). Integer and Float
// are promoted to a common float64 domain; Text compares
// byte-lexicographically; Boolean, Date, Time and DateTime compare
// within their own kind only.
func Compare(a, b Value) (int, error) {
	if af, aok := a.Numeric(); aok {
		if bf, bok := b.Numeric(); bok {
			switch {
			case af < bf:
				return -1, nil
			case af > bf:
				return 1, nil
			default:
				return 0, nil
			}
		}
		return 0, fmt.Errorf("%w: cannot compare %s with %s", ErrTypeMismatch, a.kind, b.kind)
	}
	if a.kind != b.kind {
		return 0, fmt.Errorf("%w: cannot compare %s with %s", ErrTypeMismatch, a.kind, b.kind)
	}
	switch a.kind {
	case Text:
		return strings.Compare(a.s, b.s), nil
	case Boolean:
		switch {
		case a.b == b.b:
			return 0, nil
		case !a.b:
			return -1, nil
		default:
			return 1, nil
		}
	case Date, Time, DateTime:
		switch {
		case a.i < b.i:
			return -1, nil
		case a.i > b.i:
			return 1, nil
		default:
			return 0, nil
		}
	default:
		return 0, fmt.Errorf("%w: cannot compare %s with %s", ErrTypeMismatch, a.kind, b.kind)
	}
}

// Equal reports value equality: Null equals Null, Integer and Float
// are compared after promotion to float64, and values of any other
// differing kinds are never equal. It never errors.
func Equal(a, b Value) bool {
	if a.kind == Null || b.kind == Null {
		return a.kind == b.kind
	}
	if af, aok := a.Numeric(); aok {
		if bf, bok := b.Numeric(); bok {
			return af == bf
		}
		return false
	}
	return a == b
}
