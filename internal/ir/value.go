package ir

import (
	"fmt"
	"time"
)

// Value is a sealed interface representing the literal types the
// compiler can carry into a relational plan. Only Null, String, Int,
// Decimal, Bool, Date, Timestamp, and List implement it.
// NO float type - decimals stay in text form so rendering is exact.
type Value interface {
	value() // Sealed - only these types implement it
}

// Null represents a typed SQL NULL.
// Using an explicit type keeps every Value non-nil.
type Null struct{}

func (Null) value() {}

// String represents a text value.
type String string

func (String) value() {}

// Int represents an integer value. Always int64.
type Int int64

func (Int) value() {}

// Decimal represents an exact decimal value in text form.
// Construct through ParseDecimal so the text is known-valid.
type Decimal string

func (Decimal) value() {}

// Bool represents a boolean value.
type Bool bool

func (Bool) value() {}

// Date represents a calendar date with no time component.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

func (Date) value() {}

// Timestamp represents a date-and-time value, second precision plus
// milliseconds, no time zone.
type Timestamp struct {
	Time time.Time
}

func (Timestamp) value() {}

// List represents an ordered collection of values, rendered as a
// parenthesized tuple. Lists may not nest; the renderer rejects a List
// containing a List.
type List []Value

func (List) value() {}

// ParseDecimal validates the textual form of a decimal value:
// an optional sign, digits, and at most one decimal point.
func ParseDecimal(s string) (Decimal, error) {
	rest := s
	if len(rest) > 0 && (rest[0] == '+' || rest[0] == '-') {
		rest = rest[1:]
	}
	if rest == "" || rest == "." {
		return "", fmt.Errorf("invalid decimal %q", s)
	}
	seenDot := false
	for i := 0; i < len(rest); i++ {
		c := rest[i]
		if c == '.' {
			if seenDot {
				return "", fmt.Errorf("invalid decimal %q: multiple decimal points", s)
			}
			seenDot = true
			continue
		}
		if c < '0' || c > '9' {
			return "", fmt.Errorf("invalid decimal %q: unexpected character %q", s, c)
		}
	}
	return Decimal(s), nil
}

// Kind identifies the runtime type of a Value. It doubles as the
// declared type of schema columns and bound parameters, so render-time
// type checks compare a value's kind against a declared kind.
type Kind int

const (
	KindNull Kind = iota
	KindString
	KindInt
	KindDecimal
	KindBool
	KindDate
	KindTimestamp
	KindList
)

var kindNames = map[Kind]string{
	KindNull:      "null",
	KindString:    "string",
	KindInt:       "int",
	KindDecimal:   "decimal",
	KindBool:      "bool",
	KindDate:      "date",
	KindTimestamp: "timestamp",
	KindList:      "list",
}

// String returns the lowercase name of the kind.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ParseKind resolves a kind name as written in schema documents.
// KindNull and KindList are not declarable column types.
func ParseKind(name string) (Kind, error) {
	switch name {
	case "string":
		return KindString, nil
	case "int":
		return KindInt, nil
	case "decimal":
		return KindDecimal, nil
	case "bool":
		return KindBool, nil
	case "date":
		return KindDate, nil
	case "timestamp":
		return KindTimestamp, nil
	default:
		return KindNull, fmt.Errorf("unknown type %q", name)
	}
}

// KindOf returns the runtime kind of a value.
func KindOf(v Value) Kind {
	switch v.(type) {
	case Null:
		return KindNull
	case String:
		return KindString
	case Int:
		return KindInt
	case Decimal:
		return KindDecimal
	case Bool:
		return KindBool
	case Date:
		return KindDate
	case Timestamp:
		return KindTimestamp
	case List:
		return KindList
	default:
		panic(fmt.Sprintf("unknown ir.Value type %T", v))
	}
}
