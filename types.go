package dynskema

import (
	"encoding/json"
	"fmt"
	"math/big"
	"net/url"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Type identifies a target type for coercion and validation. Types are
// compared by identity; use the predefined values or TypeOf.
type Type struct {
	// Name is used in error messages and by LookupType.
	Name string
	// Is reports whether v already is a value of this type.
	Is func(v any) bool
	// New constructs a zero instance for value blocks. Nil when the type
	// cannot be constructed without an explicit value.
	New func() (any, error)
}

func (t *Type) String() string {
	if t == nil {
		return "<nil>"
	}
	return t.Name
}

// Symbol is an interned-name value, distinct from free-form strings.
type Symbol string

func (s Symbol) String() string { return string(s) }

// Date is a calendar date without a time of day.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf returns the calendar date of t in t's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// Time returns midnight UTC of the date.
func (d Date) Time() time.Time { return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC) }

func (d Date) String() string { return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day) }

// MarshalText renders the date as YYYY-MM-DD.
func (d Date) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

// Built-in types. Object is a marker for nested attributes and never matches a
// value directly.
var (
	String = &Type{Name: "String", Is: func(v any) bool {
		switch v.(type) {
		case nil, Symbol, json.Number:
			return false
		}
		return reflect.TypeOf(v).Kind() == reflect.String
	}}
	SymbolType = &Type{Name: "Symbol", Is: isSymbol}
	Integer    = &Type{Name: "Integer", Is: isInteger}
	Float      = &Type{Name: "Float", Is: func(v any) bool {
		if v == nil {
			return false
		}
		k := reflect.TypeOf(v).Kind()
		return k == reflect.Float32 || k == reflect.Float64
	}}
	Rational = &Type{Name: "Rational", Is: func(v any) bool {
		_, ok := v.(*big.Rat)
		return ok
	}, New: func() (any, error) { return new(big.Rat), nil }}
	Bool = &Type{Name: "Bool", Is: func(v any) bool {
		_, ok := v.(bool)
		return ok
	}}
	Time = &Type{Name: "Time", Is: func(v any) bool {
		_, ok := v.(time.Time)
		return ok
	}}
	DateType = &Type{Name: "Date", Is: func(v any) bool {
		_, ok := v.(Date)
		return ok
	}}
	URI = &Type{Name: "URI", Is: func(v any) bool {
		_, ok := v.(*url.URL)
		return ok
	}, New: func() (any, error) { return &url.URL{}, nil }}
	UUID = &Type{Name: "UUID", Is: func(v any) bool {
		_, ok := v.(uuid.UUID)
		return ok
	}}
	ArrayType = &Type{Name: "Array", Is: isSequence, New: func() (any, error) { return []any{}, nil }}
	Map       = &Type{Name: "Map", Is: func(v any) bool {
		_, ok := v.(map[string]any)
		return ok
	}, New: func() (any, error) { return map[string]any{}, nil }}
	Object = &Type{Name: "Object", Is: func(any) bool { return false }}
)

func isSymbol(v any) bool {
	_, ok := v.(Symbol)
	return ok
}

func isInteger(v any) bool {
	if v == nil {
		return false
	}
	switch reflect.TypeOf(v).Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	}
	return false
}

func isSequence(v any) bool {
	if v == nil {
		return false
	}
	switch v.(type) {
	case []byte, json.RawMessage:
		return false
	}
	k := reflect.TypeOf(v).Kind()
	return k == reflect.Slice || k == reflect.Array
}

// TypeOf derives a Type for the Go type T. Values match when their dynamic
// type is T (or assignable to an interface T). Pointer types construct a fresh
// element so value blocks can mutate it.
func TypeOf[T any]() *Type {
	rt := reflect.TypeOf((*T)(nil)).Elem()
	t := &Type{Name: typeName(rt)}
	t.Is = func(v any) bool {
		if v == nil {
			return false
		}
		vt := reflect.TypeOf(v)
		if rt.Kind() == reflect.Interface {
			return vt.Implements(rt)
		}
		return vt == rt
	}
	switch rt.Kind() {
	case reflect.Interface:
	case reflect.Pointer:
		t.New = func() (any, error) { return reflect.New(rt.Elem()).Interface(), nil }
	default:
		t.New = func() (any, error) { return reflect.Zero(rt).Interface(), nil }
	}
	return t
}

func typeName(rt reflect.Type) string {
	if rt.Kind() == reflect.Pointer {
		return typeName(rt.Elem())
	}
	if rt.Name() != "" {
		return rt.Name()
	}
	return rt.String()
}

var (
	typesMu      sync.RWMutex
	typeRegistry = map[string]*Type{}
)

func init() {
	for _, t := range []*Type{String, SymbolType, Integer, Float, Rational, Bool, Time, DateType, URI, UUID, ArrayType, Map, Object} {
		typeRegistry[strings.ToLower(t.Name)] = t
	}
}

// RegisterType makes t available to LookupType under its name
// (case-insensitive). Registering an existing name replaces it.
func RegisterType(t *Type) {
	if t == nil || t.Name == "" {
		return
	}
	typesMu.Lock()
	typeRegistry[strings.ToLower(t.Name)] = t
	typesMu.Unlock()
}

// LookupType returns the registered type with the given name.
func LookupType(name string) (*Type, bool) {
	typesMu.RLock()
	t, ok := typeRegistry[strings.ToLower(strings.TrimSpace(name))]
	typesMu.RUnlock()
	return t, ok
}

// typeNames renders a candidate list for messages.
func typeNames(ts []*Type) string {
	names := make([]string, 0, len(ts))
	for _, t := range ts {
		names = append(names, t.String())
	}
	return strings.Join(names, ", ")
}
