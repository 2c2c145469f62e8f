package dynskema

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
)

// Option configures one attribute declaration.
type Option func(*Criteria) error

// Default sets the value assigned before any explicit assignment.
func Default(v any) Option {
	return func(c *Criteria) error {
		c.Default = v
		c.HasDefault = true
		return nil
	}
}

// Required makes the validator reject absent or empty values.
func Required() Option {
	return func(c *Criteria) error { c.Required = true; return nil }
}

// As renames the attribute in built trees.
func As(name string) Option {
	return func(c *Criteria) error { c.As = name; return nil }
}

// Array makes assignments accumulate into a sequence.
func Array() Option {
	return func(c *Criteria) error { c.Array = true; return nil }
}

// Arguments names the positional arguments accepted by a nested attribute.
func Arguments(names ...string) Option {
	return func(c *Criteria) error {
		c.Arguments = append([]string(nil), names...)
		return nil
	}
}

// In restricts values to set. set must be a Membership, a MembershipFunc,
// a slice or array, or a map (key membership).
func In(set any) Option {
	return func(c *Criteria) error {
		m, err := membershipOf(set)
		if err != nil {
			return err
		}
		c.In = m
		return nil
	}
}

// Membership tests whether a value belongs to an allowed set. Sets built
// from slices and maps also implement Enumerable.
type Membership interface {
	Contains(v any) bool
}

// Enumerable is a Membership that can list its members.
type Enumerable interface {
	Membership
	Values() []any
}

// MembershipFunc adapts a predicate to Membership.
type MembershipFunc func(v any) bool

func (f MembershipFunc) Contains(v any) bool { return f(v) }

func (f MembershipFunc) String() string { return "<func>" }

type valueSet struct {
	values []any
}

func (s valueSet) Contains(v any) bool {
	for _, e := range s.values {
		if equalValues(e, v) {
			return true
		}
	}
	return false
}

func (s valueSet) String() string { return fmt.Sprint(s.values) }

// Values returns a copy of the allowed values.
func (s valueSet) Values() []any { return append([]any(nil), s.values...) }

type keySet struct {
	m reflect.Value
}

func (s keySet) Contains(v any) bool {
	if v == nil {
		return false
	}
	kv := reflect.ValueOf(v)
	if !kv.Comparable() {
		return false
	}
	kt := s.m.Type().Key()
	if !kv.Type().AssignableTo(kt) {
		if !kv.Type().ConvertibleTo(kt) || kv.Kind() != kt.Kind() {
			return false
		}
		kv = kv.Convert(kt)
	}
	return s.m.MapIndex(kv).IsValid()
}

func (s keySet) String() string { return fmt.Sprint(s.Values()) }

// Values returns the map keys, sorted by their printed form.
func (s keySet) Values() []any {
	keys := make([]any, 0, s.m.Len())
	for _, k := range s.m.MapKeys() {
		keys = append(keys, k.Interface())
	}
	sort.Slice(keys, func(i, j int) bool { return fmt.Sprint(keys[i]) < fmt.Sprint(keys[j]) })
	return keys
}

// NumericRange is an inclusive numeric interval.
type NumericRange struct {
	Min, Max float64
}

// Range returns the inclusive numeric interval [min, max].
func Range(min, max float64) NumericRange { return NumericRange{Min: min, Max: max} }

func (r NumericRange) Contains(v any) bool {
	f, ok := toFloat64(v)
	if !ok {
		return false
	}
	return f >= r.Min && f <= r.Max
}

func (r NumericRange) String() string { return fmt.Sprintf("%g..%g", r.Min, r.Max) }

func membershipOf(set any) (Membership, error) {
	switch t := set.(type) {
	case nil:
		return nil, fmt.Errorf("includes the in option but it is nil")
	case Membership:
		return t, nil
	case func(any) bool:
		return MembershipFunc(t), nil
	}
	rv := reflect.ValueOf(set)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		values := make([]any, rv.Len())
		for i := range values {
			values[i] = rv.Index(i).Interface()
		}
		return valueSet{values: values}, nil
	case reflect.Map:
		return keySet{m: rv}, nil
	}
	return nil, fmt.Errorf("includes the in option but %T does not provide a membership test", set)
}

// equalValues compares with == when both values are comparable and falls back
// to reflect.DeepEqual otherwise. Numbers of different kinds compare by value.
func equalValues(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta == tb {
		if reflect.ValueOf(a).Comparable() && reflect.ValueOf(b).Comparable() {
			return a == b
		}
		return reflect.DeepEqual(a, b)
	}
	if sa, ok := symbolOrString(a); ok {
		sb, ok := symbolOrString(b)
		return ok && sa == sb
	}
	if _, isNum := b.(json.Number); isNum || isInteger(a) || isInteger(b) || Float.Is(a) || Float.Is(b) {
		fa, okA := toFloat64(a)
		fb, okB := toFloat64(b)
		return okA && okB && fa == fb
	}
	return false
}

// symbolOrString lets a Symbol match its string form in membership sets.
func symbolOrString(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case Symbol:
		return string(t), true
	}
	return "", false
}
