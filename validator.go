package dynskema

import (
	"reflect"
	"strconv"
)

// ValidateOption configures validation.
type ValidateOption func(*validateConfig)

type validateConfig struct {
	presence PresenceMap
}

// WithPresence skips type checks for attributes whose value came purely from a
// default, as recorded by BuildWithMeta.
func WithPresence(pm PresenceMap) ValidateOption {
	return func(c *validateConfig) { c.presence = pm }
}

// Validate walks schema depth-first in declaration order and collects every
// error found in tree.
func Validate(tree map[string]any, schema *Schema, opts ...ValidateOption) ValidationErrors {
	var errs ValidationErrors
	newValidator(opts).walk(tree, schema, "", "", func(e *ValidationError) bool {
		errs = append(errs, e)
		return true
	})
	return errs
}

// ValidateFirst returns the first error found in tree, or nil.
func ValidateFirst(tree map[string]any, schema *Schema, opts ...ValidateOption) error {
	var first *ValidationError
	newValidator(opts).walk(tree, schema, "", "", func(e *ValidationError) bool {
		first = e
		return false
	})
	if first == nil {
		return nil
	}
	return first
}

// Valid reports whether tree has no errors, stopping at the first one.
func Valid(tree map[string]any, schema *Schema, opts ...ValidateOption) bool {
	return ValidateFirst(tree, schema, opts...) == nil
}

type validator struct {
	cfg validateConfig
}

func newValidator(opts []ValidateOption) *validator {
	v := &validator{}
	for _, opt := range opts {
		opt(&v.cfg)
	}
	return v
}

// walk reports false once emit asked to stop.
func (v *validator) walk(tree map[string]any, schema *Schema, path, ptr string, emit func(*ValidationError) bool) bool {
	for _, key := range schema.Keys() {
		c, _ := schema.Lookup(key)
		name := c.Name()
		p := ptr + "/" + EscapePointer(name)
		value, present := tree[name]

		switch {
		case c.Required && isEmpty(value, present):
			if !emit(newRequiredError(path, key, p)) {
				return false
			}
		case c.In != nil:
			for i, e := range elements(value) {
				if e == nil || c.In.Contains(e) {
					continue
				}
				if !emit(newInOptionError(path, key, elementPointer(p, value, i), c.In, e)) {
					return false
				}
			}
		case value == nil || v.defaulted(p):
		case c.Object:
			if !v.walkObject(c, value, keyPath(path, key), p, emit) {
				return false
			}
		case len(c.Types) > 0:
			items := []any{value}
			if c.Array {
				items = elements(value)
			}
			for i, e := range items {
				if matchesAny(e, c.Types) {
					continue
				}
				ep := p
				if c.Array {
					ep = elementPointer(p, value, i)
				}
				if !emit(newIncompatibleTypeError(path, key, ep, c.Types, e)) {
					return false
				}
			}
		}
	}
	return true
}

func (v *validator) walkObject(c *Criteria, value any, path, ptr string, emit func(*ValidationError) bool) bool {
	items := []any{value}
	if c.Array {
		items = elements(value)
	}
	for i, item := range items {
		ip := ptr
		if c.Array {
			ip = elementPointer(ptr, value, i)
		}
		attrs, ok := toAttrs(item)
		if !ok {
			parent, key := splitPath(path)
			if !emit(newIncompatibleTypeError(parent, key, ip, []*Type{Object}, item)) {
				return false
			}
			continue
		}
		if !v.walk(attrs, c.Schema, path, ip, emit) {
			return false
		}
	}
	return true
}

func (v *validator) defaulted(ptr string) bool {
	return v.cfg.presence != nil && v.cfg.presence.Has(ptr, PresenceDefaultApplied)
}

func matchesAny(v any, types []*Type) bool {
	for _, t := range types {
		if t.Is != nil && t.Is(v) {
			return true
		}
	}
	return false
}

// elements treats a scalar as a one-element sequence.
func elements(v any) []any {
	if s, ok := asSlice(v); ok {
		return s
	}
	return []any{v}
}

func elementPointer(p string, value any, i int) string {
	if !isSequence(value) {
		return p
	}
	return p + "/" + strconv.Itoa(i)
}

// isEmpty reports absent, nil, zero-length strings, slices and maps.
// false and 0 are values here and satisfy Required.
func isEmpty(v any, present bool) bool {
	if !present || v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String, reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() == 0
	}
	return false
}

func splitPath(path string) (string, string) {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[:i], path[i+1:]
		}
	}
	return "", path
}
