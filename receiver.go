package dynskema

import (
	"fmt"
	"reflect"
	"strings"
)

// Receiver is the dispatch context of an assignment routine. Every declared
// attribute is assigned through the single Set entry point; the method set is
// kept small because its names are reserved in declarations.
type Receiver struct {
	b         *Builder
	schema    *Schema
	values    map[string]any
	defaulted map[string]bool
	err       error
}

func newReceiver(b *Builder, schema *Schema, initial map[string]any) (*Receiver, error) {
	r := &Receiver{
		b:         b,
		schema:    schema,
		values:    map[string]any{},
		defaulted: map[string]bool{},
	}
	for _, key := range schema.Keys() {
		c, _ := schema.Lookup(key)
		if c.HasDefault {
			if err := r.assignInitial(key, c, cloneValue(c.Default)); err != nil {
				return nil, err
			}
			r.defaulted[key] = true
		}
		if v, ok := initial[key]; ok {
			if err := r.assignInitial(key, c, v); err != nil {
				return nil, err
			}
			r.defaulted[key] = false
		}
	}
	return r, nil
}

// Set assigns args to the attribute declared as key. The accepted arguments
// depend on the attribute:
//
//	r.Set("model", "gpt-4o")                            // value
//	r.Set("tags", []string{"a", "b"})                   // value array, appends
//	r.Set("time", func(w *dynskema.Writer) { ... })     // value block
//	r.Set("message", "user", func(m *dynskema.Receiver) { ... })
//	r.Set("message", map[string]any{"role": "user"})    // object attributes
//
// The first error is sticky: later calls return it without effect.
func (r *Receiver) Set(key string, args ...any) error {
	if r.err != nil {
		return r.err
	}
	c, ok := r.schema.Lookup(key)
	if !ok {
		r.err = &NoSuchAttributeError{Key: key, Valid: r.schema.Keys()}
		return r.err
	}
	if err := r.assign(key, c, args); err != nil {
		r.err = err
		return err
	}
	r.defaulted[key] = false
	return nil
}

// Err returns the first error raised by Set, including errors raised inside
// nested blocks.
func (r *Receiver) Err() error { return r.err }

// Empty reports whether no attribute has been assigned.
func (r *Receiver) Empty() bool { return len(r.values) == 0 }

// ToMap flattens the receiver into a value tree keyed by external names.
func (r *Receiver) ToMap() map[string]any {
	out := make(map[string]any, len(r.values))
	for _, key := range r.schema.Keys() {
		v, ok := r.values[key]
		if !ok {
			continue
		}
		c, _ := r.schema.Lookup(key)
		out[c.Name()] = flatten(v)
	}
	return out
}

func flatten(v any) any {
	switch t := v.(type) {
	case *Receiver:
		return t.ToMap()
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = flatten(e)
		}
		return out
	}
	return v
}

func (r *Receiver) assign(key string, c *Criteria, args []any) error {
	switch c.Kind() {
	case KindObject:
		return r.assignObject(key, c, args)
	case KindObjectArray:
		return r.assignObjectArray(key, c, args)
	case KindValueArray:
		return r.assignValueArray(key, c, args)
	}
	return r.assignValue(key, c, args)
}

// assignInitial stores a default or an initial value. Object attributes take
// the value as their attribute map directly.
func (r *Receiver) assignInitial(key string, c *Criteria, v any) error {
	switch c.Kind() {
	case KindObject:
		attrs, ok := toAttrs(v)
		if !ok {
			r.values[key] = v
			return nil
		}
		nested, err := newReceiver(r.b, c.Schema, attrs)
		if err != nil {
			return err
		}
		r.values[key] = nested
		return nil
	case KindObjectArray:
		items, ok := asSlice(v)
		if !ok {
			items = []any{v}
		}
		list := make([]any, 0, len(items))
		for _, item := range items {
			attrs, ok := toAttrs(item)
			if !ok {
				list = append(list, item)
				continue
			}
			nested, err := newReceiver(r.b, c.Schema, attrs)
			if err != nil {
				return err
			}
			list = append(list, nested)
		}
		r.values[key] = list
		return nil
	case KindValueArray:
		r.values[key] = r.coerceAll(key, c, flattenArgs(v))
		return nil
	}
	r.values[key] = r.coerce(key, c, v)
	return nil
}

// cloneValue copies maps and slices recursively so defaults never alias the
// compiled schema.
func cloneValue(v any) any {
	if v == nil {
		return nil
	}
	return cloneReflect(reflect.ValueOf(v)).Interface()
}

func cloneReflect(rv reflect.Value) reflect.Value {
	switch rv.Kind() {
	case reflect.Interface:
		if rv.IsNil() {
			return rv
		}
		out := reflect.New(rv.Type()).Elem()
		out.Set(cloneReflect(rv.Elem()))
		return out
	case reflect.Map:
		if rv.IsNil() {
			return rv
		}
		out := reflect.MakeMapWithSize(rv.Type(), rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out.SetMapIndex(iter.Key(), cloneReflect(iter.Value()))
		}
		return out
	case reflect.Slice:
		if rv.IsNil() {
			return rv
		}
		out := reflect.MakeSlice(rv.Type(), rv.Len(), rv.Len())
		for i := 0; i < rv.Len(); i++ {
			out.Index(i).Set(cloneReflect(rv.Index(i)))
		}
		return out
	}
	return rv
}

func (r *Receiver) coerce(key string, c *Criteria, v any) any {
	if len(c.Types) == 0 || v == nil {
		return v
	}
	out := r.b.conv.Coerce(v, c.Types...)
	if out == nil {
		r.b.log.V(1).Info("coercion failed, keeping raw value", "key", key, "types", typeNames(c.Types), "value", v)
		return v
	}
	return out
}

func (r *Receiver) coerceAll(key string, c *Criteria, vs []any) []any {
	for i, v := range vs {
		vs[i] = r.coerce(key, c, v)
	}
	return vs
}

func (r *Receiver) assignValue(key string, c *Criteria, args []any) error {
	block, args, err := writerBlock(key, args)
	if err != nil {
		return err
	}
	var v any
	if len(args) > 0 {
		v = args[0]
	}
	v = r.coerce(key, c, v)
	if block != nil {
		if v, err = valueBlock(key, c, v, block); err != nil {
			return err
		}
	}
	r.values[key] = v
	return nil
}

func (r *Receiver) assignValueArray(key string, c *Criteria, args []any) error {
	block, args, err := writerBlock(key, args)
	if err != nil {
		return err
	}
	var first any
	if len(args) > 0 {
		first = args[0]
	}
	items := r.coerceAll(key, c, flattenArgs(first))
	if block != nil {
		for i, item := range items {
			if items[i], err = valueBlock(key, c, item, block); err != nil {
				return err
			}
		}
	}
	current, _ := r.values[key].([]any)
	if r.defaulted[key] {
		current = nil
	}
	r.values[key] = append(current, items...)
	return nil
}

func (r *Receiver) assignObject(key string, c *Criteria, args []any) error {
	block, args, err := receiverBlock(key, args)
	if err != nil {
		return err
	}
	list, err := resolveArguments(key, c.Arguments, args)
	if err != nil {
		return err
	}
	if len(list) != 1 {
		return &ArityError{Key: key, Reason: "accepts a single attributes map but a list was given"}
	}
	nested, _ := r.values[key].(*Receiver)
	if nested == nil || len(list[0]) > 0 {
		if nested, err = newReceiver(r.b, c.Schema, list[0]); err != nil {
			return err
		}
	}
	if err := nested.evaluate(block); err != nil {
		return err
	}
	r.values[key] = nested
	return nil
}

func (r *Receiver) assignObjectArray(key string, c *Criteria, args []any) error {
	block, args, err := receiverBlock(key, args)
	if err != nil {
		return err
	}
	list, err := resolveArguments(key, c.Arguments, args)
	if err != nil {
		return err
	}
	current, _ := r.values[key].([]any)
	if r.defaulted[key] {
		current = nil
	}
	for _, attrs := range list {
		nested, err := newReceiver(r.b, c.Schema, attrs)
		if err != nil {
			return err
		}
		if err := nested.evaluate(block); err != nil {
			return err
		}
		current = append(current, nested)
	}
	r.values[key] = current
	return nil
}

func (r *Receiver) evaluate(block func(*Receiver)) error {
	if block != nil {
		block(r)
	}
	return r.err
}

// resolveArguments maps positional args onto the declared argument names and
// merges a trailing attributes map. A trailing list of maps yields one
// attribute set per element.
func resolveArguments(key string, names []string, args []any) ([]map[string]any, error) {
	count, required := len(args), len(names)
	if count < required {
		return nil, &ArityError{Key: key, Want: fmt.Sprintf("%d (%s)", required, strings.Join(names, ", ")), Given: count}
	}
	if count > required+1 {
		return nil, &ArityError{Key: key, Given: count, Reason: fmt.Sprintf("accepts at most %d arguments but %d was given", required+1, count)}
	}
	base := make(map[string]any, required)
	for i, name := range names {
		base[name] = args[i]
	}
	if count == required {
		return []map[string]any{base}, nil
	}
	last := args[count-1]
	if last == nil {
		return []map[string]any{base}, nil
	}
	if attrs, ok := toAttrs(last); ok {
		return []map[string]any{merge(base, attrs)}, nil
	}
	items, ok := asSlice(last)
	if !ok {
		return nil, &ArityError{Key: key, Given: count, Reason: fmt.Sprintf("expects an attributes map as the trailing argument but %T was given", last)}
	}
	out := make([]map[string]any, 0, len(items))
	for _, item := range items {
		attrs, ok := toAttrs(item)
		if !ok {
			return nil, &ArityError{Key: key, Given: count, Reason: fmt.Sprintf("expects a list of attributes maps but found %T", item)}
		}
		out = append(out, merge(base, attrs))
	}
	return out, nil
}

func merge(base, attrs map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(attrs))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range attrs {
		out[k] = v
	}
	return out
}

// toAttrs accepts any map keyed by strings.
func toAttrs(v any) (map[string]any, bool) {
	switch t := v.(type) {
	case map[string]any:
		return t, true
	case *Receiver, nil:
		return nil, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		return nil, false
	}
	out := make(map[string]any, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		out[iter.Key().String()] = iter.Value().Interface()
	}
	return out, true
}

// flattenArgs turns an argument into the list of elements it contributes,
// expanding nested sequences.
func flattenArgs(v any) []any {
	items, ok := asSlice(v)
	if !ok {
		return []any{v}
	}
	out := make([]any, 0, len(items))
	for _, item := range items {
		out = append(out, flattenArgs(item)...)
	}
	return out
}

func writerBlock(key string, args []any) (func(*Writer), []any, error) {
	n := len(args)
	if n == 0 {
		return nil, args, nil
	}
	switch fn := args[n-1].(type) {
	case func(*Writer):
		return fn, args[:n-1], nil
	case func(*Receiver):
		return nil, nil, &ArityError{Key: key, Given: n, Reason: "is a value and cannot take an attribute block"}
	}
	return nil, args, nil
}

func receiverBlock(key string, args []any) (func(*Receiver), []any, error) {
	n := len(args)
	if n == 0 {
		return nil, args, nil
	}
	switch fn := args[n-1].(type) {
	case func(*Receiver):
		return fn, args[:n-1], nil
	case func(*Writer):
		return nil, nil, &ArityError{Key: key, Given: n, Reason: "is an object and cannot take a value block"}
	}
	return nil, args, nil
}
