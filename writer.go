package dynskema

import (
	"fmt"
	"reflect"
)

// FieldSetter lets a value receive writes from a value block without
// reflection. SetField reports whether name was accepted.
type FieldSetter interface {
	SetField(name string, value any) bool
}

// Writer is the write-proxy handed to value blocks. Each Set call assigns one
// field of the target.
type Writer struct {
	target reflect.Value
	// deref is set when the target was copied into a pointer and must be
	// returned by value.
	deref bool
	err   error
}

func newWriter(v any) *Writer {
	w := &Writer{}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Struct {
		ptr := reflect.New(rv.Type())
		ptr.Elem().Set(rv)
		rv, w.deref = ptr, true
	}
	w.target = rv
	return w
}

// Set assigns the single argument to the target field name. The first error is
// sticky.
func (w *Writer) Set(name string, args ...any) error {
	if w.err != nil {
		return w.err
	}
	if !w.settable(name) {
		w.err = &AssignmentTargetError{Key: name, Target: w.targetName()}
		return w.err
	}
	if len(args) != 1 {
		w.err = &ArityError{Key: name, Want: "1", Given: len(args)}
		return w.err
	}
	if err := w.set(name, args[0]); err != nil {
		w.err = &AssignmentTargetError{Key: name, Target: w.targetName(), Cause: err}
	}
	return w.err
}

// Err returns the first error raised by Set.
func (w *Writer) Err() error { return w.err }

// Value returns the (possibly updated) target.
func (w *Writer) Value() any {
	if !w.target.IsValid() {
		return nil
	}
	if w.deref {
		return w.target.Elem().Interface()
	}
	return w.target.Interface()
}

func (w *Writer) targetName() string {
	if !w.target.IsValid() {
		return "nil"
	}
	return typeName(w.target.Type())
}

func (w *Writer) settable(name string) bool {
	if !w.target.IsValid() {
		return false
	}
	if _, ok := w.target.Interface().(FieldSetter); ok {
		return true
	}
	if isStringMap(w.target) {
		return true
	}
	_, ok := w.field(name)
	return ok
}

func (w *Writer) set(name string, v any) error {
	if fs, ok := w.target.Interface().(FieldSetter); ok {
		if !fs.SetField(name, v) {
			return fmt.Errorf("%s rejected the value", name)
		}
		return nil
	}
	if isStringMap(w.target) {
		if w.target.IsNil() {
			return fmt.Errorf("the map is nil")
		}
		return assignValue(reflect.New(w.target.Type().Elem()).Elem(), v, func(val reflect.Value) {
			w.target.SetMapIndex(reflect.ValueOf(name).Convert(w.target.Type().Key()), val)
		})
	}
	f, _ := w.field(name)
	return assignValue(f, v, func(reflect.Value) {})
}

// assignValue stores v into dst (converting when the kinds allow it) and then
// calls commit with dst.
func assignValue(dst reflect.Value, v any, commit func(reflect.Value)) error {
	if v == nil {
		dst.Set(reflect.Zero(dst.Type()))
		commit(dst)
		return nil
	}
	rv := reflect.ValueOf(v)
	switch {
	case rv.Type().AssignableTo(dst.Type()):
		dst.Set(rv)
	case rv.Type().ConvertibleTo(dst.Type()) && sameKindFamily(rv.Kind(), dst.Kind()):
		dst.Set(rv.Convert(dst.Type()))
	default:
		return fmt.Errorf("cannot use %T as %s", v, dst.Type())
	}
	commit(dst)
	return nil
}

// sameKindFamily limits conversions to identical kinds and numeric widening or
// narrowing, so an int never turns into a string.
func sameKindFamily(a, b reflect.Kind) bool {
	numeric := func(k reflect.Kind) bool { return k >= reflect.Int && k <= reflect.Float64 }
	return a == b || numeric(a) && numeric(b)
}

func isStringMap(rv reflect.Value) bool {
	return rv.Kind() == reflect.Map && rv.Type().Key().Kind() == reflect.String
}

// valueBlock runs block against v, constructing a zero instance of the single
// declared type when v is nil.
func valueBlock(key string, c *Criteria, v any, block func(*Writer)) (any, error) {
	if v == nil {
		inst, err := construct(key, c.Types)
		if err != nil {
			return nil, err
		}
		v = inst
	}
	w := newWriter(v)
	block(w)
	if w.err != nil {
		return nil, w.err
	}
	return w.Value(), nil
}

func construct(key string, types []*Type) (any, error) {
	switch len(types) {
	case 0:
		return nil, &ConstructionError{Key: key, Reason: "no type was declared"}
	case 1:
	default:
		return nil, &ConstructionError{Key: key, Reason: "multiple types were specified"}
	}
	t := types[0]
	if t.New == nil {
		return nil, &ConstructionError{Key: key, Reason: fmt.Sprintf("'%s' cannot be constructed", t)}
	}
	inst, err := t.New()
	if err != nil {
		return nil, &ConstructionError{Key: key, Reason: fmt.Sprintf("'%s' could not be constructed", t), Cause: err}
	}
	if inst == nil {
		return nil, &ConstructionError{Key: key, Reason: fmt.Sprintf("'%s' could not be constructed", t)}
	}
	return inst, nil
}
