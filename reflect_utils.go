package dynskema

import (
	"reflect"
	"strings"
)

// field finds the exported struct field for name. Field keys resolve as
// dynskema tag, then json tag, then the field name; matching ignores case and
// underscores so "first_name" finds FirstName.
func (w *Writer) field(name string) (reflect.Value, bool) {
	rv := w.target
	if rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return reflect.Value{}, false
	}
	rv = rv.Elem()
	rt := rv.Type()
	want := normalizeName(name)
	for i := 0; i < rt.NumField(); i++ {
		sf := rt.Field(i)
		if !sf.IsExported() {
			continue
		}
		key := ResolveFieldKey(sf)
		if key == "-" {
			continue
		}
		if normalizeName(key) == want || normalizeName(sf.Name) == want {
			return rv.Field(i), true
		}
	}
	return reflect.Value{}, false
}

// ResolveFieldKey resolves the external key of a struct field.
// Priority: dynskema:"name" > json tag name > field name; "-" disables the field.
func ResolveFieldKey(sf reflect.StructField) string {
	if tag := sf.Tag.Get("dynskema"); tag != "" {
		if i := strings.IndexByte(tag, ','); i >= 0 {
			tag = tag[:i]
		}
		if tag != "" {
			return tag
		}
	}
	if jt := sf.Tag.Get("json"); jt != "" {
		if jt == "-" {
			return "-"
		}
		if i := strings.IndexByte(jt, ','); i >= 0 {
			jt = jt[:i]
		}
		if jt != "" {
			return jt
		}
	}
	return sf.Name
}
