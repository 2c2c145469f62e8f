package dynskema

import (
	"fmt"
	"sync"
)

// StructType is an accessor type generated from a Schema. Its Struct
// instances hold raw attributes (keyed by external names) and coerce them
// lazily on read. Defaults are not applied.
type StructType struct {
	b      *Builder
	byName map[string]*Criteria
	family *structFamily
}

// structFamily shares nested StructTypes so self-referencing schemas resolve
// to a finite set of types.
type structFamily struct {
	mu    sync.Mutex
	types map[*Schema]*StructType
}

// NewStructType returns the accessor type for schema. Converter and logger
// options are the Builder's.
func NewStructType(schema *Schema, opts ...BuilderOption) *StructType {
	b := NewBuilder(schema, opts...)
	fam := &structFamily{types: map[*Schema]*StructType{}}
	return fam.get(b, b.schema)
}

// DefineStruct compiles decl and returns its accessor type.
func DefineStruct(decl *Declaration, opts ...BuilderOption) (*StructType, error) {
	s, err := Compile(decl)
	if err != nil {
		return nil, err
	}
	return NewStructType(s, opts...), nil
}

func (f *structFamily) get(parent *Builder, schema *Schema) *StructType {
	f.mu.Lock()
	defer f.mu.Unlock()
	if st, ok := f.types[schema]; ok {
		return st
	}
	st := &StructType{
		b:      &Builder{schema: schema, conv: parent.conv, log: parent.log},
		byName: make(map[string]*Criteria, schema.Len()),
		family: f,
	}
	schema.Each(func(_ string, c *Criteria) { st.byName[c.Name()] = c })
	f.types[schema] = st
	return st
}

// Schema returns the schema the type was generated from.
func (st *StructType) Schema() *Schema { return st.b.schema }

// Converter registers fn for t on this type and every nested type.
func (st *StructType) Converter(t *Type, fn ConvertFunc) *StructType {
	st.b.conv.Register(t, fn)
	return st
}

// Build returns an instance holding a copy of attrs, then runs fns on it. No
// validation happens.
func (st *StructType) Build(attrs map[string]any, fns ...func(*Struct)) *Struct {
	s := &Struct{typ: st, attrs: make(map[string]any, len(attrs)), coerced: map[string]any{}}
	for k, v := range attrs {
		s.attrs[k] = v
	}
	for _, fn := range fns {
		if fn != nil {
			fn(s)
		}
	}
	return s
}

// BuildStrict is like Build but returns the first validation error.
func (st *StructType) BuildStrict(attrs map[string]any, fns ...func(*Struct)) (*Struct, error) {
	s := st.Build(attrs, fns...)
	if err := s.ValidateFirst(); err != nil {
		return nil, err
	}
	return s, nil
}

// Struct is an instance of a StructType.
type Struct struct {
	typ     *StructType
	attrs   map[string]any
	coerced map[string]any
}

// Type returns the instance's StructType.
func (s *Struct) Type() *StructType { return s.typ }

func (s *Struct) lookup(name string) (*Criteria, error) {
	c, ok := s.typ.byName[name]
	if !ok {
		return nil, &NoSuchAttributeError{Key: name, Valid: s.names()}
	}
	return c, nil
}

func (s *Struct) names() []string {
	keys := s.typ.b.schema.Keys()
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		c, _ := s.typ.b.schema.Lookup(k)
		out = append(out, c.Name())
	}
	return out
}

// Get returns the coerced value of the attribute name. Object attributes are
// returned as *Struct (or []*Struct for arrays); the result is memoized until
// the next Set.
func (s *Struct) Get(name string) (any, error) {
	c, err := s.lookup(name)
	if err != nil {
		return nil, err
	}
	if !c.Object && len(c.Types) == 0 {
		return s.attrs[name], nil
	}
	if v, ok := s.coerced[name]; ok {
		return v, nil
	}
	raw := s.attrs[name]
	var v any
	switch {
	case c.Object:
		v = s.nested(c, raw)
	case c.Array:
		items := elements(raw)
		if raw == nil {
			items = nil
		}
		list := make([]any, len(items))
		for i, item := range items {
			list[i] = s.coerce(c, item)
		}
		v = list
	default:
		v = s.coerce(c, raw)
	}
	s.coerced[name] = v
	return v, nil
}

func (s *Struct) coerce(c *Criteria, v any) any {
	return s.typ.b.conv.CoerceOr(v, c.Types, func(raw any) any { return raw })
}

func (s *Struct) nested(c *Criteria, raw any) any {
	st := s.typ.family.get(s.typ.b, c.Schema)
	one := func(v any) any {
		if ns, ok := v.(*Struct); ok {
			return ns
		}
		if v == nil {
			return st.Build(nil)
		}
		attrs, ok := toAttrs(v)
		if !ok {
			return v
		}
		return st.Build(attrs)
	}
	if !c.Array {
		return one(raw)
	}
	var items []any
	if raw != nil {
		items = elements(raw)
	}
	list := make([]*Struct, 0, len(items))
	for _, item := range items {
		ns, ok := one(item).(*Struct)
		if !ok {
			// Raw lists with foreign elements are left for the validator.
			return raw
		}
		list = append(list, ns)
	}
	return list
}

// Struct returns the nested instance of an Object attribute.
func (s *Struct) Struct(name string) (*Struct, error) {
	v, err := s.Get(name)
	if err != nil {
		return nil, err
	}
	ns, ok := v.(*Struct)
	if !ok {
		return nil, fmt.Errorf("dynskema: attribute %q is not a nested object (%T)", name, v)
	}
	return ns, nil
}

// Structs returns the nested instances of an Object array attribute.
func (s *Struct) Structs(name string) ([]*Struct, error) {
	v, err := s.Get(name)
	if err != nil {
		return nil, err
	}
	list, ok := v.([]*Struct)
	if !ok {
		return nil, fmt.Errorf("dynskema: attribute %q is not a nested object array (%T)", name, v)
	}
	return list, nil
}

// Set stores the raw value and drops the memoized one.
func (s *Struct) Set(name string, v any) error {
	if _, err := s.lookup(name); err != nil {
		return err
	}
	delete(s.coerced, name)
	s.attrs[name] = v
	return nil
}

// ToMap returns the coerced attributes keyed by external names. Nil values
// and empty maps or sequences are omitted.
func (s *Struct) ToMap() map[string]any {
	out := map[string]any{}
	for _, name := range s.names() {
		v, _ := s.Get(name)
		if v = structToMap(v); v != nil {
			out[name] = v
		}
	}
	return out
}

func structToMap(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case *Struct:
		m := t.ToMap()
		if len(m) == 0 {
			return nil
		}
		return m
	case []*Struct:
		if len(t) == 0 {
			return nil
		}
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = structToMap(e)
		}
		return out
	case map[string]any:
		if len(t) == 0 {
			return nil
		}
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = structToMap(e)
		}
		return out
	case []any:
		if len(t) == 0 {
			return nil
		}
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = structToMap(e)
		}
		return out
	}
	return v
}

// raw returns the raw attribute tree, with memoized nested instances
// contributing their own raw attributes.
func (s *Struct) raw() map[string]any {
	out := make(map[string]any, len(s.attrs))
	for k, v := range s.attrs {
		out[k] = rawValue(v)
	}
	for k, v := range s.coerced {
		switch v.(type) {
		case *Struct, []*Struct:
		default:
			continue
		}
		rv := rawValue(v)
		if _, set := s.attrs[k]; set || !isEmpty(rv, true) {
			out[k] = rv
		}
	}
	return out
}

func rawValue(v any) any {
	switch t := v.(type) {
	case *Struct:
		return t.raw()
	case []*Struct:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = e.raw()
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = rawValue(e)
		}
		return out
	}
	return v
}

// Validate collects every validation error of the raw attributes.
func (s *Struct) Validate() ValidationErrors { return Validate(s.raw(), s.typ.b.schema) }

// ValidateFirst returns the first validation error of the raw attributes.
func (s *Struct) ValidateFirst() error { return ValidateFirst(s.raw(), s.typ.b.schema) }

// Valid reports whether the raw attributes are valid.
func (s *Struct) Valid() bool { return Valid(s.raw(), s.typ.b.schema) }
