package dynskema

import (
	"github.com/go-logr/logr"
)

// Builder constructs value trees from a compiled Schema. A Builder may be used
// for concurrent Build calls as long as Converter is not called concurrently.
type Builder struct {
	schema *Schema
	conv   *Converters
	log    logr.Logger
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithLogger sets the logger used to trace coercion misses (at V(1)).
func WithLogger(l logr.Logger) BuilderOption {
	return func(b *Builder) { b.log = l }
}

// WithConverters replaces the converter table with a copy of c.
func WithConverters(c *Converters) BuilderOption {
	return func(b *Builder) {
		if c != nil {
			b.conv = c.Clone()
		}
	}
}

// NewBuilder returns a Builder for schema with its own copy of the default
// converters.
func NewBuilder(schema *Schema, opts ...BuilderOption) *Builder {
	if schema == nil {
		schema = newSchema()
	}
	b := &Builder{schema: schema, conv: DefaultConverters(), log: logr.Discard()}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// New compiles decl and returns a Builder for it.
func New(decl *Declaration, opts ...BuilderOption) (*Builder, error) {
	s, err := Compile(decl)
	if err != nil {
		return nil, err
	}
	return NewBuilder(s, opts...), nil
}

// MustNew is like New but panics on error.
func MustNew(decl *Declaration, opts ...BuilderOption) *Builder {
	b, err := New(decl, opts...)
	if err != nil {
		panic(err)
	}
	return b
}

// Schema returns the compiled schema.
func (b *Builder) Schema() *Schema { return b.schema }

// Converter registers fn for t on this builder only.
func (b *Builder) Converter(t *Type, fn ConvertFunc) *Builder {
	b.conv.Register(t, fn)
	return b
}

// Build assigns defaults, then values (keyed by declared names), then runs fn,
// and returns the resulting value tree. Uncoercible input is kept raw; use
// BuildStrict or Validate to reject it.
func (b *Builder) Build(values map[string]any, fn func(*Receiver)) (map[string]any, error) {
	r, err := b.receive(values, fn)
	if err != nil {
		return nil, err
	}
	return r.ToMap(), nil
}

// BuildWithMeta is like Build and also reports which attributes were
// assigned or defaulted.
func (b *Builder) BuildWithMeta(values map[string]any, fn func(*Receiver)) (Built, error) {
	r, err := b.receive(values, fn)
	if err != nil {
		return Built{}, err
	}
	pm := PresenceMap{"": PresenceSeen}
	r.collectPresence("", pm)
	return Built{Value: r.ToMap(), Presence: pm}, nil
}

// BuildStrict builds and validates. It returns the first validation error
// and no tree when the result is invalid.
func (b *Builder) BuildStrict(values map[string]any, fn func(*Receiver)) (map[string]any, error) {
	built, err := b.BuildWithMeta(values, fn)
	if err != nil {
		return nil, err
	}
	if err := ValidateFirst(built.Value, b.schema, WithPresence(built.Presence)); err != nil {
		return nil, err
	}
	return built.Value, nil
}

func (b *Builder) receive(values map[string]any, fn func(*Receiver)) (*Receiver, error) {
	r, err := newReceiver(b, b.schema, values)
	if err != nil {
		return nil, err
	}
	if err := r.evaluate(fn); err != nil {
		return nil, err
	}
	return r, nil
}

// Validate collects every validation error of tree against the builder's schema.
func (b *Builder) Validate(tree map[string]any, opts ...ValidateOption) ValidationErrors {
	return Validate(tree, b.schema, opts...)
}

// ValidateFirst returns the first validation error, if any.
func (b *Builder) ValidateFirst(tree map[string]any, opts ...ValidateOption) error {
	return ValidateFirst(tree, b.schema, opts...)
}

// Valid reports whether tree is valid.
func (b *Builder) Valid(tree map[string]any, opts ...ValidateOption) bool {
	return Valid(tree, b.schema, opts...)
}
