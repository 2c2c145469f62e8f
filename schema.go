package dynskema

import "fmt"

// Kind tags a Criteria by the assignment semantics it needs.
type Kind int

const (
	KindValue Kind = iota
	KindValueArray
	KindObject
	KindObjectArray
)

func (k Kind) String() string {
	switch k {
	case KindValue:
		return "value"
	case KindValueArray:
		return "value_array"
	case KindObject:
		return "object"
	case KindObjectArray:
		return "object_array"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Criteria holds the declared constraints of one attribute. Compiled criteria
// are shared by every builder of a schema and must be treated as read-only.
type Criteria struct {
	Key string
	// Types is the ordered candidate list; empty means untyped passthrough.
	Types []*Type
	// Object marks a nested attribute; Schema is set iff Object is true.
	Object     bool
	Schema     *Schema
	Default    any
	HasDefault bool
	Required   bool
	In         Membership
	// As is the external name used in built trees (defaults to Key).
	As        string
	Array     bool
	Arguments []string
}

// Name returns the external name of the attribute.
func (c *Criteria) Name() string {
	if c.As != "" {
		return c.As
	}
	return c.Key
}

// Kind reports the assignment semantics of the attribute.
func (c *Criteria) Kind() Kind {
	switch {
	case c.Object && c.Array:
		return KindObjectArray
	case c.Object:
		return KindObject
	case c.Array:
		return KindValueArray
	}
	return KindValue
}

// Schema is an ordered mapping of attribute keys to Criteria.
type Schema struct {
	keys     []string
	criteria map[string]*Criteria
}

func newSchema() *Schema { return &Schema{criteria: map[string]*Criteria{}} }

// put stores c, keeping the original position of a re-declared key.
func (s *Schema) put(c *Criteria) {
	if _, exists := s.criteria[c.Key]; !exists {
		s.keys = append(s.keys, c.Key)
	}
	s.criteria[c.Key] = c
}

// Keys returns the attribute keys in declaration order.
func (s *Schema) Keys() []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s.keys...)
}

// Lookup returns the criteria declared for key.
func (s *Schema) Lookup(key string) (*Criteria, bool) {
	if s == nil {
		return nil, false
	}
	c, ok := s.criteria[key]
	return c, ok
}

// Len returns the number of attributes.
func (s *Schema) Len() int {
	if s == nil {
		return 0
	}
	return len(s.keys)
}

// Each calls fn for every attribute in declaration order.
func (s *Schema) Each(fn func(key string, c *Criteria)) {
	if s == nil {
		return
	}
	for _, k := range s.keys {
		fn(k, s.criteria[k])
	}
}

func (s *Schema) String() string {
	return fmt.Sprintf("Schema%v", s.Keys())
}
