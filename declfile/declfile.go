// Package declfile reads attribute declarations from YAML or JSON documents.
//
// The root mapping lists attributes in declaration order. Each attribute is
// either null (untyped), a type name, a list of type names, or a mapping:
//
//	model:
//	  type: String
//	  default: gpt-4o
//	max_tokens: [Integer, Float]
//	message:
//	  array: true
//	  arguments: [role]
//	  attributes:
//	    role: { type: String, in: [system, user, assistant] }
//	    content: String
//
// Mapping keys are type, default, required, in, range, as, array, arguments and
// attributes. An attribute with attributes (or type Object) is nested. Type
// names resolve through dynskema.LookupType.
package declfile

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/reoring/dynskema"
)

// Error reports a malformed declaration document.
type Error struct {
	Key       string
	Line, Col int
	Msg       string
}

func (e *Error) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("declfile: %d:%d: %s", e.Line, e.Col, e.Msg)
	}
	return fmt.Sprintf("declfile: %d:%d: attribute '%s': %s", e.Line, e.Col, e.Key, e.Msg)
}

func errorAt(n *yaml.Node, key, format string, args ...any) error {
	return &Error{Key: key, Line: n.Line, Col: n.Column, Msg: fmt.Sprintf(format, args...)}
}

// Parse decodes a declaration document.
func Parse(data []byte) (*dynskema.Declaration, error) {
	var root yaml.Node
	if err := yaml.NewDecoder(bytes.NewReader(data)).Decode(&root); err != nil {
		if errors.Is(err, io.EOF) {
			return dynskema.Declare(nil), nil
		}
		return nil, fmt.Errorf("declfile: %w", err)
	}
	doc := &root
	if doc.Kind == yaml.DocumentNode {
		if len(doc.Content) == 0 {
			return dynskema.Declare(nil), nil
		}
		doc = doc.Content[0]
	}
	if doc.Kind == yaml.ScalarNode && doc.ShortTag() == "!!null" {
		return dynskema.Declare(nil), nil
	}
	attrs, err := parseAttributes(doc)
	if err != nil {
		return nil, err
	}
	return attrs.declaration(), nil
}

// ParseFile reads and decodes the declaration document at path.
func ParseFile(path string) (*dynskema.Declaration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("declfile: %w", err)
	}
	return Parse(data)
}

// Compile decodes data and compiles the declaration.
func Compile(data []byte) (*dynskema.Schema, error) {
	decl, err := Parse(data)
	if err != nil {
		return nil, err
	}
	return dynskema.Compile(decl)
}

type attribute struct {
	name   string
	args   []any
	nested attributes
	object bool
}

type attributes []attribute

func (as attributes) declaration() *dynskema.Declaration {
	return dynskema.Declare(func(d *dynskema.Declarer) {
		for _, a := range as {
			args := a.args
			if a.object {
				args = append(append([]any(nil), args...), a.nested.declaration())
			}
			d.Attr(a.name, args...)
		}
	})
}

func parseAttributes(n *yaml.Node) (attributes, error) {
	if n.Kind != yaml.MappingNode {
		return nil, errorAt(n, "", "expected a mapping of attributes")
	}
	out := make(attributes, 0, len(n.Content)/2)
	seen := map[string]bool{}
	for i := 0; i+1 < len(n.Content); i += 2 {
		k, v := n.Content[i], n.Content[i+1]
		if seen[k.Value] {
			return nil, errorAt(k, k.Value, "declared twice")
		}
		seen[k.Value] = true
		a, err := parseAttribute(k.Value, v)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

func parseAttribute(name string, n *yaml.Node) (attribute, error) {
	a := attribute{name: name}
	switch n.Kind {
	case yaml.ScalarNode:
		if n.ShortTag() == "!!null" {
			return a, nil
		}
		return a, a.setTypes(n)
	case yaml.SequenceNode:
		return a, a.setTypes(n)
	case yaml.MappingNode:
	default:
		return a, errorAt(n, name, "unsupported declaration")
	}

	var opts []any
	for i := 0; i+1 < len(n.Content); i += 2 {
		k, v := n.Content[i], n.Content[i+1]
		switch k.Value {
		case "type":
			if err := a.setTypes(v); err != nil {
				return a, err
			}
		case "attributes":
			nested, err := parseAttributes(v)
			if err != nil {
				return a, err
			}
			a.nested, a.object = nested, true
		case "default":
			val, err := decodeValue(v)
			if err != nil {
				return a, errorAt(v, name, "default: %v", err)
			}
			opts = append(opts, dynskema.Default(val))
		case "in":
			val, err := decodeValue(v)
			if err != nil {
				return a, errorAt(v, name, "in: %v", err)
			}
			opts = append(opts, dynskema.In(val))
		case "range":
			var r [2]float64
			if err := v.Decode(&r); err != nil {
				return a, errorAt(v, name, "range must be [min, max]")
			}
			opts = append(opts, dynskema.In(dynskema.Range(r[0], r[1])))
		case "required", "array":
			var b bool
			if err := v.Decode(&b); err != nil {
				return a, errorAt(v, name, "%s must be a boolean", k.Value)
			}
			if b && k.Value == "required" {
				opts = append(opts, dynskema.Required())
			} else if b {
				opts = append(opts, dynskema.Array())
			}
		case "as":
			opts = append(opts, dynskema.As(v.Value))
		case "arguments":
			var names []string
			if v.Kind == yaml.ScalarNode {
				names = []string{v.Value}
			} else if err := v.Decode(&names); err != nil {
				return a, errorAt(v, name, "arguments must be a list of names")
			}
			opts = append(opts, dynskema.Arguments(names...))
		default:
			return a, errorAt(k, name, "unknown option '%s'", k.Value)
		}
	}
	a.args = append(a.args, opts...)
	return a, nil
}

// setTypes puts the resolved type list first in args.
func (a *attribute) setTypes(n *yaml.Node) error {
	var names []string
	switch n.Kind {
	case yaml.ScalarNode:
		names = []string{n.Value}
	case yaml.SequenceNode:
		if err := n.Decode(&names); err != nil {
			return errorAt(n, a.name, "type must be a name or a list of names")
		}
	default:
		return errorAt(n, a.name, "type must be a name or a list of names")
	}
	types := make([]*dynskema.Type, 0, len(names))
	for _, tn := range names {
		t, ok := dynskema.LookupType(tn)
		if !ok {
			return errorAt(n, a.name, "unknown type '%s'", tn)
		}
		if t == dynskema.Object {
			a.object = true
			continue
		}
		types = append(types, t)
	}
	if a.object && len(types) > 0 {
		return errorAt(n, a.name, "Object cannot be combined with other types")
	}
	if len(types) > 0 {
		a.args = append([]any{types}, a.args...)
	}
	return nil
}

func decodeValue(n *yaml.Node) (any, error) {
	var v any
	if err := n.Decode(&v); err != nil {
		return nil, err
	}
	return normalize(v), nil
}

// normalize converts map[any]any produced by yaml.v3 into map[string]any.
func normalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, e := range t {
			t[k] = normalize(e)
		}
		return t
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[fmt.Sprint(k)] = normalize(e)
		}
		return out
	case []any:
		for i, e := range t {
			t[i] = normalize(e)
		}
		return t
	}
	return v
}
