// Package jsonschema exports compiled dynskema schemas as JSON Schema
// (draft 2020-12) documents.
package jsonschema

import (
	"fmt"

	"github.com/reoring/dynskema"
)

// Draft is the $schema URI written on exported roots.
const Draft = "https://json-schema.org/draft/2020-12/schema"

// Schema is a minimal JSON Schema representation used for export.
type Schema struct {
	Draft string             `json:"$schema,omitempty"`
	Ref   string             `json:"$ref,omitempty"`
	Defs  map[string]*Schema `json:"$defs,omitempty"`

	// Core
	Type    string `json:"type,omitempty"`
	Format  string `json:"format,omitempty"`
	Default any    `json:"default,omitempty"`
	Enum    []any  `json:"enum,omitempty"`

	// Number
	Minimum *float64 `json:"minimum,omitempty"`
	Maximum *float64 `json:"maximum,omitempty"`

	// Object
	Properties map[string]*Schema `json:"properties,omitempty"`
	Required   []string           `json:"required,omitempty"`

	// Array
	Items *Schema `json:"items,omitempty"`

	// Union
	AnyOf []*Schema `json:"anyOf,omitempty"`
}

var scalars = map[*dynskema.Type]Schema{
	dynskema.String:     {Type: "string"},
	dynskema.SymbolType: {Type: "string"},
	dynskema.Integer:    {Type: "integer"},
	dynskema.Float:      {Type: "number"},
	dynskema.Rational:   {Type: "string"},
	dynskema.Bool:       {Type: "boolean"},
	dynskema.Time:       {Type: "string", Format: "date-time"},
	dynskema.DateType:   {Type: "string", Format: "date"},
	dynskema.URI:        {Type: "string", Format: "uri"},
	dynskema.UUID:       {Type: "string", Format: "uuid"},
	dynskema.ArrayType:  {Type: "array"},
	dynskema.Map:        {Type: "object"},
}

// Export converts s into a JSON Schema document. Property names are the
// external (renamed) names; nested schemas that refer back to an enclosing
// one are emitted under $defs and referenced with $ref. Types without a JSON
// Schema counterpart export as an unconstrained schema.
func Export(s *dynskema.Schema) (*Schema, error) {
	if s == nil {
		return nil, fmt.Errorf("jsonschema: nil schema")
	}
	e := &exporter{
		active:    map[*dynskema.Schema]string{},
		recursive: map[*dynskema.Schema]bool{},
		done:      map[*dynskema.Schema]string{},
		used:      map[string]bool{},
		defs:      map[string]*Schema{},
	}
	root := e.object(s, "")
	root.Draft = Draft
	if len(e.defs) > 0 {
		root.Defs = e.defs
	}
	return root, nil
}

type exporter struct {
	// active maps schemas being exported to their $defs name ("" for the root).
	active    map[*dynskema.Schema]string
	recursive map[*dynskema.Schema]bool
	done      map[*dynskema.Schema]string
	used      map[string]bool
	defs      map[string]*Schema
}

func (e *exporter) object(s *dynskema.Schema, hint string) *Schema {
	if name, ok := e.done[s]; ok {
		return &Schema{Ref: "#/$defs/" + name}
	}
	if name, ok := e.active[s]; ok {
		e.recursive[s] = true
		if name == "" {
			return &Schema{Ref: "#"}
		}
		return &Schema{Ref: "#/$defs/" + name}
	}
	name := ""
	if hint != "" {
		name = e.uniqueName(hint)
	}
	e.active[s] = name
	defer delete(e.active, s)

	out := &Schema{Type: "object", Properties: make(map[string]*Schema, s.Len())}
	s.Each(func(key string, c *dynskema.Criteria) {
		out.Properties[c.Name()] = e.attribute(key, c)
		if c.Required {
			out.Required = append(out.Required, c.Name())
		}
	})
	if name != "" && e.recursive[s] {
		e.defs[name] = out
		e.done[s] = name
		return &Schema{Ref: "#/$defs/" + name}
	}
	return out
}

func (e *exporter) attribute(key string, c *dynskema.Criteria) *Schema {
	var item *Schema
	if c.Object {
		item = e.object(c.Schema, key)
	} else {
		item = types(c.Types)
	}
	constrain(item, c.In)

	out := item
	if c.Array {
		out = &Schema{Type: "array", Items: item}
	}
	if c.HasDefault {
		out.Default = c.Default
	}
	return out
}

func types(ts []*dynskema.Type) *Schema {
	switch len(ts) {
	case 0:
		return &Schema{}
	case 1:
		return scalar(ts[0])
	}
	out := &Schema{AnyOf: make([]*Schema, 0, len(ts))}
	for _, t := range ts {
		out.AnyOf = append(out.AnyOf, scalar(t))
	}
	return out
}

func scalar(t *dynskema.Type) *Schema {
	s := scalars[t]
	return &s
}

func constrain(s *Schema, in dynskema.Membership) {
	switch m := in.(type) {
	case dynskema.NumericRange:
		lo, hi := m.Min, m.Max
		s.Minimum, s.Maximum = &lo, &hi
	case dynskema.Enumerable:
		s.Enum = m.Values()
	}
}

func (e *exporter) uniqueName(hint string) string {
	name := hint
	for i := 2; e.used[name]; i++ {
		name = fmt.Sprintf("%s%d", hint, i)
	}
	e.used[name] = true
	return name
}
