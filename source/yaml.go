package source

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/reoring/dynskema"
)

// YAML decodes the first document of a YAML stream. The root must be a
// mapping. Duplicate keys fail (with positions) unless AllowDuplicateKeys is
// given.
func YAML(data []byte, opts ...Option) (map[string]any, error) {
	return YAMLReader(bytes.NewReader(data), opts...)
}

// YAMLReader is like YAML but reads from r.
func YAMLReader(r io.Reader, opts ...Option) (map[string]any, error) {
	var root yaml.Node
	if err := yaml.NewDecoder(r).Decode(&root); err != nil {
		if errors.Is(err, io.EOF) {
			return map[string]any{}, nil
		}
		return nil, fmt.Errorf("source: yaml: %w", err)
	}
	w := &yamlWalker{cfg: newConfig(opts), active: map[*yaml.Node]bool{}}
	v, err := w.value(&root, "")
	if err != nil {
		return nil, err
	}
	if v == nil {
		return map[string]any{}, nil
	}
	return asObject(v, FormatYAML)
}

// yamlWalker converts a node tree, expanding aliases under the same
// excessive-aliasing limits yaml.v3 applies when decoding into Go values.
type yamlWalker struct {
	cfg        config
	decoded    int
	aliased    int
	aliasDepth int
	active     map[*yaml.Node]bool
}

// ErrExcessiveAliasing is returned for documents whose aliases expand far
// beyond their own size.
var ErrExcessiveAliasing = errors.New("source: yaml: document contains excessive aliasing")

func allowedAliasRatio(decoded int) float64 {
	const low, high = 400000, 4000000
	switch {
	case decoded <= low:
		return 0.99
	case decoded >= high:
		return 0.10
	}
	return 0.99 - 0.89*(float64(decoded-low)/float64(high-low))
}

func (w *yamlWalker) value(n *yaml.Node, ptr string) (any, error) {
	w.decoded++
	if w.aliasDepth > 0 {
		w.aliased++
	}
	if w.aliased > 100 && w.decoded > 1000 && float64(w.aliased)/float64(w.decoded) > allowedAliasRatio(w.decoded) {
		return nil, ErrExcessiveAliasing
	}
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return nil, nil
		}
		return w.value(n.Content[0], ptr)
	case yaml.AliasNode:
		if n.Alias == nil {
			return nil, nil
		}
		if w.active[n] {
			return nil, fmt.Errorf("source: yaml: line %d: anchor '%s' value contains itself", n.Line, n.Value)
		}
		w.active[n] = true
		w.aliasDepth++
		v, err := w.value(n.Alias, ptr)
		w.aliasDepth--
		delete(w.active, n)
		return v, err
	case yaml.MappingNode:
		m := make(map[string]any, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			k, v := n.Content[i], n.Content[i+1]
			if _, dup := m[k.Value]; dup && !w.cfg.allowDupKeys {
				return nil, &DuplicateKeyError{Key: k.Value, Pointer: ptr, Line: k.Line, Col: k.Column}
			}
			val, err := w.value(v, ptr+"/"+dynskema.EscapePointer(k.Value))
			if err != nil {
				return nil, err
			}
			m[k.Value] = val
		}
		return m, nil
	case yaml.SequenceNode:
		arr := make([]any, 0, len(n.Content))
		for i, c := range n.Content {
			v, err := w.value(c, ptr+"/"+strconv.Itoa(i))
			if err != nil {
				return nil, err
			}
			arr = append(arr, v)
		}
		return arr, nil
	case yaml.ScalarNode:
		return yamlScalar(n)
	}
	return nil, nil
}

func yamlScalar(n *yaml.Node) (any, error) {
	switch n.ShortTag() {
	case "!!null":
		return nil, nil
	case "!!bool", "!!int", "!!float", "!!timestamp":
		var v any
		if err := n.Decode(&v); err != nil {
			return nil, fmt.Errorf("source: yaml: line %d: %w", n.Line, err)
		}
		return v, nil
	}
	return n.Value, nil
}
