// Package source decodes raw values (JSON or YAML documents) into the
// map[string]any shape accepted by dynskema builders and validators.
package source

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Format identifies a document encoding.
type Format int

const (
	FormatJSON Format = iota
	FormatYAML
)

func (f Format) String() string {
	switch f {
	case FormatJSON:
		return "json"
	case FormatYAML:
		return "yaml"
	}
	return fmt.Sprintf("Format(%d)", int(f))
}

// FormatFromPath guesses the format from a file extension. Unknown extensions
// are treated as YAML, which accepts JSON documents as well.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON
	}
	return FormatYAML
}

// Option configures decoding.
type Option func(*config)

type config struct {
	keepNumbers  bool
	allowDupKeys bool
}

// KeepNumbers leaves JSON numbers as json.Number instead of converting them to
// int or float64.
func KeepNumbers() Option { return func(c *config) { c.keepNumbers = true } }

// AllowDuplicateKeys lets a later duplicate key overwrite the earlier one
// instead of failing.
func AllowDuplicateKeys() Option { return func(c *config) { c.allowDupKeys = true } }

func newConfig(opts []Option) config {
	var c config
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// DuplicateKeyError reports a key that appears twice in one object.
type DuplicateKeyError struct {
	Key string
	// Pointer locates the object holding the key (JSON Pointer).
	Pointer string
	// Line and Col are set for YAML input.
	Line, Col int
}

func (e *DuplicateKeyError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("duplicate key %q at %d:%d", e.Key, e.Line, e.Col)
	}
	return fmt.Sprintf("duplicate key %q at %s", e.Key, pointerOrRoot(e.Pointer))
}

func pointerOrRoot(p string) string {
	if p == "" {
		return "/"
	}
	return p
}

// Decode decodes data according to format. The document root must be an
// object.
func Decode(data []byte, format Format, opts ...Option) (map[string]any, error) {
	switch format {
	case FormatJSON:
		return JSON(data, opts...)
	case FormatYAML:
		return YAML(data, opts...)
	}
	return nil, fmt.Errorf("source: unsupported format %s", format)
}

func asObject(v any, format Format) (map[string]any, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("source: %s document root must be an object, got %T", format, v)
	}
	return m, nil
}
