package source

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"

	j "github.com/goccy/go-json"

	"github.com/reoring/dynskema"
)

// JSON decodes a JSON object. Numbers become int when they are integral and
// fit, float64 otherwise (see KeepNumbers). Duplicate keys fail unless
// AllowDuplicateKeys is given.
func JSON(data []byte, opts ...Option) (map[string]any, error) {
	return JSONReader(bytes.NewReader(data), opts...)
}

// JSONReader is like JSON but reads from r.
func JSONReader(r io.Reader, opts ...Option) (map[string]any, error) {
	dec := j.NewDecoder(r)
	dec.UseNumber()
	d := &jsonDecoder{dec: dec, cfg: newConfig(opts)}
	v, err := d.value("")
	if err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		if err != nil {
			return nil, fmt.Errorf("source: json: %w", err)
		}
		return nil, errors.New("source: json: unexpected data after the document")
	}
	return asObject(v, FormatJSON)
}

type jsonDecoder struct {
	dec *j.Decoder
	cfg config
}

func (d *jsonDecoder) value(ptr string) (any, error) {
	tok, err := d.dec.Token()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("source: json: unexpected end of input")
		}
		return nil, fmt.Errorf("source: json: %w", err)
	}
	switch v := tok.(type) {
	case j.Delim:
		switch v {
		case '{':
			return d.object(ptr)
		case '[':
			return d.array(ptr)
		}
		return nil, fmt.Errorf("source: json: unexpected delimiter %q at %s", rune(v), pointerOrRoot(ptr))
	case j.Number:
		return d.number(v)
	case float64:
		return v, nil
	}
	return tok, nil
}

func (d *jsonDecoder) object(ptr string) (map[string]any, error) {
	out := map[string]any{}
	for d.dec.More() {
		tok, err := d.dec.Token()
		if err != nil {
			return nil, fmt.Errorf("source: json: %w", err)
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("source: json: expected an object key at %s", pointerOrRoot(ptr))
		}
		if _, dup := out[key]; dup && !d.cfg.allowDupKeys {
			return nil, &DuplicateKeyError{Key: key, Pointer: ptr}
		}
		v, err := d.value(ptr + "/" + dynskema.EscapePointer(key))
		if err != nil {
			return nil, err
		}
		out[key] = v
	}
	if _, err := d.dec.Token(); err != nil {
		return nil, fmt.Errorf("source: json: %w", err)
	}
	return out, nil
}

func (d *jsonDecoder) array(ptr string) ([]any, error) {
	out := []any{}
	for d.dec.More() {
		v, err := d.value(ptr + "/" + strconv.Itoa(len(out)))
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	if _, err := d.dec.Token(); err != nil {
		return nil, fmt.Errorf("source: json: %w", err)
	}
	return out, nil
}

func (d *jsonDecoder) number(n j.Number) (any, error) {
	if d.cfg.keepNumbers {
		return n, nil
	}
	if i, err := strconv.ParseInt(string(n), 10, 64); err == nil {
		return int(i), nil
	}
	f, err := strconv.ParseFloat(string(n), 64)
	if err != nil {
		return nil, fmt.Errorf("source: json: invalid number %q", string(n))
	}
	return f, nil
}
