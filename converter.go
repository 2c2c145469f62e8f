package dynskema

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/big"
	"net/url"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ConvertFunc attempts to convert v. A nil result or a non-nil error means
// the conversion failed.
type ConvertFunc func(v any) (any, error)

// Converters maps target types to conversion functions. The zero value is
// not usable; start from DefaultConverters or NewConverters.
type Converters struct {
	fns map[*Type]ConvertFunc
}

var errNotConvertible = errors.New("not convertible")

var defaultConverters = &Converters{fns: map[*Type]ConvertFunc{
	ArrayType:  convertArray,
	Time:       convertTime,
	DateType:   convertDate,
	URI:        convertURI,
	String:     convertString,
	SymbolType: convertSymbol,
	Rational:   convertRational,
	Float:      convertFloat,
	Integer:    convertInteger,
	Bool:       convertBool,
	UUID:       convertUUID,
}}

// DefaultConverters returns a fresh copy of the built-in converter table.
// The process-wide defaults themselves are never exposed.
func DefaultConverters() *Converters { return defaultConverters.Clone() }

// NewConverters returns an empty table.
func NewConverters() *Converters { return &Converters{fns: map[*Type]ConvertFunc{}} }

// Clone returns an independent copy of c.
func (c *Converters) Clone() *Converters {
	out := &Converters{fns: make(map[*Type]ConvertFunc, len(c.fns))}
	for t, fn := range c.fns {
		out.fns[t] = fn
	}
	return out
}

// Register installs fn as the converter for t, replacing any previous one.
func (c *Converters) Register(t *Type, fn ConvertFunc) *Converters {
	if fn == nil {
		delete(c.fns, t)
		return c
	}
	c.fns[t] = fn
	return c
}

// Lookup returns the converter registered for t.
func (c *Converters) Lookup(t *Type) (ConvertFunc, bool) {
	fn, ok := c.fns[t]
	return fn, ok
}

// Coerce converts v to one of types. See CoerceOr.
func (c *Converters) Coerce(v any, types ...*Type) any {
	return c.CoerceOr(v, types, nil)
}

// CoerceOr converts v to the first workable candidate type.
//
// A value that already satisfies any candidate is returned unchanged, whatever
// the candidate's position. Otherwise converters run in candidate order and
// the first non-nil result wins. When nothing converts, fallback is applied
// (when non-nil) or nil is returned. Converter errors and panics count as
// failures.
func (c *Converters) CoerceOr(v any, types []*Type, fallback func(any) any) any {
	if v == nil {
		return nil
	}
	for _, t := range types {
		if t != nil && t.Is != nil && t.Is(v) {
			return v
		}
	}
	for _, t := range types {
		fn, ok := c.fns[t]
		if !ok {
			continue
		}
		if out := safeConvert(fn, v); out != nil {
			return out
		}
	}
	if fallback != nil {
		return fallback(v)
	}
	return nil
}

func safeConvert(fn ConvertFunc, v any) (out any) {
	defer func() {
		if r := recover(); r != nil {
			out = nil
		}
	}()
	res, err := fn(v)
	if err != nil {
		return nil
	}
	return res
}

// ---- default converters ----

// convertArray wraps scalars; nil becomes an empty sequence.
func convertArray(v any) (any, error) {
	if v == nil {
		return []any{}, nil
	}
	if s, ok := asSlice(v); ok {
		return s, nil
	}
	return []any{v}, nil
}

var timeLayouts = []string{time.RFC3339Nano, time.RFC3339, time.DateTime, "2006-01-02T15:04:05", time.DateOnly}

func convertTime(v any) (any, error) {
	switch t := v.(type) {
	case Date:
		return t.Time(), nil
	case *time.Time:
		if t == nil {
			return nil, errNotConvertible
		}
		return *t, nil
	}
	if n, ok := toInt64(v); ok {
		return time.Unix(n, 0).UTC(), nil
	}
	s, ok := stringLike(v)
	if !ok {
		return nil, errNotConvertible
	}
	return parseTime(strings.TrimSpace(s))
}

func parseTime(s string) (time.Time, error) {
	var firstErr error
	for _, layout := range timeLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return time.Time{}, firstErr
}

func convertDate(v any) (any, error) {
	if t, ok := v.(time.Time); ok {
		return DateOf(t), nil
	}
	s, ok := stringLike(v)
	if !ok {
		return nil, errNotConvertible
	}
	t, err := parseTime(strings.TrimSpace(s))
	if err != nil {
		return nil, err
	}
	return DateOf(t), nil
}

func convertURI(v any) (any, error) {
	if u, ok := v.(url.URL); ok {
		return &u, nil
	}
	return url.Parse(fmt.Sprint(v))
}

func convertString(v any) (any, error) {
	switch t := v.(type) {
	case []byte:
		return string(t), nil
	case fmt.Stringer:
		return t.String(), nil
	}
	if f, ok := v.(float64); ok {
		return strconv.FormatFloat(f, 'g', -1, 64), nil
	}
	if isSequence(v) {
		return nil, errNotConvertible
	}
	if reflect.TypeOf(v).Kind() == reflect.String {
		return reflect.ValueOf(v).String(), nil
	}
	return fmt.Sprint(v), nil
}

func convertSymbol(v any) (any, error) {
	s, ok := stringLike(v)
	if !ok {
		return nil, errNotConvertible
	}
	return Symbol(s), nil
}

func convertRational(v any) (any, error) {
	switch t := v.(type) {
	case *big.Int:
		return new(big.Rat).SetInt(t), nil
	case float32:
		return ratFromFloat(float64(t))
	case float64:
		return ratFromFloat(t)
	}
	if n, ok := toInt64(v); ok {
		return new(big.Rat).SetInt64(n), nil
	}
	s, ok := stringLike(v)
	if !ok {
		return nil, errNotConvertible
	}
	r, ok := new(big.Rat).SetString(strings.TrimSpace(s))
	if !ok {
		return nil, fmt.Errorf("invalid rational %q", s)
	}
	return r, nil
}

func ratFromFloat(f float64) (any, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, errNotConvertible
	}
	return new(big.Rat).SetFloat64(f), nil
}

func convertFloat(v any) (any, error) {
	switch t := v.(type) {
	case float32:
		return float64(t), nil
	case json.Number:
		return t.Float64()
	case *big.Rat:
		f, _ := t.Float64()
		return f, nil
	}
	if n, ok := toInt64(v); ok {
		return float64(n), nil
	}
	s, ok := stringLike(v)
	if !ok || isSymbol(v) {
		return nil, errNotConvertible
	}
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}

func convertInteger(v any) (any, error) {
	switch t := v.(type) {
	case float32:
		return truncate(float64(t))
	case float64:
		return truncate(t)
	case json.Number:
		n, err := strconv.ParseInt(string(t), 10, 64)
		if err != nil {
			return nil, err
		}
		return int(n), nil
	case *big.Rat:
		if !t.IsInt() {
			return truncate(mustFloat(t))
		}
		return int(t.Num().Int64()), nil
	}
	if n, ok := toInt64(v); ok {
		return int(n), nil
	}
	s, ok := stringLike(v)
	if !ok || isSymbol(v) {
		return nil, errNotConvertible
	}
	n, err := strconv.ParseInt(strings.ReplaceAll(strings.TrimSpace(s), "_", ""), 0, 64)
	if err != nil {
		return nil, err
	}
	return int(n), nil
}

func mustFloat(r *big.Rat) float64 {
	f, _ := r.Float64()
	return f
}

func truncate(f float64) (any, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f > math.MaxInt64 || f < math.MinInt64 {
		return nil, errNotConvertible
	}
	return int(f), nil
}

var (
	truePattern  = regexp.MustCompile(`(?i)\A\s*(true|yes)\s*\z`)
	falsePattern = regexp.MustCompile(`(?i)\A\s*(false|no)\s*\z`)
)

func convertBool(v any) (any, error) {
	if f, ok := toFloat64(v); ok {
		return f != 0, nil
	}
	s := fmt.Sprint(v)
	switch {
	case truePattern.MatchString(s):
		return true, nil
	case falsePattern.MatchString(s):
		return false, nil
	}
	return nil, errNotConvertible
}

func convertUUID(v any) (any, error) {
	switch t := v.(type) {
	case []byte:
		if len(t) == 16 {
			return uuid.FromBytes(t)
		}
		return uuid.ParseBytes(t)
	case [16]byte:
		return uuid.UUID(t), nil
	}
	s, ok := stringLike(v)
	if !ok {
		return nil, errNotConvertible
	}
	return uuid.Parse(strings.TrimSpace(s))
}

// ---- value helpers ----

// stringLike reports the textual form of string kinds, byte slices and
// Stringers.
func stringLike(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case []byte:
		return string(t), true
	case json.Number:
		return string(t), true
	case fmt.Stringer:
		return t.String(), true
	}
	if v != nil && reflect.TypeOf(v).Kind() == reflect.String {
		return reflect.ValueOf(v).String(), true
	}
	return "", false
}

func toInt64(v any) (int64, bool) {
	if v == nil {
		return 0, false
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return 0, false
		}
		return int64(u), true
	}
	return 0, false
}

func toFloat64(v any) (float64, bool) {
	if n, ok := toInt64(v); ok {
		return float64(n), true
	}
	switch t := v.(type) {
	case float32:
		return float64(t), true
	case float64:
		return t, true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case *big.Rat:
		return mustFloat(t), true
	}
	return 0, false
}

// asSlice flattens any slice or array (except byte slices) into []any.
func asSlice(v any) ([]any, bool) {
	if s, ok := v.([]any); ok {
		return s, true
	}
	if !isSequence(v) {
		return nil, false
	}
	rv := reflect.ValueOf(v)
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}
