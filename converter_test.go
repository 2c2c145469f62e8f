package dynskema_test

import (
	"errors"
	"math/big"
	"net/url"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ds "github.com/reoring/dynskema"
)

func TestCoerce_Order(t *testing.T) {
	conv := ds.DefaultConverters()

	// Integer parse fails, so Float wins in pass 2
	assert.Equal(t, 1.23, conv.Coerce("1.23", ds.Integer, ds.Float))
	// identity on String wins over any conversion, whatever its position
	assert.Equal(t, "42", conv.Coerce("42", ds.String, ds.Integer))
	assert.Equal(t, "42", conv.Coerce("42", ds.Integer, ds.String))
	// first successful conversion in candidate order
	assert.Equal(t, 42, conv.Coerce("42", ds.Integer, ds.Float))
	assert.Equal(t, 42.0, conv.Coerce("42", ds.Float, ds.Integer))
}

func TestCoerce_NilAndFallback(t *testing.T) {
	conv := ds.DefaultConverters()
	assert.Nil(t, conv.Coerce(nil, ds.String))
	assert.Nil(t, conv.Coerce("abc", ds.Integer))
	assert.Equal(t, "fallback", conv.CoerceOr("abc", []*ds.Type{ds.Integer}, func(any) any { return "fallback" }))
}

func TestCoerce_ConverterFailuresAreSwallowed(t *testing.T) {
	custom := &ds.Type{Name: "Custom", Is: func(any) bool { return false }}
	conv := ds.NewConverters().
		Register(custom, func(any) (any, error) { panic("boom") }).
		Register(ds.String, func(v any) (any, error) { return nil, errors.New("nope") })
	assert.NotPanics(t, func() {
		assert.Nil(t, conv.Coerce(1, custom, ds.String))
	})
}

func TestConverters_CloneIsolation(t *testing.T) {
	a := ds.DefaultConverters()
	a.Register(ds.Integer, func(any) (any, error) { return 7, nil })
	assert.Equal(t, 7, a.Coerce("1", ds.Integer))

	b := ds.DefaultConverters()
	assert.Equal(t, 1, b.Coerce("1", ds.Integer), "the process defaults are never modified")

	c := a.Clone()
	c.Register(ds.Integer, nil)
	_, ok := c.Lookup(ds.Integer)
	assert.False(t, ok)
	_, ok = a.Lookup(ds.Integer)
	assert.True(t, ok)
}

func TestDefaultConverters(t *testing.T) {
	conv := ds.DefaultConverters()
	cases := []struct {
		name string
		in   any
		typ  *ds.Type
		want any
	}{
		{"array wraps scalar", "a", ds.ArrayType, []any{"a"}},
		{"string from int", 12, ds.String, "12"},
		{"string from float", 1.5, ds.String, "1.5"},
		{"string from symbol", ds.Symbol("sym"), ds.String, "sym"},
		{"string from bool", true, ds.String, "true"},
		{"symbol from string", "user", ds.SymbolType, ds.Symbol("user")},
		{"integer from string", "42", ds.Integer, 42},
		{"integer from hex", "0x1f", ds.Integer, 31},
		{"integer from underscored", "1_000", ds.Integer, 1000},
		{"integer truncates float", 3.9, ds.Integer, 3},
		{"float from string", "2.5", ds.Float, 2.5},
		{"float from int", 2, ds.Float, 2.0},
		{"bool true", "yes", ds.Bool, true},
		{"bool TRUE padded", "  TRUE ", ds.Bool, true},
		{"bool false", "no", ds.Bool, false},
		{"bool nonzero", 3, ds.Bool, true},
		{"bool zero", 0, ds.Bool, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, conv.Coerce(tc.in, tc.typ))
		})
	}
}

func TestDefaultConverters_Failures(t *testing.T) {
	conv := ds.DefaultConverters()
	assert.Nil(t, conv.Coerce("maybe", ds.Bool))
	assert.Nil(t, conv.Coerce("1.5", ds.Integer))
	assert.Nil(t, conv.Coerce(ds.Symbol("1"), ds.Integer))
	assert.Nil(t, conv.Coerce(12, ds.SymbolType))
	assert.Nil(t, conv.Coerce([]any{"a"}, ds.String))
	assert.Nil(t, conv.Coerce("not a uuid", ds.UUID))
	assert.Nil(t, conv.Coerce("yesterday", ds.Time))
}

func TestDefaultConverters_RichTypes(t *testing.T) {
	conv := ds.DefaultConverters()

	tm, ok := conv.Coerce("2024-05-06T07:08:09Z", ds.Time).(time.Time)
	require.True(t, ok)
	assert.True(t, tm.Equal(time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)), "got %v", tm)

	d, ok := conv.Coerce("2024-05-06", ds.DateType).(ds.Date)
	require.True(t, ok)
	assert.Equal(t, "2024-05-06", d.String())

	u, ok := conv.Coerce("https://example.com/a?b=c", ds.URI).(*url.URL)
	require.True(t, ok)
	assert.Equal(t, "example.com", u.Host)

	r, ok := conv.Coerce("1/3", ds.Rational).(*big.Rat)
	require.True(t, ok)
	assert.Equal(t, "1/3", r.String())

	id := uuid.New()
	got, ok := conv.Coerce(id.String(), ds.UUID).(uuid.UUID)
	require.True(t, ok)
	assert.Equal(t, id, got)
}

func TestArrayConverter_NilBecomesEmpty(t *testing.T) {
	fn, ok := ds.DefaultConverters().Lookup(ds.ArrayType)
	require.True(t, ok)
	out, err := fn(nil)
	require.NoError(t, err)
	assert.Equal(t, []any{}, out)
}

func TestTypeOf(t *testing.T) {
	type point struct{ X, Y int }
	pt := ds.TypeOf[*point]()
	assert.True(t, pt.Is(&point{}))
	assert.False(t, pt.Is(point{}))

	v, err := pt.New()
	require.NoError(t, err)
	assert.Equal(t, &point{}, v)

	st := ds.TypeOf[error]()
	assert.True(t, st.Is(errors.New("x")))
	assert.Nil(t, st.New)
}

func TestLookupType(t *testing.T) {
	typ, ok := ds.LookupType("integer")
	require.True(t, ok)
	assert.Same(t, ds.Integer, typ)

	custom := &ds.Type{Name: "Money", Is: func(v any) bool { _, ok := v.(int64); return ok }}
	ds.RegisterType(custom)
	typ, ok = ds.LookupType("MONEY")
	require.True(t, ok)
	assert.Same(t, custom, typ)
}
