package dynskema_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ds "github.com/reoring/dynskema"
)

func compile(t *testing.T, fn func(d *ds.Declarer)) *ds.Schema {
	t.Helper()
	s, err := ds.Compile(ds.Declare(fn))
	require.NoError(t, err)
	return s
}

func nestedRequired(t *testing.T) *ds.Schema {
	return compile(t, func(d *ds.Declarer) {
		d.Attr("a", ds.Required(), func(d *ds.Declarer) {
			d.Attr("b", ds.Integer, ds.Required())
			d.Attr("c", ds.String)
		})
	})
}

func TestValidate_RequiredNestedAbsent(t *testing.T) {
	s := nestedRequired(t)

	errs := ds.Validate(map[string]any{}, s)
	require.Len(t, errs, 1)
	assert.Equal(t, ds.CodeRequired, errs[0].Code)
	assert.Equal(t, "a", errs[0].Path)
	assert.Equal(t, "a", errs[0].Key)
	assert.Equal(t, "/a", errs[0].Pointer)

	errs = ds.Validate(map[string]any{"a": map[string]any{"c": "x"}}, s)
	require.Len(t, errs, 1)
	assert.Equal(t, ds.CodeRequired, errs[0].Code)
	assert.Equal(t, "a/b", errs[0].Path)
	assert.Equal(t, "b", errs[0].Key)
	assert.Equal(t, "/a/b", errs[0].Pointer)
}

func TestValidate_TypeErrorsCollected(t *testing.T) {
	s := nestedRequired(t)
	errs := ds.Validate(map[string]any{"a": map[string]any{"b": "x", "c": 3}}, s)
	require.Len(t, errs, 2)
	assert.Equal(t, "a/b", errs[0].Path)
	assert.Equal(t, []*ds.Type{ds.Integer}, errs[0].Types)
	assert.Equal(t, "x", errs[0].Value)
	assert.Equal(t, "a/c", errs[1].Path)
	assert.True(t, errors.Is(errs, ds.ErrIncompatibleType))
	assert.False(t, errors.Is(errs, ds.ErrRequired))
}

func TestValidate_RequiredTreatsEmptyAsMissing(t *testing.T) {
	s := compile(t, func(d *ds.Declarer) {
		d.Attr("name", ds.String, ds.Required())
		d.Attr("flag", ds.Bool, ds.Required())
	})
	for _, v := range []any{nil, "", []any{}, map[string]any{}} {
		errs := ds.Validate(map[string]any{"name": v, "flag": true}, s)
		require.Len(t, errs, 1, "%#v", v)
		assert.Equal(t, ds.CodeRequired, errs[0].Code)
	}
	assert.True(t, ds.Valid(map[string]any{"name": "n", "flag": false}, s), "false is a value")
}

func TestValidate_InSuppressesTypeCheck(t *testing.T) {
	s := compile(t, func(d *ds.Declarer) {
		d.Attr("level", ds.Integer, ds.In([]int{1, 2, 3}))
	})
	assert.True(t, ds.Valid(map[string]any{"level": 2}, s))
	assert.True(t, ds.Valid(map[string]any{"level": 2.0}, s), "numbers compare by value")

	errs := ds.Validate(map[string]any{"level": "x"}, s)
	require.Len(t, errs, 1)
	assert.Equal(t, ds.CodeInOption, errs[0].Code)
	assert.True(t, errors.Is(errs[0], ds.ErrInOption))
}

func TestValidate_InArraysAndRanges(t *testing.T) {
	s := compile(t, func(d *ds.Declarer) {
		d.Attr("tags", ds.String, ds.Array(), ds.In([]string{"a", "b"}))
		d.Attr("temperature", ds.Float, ds.In(ds.Range(0, 1)))
		d.Attr("mode", ds.In(map[string]bool{"fast": true, "slow": true}))
	})

	errs := ds.Validate(map[string]any{
		"tags":        []any{"a", "z", nil, "q"},
		"temperature": 1.5,
		"mode":        "medium",
	}, s)
	require.Len(t, errs, 4)
	assert.Equal(t, "/tags/1", errs[0].Pointer)
	assert.Equal(t, "z", errs[0].Value)
	assert.Equal(t, "/tags/3", errs[1].Pointer)
	assert.Equal(t, "temperature", errs[2].Path)
	assert.Equal(t, "mode", errs[3].Path)

	assert.True(t, ds.Valid(map[string]any{"tags": []any{"b"}, "temperature": 0, "mode": "fast"}, s))
}

func TestValidate_InWithUnhashableValues(t *testing.T) {
	s := compile(t, func(d *ds.Declarer) {
		d.Attr("role", ds.In(map[any]bool{"user": true}))
		d.Attr("shape", ds.In([]any{"flat", map[string]any{"k": "v"}}))
	})

	var errs ds.ValidationErrors
	require.NotPanics(t, func() {
		errs = ds.Validate(map[string]any{
			"role":  map[string]any{"x": 1},
			"shape": map[string]any{"y": 2},
		}, s)
	})
	require.Len(t, errs, 2)
	assert.Equal(t, ds.CodeInOption, errs[0].Code)
	assert.Equal(t, "role", errs[0].Path)
	assert.Equal(t, ds.CodeInOption, errs[1].Code)

	assert.True(t, ds.Valid(map[string]any{"role": "user", "shape": map[string]any{"k": "v"}}, s))
}

func TestValidate_RenamedAttributes(t *testing.T) {
	s := compile(t, func(d *ds.Declarer) {
		d.Attr("apiKey", ds.String, ds.As("api_key"), ds.Required())
	})
	errs := ds.Validate(map[string]any{"apiKey": "k"}, s)
	require.Len(t, errs, 1)
	assert.Equal(t, "apiKey", errs[0].Path)
	assert.Equal(t, "/api_key", errs[0].Pointer)

	assert.True(t, ds.Valid(map[string]any{"api_key": "k"}, s))
}

func TestValidate_ObjectArrays(t *testing.T) {
	s := compile(t, func(d *ds.Declarer) {
		d.Attr("items", ds.Array(), func(d *ds.Declarer) {
			d.Attr("id", ds.Integer, ds.Required())
		})
	})
	errs := ds.Validate(map[string]any{
		"items": []any{map[string]any{"id": 1}, map[string]any{}, "x"},
	}, s)
	require.Len(t, errs, 2)
	assert.Equal(t, ds.CodeRequired, errs[0].Code)
	assert.Equal(t, "items/id", errs[0].Path)
	assert.Equal(t, "/items/1/id", errs[0].Pointer)
	assert.Equal(t, ds.CodeIncompatibleType, errs[1].Code)
	assert.Equal(t, "items", errs[1].Path)
	assert.Equal(t, "/items/2", errs[1].Pointer)
	assert.Equal(t, []*ds.Type{ds.Object}, errs[1].Types)
}

func TestValidate_NilAndDefaultsSkipTypeCheck(t *testing.T) {
	s := compile(t, func(d *ds.Declarer) {
		d.Attr("n", ds.Integer)
	})
	assert.True(t, ds.Valid(map[string]any{"n": nil}, s))
	assert.False(t, ds.Valid(map[string]any{"n": "x"}, s))

	pm := ds.PresenceMap{"/n": ds.PresenceSeen | ds.PresenceDefaultApplied}
	assert.True(t, ds.Valid(map[string]any{"n": "x"}, s, ds.WithPresence(pm)))
}

func TestValidate_MultipleCandidateTypes(t *testing.T) {
	s := compile(t, func(d *ds.Declarer) {
		d.Attr("id", []*ds.Type{ds.Integer, ds.String})
	})
	assert.True(t, ds.Valid(map[string]any{"id": 1}, s))
	assert.True(t, ds.Valid(map[string]any{"id": "a"}, s))
	assert.False(t, ds.Valid(map[string]any{"id": 1.5}, s))
}

func TestValidationErrors_Summary(t *testing.T) {
	s := compile(t, func(d *ds.Declarer) {
		d.Attr("a", ds.Required())
		d.Attr("b", ds.Required())
		d.Attr("c", ds.Required())
		d.Attr("d", ds.Required())
	})
	errs := ds.Validate(nil, s)
	require.Len(t, errs, 4)
	assert.Equal(t, "required at a; required at b; required at c; ... (total 4)", errs.Error())

	first := ds.ValidateFirst(nil, s)
	require.Error(t, first)
	assert.True(t, errors.Is(first, ds.ErrRequired))
	assert.Contains(t, first.Error(), "'a'")

	list, ok := ds.AsValidationErrors(first)
	require.True(t, ok)
	require.Len(t, list, 1)
	assert.Equal(t, "a", list[0].Key)

	assert.Nil(t, ds.ValidateFirst(map[string]any{"a": 1, "b": 1, "c": 1, "d": 1}, s))
}
