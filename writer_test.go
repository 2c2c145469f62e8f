package dynskema_test

import (
	"errors"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ds "github.com/reoring/dynskema"
)

type point struct {
	X, Y int
}

type person struct {
	FirstName string `json:"first_name"`
	Nick      string `dynskema:"alias" json:"nick"`
	Hidden    string `json:"-"`
	Age       int64
}

type settings struct {
	seen map[string]any
}

func (s *settings) SetField(name string, value any) bool {
	if name == "readonly" {
		return false
	}
	s.seen[name] = value
	return true
}

func TestValueBlock_ConstructsPointer(t *testing.T) {
	b := newBuilder(t, func(d *ds.Declarer) {
		d.Attr("origin", ds.TypeOf[*point]())
	})
	tree, err := b.Build(nil, func(r *ds.Receiver) {
		r.Set("origin", func(w *ds.Writer) {
			w.Set("x", 1)
			w.Set("Y", 2)
		})
	})
	require.NoError(t, err)
	assert.Equal(t, &point{X: 1, Y: 2}, tree["origin"])
}

func TestValueBlock_StructValueIsCopied(t *testing.T) {
	b := newBuilder(t, func(d *ds.Declarer) {
		d.Attr("p", ds.TypeOf[point]())
	})
	orig := point{X: 1}
	tree, err := b.Build(nil, func(r *ds.Receiver) {
		r.Set("p", orig, func(w *ds.Writer) { w.Set("y", 5) })
	})
	require.NoError(t, err)
	assert.Equal(t, point{X: 1, Y: 5}, tree["p"])
	assert.Equal(t, point{X: 1}, orig)
}

func TestValueBlock_FieldKeys(t *testing.T) {
	b := newBuilder(t, func(d *ds.Declarer) {
		d.Attr("who", ds.TypeOf[*person]())
	})
	tree, err := b.Build(nil, func(r *ds.Receiver) {
		r.Set("who", func(w *ds.Writer) {
			w.Set("first_name", "Ada")
			w.Set("alias", "countess")
			w.Set("age", int32(36))
		})
	})
	require.NoError(t, err)
	assert.Equal(t, &person{FirstName: "Ada", Nick: "countess", Age: 36}, tree["who"])

	_, err = b.Build(nil, func(r *ds.Receiver) {
		r.Set("who", func(w *ds.Writer) { w.Set("hidden", "x") })
	})
	var te *ds.AssignmentTargetError
	require.True(t, errors.As(err, &te), "got %v", err)
	assert.Equal(t, "hidden", te.Key)
	assert.Equal(t, "person", te.Target)
}

func TestValueBlock_Map(t *testing.T) {
	b := newBuilder(t, func(d *ds.Declarer) {
		d.Attr("meta", ds.Map)
	})
	tree, err := b.Build(nil, func(r *ds.Receiver) {
		r.Set("meta", func(w *ds.Writer) {
			w.Set("k", "v")
			w.Set("n", nil)
		})
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"k": "v", "n": nil}, tree["meta"])
}

func TestValueBlock_FieldSetter(t *testing.T) {
	b := newBuilder(t, func(d *ds.Declarer) {
		d.Attr("cfg", ds.TypeOf[*settings]())
	})
	s := &settings{seen: map[string]any{}}
	_, err := b.Build(nil, func(r *ds.Receiver) {
		r.Set("cfg", s, func(w *ds.Writer) { w.Set("anything", 1) })
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"anything": 1}, s.seen)

	_, err = b.Build(nil, func(r *ds.Receiver) {
		r.Set("cfg", s, func(w *ds.Writer) { w.Set("readonly", 1) })
	})
	var te *ds.AssignmentTargetError
	require.True(t, errors.As(err, &te))
	assert.Error(t, te.Cause)
}

func TestValueBlock_ArrayElements(t *testing.T) {
	b := newBuilder(t, func(d *ds.Declarer) {
		d.Attr("points", ds.TypeOf[*point](), ds.Array())
	})
	tree, err := b.Build(nil, func(r *ds.Receiver) {
		r.Set("points", []any{&point{X: 1}, &point{X: 2}}, func(w *ds.Writer) { w.Set("y", 9) })
	})
	require.NoError(t, err)
	assert.Equal(t, []any{&point{X: 1, Y: 9}, &point{X: 2, Y: 9}}, tree["points"])
}

func TestValueBlock_Errors(t *testing.T) {
	cases := []struct {
		name  string
		decl  func(d *ds.Declarer)
		fn    func(r *ds.Receiver)
		check func(t *testing.T, err error)
	}{
		{
			name: "multiple types",
			decl: func(d *ds.Declarer) { d.Attr("v", []*ds.Type{ds.Integer, ds.Float}) },
			fn:   func(r *ds.Receiver) { r.Set("v", func(*ds.Writer) {}) },
			check: func(t *testing.T, err error) {
				var ce *ds.ConstructionError
				require.True(t, errors.As(err, &ce), "got %v", err)
				assert.Equal(t, "multiple types were specified", ce.Reason)
			},
		},
		{
			name: "untyped",
			decl: func(d *ds.Declarer) { d.Attr("v") },
			fn:   func(r *ds.Receiver) { r.Set("v", func(*ds.Writer) {}) },
			check: func(t *testing.T, err error) {
				var ce *ds.ConstructionError
				assert.True(t, errors.As(err, &ce), "got %v", err)
			},
		},
		{
			name: "interface type",
			decl: func(d *ds.Declarer) { d.Attr("v", ds.TypeOf[error]()) },
			fn:   func(r *ds.Receiver) { r.Set("v", func(*ds.Writer) {}) },
			check: func(t *testing.T, err error) {
				var ce *ds.ConstructionError
				assert.True(t, errors.As(err, &ce), "got %v", err)
			},
		},
		{
			name: "constructor fails",
			decl: func(d *ds.Declarer) {
				d.Attr("v", &ds.Type{Name: "Broken", Is: func(any) bool { return false }, New: func() (any, error) {
					return nil, errors.New("out of stock")
				}})
			},
			fn: func(r *ds.Receiver) { r.Set("v", func(*ds.Writer) {}) },
			check: func(t *testing.T, err error) {
				var ce *ds.ConstructionError
				require.True(t, errors.As(err, &ce), "got %v", err)
				assert.EqualError(t, ce.Cause, "out of stock")
			},
		},
		{
			name: "setter arity",
			decl: func(d *ds.Declarer) { d.Attr("v", ds.TypeOf[*point]()) },
			fn:   func(r *ds.Receiver) { r.Set("v", func(w *ds.Writer) { w.Set("x", 1, 2) }) },
			check: func(t *testing.T, err error) {
				var ae *ds.ArityError
				require.True(t, errors.As(err, &ae), "got %v", err)
				assert.Equal(t, "x", ae.Key)
			},
		},
		{
			name: "unknown field",
			decl: func(d *ds.Declarer) { d.Attr("v", ds.TypeOf[*point]()) },
			fn:   func(r *ds.Receiver) { r.Set("v", func(w *ds.Writer) { w.Set("z", 1) }) },
			check: func(t *testing.T, err error) {
				var te *ds.AssignmentTargetError
				require.True(t, errors.As(err, &te), "got %v", err)
				assert.Nil(t, te.Cause)
			},
		},
		{
			name: "unassignable value",
			decl: func(d *ds.Declarer) { d.Attr("v", ds.TypeOf[*point]()) },
			fn:   func(r *ds.Receiver) { r.Set("v", func(w *ds.Writer) { w.Set("x", "one") }) },
			check: func(t *testing.T, err error) {
				var te *ds.AssignmentTargetError
				require.True(t, errors.As(err, &te), "got %v", err)
				assert.Error(t, te.Cause)
			},
		},
		{
			name: "receiver block on a value",
			decl: func(d *ds.Declarer) { d.Attr("v", ds.String) },
			fn:   func(r *ds.Receiver) { r.Set("v", func(*ds.Receiver) {}) },
			check: func(t *testing.T, err error) {
				var ae *ds.ArityError
				assert.True(t, errors.As(err, &ae), "got %v", err)
			},
		},
		{
			name: "writer block on an object",
			decl: func(d *ds.Declarer) { d.Attr("v", func(d *ds.Declarer) { d.Attr("x") }) },
			fn:   func(r *ds.Receiver) { r.Set("v", func(*ds.Writer) {}) },
			check: func(t *testing.T, err error) {
				var ae *ds.ArityError
				assert.True(t, errors.As(err, &ae), "got %v", err)
			},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b := newBuilder(t, tc.decl)
			_, err := b.Build(nil, tc.fn)
			require.Error(t, err)
			tc.check(t, err)
		})
	}
}

func TestResolveFieldKey(t *testing.T) {
	rt := reflect.TypeOf(person{})
	want := map[string]string{
		"FirstName": "first_name",
		"Nick":      "alias",
		"Hidden":    "-",
		"Age":       "Age",
	}
	for name, key := range want {
		sf, ok := rt.FieldByName(name)
		require.True(t, ok)
		assert.Equal(t, key, ds.ResolveFieldKey(sf), name)
	}
}
