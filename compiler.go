package dynskema

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"
)

// Declaration is a declaration routine with identity. The identity is what
// lets a declaration nest itself: compiling a Declaration that is already being
// compiled reuses its (partially populated) schema instead of recursing.
//
//	var node *dynskema.Declaration
//	node = dynskema.Declare(func(d *dynskema.Declarer) {
//	    d.Attr("value", dynskema.String)
//	    d.Attr("child", node)
//	})
//
// Bare func(*Declarer) literals passed as nested routines have no identity and
// must not recurse into themselves.
type Declaration struct {
	routines []func(*Declarer)

	// mu serializes Compile calls on this declaration; nested compilations
	// only read memo and never take another declaration's lock.
	mu   sync.Mutex
	memo atomic.Pointer[Schema]
}

// Declare wraps fn as a Declaration.
func Declare(fn func(*Declarer)) *Declaration {
	d := &Declaration{}
	if fn != nil {
		d.routines = append(d.routines, fn)
	}
	return d
}

// Extend returns a new Declaration that runs base's routines followed by fn.
// Attributes declared again by fn replace the inherited ones (nested schemas
// are replaced wholesale). base is not modified.
func Extend(base *Declaration, fn func(*Declarer)) *Declaration {
	d := &Declaration{}
	if base != nil {
		d.routines = append(d.routines, base.routines...)
	}
	if fn != nil {
		d.routines = append(d.routines, fn)
	}
	return d
}

// Compile compiles decl into a Schema. The result is memoized per
// Declaration; failed compilations are not.
func Compile(decl *Declaration) (*Schema, error) {
	if decl == nil {
		return newSchema(), nil
	}
	if s := decl.memo.Load(); s != nil {
		return s, nil
	}
	decl.mu.Lock()
	defer decl.mu.Unlock()
	if s := decl.memo.Load(); s != nil {
		return s, nil
	}
	c := &compiler{compiling: map[*Declaration]*Schema{}}
	s := newSchema()
	c.compiling[decl] = s
	if err := c.run(decl, s); err != nil {
		return nil, err
	}
	decl.memo.Store(s)
	return s, nil
}

// MustCompile is like Compile but panics on error.
func MustCompile(decl *Declaration) *Schema {
	s, err := Compile(decl)
	if err != nil {
		panic(err)
	}
	return s
}

// compiler carries the identity set shared by every nested compilation of one
// Compile call.
type compiler struct {
	compiling map[*Declaration]*Schema
}

func (c *compiler) run(decl *Declaration, into *Schema) error {
	d := &Declarer{c: c, schema: into}
	for _, fn := range decl.routines {
		fn(d)
		if d.err != nil {
			return d.err
		}
	}
	return nil
}

// nested returns the schema for a nested routine, reusing the container of a
// declaration that is already being compiled.
func (c *compiler) nested(decl *Declaration) (*Schema, error) {
	if s, ok := c.compiling[decl]; ok {
		return s, nil
	}
	if memo := decl.memo.Load(); memo != nil {
		return memo, nil
	}
	s := newSchema()
	c.compiling[decl] = s
	if err := c.run(decl, s); err != nil {
		return nil, err
	}
	return s, nil
}

// Declarer is the dispatch context of a declaration routine.
type Declarer struct {
	c      *compiler
	schema *Schema
	err    error
}

// Attr declares an attribute. Accepted argument forms:
//
//	d.Attr("name")                                 // untyped
//	d.Attr("name", opts...)                        // options only
//	d.Attr("name", dynskema.String)                // type
//	d.Attr("name", []*dynskema.Type{...}, opts...) // candidate types and options
//
// A trailing *Declaration or func(*Declarer), or the Object type, declares a
// nested attribute. The first malformed declaration fails the compilation and
// later declarations are ignored.
func (d *Declarer) Attr(name string, args ...any) *Declarer {
	if d.err != nil {
		return d
	}
	if err := d.attr(name, args); err != nil {
		d.err = err
	}
	return d
}

// Err returns the first declaration error.
func (d *Declarer) Err() error { return d.err }

func (d *Declarer) attr(name string, args []any) error {
	if name == "" {
		return &DeclarationError{Key: name, Reason: "the name is empty"}
	}
	if isReserved(name) {
		return &DeclarationError{Key: name, Reason: fmt.Sprintf("the name '%s' is reserved and cannot be used for parameters", name)}
	}

	var nested *Declaration
	if n := len(args); n > 0 {
		switch r := args[n-1].(type) {
		case *Declaration:
			nested, args = r, args[:n-1]
		case func(*Declarer):
			nested, args = Declare(r), args[:n-1]
		}
	}

	c := &Criteria{Key: name}
	for i, a := range args {
		switch t := a.(type) {
		case *Type:
			if i != 0 {
				return errMalformed(name)
			}
			if t == Object {
				c.Object = true
			} else if t != nil {
				c.Types = []*Type{t}
			}
		case []*Type:
			if i != 0 {
				return errMalformed(name)
			}
			for _, tt := range t {
				if tt == Object {
					return &DeclarationError{Key: name, Reason: "Object cannot be combined with other types"}
				}
			}
			c.Types = append([]*Type(nil), t...)
		case Option:
			if t == nil {
				continue
			}
			if err := t(c); err != nil {
				return &DeclarationError{Key: name, Reason: err.Error()}
			}
		default:
			return errMalformed(name)
		}
	}

	if nested != nil || c.Object {
		c.Object = true
		c.Types = nil
		if nested == nil {
			c.Schema = newSchema()
		} else {
			s, err := d.c.nested(nested)
			if err != nil {
				return err
			}
			c.Schema = s
		}
	}
	d.schema.put(c)
	return nil
}

func errMalformed(name string) error {
	return &DeclarationError{Key: name, Reason: "a schema definition may only include the type followed by options"}
}

// reservedNames holds the Receiver operation surface, normalized.
var reservedNames = func() map[string]struct{} {
	out := map[string]struct{}{}
	rt := reflect.TypeOf(&Receiver{})
	for i := 0; i < rt.NumMethod(); i++ {
		out[normalizeName(rt.Method(i).Name)] = struct{}{}
	}
	return out
}()

func normalizeName(s string) string {
	return strings.ToLower(strings.ReplaceAll(s, "_", ""))
}

func isReserved(name string) bool {
	_, ok := reservedNames[normalizeName(name)]
	return ok
}
