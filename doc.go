package dynskema

// Package dynskema provides:
//
// - Declaration of attribute trees (typed values, nested objects, arrays) with defaults, required, in, as and positional arguments
// - Compilation into an ordered, memoized Schema that tolerates self-referencing declarations
// - Construction of value trees through a Builder with type coercion, defaults and array accumulation
// - Validation of value trees with structured errors (code, path, JSON Pointer, message)
// - Accessor structs with lazily coerced readers
//
// Design policy:
// - The core is synchronous and performs no I/O; decoding lives under source/ and declfile/.
// - Builders never reject uncoercible input; strictness comes from Validate and BuildStrict.
// - Prefer black-box testing against public APIs.
//
// Typical usage:
//
//  decl := dynskema.Declare(func(d *dynskema.Declarer) {
//      d.Attr("model", dynskema.String, dynskema.Default("gpt-4o"))
//      d.Attr("message", dynskema.Arguments("role"), dynskema.Array(), func(d *dynskema.Declarer) {
//          d.Attr("role", dynskema.String, dynskema.In([]string{"system", "user"}))
//          d.Attr("content", dynskema.String)
//      })
//  })
//  b, err := dynskema.New(decl)
//  tree, err := b.BuildStrict(nil, func(r *dynskema.Receiver) {
//      r.Set("message", "user", map[string]any{"content": "hello"})
//  })
//
