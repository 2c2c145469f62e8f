package dynskema

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/reoring/dynskema/i18n"
)

// Error codes (exported consts for IDE completion and type safety by convention)
const (
	CodeRequired         = "required"
	CodeIncompatibleType = "incompatible_type"
	CodeInOption         = "in_option"
	CodeNoSuchAttribute  = "no_such_attribute"
	CodeArity            = "arity"
	CodeAssignmentTarget = "assignment_target"
	CodeConstruction     = "construction"
	CodeDeclaration      = "declaration"
)

// Sentinels matched by ValidationError.Is.
var (
	ErrRequired         = errors.New("dynskema: required")
	ErrIncompatibleType = errors.New("dynskema: incompatible type")
	ErrInOption         = errors.New("dynskema: not in option")
)

// ValidationError is a single validator finding.
type ValidationError struct {
	Code string
	// Path joins declared keys with '/', ending with Key.
	Path string
	Key  string
	// Pointer locates the value in the built tree (external names and indices).
	Pointer string
	// Types is the expected candidate list (incompatible_type only).
	Types []*Type
	// Allowed is the declared membership set (in_option only).
	Allowed any
	// Value is the offending value (nil for required).
	Value   any
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// Is matches the sentinel for the error's code.
func (e *ValidationError) Is(target error) bool {
	switch target {
	case ErrRequired:
		return e.Code == CodeRequired
	case ErrIncompatibleType:
		return e.Code == CodeIncompatibleType
	case ErrInOption:
		return e.Code == CodeInOption
	}
	return false
}

func keyPath(path, key string) string {
	path = strings.TrimSuffix(path, "/")
	if path == "" {
		return key
	}
	return path + "/" + key
}

func newRequiredError(path, key, pointer string) *ValidationError {
	kp := keyPath(path, key)
	return &ValidationError{
		Code: CodeRequired, Path: kp, Key: key, Pointer: pointer,
		Message: i18n.T(CodeRequired, map[string]string{"path": kp}),
	}
}

func newIncompatibleTypeError(path, key, pointer string, types []*Type, v any) *ValidationError {
	kp := keyPath(path, key)
	return &ValidationError{
		Code: CodeIncompatibleType, Path: kp, Key: key, Pointer: pointer, Types: types, Value: v,
		Message: i18n.T(CodeIncompatibleType, map[string]string{"path": kp, "expected": typeNames(types), "got": fmt.Sprintf("%T", v)}),
	}
}

func newInOptionError(path, key, pointer string, allowed, v any) *ValidationError {
	kp := keyPath(path, key)
	return &ValidationError{
		Code: CodeInOption, Path: kp, Key: key, Pointer: pointer, Allowed: allowed, Value: v,
		Message: i18n.T(CodeInOption, map[string]string{"path": kp, "allowed": fmt.Sprint(allowed), "got": fmt.Sprint(v)}),
	}
}

// ValidationErrors is a collection of validation errors that implements error.
type ValidationErrors []*ValidationError

// Error summarizes the first few errors.
func (errs ValidationErrors) Error() string {
	if len(errs) == 0 {
		return ""
	}
	const maxShown = 3
	b := &strings.Builder{}
	n := len(errs)
	lim := n
	if lim > maxShown {
		lim = maxShown
	}
	for i := 0; i < lim; i++ {
		if i > 0 {
			b.WriteString("; ")
		}
		// e.g. required at message/role
		fmt.Fprintf(b, "%s at %s", errs[i].Code, errs[i].Path)
	}
	if n > lim {
		fmt.Fprintf(b, "; ... (total %d)", n)
	}
	return b.String()
}

// Unwrap exposes the individual errors to errors.Is/As.
func (errs ValidationErrors) Unwrap() []error {
	out := make([]error, len(errs))
	for i, e := range errs {
		out[i] = e
	}
	return out
}

// AsValidationErrors extracts ValidationErrors from an error using errors.As
// internally. A lone *ValidationError is returned as a one-element collection.
func AsValidationErrors(err error) (ValidationErrors, bool) {
	if err == nil {
		return nil, false
	}
	var errs ValidationErrors
	if errors.As(err, &errs) {
		return errs, true
	}
	var one *ValidationError
	if errors.As(err, &one) {
		return ValidationErrors{one}, true
	}
	return nil, false
}

// ---- structural errors (compile and build time) ----

// DeclarationError reports a malformed attribute declaration.
type DeclarationError struct {
	Key    string
	Reason string
}

func (e *DeclarationError) Error() string {
	return i18n.T(CodeDeclaration, map[string]string{"key": e.Key, "detail": e.Reason})
}

// NoSuchAttributeError reports an assignment to an undeclared key.
type NoSuchAttributeError struct {
	Key   string
	Valid []string
}

func (e *NoSuchAttributeError) Error() string {
	return i18n.T(CodeNoSuchAttribute, map[string]string{"key": e.Key, "keys": strings.Join(e.Valid, ", ")})
}

// ArityError reports a call with the wrong number or shape of arguments.
type ArityError struct {
	Key    string
	Want   string
	Given  int
	Reason string
}

func (e *ArityError) Error() string {
	detail := e.Reason
	if detail == "" {
		detail = "requires " + e.Want + " arguments but " + strconv.Itoa(e.Given) + " was given"
	}
	return i18n.T(CodeArity, map[string]string{"key": e.Key, "detail": detail})
}

// AssignmentTargetError reports a value block assignment the target cannot
// accept.
type AssignmentTargetError struct {
	Key    string
	Target string
	Cause  error
}

func (e *AssignmentTargetError) Error() string {
	msg := i18n.T(CodeAssignmentTarget, map[string]string{"key": e.Key, "target": e.Target})
	if e.Cause != nil {
		msg += " " + e.Cause.Error()
	}
	return msg
}

func (e *AssignmentTargetError) Unwrap() error { return e.Cause }

// ConstructionError reports a value block without an instance for a type that
// cannot be constructed unambiguously.
type ConstructionError struct {
	Key    string
	Reason string
	Cause  error
}

func (e *ConstructionError) Error() string {
	detail := e.Reason
	if e.Cause != nil {
		detail += ": " + e.Cause.Error()
	}
	return i18n.T(CodeConstruction, map[string]string{"key": e.Key, "detail": detail})
}

func (e *ConstructionError) Unwrap() error { return e.Cause }
