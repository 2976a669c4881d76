// Package diagnostic provides the error taxonomy and positioned error
// reporting of the shader compiler.
//
// Every failure carries a Kind. Kinds implement error, so callers test for
// a category with errors.Is(err, diagnostic.ParseError) and reach the full
// report with errors.As(err, &*diagnostic.Error).
package diagnostic

import (
	"fmt"
	"strings"

	"github.com/HugoDaniel/shaderlab/internal/sourcemap"
)

// Kind classifies a compile error.
type Kind uint8

const (
	// LexError is an unrecognized character in the shader text.
	LexError Kind = iota + 1
	// MacroRedefinitionError is a #define that changes an existing macro.
	MacroRedefinitionError
	// MacroArityError is a function-like macro call with the wrong number of arguments.
	MacroArityError
	// MacroRecursionError is a macro expansion nested past the expansion limit.
	MacroRecursionError
	// UnresolvedIncludeError is an #include of a chunk the resolver does not know.
	UnresolvedIncludeError
	// ParseError is a token sequence the grammar does not accept.
	ParseError
	// UnresolvedPassReferenceError is a UsePass whose target cannot be found.
	UnresolvedPassReferenceError
	// UnknownRenderStateKeyError is a render-state category, property, index
	// or named block that does not exist.
	UnknownRenderStateKeyError
	// RenderStateValueError is a render-state literal of the wrong type.
	RenderStateValueError
	// UnresolvedBuiltinError is a UseBuiltin naming an unregistered shader.
	UnresolvedBuiltinError
)

var kindNames = [...]string{
	LexError:                     "LexError",
	MacroRedefinitionError:       "MacroRedefinitionError",
	MacroArityError:              "MacroArityError",
	MacroRecursionError:          "MacroRecursionError",
	UnresolvedIncludeError:       "UnresolvedIncludeError",
	ParseError:                   "ParseError",
	UnresolvedPassReferenceError: "UnresolvedPassReferenceError",
	UnknownRenderStateKeyError:   "UnknownRenderStateKeyError",
	RenderStateValueError:        "RenderStateValueError",
	UnresolvedBuiltinError:       "UnresolvedBuiltinError",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) && kindNames[k] != "" {
		return kindNames[k]
	}
	return "UnknownError"
}

// Error makes a Kind usable as an errors.Is target.
func (k Kind) Error() string {
	return k.String()
}

// Position is a location in an original source block.
type Position = sourcemap.Position

// Error is a single positioned compile error.
type Error struct {
	Kind    Kind
	Message string
	Block   string   // chunk key, empty for the shader source itself
	Pass    string   // enclosing pass, if known
	Pos     Position // zero Line means unknown
	Err     error    // underlying cause, if any
}

// New creates an error of the given kind without a position.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// At creates an error of the given kind at a known position.
func At(kind Kind, block string, pos Position, format string, args ...any) *Error {
	return &Error{Kind: kind, Block: block, Pos: pos, Message: fmt.Sprintf(format, args...)}
}

// Error formats as "block:line:col: Kind: message", omitting what is unknown.
func (e *Error) Error() string {
	var sb strings.Builder
	if e.Block != "" {
		sb.WriteString(e.Block)
		sb.WriteByte(':')
	}
	if e.Pos.Line > 0 {
		fmt.Fprintf(&sb, "%d:%d:", e.Pos.Line, e.Pos.Column)
	}
	if sb.Len() > 0 {
		sb.WriteByte(' ')
	}
	sb.WriteString(e.Kind.String())
	sb.WriteString(": ")
	sb.WriteString(e.Message)
	if e.Pass != "" {
		fmt.Fprintf(&sb, " (in pass %q)", e.Pass)
	}
	return sb.String()
}

// Is reports whether target is this error's Kind.
func (e *Error) Is(target error) bool {
	k, ok := target.(Kind)
	return ok && k == e.Kind
}

func (e *Error) Unwrap() error {
	return e.Err
}

// InPass sets the enclosing pass unless one is already recorded.
func (e *Error) InPass(name string) *Error {
	if e.Pass == "" {
		e.Pass = name
	}
	return e
}

// List is a sequence of errors reported together.
type List []*Error

func (l List) Error() string {
	switch len(l) {
	case 0:
		return "no errors"
	case 1:
		return l[0].Error()
	}
	var sb strings.Builder
	for i, e := range l {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(e.Error())
	}
	return sb.String()
}

// Unwrap exposes every element to errors.Is and errors.As.
func (l List) Unwrap() []error {
	errs := make([]error, len(l))
	for i, e := range l {
		errs[i] = e
	}
	return errs
}

// Err returns nil for an empty list and the list otherwise.
func (l List) Err() error {
	if len(l) == 0 {
		return nil
	}
	return l
}
