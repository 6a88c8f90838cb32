package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Phase indicates where in the probe sequence the error occurred
type Phase string

const (
	PhaseConfig  Phase = "config"  // option and file validation
	PhaseLoad    Phase = "load"    // provider open
	PhaseResolve Phase = "resolve" // symbol lookup and binding
	PhaseCall    Phase = "call"    // foreign invocation
	PhaseRelease Phase = "release" // foreign deallocation
	PhaseDecode  Phase = "decode"  // result interpretation
)

// Kind categorizes the error
type Kind string

const (
	KindOpenFailed     Kind = "open_failed"
	KindNotFound       Kind = "not_found"
	KindNilPointer     Kind = "nil_pointer"
	KindUnsupported    Kind = "unsupported"
	KindInvalidInput   Kind = "invalid_input"
	KindInvalidData    Kind = "invalid_data"
	KindInvalidUTF8    Kind = "invalid_utf8"
	KindOutOfBounds    Kind = "out_of_bounds"
	KindAllocation     Kind = "allocation"
	KindTrap           Kind = "trap"
	KindReleased       Kind = "already_released"
	KindNotInitialized Kind = "not_initialized"
)

// Error is the structured error type used throughout the probe
type Error struct {
	Value   any
	Cause   error
	Phase   Phase
	Kind    Kind
	Library string
	Symbol  string
	Detail  string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.Symbol != "" {
		b.WriteString(" symbol ")
		b.WriteString(e.Symbol)
	}

	if e.Library != "" {
		if e.Symbol != "" {
			b.WriteString(" in ")
		} else {
			b.WriteByte(' ')
		}
		b.WriteString(e.Library)
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Library sets the provider path
func (b *Builder) Library(path string) *Builder {
	b.err.Library = path
	return b
}

// Symbol sets the exported symbol name
func (b *Builder) Symbol(name string) *Builder {
	b.err.Symbol = name
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// Load creates a provider load error carrying the loader's message as cause
func Load(library string, cause error) *Error {
	return &Error{
		Phase:   PhaseLoad,
		Kind:    KindOpenFailed,
		Library: library,
		Cause:   cause,
	}
}

// SymbolNotFound creates a symbol resolution error
func SymbolNotFound(library, symbol string, cause error) *Error {
	return &Error{
		Phase:   PhaseResolve,
		Kind:    KindNotFound,
		Library: library,
		Symbol:  symbol,
		Cause:   cause,
	}
}

// UndefinedSymbol is the loader-style message for a missing export, used
// as cause by providers whose loader has no dlerror of its own.
func UndefinedSymbol(name string) error {
	return fmt.Errorf("undefined symbol: %s", name)
}

// NilSymbol creates a resolution error for a symbol whose address is null
// even though the loader reported no error.
func NilSymbol(library, symbol string) *Error {
	return &Error{
		Phase:   PhaseResolve,
		Kind:    KindNilPointer,
		Library: library,
		Symbol:  symbol,
		Detail:  "symbol resolved to a null address",
	}
}

// Unsupported creates an unsupported operation error
func Unsupported(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnsupported,
		Detail: what,
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// InvalidData creates an invalid data error
func InvalidData(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidData,
		Detail: detail,
	}
}

// InvalidUTF8 creates an invalid UTF-8 error
func InvalidUTF8(phase Phase, data []byte) *Error {
	preview := data
	if len(preview) > 32 {
		preview = preview[:32]
	}
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidUTF8,
		Detail: fmt.Sprintf("invalid UTF-8 sequence: %x", preview),
	}
}

// OutOfBounds creates an out of bounds error for a guest memory access
func OutOfBounds(phase Phase, offset, size uint32) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOutOfBounds,
		Detail: fmt.Sprintf("offset %d out of bounds (memory size %d)", offset, size),
		Value:  offset,
	}
}

// AllocationFailed creates an allocation failure error
func AllocationFailed(phase Phase, size uint32, cause error) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindAllocation,
		Detail: fmt.Sprintf("failed to allocate %d bytes", size),
		Cause:  cause,
	}
}

// Trap creates an error for a foreign call that aborted
func Trap(phase Phase, symbol string, cause error) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindTrap,
		Symbol: symbol,
		Cause:  cause,
	}
}

// Released creates an error for use of an already released foreign string
func Released(phase Phase) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindReleased,
		Detail: "foreign string already released",
	}
}

// NotInitialized creates a not-initialized error
func NotInitialized(phase Phase, component string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotInitialized,
		Detail: fmt.Sprintf("%s not initialized", component),
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// IsLoad reports whether err is a provider load failure.
func IsLoad(err error) bool {
	return phaseOf(err) == PhaseLoad
}

// IsResolve reports whether err is a symbol resolution failure.
func IsResolve(err error) bool {
	return phaseOf(err) == PhaseResolve
}

func phaseOf(err error) Phase {
	var e *Error
	if errors.As(err, &e) {
		return e.Phase
	}
	return ""
}

// Reason returns the message a user should see for err. Load and resolve
// failures report the loader's own diagnostic when one is attached, the way
// dlerror() would print it; everything else reports the full error.
func Reason(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if !errors.As(err, &e) {
		return err.Error()
	}
	if (e.Phase == PhaseLoad || e.Phase == PhaseResolve) && e.Cause != nil {
		return e.Cause.Error()
	}
	return e.Error()
}
