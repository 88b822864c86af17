package vm

import "errors"

// Pre-defined VM error sentinels, distinguishing error identity (for
// errors.Is) from display text.
var (
	ErrConstantOutOfRange = errors.New("constant index out of range")
	ErrNameOutOfRange     = errors.New("name index out of range")
	ErrStackUnderflow     = errors.New("stack underflow")
	ErrInvalidJumpTarget  = errors.New("invalid jump target")
	ErrUnknownOpcode      = errors.New("unknown opcode")
	ErrDivisionByZero     = errors.New("division by zero")
	ErrModuloByZero       = errors.New("modulo by zero")
	ErrNotIndexable       = errors.New("value is not indexable")
	ErrIndexOutOfRange    = errors.New("index out of range")
	ErrUnknownFunction    = errors.New("unknown function")
	ErrReentrantEval      = errors.New("eval called re-entrantly from a tool callback")

	// ErrTimeout and ErrMemoryLimit are raised by the deadline watcher and
	// memory tracker respectively. They are ordinary RuntimeErrors from the
	// VM's point of view; Session.Eval classifies them by flag inspection
	// (never by matching this text) before surfacing a typed error kind.
	ErrTimeout     = errors.New("execution timeout exceeded")
	ErrMemoryLimit = errors.New("memory limit exceeded")
)

// RuntimeError is a guest-level exception raised during bytecode execution:
// a division by zero, an unknown variable, a failed tool call, or one of
// the two termination conditions above. It carries the source line active
// when the exception was raised, mirroring the guest VM's own exception
// object exposing a backtrace location, plus the guest exception class
// name (defaulting to "RuntimeError") used to render the error the same
// way the guest language's own `inspect` would: "<Class>: <message>".
type RuntimeError struct {
	Err   error
	Line  int
	Class string
}

func (e *RuntimeError) Error() string {
	return e.Err.Error()
}

func (e *RuntimeError) Unwrap() error {
	return e.Err
}

// Inspect renders the exception the way the guest language's own
// inspect/to_s on a raised exception would.
func (e *RuntimeError) Inspect() string {
	class := e.Class
	if class == "" {
		class = "RuntimeError"
	}
	return class + ": " + e.Err.Error()
}

// NewRuntimeError wraps err as a guest-raised exception at the given line
// with the default "RuntimeError" class.
func NewRuntimeError(err error, line int) *RuntimeError {
	return &RuntimeError{Err: err, Line: line}
}

// NewTypedError wraps err as a guest-raised exception of the given class,
// used by the dispatch loop to turn a ClassedError from a ToolCaller (such
// as the tool trampoline's TypeError for bridge conversion failures) into a
// guest exception.
func NewTypedError(class string, err error, line int) *RuntimeError {
	return &RuntimeError{Err: err, Line: line, Class: class}
}

// ClassedError lets a ToolCaller implementation (outside this package)
// signal which guest exception class an error should surface as, without
// needing to know the current instruction's source line the way
// RuntimeError does. The VM dispatch loop unwraps one into a RuntimeError
// carrying the right Class and the calling instruction's line.
type ClassedError struct {
	Class string
	Err   error
}

func (e *ClassedError) Error() string { return e.Err.Error() }
func (e *ClassedError) Unwrap() error { return e.Err }
