// Package sandbox is the host facade: the opaque handle embedders hold,
// typed errors, and the new/eval/reset/close lifecycle (Section 4.5 and
// Section 6 of the design this package implements). It wires together
// package limits (resource ceilings), package compiler/lexer/parser (the
// parse/compile path), package vm (bytecode execution), package registry
// (tool-name bookkeeping), and package bridge (the trampoline's value
// marshalling), the same way the teacher's cmd/hey ties its own compiler
// and vm packages together behind a single entry point.
package sandbox

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/wudi/heysandbox/compiler"
	"github.com/wudi/heysandbox/lexer"
	"github.com/wudi/heysandbox/limits"
	"github.com/wudi/heysandbox/parser"
	"github.com/wudi/heysandbox/registry"
	"github.com/wudi/heysandbox/vm"
)

// Session is one live sandbox instance: a guest VM's execution state, its
// resource ceilings, its output buffer, and its registered tool names. The
// zero value is not usable; construct one with New.
type Session struct {
	mu sync.Mutex

	// id uniquely tags this session's log lines across a process that
	// hosts several concurrent sandboxes, the same way the teacher's
	// server components tag request-scoped log output.
	id uuid.UUID

	timeoutSeconds   float64
	memoryLimitBytes uint64

	tracker  *limits.Tracker
	deadline *limits.Deadline
	output   *vm.OutputBuffer
	ec       *vm.ExecutionContext
	cctx     *compiler.Context
	registry *registry.Registry
	engine   *vm.VM
	callback ToolCallback

	stackKeep int
	closed    bool
	inEval    bool

	log zerolog.Logger
}

// New constructs a Session with the given wall-clock timeout (seconds, 0 =
// unlimited) and peak-heap ceiling (bytes, 0 = unlimited). Unlike the
// spec's C-oriented `new`, this never fails: there is no separate VM-open
// step that can fail independently of ordinary Go allocation, so there is
// nothing meaningful to report as an initialization error.
func New(timeoutSeconds float64, memoryLimitBytes uint64) *Session {
	s := &Session{
		id:               uuid.New(),
		timeoutSeconds:   timeoutSeconds,
		memoryLimitBytes: memoryLimitBytes,
		tracker:          limits.NewTracker(0),
		deadline:         &limits.Deadline{},
		output:           vm.NewOutputBuffer(),
		cctx:             compiler.NewContext(),
		registry:         registry.New(),
		engine:           vm.New(),
	}
	s.log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Str("component", "sandbox").Str("session_id", s.id.String()).Logger()
	s.ec = vm.NewExecutionContext(s.tracker, s.deadline, s.output)
	s.ec.Tools = &trampoline{session: s}
	s.log.Debug().
		Float64("timeout_s", timeoutSeconds).
		Str("memory_limit", humanize.Bytes(memoryLimitBytes)).
		Msg("session opened")
	return s
}

// ID returns the session's unique identifier, stable for the session's
// lifetime and useful for correlating log lines across a host process that
// runs several sandboxes concurrently.
func (s *Session) ID() uuid.UUID {
	return s.id
}

// DefineFunction registers name as a callable tool. It fails once 64 names
// are already registered (Section 4.5.4) or once the session is closed.
func (s *Session) DefineFunction(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	if err := s.registry.Define(name); err != nil {
		return err
	}
	s.log.Debug().Str("tool", name).Msg("tool defined")
	return nil
}

// SetCallback installs the host function invoked for every registered
// tool call.
func (s *Session) SetCallback(cb ToolCallback) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	s.callback = cb
	return nil
}

// IsClosed reports whether Close has been called.
func (s *Session) IsClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Eval parses, compiles, and runs source against the session's persistent
// environment, following the ten steps in Section 4.5.2. Locals
// and the `_` register from any prior Eval remain visible; a syntax error,
// guest exception, timeout, or memory-limit breach all leave the session
// usable for the next Eval.
func (s *Session) Eval(source string) (*Result, error) {
	// inEval is guarded by mu only across this brief check-and-set; the
	// lock is released before the parse/compile/run body so that a tool
	// callback re-entering Eval on the same goroutine observes inEval
	// rather than deadlocking on a mutex a single thread already holds.
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrSessionClosed
	}
	if s.inEval {
		s.mu.Unlock()
		return nil, ErrReentrantEval
	}
	s.inEval = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.inEval = false
		s.mu.Unlock()
	}()

	// Step 1: reset output buffer (keep capacity).
	s.output.Reset()

	// Step 2: limits_begin.
	s.tracker.ClearExceeded()
	s.tracker.SetLimit(s.memoryLimitBytes)
	s.deadline.Arm(secondsToDuration(s.timeoutSeconds))

	// Step 3: parse.
	lx := lexer.New(source, s.cctx.Lineno)
	ps := parser.New(lx)
	prog := ps.ParseProgram()
	if errs := ps.Errors(); len(errs) > 0 {
		first := errs[0]
		relative := first.Line - s.cctx.Lineno + 1
		msg := fmt.Sprintf("SyntaxError: %s (line %d)", first.Message, relative)
		return s.finishWithError(msg), nil
	}

	// Step 4: compile.
	comp := compiler.New(s.cctx)
	cprog, err := comp.Compile(prog)
	if err != nil {
		msg := fmt.Sprintf("code generation failed: %s", err.Error())
		return s.finishWithError(msg), nil
	}

	// Steps 5-6: run. Locals persist across calls because ec.Locals is
	// never cleared here; stack_keep is tracked only informationally,
	// since the Go locals map widens on demand instead of needing an
	// explicit capture-width resize the way a fixed call frame would.
	result, runErr := s.engine.Run(cprog, s.ec)
	if w := s.ec.LocalCount(); w > s.stackKeep {
		s.stackKeep = w
	}

	// Step 7: limits_end.
	s.deadline.Disarm()
	s.tracker.SetLimit(0)

	output := s.output.String()

	if runErr != nil {
		errMsg := inspectError(runErr)
		kind := s.classify()
		s.cctx.Lineno++
		res := &Result{Output: output, Error: errMsg, ErrorKind: kind}
		switch kind {
		case ErrorKindTimeout:
			s.log.Warn().Str("error", errMsg).Msg("eval exceeded timeout")
			return res, &TimeoutError{Message: errMsg}
		case ErrorKindMemoryLimit:
			s.log.Warn().
				Str("error", errMsg).
				Str("tracker_current", humanize.Bytes(s.tracker.Current())).
				Str("tracker_limit", humanize.Bytes(s.memoryLimitBytes)).
				Msg("eval exceeded memory limit")
			return res, &MemoryLimitError{Message: errMsg}
		default:
			return res, nil
		}
	}

	// Step 10: success. `_` always takes the fresh value, even if the
	// program's last statement never mentioned `_` explicitly.
	s.ec.Last = result
	s.cctx.Lineno++
	valStr := result.Inspect()
	return &Result{Value: valStr, HasValue: true, Output: output, ErrorKind: ErrorKindNone}, nil
}

func (s *Session) finishWithError(msg string) *Result {
	s.deadline.Disarm()
	s.tracker.SetLimit(0)
	s.cctx.Lineno++
	return &Result{Output: s.output.String(), Error: msg, ErrorKind: ErrorKindRuntime}
}

// classify implements Section 4.5.2's classification rule: flag
// inspection only, never string matching.
func (s *Session) classify() ErrorKind {
	if s.deadline.Expired() {
		return ErrorKindTimeout
	}
	if s.tracker.Exceeded() {
		return ErrorKindMemoryLimit
	}
	return ErrorKindRuntime
}

func inspectError(err error) string {
	type inspector interface{ Inspect() string }
	if ins, ok := err.(inspector); ok {
		return ins.Inspect()
	}
	return "RuntimeError: " + err.Error()
}

func secondsToDuration(s float64) time.Duration {
	if s <= 0 {
		return 0
	}
	return time.Duration(s * float64(time.Second))
}

// Reset tears down the current guest execution state and opens a fresh
// one, re-registering every previously defined tool name (Section 4.5.3).
// Registered names themselves are preserved; the registry is untouched.
func (s *Session) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	s.tracker.Reset()
	s.output.Reset()
	s.cctx = compiler.NewContext()
	s.stackKeep = 0
	s.ec = vm.NewExecutionContext(s.tracker, s.deadline, s.output)
	s.ec.Tools = &trampoline{session: s}
	s.log.Debug().Int("tool_count", s.registry.Len()).Msg("session reset")
	return nil
}

// Close tears the session down. It is idempotent (Section 4.5.5, Testable
// property 11): calling it again is a no-op rather than an error.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.tracker.Reset()
	s.closed = true
	s.log.Debug().Msg("session closed")
	return nil
}
