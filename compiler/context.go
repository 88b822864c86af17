package compiler

// Context accumulates state across successive Compile calls against the
// same guest-language session, mirroring the teacher's own compile-context
// idea of a persistent parse/compile cursor: it is what lets two calls to
// Session.Eval on one sandbox report independent, 1-based syntax-error line
// numbers instead of a monotonically growing absolute line count.
type Context struct {
	// Filename is reported in diagnostics; the sandbox always uses the
	// same fixed, synthetic filename, since guest sources never come from
	// disk.
	Filename string
	// Lineno is the line the next Eval's source starts at. Session.Eval
	// hands it to the lexer as the starting line, rebases parser-reported
	// syntax-error lines against it, and advances it by one after every
	// Eval, successful or failed; Compile itself only reads it. This is the
	// same way the teacher's compile context tracks a running line cursor
	// across REPL turns.
	Lineno int
	// CaptureErrors mirrors the guest VM flag of the same name: with it set,
	// parse/compile failures are returned as data (a SyntaxError-shaped
	// error) rather than raised as an uncaught exception.
	CaptureErrors bool
}

// NewContext constructs a fresh compile context for a new or just-reset
// session.
func NewContext() *Context {
	return &Context{
		Filename:      "(sandbox)",
		Lineno:        1,
		CaptureErrors: true,
	}
}
