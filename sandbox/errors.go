package sandbox

import "errors"

// ErrSessionClosed is returned by every Session operation except Close and
// IsClosed once the session has been closed, satisfying the spec's "after
// close, no further operation may succeed" invariant (4.5 Invariants).
var ErrSessionClosed = errors.New("sandbox: session is closed")

// ErrReentrantEval is returned if Eval is called while another Eval is
// already in progress on the same session — undefined behavior in the
// spec's own terms (Section 5), guarded here rather than left undefined.
var ErrReentrantEval = errors.New("sandbox: eval called re-entrantly")

// TimeoutError is the distinct typed exception the spec requires the host
// facade to surface when wall-clock execution time is exceeded (Section 6,
// Section 7 lane 1).
type TimeoutError struct {
	Message string
}

func (e *TimeoutError) Error() string { return e.Message }

// MemoryLimitError is the distinct typed exception the spec requires the
// host facade to surface when the peak-heap ceiling is exceeded.
type MemoryLimitError struct {
	Message string
}

func (e *MemoryLimitError) Error() string { return e.Message }
