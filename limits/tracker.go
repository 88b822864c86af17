// Package limits implements the sandbox's two resource ceilings: a
// heap-byte memory tracker and a wall-clock deadline watcher. Both are
// adapted from the teacher's timeout-handling machinery in
// vm/execution_context_v2.go and vm/timeout_test.go, generalized from a
// single fixed time budget into the pair of cooperative limits this
// sandbox enforces.
package limits

import "sync"

// Tracker approximates the spec's C allocator-shim memory accountant in a
// garbage-collected runtime: instead of prepending a size header to every
// malloc/realloc, callers charge and release approximate byte counts
// directly at the points the guest value package grows or shrinks a
// value's backing storage (see values.Value.ApproxSize). current is always
// the exact sum of what has been charged and not yet released, mirroring
// the spec's invariant that current equals the live sum of header sizes.
type Tracker struct {
	mu       sync.Mutex
	current  uint64
	limit    uint64 // 0 = unlimited
	exceeded bool
}

// NewTracker constructs a tracker with the given limit (0 = unlimited).
func NewTracker(limit uint64) *Tracker {
	return &Tracker{limit: limit}
}

// Charge accounts for a new allocation of size bytes. It reports whether
// the charge was accepted; on rejection it sets exceeded and the caller's
// allocation must not proceed (the guest-level analogue of the shim
// returning NULL from malloc).
func (t *Tracker) Charge(size uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.limit > 0 && t.current+size > t.limit {
		t.exceeded = true
		return false
	}
	t.current += size
	return true
}

// Release accounts for a shrink or free of size bytes.
func (t *Tracker) Release(size uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if size > t.current {
		t.current = 0
		return
	}
	t.current -= size
}

// Resize charges or releases the delta between an allocation's old and new
// size, mirroring the shim's realloc path.
func (t *Tracker) Resize(oldSize, newSize uint64) bool {
	if newSize <= oldSize {
		t.Release(oldSize - newSize)
		return true
	}
	return t.Charge(newSize - oldSize)
}

// Current returns the tracker's live byte count.
func (t *Tracker) Current() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current
}

// Exceeded reports whether the tracker has refused a charge since the last
// Reset or ClearExceeded.
func (t *Tracker) Exceeded() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.exceeded
}

// SetLimit rearms the tracker's ceiling for a new eval, leaving current and
// exceeded untouched (limits_begin/limits_end only toggle the limit, never
// the running total).
func (t *Tracker) SetLimit(limit uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.limit = limit
}

// Reset zeroes current and clears exceeded, used when a session discards
// its guest VM and starts fresh.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.current = 0
	t.exceeded = false
}

// ClearExceeded clears the exceeded flag without touching current, used at
// the start of a new eval so a prior memory-limit breach does not bleed
// into the next call's classification.
func (t *Tracker) ClearExceeded() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.exceeded = false
}
