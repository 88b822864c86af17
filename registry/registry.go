// Package registry holds the set of host-registered tool names for a
// session, independent of the session's current guest VM, so that names
// survive across reset (4.5.3) while the VM they are installed on does not.
// Structurally this mirrors the teacher's registry package: a small owned
// table the session consults, deliberately kept free of any dependency on
// the VM or bridge packages so it can be constructed before either exists.
package registry

import (
	"fmt"
	"sync"
)

// MaxTools is the hard cap on registered tool names per session (4.5.4).
const MaxTools = 64

// ErrCapacityExceeded is returned by Define once MaxTools names are already
// registered.
var ErrCapacityExceeded = fmt.Errorf("tool registry: capacity exceeded (max %d)", MaxTools)

// ErrAlreadyRegistered is returned by Define for a duplicate name; the spec
// treats registered names as an owned list rather than a set, but rejecting
// duplicates up front avoids silently wasting capacity slots.
var ErrAlreadyRegistered = fmt.Errorf("tool registry: name already registered")

// Registry is the ordered list of tool names a session has defined. Order
// is preserved because re-installing names onto a freshly opened VM after
// reset should be deterministic.
type Registry struct {
	mu    sync.Mutex
	names []string
	seen  map[string]bool
}

// New constructs an empty Registry.
func New() *Registry {
	return &Registry{seen: make(map[string]bool)}
}

// Define appends name to the registry. It fails if the registry is already
// at MaxTools or if name is already registered.
func (r *Registry) Define(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.seen[name] {
		return ErrAlreadyRegistered
	}
	if len(r.names) >= MaxTools {
		return ErrCapacityExceeded
	}
	r.names = append(r.names, name)
	r.seen[name] = true
	return nil
}

// Names returns a snapshot of the registered tool names in registration
// order, the list Session.reset re-installs onto each fresh VM.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.seen[name]
}

// Len reports the number of registered names.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.names)
}
