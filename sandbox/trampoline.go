package sandbox

import (
	"fmt"

	"github.com/wudi/heysandbox/bridge"
	"github.com/wudi/heysandbox/values"
	"github.com/wudi/heysandbox/vm"
)

// ToolCallback is the host-supplied function invoked for every registered
// tool name a guest program calls. Arguments have already been converted
// out of guest values into plain Go values by the time the callback runs;
// its return value is converted back the same way. A non-nil error is
// surfaced to the guest as a RuntimeError carrying err's message, matching
// the spec's "host callback returns {error}" contract (Section 4.6 step 7)
// — host-side panics or exceptions inside the callback must be recovered
// by the callback's own author, never left to unwind into the guest VM.
type ToolCallback func(methodName string, args []any) (any, error)

// trampoline is the single dispatch point every registered tool name
// routes through, implementing vm.ToolCaller. It is "single" in the same
// sense the spec's own trampoline is: one Go method body backs every name,
// disambiguated only by the name argument, rather than one closure per
// registered tool.
type trampoline struct {
	session *Session
}

func (t *trampoline) CallTool(name string, args []*values.Value) (*values.Value, error) {
	if !t.session.registry.Has(name) {
		return nil, fmt.Errorf("%w: %s", vm.ErrUnknownFunction, name)
	}
	cb := t.session.callback
	if cb == nil {
		return nil, &vm.ClassedError{
			Class: "RuntimeError",
			Err:   fmt.Errorf("no callback registered for tool %q", name),
		}
	}

	hostArgs := make([]any, len(args))
	for i, a := range args {
		iv, err := bridge.GuestToIntermediate(a)
		if err != nil {
			return nil, &vm.ClassedError{Class: "TypeError", Err: err}
		}
		hv, err := bridge.IntermediateToHost(iv)
		if err != nil {
			return nil, &vm.ClassedError{Class: "TypeError", Err: err}
		}
		hostArgs[i] = hv
	}

	result, err := cb(name, hostArgs)
	if err != nil {
		return nil, &vm.ClassedError{Class: "RuntimeError", Err: err}
	}

	iv, err := bridge.HostToIntermediate(result)
	if err != nil {
		return nil, &vm.ClassedError{Class: "TypeError", Err: err}
	}
	return bridge.IntermediateToGuest(iv), nil
}
