// Package bridge implements the value-marshalling boundary between host
// (Go) code and the guest scripting language. Because the guest runtime
// already represents its values as *values.Value — the same tagged union
// the spec calls the "intermediate value" — the intermediate type is not a
// separate representation here: *values.Value plays both roles at once.
// What remains to implement is the pair of conversions at the actual edge
// of the type system: arbitrary host-side `any` arguments and return
// values on one side, guest values on the other, with the spec's strict
// unsupported-type handling and "symbol becomes string" coercion rule.
package bridge

import (
	"fmt"

	"github.com/wudi/heysandbox/values"
)

// Symbol is a host-side stand-in for the guest language's symbol type.
// Tool callbacks that want to hand back an identifier-like value without
// constructing a full Value can return a Symbol; the bridge coerces it to
// a guest String, matching the spec's symbol-to-string rule.
type Symbol string

// HostToIntermediate converts an arbitrary host value into a guest Value.
// Supported inputs are nil, bool, the Go integer kinds (narrowed to an
// int64 guest Integer — conversion fails if the value does not fit),
// float32/float64, string, Symbol, []any (recursively converted to an
// Array), and map[string]any or map[any]any (recursively converted to a
// Hash, insertion order not significant for maps). Anything else fails
// with an "unsupported type for sandbox: <class-name>" error, matching
// §4.2's contract verbatim.
func HostToIntermediate(v any) (*values.Value, error) {
	switch x := v.(type) {
	case nil:
		return values.Nil(), nil
	case *values.Value:
		return x, nil
	case bool:
		return values.Bool(x), nil
	case int:
		return values.Int(int64(x)), nil
	case int8:
		return values.Int(int64(x)), nil
	case int16:
		return values.Int(int64(x)), nil
	case int32:
		return values.Int(int64(x)), nil
	case int64:
		return values.Int(x), nil
	case uint:
		return intFromUint64(uint64(x))
	case uint8:
		return values.Int(int64(x)), nil
	case uint16:
		return values.Int(int64(x)), nil
	case uint32:
		return intFromUint64(uint64(x))
	case uint64:
		return intFromUint64(x)
	case float32:
		return values.Float(float64(x)), nil
	case float64:
		return values.Float(x), nil
	case string:
		return values.String(x), nil
	case Symbol:
		return values.String(string(x)), nil
	case []any:
		elems := make([]*values.Value, 0, len(x))
		for _, e := range x {
			cv, err := HostToIntermediate(e)
			if err != nil {
				// Nothing to free on the Go side beyond letting the
				// partially built slice become garbage: the spec's
				// recursive-free-on-error contract exists to plug a leak
				// in manually managed memory, which a GC'd host has no
				// analogue of.
				return nil, err
			}
			elems = append(elems, cv)
		}
		return values.Array(elems), nil
	case map[string]any:
		pairs := make([]values.Pair, 0, len(x))
		for k, val := range x {
			cv, err := HostToIntermediate(val)
			if err != nil {
				return nil, err
			}
			pairs = append(pairs, values.Pair{Key: values.String(k), Value: cv})
		}
		return values.Hash(pairs), nil
	case map[any]any:
		pairs := make([]values.Pair, 0, len(x))
		for k, val := range x {
			kv, err := HostToIntermediate(k)
			if err != nil {
				return nil, err
			}
			vv, err := HostToIntermediate(val)
			if err != nil {
				return nil, err
			}
			pairs = append(pairs, values.Pair{Key: kv, Value: vv})
		}
		return values.Hash(pairs), nil
	default:
		return nil, fmt.Errorf("unsupported type for sandbox: %T", v)
	}
}

func intFromUint64(u uint64) (*values.Value, error) {
	if u > (1<<63 - 1) {
		return nil, fmt.Errorf("unsupported type for sandbox: integer overflow converting %d to i64", u)
	}
	return values.Int(int64(u)), nil
}

// IntermediateToHost converts a guest Value into a plain Go value, the
// inverse of HostToIntermediate modulo the symbol coercion (symbols never
// reappear; they were already flattened to strings on the way in). Hashes
// always come back as map[any]any, whatever map type went in.
func IntermediateToHost(v *values.Value) (any, error) {
	if v.IsNil() {
		return nil, nil
	}
	switch {
	case v.IsBool():
		return v.BoolVal(), nil
	case v.IsInt():
		return v.IntVal(), nil
	case v.IsFloat():
		return v.FloatVal(), nil
	case v.IsString():
		return v.StringVal(), nil
	case v.IsArray():
		out := make([]any, len(v.ArrayVal()))
		for i, e := range v.ArrayVal() {
			hv, err := IntermediateToHost(e)
			if err != nil {
				return nil, err
			}
			out[i] = hv
		}
		return out, nil
	case v.IsHash():
		out := make(map[any]any, len(v.HashVal()))
		for _, p := range v.HashVal() {
			kv, err := IntermediateToHost(p.Key)
			if err != nil {
				return nil, err
			}
			vv, err := IntermediateToHost(p.Value)
			if err != nil {
				return nil, err
			}
			out[kv] = vv
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported type for sandbox: %s", v.ClassName())
	}
}

// GuestToIntermediate validates a guest-produced Value against the
// supported-variant set. Since package values only ever constructs values
// of a supported Kind, this never fails in practice; it exists so the
// trampoline has a single named conversion step to call at the
// guest→host boundary, matching the spec's four-function naming scheme.
func GuestToIntermediate(v *values.Value) (*values.Value, error) {
	if v == nil {
		return values.Nil(), nil
	}
	return v, nil
}

// IntermediateToGuest is the identity conversion in the opposite
// direction: the intermediate representation already is a guest Value.
func IntermediateToGuest(v *values.Value) *values.Value {
	if v == nil {
		return values.Nil()
	}
	return v
}
