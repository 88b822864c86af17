// Package values implements the guest-language runtime value type used by
// the bytecode interpreter in package vm. It mirrors the tagged-union value
// model mruby-style embedded languages expose at their C boundary: a single
// Value carries a Kind discriminant plus an untyped payload, so the rest of
// the interpreter (and the host/guest bridge in package bridge) can treat
// values uniformly regardless of their underlying Go representation.
package values

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Kind discriminates the variants a guest Value may hold. The set is
// intentionally small: it is exactly the set the host/guest bridge knows how
// to translate (see package bridge), plus nothing else.
type Kind byte

const (
	KindNil Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindArray
	KindHash
)

func (k Kind) String() string {
	switch k {
	case KindNil:
		return "NilClass"
	case KindBool:
		return "Boolean"
	case KindInt:
		return "Integer"
	case KindFloat:
		return "Float"
	case KindString:
		return "String"
	case KindArray:
		return "Array"
	case KindHash:
		return "Hash"
	default:
		return "Unknown"
	}
}

// Pair is a single key/value entry in a Hash. Hashes preserve insertion
// order, matching the guest language's own iteration order guarantee.
type Pair struct {
	Key   *Value
	Value *Value
}

// Value is a single guest-runtime value. Arrays and Hashes own their
// elements; copying a Value copies the pointer, not the aggregate, so
// mutation is visible through every alias (as in the guest language itself).
type Value struct {
	Kind  Kind
	b     bool
	i     int64
	f     float64
	s     string
	arr   []*Value
	pairs []Pair
}

func Nil() *Value                 { return &Value{Kind: KindNil} }
func Bool(b bool) *Value          { return &Value{Kind: KindBool, b: b} }
func Int(i int64) *Value          { return &Value{Kind: KindInt, i: i} }
func Float(f float64) *Value      { return &Value{Kind: KindFloat, f: f} }
func String(s string) *Value      { return &Value{Kind: KindString, s: s} }

// Array constructs an array value from the given elements (nil is fine, it
// yields an empty array). The slice is taken by reference.
func Array(elems []*Value) *Value {
	if elems == nil {
		elems = []*Value{}
	}
	return &Value{Kind: KindArray, arr: elems}
}

// Hash constructs a hash value from the given ordered pairs.
func Hash(pairs []Pair) *Value {
	if pairs == nil {
		pairs = []Pair{}
	}
	return &Value{Kind: KindHash, pairs: pairs}
}

func (v *Value) IsNil() bool   { return v == nil || v.Kind == KindNil }
func (v *Value) IsBool() bool  { return v != nil && v.Kind == KindBool }
func (v *Value) IsInt() bool   { return v != nil && v.Kind == KindInt }
func (v *Value) IsFloat() bool { return v != nil && v.Kind == KindFloat }
func (v *Value) IsString() bool { return v != nil && v.Kind == KindString }
func (v *Value) IsArray() bool { return v != nil && v.Kind == KindArray }
func (v *Value) IsHash() bool  { return v != nil && v.Kind == KindHash }

func (v *Value) BoolVal() bool      { return v.b }
func (v *Value) IntVal() int64      { return v.i }
func (v *Value) FloatVal() float64  { return v.f }
func (v *Value) StringVal() string  { return v.s }
func (v *Value) ArrayVal() []*Value { return v.arr }
func (v *Value) HashVal() []Pair    { return v.pairs }

// Push appends to an array value in place. Callers
// that need to charge the memory tracker for the growth should inspect
// cap(v.arr) before and after.
func (v *Value) Push(elem *Value) {
	v.arr = append(v.arr, elem)
}

// Set inserts or overwrites a key in a hash value, preserving the position
// of an existing key or appending a new pair.
func (v *Value) Set(key, val *Value) {
	for i := range v.pairs {
		if Equal(v.pairs[i].Key, key) {
			v.pairs[i].Value = val
			return
		}
	}
	v.pairs = append(v.pairs, Pair{Key: key, Value: val})
}

// Truthy implements the guest language's truthiness rule: everything is
// truthy except nil and false (zero, "", and empty collections are truthy).
func (v *Value) Truthy() bool {
	if v.IsNil() {
		return false
	}
	if v.IsBool() {
		return v.b
	}
	return true
}

// ApproxSize estimates the number of heap bytes a value's own payload
// occupies, excluding nested elements (those are charged individually as
// they are constructed). It stands in for the fixed-size allocation header
// a C allocator shim would report on malloc.
func (v *Value) ApproxSize() uint64 {
	const wordSize = 16 // Kind + union overhead, rounded to max-align.
	switch v.Kind {
	case KindString:
		return uint64(len(v.s)) + wordSize
	case KindArray:
		return uint64(cap(v.arr))*8 + wordSize
	case KindHash:
		return uint64(cap(v.pairs))*16 + wordSize
	default:
		return wordSize
	}
}

// ApproxSizeDeep estimates the total heap bytes a value occupies including
// everything it transitively references, unlike ApproxSize which only
// accounts for a value's own container overhead. Callers that charge a
// value built all at once from outside the VM's own incremental
// construction opcodes, a tool call's return value say, need the deep
// total, since no earlier instruction charged the nested elements already.
func (v *Value) ApproxSizeDeep() uint64 {
	size := v.ApproxSize()
	switch v.Kind {
	case KindArray:
		for _, e := range v.arr {
			size += e.ApproxSizeDeep()
		}
	case KindHash:
		for _, p := range v.pairs {
			size += p.Key.ApproxSizeDeep() + p.Value.ApproxSizeDeep()
		}
	}
	return size
}

// Equal reports whether two values are the same guest-level value. Arrays
// and Hashes compare structurally.
func Equal(a, b *Value) bool {
	if a.IsNil() || b.IsNil() {
		return a.IsNil() == b.IsNil()
	}
	if a.Kind != b.Kind {
		// Integers and floats compare numerically across kinds.
		if (a.Kind == KindInt || a.Kind == KindFloat) && (b.Kind == KindInt || b.Kind == KindFloat) {
			return numeric(a) == numeric(b)
		}
		return false
	}
	switch a.Kind {
	case KindBool:
		return a.b == b.b
	case KindInt:
		return a.i == b.i
	case KindFloat:
		return a.f == b.f
	case KindString:
		return a.s == b.s
	case KindArray:
		if len(a.arr) != len(b.arr) {
			return false
		}
		for i := range a.arr {
			if !Equal(a.arr[i], b.arr[i]) {
				return false
			}
		}
		return true
	case KindHash:
		if len(a.pairs) != len(b.pairs) {
			return false
		}
		for i := range a.pairs {
			if !Equal(a.pairs[i].Key, b.pairs[i].Key) || !Equal(a.pairs[i].Value, b.pairs[i].Value) {
				return false
			}
		}
		return true
	default:
		return true
	}
}

func numeric(v *Value) float64 {
	if v.Kind == KindInt {
		return float64(v.i)
	}
	return v.f
}

// ToString renders a value the way print/puts would: strings pass through
// unquoted, everything else uses Inspect.
func (v *Value) ToString() string {
	if v.IsString() {
		return v.s
	}
	return v.Inspect()
}

// Inspect renders a value as the guest language's literal/debug form, used
// for both the `p` builtin and Session.Eval's returned value string.
func (v *Value) Inspect() string {
	if v.IsNil() {
		return "nil"
	}
	switch v.Kind {
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		if math.Trunc(v.f) == v.f && !math.IsInf(v.f, 0) {
			return strconv.FormatFloat(v.f, 'f', 1, 64)
		}
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindString:
		return "\"" + escapeString(v.s) + "\""
	case KindArray:
		parts := make([]string, len(v.arr))
		for i, e := range v.arr {
			parts[i] = e.Inspect()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case KindHash:
		parts := make([]string, len(v.pairs))
		for i, p := range v.pairs {
			parts[i] = fmt.Sprintf("%s => %s", p.Key.Inspect(), p.Value.Inspect())
		}
		return "{" + strings.Join(parts, ", ") + "}"
	default:
		return "?"
	}
}

func escapeString(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString("\\\"")
		case '\\':
			b.WriteString("\\\\")
		case '\n':
			b.WriteString("\\n")
		case '\t':
			b.WriteString("\\t")
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ClassName returns the guest-visible type name, used in TypeError messages
// raised by the tool trampoline and the host/guest bridge.
func (v *Value) ClassName() string {
	if v.IsNil() {
		return "NilClass"
	}
	return v.Kind.String()
}
