package vm

import (
	"strings"

	"github.com/wudi/heysandbox/values"
)

// builtins are always available regardless of which tool names a host has
// registered; they are the sandbox's only guest-visible I/O surface and
// exist purely to feed the output buffer.
var builtins = map[string]func(ob *OutputBuffer, args []*values.Value) *values.Value{
	"print": builtinPrint,
	"puts":  builtinPuts,
	"p":     builtinP,
}

func builtinPrint(ob *OutputBuffer, args []*values.Value) *values.Value {
	for _, a := range args {
		ob.WriteString(a.ToString())
	}
	return values.Nil()
}

func builtinPuts(ob *OutputBuffer, args []*values.Value) *values.Value {
	if len(args) == 0 {
		ob.WriteString("\n")
		return values.Nil()
	}
	for _, a := range args {
		putsOne(ob, a)
	}
	return values.Nil()
}

// putsOne writes a single puts argument, recursing element-wise into
// arrays (including arrays nested inside arrays) so that every scalar ends
// up on its own line.
func putsOne(ob *OutputBuffer, v *values.Value) {
	if v.IsArray() {
		elems := v.ArrayVal()
		if len(elems) == 0 {
			ob.WriteString("\n")
			return
		}
		for _, e := range elems {
			putsOne(ob, e)
		}
		return
	}
	s := v.ToString()
	ob.WriteString(s)
	if !strings.HasSuffix(s, "\n") {
		ob.WriteString("\n")
	}
}

func builtinP(ob *OutputBuffer, args []*values.Value) *values.Value {
	for _, a := range args {
		ob.WriteString(a.Inspect())
		ob.WriteString("\n")
	}
	switch len(args) {
	case 0:
		return values.Nil()
	case 1:
		return args[0]
	default:
		return values.Array(append([]*values.Value{}, args...))
	}
}
