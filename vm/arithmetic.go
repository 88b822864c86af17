package vm

import (
	"strings"

	"github.com/wudi/heysandbox/opcodes"
	"github.com/wudi/heysandbox/values"
)

// binop evaluates a single OP_BINOP instruction. Memory-charging for any
// new heap allocation it produces (string concatenation/repetition) is the
// caller's responsibility, since only the VM loop has the active tracker.
func binop(op opcodes.BinOp, left, right *values.Value) (*values.Value, error) {
	switch op {
	case opcodes.BinAdd:
		return arithAdd(left, right)
	case opcodes.BinSub:
		return arithSub(left, right)
	case opcodes.BinMul:
		return arithMul(left, right)
	case opcodes.BinDiv:
		return arithDiv(left, right)
	case opcodes.BinMod:
		return arithMod(left, right)
	case opcodes.BinPow:
		return arithPow(left, right)
	case opcodes.BinEq:
		return values.Bool(values.Equal(left, right)), nil
	case opcodes.BinNeq:
		return values.Bool(!values.Equal(left, right)), nil
	case opcodes.BinLt, opcodes.BinLte, opcodes.BinGt, opcodes.BinGte:
		return compare(op, left, right)
	case opcodes.BinAnd:
		return values.Bool(left.Truthy() && right.Truthy()), nil
	case opcodes.BinOr:
		return values.Bool(left.Truthy() || right.Truthy()), nil
	default:
		return nil, ErrUnknownOpcode
	}
}

func arithAdd(left, right *values.Value) (*values.Value, error) {
	if left.IsString() && right.IsString() {
		return values.String(left.StringVal() + right.StringVal()), nil
	}
	if left.IsArray() && right.IsArray() {
		combined := append(append([]*values.Value{}, left.ArrayVal()...), right.ArrayVal()...)
		return values.Array(combined), nil
	}
	a, b, isFloat := numericPair(left, right)
	if isFloat {
		return values.Float(a + b), nil
	}
	return values.Int(int64(a) + int64(b)), nil
}

func arithSub(left, right *values.Value) (*values.Value, error) {
	a, b, isFloat := numericPair(left, right)
	if isFloat {
		return values.Float(a - b), nil
	}
	return values.Int(int64(a) - int64(b)), nil
}

func arithMul(left, right *values.Value) (*values.Value, error) {
	if left.IsString() && right.IsInt() {
		return values.String(strings.Repeat(left.StringVal(), int(right.IntVal()))), nil
	}
	if right.IsString() && left.IsInt() {
		return values.String(strings.Repeat(right.StringVal(), int(left.IntVal()))), nil
	}
	a, b, isFloat := numericPair(left, right)
	if isFloat {
		return values.Float(a * b), nil
	}
	return values.Int(int64(a) * int64(b)), nil
}

func arithDiv(left, right *values.Value) (*values.Value, error) {
	a, b, isFloat := numericPair(left, right)
	if isFloat {
		if b == 0 {
			return nil, ErrDivisionByZero
		}
		return values.Float(a / b), nil
	}
	if int64(b) == 0 {
		return nil, ErrDivisionByZero
	}
	return values.Int(int64(a) / int64(b)), nil
}

func arithMod(left, right *values.Value) (*values.Value, error) {
	a, b, isFloat := numericPair(left, right)
	if isFloat {
		if b == 0 {
			return nil, ErrModuloByZero
		}
		return values.Float(modFloat(a, b)), nil
	}
	if int64(b) == 0 {
		return nil, ErrModuloByZero
	}
	ai, bi := int64(a), int64(b)
	m := ai % bi
	if m != 0 && (m < 0) != (bi < 0) {
		m += bi
	}
	return values.Int(m), nil
}

func modFloat(a, b float64) float64 {
	m := a - b*float64(int64(a/b))
	return m
}

func arithPow(left, right *values.Value) (*values.Value, error) {
	a, b, isFloat := numericPair(left, right)
	if isFloat {
		return values.Float(powFloat(a, b)), nil
	}
	result := int64(1)
	base := int64(a)
	for i := int64(0); i < int64(b); i++ {
		result *= base
	}
	return values.Int(result), nil
}

func powFloat(a, b float64) float64 {
	result := 1.0
	neg := b < 0
	n := int(b)
	if float64(n) != b || neg {
		// Non-integer or negative exponents fall back to repeated
		// multiplication of the reciprocal base; sufficient for a sandbox
		// scripting language that does not expose a math library.
		result = 1.0
		for i := 0; i < abs(n); i++ {
			result *= a
		}
		if neg {
			return 1 / result
		}
		return result
	}
	for i := 0; i < n; i++ {
		result *= a
	}
	return result
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func compare(op opcodes.BinOp, left, right *values.Value) (*values.Value, error) {
	if left.IsString() && right.IsString() {
		c := strings.Compare(left.StringVal(), right.StringVal())
		return values.Bool(compareResult(op, c)), nil
	}
	a, b, _ := numericPair(left, right)
	c := 0
	switch {
	case a < b:
		c = -1
	case a > b:
		c = 1
	}
	return values.Bool(compareResult(op, c)), nil
}

func compareResult(op opcodes.BinOp, c int) bool {
	switch op {
	case opcodes.BinLt:
		return c < 0
	case opcodes.BinLte:
		return c <= 0
	case opcodes.BinGt:
		return c > 0
	case opcodes.BinGte:
		return c >= 0
	}
	return false
}

// numericPair coerces two values to float64 for arithmetic, reporting
// whether either operand was a Float (in which case the result should stay
// floating-point rather than being narrowed back to an int).
func numericPair(left, right *values.Value) (float64, float64, bool) {
	isFloat := left.IsFloat() || right.IsFloat()
	return numericOf(left), numericOf(right), isFloat
}

func numericOf(v *values.Value) float64 {
	if v.IsFloat() {
		return v.FloatVal()
	}
	return float64(v.IntVal())
}

func unary(op opcodes.UnaryOp, operand *values.Value) *values.Value {
	switch op {
	case opcodes.UnaryNot:
		return values.Bool(!operand.Truthy())
	case opcodes.UnaryNeg:
		if operand.IsFloat() {
			return values.Float(-operand.FloatVal())
		}
		return values.Int(-operand.IntVal())
	default:
		return values.Nil()
	}
}
