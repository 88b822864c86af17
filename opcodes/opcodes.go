// Package opcodes defines the bytecode instruction set executed by package
// vm. The set is deliberately small: just enough to express the guest
// language's assignment/arithmetic/control-flow/call surface, the same way
// a real mruby-style VM's opcode table is scoped to its grammar.
package opcodes

// Opcode identifies a single bytecode instruction.
type Opcode byte

const (
	OP_NOP Opcode = iota
	OP_PUSH_CONST
	OP_PUSH_NIL
	OP_LOAD_VAR
	OP_STORE_VAR
	OP_LOAD_LAST  // pushes the `_` register
	OP_STORE_LAST // pops and stores into the `_` register
	OP_POP
	OP_DUP
	OP_BINOP
	OP_UNARY
	OP_NEW_ARRAY
	OP_ARRAY_PUSH  // pop value, push onto array 2nd-from-top, leave array on stack
	OP_ARRAY_SHOVEL // guest `<<` operator: same as ARRAY_PUSH but named to mirror surface syntax
	OP_NEW_HASH
	OP_HASH_SET // pop value, pop key, set on hash now 1st-from-top, leave hash on stack
	OP_INDEX_GET
	OP_JUMP
	OP_JUMP_IF_FALSE
	OP_CALL // call a builtin or registered tool by name with N args (any block was inlined before it)
	OP_HALT
)

var names = map[Opcode]string{
	OP_NOP:           "NOP",
	OP_PUSH_CONST:    "PUSH_CONST",
	OP_PUSH_NIL:      "PUSH_NIL",
	OP_LOAD_VAR:      "LOAD_VAR",
	OP_STORE_VAR:     "STORE_VAR",
	OP_LOAD_LAST:     "LOAD_LAST",
	OP_STORE_LAST:    "STORE_LAST",
	OP_POP:           "POP",
	OP_DUP:           "DUP",
	OP_BINOP:         "BINOP",
	OP_UNARY:         "UNARY",
	OP_NEW_ARRAY:     "NEW_ARRAY",
	OP_ARRAY_PUSH:    "ARRAY_PUSH",
	OP_ARRAY_SHOVEL:  "ARRAY_SHOVEL",
	OP_NEW_HASH:      "NEW_HASH",
	OP_HASH_SET:      "HASH_SET",
	OP_INDEX_GET:     "INDEX_GET",
	OP_JUMP:          "JUMP",
	OP_JUMP_IF_FALSE: "JUMP_IF_FALSE",
	OP_CALL:          "CALL",
	OP_HALT:          "HALT",
}

func (op Opcode) String() string {
	if n, ok := names[op]; ok {
		return n
	}
	return "UNKNOWN"
}

// BinOp identifies the operator carried by an OP_BINOP instruction's
// operand.
type BinOp byte

const (
	BinAdd BinOp = iota
	BinSub
	BinMul
	BinDiv
	BinMod
	BinPow
	BinEq
	BinNeq
	BinLt
	BinLte
	BinGt
	BinGte
	BinAnd
	BinOr
)

// UnaryOp identifies the operator carried by an OP_UNARY instruction's
// operand.
type UnaryOp byte

const (
	UnaryNeg UnaryOp = iota
	UnaryNot
)

// Instruction is a single decoded bytecode instruction. Operand meaning
// depends on Opcode: a constant pool index, a local-slot index, a jump
// target, an argument count, and so on.
type Instruction struct {
	Opcode  Opcode
	Operand int
	Aux     int // second operand, e.g. arg count alongside a constant-pool name index
	Line    int // source line, for error decoration
}
