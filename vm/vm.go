// Package vm executes compiled bytecode (package compiler's Program)
// against a persistent ExecutionContext. The dispatch loop is a
// straightforward switch-based fetch/decode/execute cycle over a small
// opcode set, enriched with two cooperative resource checks on every
// fetched instruction: a memory tracker charge at heap-growing opcodes
// and a deadline tick.
package vm

import (
	"errors"
	"fmt"

	"github.com/wudi/heysandbox/compiler"
	"github.com/wudi/heysandbox/limits"
	"github.com/wudi/heysandbox/opcodes"
	"github.com/wudi/heysandbox/values"
)

// ToolCaller is implemented by the registry/trampoline layer and invoked
// for any OP_CALL whose name is not one of the built-in output functions.
// Keeping it as a narrow interface here (rather than importing the
// registry package directly) avoids a dependency cycle between vm and the
// packages that route tool calls back out to host code.
type ToolCaller interface {
	CallTool(name string, args []*values.Value) (*values.Value, error)
}

// ExecutionContext holds everything that must persist across successive
// Eval calls on one session: the REPL-style local-variable bindings, the
// `_` last-value register, the output buffer, and the two resource
// watchdogs. A session constructs exactly one ExecutionContext and reuses
// it for every Eval until Reset replaces it wholesale.
type ExecutionContext struct {
	Locals   map[string]*values.Value
	Last     *values.Value
	Output   *OutputBuffer
	Tracker  *limits.Tracker
	Deadline *limits.Deadline
	Tools    ToolCaller
}

// NewExecutionContext constructs a fresh context with empty locals and a
// nil `_` register, the state of a just-opened or just-reset session.
func NewExecutionContext(tracker *limits.Tracker, deadline *limits.Deadline, output *OutputBuffer) *ExecutionContext {
	return &ExecutionContext{
		Locals:   make(map[string]*values.Value),
		Last:     values.Nil(),
		Output:   output,
		Tracker:  tracker,
		Deadline: deadline,
	}
}

// LocalCount reports the number of distinct local-variable names currently
// bound, the Go analogue of the guest VM's captured-environment width used
// to compute stack_keep.
func (ec *ExecutionContext) LocalCount() int {
	return len(ec.Locals)
}

// VM executes a single compiled Program against an ExecutionContext. It
// carries no state of its own between Run calls; all persistent state lives
// in the ExecutionContext, so locals and `_` survive across evaluations
// while everything else about a run is freshly derived.
type VM struct{}

// New constructs a VM. A VM has no fields; New exists for symmetry with the
// rest of the package's constructors and to leave room for future
// per-VM configuration (an instruction-count ceiling, say) without
// breaking callers.
func New() *VM {
	return &VM{}
}

// Run executes prog's bytecode. It returns the value of the program's final
// expression (nil if the program produced none) or a *RuntimeError — which
// may wrap ErrTimeout or ErrMemoryLimit — if execution failed.
func (vm *VM) Run(prog *compiler.Program, ctx *ExecutionContext) (*values.Value, error) {
	stack := make([]*values.Value, 0, 16)
	ip := 0

	pop := func() *values.Value {
		n := len(stack) - 1
		v := stack[n]
		stack = stack[:n]
		return v
	}

	for {
		if ip < 0 || ip >= len(prog.Instructions) {
			return nil, NewRuntimeError(ErrInvalidJumpTarget, 0)
		}
		instr := prog.Instructions[ip]

		if instr.Opcode == opcodes.OP_HALT {
			break
		}

		if ctx.Deadline.Tick() {
			return nil, NewRuntimeError(ErrTimeout, instr.Line)
		}

		switch instr.Opcode {
		case opcodes.OP_PUSH_CONST:
			if instr.Operand < 0 || instr.Operand >= len(prog.Constants) {
				return nil, NewRuntimeError(ErrConstantOutOfRange, instr.Line)
			}
			cv := prog.Constants[instr.Operand]
			if cv.IsString() {
				if !ctx.Tracker.Charge(cv.ApproxSize()) {
					return nil, NewRuntimeError(ErrMemoryLimit, instr.Line)
				}
				stack = append(stack, values.String(cv.StringVal()))
			} else {
				stack = append(stack, cv)
			}
			ip++

		case opcodes.OP_PUSH_NIL:
			stack = append(stack, values.Nil())
			ip++

		case opcodes.OP_LOAD_VAR:
			name, err := lookupName(prog, instr)
			if err != nil {
				return nil, NewRuntimeError(err, instr.Line)
			}
			v, ok := ctx.Locals[name]
			if !ok {
				res, callErr := vm.dispatch(ctx, name, nil)
				var ce *ClassedError
				switch {
				case errors.Is(callErr, ErrUnknownFunction):
					return nil, NewRuntimeError(fmt.Errorf("undefined local variable or method '%s'", name), instr.Line)
				case errors.As(callErr, &ce):
					return nil, NewTypedError(ce.Class, ce.Err, instr.Line)
				case callErr != nil:
					return nil, NewRuntimeError(callErr, instr.Line)
				}
				if !ctx.Tracker.Charge(res.ApproxSizeDeep()) {
					return nil, NewRuntimeError(ErrMemoryLimit, instr.Line)
				}
				v = res
			}
			stack = append(stack, v)
			ip++

		case opcodes.OP_STORE_VAR:
			name, err := lookupName(prog, instr)
			if err != nil {
				return nil, NewRuntimeError(err, instr.Line)
			}
			v := pop()
			ctx.Locals[name] = v
			stack = append(stack, v)
			ip++

		case opcodes.OP_LOAD_LAST:
			stack = append(stack, ctx.Last)
			ip++

		case opcodes.OP_STORE_LAST:
			v := pop()
			ctx.Last = v
			stack = append(stack, v)
			ip++

		case opcodes.OP_POP:
			pop()
			ip++

		case opcodes.OP_DUP:
			stack = append(stack, stack[len(stack)-1])
			ip++

		case opcodes.OP_BINOP:
			right := pop()
			left := pop()
			result, err := binop(opcodes.BinOp(instr.Operand), left, right)
			if err != nil {
				return nil, NewRuntimeError(err, instr.Line)
			}
			if result.IsString() {
				if !ctx.Tracker.Charge(result.ApproxSize()) {
					return nil, NewRuntimeError(ErrMemoryLimit, instr.Line)
				}
			}
			stack = append(stack, result)
			ip++

		case opcodes.OP_UNARY:
			operand := pop()
			stack = append(stack, unary(opcodes.UnaryOp(instr.Operand), operand))
			ip++

		case opcodes.OP_NEW_ARRAY:
			if !ctx.Tracker.Charge(values.Array(nil).ApproxSize()) {
				return nil, NewRuntimeError(ErrMemoryLimit, instr.Line)
			}
			stack = append(stack, values.Array(nil))
			ip++

		case opcodes.OP_ARRAY_PUSH, opcodes.OP_ARRAY_SHOVEL:
			elem := pop()
			arr := stack[len(stack)-1]
			before := cap(arr.ArrayVal())
			arr.Push(elem)
			after := cap(arr.ArrayVal())
			if after > before {
				if !ctx.Tracker.Charge(uint64(after-before) * 8) {
					return nil, NewRuntimeError(ErrMemoryLimit, instr.Line)
				}
			}
			ip++

		case opcodes.OP_NEW_HASH:
			if !ctx.Tracker.Charge(values.Hash(nil).ApproxSize()) {
				return nil, NewRuntimeError(ErrMemoryLimit, instr.Line)
			}
			stack = append(stack, values.Hash(nil))
			ip++

		case opcodes.OP_HASH_SET:
			val := pop()
			key := pop()
			h := stack[len(stack)-1]
			before := cap(h.HashVal())
			h.Set(key, val)
			after := cap(h.HashVal())
			if after > before {
				if !ctx.Tracker.Charge(uint64(after-before) * 16) {
					return nil, NewRuntimeError(ErrMemoryLimit, instr.Line)
				}
			}
			ip++

		case opcodes.OP_INDEX_GET:
			index := pop()
			target := pop()
			result, err := indexGet(target, index)
			if err != nil {
				return nil, NewRuntimeError(err, instr.Line)
			}
			stack = append(stack, result)
			ip++

		case opcodes.OP_JUMP:
			ip = instr.Operand
			continue

		case opcodes.OP_JUMP_IF_FALSE:
			cond := pop()
			if !cond.Truthy() {
				ip = instr.Operand
				continue
			}
			ip++

		case opcodes.OP_CALL:
			name, err := lookupName(prog, instr)
			if err != nil {
				return nil, NewRuntimeError(err, instr.Line)
			}
			argc := instr.Aux
			args := make([]*values.Value, argc)
			for i := argc - 1; i >= 0; i-- {
				args[i] = pop()
			}
			result, err := vm.dispatch(ctx, name, args)
			if err != nil {
				var ce *ClassedError
				if errors.As(err, &ce) {
					return nil, NewTypedError(ce.Class, ce.Err, instr.Line)
				}
				return nil, NewRuntimeError(err, instr.Line)
			}
			// A call's result arrives fully built, whether from a builtin
			// like p's multi-arg array or a tool trampoline's converted
			// return value, rather than through the incremental
			// OP_NEW_ARRAY/OP_ARRAY_PUSH-style opcodes that charge their own
			// growth as they go. Charge it here in one shot, deeply, before
			// it is allowed onto the stack.
			if !ctx.Tracker.Charge(result.ApproxSizeDeep()) {
				return nil, NewRuntimeError(ErrMemoryLimit, instr.Line)
			}
			stack = append(stack, result)
			ip++

		default:
			return nil, NewRuntimeError(ErrUnknownOpcode, instr.Line)
		}
	}

	if len(stack) == 0 {
		return values.Nil(), nil
	}
	return stack[len(stack)-1], nil
}

func lookupName(prog *compiler.Program, instr *opcodes.Instruction) (string, error) {
	if instr.Operand < 0 || instr.Operand >= len(prog.Names) {
		return "", ErrNameOutOfRange
	}
	return prog.Names[instr.Operand], nil
}

// dispatch routes an OP_CALL to a built-in output function or, failing
// that, out to the registered-tool trampoline.
func (vm *VM) dispatch(ctx *ExecutionContext, name string, args []*values.Value) (*values.Value, error) {
	if fn, ok := builtins[name]; ok {
		return fn(ctx.Output, args), nil
	}
	if ctx.Tools != nil {
		return ctx.Tools.CallTool(name, args)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownFunction, name)
}

func indexGet(target, index *values.Value) (*values.Value, error) {
	switch {
	case target.IsArray():
		if !index.IsInt() {
			return nil, ErrNotIndexable
		}
		elems := target.ArrayVal()
		i := index.IntVal()
		if i < 0 {
			i += int64(len(elems))
		}
		if i < 0 || i >= int64(len(elems)) {
			return values.Nil(), nil
		}
		return elems[i], nil
	case target.IsHash():
		for _, p := range target.HashVal() {
			if values.Equal(p.Key, index) {
				return p.Value, nil
			}
		}
		return values.Nil(), nil
	case target.IsString():
		if !index.IsInt() {
			return nil, ErrNotIndexable
		}
		runes := []rune(target.StringVal())
		i := index.IntVal()
		if i < 0 {
			i += int64(len(runes))
		}
		if i < 0 || i >= int64(len(runes)) {
			return values.Nil(), nil
		}
		return values.String(string(runes[i])), nil
	default:
		return nil, ErrNotIndexable
	}
}
