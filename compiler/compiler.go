// Package compiler lowers an ast.Program into the bytecode package vm
// executes: a flat instruction list plus a literal constant pool and an
// identifier name pool. The compiler itself never looks at limits or I/O —
// that separation, carried over from the teacher's compiler/VM split, is
// what lets package vm enforce the deadline and memory ceilings uniformly
// regardless of what compiled the bytecode it is running.
package compiler

import (
	"fmt"

	"github.com/wudi/heysandbox/ast"
	"github.com/wudi/heysandbox/opcodes"
	"github.com/wudi/heysandbox/values"
)

// Program is a fully compiled, directly executable guest-language unit.
type Program struct {
	Instructions []*opcodes.Instruction
	Constants    []*values.Value
	Names        []string
	LocalCount   int // distinct local-variable names referenced; informational, mirrors stack_keep
}

// Compiler walks an ast.Program and emits a Program. A Compiler instance is
// single-use: construct a new one per Compile call.
type Compiler struct {
	ctx     *Context
	prog    *Program
	nameIdx map[string]int
	locals  map[string]struct{}
}

// New constructs a Compiler bound to the given persistent compile context.
func New(ctx *Context) *Compiler {
	return &Compiler{
		ctx:     ctx,
		prog:    &Program{},
		nameIdx: make(map[string]int),
		locals:  make(map[string]struct{}),
	}
}

// Compile lowers prog into bytecode. A non-nil error indicates a code
// generation failure (as distinct from the parser's own syntax errors,
// which callers check before ever reaching the compiler).
func (c *Compiler) Compile(prog *ast.Program) (*Program, error) {
	if err := c.compileStmtList(prog.Statements, true); err != nil {
		return nil, err
	}
	c.emit(opcodes.OP_HALT, 0, 0, 0)
	c.prog.LocalCount = len(c.locals)
	return c.prog, nil
}

func (c *Compiler) emit(op opcodes.Opcode, operand, aux, line int) int {
	c.prog.Instructions = append(c.prog.Instructions, &opcodes.Instruction{
		Opcode: op, Operand: operand, Aux: aux, Line: line,
	})
	return len(c.prog.Instructions) - 1
}

func (c *Compiler) constIndex(v *values.Value) int {
	c.prog.Constants = append(c.prog.Constants, v)
	return len(c.prog.Constants) - 1
}

func (c *Compiler) nameIndex(name string) int {
	if idx, ok := c.nameIdx[name]; ok {
		return idx
	}
	idx := len(c.prog.Names)
	c.prog.Names = append(c.prog.Names, name)
	c.nameIdx[name] = idx
	return idx
}

// compileStmtList compiles a sequence of statements. When keepLast is true,
// the final statement's value (if it produces one) is left on the stack as
// the block's result; a trailing control-flow statement or an empty list
// instead yields an explicit nil. When keepLast is false every produced
// value is immediately discarded, leaving the stack depth unchanged overall.
func (c *Compiler) compileStmtList(stmts []ast.Node, keepLast bool) error {
	for i, stmt := range stmts {
		isLast := i == len(stmts)-1
		produced, err := c.compileStatement(stmt)
		if err != nil {
			return err
		}
		if isLast && keepLast {
			if !produced {
				c.emit(opcodes.OP_PUSH_NIL, 0, 0, stmt.Line())
			}
			continue
		}
		if produced {
			c.emit(opcodes.OP_POP, 0, 0, stmt.Line())
		}
	}
	if len(stmts) == 0 && keepLast {
		c.emit(opcodes.OP_PUSH_NIL, 0, 0, c.ctx.Lineno)
	}
	return nil
}

// compileStatement compiles a single statement/expression node, returning
// whether it left a value on the stack.
func (c *Compiler) compileStatement(node ast.Node) (bool, error) {
	switch n := node.(type) {
	case *ast.IfStmt:
		return false, c.compileIf(n)
	case *ast.WhileStmt:
		return false, c.compileWhile(n)
	case *ast.LoopStmt:
		return false, c.compileLoop(n)
	default:
		if err := c.compileExpr(node); err != nil {
			return false, err
		}
		return true, nil
	}
}

func (c *Compiler) compileIf(n *ast.IfStmt) error {
	if err := c.compileExpr(n.Cond); err != nil {
		return err
	}
	jumpToElse := c.emit(opcodes.OP_JUMP_IF_FALSE, 0, 0, n.Line())
	if err := c.compileStmtList(n.Then.Statements, false); err != nil {
		return err
	}
	jumpToEnd := c.emit(opcodes.OP_JUMP, 0, 0, n.Line())
	c.patch(jumpToElse, len(c.prog.Instructions))
	if n.Else != nil {
		if err := c.compileStmtList(n.Else.Statements, false); err != nil {
			return err
		}
	}
	c.patch(jumpToEnd, len(c.prog.Instructions))
	return nil
}

func (c *Compiler) compileWhile(n *ast.WhileStmt) error {
	loopStart := len(c.prog.Instructions)
	if err := c.compileExpr(n.Cond); err != nil {
		return err
	}
	jumpToEnd := c.emit(opcodes.OP_JUMP_IF_FALSE, 0, 0, n.Line())
	if err := c.compileStmtList(n.Body.Statements, false); err != nil {
		return err
	}
	c.emit(opcodes.OP_JUMP, loopStart, 0, n.Line())
	c.patch(jumpToEnd, len(c.prog.Instructions))
	return nil
}

func (c *Compiler) compileLoop(n *ast.LoopStmt) error {
	loopStart := len(c.prog.Instructions)
	if err := c.compileStmtList(n.Body.Statements, false); err != nil {
		return err
	}
	c.emit(opcodes.OP_JUMP, loopStart, 0, n.Line())
	return nil
}

func (c *Compiler) patch(instrIdx, target int) {
	c.prog.Instructions[instrIdx].Operand = target
}

// compileExpr compiles a single expression node, leaving exactly one value
// on the stack.
func (c *Compiler) compileExpr(node ast.Node) error {
	switch n := node.(type) {
	case *ast.NilLit:
		c.emit(opcodes.OP_PUSH_NIL, 0, 0, n.Line())
	case *ast.BoolLit:
		c.emit(opcodes.OP_PUSH_CONST, c.constIndex(values.Bool(n.Value)), 0, n.Line())
	case *ast.IntLit:
		c.emit(opcodes.OP_PUSH_CONST, c.constIndex(values.Int(n.Value)), 0, n.Line())
	case *ast.FloatLit:
		c.emit(opcodes.OP_PUSH_CONST, c.constIndex(values.Float(n.Value)), 0, n.Line())
	case *ast.StringLit:
		c.emit(opcodes.OP_PUSH_CONST, c.constIndex(values.String(n.Value)), 0, n.Line())
	case *ast.Identifier:
		if n.Name == "_" {
			c.emit(opcodes.OP_LOAD_LAST, 0, 0, n.Line())
		} else {
			c.locals[n.Name] = struct{}{}
			c.emit(opcodes.OP_LOAD_VAR, c.nameIndex(n.Name), 0, n.Line())
		}
	case *ast.Assign:
		if err := c.compileExpr(n.Value); err != nil {
			return err
		}
		if n.Name == "_" {
			c.emit(opcodes.OP_STORE_LAST, 0, 0, n.Line())
		} else {
			c.locals[n.Name] = struct{}{}
			c.emit(opcodes.OP_STORE_VAR, c.nameIndex(n.Name), 0, n.Line())
		}
	case *ast.BinaryExpr:
		if err := c.compileExpr(n.Left); err != nil {
			return err
		}
		if err := c.compileExpr(n.Right); err != nil {
			return err
		}
		op, err := binOpFor(n.Op)
		if err != nil {
			return err
		}
		c.emit(opcodes.OP_BINOP, int(op), 0, n.Line())
	case *ast.UnaryExpr:
		if err := c.compileExpr(n.Operand); err != nil {
			return err
		}
		op := opcodes.UnaryNeg
		if n.Op == "!" {
			op = opcodes.UnaryNot
		}
		c.emit(opcodes.OP_UNARY, int(op), 0, n.Line())
	case *ast.IndexExpr:
		if err := c.compileExpr(n.Target); err != nil {
			return err
		}
		if err := c.compileExpr(n.Index); err != nil {
			return err
		}
		c.emit(opcodes.OP_INDEX_GET, 0, 0, n.Line())
	case *ast.ShovelExpr:
		if err := c.compileExpr(n.Target); err != nil {
			return err
		}
		if err := c.compileExpr(n.Value); err != nil {
			return err
		}
		c.emit(opcodes.OP_ARRAY_SHOVEL, 0, 0, n.Line())
	case *ast.ArrayLit:
		c.emit(opcodes.OP_NEW_ARRAY, 0, 0, n.Line())
		for _, elem := range n.Elements {
			if err := c.compileExpr(elem); err != nil {
				return err
			}
			c.emit(opcodes.OP_ARRAY_PUSH, 0, 0, n.Line())
		}
	case *ast.HashLit:
		c.emit(opcodes.OP_NEW_HASH, 0, 0, n.Line())
		for _, entry := range n.Entries {
			if err := c.compileExpr(entry.Key); err != nil {
				return err
			}
			if err := c.compileExpr(entry.Value); err != nil {
				return err
			}
			c.emit(opcodes.OP_HASH_SET, 0, 0, n.Line())
		}
	case *ast.CallExpr:
		if n.Block != nil {
			if err := c.compileStmtList(n.Block.Statements, false); err != nil {
				return err
			}
		}
		for _, arg := range n.Args {
			if err := c.compileExpr(arg); err != nil {
				return err
			}
		}
		c.emit(opcodes.OP_CALL, c.nameIndex(n.Name), len(n.Args), n.Line())
	default:
		return fmt.Errorf("code generation failed: unsupported node %T", node)
	}
	return nil
}

func binOpFor(op string) (opcodes.BinOp, error) {
	switch op {
	case "+":
		return opcodes.BinAdd, nil
	case "-":
		return opcodes.BinSub, nil
	case "*":
		return opcodes.BinMul, nil
	case "/":
		return opcodes.BinDiv, nil
	case "%":
		return opcodes.BinMod, nil
	case "**":
		return opcodes.BinPow, nil
	case "==":
		return opcodes.BinEq, nil
	case "!=":
		return opcodes.BinNeq, nil
	case "<":
		return opcodes.BinLt, nil
	case "<=":
		return opcodes.BinLte, nil
	case ">":
		return opcodes.BinGt, nil
	case ">=":
		return opcodes.BinGte, nil
	case "&&":
		return opcodes.BinAnd, nil
	case "||":
		return opcodes.BinOr, nil
	default:
		return 0, fmt.Errorf("code generation failed: unknown operator %q", op)
	}
}
