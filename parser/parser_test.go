package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wudi/heysandbox/ast"
	"github.com/wudi/heysandbox/lexer"
)

func parse(t *testing.T, src string) *ast.Program {
	t.Helper()
	p := New(lexer.New(src, 1))
	prog := p.ParseProgram()
	require.Empty(t, p.Errors(), "unexpected parse errors: %v", p.Errors())
	return prog
}

func TestParser_Assignment(t *testing.T) {
	prog := parse(t, "x = 42")
	require.Len(t, prog.Statements, 1)
	assign, ok := prog.Statements[0].(*ast.Assign)
	require.True(t, ok)
	assert.Equal(t, "x", assign.Name)
	lit, ok := assign.Value.(*ast.IntLit)
	require.True(t, ok)
	assert.Equal(t, int64(42), lit.Value)
}

func TestParser_CommandCallNoParens(t *testing.T) {
	prog := parse(t, "puts 1, 2, 3")
	require.Len(t, prog.Statements, 1)
	call, ok := prog.Statements[0].(*ast.CallExpr)
	require.True(t, ok)
	assert.Equal(t, "puts", call.Name)
	assert.Len(t, call.Args, 3)
}

func TestParser_BinaryPrecedence(t *testing.T) {
	prog := parse(t, "1 + 2 * 3")
	bin, ok := prog.Statements[0].(*ast.BinaryExpr)
	require.True(t, ok)
	assert.Equal(t, "+", bin.Op)
	right, ok := bin.Right.(*ast.BinaryExpr)
	require.True(t, ok)
	assert.Equal(t, "*", right.Op)
}

func TestParser_IfElsif(t *testing.T) {
	prog := parse(t, "if a\n1\nelsif b\n2\nelse\n3\nend")
	ifs, ok := prog.Statements[0].(*ast.IfStmt)
	require.True(t, ok)
	require.NotNil(t, ifs.Else)
	nested, ok := ifs.Else.Statements[0].(*ast.IfStmt)
	require.True(t, ok)
	require.NotNil(t, nested.Else)
}

func TestParser_WhileLoop(t *testing.T) {
	prog := parse(t, "while a < 10\na = a + 1\nend")
	_, ok := prog.Statements[0].(*ast.WhileStmt)
	assert.True(t, ok)
}

func TestParser_LoopBlock(t *testing.T) {
	prog := parse(t, "loop { }")
	loop, ok := prog.Statements[0].(*ast.LoopStmt)
	require.True(t, ok)
	assert.Empty(t, loop.Body.Statements)
}

func TestParser_ArrayLiteralAndShovel(t *testing.T) {
	prog := parse(t, "a = []\na << 'x' * 1024")
	require.Len(t, prog.Statements, 2)
	shovel, ok := prog.Statements[1].(*ast.ShovelExpr)
	require.True(t, ok)
	_, ok = shovel.Value.(*ast.BinaryExpr)
	assert.True(t, ok)
}

func TestParser_HashLiteral(t *testing.T) {
	prog := parse(t, `{"a" => 1, "b" => 2}`)
	hash, ok := prog.Statements[0].(*ast.HashLit)
	require.True(t, ok)
	assert.Len(t, hash.Entries, 2)
}

func TestParser_IndexExpr(t *testing.T) {
	prog := parse(t, "a[0]")
	idx, ok := prog.Statements[0].(*ast.IndexExpr)
	require.True(t, ok)
	_, ok = idx.Target.(*ast.Identifier)
	assert.True(t, ok)
}

func TestParser_CallWithParens(t *testing.T) {
	prog := parse(t, "foo(1, 2)")
	call, ok := prog.Statements[0].(*ast.CallExpr)
	require.True(t, ok)
	assert.Equal(t, "foo", call.Name)
	assert.Len(t, call.Args, 2)
}

func TestParser_LastValueUnderscore(t *testing.T) {
	prog := parse(t, "_")
	ident, ok := prog.Statements[0].(*ast.Identifier)
	require.True(t, ok)
	assert.Equal(t, "_", ident.Name)
}

func TestParser_SyntaxErrorReportsLine(t *testing.T) {
	p := New(lexer.New("x = ", 1))
	p.ParseProgram()
	require.NotEmpty(t, p.Errors())
	assert.Equal(t, 1, p.Errors()[0].Line)
}
