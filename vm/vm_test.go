package vm

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wudi/heysandbox/compiler"
	"github.com/wudi/heysandbox/lexer"
	"github.com/wudi/heysandbox/limits"
	"github.com/wudi/heysandbox/parser"
	"github.com/wudi/heysandbox/values"
)

// runSource parses, compiles, and executes src against a fresh
// ExecutionContext, returning the final value, the captured output, and
// any run error. It exists so this package's own tests can exercise the VM
// end to end without depending on package sandbox (which imports vm).
func runSource(t *testing.T, ctx *ExecutionContext, src string) (*values.Value, error) {
	t.Helper()
	if ctx == nil {
		ctx = NewExecutionContext(limits.NewTracker(0), &limits.Deadline{}, NewOutputBuffer())
	}
	cctx := compiler.NewContext()
	lx := lexer.New(src, cctx.Lineno)
	ps := parser.New(lx)
	prog := ps.ParseProgram()
	require.Empty(t, ps.Errors())
	comp := compiler.New(cctx)
	cprog, err := comp.Compile(prog)
	require.NoError(t, err)
	return New().Run(cprog, ctx)
}

func TestVM_ArithmeticAndPrecedence(t *testing.T) {
	v, err := runSource(t, nil, "1 + 2 * 3")
	require.NoError(t, err)
	assert.Equal(t, int64(7), v.IntVal())
}

func TestVM_StatePersistsAcrossRuns(t *testing.T) {
	ctx := NewExecutionContext(limits.NewTracker(0), &limits.Deadline{}, NewOutputBuffer())
	_, err := runSource(t, ctx, "x = 42")
	require.NoError(t, err)
	v, err := runSource(t, ctx, "x + 1")
	require.NoError(t, err)
	assert.Equal(t, int64(43), v.IntVal())
}

func TestVM_LastValueRegister(t *testing.T) {
	ctx := NewExecutionContext(limits.NewTracker(0), &limits.Deadline{}, NewOutputBuffer())
	ctx.Last = values.Int(7)
	v, err := runSource(t, ctx, "_")
	require.NoError(t, err)
	assert.Equal(t, int64(7), v.IntVal())
}

func TestVM_OutputCapture_Puts(t *testing.T) {
	ob := NewOutputBuffer()
	ctx := NewExecutionContext(limits.NewTracker(0), &limits.Deadline{}, ob)
	_, err := runSource(t, ctx, "puts 1,2,3")
	require.NoError(t, err)
	assert.Equal(t, "1\n2\n3\n", ob.String())
}

func TestVM_OutputCapture_Print(t *testing.T) {
	ob := NewOutputBuffer()
	ctx := NewExecutionContext(limits.NewTracker(0), &limits.Deadline{}, ob)
	_, err := runSource(t, ctx, "print 'ab'; print 'cd'")
	require.NoError(t, err)
	assert.Equal(t, "abcd", ob.String())
}

func TestVM_PutsOfArrayFlattensOneLevel(t *testing.T) {
	ob := NewOutputBuffer()
	ctx := NewExecutionContext(limits.NewTracker(0), &limits.Deadline{}, ob)
	_, err := runSource(t, ctx, "puts [1,[2,3]]")
	require.NoError(t, err)
	assert.Equal(t, "1\n2\n3\n", ob.String())
}

func TestVM_PutsNoArgsWritesNewline(t *testing.T) {
	ob := NewOutputBuffer()
	ctx := NewExecutionContext(limits.NewTracker(0), &limits.Deadline{}, ob)
	_, err := runSource(t, ctx, "puts")
	require.NoError(t, err)
	assert.Equal(t, "\n", ob.String())
}

func TestVM_PBuiltinReturnsArgumentAndInspects(t *testing.T) {
	ob := NewOutputBuffer()
	ctx := NewExecutionContext(limits.NewTracker(0), &limits.Deadline{}, ob)
	v, err := runSource(t, ctx, `p "hi"`)
	require.NoError(t, err)
	assert.Equal(t, "hi", v.StringVal())
	assert.Equal(t, "\"hi\"\n", ob.String())
}

func TestVM_DivisionByZeroRaises(t *testing.T) {
	_, err := runSource(t, nil, "1 / 0")
	require.Error(t, err)
}

func TestVM_IfElse(t *testing.T) {
	// An if statement yields nil as a program's last statement, so the
	// branch taken is read back through a local.
	v, err := runSource(t, nil, "if 1 < 2\nr = 'yes'\nelse\nr = 'no'\nend\nr")
	require.NoError(t, err)
	assert.Equal(t, "yes", v.StringVal())
}

func TestVM_WhileLoop(t *testing.T) {
	v, err := runSource(t, nil, "i = 0\nwhile i < 5\ni = i + 1\nend\ni")
	require.NoError(t, err)
	assert.Equal(t, int64(5), v.IntVal())
}

func TestVM_ArrayAndIndex(t *testing.T) {
	v, err := runSource(t, nil, "a = [1,2,3]\na << 4\na[3]")
	require.NoError(t, err)
	assert.Equal(t, int64(4), v.IntVal())
}

func TestVM_HashAndIndex(t *testing.T) {
	v, err := runSource(t, nil, "h = {\"a\" => 1}\nh[\"a\"]")
	require.NoError(t, err)
	assert.Equal(t, int64(1), v.IntVal())
}

func TestVM_StringMultiplication(t *testing.T) {
	v, err := runSource(t, nil, "'x' * 3")
	require.NoError(t, err)
	assert.Equal(t, "xxx", v.StringVal())
}

func TestVM_MemoryLimitExceeded(t *testing.T) {
	tracker := limits.NewTracker(256)
	ctx := NewExecutionContext(tracker, &limits.Deadline{}, NewOutputBuffer())
	_, err := runSource(t, ctx, "a = []\nwhile true\na << 'x' * 1024\nend")
	require.Error(t, err)
	assert.True(t, tracker.Exceeded())
}

func TestVM_TimeoutExceeded(t *testing.T) {
	deadline := &limits.Deadline{}
	deadline.Arm(1)
	ctx := NewExecutionContext(limits.NewTracker(0), deadline, NewOutputBuffer())
	_, err := runSource(t, ctx, "loop { }")
	require.Error(t, err)
	assert.True(t, deadline.Expired())
}

func TestVM_UnknownFunctionRaises(t *testing.T) {
	_, err := runSource(t, nil, "not_a_real_function()")
	require.Error(t, err)
}

// fakeToolCaller is a minimal ToolCaller stand-in for exercising OP_CALL's
// dispatch to a registered tool without pulling in package sandbox.
type fakeToolCaller struct {
	result *values.Value
}

func (f *fakeToolCaller) CallTool(name string, args []*values.Value) (*values.Value, error) {
	return f.result, nil
}

func TestVM_ToolCallResultChargedAgainstTracker(t *testing.T) {
	tracker := limits.NewTracker(0)
	ctx := NewExecutionContext(tracker, &limits.Deadline{}, NewOutputBuffer())
	ctx.Tools = &fakeToolCaller{result: values.String(strings.Repeat("x", 1000))}
	before := tracker.Current()
	_, err := runSource(t, ctx, "big_blob()")
	require.NoError(t, err)
	assert.Greater(t, tracker.Current(), before+uint64(900))
}

func TestVM_ToolCallResultTripsMemoryLimit(t *testing.T) {
	tracker := limits.NewTracker(256)
	ctx := NewExecutionContext(tracker, &limits.Deadline{}, NewOutputBuffer())
	ctx.Tools = &fakeToolCaller{result: values.Array([]*values.Value{values.String(strings.Repeat("x", 1024))})}
	_, err := runSource(t, ctx, "a = []\nwhile true\na << big_blob()\nend")
	require.Error(t, err)
	assert.True(t, tracker.Exceeded())
}
