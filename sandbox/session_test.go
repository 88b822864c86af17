package sandbox

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSession_StatePersistsAcrossEvals(t *testing.T) {
	s := New(0, 0)
	defer s.Close()

	_, err := s.Eval("x = 42")
	require.NoError(t, err)

	res, err := s.Eval("x + 1")
	require.NoError(t, err)
	assert.Equal(t, "43", res.Value)

	res, err = s.Eval("_")
	require.NoError(t, err)
	assert.Equal(t, "43", res.Value)
}

func TestSession_OutputCapture(t *testing.T) {
	s := New(0, 0)
	defer s.Close()

	res, err := s.Eval("puts 1,2,3")
	require.NoError(t, err)
	assert.Equal(t, "1\n2\n3\n", res.Output)
	assert.Equal(t, "nil", res.Value)

	res, err = s.Eval("print 'ab'; print 'cd'")
	require.NoError(t, err)
	assert.Equal(t, "abcd", res.Output)
}

func TestSession_PutsOfArrayFlattensOneLevel(t *testing.T) {
	s := New(0, 0)
	defer s.Close()

	res, err := s.Eval("puts [1,[2,3]]")
	require.NoError(t, err)
	assert.Equal(t, "1\n2\n3\n", res.Output)
}

func TestSession_TimeoutClassification(t *testing.T) {
	s := New(0.05, 0)
	defer s.Close()

	res, err := s.Eval("loop { }")
	require.Error(t, err)
	assert.True(t, errors.As(err, new(*TimeoutError)))
	assert.Equal(t, ErrorKindTimeout, res.ErrorKind)
	assert.Contains(t, res.Error, "timeout")

	// The session must remain usable for a subsequent short eval.
	res, err = s.Eval("1 + 1")
	require.NoError(t, err)
	assert.Equal(t, "2", res.Value)
}

func TestSession_MemoryLimitClassification(t *testing.T) {
	s := New(0, 1024*1024)
	defer s.Close()

	res, err := s.Eval("a = []\nwhile true\na << 'x' * 1024\nend")
	require.Error(t, err)
	assert.True(t, errors.As(err, new(*MemoryLimitError)))
	assert.Equal(t, ErrorKindMemoryLimit, res.ErrorKind)

	require.NoError(t, s.Reset())
	assert.LessOrEqual(t, s.tracker.Current(), uint64(4096))
}

func TestSession_UnsupportedToolReturnRejected(t *testing.T) {
	s := New(0, 0)
	defer s.Close()

	require.NoError(t, s.DefineFunction("bad_tool"))
	require.NoError(t, s.SetCallback(func(name string, args []any) (any, error) {
		return struct{ X int }{X: 1}, nil
	}))

	before := s.tracker.Current()
	res, err := s.Eval("bad_tool()")
	require.NoError(t, err) // guest runtime error, not a Go error
	assert.Equal(t, ErrorKindRuntime, res.ErrorKind)
	assert.Contains(t, res.Error, "TypeError: unsupported type for sandbox:")
	assert.Equal(t, before, s.tracker.Current())
}

func TestSession_CallbackErrorPropagation(t *testing.T) {
	s := New(0, 0)
	defer s.Close()

	require.NoError(t, s.DefineFunction("explode"))
	require.NoError(t, s.SetCallback(func(name string, args []any) (any, error) {
		return nil, errors.New("boom")
	}))

	res, err := s.Eval("explode()")
	require.NoError(t, err)
	assert.Equal(t, ErrorKindRuntime, res.ErrorKind)
	assert.Contains(t, res.Error, "boom")
}

func TestSession_ToolNamePersistsAcrossReset(t *testing.T) {
	s := New(0, 0)
	defer s.Close()

	require.NoError(t, s.DefineFunction("foo"))
	calls := 0
	require.NoError(t, s.SetCallback(func(name string, args []any) (any, error) {
		calls++
		return "called", nil
	}))

	require.NoError(t, s.Reset())

	res, err := s.Eval("foo()")
	require.NoError(t, err)
	assert.Equal(t, ErrorKindNone, res.ErrorKind)
	assert.Equal(t, 1, calls)
}

func TestSession_ClosedHandleSurfacesError(t *testing.T) {
	s := New(0, 0)
	require.NoError(t, s.Close())

	_, err := s.Eval("1")
	assert.ErrorIs(t, err, ErrSessionClosed)

	err = s.Reset()
	assert.ErrorIs(t, err, ErrSessionClosed)

	err = s.DefineFunction("x")
	assert.ErrorIs(t, err, ErrSessionClosed)

	assert.True(t, s.IsClosed())
}

func TestSession_IdempotentClose(t *testing.T) {
	s := New(0, 0)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
}

func TestSession_SyntaxErrorLineNumbersRebase(t *testing.T) {
	s := New(0, 0)
	defer s.Close()

	res, err := s.Eval("x = ")
	require.NoError(t, err)
	assert.Equal(t, ErrorKindRuntime, res.ErrorKind)
	assert.Contains(t, res.Error, "line 1")

	res, err = s.Eval("y = ")
	require.NoError(t, err)
	assert.Contains(t, res.Error, "line 1")
}

func TestSession_DefineFunctionCapacity(t *testing.T) {
	s := New(0, 0)
	defer s.Close()

	for i := 0; i < 64; i++ {
		require.NoError(t, s.DefineFunction(nameFor(i)))
	}
	err := s.DefineFunction("one_too_many")
	require.Error(t, err)
}

func TestSession_TrackerZeroAtTeardown(t *testing.T) {
	s := New(0, 0)
	require.NoError(t, s.DefineFunction("noop"))
	require.NoError(t, s.SetCallback(func(name string, args []any) (any, error) { return nil, nil }))
	_, err := s.Eval("a = [1,2,3]; noop()")
	require.NoError(t, err)
	require.NoError(t, s.Close())
	assert.Equal(t, uint64(0), s.tracker.Current())
}

func TestSession_ReentrantEvalFromCallback(t *testing.T) {
	s := New(0, 0)
	defer s.Close()

	require.NoError(t, s.DefineFunction("reenter"))
	require.NoError(t, s.SetCallback(func(name string, args []any) (any, error) {
		_, err := s.Eval("1")
		return nil, err
	}))

	res, err := s.Eval("reenter()")
	require.NoError(t, err)
	assert.Equal(t, ErrorKindRuntime, res.ErrorKind)
	assert.Contains(t, res.Error, "re-entrant")
}

func TestSession_UnlimitedTimeoutAllowsLongEval(t *testing.T) {
	s := New(0, 0)
	defer s.Close()

	start := time.Now()
	res, err := s.Eval("i = 0\nwhile i < 10000\ni = i + 1\nend\ni")
	require.NoError(t, err)
	assert.Equal(t, "10000", res.Value)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func nameFor(i int) string {
	return string(rune('a'+i%26)) + string(rune('A'+i/26))
}
