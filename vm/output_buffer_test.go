package vm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOutputBuffer_AppendAndString(t *testing.T) {
	ob := NewOutputBuffer()
	ob.WriteString("hello")
	ob.WriteString(" world")
	assert.Equal(t, "hello world", ob.String())
}

func TestOutputBuffer_ResetKeepsCapacity(t *testing.T) {
	ob := NewOutputBuffer()
	ob.WriteString("some content")
	capBefore := cap(ob.Bytes())
	ob.Reset()
	assert.Equal(t, 0, ob.Len())
	assert.Equal(t, capBefore, cap(ob.Bytes()))
}

func TestOutputBuffer_GrowsGeometrically(t *testing.T) {
	ob := NewOutputBuffer()
	big := make([]byte, 1000)
	for i := range big {
		big[i] = 'x'
	}
	ob.Append(big)
	assert.Equal(t, 1000, ob.Len())
	assert.GreaterOrEqual(t, cap(ob.Bytes()), 1000)
}

func TestOutputBuffer_EmptyInitially(t *testing.T) {
	ob := NewOutputBuffer()
	assert.Equal(t, "", ob.String())
	assert.Equal(t, 0, ob.Len())
}
