package values

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValue_Inspect(t *testing.T) {
	tests := []struct {
		name string
		v    *Value
		want string
	}{
		{"nil", Nil(), "nil"},
		{"true", Bool(true), "true"},
		{"false", Bool(false), "false"},
		{"int", Int(42), "42"},
		{"negative int", Int(-7), "-7"},
		{"whole float", Float(3.0), "3.0"},
		{"fractional float", Float(3.5), "3.5"},
		{"string", String("hi"), `"hi"`},
		{"string with quote", String(`a"b`), `"a\"b"`},
		{"empty array", Array(nil), "[]"},
		{"array", Array([]*Value{Int(1), Int(2)}), "[1, 2]"},
		{"nested array", Array([]*Value{Int(1), Array([]*Value{Int(2), Int(3)})}), "[1, [2, 3]]"},
		{"hash", Hash([]Pair{{Key: String("a"), Value: Int(1)}}), `{"a" => 1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.v.Inspect())
		})
	}
}

func TestValue_ToString(t *testing.T) {
	assert.Equal(t, "hi", String("hi").ToString())
	assert.Equal(t, "42", Int(42).ToString())
	assert.Equal(t, "nil", Nil().ToString())
}

func TestValue_Truthy(t *testing.T) {
	assert.False(t, Nil().Truthy())
	assert.False(t, Bool(false).Truthy())
	assert.True(t, Bool(true).Truthy())
	assert.True(t, Int(0).Truthy())
	assert.True(t, String("").Truthy())
	assert.True(t, Array(nil).Truthy())
}

func TestEqual(t *testing.T) {
	assert.True(t, Equal(Int(1), Int(1)))
	assert.True(t, Equal(Int(1), Float(1.0)))
	assert.False(t, Equal(Int(1), Int(2)))
	assert.True(t, Equal(Nil(), Nil()))
	assert.False(t, Equal(Nil(), Int(0)))
	assert.True(t, Equal(Array([]*Value{Int(1)}), Array([]*Value{Int(1)})))
	assert.False(t, Equal(Array([]*Value{Int(1)}), Array([]*Value{Int(2)})))
	assert.True(t, Equal(
		Hash([]Pair{{Key: String("a"), Value: Int(1)}}),
		Hash([]Pair{{Key: String("a"), Value: Int(1)}}),
	))
}

func TestValue_PushAndSet(t *testing.T) {
	arr := Array(nil)
	arr.Push(Int(1))
	arr.Push(Int(2))
	assert.Equal(t, 2, len(arr.ArrayVal()))

	h := Hash(nil)
	h.Set(String("a"), Int(1))
	h.Set(String("b"), Int(2))
	h.Set(String("a"), Int(99)) // overwrite preserves position
	assert.Equal(t, 2, len(h.HashVal()))
	assert.Equal(t, int64(99), h.HashVal()[0].Value.IntVal())
}

func TestClassName(t *testing.T) {
	assert.Equal(t, "NilClass", Nil().ClassName())
	assert.Equal(t, "Integer", Int(1).ClassName())
	assert.Equal(t, "String", String("x").ClassName())
	assert.Equal(t, "Array", Array(nil).ClassName())
	assert.Equal(t, "Hash", Hash(nil).ClassName())
}

func TestApproxSize_GrowsWithContent(t *testing.T) {
	small := String("x")
	big := String("xxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxx")
	assert.Greater(t, big.ApproxSize(), small.ApproxSize())
}
