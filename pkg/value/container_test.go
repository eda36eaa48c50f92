package value

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStackPushPopLIFO(t *testing.T) {
	s := NewStack(10)
	s.Push(IntValue(10))
	s.Push(IntValue(20))
	s.Push(IntValue(30))

	assert.Equal(t, int32(30), s.Pop().I32)
	assert.Equal(t, int32(20), s.Pop().I32)
	assert.Equal(t, int32(10), s.Pop().I32)
}

func TestStackWideRoundTrip(t *testing.T) {
	s := NewStack(10)
	s.Push(LongValue(123456789))
	assert.True(t, s.TopIsCategory2())
	got := s.PopWide()
	assert.Equal(t, int64(123456789), got.I64)
	assert.Equal(t, 0, s.Depth())
}

func TestStackPopOnSentinelPanics(t *testing.T) {
	s := NewStack(10)
	s.Push(DoubleValue(1.5))
	assert.Panics(t, func() { s.Pop() })
}

func TestLocalsWideOccupiesTwoSlots(t *testing.T) {
	l := NewLocals(4)
	l.SetWide(1, LongValue(42))
	assert.Equal(t, int64(42), l.GetWide(1).I64)
	assert.Panics(t, func() { l.Get(2) })
}

func TestLocalsCategory1RoundTrip(t *testing.T) {
	l := NewLocals(2)
	l.Set(0, IntValue(7))
	assert.Equal(t, int32(7), l.Get(0).I32)
}
