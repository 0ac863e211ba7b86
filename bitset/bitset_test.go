package bitset

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBitSet_AddAndHas(t *testing.T) {
	bs := New(100)
	assert.Len(t, bs, 2)

	for _, i := range []int{0, 63, 64, 99} {
		bs.Add(i)
	}
	for _, i := range []int{0, 63, 64, 99} {
		assert.True(t, bs.Has(i), "bit %d", i)
	}
	assert.False(t, bs.Has(1))
	assert.Equal(t, 4, bs.Len())
}

func TestBitSet_Remove(t *testing.T) {
	bs := New(100)
	bs.Add(10)
	bs.Add(20)
	bs.Add(30)

	bs.Remove(20)
	bs.Remove(21)

	assert.False(t, bs.Has(20))
	assert.True(t, bs.Has(10))
	assert.True(t, bs.Has(30))
	assert.Equal(t, 2, bs.Len())

	bs.Reset()
	assert.Equal(t, 0, bs.Len())
}

func TestBitSet_CopyFrom(t *testing.T) {
	src := BitSet{0b1010, 0b1111}
	dst := New(128)

	dst.CopyFrom(src)
	assert.Equal(t, src, dst)

	dst.Add(0)
	assert.False(t, src.Has(0), "copy must not alias the source")

	assert.Panics(t, func() { BitSet{0}.CopyFrom(src) })
}
