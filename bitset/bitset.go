// Package bitset is a fixed-size set of small non-negative integers.
package bitset

import (
	"fmt"
	"math/bits"
)

// BitSet holds membership for the integers [0, 64*len(b)).
type BitSet []uint64

// New returns an empty BitSet able to hold n members.
func New(n int) BitSet {
	return make(BitSet, (n+63)/64)
}

func (b BitSet) Has(i int) bool {
	return b[i/64]&(1<<(uint(i)%64)) != 0
}

func (b BitSet) Add(i int) {
	b[i/64] |= 1 << (uint(i) % 64)
}

func (b BitSet) Remove(i int) {
	b[i/64] &^= 1 << (uint(i) % 64)
}

// Reset removes every member.
func (b BitSet) Reset() {
	clear(b)
}

// CopyFrom overwrites b with o. Both sets must have the same capacity.
func (b BitSet) CopyFrom(o BitSet) {
	if len(b) != len(o) {
		panic(fmt.Sprintf("bitsets must be same size: got %d vs %d", len(b), len(o)))
	}
	copy(b, o)
}

// Len returns the number of members.
func (b BitSet) Len() int {
	n := 0
	for _, w := range b {
		n += bits.OnesCount64(w)
	}
	return n
}
