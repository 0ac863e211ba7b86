package bitmath

import (
	"errors"
	"math/big"
)

var (
	// ErrInputIsZero is returned when a function requires a positive input but receives zero or less.
	ErrInputIsZero = errors.New("input must be greater than zero")
	// ErrInputIsNil is returned when a function receives a nil pointer.
	ErrInputIsNil = errors.New("input cannot be nil")
	// ErrInputTooWide is returned for inputs that do not fit in 256 bits.
	ErrInputTooWide = errors.New("input exceeds 256 bits")
)

// MostSignificantBit returns the index of the highest set bit of x, counting
// the least significant bit as index 0, so that 2**msb <= x < 2**(msb+1).
func MostSignificantBit(x *big.Int) (uint8, error) {
	if x == nil {
		return 0, ErrInputIsNil
	}
	if x.Sign() <= 0 {
		return 0, ErrInputIsZero
	}
	n := x.BitLen()
	if n > 256 {
		return 0, ErrInputTooWide
	}
	return uint8(n - 1), nil
}
