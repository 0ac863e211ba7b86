// Package liquiditymath applies signed liquidity deltas within uint128 bounds.
package liquiditymath

import (
	"errors"
	"fmt"
	"math/big"
)

var (
	// MaxUint128 is the largest liquidity value a pool can hold.
	MaxUint128 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))

	ErrLiquidityOverflow  = errors.New("liquidity overflow")
	ErrLiquidityUnderflow = errors.New("liquidity underflow")
)

// AddDelta writes x + y into dest, failing if the result leaves [0, 2^128).
func AddDelta(dest, x, y *big.Int) error {
	dest.Add(x, y)
	if dest.Sign() < 0 {
		return fmt.Errorf("%w: %s + %s", ErrLiquidityUnderflow, x, y)
	}
	if dest.Cmp(MaxUint128) > 0 {
		return fmt.Errorf("%w: %s + %s", ErrLiquidityOverflow, x, y)
	}
	return nil
}

// CrossTick writes the active liquidity after crossing a tick with the given
// net liquidity. Moving down through the tick (zeroForOne) removes the net.
func CrossTick(dest, liquidity, liquidityNet *big.Int, zeroForOne bool) error {
	if zeroForOne {
		return AddDelta(dest, liquidity, new(big.Int).Neg(liquidityNet))
	}
	return AddDelta(dest, liquidity, liquidityNet)
}
