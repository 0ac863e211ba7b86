package uniswapv3

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/defistate/defistate-pricing-go/protocols/uniswapv3/calculator/tickmath"
)

var (
	ErrNegativeLiquidityGross = errors.New("liquidity gross is negative")
	ErrInvalidTickValue       = errors.New("tick value is not a base-10 integer")
)

// Tick is an initialized tick of a pool. Crossing it upward adds LiquidityNet
// to the active liquidity; crossing it downward subtracts it.
type Tick struct {
	Index          int64    `json:"index"`
	LiquidityGross *big.Int `json:"liquidityGross"`
	LiquidityNet   *big.Int `json:"liquidityNet"`
}

// NewTick validates the index range and the sign of the gross liquidity.
func NewTick(index int64, liquidityGross, liquidityNet *big.Int) (Tick, error) {
	if index < tickmath.MIN_TICK || index > tickmath.MAX_TICK {
		return Tick{}, fmt.Errorf("%w: %d", tickmath.ErrTickOutOfBounds, index)
	}
	if liquidityGross == nil || liquidityNet == nil {
		return Tick{}, fmt.Errorf("tick %d: %w", index, ErrInvalidTickValue)
	}
	if liquidityGross.Sign() < 0 {
		return Tick{}, fmt.Errorf("tick %d: %w", index, ErrNegativeLiquidityGross)
	}
	return Tick{
		Index:          index,
		LiquidityGross: new(big.Int).Set(liquidityGross),
		LiquidityNet:   new(big.Int).Set(liquidityNet),
	}, nil
}

// ParseTick builds a Tick from the decimal strings used by indexers.
func ParseTick(index, liquidityGross, liquidityNet string) (Tick, error) {
	idx, ok := new(big.Int).SetString(index, 10)
	if !ok || !idx.IsInt64() {
		return Tick{}, fmt.Errorf("%w: index %q", ErrInvalidTickValue, index)
	}
	gross, ok := new(big.Int).SetString(liquidityGross, 10)
	if !ok {
		return Tick{}, fmt.Errorf("%w: liquidityGross %q", ErrInvalidTickValue, liquidityGross)
	}
	net, ok := new(big.Int).SetString(liquidityNet, 10)
	if !ok {
		return Tick{}, fmt.Errorf("%w: liquidityNet %q", ErrInvalidTickValue, liquidityNet)
	}
	return NewTick(idx.Int64(), gross, net)
}

// Clone returns a deep copy.
func (t Tick) Clone() Tick {
	c := Tick{Index: t.Index}
	if t.LiquidityGross != nil {
		c.LiquidityGross = new(big.Int).Set(t.LiquidityGross)
	}
	if t.LiquidityNet != nil {
		c.LiquidityNet = new(big.Int).Set(t.LiquidityNet)
	}
	return c
}
