// Package swapmath computes one step of a swap inside a single liquidity range.
package swapmath

import (
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/defistate/defistate-pricing-go/protocols/uniswapv3/calculator/sqrtpricemath"
)

// FeeDenominator is 100% expressed in pips (hundredths of a basis point).
const FeeDenominator = 1_000_000

var ErrInvalidFee = errors.New("fee must be below 1,000,000 pips")

var (
	feeDenominator = big.NewInt(FeeDenominator)
	one            = big.NewInt(1)
)

// Step is the outcome of a single swap step. AmountIn excludes FeeAmount.
type Step struct {
	SqrtRatioNextX96 *big.Int
	AmountIn         *big.Int
	AmountOut        *big.Int
	FeeAmount        *big.Int
}

type scratch struct {
	feeComplement *big.Int
	lessFee       *big.Int
	remainingAbs  *big.Int
	product       *big.Int
	rem           *big.Int
}

var pool = sync.Pool{
	New: func() any {
		return &scratch{
			feeComplement: new(big.Int),
			lessFee:       new(big.Int),
			remainingAbs:  new(big.Int),
			product:       new(big.Int),
			rem:           new(big.Int),
		}
	},
}

// ComputeSwapStep swaps from sqrtRatioCurrentX96 toward sqrtRatioTargetX96.
// A non-negative amountRemaining is an exact input; a negative one is an exact
// output. The direction is implied by the two prices.
func ComputeSwapStep(sqrtRatioCurrentX96, sqrtRatioTargetX96, liquidity, amountRemaining *big.Int, feePips uint32) (Step, error) {
	if feePips >= FeeDenominator {
		return Step{}, fmt.Errorf("%w: %d", ErrInvalidFee, feePips)
	}

	s := pool.Get().(*scratch)
	defer pool.Put(s)

	fee := big.NewInt(int64(feePips))
	s.feeComplement.Sub(feeDenominator, fee)

	zeroForOne := sqrtRatioCurrentX96.Cmp(sqrtRatioTargetX96) >= 0
	exactIn := amountRemaining.Sign() >= 0

	step := Step{
		SqrtRatioNextX96: new(big.Int),
		AmountIn:         new(big.Int),
		AmountOut:        new(big.Int),
		FeeAmount:        new(big.Int),
	}

	if exactIn {
		s.mulDiv(s.lessFee, amountRemaining, s.feeComplement, feeDenominator)
		if err := amountInDelta(step.AmountIn, sqrtRatioCurrentX96, sqrtRatioTargetX96, liquidity, zeroForOne); err != nil {
			return Step{}, err
		}
		if s.lessFee.Cmp(step.AmountIn) >= 0 {
			step.SqrtRatioNextX96.Set(sqrtRatioTargetX96)
		} else if err := sqrtpricemath.GetNextSqrtPriceFromInput(step.SqrtRatioNextX96, sqrtRatioCurrentX96, liquidity, s.lessFee, zeroForOne); err != nil {
			return Step{}, err
		}
	} else {
		s.remainingAbs.Neg(amountRemaining)
		if err := amountOutDelta(step.AmountOut, sqrtRatioCurrentX96, sqrtRatioTargetX96, liquidity, zeroForOne); err != nil {
			return Step{}, err
		}
		if s.remainingAbs.Cmp(step.AmountOut) >= 0 {
			step.SqrtRatioNextX96.Set(sqrtRatioTargetX96)
		} else if err := sqrtpricemath.GetNextSqrtPriceFromOutput(step.SqrtRatioNextX96, sqrtRatioCurrentX96, liquidity, s.remainingAbs, zeroForOne); err != nil {
			return Step{}, err
		}
	}

	reachedTarget := step.SqrtRatioNextX96.Cmp(sqrtRatioTargetX96) == 0

	// Amounts computed against the target are only valid when it was reached.
	if !reachedTarget || !exactIn {
		if err := amountInDelta(step.AmountIn, sqrtRatioCurrentX96, step.SqrtRatioNextX96, liquidity, zeroForOne); err != nil {
			return Step{}, err
		}
	}
	if !reachedTarget || exactIn {
		if err := amountOutDelta(step.AmountOut, sqrtRatioCurrentX96, step.SqrtRatioNextX96, liquidity, zeroForOne); err != nil {
			return Step{}, err
		}
	}

	if !exactIn && step.AmountOut.Cmp(s.remainingAbs) > 0 {
		step.AmountOut.Set(s.remainingAbs)
	}

	if exactIn && !reachedTarget {
		// The price stopped short; whatever input is left over is the fee.
		step.FeeAmount.Sub(amountRemaining, step.AmountIn)
	} else {
		s.mulDivRoundingUp(step.FeeAmount, step.AmountIn, fee, s.feeComplement)
	}
	return step, nil
}

// amountInDelta writes the input needed to move between the two prices, rounded up.
func amountInDelta(dest, current, next, liquidity *big.Int, zeroForOne bool) error {
	if zeroForOne {
		return sqrtpricemath.GetAmount0Delta(dest, next, current, liquidity, true)
	}
	sqrtpricemath.GetAmount1Delta(dest, current, next, liquidity, true)
	return nil
}

// amountOutDelta writes the output released between the two prices, rounded down.
func amountOutDelta(dest, current, next, liquidity *big.Int, zeroForOne bool) error {
	if zeroForOne {
		sqrtpricemath.GetAmount1Delta(dest, next, current, liquidity, false)
		return nil
	}
	return sqrtpricemath.GetAmount0Delta(dest, current, next, liquidity, false)
}

func (s *scratch) mulDiv(dest, a, b, c *big.Int) {
	s.product.Mul(a, b)
	dest.Quo(s.product, c)
}

func (s *scratch) mulDivRoundingUp(dest, a, b, c *big.Int) {
	s.product.Mul(a, b)
	dest.QuoRem(s.product, c, s.rem)
	if s.rem.Sign() > 0 {
		dest.Add(dest, one)
	}
}
