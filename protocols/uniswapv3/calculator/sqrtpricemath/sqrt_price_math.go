// Package sqrtpricemath moves Q64.96 square-root prices by token amounts and
// measures the token amounts between two prices.
package sqrtpricemath

import (
	"errors"
	"math/big"
	"sync"
)

var (
	// Q96 is 1.0 in Q64.96.
	Q96 = new(big.Int).Lsh(big.NewInt(1), Resolution)
	// Q192 is 1.0 in the squared (Q128.192) price domain.
	Q192 = new(big.Int).Lsh(big.NewInt(1), 2*Resolution)

	ErrLiquidityZero        = errors.New("liquidity must be greater than zero")
	ErrSqrtPriceZero        = errors.New("sqrt price must be greater than zero")
	ErrPriceOverflow        = errors.New("sqrt price does not fit in uint160")
	ErrInsufficientReserves = errors.New("amount out exceeds the virtual reserves")

	one        = big.NewInt(1)
	maxUint160 = new(big.Int).Sub(new(big.Int).Lsh(one, 160), one)
	maxUint256 = new(big.Int).Sub(new(big.Int).Lsh(one, 256), one)
)

// Resolution is the number of fractional bits in Q64.96.
const Resolution = 96

// scratch holds reusable temporaries; instances come from pool.
type scratch struct {
	product     *big.Int
	numerator1  *big.Int
	numerator2  *big.Int
	denominator *big.Int
	quotient    *big.Int
	rem         *big.Int
}

var pool = sync.Pool{
	New: func() any {
		return &scratch{
			product:     new(big.Int),
			numerator1:  new(big.Int),
			numerator2:  new(big.Int),
			denominator: new(big.Int),
			quotient:    new(big.Int),
			rem:         new(big.Int),
		}
	},
}

func (s *scratch) mulDiv(dest, a, b, c *big.Int) {
	s.product.Mul(a, b)
	dest.Quo(s.product, c)
}

func (s *scratch) mulDivRoundingUp(dest, a, b, c *big.Int) {
	s.product.Mul(a, b)
	s.divRoundingUp(dest, s.product, c)
}

func (s *scratch) divRoundingUp(dest, a, b *big.Int) {
	dest.QuoRem(a, b, s.rem)
	if s.rem.Sign() > 0 {
		dest.Add(dest, one)
	}
}

// GetNextSqrtPriceFromInput writes the price reached after adding amountIn of
// token0 (zeroForOne) or token1 to the pool.
func GetNextSqrtPriceFromInput(dest, sqrtPX96, liquidity, amountIn *big.Int, zeroForOne bool) error {
	if sqrtPX96.Sign() <= 0 {
		return ErrSqrtPriceZero
	}
	if liquidity.Sign() <= 0 {
		return ErrLiquidityZero
	}

	s := pool.Get().(*scratch)
	defer pool.Put(s)
	if zeroForOne {
		return s.nextFromAmount0RoundingUp(dest, sqrtPX96, liquidity, amountIn, true)
	}
	return s.nextFromAmount1RoundingDown(dest, sqrtPX96, liquidity, amountIn, true)
}

// GetNextSqrtPriceFromOutput writes the price reached after removing amountOut
// of token1 (zeroForOne) or token0 from the pool.
func GetNextSqrtPriceFromOutput(dest, sqrtPX96, liquidity, amountOut *big.Int, zeroForOne bool) error {
	if sqrtPX96.Sign() <= 0 {
		return ErrSqrtPriceZero
	}
	if liquidity.Sign() <= 0 {
		return ErrLiquidityZero
	}

	s := pool.Get().(*scratch)
	defer pool.Put(s)
	if zeroForOne {
		return s.nextFromAmount1RoundingDown(dest, sqrtPX96, liquidity, amountOut, false)
	}
	return s.nextFromAmount0RoundingUp(dest, sqrtPX96, liquidity, amountOut, false)
}

// GetAmount0Delta writes the token0 amount between two prices for the given
// liquidity.
func GetAmount0Delta(dest, sqrtRatioAX96, sqrtRatioBX96, liquidity *big.Int, roundUp bool) error {
	if sqrtRatioAX96.Cmp(sqrtRatioBX96) > 0 {
		sqrtRatioAX96, sqrtRatioBX96 = sqrtRatioBX96, sqrtRatioAX96
	}
	if sqrtRatioAX96.Sign() <= 0 {
		return ErrSqrtPriceZero
	}

	s := pool.Get().(*scratch)
	defer pool.Put(s)

	s.numerator1.Lsh(liquidity, Resolution)
	s.numerator2.Sub(sqrtRatioBX96, sqrtRatioAX96)
	if roundUp {
		s.mulDivRoundingUp(s.quotient, s.numerator1, s.numerator2, sqrtRatioBX96)
		s.divRoundingUp(dest, s.quotient, sqrtRatioAX96)
		return nil
	}
	s.mulDiv(s.quotient, s.numerator1, s.numerator2, sqrtRatioBX96)
	dest.Quo(s.quotient, sqrtRatioAX96)
	return nil
}

// GetAmount1Delta writes the token1 amount between two prices for the given
// liquidity.
func GetAmount1Delta(dest, sqrtRatioAX96, sqrtRatioBX96, liquidity *big.Int, roundUp bool) {
	if sqrtRatioAX96.Cmp(sqrtRatioBX96) > 0 {
		sqrtRatioAX96, sqrtRatioBX96 = sqrtRatioBX96, sqrtRatioAX96
	}

	s := pool.Get().(*scratch)
	defer pool.Put(s)

	s.numerator1.Sub(sqrtRatioBX96, sqrtRatioAX96)
	if roundUp {
		s.mulDivRoundingUp(dest, liquidity, s.numerator1, Q96)
		return
	}
	s.mulDiv(dest, liquidity, s.numerator1, Q96)
}

// nextFromAmount0RoundingUp rounds up so the price moves far enough to cover
// the token0 amount in either direction.
func (s *scratch) nextFromAmount0RoundingUp(dest, sqrtPX96, liquidity, amount *big.Int, add bool) error {
	if amount.Sign() == 0 {
		dest.Set(sqrtPX96)
		return nil
	}

	s.numerator1.Lsh(liquidity, Resolution)
	s.product.Mul(amount, sqrtPX96)

	if add {
		// The contract falls back to a lower precision formula when the
		// 256-bit intermediate would overflow; mirror that choice.
		if s.product.Cmp(maxUint256) <= 0 {
			s.denominator.Add(s.numerator1, s.product)
			if s.denominator.Cmp(maxUint256) <= 0 {
				s.mulDivRoundingUp(dest, s.numerator1, sqrtPX96, s.denominator)
				return nil
			}
		}
		s.denominator.Quo(s.numerator1, sqrtPX96)
		s.denominator.Add(s.denominator, amount)
		s.divRoundingUp(dest, s.numerator1, s.denominator)
		return nil
	}

	if s.product.Cmp(maxUint256) > 0 || s.numerator1.Cmp(s.product) <= 0 {
		return ErrInsufficientReserves
	}
	s.denominator.Sub(s.numerator1, s.product)
	s.mulDivRoundingUp(dest, s.numerator1, sqrtPX96, s.denominator)
	return nil
}

// nextFromAmount1RoundingDown rounds down in both directions.
func (s *scratch) nextFromAmount1RoundingDown(dest, sqrtPX96, liquidity, amount *big.Int, add bool) error {
	s.numerator1.Lsh(amount, Resolution)
	if add {
		s.quotient.Quo(s.numerator1, liquidity)
		dest.Add(sqrtPX96, s.quotient)
		if dest.Cmp(maxUint160) > 0 {
			return ErrPriceOverflow
		}
		return nil
	}

	s.divRoundingUp(s.quotient, s.numerator1, liquidity)
	if sqrtPX96.Cmp(s.quotient) <= 0 {
		return ErrInsufficientReserves
	}
	dest.Sub(sqrtPX96, s.quotient)
	return nil
}
