// Package liquidityamounts converts between position liquidity and the token
// amounts it represents over a price range.
package liquidityamounts

import (
	"errors"
	"math/big"

	"github.com/defistate/defistate-pricing-go/protocols/uniswapv3/calculator/sqrtpricemath"
)

var (
	ErrEmptyRange    = errors.New("price range is empty")
	ErrSqrtPriceZero = errors.New("sqrt price must be greater than zero")
)

func sortRange(sqrtRatioAX96, sqrtRatioBX96 *big.Int) (*big.Int, *big.Int, error) {
	if sqrtRatioAX96.Cmp(sqrtRatioBX96) > 0 {
		sqrtRatioAX96, sqrtRatioBX96 = sqrtRatioBX96, sqrtRatioAX96
	}
	if sqrtRatioAX96.Sign() <= 0 {
		return nil, nil, ErrSqrtPriceZero
	}
	if sqrtRatioAX96.Cmp(sqrtRatioBX96) == 0 {
		return nil, nil, ErrEmptyRange
	}
	return sqrtRatioAX96, sqrtRatioBX96, nil
}

// LiquidityForAmount0 is the liquidity that amount0 provides over [A, B].
func LiquidityForAmount0(sqrtRatioAX96, sqrtRatioBX96, amount0 *big.Int) (*big.Int, error) {
	a, b, err := sortRange(sqrtRatioAX96, sqrtRatioBX96)
	if err != nil {
		return nil, err
	}
	intermediate := new(big.Int).Mul(a, b)
	intermediate.Quo(intermediate, sqrtpricemath.Q96)
	liquidity := new(big.Int).Mul(amount0, intermediate)
	return liquidity.Quo(liquidity, new(big.Int).Sub(b, a)), nil
}

// LiquidityForAmount1 is the liquidity that amount1 provides over [A, B].
func LiquidityForAmount1(sqrtRatioAX96, sqrtRatioBX96, amount1 *big.Int) (*big.Int, error) {
	a, b, err := sortRange(sqrtRatioAX96, sqrtRatioBX96)
	if err != nil {
		return nil, err
	}
	liquidity := new(big.Int).Mul(amount1, sqrtpricemath.Q96)
	return liquidity.Quo(liquidity, new(big.Int).Sub(b, a)), nil
}

// MaxLiquidityForAmounts is the largest liquidity that amount0 and amount1 can
// fund over [A, B] at the current price.
func MaxLiquidityForAmounts(sqrtRatioCurrentX96, sqrtRatioAX96, sqrtRatioBX96, amount0, amount1 *big.Int) (*big.Int, error) {
	a, b, err := sortRange(sqrtRatioAX96, sqrtRatioBX96)
	if err != nil {
		return nil, err
	}

	switch {
	case sqrtRatioCurrentX96.Cmp(a) <= 0:
		return LiquidityForAmount0(a, b, amount0)
	case sqrtRatioCurrentX96.Cmp(b) < 0:
		liquidity0, err := LiquidityForAmount0(sqrtRatioCurrentX96, b, amount0)
		if err != nil {
			return nil, err
		}
		liquidity1, err := LiquidityForAmount1(a, sqrtRatioCurrentX96, amount1)
		if err != nil {
			return nil, err
		}
		if liquidity0.Cmp(liquidity1) < 0 {
			return liquidity0, nil
		}
		return liquidity1, nil
	default:
		return LiquidityForAmount1(a, b, amount1)
	}
}

// AmountsForLiquidity returns the token amounts, rounded down, that liquidity
// represents over [A, B] at the current price.
func AmountsForLiquidity(sqrtRatioCurrentX96, sqrtRatioAX96, sqrtRatioBX96, liquidity *big.Int) (amount0, amount1 *big.Int, err error) {
	a, b, err := sortRange(sqrtRatioAX96, sqrtRatioBX96)
	if err != nil {
		return nil, nil, err
	}

	amount0, amount1 = new(big.Int), new(big.Int)
	switch {
	case sqrtRatioCurrentX96.Cmp(a) <= 0:
		err = sqrtpricemath.GetAmount0Delta(amount0, a, b, liquidity, false)
	case sqrtRatioCurrentX96.Cmp(b) < 0:
		err = sqrtpricemath.GetAmount0Delta(amount0, sqrtRatioCurrentX96, b, liquidity, false)
		sqrtpricemath.GetAmount1Delta(amount1, a, sqrtRatioCurrentX96, liquidity, false)
	default:
		sqrtpricemath.GetAmount1Delta(amount1, a, b, liquidity, false)
	}
	if err != nil {
		return nil, nil, err
	}
	return amount0, amount1, nil
}
