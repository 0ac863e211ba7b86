// Package calculator simulates swaps against an immutable pool snapshot,
// stepping through initialized ticks the same way the pool contract does.
package calculator

import (
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/defistate/defistate-pricing-go/core"
	"github.com/defistate/defistate-pricing-go/protocols/tokenregistry"
	uniswapv3 "github.com/defistate/defistate-pricing-go/protocols/uniswapv3"
	"github.com/defistate/defistate-pricing-go/protocols/uniswapv3/calculator/liquiditymath"
	"github.com/defistate/defistate-pricing-go/protocols/uniswapv3/calculator/sqrtpricemath"
	"github.com/defistate/defistate-pricing-go/protocols/uniswapv3/calculator/swapmath"
	"github.com/defistate/defistate-pricing-go/protocols/uniswapv3/calculator/tickbitmap"
	"github.com/defistate/defistate-pricing-go/protocols/uniswapv3/calculator/tickmath"
)

var (
	ErrInvalidAmount         = errors.New("amount must be greater than zero")
	ErrInvalidPriceLimit     = errors.New("invalid sqrt price limit")
	ErrInsufficientLiquidity = errors.New("insufficient liquidity for exact output")

	one = big.NewInt(1)
)

// swapState carries the running totals of a simulation. Instances are pooled
// and reset before use.
type swapState struct {
	amountSpecifiedRemaining *big.Int
	amountCalculated         *big.Int
	sqrtPriceX96             *big.Int
	tick                     int64
	liquidity                *big.Int

	sqrtPriceStartX96 *big.Int
	sqrtPriceNextX96  *big.Int
	targetPrice       *big.Int
	tempAmount        *big.Int
}

var swapStatePool = sync.Pool{
	New: func() any {
		return &swapState{
			amountSpecifiedRemaining: new(big.Int),
			amountCalculated:         new(big.Int),
			sqrtPriceX96:             new(big.Int),
			liquidity:                new(big.Int),
			sqrtPriceStartX96:        new(big.Int),
			sqrtPriceNextX96:         new(big.Int),
			targetPrice:              new(big.Int),
			tempAmount:               new(big.Int),
		}
	},
}

func (s *swapState) reset(pool *uniswapv3.Pool, amountSpecified *big.Int) {
	s.amountSpecifiedRemaining.Set(amountSpecified)
	s.amountCalculated.SetInt64(0)
	s.sqrtPriceX96.Set(pool.SqrtRatioX96())
	s.tick = pool.TickCurrent()
	s.liquidity.Set(pool.Liquidity())
}

// resolvePriceLimit defaults the limit to one unit inside the price bounds and
// rejects limits on the wrong side of the current price.
func resolvePriceLimit(pool *uniswapv3.Pool, sqrtPriceLimitX96 *big.Int, zeroForOne bool) (*big.Int, error) {
	current := pool.SqrtRatioX96()
	if sqrtPriceLimitX96 == nil {
		if zeroForOne {
			return new(big.Int).Add(tickmath.MIN_SQRT_RATIO, one), nil
		}
		return new(big.Int).Sub(tickmath.MAX_SQRT_RATIO, one), nil
	}
	if zeroForOne {
		if sqrtPriceLimitX96.Cmp(current) >= 0 || sqrtPriceLimitX96.Cmp(tickmath.MIN_SQRT_RATIO) <= 0 {
			return nil, fmt.Errorf("%w: %s for a swap below %s", ErrInvalidPriceLimit, sqrtPriceLimitX96, current)
		}
		return sqrtPriceLimitX96, nil
	}
	if sqrtPriceLimitX96.Cmp(current) <= 0 || sqrtPriceLimitX96.Cmp(tickmath.MAX_SQRT_RATIO) >= 0 {
		return nil, fmt.Errorf("%w: %s for a swap above %s", ErrInvalidPriceLimit, sqrtPriceLimitX96, current)
	}
	return sqrtPriceLimitX96, nil
}

// swap runs the simulation loop. A positive amountSpecifiedRemaining is an
// exact input, a negative one an exact output.
func swap(state *swapState, pool *uniswapv3.Pool, sqrtPriceLimitX96 *big.Int, zeroForOne bool) error {
	ticks := pool.Ticks()
	exactInput := state.amountSpecifiedRemaining.Sign() > 0

	for state.amountSpecifiedRemaining.Sign() != 0 && state.sqrtPriceX96.Cmp(sqrtPriceLimitX96) != 0 {
		state.sqrtPriceStartX96.Set(state.sqrtPriceX96)

		tickNext, initialized, err := tickbitmap.NextInitializedTickWithinOneWord(ticks, state.tick, zeroForOne, pool.TickSpacing())
		if err != nil {
			return err
		}
		if tickNext < tickmath.MIN_TICK {
			tickNext = tickmath.MIN_TICK
		} else if tickNext > tickmath.MAX_TICK {
			tickNext = tickmath.MAX_TICK
		}

		if err := tickmath.GetSqrtRatioAtTick(state.sqrtPriceNextX96, tickNext); err != nil {
			return err
		}

		if (zeroForOne && state.sqrtPriceNextX96.Cmp(sqrtPriceLimitX96) < 0) ||
			(!zeroForOne && state.sqrtPriceNextX96.Cmp(sqrtPriceLimitX96) > 0) {
			state.targetPrice.Set(sqrtPriceLimitX96)
		} else {
			state.targetPrice.Set(state.sqrtPriceNextX96)
		}

		step, err := swapmath.ComputeSwapStep(
			state.sqrtPriceX96,
			state.targetPrice,
			state.liquidity,
			state.amountSpecifiedRemaining,
			uint32(pool.Fee()),
		)
		if err != nil {
			return err
		}
		state.sqrtPriceX96.Set(step.SqrtRatioNextX96)

		state.tempAmount.Add(step.AmountIn, step.FeeAmount)
		if exactInput {
			state.amountSpecifiedRemaining.Sub(state.amountSpecifiedRemaining, state.tempAmount)
			state.amountCalculated.Add(state.amountCalculated, step.AmountOut)
		} else {
			state.amountSpecifiedRemaining.Add(state.amountSpecifiedRemaining, step.AmountOut)
			state.amountCalculated.Add(state.amountCalculated, state.tempAmount)
		}

		if state.sqrtPriceX96.Cmp(state.sqrtPriceNextX96) == 0 {
			if initialized {
				crossed, ok := pool.Tick(tickNext)
				if !ok {
					return fmt.Errorf("initialized tick %d not found", tickNext)
				}
				if err := liquiditymath.CrossTick(state.liquidity, state.liquidity, crossed.LiquidityNet, zeroForOne); err != nil {
					return fmt.Errorf("crossing tick %d: %w", tickNext, err)
				}
			}
			if zeroForOne {
				state.tick = tickNext - 1
			} else {
				state.tick = tickNext
			}
		} else if state.sqrtPriceX96.Cmp(state.sqrtPriceStartX96) != 0 {
			state.tick, err = tickmath.GetTickAtSqrtRatio(state.sqrtPriceX96)
			if err != nil {
				return err
			}
		}
	}
	return nil
}

// direction reports whether selling token moves the pool from token0 to
// token1, and returns the token on the other side.
func direction(pool *uniswapv3.Pool, tokenIn tokenregistry.Token) (bool, tokenregistry.Token, error) {
	switch {
	case tokenIn.Equals(pool.Token0()):
		return true, pool.Token1(), nil
	case tokenIn.Equals(pool.Token1()):
		return false, pool.Token0(), nil
	default:
		return false, tokenregistry.Token{}, fmt.Errorf("%w: %s", uniswapv3.ErrTokenNotInPool, tokenIn)
	}
}

func (s *swapState) nextPool(pool *uniswapv3.Pool) (*uniswapv3.Pool, error) {
	return pool.WithState(s.sqrtPriceX96, s.liquidity, s.tick)
}

// GetOutputAmount simulates selling inputAmount into the pool and returns the
// amount received together with the pool state after the swap. A nil
// sqrtPriceLimitX96 lets the swap run to the edge of the price range. When the
// limit is hit first the unspent input stays with the caller; use
// QuoteExactInput to learn how much was spent.
func GetOutputAmount(pool *uniswapv3.Pool, inputAmount core.CurrencyAmount, sqrtPriceLimitX96 *big.Int) (core.CurrencyAmount, *uniswapv3.Pool, error) {
	_, outputAmount, next, err := QuoteExactInput(pool, inputAmount, sqrtPriceLimitX96)
	return outputAmount, next, err
}

// QuoteExactInput is GetOutputAmount that also reports the part of
// inputAmount the swap consumed. The two differ only when the price limit
// stops the swap early.
func QuoteExactInput(pool *uniswapv3.Pool, inputAmount core.CurrencyAmount, sqrtPriceLimitX96 *big.Int) (spent, outputAmount core.CurrencyAmount, next *uniswapv3.Pool, err error) {
	zeroForOne, tokenOut, err := direction(pool, inputAmount.Currency())
	if err != nil {
		return core.CurrencyAmount{}, core.CurrencyAmount{}, nil, err
	}
	if inputAmount.IsZero() {
		return core.CurrencyAmount{}, core.CurrencyAmount{}, nil, ErrInvalidAmount
	}
	limit, err := resolvePriceLimit(pool, sqrtPriceLimitX96, zeroForOne)
	if err != nil {
		return core.CurrencyAmount{}, core.CurrencyAmount{}, nil, err
	}

	state := swapStatePool.Get().(*swapState)
	defer swapStatePool.Put(state)

	requested := inputAmount.Quotient()
	state.reset(pool, requested)
	if err := swap(state, pool, limit, zeroForOne); err != nil {
		return core.CurrencyAmount{}, core.CurrencyAmount{}, nil, err
	}

	spent, err = core.FromRawAmount(inputAmount.Currency(), requested.Sub(requested, state.amountSpecifiedRemaining))
	if err != nil {
		return core.CurrencyAmount{}, core.CurrencyAmount{}, nil, err
	}
	outputAmount, err = core.FromRawAmount(tokenOut, state.amountCalculated)
	if err != nil {
		return core.CurrencyAmount{}, core.CurrencyAmount{}, nil, err
	}
	next, err = state.nextPool(pool)
	if err != nil {
		return core.CurrencyAmount{}, core.CurrencyAmount{}, nil, err
	}
	return spent, outputAmount, next, nil
}

// GetInputAmount simulates buying outputAmount from the pool and returns the
// amount that must be paid, fee included, together with the pool state after
// the swap. It fails with ErrInsufficientLiquidity when the pool cannot
// deliver the full amount before reaching the price limit.
func GetInputAmount(pool *uniswapv3.Pool, outputAmount core.CurrencyAmount, sqrtPriceLimitX96 *big.Int) (core.CurrencyAmount, *uniswapv3.Pool, error) {
	// Buying token1 is a zeroForOne swap, so the direction of the output token
	// is flipped.
	oneForZero, tokenIn, err := direction(pool, outputAmount.Currency())
	if err != nil {
		return core.CurrencyAmount{}, nil, err
	}
	zeroForOne := !oneForZero
	if outputAmount.IsZero() {
		return core.CurrencyAmount{}, nil, ErrInvalidAmount
	}
	limit, err := resolvePriceLimit(pool, sqrtPriceLimitX96, zeroForOne)
	if err != nil {
		return core.CurrencyAmount{}, nil, err
	}

	state := swapStatePool.Get().(*swapState)
	defer swapStatePool.Put(state)

	state.reset(pool, new(big.Int).Neg(outputAmount.Quotient()))
	if err := swap(state, pool, limit, zeroForOne); err != nil {
		return core.CurrencyAmount{}, nil, err
	}
	if state.amountSpecifiedRemaining.Sign() != 0 {
		return core.CurrencyAmount{}, nil, fmt.Errorf("%w: %s of %s undelivered",
			ErrInsufficientLiquidity, new(big.Int).Neg(state.amountSpecifiedRemaining), outputAmount.Quotient())
	}

	inputAmount, err := core.FromRawAmount(tokenIn, state.amountCalculated)
	if err != nil {
		return core.CurrencyAmount{}, nil, err
	}
	next, err := state.nextPool(pool)
	if err != nil {
		return core.CurrencyAmount{}, nil, err
	}
	return inputAmount, next, nil
}

// GetVirtualReserves returns the constant-product reserves equivalent to the
// pool's active liquidity at its current price, ordered (tokenIn, tokenOut).
func GetVirtualReserves(pool *uniswapv3.Pool, tokenIn tokenregistry.Token) (reserveIn, reserveOut *big.Int, err error) {
	zeroForOne, _, err := direction(pool, tokenIn)
	if err != nil {
		return nil, nil, err
	}

	sqrtPriceX96 := pool.SqrtRatioX96()
	liquidity := pool.Liquidity()
	reserve0 := new(big.Int).Div(new(big.Int).Lsh(liquidity, sqrtpricemath.Resolution), sqrtPriceX96)
	reserve1 := new(big.Int).Div(new(big.Int).Mul(liquidity, sqrtPriceX96), sqrtpricemath.Q96)

	if zeroForOne {
		return reserve0, reserve1, nil
	}
	return reserve1, reserve0, nil
}
