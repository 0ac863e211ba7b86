// Package uniswapv3 holds the concentrated-liquidity pool entities: fee tiers,
// ticks and immutable pool snapshots.
package uniswapv3

import (
	"errors"
	"fmt"
	"math/big"
	"sort"

	"github.com/defistate/defistate-pricing-go/core"
	"github.com/defistate/defistate-pricing-go/protocols/tokenregistry"
	"github.com/defistate/defistate-pricing-go/protocols/uniswapv3/calculator/sqrtpricemath"
	"github.com/defistate/defistate-pricing-go/protocols/uniswapv3/calculator/tickmath"
)

var (
	ErrTokensNotSorted   = errors.New("token0 must sort before token1")
	ErrNegativeLiquidity = errors.New("liquidity is negative")
	ErrTicksNotSorted    = errors.New("ticks must be sorted ascending and unique")
	ErrTickNotAligned    = errors.New("tick is not a multiple of the tick spacing")
	ErrTokenNotInPool    = errors.New("token is not in the pool")
	ErrMissingSqrtPrice  = errors.New("sqrt price is required")
	ErrMissingLiquidity  = errors.New("liquidity is required")
)

// PoolParams are the inputs to NewPool.
type PoolParams struct {
	Token0       tokenregistry.Token
	Token1       tokenregistry.Token
	Fee          FeeAmount
	SqrtRatioX96 *big.Int
	Liquidity    *big.Int
	TickCurrent  int64
	Ticks        []Tick
}

// Pool is an immutable snapshot of a pool's pricing state. It is safe for
// concurrent use; every accessor returns copies.
type Pool struct {
	token0       tokenregistry.Token
	token1       tokenregistry.Token
	fee          FeeAmount
	tickSpacing  int64
	sqrtRatioX96 *big.Int
	liquidity    *big.Int
	tickCurrent  int64
	ticks        []Tick

	token0Price core.Price
}

// NewPool validates params and builds a Pool. Tokens are not reordered: a
// caller passing them the wrong way round gets ErrTokensNotSorted.
// tickCurrent is trusted to match sqrtRatioX96.
func NewPool(params PoolParams) (*Pool, error) {
	before, err := params.Token0.SortsBefore(params.Token1)
	if err != nil {
		return nil, err
	}
	if !before {
		return nil, fmt.Errorf("%w: %s, %s", ErrTokensNotSorted, params.Token0.Address.Hex(), params.Token1.Address.Hex())
	}

	tickSpacing, err := params.Fee.TickSpacing()
	if err != nil {
		return nil, err
	}

	if params.SqrtRatioX96 == nil {
		return nil, ErrMissingSqrtPrice
	}
	if params.SqrtRatioX96.Cmp(tickmath.MIN_SQRT_RATIO) < 0 || params.SqrtRatioX96.Cmp(tickmath.MAX_SQRT_RATIO) > 0 {
		return nil, fmt.Errorf("%w: %s", tickmath.ErrSqrtPriceOutOfBounds, params.SqrtRatioX96)
	}

	if params.Liquidity == nil {
		return nil, ErrMissingLiquidity
	}
	if params.Liquidity.Sign() < 0 {
		return nil, fmt.Errorf("%w: %s", ErrNegativeLiquidity, params.Liquidity)
	}

	if params.TickCurrent < tickmath.MIN_TICK || params.TickCurrent > tickmath.MAX_TICK {
		return nil, fmt.Errorf("current tick: %w: %d", tickmath.ErrTickOutOfBounds, params.TickCurrent)
	}

	ticks, err := validateTicks(params.Ticks, tickSpacing)
	if err != nil {
		return nil, err
	}

	ratioX192 := new(big.Int).Mul(params.SqrtRatioX96, params.SqrtRatioX96)
	token0Price, err := core.NewPrice(params.Token0, params.Token1, sqrtpricemath.Q192, ratioX192)
	if err != nil {
		return nil, err
	}

	return &Pool{
		token0:       params.Token0,
		token1:       params.Token1,
		fee:          params.Fee,
		tickSpacing:  tickSpacing,
		sqrtRatioX96: new(big.Int).Set(params.SqrtRatioX96),
		liquidity:    new(big.Int).Set(params.Liquidity),
		tickCurrent:  params.TickCurrent,
		ticks:        ticks,
		token0Price:  token0Price,
	}, nil
}

// validateTicks deep-copies ticks and checks range, order, uniqueness and
// alignment to the spacing.
func validateTicks(ticks []Tick, tickSpacing int64) ([]Tick, error) {
	out := make([]Tick, len(ticks))
	for i, t := range ticks {
		checked, err := NewTick(t.Index, t.LiquidityGross, t.LiquidityNet)
		if err != nil {
			return nil, err
		}
		if checked.Index%tickSpacing != 0 {
			return nil, fmt.Errorf("%w: %d (spacing %d)", ErrTickNotAligned, checked.Index, tickSpacing)
		}
		if i > 0 && out[i-1].Index >= checked.Index {
			return nil, fmt.Errorf("%w: %d after %d", ErrTicksNotSorted, checked.Index, out[i-1].Index)
		}
		out[i] = checked
	}
	return out, nil
}

func (p *Pool) Token0() tokenregistry.Token { return p.token0 }
func (p *Pool) Token1() tokenregistry.Token { return p.token1 }
func (p *Pool) Fee() FeeAmount             { return p.fee }
func (p *Pool) TickSpacing() int64         { return p.tickSpacing }
func (p *Pool) TickCurrent() int64         { return p.tickCurrent }
func (p *Pool) ChainID() uint64            { return p.token0.ChainID }

func (p *Pool) SqrtRatioX96() *big.Int {
	return new(big.Int).Set(p.sqrtRatioX96)
}

func (p *Pool) Liquidity() *big.Int {
	return new(big.Int).Set(p.liquidity)
}

// InvolvesToken reports whether token is token0 or token1.
func (p *Pool) InvolvesToken(token tokenregistry.Token) bool {
	return token.Equals(p.token0) || token.Equals(p.token1)
}

// Token0Price is the price of token0 in token1.
func (p *Pool) Token0Price() core.Price {
	return p.token0Price
}

// Token1Price is the price of token1 in token0.
func (p *Pool) Token1Price() core.Price {
	return p.token0Price.Invert()
}

// PriceOf returns the price of token, denominated in the other pool token.
func (p *Pool) PriceOf(token tokenregistry.Token) (core.Price, error) {
	switch {
	case token.Equals(p.token0):
		return p.Token0Price(), nil
	case token.Equals(p.token1):
		return p.Token1Price(), nil
	default:
		return core.Price{}, fmt.Errorf("%w: %s", ErrTokenNotInPool, token)
	}
}

// Tick looks up an initialized tick by index.
func (p *Pool) Tick(index int64) (Tick, bool) {
	i := sort.Search(len(p.ticks), func(i int) bool { return p.ticks[i].Index >= index })
	if i < len(p.ticks) && p.ticks[i].Index == index {
		return p.ticks[i].Clone(), true
	}
	return Tick{}, false
}

// Ticks returns a deep copy of the initialized ticks, ascending by index.
func (p *Pool) Ticks() []Tick {
	out := make([]Tick, len(p.ticks))
	for i, t := range p.ticks {
		out[i] = t.Clone()
	}
	return out
}

// WithState returns a pool with the same tokens, fee and ticks but a new
// price, liquidity and current tick.
func (p *Pool) WithState(sqrtRatioX96, liquidity *big.Int, tickCurrent int64) (*Pool, error) {
	return NewPool(PoolParams{
		Token0:       p.token0,
		Token1:       p.token1,
		Fee:          p.fee,
		SqrtRatioX96: sqrtRatioX96,
		Liquidity:    liquidity,
		TickCurrent:  tickCurrent,
		Ticks:        p.ticks,
	})
}
