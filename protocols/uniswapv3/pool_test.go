package uniswapv3

import (
	"math/big"
	"testing"

	"github.com/defistate/defistate-pricing-go/core"
	"github.com/defistate/defistate-pricing-go/protocols/tokenregistry"
	"github.com/defistate/defistate-pricing-go/protocols/uniswapv3/calculator/tickmath"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	usdc = tokenregistry.Token{ChainID: 1, Address: common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"), Decimals: 6, Symbol: "USDC"}
	weth = tokenregistry.Token{ChainID: 1, Address: common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"), Decimals: 18, Symbol: "WETH"}
	dai  = tokenregistry.Token{ChainID: 1, Address: common.HexToAddress("0x6B175474E89094C44Da98b954EedeAC495271d0F"), Decimals: 18, Symbol: "DAI"}
)

func sqrtAtTick(t *testing.T, tick int64) *big.Int {
	t.Helper()
	dest := new(big.Int)
	require.NoError(t, tickmath.GetSqrtRatioAtTick(dest, tick))
	return dest
}

func validParams(t *testing.T) PoolParams {
	return PoolParams{
		Token0:       usdc,
		Token1:       weth,
		Fee:          FeeMedium,
		SqrtRatioX96: sqrtAtTick(t, 0),
		Liquidity:    big.NewInt(1_000_000),
		TickCurrent:  0,
		Ticks: []Tick{
			{Index: -60, LiquidityGross: big.NewInt(1_000_000), LiquidityNet: big.NewInt(1_000_000)},
			{Index: 60, LiquidityGross: big.NewInt(1_000_000), LiquidityNet: big.NewInt(-1_000_000)},
		},
	}
}

func TestNewPool_Validation(t *testing.T) {
	testCases := []struct {
		name    string
		mutate  func(p *PoolParams)
		wantErr error
	}{
		{"tokens in the wrong order", func(p *PoolParams) { p.Token0, p.Token1 = p.Token1, p.Token0 }, ErrTokensNotSorted},
		{"same token twice", func(p *PoolParams) { p.Token1 = p.Token0 }, tokenregistry.ErrSameAddress},
		{"tokens on different chains", func(p *PoolParams) { p.Token1.ChainID = 10 }, tokenregistry.ErrChainMismatch},
		{"unsupported fee", func(p *PoolParams) { p.Fee = 2500 }, ErrUnsupportedFee},
		{"sqrt price below range", func(p *PoolParams) { p.SqrtRatioX96 = new(big.Int).Sub(tickmath.MIN_SQRT_RATIO, big.NewInt(1)) }, tickmath.ErrSqrtPriceOutOfBounds},
		{"sqrt price above range", func(p *PoolParams) { p.SqrtRatioX96 = new(big.Int).Add(tickmath.MAX_SQRT_RATIO, big.NewInt(1)) }, tickmath.ErrSqrtPriceOutOfBounds},
		{"missing sqrt price", func(p *PoolParams) { p.SqrtRatioX96 = nil }, ErrMissingSqrtPrice},
		{"negative liquidity", func(p *PoolParams) { p.Liquidity = big.NewInt(-1) }, ErrNegativeLiquidity},
		{"current tick out of range", func(p *PoolParams) { p.TickCurrent = tickmath.MAX_TICK + 1 }, tickmath.ErrTickOutOfBounds},
		{"unsorted ticks", func(p *PoolParams) { p.Ticks[0], p.Ticks[1] = p.Ticks[1], p.Ticks[0] }, ErrTicksNotSorted},
		{"duplicate ticks", func(p *PoolParams) { p.Ticks[1].Index = -60 }, ErrTicksNotSorted},
		{"tick not on spacing", func(p *PoolParams) { p.Ticks[1].Index = 61 }, ErrTickNotAligned},
		{"negative gross", func(p *PoolParams) { p.Ticks[0].LiquidityGross = big.NewInt(-1) }, ErrNegativeLiquidityGross},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			params := validParams(t)
			tc.mutate(&params)
			_, err := NewPool(params)
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}

	t.Run("valid", func(t *testing.T) {
		pool, err := NewPool(validParams(t))
		require.NoError(t, err)
		assert.Equal(t, int64(60), pool.TickSpacing())
		assert.Equal(t, uint64(1), pool.ChainID())
		assert.Equal(t, FeeMedium, pool.Fee())
	})

	t.Run("empty tick list is allowed", func(t *testing.T) {
		params := validParams(t)
		params.Ticks = nil
		pool, err := NewPool(params)
		require.NoError(t, err)
		assert.Empty(t, pool.Ticks())
	})
}

func TestPool_PriceOf(t *testing.T) {
	pool, err := NewPool(validParams(t))
	require.NoError(t, err)

	t.Run("decimals scale the price at tick zero", func(t *testing.T) {
		p, err := pool.PriceOf(usdc)
		require.NoError(t, err)
		s, err := p.ToSignificant(6, core.RoundHalfUp)
		require.NoError(t, err)
		assert.Equal(t, "0.000000000001", s)

		p, err = pool.PriceOf(weth)
		require.NoError(t, err)
		s, err = p.ToSignificant(6, core.RoundHalfUp)
		require.NoError(t, err)
		assert.Equal(t, "1000000000000", s)
	})

	t.Run("prices are inverses", func(t *testing.T) {
		product := pool.Token0Price().Raw().Multiply(pool.Token1Price().Raw())
		assert.True(t, product.EqualTo(core.FractionFromInt(big.NewInt(1))))
		assert.True(t, pool.Token0Price().BaseCurrency().Equals(usdc))
		assert.True(t, pool.Token1Price().BaseCurrency().Equals(weth))
	})

	t.Run("foreign token", func(t *testing.T) {
		_, err := pool.PriceOf(dai)
		assert.ErrorIs(t, err, ErrTokenNotInPool)
		assert.False(t, pool.InvolvesToken(dai))
		assert.True(t, pool.InvolvesToken(usdc))
	})

	t.Run("realistic price", func(t *testing.T) {
		params := validParams(t)
		params.SqrtRatioX96 = sqrtAtTick(t, 200000)
		params.TickCurrent = 200000
		pool, err := NewPool(params)
		require.NoError(t, err)

		s, err := pool.Token1Price().ToSignificant(6, core.RoundHalfUp)
		require.NoError(t, err)
		assert.Equal(t, "2063.22", s)

		s, err = pool.Token0Price().ToSignificant(6, core.RoundHalfUp)
		require.NoError(t, err)
		assert.Equal(t, "0.00048468", s)
	})
}

func TestPool_Immutability(t *testing.T) {
	params := validParams(t)
	pool, err := NewPool(params)
	require.NoError(t, err)

	params.Ticks[0].LiquidityNet.SetInt64(42)
	params.Liquidity.SetInt64(42)
	tick, ok := pool.Tick(-60)
	require.True(t, ok)
	assert.Equal(t, int64(1_000_000), tick.LiquidityNet.Int64(), "the pool must copy its input ticks")
	assert.Equal(t, int64(1_000_000), pool.Liquidity().Int64())

	ticks := pool.Ticks()
	ticks[0].LiquidityGross.SetInt64(7)
	pool.SqrtRatioX96().SetInt64(7)
	again, _ := pool.Tick(-60)
	assert.Equal(t, int64(1_000_000), again.LiquidityGross.Int64())
	assert.Zero(t, pool.SqrtRatioX96().Cmp(sqrtAtTick(t, 0)))

	_, ok = pool.Tick(0)
	assert.False(t, ok)
}

func TestPool_WithState(t *testing.T) {
	pool, err := NewPool(validParams(t))
	require.NoError(t, err)

	next, err := pool.WithState(sqrtAtTick(t, 30), big.NewInt(5), 30)
	require.NoError(t, err)
	assert.Equal(t, int64(30), next.TickCurrent())
	assert.Equal(t, int64(5), next.Liquidity().Int64())
	assert.Len(t, next.Ticks(), 2)
	assert.Equal(t, int64(0), pool.TickCurrent(), "the original pool is unchanged")
}

func TestPool_View(t *testing.T) {
	pool, err := NewPool(validParams(t))
	require.NoError(t, err)

	view, err := pool.View(6)
	require.NoError(t, err)
	assert.Equal(t, "0.000000000001", view.Token0Price)
	assert.Equal(t, "1000000000000", view.Token1Price)
	assert.Equal(t, int64(60), view.TickSpacing)
	assert.Len(t, view.Ticks, 2)

	_, err = pool.View(0)
	assert.ErrorIs(t, err, core.ErrInvalidSignificantDigits)
}
