package main

import (
	"bytes"
	"math/big"
	"testing"

	"github.com/defistate/defistate-pricing-go/protocols/tokenregistry"
	uniswapv3 "github.com/defistate/defistate-pricing-go/protocols/uniswapv3"
	"github.com/defistate/defistate-pricing-go/protocols/uniswapv3/calculator/sqrtpricemath"
	"github.com/defistate/defistate-pricing-go/protocols/uniswapv3/calculator/tickmath"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	quoteUSDC = tokenregistry.Token{ChainID: 1, Address: common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"), Decimals: 6, Symbol: "USDC"}
	quoteWETH = tokenregistry.Token{ChainID: 1, Address: common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"), Decimals: 18, Symbol: "WETH"}
)

// singleRangePool has 1e18 liquidity at a raw price of 1 and no initialized ticks.
func singleRangePool(t *testing.T) *uniswapv3.Pool {
	t.Helper()
	pool, err := uniswapv3.NewPool(uniswapv3.PoolParams{
		Token0:       quoteUSDC,
		Token1:       quoteWETH,
		Fee:          uniswapv3.FeeLow,
		SqrtRatioX96: new(big.Int).Set(sqrtpricemath.Q96),
		Liquidity:    new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil),
		TickCurrent:  0,
	})
	require.NoError(t, err)
	return pool
}

func TestQuotePool(t *testing.T) {
	address := common.HexToAddress("0x88e6A0c2dDD26FEEb64F039a2c41296FcB3f5640")
	opts := quoteOptions{digits: defaultDigits}

	t.Run("limit prices only the spent input", func(t *testing.T) {
		var out bytes.Buffer
		a := &app{out: &out}
		limit := new(big.Int)
		require.NoError(t, tickmath.GetSqrtRatioAtTick(limit, -100))

		err := a.quotePool(address, singleRangePool(t), quoteUSDC, quoteWETH, "10000000000", limit, opts)
		require.NoError(t, err)

		got := lines(out.String())
		assert.Contains(t, got, []string{"amount", "in", "5014777011.556983", "USDC"})
		assert.Contains(t, got, []string{"amount", "out", "0.004987272070749096", "WETH"})
		assert.Contains(t, got, []string{"price", "impact", "0.55%"})
		assert.Contains(t, got, []string{"unspent", "4985222988.443017", "USDC", "(price", "limit", "reached)"})
		assert.Contains(t, got, []string{"tick", "after", "-100", "(from", "0)"})
	})

	t.Run("fully filled input has no unspent line", func(t *testing.T) {
		var out bytes.Buffer
		a := &app{out: &out}

		err := a.quotePool(address, singleRangePool(t), quoteUSDC, quoteWETH, "1000", nil, opts)
		require.NoError(t, err)

		got := lines(out.String())
		assert.Contains(t, got, []string{"amount", "in", "1000", "USDC"})
		assert.NotContains(t, out.String(), "unspent")
	})

	t.Run("exact output that cannot be filled fails", func(t *testing.T) {
		var out bytes.Buffer
		a := &app{out: &out}
		limit := new(big.Int)
		require.NoError(t, tickmath.GetSqrtRatioAtTick(limit, -100))

		err := a.quotePool(address, singleRangePool(t), quoteUSDC, quoteWETH, "1", limit, quoteOptions{exactOut: true, digits: defaultDigits})
		assert.Error(t, err)
		assert.Empty(t, out.String())
	})
}
