package core

import (
	"math/big"
	"testing"

	tokenregistry "github.com/defistate/defistate-pricing-go/protocols/tokenregistry"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	usdc = tokenregistry.Token{ChainID: 1, Address: common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"), Decimals: 6, Symbol: "USDC"}
	weth = tokenregistry.Token{ChainID: 1, Address: common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"), Decimals: 18, Symbol: "WETH"}
	dai  = tokenregistry.Token{ChainID: 1, Address: common.HexToAddress("0x6B175474E89094C44Da98b954EedeAC495271d0F"), Decimals: 18, Symbol: "DAI"}
)

func bigPow10(n int64) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(n), nil)
}

// 2000 USDC per WETH.
func wethUSDCPrice(t *testing.T) Price {
	t.Helper()
	p, err := NewPrice(weth, usdc, bigPow10(18), new(big.Int).Mul(big.NewInt(2000), bigPow10(6)))
	require.NoError(t, err)
	return p
}

func TestNewPrice(t *testing.T) {
	_, err := NewPrice(weth, usdc, big.NewInt(1), big.NewInt(0))
	assert.ErrorIs(t, err, ErrZeroPrice)

	_, err = NewPrice(weth, usdc, big.NewInt(0), big.NewInt(1))
	assert.ErrorIs(t, err, ErrZeroDenominator)

	for _, tc := range []struct {
		description            string
		denominator, numerator int64
	}{
		{"negative numerator", 2, -5},
		{"negative denominator", -2, 5},
	} {
		t.Run(tc.description, func(t *testing.T) {
			_, err := NewPrice(weth, usdc, big.NewInt(tc.denominator), big.NewInt(tc.numerator))
			assert.ErrorIs(t, err, ErrNegativePrice)
		})
	}

	t.Run("two negative terms are normalised", func(t *testing.T) {
		p, err := NewPrice(usdc, usdc, big.NewInt(-2), big.NewInt(-5))
		require.NoError(t, err)
		assert.Equal(t, "5", p.Raw().Numerator().String())
		assert.Equal(t, "2", p.Raw().Denominator().String())
		assert.Equal(t, "2/5", p.Invert().Raw().String())

		s, err := p.ToSignificant(4, RoundHalfUp)
		require.NoError(t, err)
		assert.Equal(t, "2.5", s)
	})
}

func TestZeroPriceInvert(t *testing.T) {
	var p Price
	inverted := p.Invert()
	assert.True(t, inverted.Raw().IsZero())

	s, err := inverted.ToSignificant(4, RoundHalfUp)
	require.NoError(t, err)
	assert.Equal(t, "0", s)
}

func TestPriceAdjusted(t *testing.T) {
	p := wethUSDCPrice(t)

	s, err := p.ToSignificant(4, RoundHalfUp)
	require.NoError(t, err)
	assert.Equal(t, "2000", s)

	s, err = p.ToFixed(2, RoundHalfUp, WithGroupSeparator(","))
	require.NoError(t, err)
	assert.Equal(t, "2,000.00", s)

	s, err = p.Invert().ToSignificant(4, RoundHalfUp)
	require.NoError(t, err)
	assert.Equal(t, "0.0005", s)

	assert.True(t, p.Invert().BaseCurrency().Equals(usdc))
	assert.True(t, p.Invert().QuoteCurrency().Equals(weth))
}

func TestPriceInvertRoundTrip(t *testing.T) {
	p := wethUSDCPrice(t)
	back := p.Invert().Invert()
	assert.True(t, back.EqualTo(p))
	assert.True(t, back.Adjusted().EqualTo(p.Adjusted()))
	assert.True(t, back.BaseCurrency().Equals(weth))
}

func TestPriceMultiply(t *testing.T) {
	wethUSDC := wethUSDCPrice(t)
	usdcDAI, err := NewPrice(usdc, dai, bigPow10(6), bigPow10(18))
	require.NoError(t, err)

	wethDAI, err := wethUSDC.Multiply(usdcDAI)
	require.NoError(t, err)
	assert.True(t, wethDAI.BaseCurrency().Equals(weth))
	assert.True(t, wethDAI.QuoteCurrency().Equals(dai))

	s, err := wethDAI.ToSignificant(6, RoundHalfUp)
	require.NoError(t, err)
	assert.Equal(t, "2000", s)

	_, err = wethUSDC.Multiply(wethUSDC)
	assert.ErrorIs(t, err, ErrCurrencyMismatch)
}

func TestPriceQuote(t *testing.T) {
	p := wethUSDCPrice(t)

	oneWeth, err := FromRawAmount(weth, bigPow10(18))
	require.NoError(t, err)
	out, err := p.Quote(oneWeth)
	require.NoError(t, err)
	assert.True(t, out.Currency().Equals(usdc))
	assert.Equal(t, "2000", out.ToExact())

	dust, err := FromRawAmount(weth, big.NewInt(1))
	require.NoError(t, err)
	out, err = p.Quote(dust)
	require.NoError(t, err)
	assert.True(t, out.IsZero(), "quote truncates to whole raw units")

	oneUSDC, err := FromRawAmount(usdc, bigPow10(6))
	require.NoError(t, err)
	_, err = p.Quote(oneUSDC)
	assert.ErrorIs(t, err, ErrCurrencyMismatch)
}

func TestNewPriceFromAmounts(t *testing.T) {
	base, err := FromRawAmountString(weth, "2000000000000000000")
	require.NoError(t, err)
	quote, err := FromRawAmountString(usdc, "5000000000")
	require.NoError(t, err)

	p, err := NewPriceFromAmounts(base, quote)
	require.NoError(t, err)
	s, err := p.ToSignificant(6, RoundHalfUp)
	require.NoError(t, err)
	assert.Equal(t, "2500", s)

	zero, err := FromRawAmount(weth, big.NewInt(0))
	require.NoError(t, err)
	_, err = NewPriceFromAmounts(zero, quote)
	assert.ErrorIs(t, err, ErrDivisionByZero)
}

func TestPriceCompare(t *testing.T) {
	low, err := NewPrice(weth, usdc, big.NewInt(1), big.NewInt(1))
	require.NoError(t, err)
	high, err := NewPrice(weth, usdc, big.NewInt(1), big.NewInt(2))
	require.NoError(t, err)
	assert.True(t, low.LessThan(high))
	assert.True(t, high.GreaterThan(low))
	assert.False(t, low.EqualTo(high))
}
