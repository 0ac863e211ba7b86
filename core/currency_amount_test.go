package core

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromRawAmount(t *testing.T) {
	_, err := FromRawAmount(usdc, big.NewInt(-1))
	assert.ErrorIs(t, err, ErrNegativeAmount)

	_, err = FromRawAmount(usdc, new(big.Int).Add(MaxUint256, big.NewInt(1)))
	assert.ErrorIs(t, err, ErrAmountOverflow)

	maxAmount, err := FromRawAmount(usdc, MaxUint256)
	require.NoError(t, err)
	assert.Equal(t, 0, maxAmount.Quotient().Cmp(MaxUint256))

	_, err = FromRawAmountString(usdc, "1.5")
	assert.ErrorIs(t, err, ErrNotAnInteger)

	_, err = FromRawAmountString(usdc, "")
	assert.ErrorIs(t, err, ErrNotAnInteger)
}

func TestCurrencyAmountRendering(t *testing.T) {
	a, err := FromRawAmountString(usdc, "1500000")
	require.NoError(t, err)

	assert.Equal(t, "1.5", a.ToExact())

	s, err := a.ToFixed(2, RoundHalfUp)
	require.NoError(t, err)
	assert.Equal(t, "1.50", s)

	s, err = a.ToSignificant(1, RoundDown)
	require.NoError(t, err)
	assert.Equal(t, "1", s)

	_, err = a.ToFixed(7, RoundHalfUp)
	assert.ErrorIs(t, err, ErrInvalidDecimalPlaces)

	large, err := FromRawAmountString(weth, "1234567000000000000000000")
	require.NoError(t, err)
	s, err = large.ToFixed(0, RoundHalfUp, WithGroupSeparator(","))
	require.NoError(t, err)
	assert.Equal(t, "1,234,567", s)
}

func TestCurrencyAmountArithmetic(t *testing.T) {
	a, err := FromRawAmount(usdc, big.NewInt(300))
	require.NoError(t, err)
	b, err := FromRawAmount(usdc, big.NewInt(200))
	require.NoError(t, err)

	sum, err := a.Add(b)
	require.NoError(t, err)
	assert.Equal(t, int64(500), sum.Quotient().Int64())

	diff, err := a.Subtract(b)
	require.NoError(t, err)
	assert.Equal(t, int64(100), diff.Quotient().Int64())

	_, err = b.Subtract(a)
	assert.ErrorIs(t, err, ErrNegativeAmount)

	other, err := FromRawAmount(weth, big.NewInt(1))
	require.NoError(t, err)
	_, err = a.Add(other)
	assert.ErrorIs(t, err, ErrCurrencyMismatch)

	overflow, err := FromRawAmount(usdc, MaxUint256)
	require.NoError(t, err)
	_, err = overflow.Add(b)
	assert.ErrorIs(t, err, ErrAmountOverflow)
}

func TestTryParseCurrencyAmount(t *testing.T) {
	testCases := []struct {
		input string
		ok    bool
		raw   string
	}{
		{"1.5", true, "1500000"},
		{".5", true, "500000"},
		{"100", true, "100000000"},
		{"1.123456", true, "1123456"},
		{"1.1234560", true, "1123456"},
		{"1.1234567", false, ""},
		{"0", false, ""},
		{"0.000", false, ""},
		{"-1", false, ""},
		{"1e6", false, ""},
		{"1.", false, ""},
		{"abc", false, ""},
		{"", false, ""},
		{" 1", false, ""},
	}
	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			amount, ok := TryParseCurrencyAmount(tc.input, usdc)
			require.Equal(t, tc.ok, ok)
			if tc.ok {
				assert.Equal(t, tc.raw, amount.Quotient().String())
				assert.True(t, amount.Currency().Equals(usdc))
			}
		})
	}
}
