package swapmath

import (
	"crypto/rand"
	"math/big"
	"testing"

	"github.com/defistate/defistate-pricing-go/protocols/uniswapv3/calculator/sqrtpricemath"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randInt(t *testing.T, bits uint) *big.Int {
	t.Helper()
	n, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), bits))
	require.NoError(t, err)
	if n.Sign() == 0 {
		n.SetInt64(1)
	}
	return n
}

func encode(t *testing.T, amount1, amount0 int64) *big.Int {
	t.Helper()
	p, err := sqrtpricemath.EncodeSqrtRatioX96(big.NewInt(amount1), big.NewInt(amount0))
	require.NoError(t, err)
	return p
}

func fromString(s string) *big.Int {
	n, _ := new(big.Int).SetString(s, 10)
	return n
}

var e18 = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

func TestComputeSwapStep(t *testing.T) {
	price := encode(t, 1, 1)
	liquidity := new(big.Int).Mul(big.NewInt(2), e18)

	testCases := []struct {
		name      string
		target    *big.Int
		remaining *big.Int
		next      string
		amountIn  string
		amountOut string
		feeAmount string
	}{
		{
			name:      "exact in capped at price target",
			target:    encode(t, 101, 100),
			remaining: e18,
			next:      "79623317895830914510639640423",
			amountIn:  "9975124224178055",
			amountOut: "9925619580021728",
			feeAmount: "5988667735148",
		},
		{
			name:      "exact out capped at price target",
			target:    encode(t, 101, 100),
			remaining: new(big.Int).Neg(e18),
			next:      "79623317895830914510639640423",
			amountIn:  "9975124224178055",
			amountOut: "9925619580021728",
			feeAmount: "5988667735148",
		},
		{
			name:      "exact in fully spent",
			target:    encode(t, 1000, 100),
			remaining: e18,
			next:      "118818475322642227089037862318",
			amountIn:  "999400000000000000",
			amountOut: "666399946655997866",
			feeAmount: "600000000000000",
		},
		{
			name:      "exact out fully received",
			target:    encode(t, 10000, 100),
			remaining: new(big.Int).Neg(e18),
			next:      "158456325028528675187087900672",
			amountIn:  "2000000000000000000",
			amountOut: "1000000000000000000",
			feeAmount: "1200720432259356",
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			step, err := ComputeSwapStep(price, tc.target, liquidity, tc.remaining, 600)
			require.NoError(t, err)
			assert.Equal(t, tc.next, step.SqrtRatioNextX96.String())
			assert.Equal(t, tc.amountIn, step.AmountIn.String())
			assert.Equal(t, tc.amountOut, step.AmountOut.String())
			assert.Equal(t, tc.feeAmount, step.FeeAmount.String())
		})
	}

	t.Run("entire input taken as fee", func(t *testing.T) {
		step, err := ComputeSwapStep(
			big.NewInt(2413),
			fromString("79887613182836312"),
			fromString("1985041575832132834610021537970"),
			big.NewInt(10),
			1872,
		)
		require.NoError(t, err)
		assert.Equal(t, "0", step.AmountIn.String())
		assert.Equal(t, "10", step.FeeAmount.String())
		assert.Equal(t, "0", step.AmountOut.String())
		assert.Equal(t, "2413", step.SqrtRatioNextX96.String())
	})

	t.Run("rejects a fee of 100%", func(t *testing.T) {
		_, err := ComputeSwapStep(price, encode(t, 101, 100), liquidity, e18, FeeDenominator)
		assert.ErrorIs(t, err, ErrInvalidFee)
	})
}

func TestComputeSwapStep_Invariants(t *testing.T) {
	for i := 0; i < 1000; i++ {
		current := randInt(t, 160)
		target := randInt(t, 160)
		liquidity := randInt(t, 128)
		remaining := randInt(t, 128)
		exactIn := i%2 == 0
		if !exactIn {
			remaining.Neg(remaining)
		}
		feeBig, err := rand.Int(rand.Reader, big.NewInt(FeeDenominator))
		require.NoError(t, err)
		feePips := uint32(feeBig.Int64())

		step, err := ComputeSwapStep(current, target, liquidity, remaining, feePips)
		if err != nil {
			continue
		}

		if exactIn {
			spent := new(big.Int).Add(step.AmountIn, step.FeeAmount)
			assert.True(t, spent.Cmp(remaining) <= 0, "never spends more than the input")
		} else {
			assert.True(t, step.AmountOut.Cmp(new(big.Int).Neg(remaining)) <= 0, "never pays out more than requested")
		}

		if current.Cmp(target) == 0 {
			assert.Zero(t, step.SqrtRatioNextX96.Cmp(target))
		} else if current.Cmp(target) > 0 {
			assert.True(t, step.SqrtRatioNextX96.Cmp(target) >= 0, "does not overshoot the target")
			assert.True(t, step.SqrtRatioNextX96.Cmp(current) <= 0)
		} else {
			assert.True(t, step.SqrtRatioNextX96.Cmp(target) <= 0, "does not overshoot the target")
			assert.True(t, step.SqrtRatioNextX96.Cmp(current) >= 0)
		}
	}
}
