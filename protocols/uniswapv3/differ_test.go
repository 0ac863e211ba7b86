package uniswapv3

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDiffPool(t *testing.T, tick int64, liquidity int64, ticks []Tick) *Pool {
	t.Helper()
	params := validParams(t)
	params.SqrtRatioX96 = sqrtAtTick(t, tick)
	params.TickCurrent = tick
	params.Liquidity = big.NewInt(liquidity)
	params.Ticks = ticks
	pool, err := NewPool(params)
	require.NoError(t, err)
	return pool
}

func newTestTick(index, gross, net int64) Tick {
	return Tick{Index: index, LiquidityGross: big.NewInt(gross), LiquidityNet: big.NewInt(net)}
}

func TestDiff(t *testing.T) {
	base := []Tick{newTestTick(-120, 10, 10), newTestTick(-60, 5, 5), newTestTick(60, 5, -5), newTestTick(120, 10, -10)}

	t.Run("identical snapshots", func(t *testing.T) {
		d, err := Diff(newDiffPool(t, 0, 100, base), newDiffPool(t, 0, 100, base))
		require.NoError(t, err)
		assert.True(t, d.IsEmpty())
	})

	t.Run("state change only", func(t *testing.T) {
		d, err := Diff(newDiffPool(t, 0, 100, base), newDiffPool(t, 30, 150, base))
		require.NoError(t, err)
		require.False(t, d.IsEmpty())
		require.NotNil(t, d.TickCurrent)
		assert.Equal(t, int64(30), *d.TickCurrent)
		assert.Equal(t, 0, d.Liquidity.Cmp(big.NewInt(150)))
		assert.Equal(t, 0, d.SqrtRatioX96.Cmp(sqrtAtTick(t, 30)))
		assert.Empty(t, d.Additions)
		assert.Empty(t, d.Updates)
		assert.Empty(t, d.Deletions)
	})

	t.Run("tick additions, updates and deletions", func(t *testing.T) {
		next := []Tick{newTestTick(-180, 1, 1), newTestTick(-60, 7, 5), newTestTick(60, 5, -5), newTestTick(120, 10, -11), newTestTick(240, 1, -1)}
		d, err := Diff(newDiffPool(t, 0, 100, base), newDiffPool(t, 0, 100, next))
		require.NoError(t, err)

		assert.Nil(t, d.TickCurrent)
		assert.Nil(t, d.Liquidity)
		require.Len(t, d.Additions, 2)
		assert.Equal(t, int64(-180), d.Additions[0].Index)
		assert.Equal(t, int64(240), d.Additions[1].Index)
		require.Len(t, d.Updates, 2)
		assert.Equal(t, int64(-60), d.Updates[0].Index, "gross change counts as an update")
		assert.Equal(t, int64(120), d.Updates[1].Index)
		assert.Equal(t, []int64{-120}, d.Deletions)
	})

	t.Run("all ticks removed", func(t *testing.T) {
		d, err := Diff(newDiffPool(t, 0, 100, base), newDiffPool(t, 0, 100, nil))
		require.NoError(t, err)
		assert.Equal(t, []int64{-120, -60, 60, 120}, d.Deletions)
	})

	t.Run("diff does not alias the snapshot", func(t *testing.T) {
		next := newDiffPool(t, 0, 100, []Tick{newTestTick(0, 1, 1)})
		d, err := Diff(newDiffPool(t, 0, 100, nil), next)
		require.NoError(t, err)
		d.Additions[0].LiquidityNet.SetInt64(99)
		got, ok := next.Tick(0)
		require.True(t, ok)
		assert.Equal(t, int64(1), got.LiquidityNet.Int64())
	})

	t.Run("different pools", func(t *testing.T) {
		params := validParams(t)
		params.Fee = FeeHigh
		params.Ticks = nil
		other, err := NewPool(params)
		require.NoError(t, err)
		_, err = Diff(newDiffPool(t, 0, 100, nil), other)
		assert.ErrorIs(t, err, ErrDifferentPools)
	})
}
