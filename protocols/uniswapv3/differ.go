package uniswapv3

import (
	"errors"
	"math/big"
)

var ErrDifferentPools = errors.New("snapshots belong to different pools")

// PoolDiff describes how a pool changed between two snapshots. State fields
// are nil when unchanged.
type PoolDiff struct {
	SqrtRatioX96 *big.Int `json:"sqrtRatioX96,omitempty"`
	Liquidity    *big.Int `json:"liquidity,omitempty"`
	TickCurrent  *int64   `json:"tickCurrent,omitempty"`
	Additions    []Tick   `json:"additions,omitempty"`
	Updates      []Tick   `json:"updates,omitempty"`
	Deletions    []int64  `json:"deletions,omitempty"`
}

// IsEmpty returns true if the diff contains no changes.
func (d PoolDiff) IsEmpty() bool {
	return d.SqrtRatioX96 == nil && d.Liquidity == nil && d.TickCurrent == nil &&
		len(d.Additions) == 0 && len(d.Updates) == 0 && len(d.Deletions) == 0
}

func tickChanged(old, new Tick) bool {
	return old.LiquidityNet.Cmp(new.LiquidityNet) != 0 || old.LiquidityGross.Cmp(new.LiquidityGross) != 0
}

// Diff compares two snapshots of the same pool. Both tick lists are sorted,
// so they are merged in one pass.
func Diff(old, new *Pool) (PoolDiff, error) {
	if !old.token0.Equals(new.token0) || !old.token1.Equals(new.token1) || old.fee != new.fee {
		return PoolDiff{}, ErrDifferentPools
	}

	var d PoolDiff
	if old.sqrtRatioX96.Cmp(new.sqrtRatioX96) != 0 {
		d.SqrtRatioX96 = new.SqrtRatioX96()
	}
	if old.liquidity.Cmp(new.liquidity) != 0 {
		d.Liquidity = new.Liquidity()
	}
	if old.tickCurrent != new.tickCurrent {
		tick := new.tickCurrent
		d.TickCurrent = &tick
	}

	i, j := 0, 0
	for i < len(old.ticks) || j < len(new.ticks) {
		switch {
		case j == len(new.ticks) || (i < len(old.ticks) && old.ticks[i].Index < new.ticks[j].Index):
			d.Deletions = append(d.Deletions, old.ticks[i].Index)
			i++
		case i == len(old.ticks) || new.ticks[j].Index < old.ticks[i].Index:
			d.Additions = append(d.Additions, new.ticks[j].Clone())
			j++
		default:
			if tickChanged(old.ticks[i], new.ticks[j]) {
				d.Updates = append(d.Updates, new.ticks[j].Clone())
			}
			i++
			j++
		}
	}
	return d, nil
}
