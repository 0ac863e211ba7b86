// Package tickbitmap answers "next initialized tick" queries over a sorted tick
// list with the same 256-tick word boundaries as the on-chain bitmap, so a
// simulated swap steps through the same price points as the contract.
package tickbitmap

import (
	"errors"
	"sort"

	uniswapv3 "github.com/defistate/defistate-pricing-go/protocols/uniswapv3"
)

var ErrInvalidTickSpacing = errors.New("tick spacing must be positive")

// compress returns floor(tick / tickSpacing).
func compress(tick, tickSpacing int64) int64 {
	c := tick / tickSpacing
	if tick < 0 && tick%tickSpacing != 0 {
		c--
	}
	return c
}

// NextInitializedTickWithinOneWord returns the next initialized tick within the
// bitmap word containing tick, or the word boundary when the word has none.
//
// With lte the search covers ticks <= tick; otherwise ticks > tick. The
// returned bool reports whether the result is an initialized tick.
func NextInitializedTickWithinOneWord(ticks []uniswapv3.Tick, tick int64, lte bool, tickSpacing int64) (int64, bool, error) {
	if tickSpacing <= 0 {
		return 0, false, ErrInvalidTickSpacing
	}
	compressed := compress(tick, tickSpacing)

	if lte {
		wordPos := compressed >> 8
		minimum := (wordPos << 8) * tickSpacing

		// Smallest index whose tick is > tick; the candidate sits just before it.
		i := sort.Search(len(ticks), func(i int) bool { return ticks[i].Index > tick })
		if i == 0 {
			return minimum, false, nil
		}
		index := ticks[i-1].Index
		if index < minimum {
			return minimum, false, nil
		}
		return index, true, nil
	}

	wordPos := (compressed + 1) >> 8
	maximum := (((wordPos + 1) << 8) - 1) * tickSpacing

	i := sort.Search(len(ticks), func(i int) bool { return ticks[i].Index > tick })
	if i == len(ticks) {
		return maximum, false, nil
	}
	index := ticks[i].Index
	if index > maximum {
		return maximum, false, nil
	}
	return index, true, nil
}
