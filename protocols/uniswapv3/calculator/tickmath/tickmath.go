// Package tickmath converts between ticks and Q64.96 square-root prices,
// reproducing the integer results of the on-chain TickMath library.
package tickmath

import (
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/defistate/defistate-pricing-go/protocols/uniswapv3/calculator/bitmath"
	"github.com/holiman/uint256"
)

var (
	// MIN_TICK is the smallest tick whose price is representable.
	MIN_TICK = int64(-887272)
	// MAX_TICK is the largest tick whose price is representable.
	MAX_TICK = int64(887272)

	// MIN_SQRT_RATIO is GetSqrtRatioAtTick(MIN_TICK).
	MIN_SQRT_RATIO, _ = new(big.Int).SetString("4295128739", 10)
	// MAX_SQRT_RATIO is GetSqrtRatioAtTick(MAX_TICK).
	MAX_SQRT_RATIO, _ = new(big.Int).SetString("1461446703485210103287273052203988822378723970342", 10)

	ErrTickOutOfBounds      = errors.New("tick out of bounds")
	ErrSqrtPriceOutOfBounds = errors.New("sqrt price out of bounds")
	ErrInvalidTickSpacing   = errors.New("tick spacing must be positive")
)

var (
	maxUint256 = new(uint256.Int).SetAllOne()
	q128       = new(uint256.Int).Lsh(uint256.NewInt(1), 128)
	low32Mask  = uint256.NewInt(0xffffffff)

	// oddTickFactor is 1/sqrt(1.0001) in Q128.128.
	oddTickFactor = uint256.MustFromHex("0xfffcb933bd6fad37aa2d162d1a594001")

	// powerFactors[i] is 1/sqrt(1.0001^(2^(i+1))) in Q128.128.
	powerFactors = [...]*uint256.Int{
		uint256.MustFromHex("0xfff97272373d413259a46990580e213a"),
		uint256.MustFromHex("0xfff2e50f5f656932ef12357cf3c7fdcc"),
		uint256.MustFromHex("0xffe5caca7e10e4e61c3624eaa0941cd0"),
		uint256.MustFromHex("0xffcb9843d60f6159c9db58835c926644"),
		uint256.MustFromHex("0xff973b41fa98c081472e6896dfb254c0"),
		uint256.MustFromHex("0xff2ea16466c96a3843ec78b326b52861"),
		uint256.MustFromHex("0xfe5dee046a99a2a811c461f1969c3053"),
		uint256.MustFromHex("0xfcbe86c7900a88aedcffc83b479aa3a4"),
		uint256.MustFromHex("0xf987a7253ac413176f2b074cf7815e54"),
		uint256.MustFromHex("0xf3392b0822b70005940c7a398e4b70f3"),
		uint256.MustFromHex("0xe7159475a2c29b7443b29c7fa6e889d9"),
		uint256.MustFromHex("0xd097f3bdfd2022b8845ad8f792aa5825"),
		uint256.MustFromHex("0xa9f746462d870fdf8a65dc1f90e061e5"),
		uint256.MustFromHex("0x70d869a156d2a1b890bb3df62baf32f7"),
		uint256.MustFromHex("0x31be135f97d08fd981231505542fcfa6"),
		uint256.MustFromHex("0x9aa508b5b7a84e1c677de54f3e99bc9"),
		uint256.MustFromHex("0x5d6af8dedb81196699c329225ee604"),
		uint256.MustFromHex("0x2216e584f5fa1ea926041bedfe98"),
		uint256.MustFromHex("0x48a170391f7dc42444e8fa2"),
	}

	// log base sqrt(1.0001) of 2, in Q64.64 units of the log2 accumulator.
	logSqrt10001Multiplier, _ = new(big.Int).SetString("255738958999603826347141", 10)
	// Error bounds of the log approximation, in Q128.128.
	tickLowOffset, _ = new(big.Int).SetString("3402992956809132418596140100660247210", 10)
	tickHiOffset, _  = new(big.Int).SetString("291339464771989622907027621153398088495", 10)
)

// scratch holds reusable integers so conversions do not allocate per call.
type scratch struct {
	ratio  *uint256.Int
	rem    *uint256.Int
	r      *big.Int
	log2   *big.Int
	bit    *big.Int
	sqrtHi *big.Int
}

var pool = sync.Pool{
	New: func() any {
		return &scratch{
			ratio:  new(uint256.Int),
			rem:    new(uint256.Int),
			r:      new(big.Int),
			log2:   new(big.Int),
			bit:    new(big.Int),
			sqrtHi: new(big.Int),
		}
	},
}

// GetSqrtRatioAtTick writes sqrt(1.0001^tick) * 2^96 into dest, rounded up.
func GetSqrtRatioAtTick(dest *big.Int, tick int64) error {
	if tick < MIN_TICK || tick > MAX_TICK {
		return fmt.Errorf("%w: %d", ErrTickOutOfBounds, tick)
	}

	s := pool.Get().(*scratch)
	defer pool.Put(s)

	absTick := uint64(tick)
	if tick < 0 {
		absTick = uint64(-tick)
	}

	if absTick&1 != 0 {
		s.ratio.Set(oddTickFactor)
	} else {
		s.ratio.Set(q128)
	}
	for i, factor := range powerFactors {
		if absTick&(2<<i) != 0 {
			s.ratio.Mul(s.ratio, factor)
			s.ratio.Rsh(s.ratio, 128)
		}
	}

	// The factors describe negative ticks; positive ticks take the reciprocal.
	if tick > 0 {
		s.ratio.Div(maxUint256, s.ratio)
	}

	// Q128.128 to Q64.96, rounding up.
	s.rem.And(s.ratio, low32Mask)
	s.ratio.Rsh(s.ratio, 32)
	if !s.rem.IsZero() {
		s.ratio.AddUint64(s.ratio, 1)
	}

	s.ratio.IntoBig(&dest)
	return nil
}

// GetTickAtSqrtRatio returns the greatest tick whose sqrt ratio is <= sqrtPriceX96.
// The input must lie in [MIN_SQRT_RATIO, MAX_SQRT_RATIO]; MAX_SQRT_RATIO maps
// to MAX_TICK.
func GetTickAtSqrtRatio(sqrtPriceX96 *big.Int) (int64, error) {
	if sqrtPriceX96 == nil || sqrtPriceX96.Cmp(MIN_SQRT_RATIO) < 0 || sqrtPriceX96.Cmp(MAX_SQRT_RATIO) > 0 {
		return 0, ErrSqrtPriceOutOfBounds
	}
	if sqrtPriceX96.Cmp(MAX_SQRT_RATIO) == 0 {
		return MAX_TICK, nil
	}

	s := pool.Get().(*scratch)
	defer pool.Put(s)

	// ratio is the price in Q128.128.
	ratio := s.r.Lsh(sqrtPriceX96, 32)
	msb, err := bitmath.MostSignificantBit(ratio)
	if err != nil {
		return 0, err
	}

	// Normalise ratio so its top bit is bit 127.
	r := ratio
	if msb >= 128 {
		r.Rsh(r, uint(msb-127))
	} else {
		r.Lsh(r, uint(127-msb))
	}

	// Integer part of log2, as a signed Q64.64.
	log2 := s.log2.SetInt64(int64(msb) - 128)
	log2.Lsh(log2, 64)

	// Fractional bits by repeated squaring.
	for i := 0; i < 14; i++ {
		r.Mul(r, r)
		r.Rsh(r, 127)
		f := r.Bit(128)
		if f == 1 {
			s.bit.SetInt64(1)
			log2.Or(log2, s.bit.Lsh(s.bit, uint(63-i)))
			r.Rsh(r, 1)
		}
	}

	logSqrt10001 := new(big.Int).Mul(log2, logSqrt10001Multiplier)

	tickLow := new(big.Int).Sub(logSqrt10001, tickLowOffset)
	tickLow.Rsh(tickLow, 128)
	tickHi := new(big.Int).Add(logSqrt10001, tickHiOffset)
	tickHi.Rsh(tickHi, 128)

	if tickLow.Cmp(tickHi) == 0 {
		return tickLow.Int64(), nil
	}
	if err := GetSqrtRatioAtTick(s.sqrtHi, tickHi.Int64()); err != nil {
		return 0, err
	}
	if s.sqrtHi.Cmp(sqrtPriceX96) <= 0 {
		return tickHi.Int64(), nil
	}
	return tickLow.Int64(), nil
}

// NearestUsableTick rounds tick to the nearest multiple of tickSpacing, ties
// away from zero. A result that would fall outside [MIN_TICK, MAX_TICK] is
// moved one spacing back inside.
func NearestUsableTick(tick, tickSpacing int64) (int64, error) {
	if tickSpacing <= 0 {
		return 0, fmt.Errorf("%w: %d", ErrInvalidTickSpacing, tickSpacing)
	}
	if tick < MIN_TICK || tick > MAX_TICK {
		return 0, fmt.Errorf("%w: %d", ErrTickOutOfBounds, tick)
	}

	q, rem := tick/tickSpacing, tick%tickSpacing
	if rem < 0 {
		rem = -rem
	}
	if 2*rem >= tickSpacing {
		if tick < 0 {
			q--
		} else {
			q++
		}
	}

	rounded := q * tickSpacing
	if rounded < MIN_TICK {
		return rounded + tickSpacing, nil
	}
	if rounded > MAX_TICK {
		return rounded - tickSpacing, nil
	}
	return rounded, nil
}
