// Package pricing converts between human prices and pool ticks.
package pricing

import (
	"math/big"
	"regexp"

	"github.com/defistate/defistate-pricing-go/core"
	"github.com/defistate/defistate-pricing-go/protocols/tokenregistry"
	"github.com/defistate/defistate-pricing-go/protocols/uniswapv3"
	"github.com/defistate/defistate-pricing-go/protocols/uniswapv3/calculator/sqrtpricemath"
	"github.com/defistate/defistate-pricing-go/protocols/uniswapv3/calculator/tickmath"
	"github.com/shopspring/decimal"
)

// TickToPrice returns the price of base in quote at tick. The tick is always
// read in the pool's token1/token0 orientation, so the result is inverted when
// base is token1.
func TickToPrice(base, quote tokenregistry.Token, tick int64) (core.Price, error) {
	sqrtRatioX96 := new(big.Int)
	if err := tickmath.GetSqrtRatioAtTick(sqrtRatioX96, tick); err != nil {
		return core.Price{}, err
	}
	ratioX192 := new(big.Int).Mul(sqrtRatioX96, sqrtRatioX96)

	sorted, err := base.SortsBefore(quote)
	if err != nil {
		return core.Price{}, err
	}
	if sorted {
		return core.NewPrice(base, quote, sqrtpricemath.Q192, ratioX192)
	}
	return core.NewPrice(base, quote, ratioX192, sqrtpricemath.Q192)
}

// PriceToClosestTick returns the tick whose price is closest to price. Prices
// beyond the representable range snap to MIN_TICK or MAX_TICK.
func PriceToClosestTick(price core.Price) (int64, error) {
	base, quote := price.BaseCurrency(), price.QuoteCurrency()
	sorted, err := base.SortsBefore(quote)
	if err != nil {
		return 0, err
	}

	raw := price.Raw()
	var sqrtRatioX96 *big.Int
	if sorted {
		sqrtRatioX96, err = sqrtpricemath.EncodeSqrtRatioX96(raw.Numerator(), raw.Denominator())
	} else {
		sqrtRatioX96, err = sqrtpricemath.EncodeSqrtRatioX96(raw.Denominator(), raw.Numerator())
	}
	if err != nil {
		return 0, err
	}

	if sqrtRatioX96.Cmp(tickmath.MAX_SQRT_RATIO) >= 0 {
		return tickmath.MAX_TICK, nil
	}
	if sqrtRatioX96.Cmp(tickmath.MIN_SQRT_RATIO) <= 0 {
		return tickmath.MIN_TICK, nil
	}

	// GetTickAtSqrtRatio floors; the next tick up may be closer.
	tick, err := tickmath.GetTickAtSqrtRatio(sqrtRatioX96)
	if err != nil {
		return 0, err
	}
	lowPrice, err := TickToPrice(base, quote, tick)
	if err != nil {
		return 0, err
	}
	highPrice, err := TickToPrice(base, quote, tick+1)
	if err != nil {
		return 0, err
	}

	toLow := raw.Subtract(lowPrice.Raw()).Abs()
	toHigh := raw.Subtract(highPrice.Raw()).Abs()
	if toHigh.LessThan(toLow) {
		return tick + 1, nil
	}
	return tick, nil
}

var priceInput = regexp.MustCompile(`^\d*\.?\d+$`)

// TryParsePrice reads a human decimal price of base in quote, e.g. "1800.5".
// It reports false for anything that is not a positive plain decimal.
func TryParsePrice(base, quote tokenregistry.Token, value string) (core.Price, bool) {
	if !priceInput.MatchString(value) {
		return core.Price{}, false
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return core.Price{}, false
	}

	// value = coefficient * 10^exponent; scale both sides to raw units.
	numerator := new(big.Int).Mul(d.Coefficient(), pow10(int64(quote.Decimals)))
	denominator := pow10(int64(base.Decimals))
	if exp := int64(d.Exponent()); exp < 0 {
		denominator.Mul(denominator, pow10(-exp))
	} else {
		numerator.Mul(numerator, pow10(exp))
	}

	price, err := core.NewPrice(base, quote, denominator, numerator)
	if err != nil {
		return core.Price{}, false
	}
	return price, true
}

// TryParseTick parses a price and snaps it to the closest tick usable by the
// fee tier.
func TryParseTick(base, quote tokenregistry.Token, fee uniswapv3.FeeAmount, value string) (int64, bool) {
	price, ok := TryParsePrice(base, quote, value)
	if !ok {
		return 0, false
	}
	spacing, err := fee.TickSpacing()
	if err != nil {
		return 0, false
	}
	tick, err := PriceToClosestTick(price)
	if err != nil {
		return 0, false
	}
	usable, err := tickmath.NearestUsableTick(tick, spacing)
	if err != nil {
		return 0, false
	}
	return usable, true
}

func pow10(n int64) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(n), nil)
}
