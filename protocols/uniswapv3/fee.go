package uniswapv3

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var ErrUnsupportedFee = errors.New("unsupported fee tier")

// FeeAmount is a pool fee in pips (hundredths of a basis point).
type FeeAmount uint32

const (
	FeeLowest FeeAmount = 100
	FeeLow    FeeAmount = 500
	FeeMedium FeeAmount = 3000
	FeeHigh   FeeAmount = 10000
)

// FeeAmounts lists the supported fee tiers in ascending order.
var FeeAmounts = []FeeAmount{FeeLowest, FeeLow, FeeMedium, FeeHigh}

// TickSpacing returns the tick spacing enabled for the fee tier.
func (f FeeAmount) TickSpacing() (int64, error) {
	switch f {
	case FeeLowest:
		return 1, nil
	case FeeLow:
		return 10, nil
	case FeeMedium:
		return 60, nil
	case FeeHigh:
		return 200, nil
	default:
		return 0, fmt.Errorf("%w: %d", ErrUnsupportedFee, uint32(f))
	}
}

// ParseFeeAmount validates a raw fee as read from a pool or a config file.
func ParseFeeAmount(fee uint64) (FeeAmount, error) {
	f := FeeAmount(fee)
	if uint64(f) != fee {
		return 0, fmt.Errorf("%w: %d", ErrUnsupportedFee, fee)
	}
	if _, err := f.TickSpacing(); err != nil {
		return 0, err
	}
	return f, nil
}

// String renders the fee as a percentage, e.g. "0.3%".
func (f FeeAmount) String() string {
	return decimal.New(int64(f), -4).String() + "%"
}
