package sqrtpricemath

import (
	"errors"
	"fmt"
	"math/big"
)

var (
	ErrZeroDenominator = errors.New("amount0 is zero")
	ErrNegativeAmount  = errors.New("amount is negative")
)

// EncodeSqrtRatioX96 returns floor(sqrt(amount1 / amount0) * 2^96), the Q64.96
// sqrt price of a pool holding the given reserves.
func EncodeSqrtRatioX96(amount1, amount0 *big.Int) (*big.Int, error) {
	if amount0.Sign() == 0 {
		return nil, ErrZeroDenominator
	}
	if amount1.Sign() < 0 || amount0.Sign() < 0 {
		return nil, fmt.Errorf("%w: %s/%s", ErrNegativeAmount, amount1, amount0)
	}
	ratioX192 := new(big.Int).Lsh(amount1, 2*Resolution)
	ratioX192.Quo(ratioX192, amount0)
	return ratioX192.Sqrt(ratioX192), nil
}
