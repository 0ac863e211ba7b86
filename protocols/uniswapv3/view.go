package uniswapv3

import (
	"math/big"

	"github.com/defistate/defistate-pricing-go/core"
	"github.com/defistate/defistate-pricing-go/protocols/tokenregistry"
)

// PoolView is a serialisable snapshot of a Pool.
type PoolView struct {
	Token0       tokenregistry.Token `json:"token0"`
	Token1       tokenregistry.Token `json:"token1"`
	Fee          FeeAmount           `json:"fee"`
	TickSpacing  int64               `json:"tickSpacing"`
	Tick         int64               `json:"tick"`
	Liquidity    *big.Int            `json:"liquidity"`
	SqrtPriceX96 *big.Int            `json:"sqrtPriceX96"`
	Token0Price  string              `json:"token0Price"`
	Token1Price  string              `json:"token1Price"`
	Ticks        []Tick              `json:"ticks"`
}

// View renders the pool, with both mid prices formatted to significantDigits.
func (p *Pool) View(significantDigits int) (PoolView, error) {
	token0Price, err := p.Token0Price().ToSignificant(significantDigits, core.RoundHalfUp)
	if err != nil {
		return PoolView{}, err
	}
	token1Price, err := p.Token1Price().ToSignificant(significantDigits, core.RoundHalfUp)
	if err != nil {
		return PoolView{}, err
	}
	return PoolView{
		Token0:       p.token0,
		Token1:       p.token1,
		Fee:          p.fee,
		TickSpacing:  p.tickSpacing,
		Tick:         p.tickCurrent,
		Liquidity:    p.Liquidity(),
		SqrtPriceX96: p.SqrtRatioX96(),
		Token0Price:  token0Price,
		Token1Price:  token1Price,
		Ticks:        p.Ticks(),
	}, nil
}
