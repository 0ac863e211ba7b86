package indexer

import (
	"github.com/defistate/defistate-pricing-go/protocols/tokenregistry"
	uniswapv3 "github.com/defistate/defistate-pricing-go/protocols/uniswapv3"
	"github.com/ethereum/go-ethereum/common"
)

// IndexedUniswapV3 provides a read-only view over a set of pool snapshots.
// Pools are immutable, so the returned pointers are shared, not copied.
type IndexedUniswapV3 interface {
	GetByAddress(address common.Address) (*uniswapv3.Pool, bool)
	GetByTokens(tokenA, tokenB tokenregistry.Token, fee uniswapv3.FeeAmount) (*uniswapv3.Pool, bool)
	PoolsForToken(token tokenregistry.Token) []*uniswapv3.Pool
	AddressOf(pool *uniswapv3.Pool) (common.Address, bool)
	All() []*uniswapv3.Pool
}
