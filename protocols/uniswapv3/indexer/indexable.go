package indexer

import (
	"fmt"

	"github.com/defistate/defistate-pricing-go/protocols/tokenregistry"
	uniswapv3 "github.com/defistate/defistate-pricing-go/protocols/uniswapv3"
	"github.com/ethereum/go-ethereum/common"
)

// Indexer builds IndexedUniswapV3 views for pools deployed by one factory.
type Indexer struct {
	factory      common.Address
	initCodeHash common.Hash
}

// New creates a new Indexer for the given factory and pool init code hash.
func New(factory common.Address, initCodeHash common.Hash) *Indexer {
	return &Indexer{factory: factory, initCodeHash: initCodeHash}
}

// Index derives each pool's address and creates an indexed view.
func (i *Indexer) Index(pools []*uniswapv3.Pool) (IndexedUniswapV3, error) {
	return NewIndexableUniswapV3System(i.factory, i.initCodeHash, pools)
}

type poolKey struct {
	token0 common.Address
	token1 common.Address
	fee    uniswapv3.FeeAmount
}

// IndexableUniswapV3System provides fast, indexed access to pool snapshots.
type IndexableUniswapV3System struct {
	byAddress map[common.Address]*uniswapv3.Pool
	byKey     map[poolKey]*uniswapv3.Pool
	addresses map[*uniswapv3.Pool]common.Address
	byToken   map[common.Address][]*uniswapv3.Pool
	all       []*uniswapv3.Pool
}

// NewIndexableUniswapV3System indexes pools by their CREATE2 address, by
// (token0, token1, fee) and by token. Two pools with the same key are
// rejected.
func NewIndexableUniswapV3System(factory common.Address, initCodeHash common.Hash, pools []*uniswapv3.Pool) (*IndexableUniswapV3System, error) {
	s := &IndexableUniswapV3System{
		byAddress: make(map[common.Address]*uniswapv3.Pool, len(pools)),
		byKey:     make(map[poolKey]*uniswapv3.Pool, len(pools)),
		addresses: make(map[*uniswapv3.Pool]common.Address, len(pools)),
		byToken:   make(map[common.Address][]*uniswapv3.Pool),
		all:       make([]*uniswapv3.Pool, 0, len(pools)),
	}

	for _, p := range pools {
		if p == nil {
			continue
		}
		address, err := uniswapv3.ComputePoolAddress(factory, initCodeHash, p.Token0(), p.Token1(), p.Fee())
		if err != nil {
			return nil, err
		}
		if _, exists := s.byAddress[address]; exists {
			return nil, fmt.Errorf("duplicate pool %s (%s/%s %s)", address.Hex(), p.Token0(), p.Token1(), p.Fee())
		}

		s.byAddress[address] = p
		s.byKey[poolKey{p.Token0().Address, p.Token1().Address, p.Fee()}] = p
		s.addresses[p] = address
		s.byToken[p.Token0().Address] = append(s.byToken[p.Token0().Address], p)
		s.byToken[p.Token1().Address] = append(s.byToken[p.Token1().Address], p)
		s.all = append(s.all, p)
	}
	return s, nil
}

// GetByAddress retrieves a pool by its contract address.
func (s *IndexableUniswapV3System) GetByAddress(address common.Address) (*uniswapv3.Pool, bool) {
	p, ok := s.byAddress[address]
	return p, ok
}

// GetByTokens retrieves the pool for a token pair and fee tier. The tokens may
// be given in either order.
func (s *IndexableUniswapV3System) GetByTokens(tokenA, tokenB tokenregistry.Token, fee uniswapv3.FeeAmount) (*uniswapv3.Pool, bool) {
	token0, token1, err := tokenregistry.Sort(tokenA, tokenB)
	if err != nil {
		return nil, false
	}
	p, ok := s.byKey[poolKey{token0.Address, token1.Address, fee}]
	return p, ok
}

// PoolsForToken returns every indexed pool that holds token.
func (s *IndexableUniswapV3System) PoolsForToken(token tokenregistry.Token) []*uniswapv3.Pool {
	pools := s.byToken[token.Address]
	out := make([]*uniswapv3.Pool, len(pools))
	copy(out, pools)
	return out
}

// AddressOf returns the derived address of an indexed pool.
func (s *IndexableUniswapV3System) AddressOf(pool *uniswapv3.Pool) (common.Address, bool) {
	address, ok := s.addresses[pool]
	return address, ok
}

// All returns a defensive copy of the slice of all pools.
func (s *IndexableUniswapV3System) All() []*uniswapv3.Pool {
	allCopy := make([]*uniswapv3.Pool, len(s.all))
	copy(allCopy, s.all)
	return allCopy
}
