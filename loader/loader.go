// Package loader assembles a uniswapv3.Pool from on-chain state and subgraph
// tick data.
package loader

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/defistate/defistate-pricing-go/chain"
	"github.com/defistate/defistate-pricing-go/chains"
	"github.com/defistate/defistate-pricing-go/protocols/tokenregistry"
	tokenindexer "github.com/defistate/defistate-pricing-go/protocols/tokenregistry/indexer"
	uniswapv3 "github.com/defistate/defistate-pricing-go/protocols/uniswapv3"
	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"
)

const defaultConcurrency = 4

var ErrUnknownPool = errors.New("pool address does not match the factory deployment")

// ChainReader is the subset of chain.Reader the loader uses.
type ChainReader interface {
	PoolImmutables(ctx context.Context, pool common.Address) (chain.PoolImmutables, error)
	Slot0(ctx context.Context, pool common.Address, block *big.Int) (chain.Slot0, error)
	Liquidity(ctx context.Context, pool common.Address, block *big.Int) (*big.Int, error)
	Token(ctx context.Context, chainID uint64, address common.Address) (tokenregistry.Token, error)
}

// TickSource returns every initialized tick of a pool.
type TickSource interface {
	FetchTicks(ctx context.Context, pool common.Address) ([]uniswapv3.Tick, error)
}

// Config holds the dependencies of a Loader.
type Config struct {
	ChainID uint64
	Chain   ChainReader
	// Ticks may be nil, in which case pools are loaded without ticks and
	// swaps are confined to the active range.
	Ticks TickSource
	// Tokens, when set, supplies metadata for known tokens without a call.
	Tokens tokenindexer.IndexedTokenSystem
	// Deployment, when set, makes Load reject pools not created by its factory.
	Deployment  *chains.Deployment
	Concurrency int
	Registry    prometheus.Registerer
	Logger      chains.Logger
}

func (c *Config) validate() error {
	if c.ChainID == 0 {
		return errors.New("chain ID cannot be zero")
	}
	if c.Chain == nil {
		return errors.New("chain reader cannot be nil")
	}
	if c.Registry == nil {
		return errors.New("prometheus registry cannot be nil")
	}
	if c.Logger == nil {
		return errors.New("logger cannot be nil")
	}
	if c.Deployment != nil && c.Deployment.ChainID != c.ChainID {
		return fmt.Errorf("deployment is for chain %d, not %d", c.Deployment.ChainID, c.ChainID)
	}
	if c.Concurrency < 0 {
		return errors.New("concurrency cannot be negative")
	}
	return nil
}

// Loader builds pools. It is safe for concurrent use.
type Loader struct {
	chainID     uint64
	chain       ChainReader
	ticks       TickSource
	tokens      tokenindexer.IndexedTokenSystem
	deployment  *chains.Deployment
	concurrency int
	metrics     *Metrics
	logger      chains.Logger
}

// New validates cfg and creates a Loader.
func New(cfg Config) (*Loader, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid loader config: %w", err)
	}
	metrics, err := NewMetrics(cfg.Registry)
	if err != nil {
		return nil, fmt.Errorf("failed to register loader metrics: %w", err)
	}
	concurrency := cfg.Concurrency
	if concurrency == 0 {
		concurrency = defaultConcurrency
	}
	return &Loader{
		chainID:     cfg.ChainID,
		chain:       cfg.Chain,
		ticks:       cfg.Ticks,
		tokens:      cfg.Tokens,
		deployment:  cfg.Deployment,
		concurrency: concurrency,
		metrics:     metrics,
		logger:      cfg.Logger,
	}, nil
}

// Load reads the pool at address as of block (nil for latest) and returns it.
// The immutables are read first; token metadata, slot0, liquidity and ticks
// are then fetched concurrently.
func (l *Loader) Load(ctx context.Context, address common.Address, block *big.Int) (*uniswapv3.Pool, error) {
	var immutables chain.PoolImmutables
	err := l.metrics.observe("immutables", func() (err error) {
		immutables, err = l.chain.PoolImmutables(ctx, address)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("pool %s: %w", address.Hex(), err)
	}

	var (
		token0, token1 tokenregistry.Token
		slot0          chain.Slot0
		liquidity      *big.Int
		ticks          []uniswapv3.Tick
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		token0, err = l.token(gctx, immutables.Token0)
		return err
	})
	g.Go(func() (err error) {
		token1, err = l.token(gctx, immutables.Token1)
		return err
	})
	g.Go(func() error {
		return l.metrics.observe("slot0", func() (err error) {
			slot0, err = l.chain.Slot0(gctx, address, block)
			return err
		})
	})
	g.Go(func() error {
		return l.metrics.observe("liquidity", func() (err error) {
			liquidity, err = l.chain.Liquidity(gctx, address, block)
			return err
		})
	})
	if l.ticks != nil {
		g.Go(func() error {
			return l.metrics.observe("ticks", func() (err error) {
				ticks, err = l.ticks.FetchTicks(gctx, address)
				return err
			})
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("pool %s: %w", address.Hex(), err)
	}

	if l.deployment != nil {
		expected, err := l.deployment.PoolAddress(token0, token1, immutables.Fee)
		if err != nil {
			return nil, fmt.Errorf("pool %s: %w", address.Hex(), err)
		}
		if expected != address {
			return nil, fmt.Errorf("%w: %s, expected %s", ErrUnknownPool, address.Hex(), expected.Hex())
		}
	}

	pool, err := uniswapv3.NewPool(uniswapv3.PoolParams{
		Token0:       token0,
		Token1:       token1,
		Fee:          immutables.Fee,
		SqrtRatioX96: slot0.SqrtPriceX96,
		Liquidity:    liquidity,
		TickCurrent:  slot0.Tick,
		Ticks:        ticks,
	})
	if err != nil {
		l.metrics.failures.WithLabelValues("build").Inc()
		return nil, fmt.Errorf("pool %s: %w", address.Hex(), err)
	}
	l.metrics.loads.Inc()
	l.logger.Debug("pool loaded",
		"pool", address.Hex(),
		"pair", token0.String()+"/"+token1.String(),
		"fee", immutables.Fee.String(),
		"tick", slot0.Tick,
		"ticks", len(ticks),
	)
	return pool, nil
}

// LoadAll loads every address at the same block. Results are in input order;
// the first failure cancels the remaining loads.
func (l *Loader) LoadAll(ctx context.Context, addresses []common.Address, block *big.Int) ([]*uniswapv3.Pool, error) {
	pools := make([]*uniswapv3.Pool, len(addresses))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.concurrency)
	for i, address := range addresses {
		i, address := i, address
		g.Go(func() (err error) {
			pools[i], err = l.Load(gctx, address, block)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return pools, nil
}

func (l *Loader) token(ctx context.Context, address common.Address) (tokenregistry.Token, error) {
	if l.tokens != nil {
		if tok, ok := l.tokens.GetByAddress(address); ok && tok.ChainID == l.chainID {
			return tok, nil
		}
	}
	var tok tokenregistry.Token
	err := l.metrics.observe("token", func() (err error) {
		tok, err = l.chain.Token(ctx, l.chainID, address)
		return err
	})
	return tok, err
}
