package main

import (
	"context"
	"fmt"
	"io"
	"math/big"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/defistate/defistate-pricing-go/chain"
	"github.com/defistate/defistate-pricing-go/chains"
	"github.com/defistate/defistate-pricing-go/core"
	"github.com/defistate/defistate-pricing-go/loader"
	uniswapv3 "github.com/defistate/defistate-pricing-go/protocols/uniswapv3"
	"github.com/defistate/defistate-pricing-go/protocols/uniswapv3/calculator"
	"github.com/defistate/defistate-pricing-go/streams/heads"
	"github.com/defistate/defistate-pricing-go/subgraph"
	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
)

const headBufferSize = 16

func (a *app) chainReader(ctx context.Context) (*chain.Reader, error) {
	if a.reader != nil {
		return a.reader, nil
	}
	if a.cfg.RPCURL == "" {
		return nil, errNeedsRPC
	}
	reader, err := chain.Dial(ctx, a.cfg.RPCURL, a.logger.With("component", "chain-reader"))
	if err != nil {
		return nil, err
	}
	a.reader = reader
	return reader, nil
}

func (a *app) deployment() (chains.Deployment, error) {
	return chains.DeploymentFor(a.cfg.ChainID)
}

func (a *app) newLoader(ctx context.Context) (*loader.Loader, error) {
	reader, err := a.chainReader(ctx)
	if err != nil {
		return nil, err
	}
	cfg := loader.Config{
		ChainID:  a.cfg.ChainID,
		Chain:    reader,
		Tokens:   a.tokens,
		Registry: a.registry,
		Logger:   a.logger.With("component", "loader"),
	}
	if deployment, err := a.deployment(); err == nil {
		cfg.Deployment = &deployment
	}
	if a.cfg.SubgraphURL != "" {
		ticks, err := subgraph.NewClient(subgraph.Config{
			URL:    a.cfg.SubgraphURL,
			Logger: a.logger.With("component", "subgraph"),
		})
		if err != nil {
			return nil, err
		}
		cfg.Ticks = ticks
	} else {
		a.logger.Warn("no subgraph-url configured, pools are loaded without ticks")
	}
	return loader.New(cfg)
}

// poolAddress accepts either a pool address or a token pair and fee tier.
func (a *app) poolAddress(ctx context.Context, args []string) (common.Address, error) {
	switch len(args) {
	case 1:
		if !common.IsHexAddress(args[0]) {
			return common.Address{}, fmt.Errorf("invalid pool address %q", args[0])
		}
		return common.HexToAddress(args[0]), nil
	case 3:
		fee, err := strconv.ParseUint(args[2], 10, 32)
		if err != nil {
			return common.Address{}, fmt.Errorf("invalid fee %q: %w", args[2], err)
		}
		return a.pairAddress(ctx, args[0], args[1], fee)
	default:
		return common.Address{}, fmt.Errorf("expected <address> or <tokenA> <tokenB> <fee>, got %d arguments", len(args))
	}
}

func (a *app) pairAddress(ctx context.Context, refA, refB string, fee uint64) (common.Address, error) {
	feeAmount, err := uniswapv3.ParseFeeAmount(fee)
	if err != nil {
		return common.Address{}, err
	}
	tokenA, tokenB, err := a.resolvePair(ctx, refA, refB)
	if err != nil {
		return common.Address{}, err
	}
	deployment, err := a.deployment()
	if err != nil {
		return common.Address{}, err
	}
	return deployment.PoolAddress(tokenA, tokenB, feeAmount)
}

func blockNumber(block int64) *big.Int {
	if block <= 0 {
		return nil
	}
	return big.NewInt(block)
}

func (a *app) poolCommand() *cobra.Command {
	var (
		block  int64
		watch  time.Duration
		follow bool
		digits int
	)
	cmd := &cobra.Command{
		Use:   "pool <address> | pool <tokenA> <tokenB> <fee>",
		Short: "Load a pool and print its state",
		Args:  cobra.RangeArgs(1, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			address, err := a.poolAddress(ctx, args)
			if err != nil {
				return err
			}
			l, err := a.newLoader(ctx)
			if err != nil {
				return err
			}
			pool, err := l.Load(ctx, address, blockNumber(block))
			if err != nil {
				return err
			}
			if err := printPool(a.out, address, pool, digits); err != nil {
				return err
			}
			if watch <= 0 && !follow {
				return nil
			}
			return a.watchPool(ctx, l, address, pool, watch, follow, digits)
		},
	}
	cmd.Flags().Int64Var(&block, "block", 0, "block number to read at (default latest)")
	cmd.Flags().DurationVar(&watch, "watch", 0, "reload the pool at this interval until interrupted")
	cmd.Flags().BoolVar(&follow, "follow", false, "reload the pool on every new block (needs a ws:// or wss:// rpc-url)")
	cmd.Flags().IntVar(&digits, "digits", defaultDigits, "significant digits")
	cmd.MarkFlagsMutuallyExclusive("watch", "follow")
	return cmd
}

// watchPool reloads the pool on every tick of interval, or on every new block
// header when follow is set, and prints a line whenever its state changes.
func (a *app) watchPool(ctx context.Context, l *loader.Loader, address common.Address, last *uniswapv3.Pool, interval time.Duration, follow bool, digits int) error {
	logger := a.logger.With("component", "watch", "pool", address.Hex())

	var (
		ticks      <-chan time.Time
		blocks     <-chan heads.Head
		headErrors <-chan error
	)
	if follow {
		client, err := heads.NewClient(ctx, heads.Config{
			URL:        a.cfg.RPCURL,
			Logger:     a.logger.With("component", "heads"),
			BufferSize: headBufferSize,
		})
		if err != nil {
			return err
		}
		blocks = client.Heads()
		headErrors = client.Err()
	} else {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		ticks = ticker.C
	}

	for {
		var block *big.Int
		select {
		case <-ctx.Done():
			return nil
		case <-ticks:
		case head := <-blocks:
			block = head.Number
		case err, ok := <-headErrors:
			if !ok {
				return nil
			}
			logger.Warn("head subscription interrupted", "error", err)
			continue
		}

		pool, err := l.Load(ctx, address, block)
		if err != nil {
			logger.Error("reload failed", "block", block, "error", err)
			continue
		}
		diff, err := uniswapv3.Diff(last, pool)
		if err != nil {
			return err
		}
		last = pool
		if diff.IsEmpty() {
			logger.Debug("pool unchanged", "block", block)
			continue
		}
		price, err := pool.Token0Price().ToSignificant(digits, core.RoundHalfUp)
		if err != nil {
			return err
		}
		at := time.Now().UTC().Format(time.RFC3339)
		if block != nil {
			at = "block " + block.String()
		}
		fmt.Fprintf(a.out, "%s\ttick=%d\tprice=%s %s/%s\tliquidity=%s\tticks=+%d ~%d -%d\n",
			at, pool.TickCurrent(), price,
			pool.Token1(), pool.Token0(), pool.Liquidity(),
			len(diff.Additions), len(diff.Updates), len(diff.Deletions))
	}
}

func printPool(out io.Writer, address common.Address, pool *uniswapv3.Pool, digits int) error {
	price0, err := pool.Token0Price().ToSignificant(digits, core.RoundHalfUp)
	if err != nil {
		return err
	}
	price1, err := pool.Token1Price().ToSignificant(digits, core.RoundHalfUp)
	if err != nil {
		return err
	}
	reserve0, reserve1, err := calculator.GetVirtualReserves(pool, pool.Token0())
	if err != nil {
		return err
	}
	amount0, err := core.FromRawAmount(pool.Token0(), reserve0)
	if err != nil {
		return err
	}
	amount1, err := core.FromRawAmount(pool.Token1(), reserve1)
	if err != nil {
		return err
	}
	virtual0, err := amount0.ToSignificant(digits, core.RoundDown, core.WithGroupSeparator(","))
	if err != nil {
		return err
	}
	virtual1, err := amount1.ToSignificant(digits, core.RoundDown, core.WithGroupSeparator(","))
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "address\t%s\n", address.Hex())
	fmt.Fprintf(w, "pair\t%s/%s\n", pool.Token0(), pool.Token1())
	fmt.Fprintf(w, "fee\t%s (spacing %d)\n", pool.Fee(), pool.TickSpacing())
	fmt.Fprintf(w, "tick\t%d\n", pool.TickCurrent())
	fmt.Fprintf(w, "sqrtPriceX96\t%s\n", pool.SqrtRatioX96())
	fmt.Fprintf(w, "liquidity\t%s\n", pool.Liquidity())
	fmt.Fprintf(w, "initialized ticks\t%d\n", len(pool.Ticks()))
	fmt.Fprintf(w, "price\t1 %s = %s %s\n", pool.Token0(), price0, pool.Token1())
	fmt.Fprintf(w, "\t1 %s = %s %s\n", pool.Token1(), price1, pool.Token0())
	fmt.Fprintf(w, "virtual reserves\t%s %s, %s %s\n", virtual0, pool.Token0(), virtual1, pool.Token1())
	return w.Flush()
}
