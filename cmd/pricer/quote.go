package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/big"
	"text/tabwriter"

	"github.com/defistate/defistate-pricing-go/core"
	"github.com/defistate/defistate-pricing-go/protocols/tokenregistry"
	uniswapv3 "github.com/defistate/defistate-pricing-go/protocols/uniswapv3"
	"github.com/defistate/defistate-pricing-go/protocols/uniswapv3/calculator"
	"github.com/defistate/defistate-pricing-go/protocols/uniswapv3/calculator/tickmath"
	uniswapv3indexer "github.com/defistate/defistate-pricing-go/protocols/uniswapv3/indexer"
	"github.com/defistate/defistate-pricing-go/router"
	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
)

type quoteOptions struct {
	pool      string
	fee       uint64
	exactOut  bool
	limitTick int64
	maxHops   int
	block     int64
	digits    int
}

func (a *app) quoteCommand() *cobra.Command {
	var opts quoteOptions
	cmd := &cobra.Command{
		Use:   "quote <tokenIn> <tokenOut> <amount>",
		Short: "Simulate a swap through one pool, or route it across the configured pools",
		Long: "With --pool or --fee the swap is simulated against that single pool. " +
			"Otherwise every pool in the config is loaded and the best exact-input route is searched.",
		Example: "  pricer quote USDC WETH 1000 --fee 500\n  pricer quote WETH USDC 2 --exact-out --pool 0x88e6A0c2dDD26FEEb64F039a2c41296FcB3f5640",
		Args:    cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			tokenIn, tokenOut, err := a.resolvePair(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("pool") || flags.Changed("fee") {
				var limit *big.Int
				if flags.Changed("limit-tick") {
					limit = new(big.Int)
					if err := tickmath.GetSqrtRatioAtTick(limit, opts.limitTick); err != nil {
						return err
					}
				}
				return a.quoteSinglePool(ctx, tokenIn, tokenOut, args[2], limit, opts)
			}
			if opts.exactOut {
				return errors.New("--exact-out needs --pool or --fee")
			}
			return a.quoteRoute(ctx, tokenIn, tokenOut, args[2], opts)
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&opts.pool, "pool", "", "pool address")
	flags.Uint64Var(&opts.fee, "fee", 0, "fee tier of the tokenIn/tokenOut pool")
	flags.BoolVar(&opts.exactOut, "exact-out", false, "treat amount as the desired output")
	flags.Int64Var(&opts.limitTick, "limit-tick", 0, "stop the swap at the price of this tick")
	flags.IntVar(&opts.maxHops, "max-hops", router.DefaultMaxHops, "maximum hops when routing")
	flags.Int64Var(&opts.block, "block", 0, "block number to read at (default latest)")
	flags.IntVar(&opts.digits, "digits", defaultDigits, "significant digits")
	return cmd
}

func (a *app) quoteSinglePool(ctx context.Context, tokenIn, tokenOut tokenregistry.Token, value string, limit *big.Int, opts quoteOptions) error {
	var (
		address common.Address
		err     error
	)
	if opts.pool != "" {
		address, err = a.poolAddress(ctx, []string{opts.pool})
	} else {
		address, err = a.pairAddress(ctx, tokenIn.Address.Hex(), tokenOut.Address.Hex(), opts.fee)
	}
	if err != nil {
		return err
	}

	l, err := a.newLoader(ctx)
	if err != nil {
		return err
	}
	pool, err := l.Load(ctx, address, blockNumber(opts.block))
	if err != nil {
		return err
	}
	if !pool.InvolvesToken(tokenIn) || !pool.InvolvesToken(tokenOut) {
		return fmt.Errorf("%w: pool %s trades %s/%s", uniswapv3.ErrTokenNotInPool, address.Hex(), pool.Token0(), pool.Token1())
	}

	return a.quotePool(address, pool, tokenIn, tokenOut, value, limit, opts)
}

// quotePool simulates the swap against a loaded pool. When a price limit stops
// an exact-input swap early only the spent input is priced.
func (a *app) quotePool(address common.Address, pool *uniswapv3.Pool, tokenIn, tokenOut tokenregistry.Token, value string, limit *big.Int, opts quoteOptions) error {
	var (
		requested, input, output core.CurrencyAmount
		after                    *uniswapv3.Pool
		err                      error
	)
	if opts.exactOut {
		amount, ok := core.TryParseCurrencyAmount(value, tokenOut)
		if !ok {
			return fmt.Errorf("invalid amount %q", value)
		}
		output = amount
		input, after, err = calculator.GetInputAmount(pool, amount, limit)
		requested = input
	} else {
		amount, ok := core.TryParseCurrencyAmount(value, tokenIn)
		if !ok {
			return fmt.Errorf("invalid amount %q", value)
		}
		requested = amount
		input, output, after, err = calculator.QuoteExactInput(pool, amount, limit)
	}
	if err != nil {
		return err
	}

	mid, err := pool.PriceOf(tokenIn)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "pool\t%s (%s)\n", address.Hex(), pool.Fee())
	if err := printTrade(w, input, output, mid, opts.digits); err != nil {
		return err
	}
	if unspent, err := requested.Subtract(input); err == nil && !unspent.IsZero() {
		fmt.Fprintf(w, "unspent\t%s %s (price limit reached)\n", unspent.ToExact(), unspent.Currency())
	}
	fmt.Fprintf(w, "tick after\t%d (from %d)\n", after.TickCurrent(), pool.TickCurrent())
	return w.Flush()
}

func (a *app) quoteRoute(ctx context.Context, tokenIn, tokenOut tokenregistry.Token, value string, opts quoteOptions) error {
	if len(a.cfg.Pools) == 0 {
		return errors.New("routing needs pools in the config, or pass --pool or --fee")
	}
	amount, ok := core.TryParseCurrencyAmount(value, tokenIn)
	if !ok {
		return fmt.Errorf("invalid amount %q", value)
	}
	addresses := make([]common.Address, 0, len(a.cfg.Pools))
	for _, p := range a.cfg.Pools {
		if p.Address != "" {
			addresses = append(addresses, common.HexToAddress(p.Address))
			continue
		}
		address, err := a.pairAddress(ctx, p.TokenA, p.TokenB, p.Fee)
		if err != nil {
			return err
		}
		addresses = append(addresses, address)
	}

	l, err := a.newLoader(ctx)
	if err != nil {
		return err
	}
	pools, err := l.LoadAll(ctx, addresses, blockNumber(opts.block))
	if err != nil {
		return err
	}
	deployment, err := a.deployment()
	if err != nil {
		return err
	}
	index, err := uniswapv3indexer.New(deployment.Factory, deployment.InitCodeHash).Index(pools)
	if err != nil {
		return err
	}

	route, err := router.New(index).BestRoute(amount, tokenOut, opts.maxHops)
	if err != nil {
		return err
	}
	mid, err := midPrice(index, route)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "route\t%s\n", route)
	for i, hop := range route.Hops {
		fmt.Fprintf(w, "hop %d\t%s %s->%s (%s)\n", i+1, hop.Pool.Hex(), hop.TokenIn, hop.TokenOut, hop.Fee)
	}
	if err := printTrade(w, route.AmountIn, route.AmountOut, mid, opts.digits); err != nil {
		return err
	}
	return w.Flush()
}

// midPrice chains the current price of every hop's pool.
func midPrice(index uniswapv3indexer.IndexedUniswapV3, route router.Route) (core.Price, error) {
	var mid core.Price
	for i, hop := range route.Hops {
		pool, ok := index.GetByAddress(hop.Pool)
		if !ok {
			return core.Price{}, fmt.Errorf("pool %s is not indexed", hop.Pool.Hex())
		}
		price, err := pool.PriceOf(hop.TokenIn)
		if err != nil {
			return core.Price{}, err
		}
		if i == 0 {
			mid = price
			continue
		}
		if mid, err = mid.Multiply(price); err != nil {
			return core.Price{}, err
		}
	}
	return mid, nil
}

// priceImpact is 1 - execution/mid.
func priceImpact(mid, execution core.Price) (core.Percent, error) {
	ratio, err := execution.Raw().Divide(mid.Raw())
	if err != nil {
		return core.Percent{}, err
	}
	return core.PercentFromFraction(core.FractionFromInt(big.NewInt(1)).Subtract(ratio)), nil
}

func printTrade(w io.Writer, input, output core.CurrencyAmount, mid core.Price, digits int) error {
	execution, err := core.NewPriceFromAmounts(input, output)
	if err != nil {
		return err
	}
	executionStr, err := execution.ToSignificant(digits, core.RoundHalfUp)
	if err != nil {
		return err
	}
	midStr, err := mid.ToSignificant(digits, core.RoundHalfUp)
	if err != nil {
		return err
	}
	impact, err := priceImpact(mid, execution)
	if err != nil {
		return err
	}
	impactStr, err := impact.ToFixed(2, core.RoundHalfUp)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "amount in\t%s %s\n", input.ToExact(), input.Currency())
	fmt.Fprintf(w, "amount out\t%s %s\n", output.ToExact(), output.Currency())
	fmt.Fprintf(w, "execution price\t%s %s per %s\n", executionStr, output.Currency(), input.Currency())
	fmt.Fprintf(w, "mid price\t%s %s per %s\n", midStr, output.Currency(), input.Currency())
	fmt.Fprintf(w, "price impact\t%s%%\n", impactStr)
	return nil
}
