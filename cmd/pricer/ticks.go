package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/defistate/defistate-pricing-go/core"
	"github.com/defistate/defistate-pricing-go/protocols/tokenregistry"
	uniswapv3 "github.com/defistate/defistate-pricing-go/protocols/uniswapv3"
	"github.com/defistate/defistate-pricing-go/protocols/uniswapv3/calculator/tickmath"
	"github.com/defistate/defistate-pricing-go/protocols/uniswapv3/pricing"
	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
)

const defaultDigits = 6

var errNeedsRPC = errors.New("rpc-url is required for this command")

func (a *app) tickToPriceCommand() *cobra.Command {
	var digits int
	cmd := &cobra.Command{
		Use:     "tick-to-price <base> <quote> <tick>",
		Short:   "Print the price of base in quote at a tick",
		Example: "  pricer tick-to-price WETH USDC -- -201365",
		Args:    cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			base, quote, err := a.resolvePair(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			tick, err := strconv.ParseInt(args[2], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid tick %q: %w", args[2], err)
			}
			price, err := pricing.TickToPrice(base, quote, tick)
			if err != nil {
				return err
			}
			return a.printPrices(price, digits)
		},
	}
	cmd.Flags().IntVar(&digits, "digits", defaultDigits, "significant digits")
	return cmd
}

func (a *app) priceToTickCommand() *cobra.Command {
	var (
		fee    uint64
		digits int
	)
	cmd := &cobra.Command{
		Use:     "price-to-tick <base> <quote> <price>",
		Short:   "Find the tick closest to a human-readable price",
		Example: "  pricer price-to-tick WETH USDC 1800 --fee 500",
		Args:    cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			base, quote, err := a.resolvePair(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			price, ok := pricing.TryParsePrice(base, quote, args[2])
			if !ok {
				return fmt.Errorf("invalid price %q", args[2])
			}
			tick, err := pricing.PriceToClosestTick(price)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "tick\t%d\n", tick)
			if cmd.Flags().Changed("fee") {
				feeAmount, err := uniswapv3.ParseFeeAmount(fee)
				if err != nil {
					return err
				}
				usable, ok := pricing.TryParseTick(base, quote, feeAmount, args[2])
				if !ok {
					return fmt.Errorf("no usable tick for %q", args[2])
				}
				spacing, _ := feeAmount.TickSpacing()
				at, err := pricing.TickToPrice(base, quote, usable)
				if err != nil {
					return err
				}
				s, err := at.ToSignificant(digits, core.RoundHalfUp)
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "usable tick\t%d (fee %s, spacing %d)\n", usable, feeAmount, spacing)
				fmt.Fprintf(w, "price at usable tick\t%s %s per %s\n", s, quote, base)
			}
			return w.Flush()
		},
	}
	cmd.Flags().Uint64Var(&fee, "fee", 0, "fee tier in hundredths of a bip (100, 500, 3000, 10000)")
	cmd.Flags().IntVar(&digits, "digits", defaultDigits, "significant digits")
	return cmd
}

func (a *app) nearestTickCommand() *cobra.Command {
	var (
		fee     uint64
		spacing int64
	)
	cmd := &cobra.Command{
		Use:     "nearest-tick <tick>",
		Short:   "Round a tick to the nearest usable tick for a fee tier or spacing",
		Example: "  pricer nearest-tick --fee 3000 -- -887272",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tick, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid tick %q: %w", args[0], err)
			}
			switch {
			case cmd.Flags().Changed("fee") && cmd.Flags().Changed("spacing"):
				return errors.New("set either --fee or --spacing")
			case cmd.Flags().Changed("fee"):
				feeAmount, err := uniswapv3.ParseFeeAmount(fee)
				if err != nil {
					return err
				}
				spacing, _ = feeAmount.TickSpacing()
			case !cmd.Flags().Changed("spacing"):
				return errors.New("one of --fee or --spacing is required")
			}
			usable, err := tickmath.NearestUsableTick(tick, spacing)
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, usable)
			return nil
		},
	}
	cmd.Flags().Uint64Var(&fee, "fee", 0, "fee tier in hundredths of a bip")
	cmd.Flags().Int64Var(&spacing, "spacing", 0, "tick spacing")
	return cmd
}

func (a *app) printPrices(price core.Price, digits int) error {
	s, err := price.ToSignificant(digits, core.RoundHalfUp)
	if err != nil {
		return err
	}
	inv, err := price.Invert().ToSignificant(digits, core.RoundHalfUp)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "1 %s = %s %s\n", price.BaseCurrency(), s, price.QuoteCurrency())
	fmt.Fprintf(a.out, "1 %s = %s %s\n", price.QuoteCurrency(), inv, price.BaseCurrency())
	return nil
}

func (a *app) resolvePair(ctx context.Context, refA, refB string) (tokenregistry.Token, tokenregistry.Token, error) {
	tokenA, err := a.resolveToken(ctx, refA)
	if err != nil {
		return tokenregistry.Token{}, tokenregistry.Token{}, err
	}
	tokenB, err := a.resolveToken(ctx, refB)
	if err != nil {
		return tokenregistry.Token{}, tokenregistry.Token{}, err
	}
	if tokenA.Equals(tokenB) {
		return tokenregistry.Token{}, tokenregistry.Token{}, fmt.Errorf("%w: %s", tokenregistry.ErrSameAddress, tokenA)
	}
	return tokenA, tokenB, nil
}

// resolveToken looks ref up by symbol or address in the configured tokens and
// falls back to reading an unknown address's metadata on chain.
func (a *app) resolveToken(ctx context.Context, ref string) (tokenregistry.Token, error) {
	if tok, ok := a.tokens.Resolve(ref); ok {
		return tok, nil
	}
	if !common.IsHexAddress(ref) {
		return tokenregistry.Token{}, fmt.Errorf("unknown token %q: add it to the config or pass its address", ref)
	}
	reader, err := a.chainReader(ctx)
	if err != nil {
		return tokenregistry.Token{}, err
	}
	return reader.Token(ctx, a.cfg.ChainID, common.HexToAddress(ref))
}
