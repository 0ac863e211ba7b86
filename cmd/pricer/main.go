package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/defistate/defistate-pricing-go/chain"
	"github.com/defistate/defistate-pricing-go/cmd/pricer/config"
	tokenindexer "github.com/defistate/defistate-pricing-go/protocols/tokenregistry/indexer"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand(os.Stdout, os.Stderr).ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// app is the state shared by every subcommand once the root command has
// loaded the configuration.
type app struct {
	cfg      *config.PricerConfig
	logger   *slog.Logger
	tokens   tokenindexer.IndexedTokenSystem
	registry *prometheus.Registry
	out      io.Writer
	logOut   io.Writer
	metrics  *http.Server
	reader   *chain.Reader
}

func newRootCommand(out, logOut io.Writer) *cobra.Command {
	a := &app{out: out, logOut: logOut}

	root := &cobra.Command{
		Use:           "pricer",
		Short:         "Concentrated-liquidity price and swap calculator",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			return a.shutdown()
		},
	}
	root.SetOut(out)
	root.SetErr(logOut)

	flags := root.PersistentFlags()
	flags.String("config", "", "path to the YAML configuration file")
	flags.Uint64("chain-id", config.DefaultChainID, "chain ID")
	flags.String("rpc-url", "", "JSON-RPC endpoint")
	flags.String("subgraph-url", "", "Uniswap V3 subgraph endpoint")
	flags.String("log-level", config.DefaultLogLevel, "log level (debug, info, warn, error)")
	flags.String("metrics-listen", "", "address to serve Prometheus metrics on, e.g. :9090")

	root.AddCommand(
		a.tickToPriceCommand(),
		a.priceToTickCommand(),
		a.nearestTickCommand(),
		a.poolCommand(),
		a.quoteCommand(),
	)
	return root
}

func (a *app) init(cmd *cobra.Command) error {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path, cmd.Flags())
	if err != nil {
		fmt.Fprintln(a.logOut, "Failed to load configuration:", err)
		return err
	}
	a.cfg = cfg

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		return err
	}
	a.logger = slog.New(slog.NewJSONHandler(a.logOut, &slog.HandlerOptions{Level: level}))

	tokens, err := cfg.TokenList()
	if err != nil {
		return err
	}
	a.tokens = tokenindexer.New().Index(tokens)

	a.registry = prometheus.NewRegistry()
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	if cfg.Metrics.Listen != "" {
		a.serveMetrics(cfg.Metrics.Listen)
	}
	return nil
}

func (a *app) serveMetrics(listen string) {
	logger := a.logger.With("component", "metrics")
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{Registry: a.registry}))
	a.metrics = &http.Server{Addr: listen, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.Info("serving metrics", "listen", listen)
		if err := a.metrics.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "error", err)
		}
	}()
}

func (a *app) shutdown() error {
	if a.reader != nil {
		a.reader.Close()
	}
	if a.metrics == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return a.metrics.Shutdown(ctx)
}
