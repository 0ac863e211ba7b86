// Package config loads the pricer's YAML configuration and layers
// environment variables and command-line flags over it.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/defistate/defistate-pricing-go/protocols/tokenregistry"
	uniswapv3 "github.com/defistate/defistate-pricing-go/protocols/uniswapv3"
	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	DefaultChainID  = 1
	DefaultLogLevel = "info"
	EnvPrefix       = "PRICER"
)

var logLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}

// TokenConfig declares a token so it can be referenced by symbol without an
// RPC call.
type TokenConfig struct {
	Address  string `yaml:"address"`
	Decimals uint8  `yaml:"decimals"`
	Symbol   string `yaml:"symbol"`
	Name     string `yaml:"name"`
}

// PoolConfig names a pool either by address or by its two tokens and fee.
type PoolConfig struct {
	Address string `yaml:"address"`
	TokenA  string `yaml:"token_a"`
	TokenB  string `yaml:"token_b"`
	Fee     uint64 `yaml:"fee"`
}

// MetricsConfig enables the Prometheus endpoint when Listen is set.
type MetricsConfig struct {
	Listen string `yaml:"listen"`
}

// PricerConfig is the top-level configuration.
type PricerConfig struct {
	ChainID     uint64        `yaml:"chain_id"`
	RPCURL      string        `yaml:"rpc_url"`
	SubgraphURL string        `yaml:"subgraph_url"`
	LogLevel    string        `yaml:"log_level"`
	Metrics     MetricsConfig `yaml:"metrics"`
	Tokens      []TokenConfig `yaml:"tokens"`
	Pools       []PoolConfig  `yaml:"pools"`
}

// Default returns the configuration used when no file is given.
func Default() *PricerConfig {
	return &PricerConfig{ChainID: DefaultChainID, LogLevel: DefaultLogLevel}
}

// LoadConfig reads and validates the YAML file at path. Unknown keys are
// rejected.
func LoadConfig(path string) (*PricerConfig, error) {
	cfg, err := readFile(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

func readFile(path string) (*PricerConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return cfg, nil
}

// Load reads path (if not empty), then applies PRICER_* environment variables
// and any flags the user changed, in that order of increasing precedence.
// Recognised flag and key names are chain-id, rpc-url, subgraph-url,
// log-level and metrics-listen.
func Load(path string, flags *pflag.FlagSet) (*PricerConfig, error) {
	cfg := Default()
	if path != "" {
		var err error
		if cfg, err = readFile(path); err != nil {
			return nil, err
		}
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	if v.IsSet("chain-id") {
		cfg.ChainID = v.GetUint64("chain-id")
	}
	if v.IsSet("rpc-url") {
		cfg.RPCURL = v.GetString("rpc-url")
	}
	if v.IsSet("subgraph-url") {
		cfg.SubgraphURL = v.GetString("subgraph-url")
	}
	if v.IsSet("log-level") {
		cfg.LogLevel = v.GetString("log-level")
	}
	if v.IsSet("metrics-listen") {
		cfg.Metrics.Listen = v.GetString("metrics-listen")
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func (c *PricerConfig) validate() error {
	if c.ChainID == 0 {
		return errors.New("chain_id cannot be zero")
	}
	c.LogLevel = strings.ToLower(c.LogLevel)
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if !logLevels[c.LogLevel] {
		return fmt.Errorf("unknown log_level %q", c.LogLevel)
	}
	if err := validateURL("rpc_url", c.RPCURL, "http", "https", "ws", "wss"); err != nil {
		return err
	}
	if err := validateURL("subgraph_url", c.SubgraphURL, "http", "https"); err != nil {
		return err
	}

	seen := make(map[common.Address]bool, len(c.Tokens))
	for i, t := range c.Tokens {
		if !common.IsHexAddress(t.Address) {
			return fmt.Errorf("tokens[%d]: invalid address %q", i, t.Address)
		}
		address := common.HexToAddress(t.Address)
		if seen[address] {
			return fmt.Errorf("tokens[%d]: duplicate address %s", i, address.Hex())
		}
		seen[address] = true
		if _, err := tokenregistry.NewToken(c.ChainID, address, t.Decimals, t.Symbol, t.Name); err != nil {
			return fmt.Errorf("tokens[%d]: %w", i, err)
		}
	}

	for i, p := range c.Pools {
		switch {
		case p.Address != "":
			if p.TokenA != "" || p.TokenB != "" || p.Fee != 0 {
				return fmt.Errorf("pools[%d]: set either address or token_a, token_b and fee", i)
			}
			if !common.IsHexAddress(p.Address) {
				return fmt.Errorf("pools[%d]: invalid address %q", i, p.Address)
			}
		case p.TokenA == "" || p.TokenB == "":
			return fmt.Errorf("pools[%d]: address or both tokens are required", i)
		default:
			if _, err := uniswapv3.ParseFeeAmount(p.Fee); err != nil {
				return fmt.Errorf("pools[%d]: %w", i, err)
			}
		}
	}
	return nil
}

func validateURL(field, raw string, schemes ...string) error {
	if raw == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	for _, s := range schemes {
		if u.Scheme == s && u.Host != "" {
			return nil
		}
	}
	return fmt.Errorf("%s: unsupported url %q", field, raw)
}

// TokenList converts the configured tokens. It assumes the config has been
// validated.
func (c *PricerConfig) TokenList() ([]tokenregistry.Token, error) {
	tokens := make([]tokenregistry.Token, 0, len(c.Tokens))
	for _, t := range c.Tokens {
		tok, err := tokenregistry.NewToken(c.ChainID, common.HexToAddress(t.Address), t.Decimals, t.Symbol, t.Name)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
	}
	return tokens, nil
}
