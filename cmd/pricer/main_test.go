package main

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfig = `
chain_id: 1
log_level: error
tokens:
  - address: "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"
    decimals: 6
    symbol: USDC
  - address: "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"
    decimals: 18
    symbol: WETH
  - address: "0x6B175474E89094C44Da98b954EedeAC495271d0F"
    decimals: 18
    symbol: DAI
`

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testConfig), 0o600))

	var out bytes.Buffer
	root := newRootCommand(&out, io.Discard)
	root.SetArgs(append([]string{"--config", path}, args...))
	err := root.Execute()
	return out.String(), err
}

func lines(out string) [][]string {
	var result [][]string
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		result = append(result, strings.Fields(line))
	}
	return result
}

func TestTickToPriceCommand(t *testing.T) {
	out, err := run(t, "tick-to-price", "WETH", "USDC", "201365")
	require.NoError(t, err)
	assert.Equal(t, "1 WETH = 1799.97 USDC\n1 USDC = 0.000555563 WETH\n", out)

	out, err = run(t, "tick-to-price", "weth", "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48", "201360", "--digits", "4")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "1 WETH = 1801 USDC\n"), out)
}

func TestPriceToTickCommand(t *testing.T) {
	out, err := run(t, "price-to-tick", "WETH", "USDC", "1800")
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"tick", "201365"}}, lines(out))

	out, err = run(t, "price-to-tick", "WETH", "USDC", "1800", "--fee", "500")
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"tick", "201365"},
		{"usable", "tick", "201370", "(fee", "0.05%,", "spacing", "10)"},
		{"price", "at", "usable", "tick", "1799.07", "USDC", "per", "WETH"},
	}, lines(out))

	_, err = run(t, "price-to-tick", "WETH", "USDC", "abc")
	assert.ErrorContains(t, err, `invalid price "abc"`)

	_, err = run(t, "price-to-tick", "WETH", "USDC", "1800", "--fee", "2500")
	assert.ErrorContains(t, err, "unsupported fee tier")
}

func TestNearestTickCommand(t *testing.T) {
	tests := []struct {
		args     []string
		expected string
	}{
		{[]string{"--fee", "3000", "--", "-887272"}, "-887220"},
		{[]string{"--fee", "500", "201365"}, "201370"},
		{[]string{"--spacing", "10", "--", "-5"}, "-10"},
		{[]string{"--spacing", "200", "887272"}, "887200"},
	}
	for _, tc := range tests {
		t.Run(strings.Join(tc.args, " "), func(t *testing.T) {
			out, err := run(t, append([]string{"nearest-tick"}, tc.args...)...)
			require.NoError(t, err)
			assert.Equal(t, tc.expected+"\n", out)
		})
	}

	_, err := run(t, "nearest-tick", "5")
	assert.ErrorContains(t, err, "one of --fee or --spacing is required")

	_, err = run(t, "nearest-tick", "--fee", "500", "--spacing", "10", "5")
	assert.ErrorContains(t, err, "set either --fee or --spacing")

	_, err = run(t, "nearest-tick", "--spacing", "0", "5")
	assert.Error(t, err)
}

func TestCommands_Errors(t *testing.T) {
	t.Run("unknown symbol", func(t *testing.T) {
		_, err := run(t, "tick-to-price", "FOO", "USDC", "0")
		assert.ErrorContains(t, err, `unknown token "FOO"`)
	})

	t.Run("same token", func(t *testing.T) {
		_, err := run(t, "tick-to-price", "USDC", "usdc", "0")
		assert.ErrorContains(t, err, "tokens have the same address")
	})

	t.Run("unknown address needs rpc", func(t *testing.T) {
		_, err := run(t, "tick-to-price", "0x0000000000000000000000000000000000000001", "USDC", "0")
		assert.ErrorIs(t, err, errNeedsRPC)
	})

	t.Run("pool needs rpc", func(t *testing.T) {
		_, err := run(t, "pool", "USDC", "WETH", "500")
		assert.ErrorIs(t, err, errNeedsRPC)
	})

	t.Run("pool with bad fee", func(t *testing.T) {
		_, err := run(t, "pool", "USDC", "WETH", "123")
		assert.ErrorContains(t, err, "unsupported fee tier")
	})

	t.Run("exact out needs a pool", func(t *testing.T) {
		_, err := run(t, "quote", "USDC", "WETH", "1000", "--exact-out")
		assert.ErrorContains(t, err, "--exact-out needs --pool or --fee")
	})

	t.Run("routing needs configured pools", func(t *testing.T) {
		_, err := run(t, "quote", "USDC", "WETH", "1000")
		assert.ErrorContains(t, err, "routing needs pools in the config")
	})

	t.Run("invalid log level flag", func(t *testing.T) {
		_, err := run(t, "--log-level", "loud", "nearest-tick", "--spacing", "10", "5")
		assert.ErrorContains(t, err, `unknown log_level "loud"`)
	})
}

func TestMetricsServerLifecycle(t *testing.T) {
	out, err := run(t, "--metrics-listen", "127.0.0.1:0", "nearest-tick", "--spacing", "60", "100")
	require.NoError(t, err)
	assert.Equal(t, "120\n", out)
}
