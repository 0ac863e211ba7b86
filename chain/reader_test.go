package chain

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"sync"
	"testing"

	"github.com/defistate/defistate-pricing-go/protocols/tokenregistry"
	uniswapv3 "github.com/defistate/defistate-pricing-go/protocols/uniswapv3"
	"github.com/defistate/defistate-pricing-go/protocols/uniswapv3/calculator/tickmath"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	poolAddress = common.HexToAddress("0x88e6A0c2dDD26FEEb64F039a2c41296FcB3f5640")
	usdcAddress = common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")
	wethAddress = common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")
	mkrAddress  = common.HexToAddress("0x9f8F72aA9304c8B593d555F12eF6589cC3A579A2")
)

type callKey struct {
	to       common.Address
	selector [4]byte
}

// mockCaller answers eth_call from canned ABI-encoded responses.
type mockCaller struct {
	mu        sync.Mutex
	responses map[callKey][]byte
	blocks    []*big.Int
}

func newMockCaller() *mockCaller {
	return &mockCaller{responses: make(map[callKey][]byte)}
}

func (m *mockCaller) set(t *testing.T, to common.Address, parsed abi.ABI, method string, values ...any) {
	t.Helper()
	m.setRaw(t, to, parsed, method, func() []byte {
		out, err := parsed.Methods[method].Outputs.Pack(values...)
		require.NoError(t, err)
		return out
	}())
}

func (m *mockCaller) setRaw(t *testing.T, to common.Address, parsed abi.ABI, method string, data []byte) {
	t.Helper()
	var selector [4]byte
	copy(selector[:], parsed.Methods[method].ID)
	m.mu.Lock()
	m.responses[callKey{to, selector}] = data
	m.mu.Unlock()
}

func (m *mockCaller) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var selector [4]byte
	copy(selector[:], msg.Data[:4])

	m.mu.Lock()
	defer m.mu.Unlock()
	m.blocks = append(m.blocks, blockNumber)
	data, ok := m.responses[callKey{*msg.To, selector}]
	if !ok {
		return nil, errors.New("execution reverted")
	}
	return data, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func poolABI(t *testing.T) abi.ABI {
	t.Helper()
	parsed, err := V3PoolABI()
	require.NoError(t, err)
	return parsed
}

func mockPool(t *testing.T, sqrtPriceX96 *big.Int, tick int64) *mockCaller {
	parsed := poolABI(t)
	m := newMockCaller()
	m.set(t, poolAddress, parsed, "token0", usdcAddress)
	m.set(t, poolAddress, parsed, "token1", wethAddress)
	m.set(t, poolAddress, parsed, "fee", big.NewInt(500))
	m.set(t, poolAddress, parsed, "tickSpacing", big.NewInt(10))
	m.set(t, poolAddress, parsed, "liquidity", big.NewInt(4411331607565289742))
	m.set(t, poolAddress, parsed, "slot0", sqrtPriceX96, big.NewInt(tick), uint16(1), uint16(723), uint16(723), uint8(0), true)
	return m
}

func TestReader_PoolState(t *testing.T) {
	sqrtPriceX96, _ := new(big.Int).SetString("1262831046415630070062062910819682", 10)
	m := mockPool(t, sqrtPriceX96, 193540)
	r := NewReader(m, discardLogger())
	ctx := context.Background()

	immutables, err := r.PoolImmutables(ctx, poolAddress)
	require.NoError(t, err)
	assert.Equal(t, usdcAddress, immutables.Token0)
	assert.Equal(t, wethAddress, immutables.Token1)
	assert.Equal(t, uniswapv3.FeeLow, immutables.Fee)
	assert.Equal(t, int64(10), immutables.TickSpacing)

	slot0, err := r.Slot0(ctx, poolAddress, big.NewInt(19_000_000))
	require.NoError(t, err)
	assert.Equal(t, sqrtPriceX96.String(), slot0.SqrtPriceX96.String())
	assert.Equal(t, int64(193540), slot0.Tick)
	assert.Equal(t, big.NewInt(19_000_000), m.blocks[len(m.blocks)-1], "slot0 is read at the requested block")

	liquidity, err := r.Liquidity(ctx, poolAddress, nil)
	require.NoError(t, err)
	assert.Equal(t, "4411331607565289742", liquidity.String())
}

func TestReader_Slot0NegativeTick(t *testing.T) {
	sqrtPriceX96 := new(big.Int)
	require.NoError(t, tickmath.GetSqrtRatioAtTick(sqrtPriceX96, -276325))
	r := NewReader(mockPool(t, sqrtPriceX96, -276325), discardLogger())

	slot0, err := r.Slot0(context.Background(), poolAddress, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(-276325), slot0.Tick)
}

func TestReader_Errors(t *testing.T) {
	parsed := poolABI(t)

	t.Run("unsupported fee", func(t *testing.T) {
		m := mockPool(t, big.NewInt(4295128739), -887272)
		m.set(t, poolAddress, parsed, "fee", big.NewInt(2500))
		_, err := NewReader(m, discardLogger()).PoolImmutables(context.Background(), poolAddress)
		assert.ErrorIs(t, err, uniswapv3.ErrUnsupportedFee)
	})

	t.Run("spacing mismatch", func(t *testing.T) {
		m := mockPool(t, big.NewInt(4295128739), -887272)
		m.set(t, poolAddress, parsed, "tickSpacing", big.NewInt(60))
		_, err := NewReader(m, discardLogger()).PoolImmutables(context.Background(), poolAddress)
		assert.Error(t, err)
	})

	t.Run("tick beyond range", func(t *testing.T) {
		m := mockPool(t, big.NewInt(4295128739), -887273)
		_, err := NewReader(m, discardLogger()).Slot0(context.Background(), poolAddress, nil)
		assert.ErrorIs(t, err, tickmath.ErrTickOutOfBounds)
	})

	t.Run("revert", func(t *testing.T) {
		_, err := NewReader(newMockCaller(), discardLogger()).Liquidity(context.Background(), poolAddress, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "execution reverted")
	})

	t.Run("short return data", func(t *testing.T) {
		m := newMockCaller()
		m.setRaw(t, poolAddress, parsed, "liquidity", []byte{0x01})
		_, err := NewReader(m, discardLogger()).Liquidity(context.Background(), poolAddress, nil)
		assert.Error(t, err)
	})
}

func TestReader_Token(t *testing.T) {
	erc20, err := ERC20ABI()
	require.NoError(t, err)
	bytes32ABI, err := erc20Bytes32ABI()
	require.NoError(t, err)

	m := newMockCaller()
	m.set(t, usdcAddress, erc20, "decimals", uint8(6))
	m.set(t, usdcAddress, erc20, "symbol", "USDC")
	m.set(t, usdcAddress, erc20, "name", "USD Coin")

	var mkrSymbol, mkrName [32]byte
	copy(mkrSymbol[:], "MKR")
	copy(mkrName[:], "Maker")
	m.set(t, mkrAddress, erc20, "decimals", uint8(18))
	m.set(t, mkrAddress, bytes32ABI, "symbol", mkrSymbol)
	m.set(t, mkrAddress, bytes32ABI, "name", mkrName)

	r := NewReader(m, discardLogger())

	t.Run("string metadata", func(t *testing.T) {
		token, err := r.Token(context.Background(), 1, usdcAddress)
		require.NoError(t, err)
		assert.Equal(t, tokenregistry.Token{ChainID: 1, Address: usdcAddress, Decimals: 6, Symbol: "USDC", Name: "USD Coin"}, token)
	})

	t.Run("bytes32 metadata", func(t *testing.T) {
		token, err := r.Token(context.Background(), 1, mkrAddress)
		require.NoError(t, err)
		assert.Equal(t, "MKR", token.Symbol)
		assert.Equal(t, "Maker", token.Name)
		assert.Equal(t, uint8(18), token.Decimals)
	})

	t.Run("missing metadata is tolerated", func(t *testing.T) {
		m.set(t, wethAddress, erc20, "decimals", uint8(18))
		token, err := r.Token(context.Background(), 1, wethAddress)
		require.NoError(t, err)
		assert.Empty(t, token.Symbol)
		assert.Equal(t, wethAddress.Hex(), token.String())
	})

	t.Run("decimals are required", func(t *testing.T) {
		_, err := r.Token(context.Background(), 1, common.HexToAddress("0x01"))
		assert.Error(t, err)
	})
}

func TestInt24(t *testing.T) {
	testCases := []struct {
		in      int64
		wantErr bool
	}{
		{0, false},
		{8388607, false},
		{-8388608, false},
		{8388608, true},
		{-8388609, true},
	}
	for _, tc := range testCases {
		got, err := int24(big.NewInt(tc.in))
		if tc.wantErr {
			assert.ErrorIs(t, err, ErrValueRange)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tc.in, got)
	}
}
