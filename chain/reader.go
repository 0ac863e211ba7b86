// Package chain reads pool state and token metadata with eth_call.
package chain

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/defistate/defistate-pricing-go/chains"
	"github.com/defistate/defistate-pricing-go/protocols/tokenregistry"
	uniswapv3 "github.com/defistate/defistate-pricing-go/protocols/uniswapv3"
	"github.com/defistate/defistate-pricing-go/protocols/uniswapv3/calculator/tickmath"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"golang.org/x/sync/errgroup"
)

var (
	ErrUnexpectedType = errors.New("unexpected return type")
	ErrValueRange     = errors.New("returned value out of range")
)

// Caller is the subset of an Ethereum client the reader needs. *ethclient.Client
// satisfies it.
type Caller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// PoolImmutables are the pool fields fixed at deployment.
type PoolImmutables struct {
	Token0      common.Address
	Token1      common.Address
	Fee         uniswapv3.FeeAmount
	TickSpacing int64
}

// Slot0 is the price part of the pool's slot0.
type Slot0 struct {
	SqrtPriceX96 *big.Int
	Tick         int64
}

// Reader performs typed contract reads.
type Reader struct {
	caller Caller
	logger chains.Logger
	close  func()
}

// Dial connects to an RPC endpoint and returns a Reader over it.
func Dial(ctx context.Context, rpcURL string, logger chains.Logger) (*Reader, error) {
	rpcClient, err := rpc.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to dial rpc: %w", err)
	}
	r := NewReader(ethclient.NewClient(rpcClient), logger)
	r.close = rpcClient.Close
	return r, nil
}

// NewReader wraps an existing caller.
func NewReader(caller Caller, logger chains.Logger) *Reader {
	return &Reader{caller: caller, logger: logger}
}

// Close closes the underlying RPC client, if the reader owns one.
func (r *Reader) Close() {
	if r.close != nil {
		r.close()
	}
}

func (r *Reader) call(ctx context.Context, to common.Address, parsed abi.ABI, method string, block *big.Int) ([]any, error) {
	data, err := parsed.Pack(method)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	resp, err := r.caller.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, block)
	if err != nil {
		return nil, fmt.Errorf("call %s on %s: %w", method, to.Hex(), err)
	}
	values, err := parsed.Unpack(method, resp)
	if err != nil {
		return nil, fmt.Errorf("unpack %s on %s: %w", method, to.Hex(), err)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("%w: %s returned nothing", ErrUnexpectedType, method)
	}
	return values, nil
}

// PoolImmutables reads token0, token1, fee and tickSpacing concurrently.
func (r *Reader) PoolImmutables(ctx context.Context, pool common.Address) (PoolImmutables, error) {
	poolABI, err := V3PoolABI()
	if err != nil {
		return PoolImmutables{}, fmt.Errorf("parse pool abi: %w", err)
	}

	var out PoolImmutables
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		values, err := r.call(gctx, pool, poolABI, "token0", nil)
		if err != nil {
			return err
		}
		out.Token0, err = asAddress(values[0])
		return err
	})
	g.Go(func() error {
		values, err := r.call(gctx, pool, poolABI, "token1", nil)
		if err != nil {
			return err
		}
		out.Token1, err = asAddress(values[0])
		return err
	})
	g.Go(func() error {
		values, err := r.call(gctx, pool, poolABI, "fee", nil)
		if err != nil {
			return err
		}
		raw, err := asBigInt(values[0])
		if err != nil {
			return err
		}
		if !raw.IsUint64() {
			return fmt.Errorf("%w: fee %s", ErrValueRange, raw)
		}
		out.Fee, err = uniswapv3.ParseFeeAmount(raw.Uint64())
		return err
	})
	g.Go(func() error {
		values, err := r.call(gctx, pool, poolABI, "tickSpacing", nil)
		if err != nil {
			return err
		}
		raw, err := asBigInt(values[0])
		if err != nil {
			return err
		}
		out.TickSpacing, err = int24(raw)
		return err
	})
	if err := g.Wait(); err != nil {
		return PoolImmutables{}, err
	}

	// A non-canonical deployment may pair a known fee with another spacing.
	if spacing, err := out.Fee.TickSpacing(); err == nil && spacing != out.TickSpacing {
		return PoolImmutables{}, fmt.Errorf("pool %s: fee %s has spacing %d, pool reports %d", pool.Hex(), out.Fee, spacing, out.TickSpacing)
	}
	return out, nil
}

// Slot0 reads the current sqrt price and tick. A nil block reads the latest
// state.
func (r *Reader) Slot0(ctx context.Context, pool common.Address, block *big.Int) (Slot0, error) {
	poolABI, err := V3PoolABI()
	if err != nil {
		return Slot0{}, fmt.Errorf("parse pool abi: %w", err)
	}
	values, err := r.call(ctx, pool, poolABI, "slot0", block)
	if err != nil {
		return Slot0{}, err
	}
	if len(values) < 2 {
		return Slot0{}, fmt.Errorf("%w: slot0 returned %d values", ErrUnexpectedType, len(values))
	}
	sqrtPriceX96, err := asBigInt(values[0])
	if err != nil {
		return Slot0{}, fmt.Errorf("slot0 sqrtPriceX96: %w", err)
	}
	rawTick, err := asBigInt(values[1])
	if err != nil {
		return Slot0{}, fmt.Errorf("slot0 tick: %w", err)
	}
	tick, err := int24(rawTick)
	if err != nil {
		return Slot0{}, fmt.Errorf("slot0 tick: %w", err)
	}
	if tick < tickmath.MIN_TICK || tick > tickmath.MAX_TICK {
		return Slot0{}, fmt.Errorf("slot0 tick: %w: %d", tickmath.ErrTickOutOfBounds, tick)
	}
	return Slot0{SqrtPriceX96: sqrtPriceX96, Tick: tick}, nil
}

// Liquidity reads the pool's active liquidity.
func (r *Reader) Liquidity(ctx context.Context, pool common.Address, block *big.Int) (*big.Int, error) {
	poolABI, err := V3PoolABI()
	if err != nil {
		return nil, fmt.Errorf("parse pool abi: %w", err)
	}
	values, err := r.call(ctx, pool, poolABI, "liquidity", block)
	if err != nil {
		return nil, err
	}
	return asBigInt(values[0])
}

// Token reads ERC-20 metadata. Decimals are required; symbol and name are
// best effort and fall back to the bytes32 variants some tokens return.
func (r *Reader) Token(ctx context.Context, chainID uint64, address common.Address) (tokenregistry.Token, error) {
	stringABI, err := ERC20ABI()
	if err != nil {
		return tokenregistry.Token{}, fmt.Errorf("parse erc20 abi: %w", err)
	}

	var (
		decimals     uint8
		symbol, name string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		values, err := r.call(gctx, address, stringABI, "decimals", nil)
		if err != nil {
			return err
		}
		d, ok := values[0].(uint8)
		if !ok {
			return fmt.Errorf("%w: decimals is %T", ErrUnexpectedType, values[0])
		}
		decimals = d
		return nil
	})
	g.Go(func() error {
		symbol = r.metadataString(gctx, address, "symbol")
		return nil
	})
	g.Go(func() error {
		name = r.metadataString(gctx, address, "name")
		return nil
	})
	if err := g.Wait(); err != nil {
		return tokenregistry.Token{}, err
	}
	return tokenregistry.NewToken(chainID, address, decimals, symbol, name)
}

func (r *Reader) metadataString(ctx context.Context, address common.Address, method string) string {
	stringABI, err := ERC20ABI()
	if err != nil {
		return ""
	}
	values, err := r.call(ctx, address, stringABI, method, nil)
	if err == nil {
		if s, ok := values[0].(string); ok {
			return s
		}
	}

	bytes32ABI, bErr := erc20Bytes32ABI()
	if bErr != nil {
		return ""
	}
	values, bErr = r.call(ctx, address, bytes32ABI, method, nil)
	if bErr == nil {
		if s, ok := bytes32ToString(values[0]); ok {
			return s
		}
	}
	r.logger.Debug("Token metadata call failed", "token", address.Hex(), "method", method, "err", err)
	return ""
}

func bytes32ToString(value any) (string, bool) {
	switch v := value.(type) {
	case [32]byte:
		return string(bytes.TrimRight(v[:], "\x00")), true
	case []byte:
		return string(bytes.TrimRight(v, "\x00")), true
	default:
		return "", false
	}
}

func asAddress(value any) (common.Address, error) {
	switch v := value.(type) {
	case common.Address:
		return v, nil
	case *common.Address:
		return *v, nil
	default:
		return common.Address{}, fmt.Errorf("%w: address is %T", ErrUnexpectedType, value)
	}
}

func asBigInt(value any) (*big.Int, error) {
	switch v := value.(type) {
	case *big.Int:
		return new(big.Int).Set(v), nil
	case uint8:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint16:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint32:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint64:
		return new(big.Int).SetUint64(v), nil
	case int32:
		return big.NewInt(int64(v)), nil
	case int64:
		return big.NewInt(v), nil
	default:
		return nil, fmt.Errorf("%w: integer is %T", ErrUnexpectedType, value)
	}
}

func int24(v *big.Int) (int64, error) {
	if !v.IsInt64() || v.Int64() < -(1<<23) || v.Int64() >= 1<<23 {
		return 0, fmt.Errorf("%w: int24 %s", ErrValueRange, v)
	}
	return v.Int64(), nil
}
