package uniswapv3

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/defistate/defistate-pricing-go/protocols/tokenregistry"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// PoolInitCodeHash is the keccak256 of the pool creation code deployed by the
// canonical factory.
var PoolInitCodeHash = common.HexToHash("0xe34f199b19b2b4f47f68442619d555527d244f78a3297ea89325f843f87b8b54")

var (
	saltArgs     abi.Arguments
	saltArgsOnce sync.Once
	saltArgsErr  error
)

func poolSaltArguments() (abi.Arguments, error) {
	saltArgsOnce.Do(func() {
		addressType, err := abi.NewType("address", "", nil)
		if err != nil {
			saltArgsErr = err
			return
		}
		uint24Type, err := abi.NewType("uint24", "", nil)
		if err != nil {
			saltArgsErr = err
			return
		}
		saltArgs = abi.Arguments{{Type: addressType}, {Type: addressType}, {Type: uint24Type}}
	})
	return saltArgs, saltArgsErr
}

// ComputePoolAddress derives the CREATE2 address of the pool for the token
// pair and fee. The tokens may be given in either order.
func ComputePoolAddress(factory common.Address, initCodeHash common.Hash, tokenA, tokenB tokenregistry.Token, fee FeeAmount) (common.Address, error) {
	token0, token1, err := tokenregistry.Sort(tokenA, tokenB)
	if err != nil {
		return common.Address{}, err
	}
	if _, err := fee.TickSpacing(); err != nil {
		return common.Address{}, err
	}

	args, err := poolSaltArguments()
	if err != nil {
		return common.Address{}, fmt.Errorf("building salt arguments: %w", err)
	}
	encoded, err := args.Pack(token0.Address, token1.Address, big.NewInt(int64(fee)))
	if err != nil {
		return common.Address{}, fmt.Errorf("encoding pool salt: %w", err)
	}

	salt := crypto.Keccak256Hash(encoded)
	return crypto.CreateAddress2(factory, salt, initCodeHash.Bytes()), nil
}
