// Package chains holds the per-chain constants the pricer needs and the
// logging interface shared by the I/O packages.
package chains

import (
	"fmt"

	"github.com/defistate/defistate-pricing-go/protocols/tokenregistry"
	uniswapv3 "github.com/defistate/defistate-pricing-go/protocols/uniswapv3"
	"github.com/ethereum/go-ethereum/common"
)

// Logger defines a standard interface for structured, leveled logging.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Chain IDs with a canonical Uniswap V3 deployment.
const (
	Ethereum uint64 = 1
	Optimism uint64 = 10
	Polygon  uint64 = 137
	Base     uint64 = 8453
	Arbitrum uint64 = 42161
)

// Deployment identifies the V3 factory on a chain. Pool addresses are derived
// from the factory and the pool init code hash.
type Deployment struct {
	ChainID      uint64
	Name         string
	Factory      common.Address
	InitCodeHash common.Hash
}

var canonicalFactory = common.HexToAddress("0x1F98431c8aD98523631AE4a59f267346ea31F984")

var deployments = map[uint64]Deployment{
	Ethereum: {ChainID: Ethereum, Name: "ethereum", Factory: canonicalFactory, InitCodeHash: uniswapv3.PoolInitCodeHash},
	Optimism: {ChainID: Optimism, Name: "optimism", Factory: canonicalFactory, InitCodeHash: uniswapv3.PoolInitCodeHash},
	Polygon:  {ChainID: Polygon, Name: "polygon", Factory: canonicalFactory, InitCodeHash: uniswapv3.PoolInitCodeHash},
	Base:     {ChainID: Base, Name: "base", Factory: common.HexToAddress("0x33128a8fC17869897dcE68Ed026d694621f6FDfD"), InitCodeHash: uniswapv3.PoolInitCodeHash},
	Arbitrum: {ChainID: Arbitrum, Name: "arbitrum", Factory: canonicalFactory, InitCodeHash: uniswapv3.PoolInitCodeHash},
}

// DeploymentFor returns the V3 deployment on chainID.
func DeploymentFor(chainID uint64) (Deployment, error) {
	d, ok := deployments[chainID]
	if !ok {
		return Deployment{}, fmt.Errorf("no uniswap v3 deployment known for chain %d", chainID)
	}
	return d, nil
}

// PoolAddress derives the address of the pool for tokenA, tokenB and fee.
func (d Deployment) PoolAddress(tokenA, tokenB tokenregistry.Token, fee uniswapv3.FeeAmount) (common.Address, error) {
	if tokenA.ChainID != d.ChainID {
		return common.Address{}, fmt.Errorf("%w: token on chain %d, deployment on %d", tokenregistry.ErrChainMismatch, tokenA.ChainID, d.ChainID)
	}
	return uniswapv3.ComputePoolAddress(d.Factory, d.InitCodeHash, tokenA, tokenB, fee)
}
