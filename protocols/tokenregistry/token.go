package tokenregistry

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// MaxDecimals is the largest decimals value a token may declare.
const MaxDecimals = 254

var (
	ErrInvalidDecimals = errors.New("token decimals out of range")
	ErrZeroAddress     = errors.New("token address is the zero address")
	ErrSameAddress     = errors.New("tokens have the same address")
	ErrChainMismatch   = errors.New("tokens are on different chains")
)

// Token is an ERC-20 token identity. Two tokens are the same token when their
// chain ID and address match; Name and Symbol are informational only.
type Token struct {
	ChainID  uint64         `json:"chainId" yaml:"chainId"`
	Address  common.Address `json:"address" yaml:"address"`
	Decimals uint8          `json:"decimals" yaml:"decimals"`
	Symbol   string         `json:"symbol" yaml:"symbol"`
	Name     string         `json:"name" yaml:"name"`
}

// NewToken validates and builds a Token.
func NewToken(chainID uint64, address common.Address, decimals uint8, symbol, name string) (Token, error) {
	if decimals > MaxDecimals {
		return Token{}, fmt.Errorf("%w: %d", ErrInvalidDecimals, decimals)
	}
	if address == (common.Address{}) {
		return Token{}, ErrZeroAddress
	}
	return Token{
		ChainID:  chainID,
		Address:  address,
		Decimals: decimals,
		Symbol:   symbol,
		Name:     name,
	}, nil
}

// Equals reports whether t and other identify the same token.
func (t Token) Equals(other Token) bool {
	return t.ChainID == other.ChainID && t.Address == other.Address
}

// SortsBefore reports whether t comes before other in the canonical pool
// ordering (byte-wise address comparison, which matches the lower-cased hex
// comparison the contracts use).
func (t Token) SortsBefore(other Token) (bool, error) {
	if t.ChainID != other.ChainID {
		return false, fmt.Errorf("%w: %d != %d", ErrChainMismatch, t.ChainID, other.ChainID)
	}
	if t.Address == other.Address {
		return false, fmt.Errorf("%w: %s", ErrSameAddress, t.Address.Hex())
	}
	return bytes.Compare(t.Address.Bytes(), other.Address.Bytes()) < 0, nil
}

// Sort returns a and b in canonical (token0, token1) order.
func Sort(a, b Token) (Token, Token, error) {
	before, err := a.SortsBefore(b)
	if err != nil {
		return Token{}, Token{}, err
	}
	if before {
		return a, b, nil
	}
	return b, a, nil
}

func (t Token) String() string {
	if t.Symbol != "" {
		return t.Symbol
	}
	return t.Address.Hex()
}
