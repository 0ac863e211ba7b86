package indexer

import (
	tokenregistry "github.com/defistate/defistate-pricing-go/protocols/tokenregistry"
	"github.com/ethereum/go-ethereum/common"
)

// IndexedTokenSystem defines the methods for accessing indexed token data.
type IndexedTokenSystem interface {
	GetByAddress(address common.Address) (tokenregistry.Token, bool)
	GetBySymbol(symbol string) (tokenregistry.Token, bool)
	Resolve(ref string) (tokenregistry.Token, bool)
	All() []tokenregistry.Token
}
