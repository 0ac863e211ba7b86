// Package router finds the exact-input route with the largest output across a
// set of pool snapshots.
package router

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/defistate/defistate-pricing-go/bitset"
	"github.com/defistate/defistate-pricing-go/core"
	"github.com/defistate/defistate-pricing-go/protocols/tokenregistry"
	uniswapv3 "github.com/defistate/defistate-pricing-go/protocols/uniswapv3"
	"github.com/defistate/defistate-pricing-go/protocols/uniswapv3/calculator"
	uniswapv3indexer "github.com/defistate/defistate-pricing-go/protocols/uniswapv3/indexer"
	"github.com/ethereum/go-ethereum/common"
)

const DefaultMaxHops = 3

var (
	ErrUnknownToken = errors.New("token is not in any routed pool")
	ErrNoRoute      = errors.New("no route between tokens")
	ErrInvalidHops  = errors.New("max hops must be positive")
)

// Hop is one swap of a route.
type Hop struct {
	Pool     common.Address
	Fee      uniswapv3.FeeAmount
	TokenIn  tokenregistry.Token
	TokenOut tokenregistry.Token
}

// Route is a sequence of hops and the amounts it trades.
type Route struct {
	Hops      []Hop
	AmountIn  core.CurrencyAmount
	AmountOut core.CurrencyAmount
}

// ExecutionPrice is AmountOut per AmountIn.
func (r Route) ExecutionPrice() (core.Price, error) {
	return core.NewPriceFromAmounts(r.AmountIn, r.AmountOut)
}

func (r Route) String() string {
	s := r.AmountIn.Currency().String()
	for _, h := range r.Hops {
		s += fmt.Sprintf(" -(%s)-> %s", h.Fee, h.TokenOut)
	}
	return s
}

// edge joins two tokens through every pool that trades them.
type edge struct {
	target int
	pools  []int
}

// step records how a token was reached.
type step struct {
	from int
	to   int
	pool int
}

// Router is built once per pool set and is safe for concurrent use.
type Router struct {
	tokens     []tokenregistry.Token
	tokenIndex map[common.Address]int
	adjacency  [][]edge
	pools      []*uniswapv3.Pool
	addresses  []common.Address
}

// New builds the token graph of every pool in index.
func New(index uniswapv3indexer.IndexedUniswapV3) *Router {
	r := &Router{tokenIndex: make(map[common.Address]int)}
	edgeIndex := make(map[[2]int]int)

	addEdge := func(from, to, pool int) {
		key := [2]int{from, to}
		i, ok := edgeIndex[key]
		if !ok {
			i = len(r.adjacency[from])
			edgeIndex[key] = i
			r.adjacency[from] = append(r.adjacency[from], edge{target: to})
		}
		r.adjacency[from][i].pools = append(r.adjacency[from][i].pools, pool)
	}

	for _, pool := range index.All() {
		address, ok := index.AddressOf(pool)
		if !ok {
			continue
		}
		p := len(r.pools)
		r.pools = append(r.pools, pool)
		r.addresses = append(r.addresses, address)

		t0 := r.addToken(pool.Token0())
		t1 := r.addToken(pool.Token1())
		addEdge(t0, t1, p)
		addEdge(t1, t0, p)
	}
	return r
}

func (r *Router) addToken(token tokenregistry.Token) int {
	if i, ok := r.tokenIndex[token.Address]; ok {
		return i
	}
	i := len(r.tokens)
	r.tokens = append(r.tokens, token)
	r.tokenIndex[token.Address] = i
	r.adjacency = append(r.adjacency, nil)
	return i
}

// Tokens returns every routed token.
func (r *Router) Tokens() []tokenregistry.Token {
	out := make([]tokenregistry.Token, len(r.tokens))
	copy(out, r.tokens)
	return out
}

// BestRoute returns the route of at most maxHops swaps that yields the most
// tokenOut for amountIn. Each hop is priced against the pool snapshot, and
// no route visits a token twice.
func (r *Router) BestRoute(amountIn core.CurrencyAmount, tokenOut tokenregistry.Token, maxHops int) (Route, error) {
	if maxHops <= 0 {
		return Route{}, ErrInvalidHops
	}
	start, ok := r.tokenIndex[amountIn.Currency().Address]
	if !ok {
		return Route{}, fmt.Errorf("%w: %s", ErrUnknownToken, amountIn.Currency())
	}
	end, ok := r.tokenIndex[tokenOut.Address]
	if !ok {
		return Route{}, fmt.Errorf("%w: %s", ErrUnknownToken, tokenOut)
	}
	if start == end {
		return Route{}, fmt.Errorf("%w: %s to itself", ErrNoRoute, tokenOut)
	}
	if amountIn.IsZero() {
		return Route{}, calculator.ErrInvalidAmount
	}

	n := len(r.tokens)
	costs := make([]*big.Int, n)
	paths := make([][]step, n)
	known := make([]bitset.BitSet, n)
	for i := range known {
		known[i] = bitset.New(n)
	}
	costs[start] = amountIn.Quotient()

	// Hop-bounded relaxation: round k reads only what round k-1 reached.
	for hop := 0; hop < maxHops; hop++ {
		frontier := make([]*big.Int, n)
		copy(frontier, costs)
		frontierPaths := make([][]step, n)
		copy(frontierPaths, paths)
		frontierKnown := make([]bitset.BitSet, n)
		for i := range known {
			frontierKnown[i] = bitset.New(n)
			frontierKnown[i].CopyFrom(known[i])
		}

		changed := false
		for current := 0; current < n; current++ {
			if frontier[current] == nil || current == end {
				continue
			}
			if r.relax(current, frontier, frontierPaths, frontierKnown, costs, paths, known) {
				changed = true
			}
		}
		if !changed {
			break
		}
	}

	if costs[end] == nil {
		return Route{}, fmt.Errorf("%w: %s to %s within %d hops", ErrNoRoute, amountIn.Currency(), tokenOut, maxHops)
	}
	return r.route(amountIn, end, costs[end], paths[end])
}

// relax extends the route to current by one hop to every unvisited neighbour,
// keeping the best pool per neighbour.
func (r *Router) relax(current int, frontier []*big.Int, frontierPaths [][]step, frontierKnown []bitset.BitSet, costs []*big.Int, paths [][]step, known []bitset.BitSet) bool {
	amount, err := core.FromRawAmount(r.tokens[current], frontier[current])
	if err != nil {
		return false
	}
	visited := frontierKnown[current]

	changed := false
	for _, e := range r.adjacency[current] {
		if e.target == current || visited.Has(e.target) {
			continue
		}
		best, bestPool := (*big.Int)(nil), -1
		for _, p := range e.pools {
			out, _, err := calculator.GetOutputAmount(r.pools[p], amount, nil)
			if err != nil {
				continue
			}
			if q := out.Quotient(); best == nil || q.Cmp(best) > 0 {
				best, bestPool = q, p
			}
		}
		if bestPool < 0 || best.Sign() == 0 {
			continue
		}
		if costs[e.target] != nil && best.Cmp(costs[e.target]) <= 0 {
			continue
		}
		costs[e.target] = best
		path := make([]step, len(frontierPaths[current]), len(frontierPaths[current])+1)
		copy(path, frontierPaths[current])
		paths[e.target] = append(path, step{from: current, to: e.target, pool: bestPool})
		known[e.target].CopyFrom(visited)
		known[e.target].Add(current)
		changed = true
	}
	return changed
}

func (r *Router) route(amountIn core.CurrencyAmount, end int, out *big.Int, path []step) (Route, error) {
	amountOut, err := core.FromRawAmount(r.tokens[end], out)
	if err != nil {
		return Route{}, err
	}
	hops := make([]Hop, len(path))
	for i, s := range path {
		hops[i] = Hop{
			Pool:     r.addresses[s.pool],
			Fee:      r.pools[s.pool].Fee(),
			TokenIn:  r.tokens[s.from],
			TokenOut: r.tokens[s.to],
		}
	}
	return Route{Hops: hops, AmountIn: amountIn, AmountOut: amountOut}, nil
}
