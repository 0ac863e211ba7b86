// Package subgraph reads initialized tick records from a Uniswap V3 subgraph.
package subgraph

import (
	"errors"
	"fmt"
	"sort"

	uniswapv3 "github.com/defistate/defistate-pricing-go/protocols/uniswapv3"
	"github.com/tidwall/gjson"
)

var (
	ErrMalformedResponse = errors.New("malformed subgraph response")
	ErrGraphQL           = errors.New("subgraph query failed")
	ErrDuplicateTick     = errors.New("duplicate tick index")
)

// ParseTicks decodes tick records of the form
//
//	{"tickIdx": "...", "liquidityGross": "...", "liquidityNet": "..."}
//
// given either as a bare array or wrapped in a GraphQL {"data":{"ticks":[...]}}
// envelope. Values may be decimal strings or JSON integers; they are parsed
// exactly. The result is sorted ascending by index.
func ParseTicks(data []byte) ([]uniswapv3.Tick, error) {
	records, err := tickRecords(data)
	if err != nil {
		return nil, err
	}

	ticks := make([]uniswapv3.Tick, 0, len(records))
	for i, r := range records {
		if !r.IsObject() {
			return nil, fmt.Errorf("%w: record %d is not an object", ErrMalformedResponse, i)
		}
		fields := gjson.GetMany(r.Raw, "tickIdx", "liquidityGross", "liquidityNet")
		for j, name := range []string{"tickIdx", "liquidityGross", "liquidityNet"} {
			if !fields[j].Exists() {
				return nil, fmt.Errorf("%w: record %d has no %s", ErrMalformedResponse, i, name)
			}
		}
		tick, err := uniswapv3.ParseTick(fields[0].String(), fields[1].String(), fields[2].String())
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		ticks = append(ticks, tick)
	}

	sort.Slice(ticks, func(i, j int) bool { return ticks[i].Index < ticks[j].Index })
	for i := 1; i < len(ticks); i++ {
		if ticks[i].Index == ticks[i-1].Index {
			return nil, fmt.Errorf("%w: %d", ErrDuplicateTick, ticks[i].Index)
		}
	}
	return ticks, nil
}

func tickRecords(data []byte) ([]gjson.Result, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: invalid JSON", ErrMalformedResponse)
	}
	root := gjson.ParseBytes(data)
	if root.IsArray() {
		return root.Array(), nil
	}
	if errs := root.Get("errors"); errs.Exists() && len(errs.Array()) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrGraphQL, errs.Get("0.message").String())
	}
	ticks := root.Get("data.ticks")
	if !ticks.IsArray() {
		return nil, fmt.Errorf("%w: no data.ticks array", ErrMalformedResponse)
	}
	return ticks.Array(), nil
}
