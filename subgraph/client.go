package subgraph

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	uniswapv3 "github.com/defistate/defistate-pricing-go/protocols/uniswapv3"
	"github.com/defistate/defistate-pricing-go/protocols/uniswapv3/calculator/tickmath"
	"github.com/ethereum/go-ethereum/common"
)

const (
	defaultPageSize = 1000
	defaultTimeout  = 30 * time.Second

	// The subgraph caps "first" at 1000.
	maxPageSize = 1000
	// Responses larger than this are refused.
	maxResponseBytes = 32 << 20
)

// ticksQuery pages through a pool's initialized ticks in ascending order,
// using the last index seen as the cursor.
const ticksQuery = `query ticks($pool: String!, $first: Int!, $after: BigInt!) {
  ticks(
    first: $first
    where: { poolAddress: $pool, tickIdx_gt: $after, liquidityGross_gt: "0" }
    orderBy: tickIdx
    orderDirection: asc
  ) {
    tickIdx
    liquidityGross
    liquidityNet
  }
}`

// Logger defines a standard interface for structured, leveled logging.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Config holds the configuration for the subgraph client.
type Config struct {
	URL        string
	Logger     Logger
	HTTPClient *http.Client
	PageSize   int
}

// validate checks if the configuration is valid.
func (c *Config) validate() error {
	if c.URL == "" {
		return errors.New("config: URL is required")
	}
	if !strings.HasPrefix(c.URL, "http://") && !strings.HasPrefix(c.URL, "https://") {
		return fmt.Errorf("config: URL must be http(s), got %q", c.URL)
	}
	if c.Logger == nil {
		return errors.New("config: Logger is required")
	}
	if c.PageSize < 0 || c.PageSize > maxPageSize {
		return fmt.Errorf("config: PageSize must be at most %d", maxPageSize)
	}
	return nil
}

// Client fetches tick data over the subgraph's GraphQL endpoint.
type Client struct {
	url        string
	logger     Logger
	httpClient *http.Client
	pageSize   int
}

// NewClient validates cfg and builds a Client. A zero PageSize selects the
// subgraph maximum.
func NewClient(cfg Config) (*Client, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	pageSize := cfg.PageSize
	if pageSize == 0 {
		pageSize = defaultPageSize
	}
	return &Client{
		url:        cfg.URL,
		logger:     cfg.Logger,
		httpClient: httpClient,
		pageSize:   pageSize,
	}, nil
}

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

// FetchTicks returns every initialized tick of pool, ascending by index.
func (c *Client) FetchTicks(ctx context.Context, pool common.Address) ([]uniswapv3.Tick, error) {
	var all []uniswapv3.Tick
	after := tickmath.MIN_TICK - 1

	for page := 0; ; page++ {
		ticks, err := c.fetchPage(ctx, pool, after)
		if err != nil {
			return nil, fmt.Errorf("pool %s page %d: %w", pool.Hex(), page, err)
		}
		all = append(all, ticks...)
		c.logger.Debug("Fetched tick page", "pool", pool.Hex(), "page", page, "ticks", len(ticks))

		if len(ticks) < c.pageSize {
			break
		}
		last := ticks[len(ticks)-1].Index
		if last <= after {
			return nil, fmt.Errorf("%w: cursor did not advance past %d", ErrMalformedResponse, after)
		}
		after = last
	}

	c.logger.Info("Fetched ticks", "pool", pool.Hex(), "ticks", len(all))
	return all, nil
}

func (c *Client) fetchPage(ctx context.Context, pool common.Address, after int64) ([]uniswapv3.Tick, error) {
	body, err := json.Marshal(graphQLRequest{
		Query: ticksQuery,
		Variables: map[string]any{
			// The subgraph stores addresses lower-cased.
			"pool":  strings.ToLower(pool.Hex()),
			"first": c.pageSize,
			"after": fmt.Sprintf("%d", after),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, truncate(data, 200))
	}
	return ParseTicks(data)
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
