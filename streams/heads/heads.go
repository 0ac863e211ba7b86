// Package heads follows new block headers over a websocket JSON-RPC
// subscription, reconnecting with backoff when the connection drops.
package heads

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/tidwall/gjson"
)

const (
	initialReconnectDelay = 1 * time.Second
	maxReconnectDelay     = 30 * time.Second

	Namespace        = "eth"
	SubscriptionName = "newHeads"
)

// Logger defines a standard interface for structured, leveled logging.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Config holds the configuration for the client.
type Config struct {
	URL        string
	Logger     Logger
	BufferSize uint
}

// validate checks if the configuration is valid.
func (c *Config) validate() error {
	if c.URL == "" {
		return errors.New("config: URL is required")
	}
	if !strings.HasPrefix(c.URL, "ws://") && !strings.HasPrefix(c.URL, "wss://") {
		return fmt.Errorf("config: subscriptions need a websocket URL, got %q", c.URL)
	}
	if c.BufferSize < 1 {
		return errors.New("config: BufferSize must be greater than 0")
	}
	if c.Logger == nil {
		return errors.New("config: Logger is required")
	}
	return nil
}

// Head is the part of a block header the pricer acts on.
type Head struct {
	Number    *big.Int
	Hash      common.Hash
	Timestamp uint64
}

// -----------------------------------------------------------------------------
// HeadProcessor
// -----------------------------------------------------------------------------

// HeadProcessor decodes header notifications and drops the ones that do not
// advance the chain. It is decoupled from the networking layer.
type HeadProcessor struct {
	last   *Head
	headCh chan Head
	logger Logger
}

// NewHeadProcessor creates a pure logic processor without networking.
func NewHeadProcessor(logger Logger, bufferSize uint) *HeadProcessor {
	return &HeadProcessor{
		logger: logger,
		headCh: make(chan Head, bufferSize),
	}
}

// Heads returns a read-only channel for receiving new heads.
func (hp *HeadProcessor) Heads() <-chan Head {
	return hp.headCh
}

// ProcessMessage decodes one newHeads notification. A head at or below the
// last seen height is dropped unless its hash differs at the same height,
// which signals a reorg. It blocks until the head is delivered or ctx is done.
func (hp *HeadProcessor) ProcessMessage(ctx context.Context, raw json.RawMessage) error {
	if !gjson.ValidBytes(raw) {
		return errors.New("notification is not valid JSON")
	}
	fields := gjson.GetManyBytes(raw, "number", "hash", "timestamp")
	if !fields[0].Exists() || !fields[1].Exists() {
		return errors.New("header is missing number or hash")
	}
	number, err := hexutil.DecodeBig(fields[0].String())
	if err != nil {
		return fmt.Errorf("invalid header number: %w", err)
	}
	hash, err := hexutil.Decode(fields[1].String())
	if err != nil || len(hash) != common.HashLength {
		return fmt.Errorf("invalid header hash %q", fields[1].String())
	}
	var timestamp uint64
	if fields[2].Exists() {
		if timestamp, err = hexutil.DecodeUint64(fields[2].String()); err != nil {
			return fmt.Errorf("invalid header timestamp: %w", err)
		}
	}
	head := Head{Number: number, Hash: common.BytesToHash(hash), Timestamp: timestamp}

	if hp.last != nil {
		switch cmp := head.Number.Cmp(hp.last.Number); {
		case cmp < 0, cmp == 0 && head.Hash == hp.last.Hash:
			hp.logger.Debug("Dropping stale head", "number", head.Number, "last", hp.last.Number)
			return nil
		case cmp == 0:
			hp.logger.Warn("Reorg at head", "number", head.Number, "old_hash", hp.last.Hash, "new_hash", head.Hash)
		case head.Number.Cmp(new(big.Int).Add(hp.last.Number, common.Big1)) > 0:
			hp.logger.Warn("Skipped heads", "last", hp.last.Number, "received", head.Number)
		}
	}

	select {
	case hp.headCh <- head:
		hp.last = &head
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// -----------------------------------------------------------------------------
// Client (Networking Wrapper)
// -----------------------------------------------------------------------------

// Client manages the connection and uses HeadProcessor for logic.
type Client struct {
	processor *HeadProcessor
	errCh     chan error
	logger    Logger
}

// NewClient creates a new client and starts subscribing in the background
// until ctx is cancelled.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	client := &Client{
		processor: NewHeadProcessor(cfg.Logger, cfg.BufferSize),
		errCh:     make(chan error, 1),
		logger:    cfg.Logger,
	}

	go client.run(ctx, cfg.URL)
	return client, nil
}

// Heads delegates to the processor's head channel.
func (c *Client) Heads() <-chan Head {
	return c.processor.Heads()
}

// Err reports connection failures as they happen, dropping them when nobody
// reads, and is closed when the client stops.
func (c *Client) Err() <-chan error {
	return c.errCh
}

// run handles the networking lifecycle and feeds data to the processor.
func (c *Client) run(ctx context.Context, url string) {
	defer close(c.errCh)
	reconnectDelay := initialReconnectDelay

	for {
		if ctx.Err() != nil {
			c.logger.Info("Client context canceled, shutting down.")
			return
		}

		c.logger.Info("Attempting to connect to RPC server", "url", url)
		rpcClient, err := rpc.DialContext(ctx, url)
		if err == nil {
			c.logger.Info("Successfully connected to RPC server.")
			reconnectDelay = initialReconnectDelay
			err = c.subscribeAndProcess(ctx, rpcClient)
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				c.logger.Info("Context canceled, shutting down.")
				return
			}
		}

		c.logger.Error("Connection lost, will reconnect...", "error", err, "delay", reconnectDelay)
		select {
		case c.errCh <- err:
		default:
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(reconnectDelay):
		}
		reconnectDelay = min(reconnectDelay*2, maxReconnectDelay)
	}
}

func (c *Client) subscribeAndProcess(ctx context.Context, rpcClient *rpc.Client) error {
	defer rpcClient.Close()

	rawCh := make(chan json.RawMessage)
	sub, err := rpcClient.Subscribe(ctx, Namespace, rawCh, SubscriptionName)
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}
	defer sub.Unsubscribe()

	c.logger.Info("Successfully subscribed. Waiting for heads...")
	for {
		select {
		case raw := <-rawCh:
			if err := c.processor.ProcessMessage(ctx, raw); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				c.logger.Error("Error processing message", "error", err)
			}
		case err := <-sub.Err():
			if err == nil {
				return errors.New("subscription closed")
			}
			return err
		case <-ctx.Done():
			c.logger.Info("Context cancelled, stopping subscription.")
			return ctx.Err()
		}
	}
}
