package evm

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/Jaden-Nix/gravity-nexus/internal/ledger"

	gethcore "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	coretypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	gethrpc "github.com/ethereum/go-ethereum/rpc"
)

// Config describes how to construct an EVM compatible ledger client.
type Config struct {
	Name    string
	ChainID uint64
	RPCURL  string
	WSURL   string
	Notes   string
}

// Client implements the ledger.Client interface for EVM compatible chains.
// Rate events are consumed over the WS endpoint when configured; plain RPC
// subscriptions are used otherwise.
type Client struct {
	name        string
	notes       string
	rpcClient   *gethrpc.Client
	eth         *ethclient.Client
	eventClient logSubscriber
	backend     bind.ContractBackend
	chainID     *big.Int
	mu          sync.Mutex
}

// logSubscriber mirrors the subset of methods required for log subscriptions.
type logSubscriber interface {
	SubscribeFilterLogs(ctx context.Context, q gethcore.FilterQuery, ch chan<- coretypes.Log) (gethcore.Subscription, error)
}

// NewClient dials the configured RPC endpoints and returns a ready-to-use client.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	rpcURL := strings.TrimSpace(cfg.RPCURL)
	if rpcURL == "" {
		return nil, errors.New("ledger RPC URL is not configured")
	}

	rpcClient, err := gethrpc.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial ledger node: %w", err)
	}

	eth := ethclient.NewClient(rpcClient)

	eventClient := logSubscriber(eth)
	if wsURL := strings.TrimSpace(cfg.WSURL); wsURL != "" {
		if wsRPC, wsErr := gethrpc.DialContext(ctx, wsURL); wsErr == nil {
			eventClient = ethclient.NewClient(wsRPC)
		}
	}

	var chainID *big.Int
	if cfg.ChainID != 0 {
		chainID = new(big.Int).SetUint64(cfg.ChainID)
	}

	return &Client{
		name:        cfg.Name,
		notes:       cfg.Notes,
		rpcClient:   rpcClient,
		eth:         eth,
		eventClient: eventClient,
		backend:     eth,
		chainID:     chainID,
	}, nil
}

// Name returns the configured ledger name.
func (c *Client) Name() string { return c.name }

// Backend exposes the contract backend used for pool reads and transactions.
func (c *Client) Backend() bind.ContractBackend {
	if c == nil {
		return nil
	}
	return c.backend
}

// Close releases network connections held by the client.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.eth != nil {
		c.eth.Close()
		c.eth = nil
	}
	if c.eventClient != nil {
		if ec, ok := c.eventClient.(*ethclient.Client); ok {
			ec.Close()
		}
		c.eventClient = nil
	}
	if c.rpcClient != nil {
		c.rpcClient.Close()
	}
	c.rpcClient = nil
}

// FetchChainSnapshot gathers lightweight metadata from the ledger.
func (c *Client) FetchChainSnapshot(ctx context.Context) (ledger.ChainSnapshot, error) {
	if c == nil {
		return ledger.ChainSnapshot{}, errors.New("ledger client not initialized")
	}

	if c.eth != nil {
		chainID, err := c.eth.ChainID(ctx)
		if err != nil {
			return ledger.ChainSnapshot{}, fmt.Errorf("fetch chain id: %w", err)
		}
		blockNumber, err := c.eth.BlockNumber(ctx)
		if err != nil {
			return ledger.ChainSnapshot{}, fmt.Errorf("fetch block number: %w", err)
		}
		return ledger.ChainSnapshot{
			ChainID:     toHexBig(chainID),
			BlockNumber: fmt.Sprintf("0x%x", blockNumber),
			Notes:       c.notes,
		}, nil
	}

	if c.backend == nil {
		return ledger.ChainSnapshot{}, errors.New("ledger client has no backend")
	}
	if c.chainID == nil {
		return ledger.ChainSnapshot{}, errors.New("ledger chain id not configured")
	}

	blockReader, ok := c.backend.(interface {
		BlockByNumber(context.Context, *big.Int) (*coretypes.Block, error)
	})
	if !ok {
		return ledger.ChainSnapshot{}, errors.New("backend does not support block queries")
	}
	block, err := blockReader.BlockByNumber(ctx, nil)
	if err != nil {
		return ledger.ChainSnapshot{}, fmt.Errorf("fetch block: %w", err)
	}

	return ledger.ChainSnapshot{
		ChainID:     toHexBig(c.chainID),
		BlockNumber: fmt.Sprintf("0x%x", block.NumberU64()),
		Notes:       c.notes,
	}, nil
}

// WatchLogs attaches a log subscription to the ledger.
func (c *Client) WatchLogs(ctx context.Context, query gethcore.FilterQuery) (*ledger.LogSubscription, error) {
	if c == nil {
		return nil, errors.New("ledger client not initialized")
	}
	subscriber := c.eventBackend()
	if subscriber == nil {
		return nil, errors.New("ledger client does not support log subscriptions")
	}

	logs := make(chan coretypes.Log, 64)
	sub, err := subscriber.SubscribeFilterLogs(ctx, query, logs)
	if err != nil {
		return nil, fmt.Errorf("subscribe logs: %w", err)
	}
	return ledger.NewLogSubscription(logs, sub), nil
}

func (c *Client) eventBackend() logSubscriber {
	if c.eventClient != nil {
		return c.eventClient
	}
	if subscriber, ok := c.backend.(logSubscriber); ok {
		return subscriber
	}
	return nil
}

func toHexBig(n *big.Int) string {
	if n == nil {
		return "0x0"
	}
	return "0x" + n.Text(16)
}

var _ ledger.Client = (*Client)(nil)
