package ledger

import (
	"context"

	gethcore "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/core/types"
	gethevent "github.com/ethereum/go-ethereum/event"
)

// ChainSnapshot represents summarized network metadata for reporting.
type ChainSnapshot struct {
	ChainID     string
	BlockNumber string
	Notes       string
}

// LogSubscription wraps a log subscription so callers can manage lifecycle
// without depending on the go-ethereum event package.
type LogSubscription struct {
	logs <-chan types.Log
	sub  gethevent.Subscription
}

// NewLogSubscription constructs a managed subscription wrapper.
func NewLogSubscription(logs <-chan types.Log, sub gethevent.Subscription) *LogSubscription {
	return &LogSubscription{logs: logs, sub: sub}
}

// Logs returns the channel that receives blockchain logs.
func (s *LogSubscription) Logs() <-chan types.Log {
	return s.logs
}

// Err forwards the subscription error channel.
func (s *LogSubscription) Err() <-chan error {
	if s == nil || s.sub == nil {
		return nil
	}
	return s.sub.Err()
}

// Close terminates the subscription.
func (s *LogSubscription) Close() {
	if s == nil || s.sub == nil {
		return
	}
	s.sub.Unsubscribe()
}

// Client defines the common interface any ledger implementation must provide
// so the watcher and pool adapters can interact with networks uniformly.
type Client interface {
	FetchChainSnapshot(ctx context.Context) (ChainSnapshot, error)
	WatchLogs(ctx context.Context, query gethcore.FilterQuery) (*LogSubscription, error)
	Close()
}
