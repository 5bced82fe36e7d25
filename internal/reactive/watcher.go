package reactive

import (
	"context"
	"log/slog"
	"time"

	gethcore "github.com/ethereum/go-ethereum"

	"github.com/Jaden-Nix/gravity-nexus/internal/ledger"
	"github.com/Jaden-Nix/gravity-nexus/pkg/logger"
)

// Watcher 订阅某个账本的日志流，把注册表关心的日志转换为事件
// 并发布到投递通道。订阅断开后按固定间隔重连。
type Watcher struct {
	ledgerName string
	client     ledger.Client
	registry   *Registry
	producer   Producer
	retryWait  time.Duration

	log *slog.Logger
}

// NewWatcher 创建账本日志观察器。
func NewWatcher(ledgerName string, client ledger.Client, registry *Registry, producer Producer) *Watcher {
	return &Watcher{
		ledgerName: ledgerName,
		client:     client,
		registry:   registry,
		producer:   producer,
		retryWait:  5 * time.Second,
		log:        logger.Named("watcher").With("ledger", ledgerName),
	}
}

// Run 持续观察日志直到 ctx 取消。订阅失败或中断时重试。
func (w *Watcher) Run(ctx context.Context) error {
	for {
		if err := w.watchOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.log.Warn("日志订阅中断，准备重连", "error", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(w.retryWait):
		}
	}
}

func (w *Watcher) watchOnce(ctx context.Context) error {
	query := gethcore.FilterQuery{
		Addresses: w.registry.Sources(w.ledgerName),
	}
	sub, err := w.client.WatchLogs(ctx, query)
	if err != nil {
		return err
	}
	defer sub.Close()

	w.log.Info("日志订阅已建立", "sources", len(query.Addresses))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-sub.Err():
			return err
		case entry := <-sub.Logs():
			event := NewEvent(w.ledgerName, entry)
			if _, ok := w.registry.Match(event); !ok {
				continue
			}
			if err := w.producer.Publish(ctx, event); err != nil {
				w.log.Error("事件发布失败", "event_id", event.ID, "error", err)
				continue
			}
			w.log.Debug("事件已发布", "event_id", event.ID, "source", event.Source.Hex())
		}
	}
}
