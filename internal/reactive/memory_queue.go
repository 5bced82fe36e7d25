package reactive

import (
	"context"
	"sync"

	xerrors "github.com/Jaden-Nix/gravity-nexus/internal/errors"
)

// MemoryQueue 使用 channel 模拟投递通道，主要用于测试与单机演示。
// 关闭通过独立的 done 信号广播，载荷 channel 永不关闭，
// 因此并发的 Publish 与 Close 不会竞争出向已关闭 channel 发送。
type MemoryQueue struct {
	ch   chan []byte
	done chan struct{}
	once sync.Once
}

// NewMemoryQueue 创建一个内存队列。
func NewMemoryQueue(size int) *MemoryQueue {
	if size <= 0 {
		size = 64
	}
	return &MemoryQueue{ch: make(chan []byte, size), done: make(chan struct{})}
}

// Publish 将事件投递到队列。队列关闭后拒绝投递。
func (q *MemoryQueue) Publish(ctx context.Context, event *Event) error {
	payload, err := event.Encode()
	if err != nil {
		return err
	}
	select {
	case <-q.done:
		return xerrors.New(xerrors.CodeQueueFailure, "队列已关闭")
	default:
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-q.done:
		return xerrors.New(xerrors.CodeQueueFailure, "队列已关闭")
	case q.ch <- payload:
		return nil
	}
}

// Consume 启动指定数量的工作协程消费队列中的事件。
// 关闭后缓冲中尚未消费的事件随之丢弃。
func (q *MemoryQueue) Consume(ctx context.Context, workerCount int, handler Handler) error {
	if workerCount <= 0 {
		workerCount = 1
	}
	var wg sync.WaitGroup
	for i := 0; i < workerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case <-q.done:
					return
				case payload := <-q.ch:
					event, err := DecodeEvent(payload)
					if err != nil {
						continue
					}
					_ = handler(ctx, event)
				}
			}
		}()
	}
	select {
	case <-ctx.Done():
	case <-q.done:
	}
	wg.Wait()
	return ctx.Err()
}

// Close 关闭内存队列。重复关闭是空操作。
func (q *MemoryQueue) Close() error {
	q.once.Do(func() { close(q.done) })
	return nil
}

var _ Queue = (*MemoryQueue)(nil)
