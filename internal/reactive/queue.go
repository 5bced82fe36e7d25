package reactive

import (
	"context"
)

// Handler 处理来自投递通道的事件。返回错误意味着本次处理失败，
// 通道实现可以选择重投；因此 Handler 必须对重复投递保持幂等。
type Handler func(ctx context.Context, event *Event) error

// Producer 负责向投递通道发布事件。
type Producer interface {
	Publish(ctx context.Context, event *Event) error
	Close() error
}

// Consumer 负责从投递通道消费事件。通道只保证至少一次投递，
// 不保证顺序，也不保证去重。
type Consumer interface {
	Consume(ctx context.Context, workerCount int, handler Handler) error
	Close() error
}

// Queue 同时具备生产者与消费者能力。
type Queue interface {
	Producer
	Consumer
}
