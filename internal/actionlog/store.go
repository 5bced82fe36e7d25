package actionlog

import "context"

// Store 抽象了动作日志的持久化接口。日志是追加型的：
// 记录一旦写入就不再变更。
type Store interface {
	Append(ctx context.Context, record *Record) error
	Get(ctx context.Context, id string) (*Record, error)
	List(ctx context.Context, opts ListOptions) ([]*Record, error)
	Stats(ctx context.Context, opts ListOptions) (Stats, error)
	Close() error
}
