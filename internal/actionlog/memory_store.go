package actionlog

import (
	"context"
	"sort"
	"sync"
	"time"

	xerrors "github.com/Jaden-Nix/gravity-nexus/internal/errors"
)

// MemoryStore 以内存方式保存动作日志，主要用于测试与演示部署。
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*Record
}

// NewMemoryStore 创建 MemoryStore。
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]*Record)}
}

// Append 实现 Store 接口。
func (m *MemoryStore) Append(_ context.Context, record *Record) error {
	if record == nil {
		return xerrors.New(xerrors.CodeInvalidArgument, "record 不能为空")
	}
	if record.ID == "" {
		return xerrors.New(xerrors.CodeInvalidArgument, "记录 ID 不能为空")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[record.ID]; ok {
		return ErrRecordConflict
	}
	clone := *record
	if clone.CreatedAt == 0 {
		clone.CreatedAt = time.Now().Unix()
	}
	m.records[record.ID] = &clone
	return nil
}

// Get 返回指定记录。
func (m *MemoryStore) Get(_ context.Context, id string) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	record, ok := m.records[id]
	if !ok {
		return nil, ErrRecordNotFound
	}
	clone := *record
	return &clone, nil
}

// List 返回符合过滤条件的记录。
func (m *MemoryStore) List(_ context.Context, opts ListOptions) ([]*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	opts.applyDefaults()

	results := make([]*Record, 0, len(m.records))
	for _, record := range m.records {
		if !matchesFilters(record, opts) {
			continue
		}
		clone := *record
		results = append(results, &clone)
	}

	sort.Slice(results, func(i, j int) bool {
		if opts.Order == SortByCreatedAsc {
			if results[i].CreatedAt == results[j].CreatedAt {
				return results[i].ID < results[j].ID
			}
			return results[i].CreatedAt < results[j].CreatedAt
		}
		if results[i].CreatedAt == results[j].CreatedAt {
			return results[i].ID < results[j].ID
		}
		return results[i].CreatedAt > results[j].CreatedAt
	})

	if len(results) > opts.Limit {
		results = results[:opts.Limit]
	}
	return results, nil
}

// Stats 统计符合过滤条件的记录。
func (m *MemoryStore) Stats(_ context.Context, opts ListOptions) (Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	opts.applyDefaults()

	stats := Stats{}
	for _, record := range m.records {
		if !matchesFilters(record, opts) {
			continue
		}
		stats.Total++
		switch {
		case record.OK && record.Outcome == OutcomeNoAction:
			stats.NoAction++
		case record.OK:
			stats.Succeeded++
		default:
			stats.Failed++
			if record.CreatedAt > stats.LastFailed {
				stats.LastFailed = record.CreatedAt
			}
		}
		if record.CreatedAt > stats.NewestAt {
			stats.NewestAt = record.CreatedAt
		}
		if stats.OldestAt == 0 || (record.CreatedAt != 0 && record.CreatedAt < stats.OldestAt) {
			stats.OldestAt = record.CreatedAt
		}
	}
	if stats.Total == 0 {
		stats.OldestAt = 0
		stats.NewestAt = 0
	}
	return stats, nil
}

// Close 对内存存储无需操作。
func (m *MemoryStore) Close() error {
	return nil
}

var _ Store = (*MemoryStore)(nil)
