package reactive

import (
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// Subscription 描述一条事件订阅：某个账本上的某个事件源
// 发出带指定选择子的日志时，指定的订阅方希望收到回调。
type Subscription struct {
	ID     string         `json:"id"`
	Ledger string         `json:"ledger"`
	// Source 为远端账本上的事件发出方。
	Source common.Address `json:"source"`
	// Selector 为事件签名哈希（第一个 topic）。
	Selector common.Hash `json:"selector"`
	// Subscriber 为希望被回调的主体。
	Subscriber common.Address `json:"subscriber"`
	CreatedAt  int64          `json:"created_at"`
}

type subscriptionKey struct {
	ledger   string
	source   common.Address
	selector common.Hash
}

// Registry 保存全部订阅。订阅只增不删，重复订阅是幂等的：
// 同一 (ledger, source, selector) 三元组始终对应同一条记录。
type Registry struct {
	mu   sync.RWMutex
	subs map[subscriptionKey]*Subscription
}

// NewRegistry 创建空的订阅注册表。
func NewRegistry() *Registry {
	return &Registry{subs: make(map[subscriptionKey]*Subscription)}
}

// Subscribe 登记一条订阅。重复登记返回已有记录，订阅方以
// 首次登记为准。
func (r *Registry) Subscribe(ledger string, source common.Address, selector common.Hash, subscriber common.Address) *Subscription {
	key := subscriptionKey{ledger: ledger, source: source, selector: selector}

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.subs[key]; ok {
		return existing
	}
	sub := &Subscription{
		ID:         uuid.NewString(),
		Ledger:     ledger,
		Source:     source,
		Selector:   selector,
		Subscriber: subscriber,
		CreatedAt:  time.Now().Unix(),
	}
	r.subs[key] = sub
	return sub
}

// Match 查找与事件匹配的订阅。没有匹配时返回 (nil, false)，
// 这不是错误：未被订阅的日志直接丢弃即可。
func (r *Registry) Match(event *Event) (*Subscription, bool) {
	if event == nil || len(event.Topics) == 0 {
		return nil, false
	}
	key := subscriptionKey{ledger: event.Ledger, source: event.Source, selector: event.Selector()}

	r.mu.RLock()
	defer r.mu.RUnlock()
	sub, ok := r.subs[key]
	return sub, ok
}

// List 返回全部订阅的副本。
func (r *Registry) List() []*Subscription {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]*Subscription, 0, len(r.subs))
	for _, sub := range r.subs {
		clone := *sub
		result = append(result, &clone)
	}
	return result
}

// Sources 汇总某个账本上被订阅的事件源地址，用于构建日志过滤器。
func (r *Registry) Sources(ledger string) []common.Address {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := make(map[common.Address]struct{})
	var addresses []common.Address
	for key := range r.subs {
		if key.ledger != ledger {
			continue
		}
		if _, ok := seen[key.source]; ok {
			continue
		}
		seen[key.source] = struct{}{}
		addresses = append(addresses, key.source)
	}
	return addresses
}
