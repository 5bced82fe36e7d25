package vault

import (
	"context"
	"math/big"
	"sync"

	xerrors "github.com/Jaden-Nix/gravity-nexus/internal/errors"
)

// Adapter 抽象了一个外部收益池。金库只依赖两项能力：
// 汇报当前利率（基点）与持仓余额，并接受资金的存入与取出。
// 池子内部的收益机制不在本系统范围内。
type Adapter interface {
	// CurrentRate 返回池子当前的年化利率，单位为基点（1bp = 0.01%）。
	CurrentRate(ctx context.Context) (uint64, error)
	// TotalHeld 返回池子当前持有的资产数量。
	TotalHeld(ctx context.Context) (*big.Int, error)
	// Deposit 向池子存入资金。
	Deposit(ctx context.Context, amount *big.Int) error
	// Withdraw 从池子取出资金，返回实际取出的数量。
	Withdraw(ctx context.Context, amount *big.Int) (*big.Int, error)
}

// MemoryAdapter 是进程内的收益池实现，镜像链上池子的利率与余额。
// 利率变化时通过回调通知订阅方，对应链上池子的 RateUpdated 事件。
type MemoryAdapter struct {
	mu      sync.RWMutex
	rate    uint64
	balance *big.Int
	onRate  func(rate uint64)
}

// NewMemoryAdapter 创建一个利率固定为 rate（基点）的空池。
func NewMemoryAdapter(rate uint64) *MemoryAdapter {
	return &MemoryAdapter{rate: rate, balance: new(big.Int)}
}

// OnRateUpdated 注册利率变化的通知回调。回调在 SetRate 持锁之外执行。
func (a *MemoryAdapter) OnRateUpdated(fn func(rate uint64)) {
	a.mu.Lock()
	a.onRate = fn
	a.mu.Unlock()
}

// SetRate 更新池子利率并触发通知。
func (a *MemoryAdapter) SetRate(rate uint64) {
	a.mu.Lock()
	a.rate = rate
	notify := a.onRate
	a.mu.Unlock()
	if notify != nil {
		notify(rate)
	}
}

// CurrentRate 实现 Adapter 接口。
func (a *MemoryAdapter) CurrentRate(context.Context) (uint64, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.rate, nil
}

// TotalHeld 实现 Adapter 接口。
func (a *MemoryAdapter) TotalHeld(context.Context) (*big.Int, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return new(big.Int).Set(a.balance), nil
}

// Deposit 实现 Adapter 接口。
func (a *MemoryAdapter) Deposit(_ context.Context, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return xerrors.New(xerrors.CodeInvalidAmount, "")
	}
	a.mu.Lock()
	a.balance.Add(a.balance, amount)
	a.mu.Unlock()
	return nil
}

// Withdraw 实现 Adapter 接口。请求超出余额时整体失败，
// 余额裁剪策略由金库层负责。
func (a *MemoryAdapter) Withdraw(_ context.Context, amount *big.Int) (*big.Int, error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, xerrors.New(xerrors.CodeInvalidAmount, "")
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.balance.Cmp(amount) < 0 {
		return nil, xerrors.New(xerrors.CodeInsufficientBalance, "池内余额不足")
	}
	a.balance.Sub(a.balance, amount)
	return new(big.Int).Set(amount), nil
}

var _ Adapter = (*MemoryAdapter)(nil)
