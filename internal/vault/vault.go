package vault

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	xerrors "github.com/Jaden-Nix/gravity-nexus/internal/errors"
)

var (
	// ErrInvalidAmount 表示金额为零或负数。
	ErrInvalidAmount = xerrors.New(xerrors.CodeInvalidAmount, "")
	// ErrInsufficientBalance 表示申领额度或可用流动性不足。
	ErrInsufficientBalance = xerrors.New(xerrors.CodeInsufficientBalance, "")
	// ErrIndexOutOfBounds 表示适配器下标越界。
	ErrIndexOutOfBounds = xerrors.New(xerrors.CodeIndexOutOfBounds, "")
	// ErrUnauthorized 表示调用者既不是所有者也不在授权名单内。
	ErrUnauthorized = xerrors.New(xerrors.CodeUnauthorized, "")
	// ErrPaused 表示金库处于暂停状态。
	ErrPaused = xerrors.New(xerrors.CodePaused, "")
	// ErrNoAdapters 表示金库尚未注册任何收益池。
	ErrNoAdapters = xerrors.New(xerrors.CodeInitializationFailure, "金库未注册收益池")
)

// PoolSnapshot 是一次策略评估时读取到的池子状态。
// 利率与余额在每次评估时现读，金库不做权威缓存。
type PoolSnapshot struct {
	Index   int      `json:"index"`
	Rate    uint64   `json:"rate"`
	Balance *big.Int `json:"balance"`
}

// RebalanceEvent 对应一次成功的池间调仓。
type RebalanceEvent struct {
	FromIndex int
	ToIndex   int
	Moved     *big.Int
}

// Vault 托管汇集的存款，维护只增不减的收益池注册表，
// 并提供在池子之间守恒地移动资金的原语。
// 所有变更操作经由单一互斥锁串行化，对应账本执行模型的单写者假设。
type Vault struct {
	mu          sync.Mutex
	asset       string
	owner       common.Address
	adapters    []Adapter
	claims      map[common.Address]*big.Int
	authorized  map[common.Address]bool
	paused      bool
	onRebalance func(RebalanceEvent)
}

// Option 定义金库的可选配置。
type Option func(*Vault)

// WithRebalanceListener 注册调仓事件回调，用于审计与监控。
func WithRebalanceListener(fn func(RebalanceEvent)) Option {
	return func(v *Vault) {
		v.onRebalance = fn
	}
}

// New 创建金库。资产在部署时固定，之后不可更换。
func New(asset string, owner common.Address, opts ...Option) *Vault {
	v := &Vault{
		asset:      asset,
		owner:      owner,
		claims:     make(map[common.Address]*big.Int),
		authorized: make(map[common.Address]bool),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(v)
		}
	}
	return v
}

// Asset 返回金库托管的资产标识。
func (v *Vault) Asset() string { return v.asset }

// Owner 返回金库所有者。
func (v *Vault) Owner() common.Address { return v.owner }

// Paused 返回暂停开关状态。
func (v *Vault) Paused() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.paused
}

// AddAdapter 追加一个收益池，返回其稳定下标。仅所有者可调用。
// 注册表只增不减，下标即身份。
func (v *Vault) AddAdapter(caller common.Address, adapter Adapter) (int, error) {
	if adapter == nil {
		return 0, xerrors.New(xerrors.CodeInvalidArgument, "adapter 不能为空")
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if caller != v.owner {
		return 0, ErrUnauthorized
	}
	index := len(v.adapters)
	v.adapters = append(v.adapters, adapter)
	return index, nil
}

// AdaptersCount 返回已注册的收益池数量。
func (v *Vault) AdaptersCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.adapters)
}

// AdapterAt 返回指定下标的收益池。
func (v *Vault) AdapterAt(index int) (Adapter, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if index < 0 || index >= len(v.adapters) {
		return nil, ErrIndexOutOfBounds
	}
	return v.adapters[index], nil
}

// SetAuthorization 更新授权名单。仅所有者可调用。
// 主体必须被显式启用后，才能调用特权操作。
func (v *Vault) SetAuthorization(caller, principal common.Address, enabled bool) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if caller != v.owner {
		return ErrUnauthorized
	}
	v.authorized[principal] = enabled
	return nil
}

// IsAuthorized 判断主体是否可以调用特权操作。
func (v *Vault) IsAuthorized(principal common.Address) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return principal == v.owner || v.authorized[principal]
}

// Pause 暂停金库。暂停期间拒绝存款与调仓，取款不受影响。
func (v *Vault) Pause(caller common.Address) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if caller != v.owner {
		return ErrUnauthorized
	}
	v.paused = true
	return nil
}

// Unpause 恢复金库。
func (v *Vault) Unpause(caller common.Address) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if caller != v.owner {
		return ErrUnauthorized
	}
	v.paused = false
	return nil
}

// Deposit 存入资金。新存款进入首个注册的池子（下标 0）。
func (v *Vault) Deposit(ctx context.Context, caller common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.paused {
		return ErrPaused
	}
	if len(v.adapters) == 0 {
		return ErrNoAdapters
	}
	if err := v.adapters[0].Deposit(ctx, amount); err != nil {
		return err
	}
	claim, ok := v.claims[caller]
	if !ok {
		claim = new(big.Int)
		v.claims[caller] = claim
	}
	claim.Add(claim, amount)
	return nil
}

// Withdraw 取出资金。即便金库处于暂停状态也允许取款，
// 保证用户永远不会被困在金库里。流动性按下标顺序从各池抽取。
func (v *Vault) Withdraw(ctx context.Context, caller common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	v.mu.Lock()
	defer v.mu.Unlock()

	claim := v.claims[caller]
	if claim == nil || claim.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}

	remaining := new(big.Int).Set(amount)
	var taken []withdrawnLeg
	for _, adapter := range v.adapters {
		if remaining.Sign() == 0 {
			break
		}
		held, err := adapter.TotalHeld(ctx)
		if err != nil {
			if restoreErr := restoreWithdrawn(ctx, taken); restoreErr != nil {
				return xerrors.Wrap(xerrors.CodeStorageFailure, restoreErr, "取款失败且回滚失败")
			}
			return xerrors.Wrap(xerrors.CodeLedgerFailure, err, "读取池余额失败")
		}
		if held.Sign() == 0 {
			continue
		}
		take := new(big.Int).Set(remaining)
		if held.Cmp(take) < 0 {
			take.Set(held)
		}
		if _, err := adapter.Withdraw(ctx, take); err != nil {
			// 把已经抽出的部分按原路回存，失败的取款不留下部分状态。
			if restoreErr := restoreWithdrawn(ctx, taken); restoreErr != nil {
				return xerrors.Wrap(xerrors.CodeStorageFailure, restoreErr, "取款失败且回滚失败")
			}
			return err
		}
		taken = append(taken, withdrawnLeg{adapter: adapter, amount: take})
		remaining.Sub(remaining, take)
	}
	if remaining.Sign() > 0 {
		if restoreErr := restoreWithdrawn(ctx, taken); restoreErr != nil {
			return xerrors.Wrap(xerrors.CodeStorageFailure, restoreErr, "取款失败且回滚失败")
		}
		return ErrInsufficientBalance
	}
	claim.Sub(claim, amount)
	return nil
}

// withdrawnLeg 记录一次取款中已经从某个池子抽出的资金。
type withdrawnLeg struct {
	adapter Adapter
	amount  *big.Int
}

// restoreWithdrawn 按抽出的相反顺序把资金回存各池。
func restoreWithdrawn(ctx context.Context, legs []withdrawnLeg) error {
	for i := len(legs) - 1; i >= 0; i-- {
		if err := legs[i].adapter.Deposit(ctx, legs[i].amount); err != nil {
			return err
		}
	}
	return nil
}

// ClaimOf 返回主体的申领额度。
func (v *Vault) ClaimOf(principal common.Address) *big.Int {
	v.mu.Lock()
	defer v.mu.Unlock()
	claim, ok := v.claims[principal]
	if !ok {
		return new(big.Int)
	}
	return new(big.Int).Set(claim)
}

// TotalAssets 返回所有池子持仓之和。
// 不变量：任一静止时刻该值等于全部存款的净额。
func (v *Vault) TotalAssets(ctx context.Context) (*big.Int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.totalAssetsLocked(ctx)
}

func (v *Vault) totalAssetsLocked(ctx context.Context) (*big.Int, error) {
	total := new(big.Int)
	for i, adapter := range v.adapters {
		held, err := adapter.TotalHeld(ctx)
		if err != nil {
			return nil, xerrors.Wrap(xerrors.CodeLedgerFailure, err, fmt.Sprintf("读取池 %d 余额失败", i))
		}
		total.Add(total, held)
	}
	return total, nil
}

// Snapshot 现读所有池子的利率与余额，供策略评估使用。
func (v *Vault) Snapshot(ctx context.Context) ([]PoolSnapshot, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	snapshots := make([]PoolSnapshot, 0, len(v.adapters))
	for i, adapter := range v.adapters {
		rate, err := adapter.CurrentRate(ctx)
		if err != nil {
			return nil, xerrors.Wrap(xerrors.CodeLedgerFailure, err, fmt.Sprintf("读取池 %d 利率失败", i))
		}
		balance, err := adapter.TotalHeld(ctx)
		if err != nil {
			return nil, xerrors.Wrap(xerrors.CodeLedgerFailure, err, fmt.Sprintf("读取池 %d 余额失败", i))
		}
		snapshots = append(snapshots, PoolSnapshot{Index: i, Rate: rate, Balance: balance})
	}
	return snapshots, nil
}

// MoveBetweenPools 在两个池子之间移动资金，返回实际移动的数量。
// 请求量超出源池余额时裁剪为可用余额而不是报错，避免外部并发取款
// 让合法的空转调仓白白失败。裁剪到零视为成功的空操作。
func (v *Vault) MoveBetweenPools(ctx context.Context, caller common.Address, fromIndex, toIndex int, amount *big.Int) (*big.Int, error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.paused {
		return nil, ErrPaused
	}
	if caller != v.owner && !v.authorized[caller] {
		return nil, ErrUnauthorized
	}
	if fromIndex < 0 || fromIndex >= len(v.adapters) || toIndex < 0 || toIndex >= len(v.adapters) {
		return nil, ErrIndexOutOfBounds
	}
	if fromIndex == toIndex {
		return new(big.Int), nil
	}

	from := v.adapters[fromIndex]
	to := v.adapters[toIndex]

	available, err := from.TotalHeld(ctx)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeLedgerFailure, err, "读取源池余额失败")
	}
	move := new(big.Int).Set(amount)
	if available.Cmp(move) < 0 {
		move.Set(available)
	}
	if move.Sign() == 0 {
		return new(big.Int), nil
	}

	withdrawn, err := from.Withdraw(ctx, move)
	if err != nil {
		return nil, err
	}
	if err := to.Deposit(ctx, withdrawn); err != nil {
		// 回存源池，维持资产守恒。
		if restoreErr := from.Deposit(ctx, withdrawn); restoreErr != nil {
			return nil, xerrors.Wrap(xerrors.CodeStorageFailure, restoreErr, "调仓失败且回滚失败")
		}
		return nil, err
	}

	if v.onRebalance != nil {
		v.onRebalance(RebalanceEvent{FromIndex: fromIndex, ToIndex: toIndex, Moved: new(big.Int).Set(withdrawn)})
	}
	return withdrawn, nil
}
