package policy

import (
	"math/big"
	"sync"

	"github.com/Jaden-Nix/gravity-nexus/internal/vault"
)

// DefaultThreshold 是默认的调仓阈值：100 基点，即 1%。
const DefaultThreshold uint64 = 100

// Intent 描述一次待执行的调仓意图。只在单个评估周期内存在，从不落盘。
type Intent struct {
	FromIndex int
	ToIndex   int
	Amount    *big.Int
	// RateGap 是触发本次意图的利率差（基点）。
	RateGap uint64
}

// Engine 是纯决策引擎：给定池子快照与可迁移金额，判断是否需要调仓。
// 引擎刻意不做连续优化，而是带阈值的迟滞比较器：只有利差严格超过
// 阈值才动仓，避免两个池子利率接近且抖动时来回震荡。
type Engine struct {
	mu        sync.RWMutex
	threshold uint64
}

// NewEngine 创建策略引擎。threshold 为零时使用默认阈值。
func NewEngine(threshold uint64) *Engine {
	if threshold == 0 {
		threshold = DefaultThreshold
	}
	return &Engine{threshold: threshold}
}

// Threshold 返回当前阈值（基点）。每次评估时现读。
func (e *Engine) Threshold() uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.threshold
}

// SetThreshold 更新阈值。仅限所有者路径调用。
func (e *Engine) SetThreshold(threshold uint64) {
	e.mu.Lock()
	e.threshold = threshold
	e.mu.Unlock()
}

// Evaluate 对快照做一次完整评估。返回 nil 表示无需调仓，这是一个
// 正常的终止结果而非错误。
//
// 算法：
//  1. 池子不足两个，无动作。
//  2. 找出利率最高与最低的池子（并列取下标较小者）。
//  3. 利差未严格超过阈值，无动作。
//  4. 资金所在的池子（余额最大者）已经是利率最高的池子，无动作。
//  5. 否则产生调仓意图，金额为 min(amountToMove, 源池余额)。
func (e *Engine) Evaluate(pools []vault.PoolSnapshot, amountToMove *big.Int) *Intent {
	if len(pools) < 2 || amountToMove == nil || amountToMove.Sign() <= 0 {
		return nil
	}

	iMax, iMin := 0, 0
	for i, pool := range pools {
		if pool.Rate > pools[iMax].Rate {
			iMax = i
		}
		if pool.Rate < pools[iMin].Rate {
			iMin = i
		}
	}
	if iMax == iMin {
		return nil
	}

	gap := pools[iMax].Rate - pools[iMin].Rate
	if gap <= e.Threshold() {
		return nil
	}

	// 资金当前所在的池子：余额最大者，并列取下标较小者。
	iFrom := 0
	for i, pool := range pools {
		if pool.Balance != nil && pool.Balance.Cmp(balanceOf(pools[iFrom])) > 0 {
			iFrom = i
		}
	}
	if balanceOf(pools[iFrom]).Sign() == 0 {
		return nil
	}
	if iFrom == iMax {
		// 资金已在最优池，重复评估自然退化为无动作，
		// 这也是重复投递事件时幂等性的来源。
		return nil
	}

	amount := new(big.Int).Set(amountToMove)
	if balanceOf(pools[iFrom]).Cmp(amount) < 0 {
		amount.Set(balanceOf(pools[iFrom]))
	}
	return &Intent{FromIndex: iFrom, ToIndex: iMax, Amount: amount, RateGap: gap}
}

func balanceOf(pool vault.PoolSnapshot) *big.Int {
	if pool.Balance == nil {
		return new(big.Int)
	}
	return pool.Balance
}
