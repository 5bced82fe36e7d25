package hub

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	xerrors "github.com/Jaden-Nix/gravity-nexus/internal/errors"
	"github.com/Jaden-Nix/gravity-nexus/internal/vault"
	"github.com/Jaden-Nix/gravity-nexus/pkg/logger"
)

// 远端可调用的动作名称。
const (
	ActionRebalance = "REBALANCE"
	ActionLend      = "LEND"
)

// Outcome 描述一次远端动作的执行结果。它是跨账本边界的
// 软报告：对端无法消费本地 panic 或 error，只能读取这份结构。
type Outcome struct {
	OK bool `json:"ok"`
	// Moved 为 REBALANCE 实际搬动的数量（十进制字符串），其余动作为空。
	Moved  string `json:"moved,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// Hub 是远端执行枢纽：校验来调用方身份，并把具名动作
// 分发到金库。只有 owner 可以调整配置，只有登记过的
// reactive network 主体可以触发动作。
type Hub struct {
	mu sync.RWMutex

	owner common.Address
	// self 是 Hub 自身在金库中的记账主体，LEND 存入的资金挂在它名下。
	self common.Address

	vault           *vault.Vault
	reactiveNetwork common.Address
	// lendingPool 为 LEND 动作的目标适配器，未配置时为 nil。
	lendingPool vault.Adapter

	log *slog.Logger
}

// New 创建执行枢纽。self 作为 Hub 的记账身份。
func New(owner, self common.Address) *Hub {
	return &Hub{
		owner: owner,
		self:  self,
		log:   logger.Named("hub"),
	}
}

// Owner 返回枢纽的所有者。
func (h *Hub) Owner() common.Address { return h.owner }

// Self 返回枢纽自身的记账主体。
func (h *Hub) Self() common.Address { return h.self }

// SetVault 绑定目标金库。仅 owner 可调用。
func (h *Hub) SetVault(caller common.Address, v *vault.Vault) error {
	if caller != h.owner {
		return xerrors.New(xerrors.CodeUnauthorized, "仅 owner 可以绑定金库")
	}
	if v == nil {
		return xerrors.New(xerrors.CodeInvalidArgument, "vault 不能为空")
	}
	h.mu.Lock()
	h.vault = v
	h.mu.Unlock()
	return nil
}

// SetReactiveNetwork 登记唯一的自动化调用方。仅 owner 可调用。
func (h *Hub) SetReactiveNetwork(caller, principal common.Address) error {
	if caller != h.owner {
		return xerrors.New(xerrors.CodeUnauthorized, "仅 owner 可以登记 reactive network")
	}
	h.mu.Lock()
	h.reactiveNetwork = principal
	h.mu.Unlock()
	h.log.Info("reactive network 已更新", "principal", principal.Hex())
	return nil
}

// ReactiveNetwork 返回当前登记的自动化调用方。
func (h *Hub) ReactiveNetwork() common.Address {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.reactiveNetwork
}

// SetLendingPool 配置 LEND 动作的目标池。仅 owner 可调用。
func (h *Hub) SetLendingPool(caller common.Address, pool vault.Adapter) error {
	if caller != h.owner {
		return xerrors.New(xerrors.CodeUnauthorized, "仅 owner 可以配置出借池")
	}
	h.mu.Lock()
	h.lendingPool = pool
	h.mu.Unlock()
	return nil
}

// ExecuteAction 执行一次远端动作。调用方身份不符时返回硬错误；
// 动作本身的失败（未知动作、未配置出借池、金库拒绝）以
// Outcome 软报告返回，error 为 nil。
func (h *Hub) ExecuteAction(ctx context.Context, caller common.Address, actionType string, params []byte) (Outcome, error) {
	h.mu.RLock()
	// 进入回调时固化当时登记的主体，后续变更不影响本次执行。
	authorized := h.reactiveNetwork
	v := h.vault
	lending := h.lendingPool
	h.mu.RUnlock()

	if authorized == (common.Address{}) || caller != authorized {
		return Outcome{}, xerrors.New(xerrors.CodeUnauthorized, "调用方不是登记的 reactive network",
			xerrors.WithMetadata("caller", caller.Hex()))
	}

	switch actionType {
	case ActionRebalance:
		return h.executeRebalance(ctx, v, params)
	case ActionLend:
		return h.executeLend(ctx, lending, params)
	default:
		// 未知动作不触发硬失败，跨账本的对端拿到软报告即可。
		h.log.Warn("收到未知动作", "action", actionType)
		return Outcome{OK: false, Reason: fmt.Sprintf("unknown action type: %s", actionType)}, nil
	}
}

func (h *Hub) executeRebalance(ctx context.Context, v *vault.Vault, params []byte) (Outcome, error) {
	if v == nil {
		return Outcome{OK: false, Reason: "vault not configured"}, nil
	}
	fromIndex, toIndex, amount, err := DecodeRebalanceParams(params)
	if err != nil {
		return Outcome{OK: false, Reason: err.Error()}, nil
	}
	moved, err := v.MoveBetweenPools(ctx, h.self, fromIndex, toIndex, amount)
	if err != nil {
		h.log.Error("再平衡执行失败", "from", fromIndex, "to", toIndex, "error", err)
		return Outcome{OK: false, Reason: err.Error()}, nil
	}
	h.log.Info("再平衡执行完成", "from", fromIndex, "to", toIndex, "moved", moved.String())
	return Outcome{OK: true, Moved: moved.String()}, nil
}

func (h *Hub) executeLend(ctx context.Context, lending vault.Adapter, params []byte) (Outcome, error) {
	if lending == nil {
		return Outcome{OK: false, Reason: "lending pool not configured"}, nil
	}
	amount, err := DecodeLendParams(params)
	if err != nil {
		return Outcome{OK: false, Reason: err.Error()}, nil
	}
	if amount.Sign() <= 0 {
		return Outcome{OK: false, Reason: "lend amount must be positive"}, nil
	}
	if err := lending.Deposit(ctx, amount); err != nil {
		return Outcome{OK: false, Reason: err.Error()}, nil
	}
	h.log.Info("出借执行完成", "amount", amount.String())
	return Outcome{OK: true}, nil
}

// RecoverFunds 将 Hub 名下的全部金库份额取回。仅 owner 可调用。
func (h *Hub) RecoverFunds(ctx context.Context, caller common.Address) (*big.Int, error) {
	if caller != h.owner {
		return nil, xerrors.New(xerrors.CodeUnauthorized, "仅 owner 可以取回资金")
	}
	h.mu.RLock()
	v := h.vault
	h.mu.RUnlock()
	if v == nil {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "vault 尚未绑定")
	}
	claim := v.ClaimOf(h.self)
	if claim.Sign() == 0 {
		return big.NewInt(0), nil
	}
	if err := v.Withdraw(ctx, h.self, claim); err != nil {
		return nil, err
	}
	h.log.Info("资金已取回", "amount", claim.String())
	return claim, nil
}
