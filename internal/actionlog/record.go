package actionlog

import (
	xerrors "github.com/Jaden-Nix/gravity-nexus/internal/errors"
)

// Trigger 标识一次自动化动作的触发来源。
type Trigger string

const (
	// TriggerEvent 表示由远端账本的日志事件触发。
	TriggerEvent Trigger = "event"
	// TriggerOracle 表示由预测信号触发。
	TriggerOracle Trigger = "oracle"
	// TriggerManual 表示由运维接口手工触发。
	TriggerManual Trigger = "manual"
)

// 自动化结果的标准描述。监控方仅凭 Outcome 即可区分
// “评估后无事可做”、“执行成功”与“执行失败”。
const (
	OutcomeRebalanced = "Rebalance Success"
	OutcomeNoAction   = "No Rebalance Needed"
	OutcomeFailed     = "Rebalance Failed"
)

// Record 对应一次跨账本回调的结构化结果。创建后只读，从不修改。
type Record struct {
	ID         string  `json:"id"`
	ActionType string  `json:"action_type"`
	Trigger    Trigger `json:"trigger"`
	EventID    string  `json:"event_id,omitempty"`
	Ledger     string  `json:"ledger,omitempty"`
	FromIndex  int     `json:"from_index"`
	ToIndex    int     `json:"to_index"`
	// Amount 以十进制字符串保存，避免精度损失。
	Amount  string `json:"amount,omitempty"`
	RateGap uint64 `json:"rate_gap,omitempty"`
	OK      bool   `json:"ok"`
	Outcome string `json:"outcome"`
	Reason  string `json:"reason,omitempty"`
	// CreatedAt 为 Unix 秒级时间戳。
	CreatedAt int64 `json:"created_at"`
}

var (
	// ErrRecordNotFound 表示指定的动作记录不存在。
	ErrRecordNotFound = xerrors.New(xerrors.CodeNotFound, "action record not found")
	// ErrRecordConflict 表示动作记录 ID 已存在。
	ErrRecordConflict = xerrors.New(xerrors.CodeConflict, "action record conflict", xerrors.WithSeverity(xerrors.SeverityWarning))
)
