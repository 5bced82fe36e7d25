package reactive

import (
	"encoding/json"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/google/uuid"

	xerrors "github.com/Jaden-Nix/gravity-nexus/internal/errors"
)

// Event 是投递通道中的消息载体：一条远端账本日志的快照。
// 其中携带的数据只用于路由与审计，利率等决策输入永远
// 以评估时刻的新鲜读取为准。
type Event struct {
	ID     string         `json:"id"`
	Ledger string         `json:"ledger"`
	Source common.Address `json:"source"`
	Topics []common.Hash  `json:"topics"`
	Data   []byte         `json:"data,omitempty"`

	BlockNumber uint64      `json:"block_number"`
	TxHash      common.Hash `json:"tx_hash"`
	// ObservedAt 为本地观测到日志的 Unix 秒级时间戳。
	ObservedAt int64 `json:"observed_at"`
}

// NewEvent 从一条链上日志构造事件。
func NewEvent(ledger string, log types.Log) *Event {
	return &Event{
		ID:          uuid.NewString(),
		Ledger:      ledger,
		Source:      log.Address,
		Topics:      append([]common.Hash(nil), log.Topics...),
		Data:        append([]byte(nil), log.Data...),
		BlockNumber: log.BlockNumber,
		TxHash:      log.TxHash,
		ObservedAt:  time.Now().Unix(),
	}
}

// Selector 返回事件的选择子（第一个 topic）。没有 topic 时返回零值。
func (e *Event) Selector() common.Hash {
	if len(e.Topics) == 0 {
		return common.Hash{}
	}
	return e.Topics[0]
}

// Encode 将事件序列化为队列载荷。
func (e *Event) Encode() ([]byte, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeQueueFailure, err, "序列化事件失败")
	}
	return payload, nil
}

// DecodeEvent 从队列载荷还原事件。
func DecodeEvent(payload []byte) (*Event, error) {
	var event Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeQueueFailure, err, "反序列化事件失败")
	}
	if event.ID == "" {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "事件缺少 ID")
	}
	return &event, nil
}
