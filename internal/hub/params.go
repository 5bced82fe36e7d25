package hub

import (
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"

	xerrors "github.com/Jaden-Nix/gravity-nexus/internal/errors"
)

// 动作参数沿用 ABI 编码，保证与远端账本侧的编码器逐字节兼容。
var (
	uint256Type abi.Type

	rebalanceArguments abi.Arguments
	lendArguments      abi.Arguments
)

func init() {
	var err error
	uint256Type, err = abi.NewType("uint256", "", nil)
	if err != nil {
		panic("hub: 构建 uint256 ABI 类型失败: " + err.Error())
	}
	rebalanceArguments = abi.Arguments{
		{Name: "fromIndex", Type: uint256Type},
		{Name: "toIndex", Type: uint256Type},
		{Name: "amount", Type: uint256Type},
	}
	lendArguments = abi.Arguments{
		{Name: "amount", Type: uint256Type},
	}
}

// EncodeRebalanceParams 将再平衡参数编码为 (uint256,uint256,uint256)。
func EncodeRebalanceParams(fromIndex, toIndex int, amount *big.Int) ([]byte, error) {
	if fromIndex < 0 || toIndex < 0 {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "池下标不能为负数")
	}
	if amount == nil {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "amount 不能为空")
	}
	return rebalanceArguments.Pack(big.NewInt(int64(fromIndex)), big.NewInt(int64(toIndex)), new(big.Int).Set(amount))
}

// DecodeRebalanceParams 解码 REBALANCE 动作参数。
func DecodeRebalanceParams(params []byte) (fromIndex, toIndex int, amount *big.Int, err error) {
	values, err := rebalanceArguments.Unpack(params)
	if err != nil {
		return 0, 0, nil, xerrors.Wrap(xerrors.CodeInvalidArgument, err, "解码 REBALANCE 参数失败")
	}
	from, ok := values[0].(*big.Int)
	if !ok {
		return 0, 0, nil, xerrors.New(xerrors.CodeInvalidArgument, "fromIndex 类型不正确")
	}
	to, ok := values[1].(*big.Int)
	if !ok {
		return 0, 0, nil, xerrors.New(xerrors.CodeInvalidArgument, "toIndex 类型不正确")
	}
	amt, ok := values[2].(*big.Int)
	if !ok {
		return 0, 0, nil, xerrors.New(xerrors.CodeInvalidArgument, "amount 类型不正确")
	}
	if !from.IsInt64() || !to.IsInt64() {
		return 0, 0, nil, xerrors.New(xerrors.CodeIndexOutOfBounds, "池下标超出可表示范围")
	}
	return int(from.Int64()), int(to.Int64()), amt, nil
}

// EncodeLendParams 将出借参数编码为 (uint256)。
func EncodeLendParams(amount *big.Int) ([]byte, error) {
	if amount == nil {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "amount 不能为空")
	}
	return lendArguments.Pack(new(big.Int).Set(amount))
}

// DecodeLendParams 解码 LEND 动作参数。
func DecodeLendParams(params []byte) (*big.Int, error) {
	values, err := lendArguments.Unpack(params)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeInvalidArgument, err, "解码 LEND 参数失败")
	}
	amount, ok := values[0].(*big.Int)
	if !ok {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "amount 类型不正确")
	}
	return amount, nil
}
