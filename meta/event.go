package meta

import (
	"github.com/ethereum/go-ethereum/common"
)

// 合约执行过程中产生的事件，交易提交成功后才会推送
type Event struct {
	Contract    common.Address    `json:"contract"`     // 事件定义方（合约地址）
	Name        string            `json:"name"`         // 事件名称
	Args        map[string]string `json:"args"`         // 事件参数
	BlockNumber uint64            `json:"block_number"` // 所在区块高度
	TxHash      common.Hash       `json:"tx_hash"`
	Index       int               `json:"index"` // 在交易中的序号
}
