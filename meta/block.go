package meta

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// 交易类型
const (
	Transfer int = iota // 0: 转账交易
	Publish             // 1: 发布合约
	Invoke              // 2: 调用合约
)

type Transaction struct {
	From      common.Address `json:"from"`
	To        common.Address `json:"to"`
	Contract  string         `json:"contract"` // 发布合约时为合约名称
	Method    string         `json:"method"`
	Args      []string       `json:"args"`
	Value     *big.Int       `json:"value"`
	Nonce     uint64         `json:"nonce"`
	Timestamp string         `json:"timestamp"`
	Hash      common.Hash    `json:"hash"`
	Type      int            `json:"type"`
}

// 交易回执
type Receipt struct {
	TxHash            common.Hash    `json:"tx_hash"`
	Status            uint64         `json:"status"` // 1: 成功; 0: 失败并已回滚
	BlockNumber       uint64         `json:"block_number"`
	GasUsed           uint64         `json:"gas_used"`
	EffectiveGasPrice *big.Int       `json:"effective_gas_price"`
	ContractAddress   common.Address `json:"contract_address"`
	Logs              []Event        `json:"logs"`
	Result            interface{}    `json:"result"`
	Error             string         `json:"error"`
}

// 交易手续费 gasUsed * effectiveGasPrice
func (r Receipt) GasCost() *big.Int {
	if r.EffectiveGasPrice == nil {
		return new(big.Int)
	}
	return new(big.Int).Mul(new(big.Int).SetUint64(r.GasUsed), r.EffectiveGasPrice)
}

type Block struct {
	Height    uint64        `json:"height"`
	Timestamp string        `json:"timestamp"`
	PrevHash  common.Hash   `json:"prev_hash"`
	TxRoot    common.Hash   `json:"tx_root"`
	StateRoot common.Hash   `json:"state_root"` // 出块后的账户状态树根
	Hash      common.Hash   `json:"hash"`
	TX        []Transaction `json:"tx"`
}
