package meta

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

//账户

type Account struct {
	Address      common.Address `json:"address"`       //账户地址
	Balance      *big.Int       `json:"balance"`       //账户余额（wei）
	Nonce        uint64         `json:"nonce"`         //已发送交易数
	IsContract   bool           `json:"is_contract"`   //是否为合约账户
	ContractName string         `json:"contract_name"` //合约名称
	RejectsFunds bool           `json:"rejects_funds"` //是否拒绝接收转账
}

// 深拷贝，避免共享 Balance 指针
func (a Account) Copy() Account {
	c := a
	if a.Balance != nil {
		c.Balance = new(big.Int).Set(a.Balance)
	} else {
		c.Balance = new(big.Int)
	}
	return c
}

// 客户端注册账户后返回的信息
type ChainAccount struct {
	AccountAddress string `json:"account_address"`
	PublicKey      string `json:"public_key"`
	PrivateKey     string `json:"private_key"`
}
