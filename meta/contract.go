package meta

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// 已部署合约的记录
type Deployment struct {
	Name        string         `json:"name"`
	Contract    string         `json:"contract"`
	Address     common.Address `json:"address"`
	Args        []string       `json:"args"`
	TxHash      common.Hash    `json:"tx_hash"`
	BlockNumber uint64         `json:"block_number"`
	Deployer    common.Address `json:"deployer"`
	DeployedAt  time.Time      `json:"deployed_at"`
}
