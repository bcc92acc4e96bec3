package chain

import (
	"github.com/cloudflare/cfssl/log"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/fundme/meta"
)

// 合约地址由部署者地址和 nonce 推导
func contractAddress(deployer common.Address, nonce uint64) common.Address {
	return crypto.CreateAddress(deployer, nonce)
}

//根据交易hash定位到所在区块的高度,以及该交易在交易列表中的序号
func (c *Chain) LocateBlockHeightWithTran(hash common.Hash) (height uint64, sequence int, err error) {
	blocks, err := c.store.Blocks()
	if err != nil {
		return 0, -1, err
	}
	for _, b := range blocks {
		for seq, tx := range b.TX {
			if tx.Hash == hash {
				return b.Height, seq, nil
			}
		}
	}
	log.Errorf("未能定位到该笔交易: %s", hash.Hex())
	return 0, -1, ErrReceiptNotFound
}

// 查询交易
func (c *Chain) Transaction(hash common.Hash) (meta.Transaction, error) {
	height, seq, err := c.LocateBlockHeightWithTran(hash)
	if err != nil {
		return meta.Transaction{}, err
	}
	b, err := c.store.Block(height)
	if err != nil {
		return meta.Transaction{}, err
	}
	return b.TX[seq], nil
}
