package util

import (
	"encoding/json"

	"github.com/cloudflare/cfssl/log"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/fundme/meta"
)

//计算hash摘要
func CalculateHash(msg []byte) common.Hash {
	return crypto.Keccak256Hash(msg)
}

//计算交易hash（不含 Hash 字段本身）
func CalculateTxHash(tx meta.Transaction) common.Hash {
	tx.Hash = common.Hash{}
	jt, err := json.Marshal(tx)
	if err != nil {
		log.Error("[CalculateTxHash] json marshal failed.err:", err)
	}
	return CalculateHash(jt)
}

//计算区块hash
func CalculateBlockHash(b meta.Block) common.Hash {
	b.Hash = common.Hash{}
	jb, err := json.Marshal(b)
	if err != nil {
		log.Error("[CalculateBlockHash] json marshal failed.err:", err)
	}
	return CalculateHash(jb)
}

//区块内交易hash的摘要
func CalculateTxRoot(txs []meta.Transaction) common.Hash {
	hashes := make([][]byte, 0, len(txs))
	for _, tx := range txs {
		hashes = append(hashes, tx.Hash.Bytes())
	}
	return crypto.Keccak256Hash(hashes...)
}
