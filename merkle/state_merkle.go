package merkle

import (
	"bytes"
	"encoding/json"
	"errors"
	"sort"

	"github.com/cloudflare/cfssl/log"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/rawdb"
	"github.com/ethereum/go-ethereum/ethdb/memorydb"
	"github.com/ethereum/go-ethereum/trie"
	"github.com/ethereum/go-ethereum/triedb"
	"github.com/fundme/meta"
)

var ErrAccountNotInTree = errors.New("account not in state tree")

// 账户状态树：key 为账户地址，value 为账户的 json 编码
type StateTree struct {
	trie *trie.Trie
}

// Proof 账户存在性证明
type Proof struct {
	Address common.Address
	nodes   *memorydb.Database
}

// Build 由账户列表构造状态树，账户按地址排序后写入
func Build(accounts []meta.Account) (*StateTree, error) {
	sorted := append([]meta.Account(nil), accounts...)
	sort.Slice(sorted, func(i, j int) bool {
		return bytes.Compare(sorted[i].Address.Bytes(), sorted[j].Address.Bytes()) < 0
	})
	tr := trie.NewEmpty(triedb.NewDatabase(rawdb.NewMemoryDatabase(), nil))
	for _, acc := range sorted {
		value, err := json.Marshal(acc)
		if err != nil {
			log.Errorf("[Build] account marshal error: %s", err)
			return nil, err
		}
		if err := tr.Update(acc.Address.Bytes(), value); err != nil {
			return nil, err
		}
	}
	return &StateTree{trie: tr}, nil
}

func (t *StateTree) Root() common.Hash {
	return t.trie.Hash()
}

// 获取账户的 proof
func (t *StateTree) Prove(addr common.Address) (Proof, error) {
	value, err := t.trie.Get(addr.Bytes())
	if err != nil {
		return Proof{}, err
	}
	if len(value) == 0 {
		return Proof{}, ErrAccountNotInTree
	}
	nodes := memorydb.New()
	if err := t.trie.Prove(addr.Bytes(), nodes); err != nil {
		return Proof{}, err
	}
	return Proof{Address: addr, nodes: nodes}, nil
}

// Verify 校验 proof 并返回证明中的账户数据
func Verify(root common.Hash, proof Proof) (meta.Account, error) {
	if proof.nodes == nil {
		return meta.Account{}, ErrAccountNotInTree
	}
	value, err := trie.VerifyProof(root, proof.Address.Bytes(), proof.nodes)
	if err != nil {
		return meta.Account{}, err
	}
	if len(value) == 0 {
		return meta.Account{}, ErrAccountNotInTree
	}
	var acc meta.Account
	if err := json.Unmarshal(value, &acc); err != nil {
		return meta.Account{}, err
	}
	return acc, nil
}
