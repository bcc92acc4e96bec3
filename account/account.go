package account

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"strings"
	"sync"

	"github.com/cloudflare/cfssl/log"
	"github.com/ethereum/go-ethereum/common"
	"github.com/fundme/commoncon"
	"github.com/fundme/meta"
)

/* 这里封装了所有的对账户的操作
 * 普通账户和合约账户都以地址为 key 存储在 State 中
 * 每次修改都会同步写入 Store（如果配置了的话）
 */

var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrRejectsFunds        = errors.New("receiver rejects funds")
	ErrAccountExists       = errors.New("account already exists")
	ErrInvalidAmount       = errors.New("invalid amount")
)

// 持久化接口，levelDB.DB 实现了该接口
type Store interface {
	Put(key string, value []byte) error
	Delete(key string) error
	Iterate(prefix string, fn func(key string, value []byte) error) error
}

type State struct {
	mu       sync.RWMutex
	accounts map[common.Address]meta.Account // key: 账户地址 - val: 账户信息
	store    Store
}

func NewState(store Store) *State {
	return &State{
		accounts: map[common.Address]meta.Account{},
		store:    store,
	}
}

// 创建普通账户
func (s *State) CreateAccount(address common.Address, balance *big.Int) (meta.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[address]; ok {
		return meta.Account{}, fmt.Errorf("%w: %s", ErrAccountExists, address.Hex())
	}
	acc := meta.Account{Address: address, Balance: new(big.Int)}
	if balance != nil {
		acc.Balance.Set(balance)
	}
	s.accounts[address] = acc
	s.putIntoDisk(acc)
	return acc.Copy(), nil
}

// 创建智能合约账户，地址已存在时（例如提前转账）保留原有余额
func (s *State) CreateContract(address common.Address, name string) meta.Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[address]
	if !ok {
		acc = meta.Account{Address: address, Balance: new(big.Int)}
	}
	acc.IsContract = true
	acc.ContractName = name
	s.accounts[address] = acc
	s.putIntoDisk(acc)
	return acc.Copy()
}

// 设置账户是否拒绝接收转账（模拟没有 receive 的合约）
func (s *State) SetRejectsFunds(address common.Address, rejects bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc := s.getOrEmpty(address)
	acc.RejectsFunds = rejects
	s.accounts[address] = acc
	s.putIntoDisk(acc)
}

// 账户地址是否存在
func (s *State) ContainsAddress(address common.Address) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.accounts[address]
	return ok
}

// 获取账户信息
func (s *State) GetAccount(address common.Address) (meta.Account, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	acc, ok := s.accounts[address]
	if !ok {
		return meta.Account{Address: address, Balance: new(big.Int)}, false
	}
	return acc.Copy(), true
}

func (s *State) BalanceOf(address common.Address) *big.Int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	acc, ok := s.accounts[address]
	if !ok || acc.Balance == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(acc.Balance)
}

func (s *State) Nonce(address common.Address) uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accounts[address].Nonce
}

func (s *State) IncNonce(address common.Address) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc := s.getOrEmpty(address)
	acc.Nonce++
	s.accounts[address] = acc
	s.putIntoDisk(acc)
	return acc.Nonce
}

// 判断交易发起方是否有足够余额
func (s *State) CanTransfer(sender common.Address, amount *big.Int) bool {
	if amount == nil || amount.Sign() == 0 {
		return true
	}
	if s.BalanceOf(sender).Cmp(amount) < 0 {
		log.Infof("[CanTransfer]: Insufficient balance of %s.", sender.Hex())
		return false
	}
	return true
}

// 转账，失败时双方余额均不变
func (s *State) Transfer(from, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	if amount.Sign() < 0 {
		return fmt.Errorf("%w: %s", ErrInvalidAmount, amount)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sender := s.getOrEmpty(from)
	if sender.Balance.Cmp(amount) < 0 {
		log.Infof("[Transfer]: Insufficient balance of %s.", from.Hex())
		return fmt.Errorf("%w: %s has %s, needs %s", ErrInsufficientBalance, from.Hex(), sender.Balance, amount)
	}
	receiver := s.getOrEmpty(to)
	if receiver.RejectsFunds {
		return fmt.Errorf("%w: %s", ErrRejectsFunds, to.Hex())
	}
	if from == to {
		return nil
	}
	sender.Balance = new(big.Int).Sub(sender.Balance, amount)
	receiver.Balance = new(big.Int).Add(receiver.Balance, amount)
	s.accounts[from] = sender
	s.accounts[to] = receiver
	s.putIntoDisk(sender)
	s.putIntoDisk(receiver)
	return nil
}

// 直接增加余额（水龙头、手续费收入）
func (s *State) AddBalance(receiver common.Address, amount *big.Int) {
	if amount == nil || amount.Sign() <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	acc := s.getOrEmpty(receiver)
	acc.Balance = new(big.Int).Add(acc.Balance, amount)
	s.accounts[receiver] = acc
	s.putIntoDisk(acc)
}

// 扣除余额（手续费）
func (s *State) SubBalance(sender common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	acc := s.getOrEmpty(sender)
	if acc.Balance.Cmp(amount) < 0 {
		log.Infof("[SubBalance]: Insufficient balance of %s.", sender.Hex())
		return fmt.Errorf("%w: %s", ErrInsufficientBalance, sender.Hex())
	}
	acc.Balance = new(big.Int).Sub(acc.Balance, amount)
	s.accounts[sender] = acc
	s.putIntoDisk(acc)
	return nil
}

// 账户状态快照，用于交易执行失败时回滚
type Snapshot map[common.Address]meta.Account

func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := make(Snapshot, len(s.accounts))
	for addr, acc := range s.accounts {
		snap[addr] = acc.Copy()
	}
	return snap
}

// 回滚到快照，快照之后新建的账户会被删除
func (s *State) Revert(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for addr := range s.accounts {
		if _, ok := snap[addr]; !ok {
			delete(s.accounts, addr)
			s.deleteFromDisk(addr)
		}
	}
	for addr, acc := range snap {
		s.accounts[addr] = acc.Copy()
		s.putIntoDisk(acc)
	}
}

// 获取所有的账户地址（按地址排序）
func (s *State) GetTotalAddress() []common.Address {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total := make([]common.Address, 0, len(s.accounts))
	for addr := range s.accounts {
		total = append(total, addr)
	}
	sort.Slice(total, func(i, j int) bool {
		return strings.Compare(total[i].Hex(), total[j].Hex()) < 0
	})
	return total
}

// 是否为智能合约账户地址
func (s *State) IsContractAccount(address common.Address) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accounts[address].IsContract
}

// 从磁盘获取已有的账户信息（在节点启动时执行）
func (s *State) LoadFromDisk() error {
	if s.store == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Iterate(commoncon.AccountPrefixKey, func(key string, value []byte) error {
		var acc meta.Account
		if err := json.Unmarshal(value, &acc); err != nil {
			log.Errorf("[LoadFromDisk] bad account record %s: %v", key, err)
			return err
		}
		if acc.Balance == nil {
			acc.Balance = new(big.Int)
		}
		s.accounts[acc.Address] = acc
		return nil
	})
}

func (s *State) getOrEmpty(address common.Address) meta.Account {
	acc, ok := s.accounts[address]
	if !ok {
		return meta.Account{Address: address, Balance: new(big.Int)}
	}
	if acc.Balance == nil {
		acc.Balance = new(big.Int)
	}
	return acc
}

// 持久化（每次对账户信息的更改都需要持久化到磁盘）
func (s *State) putIntoDisk(acc meta.Account) {
	if s.store == nil {
		return
	}
	bytes, err := json.Marshal(acc)
	if err != nil {
		log.Errorf("[putIntoDisk] marshal account %s: %v", acc.Address.Hex(), err)
		return
	}
	if err := s.store.Put(accountKey(acc.Address), bytes); err != nil {
		log.Errorf("[putIntoDisk] put account %s: %v", acc.Address.Hex(), err)
	}
}

func (s *State) deleteFromDisk(address common.Address) {
	if s.store == nil {
		return
	}
	if err := s.store.Delete(accountKey(address)); err != nil {
		log.Errorf("[deleteFromDisk] delete account %s: %v", address.Hex(), err)
	}
}

func accountKey(address common.Address) string {
	return commoncon.AccountPrefixKey + address.Hex()
}
