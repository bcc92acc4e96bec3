/* 众筹资金账本
 * 捐款按喂价换算为 USD，不低于 MinimumUSD 才会记录
 * owner 一次取走全部资金并清空账本
 */
package fundme

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/cloudflare/cfssl/log"
	"github.com/ethereum/go-ethereum/common"
	"github.com/fundme/contract"
	"github.com/fundme/oracle"
)

// 最低捐款额 50 USD（1e18 精度）
var MinimumUSD = new(big.Int).Mul(big.NewInt(50), big.NewInt(1e18))

// 账本状态：是否持有捐款
type State int

const (
	Open State = iota
	Emptied
)

func (s State) String() string {
	if s == Emptied {
		return "Emptied"
	}
	return "Open"
}

type Option func(*Ledger)

func WithMinimumUSD(min *big.Int) Option {
	return func(l *Ledger) {
		if min != nil {
			l.minimumUSD = new(big.Int).Set(min)
		}
	}
}

// 资金所在的账户地址
func WithAddress(self common.Address) Option {
	return func(l *Ledger) {
		l.self = self
	}
}

type Ledger struct {
	mu sync.Mutex

	self       common.Address
	owner      common.Address
	priceFeed  common.Address
	oracle     *oracle.Adapter
	bank       contract.Bank
	minimumUSD *big.Int

	addressToAmountFunded map[common.Address]*big.Int
	funders               []common.Address
}

// owner 与喂价地址创建后不再改变
func New(ctx context.Context, owner, priceFeed common.Address, resolver oracle.Resolver, bank contract.Bank, opts ...Option) (*Ledger, error) {
	adapter, err := oracle.NewAdapter(ctx, priceFeed, resolver)
	if err != nil {
		return nil, err
	}
	l := &Ledger{
		owner:                 owner,
		priceFeed:             priceFeed,
		oracle:                adapter,
		bank:                  bank,
		minimumUSD:            new(big.Int).Set(MinimumUSD),
		addressToAmountFunded: map[common.Address]*big.Int{},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// 记录一笔捐款（wei）。转账由调用方在此之前完成，失败时由调用方回滚
func (l *Ledger) Fund(ctx context.Context, sender common.Address, amount *big.Int) error {
	if amount == nil {
		amount = new(big.Int)
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	usd, err := l.oracle.ToUsd(ctx, amount)
	if err != nil {
		log.Warningf("[Fund] price feed %s: %v", l.priceFeed.Hex(), err)
		return err
	}
	if usd.Cmp(l.minimumUSD) < 0 {
		return &ContributionError{
			Amount:  new(big.Int).Set(amount),
			USD:     usd,
			Minimum: new(big.Int).Set(l.minimumUSD),
		}
	}

	prev, known := l.addressToAmountFunded[sender]
	if !known {
		prev = new(big.Int)
		l.funders = append(l.funders, sender)
	}
	l.addressToAmountFunded[sender] = new(big.Int).Add(prev, amount)
	log.Debugf("[Fund] %s funded %s wei (%s usd)", sender.Hex(), amount, usd)
	return nil
}

// 全部资金转给 owner 后清空账本，转账失败时账本不变
func (l *Ledger) Withdraw(ctx context.Context, caller common.Address) (*big.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if caller != l.owner {
		return nil, ErrNotOwner
	}
	amount := new(big.Int)
	if l.bank == nil {
		for _, v := range l.addressToAmountFunded {
			amount.Add(amount, v)
		}
	} else {
		amount = l.bank.BalanceOf(l.self)
		if err := l.bank.Transfer(l.self, l.owner, amount); err != nil {
			log.Errorf("[Withdraw] transfer %s wei to %s: %v", amount, l.owner.Hex(), err)
			return nil, fmt.Errorf("%w: %w", ErrTransferFailed, err)
		}
	}

	for _, funder := range l.funders {
		delete(l.addressToAmountFunded, funder)
	}
	l.funders = nil
	log.Infof("[Withdraw] %s wei sent to owner %s", amount, l.owner.Hex())
	return amount, nil
}

func (l *Ledger) GetPriceFeed() common.Address {
	return l.priceFeed
}

func (l *Ledger) GetOwner() common.Address {
	return l.owner
}

func (l *Ledger) Address() common.Address {
	return l.self
}

func (l *Ledger) MinimumUSD() *big.Int {
	return new(big.Int).Set(l.minimumUSD)
}

// 未捐款的地址返回 0
func (l *Ledger) GetAddressToAmountFunded(funder common.Address) *big.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if v, ok := l.addressToAmountFunded[funder]; ok {
		return new(big.Int).Set(v)
	}
	return new(big.Int)
}

func (l *Ledger) GetFunder(index uint64) (common.Address, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if index >= uint64(len(l.funders)) {
		return common.Address{}, fmt.Errorf("%w: %d >= %d", ErrIndexOutOfRange, index, len(l.funders))
	}
	return l.funders[index], nil
}

func (l *Ledger) FunderCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.funders)
}

func (l *Ledger) GetVersion(ctx context.Context) (*big.Int, error) {
	return l.oracle.Version(ctx)
}

func (l *Ledger) GetLatestPrice(ctx context.Context) (*big.Int, error) {
	return l.oracle.GetLatestPrice(ctx)
}

func (l *Ledger) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.funders) == 0 {
		return Emptied
	}
	return Open
}

// 账本快照
type Snapshot struct {
	Owner         common.Address              `json:"owner"`
	PriceFeed     common.Address              `json:"price_feed"`
	MinimumUSD    *big.Int                    `json:"minimum_usd"`
	Funders       []common.Address            `json:"funders"`
	Contributions map[common.Address]*big.Int `json:"contributions"`
	State         string                      `json:"state"`
}

func (l *Ledger) Snapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	snap := Snapshot{
		Owner:         l.owner,
		PriceFeed:     l.priceFeed,
		MinimumUSD:    new(big.Int).Set(l.minimumUSD),
		Funders:       append([]common.Address(nil), l.funders...),
		Contributions: make(map[common.Address]*big.Int, len(l.addressToAmountFunded)),
		State:         Open.String(),
	}
	for addr, v := range l.addressToAmountFunded {
		snap.Contributions[addr] = new(big.Int).Set(v)
	}
	if len(l.funders) == 0 {
		snap.State = Emptied.String()
	}
	return snap
}
