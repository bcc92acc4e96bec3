package fundme

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/fundme/contract"
	"github.com/fundme/oracle"
	"github.com/fundme/oracle/mock"
	"gotest.tools/v3/assert"
)

var (
	self     = common.HexToAddress("0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512")
	feedAddr = common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")
	deployer = common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
	attacker = common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")

	sendValue = ether(1)
)

func ether(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(1e18))
}

type fakeBank struct {
	mu       sync.Mutex
	balances map[common.Address]*big.Int
	fail     error
}

func newBank() *fakeBank {
	return &fakeBank{balances: map[common.Address]*big.Int{}}
}

func (b *fakeBank) BalanceOf(addr common.Address) *big.Int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if v, ok := b.balances[addr]; ok {
		return new(big.Int).Set(v)
	}
	return new(big.Int)
}

func (b *fakeBank) Transfer(from, to common.Address, amount *big.Int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.fail != nil {
		return b.fail
	}
	fb := b.balances[from]
	if fb == nil {
		fb = new(big.Int)
	}
	if fb.Cmp(amount) < 0 {
		return errors.New("insufficient balance")
	}
	tb := b.balances[to]
	if tb == nil {
		tb = new(big.Int)
	}
	b.balances[from] = new(big.Int).Sub(fb, amount)
	b.balances[to] = new(big.Int).Add(tb, amount)
	return nil
}

type feeds map[common.Address]oracle.PriceFeed

func (f feeds) ResolveFeed(_ context.Context, addr common.Address) (oracle.PriceFeed, error) {
	if feed, ok := f[addr]; ok {
		return feed, nil
	}
	return nil, oracle.ErrFeedNotFound
}

type fixture struct {
	ledger *Ledger
	bank   *fakeBank
	feed   *mock.Aggregator
}

func setup(t *testing.T) *fixture {
	t.Helper()
	feed := mock.New(mock.DefaultDecimals, mock.DefaultInitialAnswer)
	bank := newBank()
	l, err := New(context.Background(), deployer, feedAddr, feeds{feedAddr: feed}, bank, WithAddress(self))
	assert.NilError(t, err)
	return &fixture{ledger: l, bank: bank, feed: feed}
}

// 模拟链上的 payable 调用：先转账，失败则退回
func (f *fixture) fund(from common.Address, amount *big.Int) error {
	f.bank.mu.Lock()
	cur := f.bank.balances[from]
	if cur == nil {
		cur = new(big.Int)
	}
	f.bank.balances[from] = new(big.Int).Add(cur, amount)
	f.bank.mu.Unlock()
	if err := f.bank.Transfer(from, self, amount); err != nil {
		return err
	}
	if err := f.ledger.Fund(context.Background(), from, amount); err != nil {
		_ = f.bank.Transfer(self, from, amount)
		return err
	}
	return nil
}

func TestConstructor(t *testing.T) {
	f := setup(t)
	assert.Equal(t, f.ledger.GetPriceFeed(), feedAddr)
	assert.Equal(t, f.ledger.GetOwner(), deployer)
	assert.Equal(t, f.ledger.MinimumUSD().Cmp(MinimumUSD), 0)
	assert.Equal(t, f.ledger.State(), Emptied)

	_, err := New(context.Background(), deployer, attacker, feeds{}, nil)
	assert.Assert(t, errors.Is(err, oracle.ErrFeedNotFound))
}

func TestFundNotEnough(t *testing.T) {
	f := setup(t)
	err := f.fund(deployer, big.NewInt(0))
	assert.Assert(t, errors.Is(err, ErrInsufficientContribution))
	assert.Assert(t, strings.Contains(err.Error(), "Didn't send enough!"))

	var ce *ContributionError
	assert.Assert(t, errors.As(err, &ce))
	assert.Equal(t, ce.Minimum.Cmp(MinimumUSD), 0)

	assert.Equal(t, f.ledger.FunderCount(), 0)
	assert.Equal(t, f.bank.BalanceOf(self).Sign(), 0)
}

func TestFundBoundary(t *testing.T) {
	f := setup(t)
	// 2000 USD/ETH 时 50 USD = 0.025 ETH
	exact := new(big.Int).Div(ether(1), big.NewInt(40))

	err := f.fund(attacker, new(big.Int).Sub(exact, big.NewInt(1)))
	assert.Assert(t, errors.Is(err, ErrInsufficientContribution))

	assert.NilError(t, f.fund(attacker, exact))
	assert.Equal(t, f.ledger.GetAddressToAmountFunded(attacker).Cmp(exact), 0)
}

func TestFundUpdatesDataStructures(t *testing.T) {
	f := setup(t)
	assert.NilError(t, f.fund(deployer, sendValue))
	assert.Equal(t, f.ledger.GetAddressToAmountFunded(deployer).Cmp(sendValue), 0)

	funder, err := f.ledger.GetFunder(0)
	assert.NilError(t, err)
	assert.Equal(t, funder, deployer)

	assert.NilError(t, f.fund(deployer, sendValue))
	assert.Equal(t, f.ledger.FunderCount(), 1)
	assert.Equal(t, f.ledger.GetAddressToAmountFunded(deployer).Cmp(ether(2)), 0)
	assert.Equal(t, f.ledger.GetAddressToAmountFunded(attacker).Sign(), 0)
	assert.Equal(t, f.ledger.State(), Open)
}

func TestFundOracleFailure(t *testing.T) {
	for _, answer := range []int64{0, -1} {
		f := setup(t)
		f.feed.UpdateAnswer(big.NewInt(answer))
		err := f.fund(deployer, sendValue)
		assert.Assert(t, errors.Is(err, oracle.ErrOracleUnavailable), err)
		assert.Equal(t, f.ledger.FunderCount(), 0)
		assert.Equal(t, f.bank.BalanceOf(self).Sign(), 0)
	}
}

func TestWithdrawSingleFunder(t *testing.T) {
	f := setup(t)
	assert.NilError(t, f.fund(deployer, sendValue))
	startingFundMe := f.bank.BalanceOf(self)
	startingDeployer := f.bank.BalanceOf(deployer)

	amount, err := f.ledger.Withdraw(context.Background(), deployer)
	assert.NilError(t, err)
	assert.Equal(t, amount.Cmp(sendValue), 0)

	assert.Equal(t, f.bank.BalanceOf(self).Sign(), 0)
	assert.Equal(t, new(big.Int).Add(startingFundMe, startingDeployer).Cmp(f.bank.BalanceOf(deployer)), 0)
	assert.Equal(t, f.ledger.State(), Emptied)
}

func TestWithdrawMultipleFunders(t *testing.T) {
	f := setup(t)
	funders := make([]common.Address, 5)
	for i := range funders {
		funders[i] = common.BigToAddress(big.NewInt(int64(100 + i)))
		assert.NilError(t, f.fund(funders[i], sendValue))
	}
	assert.Equal(t, f.bank.BalanceOf(self).Cmp(ether(5)), 0)

	amount, err := f.ledger.Withdraw(context.Background(), deployer)
	assert.NilError(t, err)
	assert.Equal(t, amount.Cmp(ether(5)), 0)
	assert.Equal(t, f.bank.BalanceOf(deployer).Cmp(ether(5)), 0)

	for _, funder := range funders {
		assert.Equal(t, f.ledger.GetAddressToAmountFunded(funder).Sign(), 0)
	}
	_, err = f.ledger.GetFunder(0)
	assert.Assert(t, errors.Is(err, ErrIndexOutOfRange))
	assert.Equal(t, len(f.ledger.Snapshot().Contributions), 0)

	// 清空后可以再次捐款
	assert.NilError(t, f.fund(funders[0], sendValue))
	assert.Equal(t, f.ledger.FunderCount(), 1)
}

func TestWithdrawOnlyOwner(t *testing.T) {
	f := setup(t)

	// 空账本同样拒绝非 owner
	_, err := f.ledger.Withdraw(context.Background(), attacker)
	assert.Assert(t, errors.Is(err, ErrNotOwner))
	assert.Equal(t, f.ledger.State(), Emptied)
	assert.Equal(t, f.ledger.FunderCount(), 0)

	assert.NilError(t, f.fund(deployer, sendValue))

	_, err = f.ledger.Withdraw(context.Background(), attacker)
	assert.Assert(t, errors.Is(err, ErrNotOwner))
	assert.Equal(t, err.Error(), "FundMe__NotOwner")
	assert.Equal(t, f.ledger.FunderCount(), 1)
	assert.Equal(t, f.bank.BalanceOf(self).Cmp(sendValue), 0)
}

func TestWithdrawTransferFailure(t *testing.T) {
	f := setup(t)
	assert.NilError(t, f.fund(attacker, sendValue))

	f.bank.fail = errors.New("receiver rejects funds")
	_, err := f.ledger.Withdraw(context.Background(), deployer)
	assert.Assert(t, errors.Is(err, ErrTransferFailed))

	after := f.ledger.Snapshot()
	assert.DeepEqual(t, after.Funders, []common.Address{attacker})
	assert.Equal(t, after.Contributions[attacker].Cmp(sendValue), 0)
	assert.Equal(t, after.State, Open.String())
	assert.Equal(t, f.bank.BalanceOf(self).Cmp(sendValue), 0)
}

func TestWithdrawEmpty(t *testing.T) {
	f := setup(t)
	amount, err := f.ledger.Withdraw(context.Background(), deployer)
	assert.NilError(t, err)
	assert.Equal(t, amount.Sign(), 0)
}

func TestConcurrentFund(t *testing.T) {
	f := setup(t)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			funder := common.BigToAddress(big.NewInt(int64(i % 4)))
			assert.Check(t, f.ledger.Fund(context.Background(), funder, sendValue))
		}(i)
	}
	wg.Wait()
	assert.Equal(t, f.ledger.FunderCount(), 4)
	for i := 0; i < 4; i++ {
		got := f.ledger.GetAddressToAmountFunded(common.BigToAddress(big.NewInt(int64(i))))
		assert.Equal(t, got.Cmp(ether(5)), 0)
	}
}

func TestNoBankWithdraw(t *testing.T) {
	feed := mock.New(mock.DefaultDecimals, mock.DefaultInitialAnswer)
	l, err := New(context.Background(), deployer, feedAddr, feeds{feedAddr: feed}, nil,
		WithMinimumUSD(big.NewInt(0)))
	assert.NilError(t, err)
	assert.NilError(t, l.Fund(context.Background(), attacker, big.NewInt(3)))
	amount, err := l.Withdraw(context.Background(), deployer)
	assert.NilError(t, err)
	assert.Equal(t, amount.Int64(), int64(3))
}

var _ contract.Bank = (*fakeBank)(nil)
