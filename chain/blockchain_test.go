package chain

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/ethereum/go-ethereum/common"
	"github.com/fundme/account"
	"github.com/fundme/commoncon"
	"github.com/fundme/contract"
	"github.com/fundme/event"
	"github.com/fundme/fundme"
	"github.com/fundme/merkle"
	"github.com/fundme/meta"
	"github.com/fundme/oracle"
	"github.com/fundme/oracle/mock"
	"gotest.tools/v3/assert"
)

var (
	deployer = common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
	funder   = common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
)

func ether(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(1e18))
}

type testChain struct {
	*Chain
	feed   common.Address
	fundMe common.Address
}

func newTestChain(t *testing.T) *testChain {
	t.Helper()
	registry := contract.NewRegistry()
	registry.Register(commoncon.MockV3Aggregator, mock.Factory)
	registry.Register(commoncon.FundMe, fundme.NewFactory())

	state := account.NewState(nil)
	c, err := New(state, registry)
	assert.NilError(t, err)
	c.Faucet(deployer, ether(100))
	c.Faucet(funder, ether(100))

	ctx := context.Background()
	r, err := c.SendTransaction(ctx, meta.Transaction{
		From: deployer, Type: meta.Publish, Contract: commoncon.MockV3Aggregator,
		Args: []string{"8", "200000000000"},
	})
	assert.NilError(t, err)
	feed := r.ContractAddress

	r, err = c.SendTransaction(ctx, meta.Transaction{
		From: deployer, Type: meta.Publish, Contract: commoncon.FundMe,
		Args: []string{feed.Hex()},
	})
	assert.NilError(t, err)
	return &testChain{Chain: c, feed: feed, fundMe: r.ContractAddress}
}

func (tc *testChain) invoke(from common.Address, method string, value *big.Int, args ...string) (meta.Receipt, error) {
	return tc.SendTransaction(context.Background(), meta.Transaction{
		From: from, To: tc.fundMe, Type: meta.Invoke, Method: method, Value: value, Args: args,
	})
}

func TestGenesisAndBlocks(t *testing.T) {
	tc := newTestChain(t)
	blocks, err := tc.Blocks()
	assert.NilError(t, err)
	spew.Dump(blocks[len(blocks)-1])

	assert.Equal(t, len(blocks), 3)
	assert.Equal(t, tc.BlockNumber(), uint64(2))
	for i := 1; i < len(blocks); i++ {
		assert.Equal(t, blocks[i].PrevHash, blocks[i-1].Hash)
		assert.Equal(t, blocks[i].Height, uint64(i))
	}

	b, err := tc.Mine()
	assert.NilError(t, err)
	assert.Equal(t, b.Height, uint64(3))
	_, err = tc.Block(10)
	assert.Assert(t, errors.Is(err, ErrBlockNotFound))
}

func TestDeployAddressAndFeed(t *testing.T) {
	tc := newTestChain(t)
	assert.Equal(t, tc.feed, contractAddress(deployer, 0))
	assert.Equal(t, tc.fundMe, contractAddress(deployer, 1))
	// hardhat 默认网络上的第一个合约地址
	assert.Equal(t, tc.feed, common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3"))

	got, err := tc.Call(context.Background(), deployer, tc.fundMe, "getPriceFeed", nil)
	assert.NilError(t, err)
	assert.Equal(t, got, tc.feed)

	_, err = tc.ResolveFeed(context.Background(), tc.fundMe)
	assert.Assert(t, errors.Is(err, oracle.ErrFeedNotFound))
	_, err = tc.Call(context.Background(), deployer, tc.fundMe, "withdraw", nil)
	assert.Assert(t, errors.Is(err, ErrNotView))
}

func TestFundAndWithdrawGasAccounting(t *testing.T) {
	tc := newTestChain(t)
	sendValue := ether(1)

	_, err := tc.invoke(deployer, "fund", sendValue)
	assert.NilError(t, err)

	startingFundMe := tc.BalanceAt(tc.fundMe)
	startingDeployer := tc.BalanceAt(deployer)

	r, err := tc.invoke(deployer, "withdraw", nil)
	assert.NilError(t, err)
	r, err = tc.WaitForConfirmations(context.Background(), r.TxHash, 1)
	assert.NilError(t, err)
	gasCost := r.GasCost()

	assert.Equal(t, tc.BalanceAt(tc.fundMe).Sign(), 0)
	assert.Equal(t,
		new(big.Int).Add(startingFundMe, startingDeployer).String(),
		new(big.Int).Add(tc.BalanceAt(deployer), gasCost).String())
	assert.Equal(t, len(r.Logs), 1)
	assert.Equal(t, r.Logs[0].Name, commoncon.EventWithdrawn)
	assert.Equal(t, r.Logs[0].TxHash, r.TxHash)
}

func TestFailedFundReverts(t *testing.T) {
	tc := newTestChain(t)
	before := tc.BalanceAt(funder)

	r, err := tc.invoke(funder, "fund", big.NewInt(1))
	assert.Assert(t, errors.Is(err, fundme.ErrInsufficientContribution))
	assert.Equal(t, r.Status, commoncon.StatusFailed)
	assert.Equal(t, r.Error, err.Error())

	assert.Equal(t, tc.BalanceAt(tc.fundMe).Sign(), 0)
	assert.Equal(t, new(big.Int).Sub(before, r.GasCost()).String(), tc.BalanceAt(funder).String())
	assert.Equal(t, tc.State().Nonce(funder), uint64(1))
}

func TestPayableDeployReverts(t *testing.T) {
	tc := newTestChain(t)
	before := tc.BalanceAt(deployer)
	nonce := tc.State().Nonce(deployer)

	r, err := tc.SendTransaction(context.Background(), meta.Transaction{
		From: deployer, Type: meta.Publish, Contract: commoncon.FundMe,
		Args: []string{tc.feed.Hex()}, Value: ether(1),
	})
	assert.Assert(t, errors.Is(err, contract.ErrNotPayable))
	assert.Equal(t, r.Status, commoncon.StatusFailed)
	assert.Equal(t, r.ContractAddress, common.Address{})

	// 只扣除手续费，合约账户不存在
	assert.Equal(t, new(big.Int).Sub(before, r.GasCost()).String(), tc.BalanceAt(deployer).String())
	addr := contractAddress(deployer, nonce)
	assert.Assert(t, !tc.State().ContainsAddress(addr))
	_, err = tc.ContractAt(addr)
	assert.Assert(t, errors.Is(err, ErrContractNotFound))

	_, err = tc.SendTransaction(context.Background(), meta.Transaction{
		From: deployer, Type: meta.Publish, Contract: commoncon.MockV3Aggregator,
		Args: []string{"8", "1"}, Value: big.NewInt(1),
	})
	assert.Assert(t, errors.Is(err, contract.ErrNotPayable))
}

func TestWithdrawRejectedByOwner(t *testing.T) {
	tc := newTestChain(t)
	_, err := tc.invoke(funder, "fund", ether(1))
	assert.NilError(t, err)

	tc.State().SetRejectsFunds(deployer, true)
	r, err := tc.invoke(deployer, "withdraw", nil)
	assert.Assert(t, errors.Is(err, fundme.ErrTransferFailed))
	assert.Assert(t, errors.Is(err, account.ErrRejectsFunds))
	assert.Equal(t, r.Status, commoncon.StatusFailed)

	assert.Equal(t, tc.BalanceAt(tc.fundMe).String(), ether(1).String())
	got, err := tc.Call(context.Background(), deployer, tc.fundMe, "getAddressToAmountFunded", []string{funder.Hex()})
	assert.NilError(t, err)
	assert.Equal(t, got.(*big.Int).String(), ether(1).String())
}

func TestReceiveThroughTransfer(t *testing.T) {
	tc := newTestChain(t)
	_, err := tc.SendTransaction(context.Background(), meta.Transaction{
		From: funder, To: tc.fundMe, Type: meta.Transfer, Value: ether(1),
	})
	assert.NilError(t, err)
	assert.Equal(t, tc.BalanceAt(tc.fundMe).String(), ether(1).String())

	// 喂价合约不接收转账
	r, err := tc.SendTransaction(context.Background(), meta.Transaction{
		From: funder, To: tc.feed, Type: meta.Transfer, Value: ether(1),
	})
	assert.Assert(t, errors.Is(err, contract.ErrNotPayable))
	assert.Equal(t, r.Status, commoncon.StatusFailed)
	assert.Equal(t, tc.BalanceAt(tc.feed).Sign(), 0)
}

func TestInsufficientFunds(t *testing.T) {
	tc := newTestChain(t)
	poor := common.HexToAddress("0x01")
	_, err := tc.invoke(poor, "fund", ether(1))
	assert.Assert(t, errors.Is(err, ErrInsufficientFunds))
	assert.Equal(t, tc.State().Nonce(poor), uint64(0))
}

func TestEventsPublished(t *testing.T) {
	bus := event.NewBus()
	registry := contract.NewRegistry()
	registry.Register(commoncon.MockV3Aggregator, mock.Factory)
	c, err := New(account.NewState(nil), registry, WithBus(bus))
	assert.NilError(t, err)
	c.Faucet(deployer, ether(10))

	ch, cancel := bus.Subscribe(event.ByName(commoncon.EventAnswerUpdated), 4)
	defer cancel()

	r, err := c.SendTransaction(context.Background(), meta.Transaction{
		From: deployer, Type: meta.Publish, Contract: commoncon.MockV3Aggregator,
	})
	assert.NilError(t, err)
	_, err = c.SendTransaction(context.Background(), meta.Transaction{
		From: deployer, To: r.ContractAddress, Type: meta.Invoke, Method: "updateAnswer", Args: []string{"1"},
	})
	assert.NilError(t, err)

	select {
	case e := <-ch:
		assert.Equal(t, e.Args["current"], "1")
	case <-time.After(time.Second):
		t.Fatal("no event")
	}
}

func TestWaitForConfirmations(t *testing.T) {
	tc := newTestChain(t)
	r, err := tc.invoke(funder, "fund", ether(1))
	assert.NilError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	tc.StartMiner(ctx, 5*time.Millisecond)

	got, err := tc.WaitForConfirmations(ctx, r.TxHash, 3)
	assert.NilError(t, err)
	assert.Assert(t, tc.BlockNumber() >= got.BlockNumber+2)

	_, err = tc.WaitForConfirmations(ctx, common.Hash{}, 1)
	assert.Assert(t, errors.Is(err, ErrReceiptNotFound))

	tx, err := tc.Transaction(r.TxHash)
	assert.NilError(t, err)
	assert.Equal(t, tx.Nonce, uint64(0))
}

func TestStateRootRecorded(t *testing.T) {
	c, err := New(account.NewState(nil), contract.NewRegistry())
	assert.NilError(t, err)
	c.Faucet(deployer, ether(1))

	b1, err := c.Mine()
	assert.NilError(t, err)
	assert.Assert(t, b1.StateRoot != (common.Hash{}))

	_, err = c.SendTransaction(context.Background(), meta.Transaction{
		From: deployer, To: funder, Type: meta.Transfer, Value: big.NewInt(1),
	})
	assert.NilError(t, err)
	b2, proof, err := c.ProveAccount(funder)
	assert.NilError(t, err)
	assert.Equal(t, b2.Height, uint64(2))
	assert.Assert(t, b2.StateRoot != b1.StateRoot)

	acc, err := merkle.Verify(b2.StateRoot, proof)
	assert.NilError(t, err)
	assert.Equal(t, acc.Balance.Int64(), int64(1))

	// 旧区块的根无法验证新的账户状态
	_, err = merkle.Verify(b1.StateRoot, proof)
	assert.Assert(t, err != nil)
}
