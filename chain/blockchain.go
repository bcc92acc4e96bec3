package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/cloudflare/cfssl/log"
	"github.com/ethereum/go-ethereum/common"
	"github.com/fundme/account"
	"github.com/fundme/commoncon"
	"github.com/fundme/contract"
	"github.com/fundme/event"
	"github.com/fundme/merkle"
	"github.com/fundme/meta"
	"github.com/fundme/oracle"
	"github.com/fundme/util"
)

// 固定的 gas 消耗
const (
	GasTransfer uint64 = 21000
	GasInvoke   uint64 = GasTransfer + 30000
	GasDeploy   uint64 = GasTransfer + 500000
)

// 默认 gas 价格 1 gwei
var DefaultGasPrice = big.NewInt(1_000_000_000)

var (
	ErrInsufficientFunds = errors.New("insufficient funds for gas * price + value")
	ErrUnknownTxType     = errors.New("unknown transaction type")
	ErrContractNotFound  = errors.New("contract not found")
	ErrNotView           = errors.New("method is not a view")
	ErrReceiptNotFound   = errors.New("receipt not found")
	ErrBlockNotFound     = errors.New("block not found")
)

type Option func(*Chain)

func WithBlockStore(store BlockStore) Option {
	return func(c *Chain) { c.store = store }
}

func WithBus(bus *event.Bus) Option {
	return func(c *Chain) { c.bus = bus }
}

// 本地没有部署的喂价合约时使用的外部解析器（例如 chainlink）
func WithFeedResolver(r oracle.Resolver) Option {
	return func(c *Chain) { c.feeds = r }
}

func WithGasPrice(price *big.Int) Option {
	return func(c *Chain) {
		if price != nil && price.Sign() > 0 {
			c.gasPrice = new(big.Int).Set(price)
		}
	}
}

// 手续费接收地址
func WithCoinbase(addr common.Address) Option {
	return func(c *Chain) { c.coinbase = addr }
}

/*
 * 单节点链：所有交易在 mu 下串行执行，每笔交易单独出块
 * smu 只保护合约表、回执表和链头，合约构造期间可以安全读取
 */
type Chain struct {
	mu  sync.Mutex
	smu sync.RWMutex

	state     *account.State
	registry  *contract.Registry
	contracts map[common.Address]contract.Contract
	receipts  map[common.Hash]meta.Receipt
	store     BlockStore
	bus       *event.Bus
	feeds     oracle.Resolver
	gasPrice  *big.Int
	coinbase  common.Address
	stateTree *merkle.StateTree // 链头区块的账户状态树

	head     uint64
	lastHash common.Hash
}

func New(state *account.State, registry *contract.Registry, opts ...Option) (*Chain, error) {
	c := &Chain{
		state:     state,
		registry:  registry,
		contracts: map[common.Address]contract.Contract{},
		receipts:  map[common.Hash]meta.Receipt{},
		store:     NewMemStore(),
		bus:       event.NewBus(),
		gasPrice:  new(big.Int).Set(DefaultGasPrice),
	}
	for _, opt := range opts {
		opt(c)
	}

	blocks, err := c.store.Blocks()
	if err != nil {
		return nil, err
	}
	if len(blocks) == 0 {
		gb := GenerateGenesisBlock()
		if err := c.store.AppendBlock(gb); err != nil {
			return nil, err
		}
		blocks = append(blocks, gb)
	}
	last := blocks[len(blocks)-1]
	c.head, c.lastHash = last.Height, last.Hash
	return c, nil
}

//生成创世区块
func GenerateGenesisBlock() meta.Block {
	genesisBlock := meta.Block{
		Timestamp: time.Now().String(),
	}
	genesisBlock.Hash = util.CalculateBlockHash(genesisBlock)
	return genesisBlock
}

func (c *Chain) State() *account.State {
	return c.state
}

func (c *Chain) Bus() *event.Bus {
	return c.bus
}

func (c *Chain) GasPrice() *big.Int {
	return new(big.Int).Set(c.gasPrice)
}

func (c *Chain) Registry() *contract.Registry {
	return c.registry
}

// 交易类型对应的 gas 消耗
func GasFor(txType int) (uint64, error) {
	switch txType {
	case meta.Transfer:
		return GasTransfer, nil
	case meta.Publish:
		return GasDeploy, nil
	case meta.Invoke:
		return GasInvoke, nil
	}
	return 0, fmt.Errorf("%w: %d", ErrUnknownTxType, txType)
}

// SendTransaction 执行一笔交易并出块。执行失败时状态回滚到执行前，
// 手续费照常扣除，回执状态为失败，同时返回执行错误
func (c *Chain) SendTransaction(ctx context.Context, tx meta.Transaction) (meta.Receipt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	gas, err := GasFor(tx.Type)
	if err != nil {
		return meta.Receipt{}, err
	}
	if tx.Value == nil {
		tx.Value = new(big.Int)
	}
	if tx.Value.Sign() < 0 {
		return meta.Receipt{}, fmt.Errorf("%w: negative value", account.ErrInvalidAmount)
	}
	tx.Nonce = c.state.Nonce(tx.From)
	tx.Timestamp = time.Now().String()
	tx.Hash = util.CalculateTxHash(tx)

	fee := new(big.Int).Mul(new(big.Int).SetUint64(gas), c.gasPrice)
	if !c.state.CanTransfer(tx.From, new(big.Int).Add(fee, tx.Value)) {
		return meta.Receipt{}, fmt.Errorf("%w: %s", ErrInsufficientFunds, tx.From.Hex())
	}
	if err := c.state.SubBalance(tx.From, fee); err != nil {
		return meta.Receipt{}, err
	}
	c.state.AddBalance(c.coinbase, fee)
	c.state.IncNonce(tx.From)

	snap := c.state.Snapshot()
	c.smu.RLock()
	number := c.head + 1
	c.smu.RUnlock()
	cctx := contract.NewContext(ctx, tx.To, tx.From, tx.Value, number)

	receipt := meta.Receipt{
		TxHash:            tx.Hash,
		Status:            commoncon.StatusSuccess,
		GasUsed:           gas,
		EffectiveGasPrice: new(big.Int).Set(c.gasPrice),
	}
	result, created, execErr := c.apply(cctx, tx)
	if execErr != nil {
		log.Warningf("[SendTransaction] tx %s reverted: %v", tx.Hash.Hex(), execErr)
		c.state.Revert(snap)
		receipt.Status = commoncon.StatusFailed
		receipt.Error = execErr.Error()
	} else {
		receipt.Result = result
		receipt.ContractAddress = created
		for _, e := range cctx.Events() {
			e.TxHash = tx.Hash
			receipt.Logs = append(receipt.Logs, e)
		}
	}

	block, err := c.mine([]meta.Transaction{tx})
	if err != nil {
		return meta.Receipt{}, err
	}
	receipt.BlockNumber = block.Height

	c.smu.Lock()
	c.receipts[tx.Hash] = receipt
	c.smu.Unlock()

	if len(receipt.Logs) > 0 {
		c.bus.Publish(receipt.Logs...)
	}
	return receipt, execErr
}

func (c *Chain) apply(ctx contract.Context, tx meta.Transaction) (interface{}, common.Address, error) {
	switch tx.Type {
	case meta.Transfer:
		if err := c.state.Transfer(tx.From, tx.To, tx.Value); err != nil {
			return nil, common.Address{}, err
		}
		if !c.state.IsContractAccount(tx.To) {
			return nil, common.Address{}, nil
		}
		// 向合约转账触发 receive
		target, err := c.ContractAt(tx.To)
		if err != nil {
			return nil, common.Address{}, err
		}
		_, err = target.Invoke(ctx, "receive", nil)
		return nil, common.Address{}, err

	case meta.Publish:
		factory, err := c.registry.Lookup(tx.Contract)
		if err != nil {
			return nil, common.Address{}, err
		}
		addr := contractAddress(tx.From, tx.Nonce)
		c.state.CreateContract(addr, tx.Contract)
		if err := c.state.Transfer(tx.From, addr, tx.Value); err != nil {
			return nil, common.Address{}, err
		}
		deployed, err := factory(contract.DeployEnv{
			Ctx:      ctx.Ctx,
			Self:     addr,
			Deployer: tx.From,
			Value:    tx.Value,
			Bank:     c.state,
			Feeds:    c,
		}, tx.Args)
		if err != nil {
			return nil, common.Address{}, err
		}
		c.smu.Lock()
		c.contracts[addr] = deployed
		c.smu.Unlock()
		log.Infof("[SendTransaction] deployed %s at %s", tx.Contract, addr.Hex())
		return addr, addr, nil

	case meta.Invoke:
		target, err := c.ContractAt(tx.To)
		if err != nil {
			return nil, common.Address{}, err
		}
		if err := c.state.Transfer(tx.From, tx.To, tx.Value); err != nil {
			return nil, common.Address{}, err
		}
		result, err := target.Invoke(ctx, tx.Method, tx.Args)
		return result, common.Address{}, err
	}
	return nil, common.Address{}, fmt.Errorf("%w: %d", ErrUnknownTxType, tx.Type)
}

// Call 以只读方式调用合约，不产生交易
func (c *Chain) Call(ctx context.Context, from, to common.Address, method string, args []string) (interface{}, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	target, err := c.ContractAt(to)
	if err != nil {
		return nil, err
	}
	viewer, ok := target.(contract.Viewer)
	if !ok || !viewer.IsView(method) {
		return nil, fmt.Errorf("%w: %s", ErrNotView, method)
	}
	snap := c.state.Snapshot()
	defer c.state.Revert(snap)
	return target.Invoke(contract.NewContext(ctx, to, from, nil, c.BlockNumber()), method, args)
}

func (c *Chain) ContractAt(addr common.Address) (contract.Contract, error) {
	c.smu.RLock()
	defer c.smu.RUnlock()
	target, ok := c.contracts[addr]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrContractNotFound, addr.Hex())
	}
	return target, nil
}

// ResolveFeed 先查找本链部署的喂价合约，再交给外部解析器
func (c *Chain) ResolveFeed(ctx context.Context, addr common.Address) (oracle.PriceFeed, error) {
	c.smu.RLock()
	target, ok := c.contracts[addr]
	c.smu.RUnlock()
	if ok {
		feed, isFeed := target.(oracle.PriceFeed)
		if !isFeed {
			return nil, fmt.Errorf("%w: contract at %s is not a price feed", oracle.ErrFeedNotFound, addr.Hex())
		}
		return feed, nil
	}
	if c.feeds != nil {
		return c.feeds.ResolveFeed(ctx, addr)
	}
	return nil, fmt.Errorf("%w: %s", oracle.ErrFeedNotFound, addr.Hex())
}

func (c *Chain) BalanceAt(addr common.Address) *big.Int {
	return c.state.BalanceOf(addr)
}

// 开发网络的水龙头
func (c *Chain) Faucet(addr common.Address, amount *big.Int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.AddBalance(addr, amount)
}

func (c *Chain) Receipt(hash common.Hash) (meta.Receipt, error) {
	c.smu.RLock()
	defer c.smu.RUnlock()
	r, ok := c.receipts[hash]
	if !ok {
		return meta.Receipt{}, fmt.Errorf("%w: %s", ErrReceiptNotFound, hash.Hex())
	}
	return r, nil
}

func (c *Chain) BlockNumber() uint64 {
	c.smu.RLock()
	defer c.smu.RUnlock()
	return c.head
}

func (c *Chain) Block(height uint64) (meta.Block, error) {
	return c.store.Block(height)
}

//获取到当前区块链
func (c *Chain) Blocks() ([]meta.Block, error) {
	return c.store.Blocks()
}

// 出一个空块
func (c *Chain) Mine() (meta.Block, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mine(nil)
}

// 按固定间隔出空块，ctx 结束时退出
func (c *Chain) StartMiner(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := c.Mine(); err != nil {
					log.Errorf("[StartMiner] mine failed: %v", err)
				}
			}
		}
	}()
}

//生成新区块
func (c *Chain) mine(txs []meta.Transaction) (meta.Block, error) {
	c.smu.Lock()
	defer c.smu.Unlock()
	newBlock := meta.Block{
		Height:    c.head + 1,
		Timestamp: time.Now().String(),
		PrevHash:  c.lastHash,
		TxRoot:    util.CalculateTxRoot(txs),
		TX:        txs,
	}
	tree, err := c.buildStateTree()
	if err != nil {
		log.Errorf("[mine] state tree of block %d: %v", newBlock.Height, err)
		return meta.Block{}, err
	}
	newBlock.StateRoot = tree.Root()
	newBlock.Hash = util.CalculateBlockHash(newBlock)
	if err := c.store.AppendBlock(newBlock); err != nil {
		log.Errorf("[mine] store block %d: %v", newBlock.Height, err)
		return meta.Block{}, err
	}
	c.head, c.lastHash = newBlock.Height, newBlock.Hash
	c.stateTree = tree
	return newBlock, nil
}

func (c *Chain) buildStateTree() (*merkle.StateTree, error) {
	var accs []meta.Account
	for _, addr := range c.state.GetTotalAddress() {
		if acc, ok := c.state.GetAccount(addr); ok {
			accs = append(accs, acc)
		}
	}
	return merkle.Build(accs)
}

// ProveAccount 返回账户在链头区块状态树中的证明
func (c *Chain) ProveAccount(addr common.Address) (meta.Block, merkle.Proof, error) {
	c.smu.RLock()
	defer c.smu.RUnlock()
	if c.stateTree == nil {
		return meta.Block{}, merkle.Proof{}, merkle.ErrAccountNotInTree
	}
	b, err := c.store.Block(c.head)
	if err != nil {
		return meta.Block{}, merkle.Proof{}, err
	}
	proof, err := c.stateTree.Prove(addr)
	return b, proof, err
}

// WaitForConfirmations 等待交易所在区块之上累计 n 个确认（包含所在区块）
func (c *Chain) WaitForConfirmations(ctx context.Context, hash common.Hash, n uint64) (meta.Receipt, error) {
	if n == 0 {
		n = 1
	}
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for {
		r, err := c.Receipt(hash)
		if err != nil {
			return meta.Receipt{}, err
		}
		if c.BlockNumber()+1 >= r.BlockNumber+n {
			return r, nil
		}
		select {
		case <-ctx.Done():
			return r, ctx.Err()
		case <-ticker.C:
		}
	}
}
