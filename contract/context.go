package contract

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/fundme/meta"
)

// 合约调用上下文，由链在每次调用时显式传入
type Context struct {
	Ctx         context.Context
	Self        common.Address // 当前执行的合约地址
	Caller      common.Address // 调用者地址
	Origin      common.Address // 最初调用者（外部账户）
	Value       *big.Int       // 调用合约时的转账金额
	BlockNumber uint64         // 所在区块高度
	log         *eventLog
}

type eventLog struct {
	events []meta.Event
}

func NewContext(ctx context.Context, self, caller common.Address, value *big.Int, blockNumber uint64) Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if value == nil {
		value = new(big.Int)
	}
	return Context{
		Ctx:         ctx,
		Self:        self,
		Caller:      caller,
		Origin:      caller,
		Value:       value,
		BlockNumber: blockNumber,
		log:         &eventLog{},
	}
}

// 记录一个事件，交易提交后由链统一推送
func (c Context) Emit(name string, args map[string]string) {
	if c.log == nil {
		return
	}
	c.log.events = append(c.log.events, meta.Event{
		Contract:    c.Self,
		Name:        name,
		Args:        args,
		BlockNumber: c.BlockNumber,
		Index:       len(c.log.events),
	})
}

func (c Context) Events() []meta.Event {
	if c.log == nil {
		return nil
	}
	return c.log.events
}

// 本次调用是否附带转账
func (c Context) HasValue() bool {
	return c.Value != nil && c.Value.Sign() > 0
}
