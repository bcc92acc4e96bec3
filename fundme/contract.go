package fundme

import (
	"fmt"
	"strconv"

	"github.com/fundme/commoncon"
	"github.com/fundme/contract"
)

// 链上合约入口，调用者与转账金额都来自调用上下文
type Contract struct {
	*Ledger
}

var views = map[string]bool{
	"getPriceFeed":             true,
	"getOwner":                 true,
	"getAddressToAmountFunded": true,
	"getFunder":                true,
	"getFunders":               true,
	"getFunderCount":           true,
	"getVersion":               true,
	"getLatestPrice":           true,
	"MINIMUM_USD":              true,
	"getState":                 true,
	"snapshot":                 true,
}

func (c *Contract) IsView(method string) bool {
	return views[method]
}

func (c *Contract) Invoke(ctx contract.Context, method string, args []string) (interface{}, error) {
	switch method {
	case "fund", "receive":
		return nil, c.fund(ctx)
	case "withdraw":
		if err := contract.RequireNoValue(ctx, method); err != nil {
			return nil, err
		}
		amount, err := c.Withdraw(ctx.Ctx, ctx.Caller)
		if err != nil {
			return nil, err
		}
		ctx.Emit(commoncon.EventWithdrawn, map[string]string{
			"owner":  c.owner.Hex(),
			"amount": amount.String(),
		})
		return amount, nil
	}

	if !views[method] {
		// fallback: 带转账的未知调用按 fund 处理
		if ctx.HasValue() {
			return nil, c.fund(ctx)
		}
		return nil, fmt.Errorf("%w: %s.%s", contract.ErrMethodNotFound, commoncon.FundMe, method)
	}
	if err := contract.RequireNoValue(ctx, method); err != nil {
		return nil, err
	}
	switch method {
	case "getPriceFeed":
		return c.GetPriceFeed(), nil
	case "getOwner":
		return c.GetOwner(), nil
	case "getAddressToAmountFunded":
		funder, err := contract.ArgAddress(args, 0)
		if err != nil {
			return nil, err
		}
		return c.GetAddressToAmountFunded(funder), nil
	case "getFunder":
		i, err := contract.ArgUint(args, 0)
		if err != nil {
			return nil, err
		}
		return c.GetFunder(i)
	case "getFunders":
		return c.Snapshot().Funders, nil
	case "getFunderCount":
		return c.FunderCount(), nil
	case "getVersion":
		return c.GetVersion(ctx.Ctx)
	case "getLatestPrice":
		return c.GetLatestPrice(ctx.Ctx)
	case "MINIMUM_USD":
		return c.MinimumUSD(), nil
	case "getState":
		return c.State().String(), nil
	default:
		return c.Snapshot(), nil
	}
}

func (c *Contract) fund(ctx contract.Context) error {
	if err := c.Fund(ctx.Ctx, ctx.Caller, ctx.Value); err != nil {
		return err
	}
	ctx.Emit(commoncon.EventFunded, map[string]string{
		"funder":  ctx.Caller.Hex(),
		"amount":  ctx.Value.String(),
		"funders": strconv.Itoa(c.FunderCount()),
	})
	return nil
}

// 部署参数: [priceFeed]，部署者成为 owner
func NewFactory(opts ...Option) contract.Factory {
	return func(env contract.DeployEnv, args []string) (contract.Contract, error) {
		// 构造函数不接收转账
		if env.Value != nil && env.Value.Sign() > 0 {
			return nil, fmt.Errorf("%w: constructor", contract.ErrNotPayable)
		}
		feed, err := contract.ArgAddress(args, 0)
		if err != nil {
			return nil, err
		}
		all := append([]Option{WithAddress(env.Self)}, opts...)
		l, err := New(env.Ctx, env.Deployer, feed, env.Feeds, env.Bank, all...)
		if err != nil {
			return nil, err
		}
		return &Contract{Ledger: l}, nil
	}
}
