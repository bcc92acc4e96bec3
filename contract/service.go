package contract

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"strconv"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/fundme/oracle"
)

/*
 * 链与合约之间的接口
 */

var (
	ErrMethodNotFound  = errors.New("method not found")
	ErrBadArgs         = errors.New("invalid call args")
	ErrNotPayable      = errors.New("method is not payable")
	ErrUnknownContract = errors.New("unknown contract")
)

// 所有合约都通过 Invoke 被调用，method 不存在时由合约自行决定是否执行 fallback
type Contract interface {
	Invoke(ctx Context, method string, args []string) (interface{}, error)
}

// 只读方法声明，链上的 Call 只允许调用只读方法
type Viewer interface {
	IsView(method string) bool
}

// 原生货币账本，由链提供给合约
type Bank interface {
	BalanceOf(address common.Address) *big.Int
	Transfer(from, to common.Address, amount *big.Int) error
}

// 部署合约时传给构造函数的环境
type DeployEnv struct {
	Ctx      context.Context
	Self     common.Address
	Deployer common.Address
	Value    *big.Int
	Bank     Bank
	Feeds    oracle.Resolver
}

// 合约构造函数
type Factory func(env DeployEnv, args []string) (Contract, error)

// 合约名称到构造函数的映射
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: map[string]Factory{}}
}

func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = f
}

func (r *Registry) Lookup(name string) (Factory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownContract, name)
	}
	return f, nil
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// 非 payable 方法拒绝转账
func RequireNoValue(ctx Context, method string) error {
	if ctx.HasValue() {
		return fmt.Errorf("%w: %s", ErrNotPayable, method)
	}
	return nil
}

func ArgAddress(args []string, i int) (common.Address, error) {
	if i >= len(args) {
		return common.Address{}, fmt.Errorf("%w: missing arg %d", ErrBadArgs, i)
	}
	if !common.IsHexAddress(args[i]) {
		return common.Address{}, fmt.Errorf("%w: arg %d is not an address: %q", ErrBadArgs, i, args[i])
	}
	return common.HexToAddress(args[i]), nil
}

func ArgUint(args []string, i int) (uint64, error) {
	if i >= len(args) {
		return 0, fmt.Errorf("%w: missing arg %d", ErrBadArgs, i)
	}
	v, err := strconv.ParseUint(args[i], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: arg %d: %v", ErrBadArgs, i, err)
	}
	return v, nil
}

func ArgBig(args []string, i int) (*big.Int, error) {
	if i >= len(args) {
		return nil, fmt.Errorf("%w: missing arg %d", ErrBadArgs, i)
	}
	v, ok := new(big.Int).SetString(args[i], 10)
	if !ok {
		return nil, fmt.Errorf("%w: arg %d is not an integer: %q", ErrBadArgs, i, args[i])
	}
	return v, nil
}
