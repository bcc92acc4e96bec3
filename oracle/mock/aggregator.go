// 开发网络使用的 MockV3Aggregator
package mock

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"sync"
	"time"

	"github.com/fundme/commoncon"
	"github.com/fundme/contract"
	"github.com/fundme/oracle"
)

const (
	DefaultDecimals = 8
	Description     = "v0.6/tests/MockV3Aggregator.sol"
)

// 2000 USD，对应 helper-hardhat-config 中的 INITIAL_ANSWER
var DefaultInitialAnswer = big.NewInt(200000000000)

var ErrNoData = errors.New("No data present")

type round struct {
	answer    *big.Int
	updatedAt uint64
	startedAt uint64
}

// Aggregator 是一个可由测试直接修改报价的喂价合约
type Aggregator struct {
	mu          sync.RWMutex
	decimals    uint8
	latestRound uint64
	rounds      map[uint64]round
	now         func() uint64
}

func New(decimals uint8, initialAnswer *big.Int) *Aggregator {
	a := &Aggregator{
		decimals: decimals,
		rounds:   map[uint64]round{},
		now:      func() uint64 { return uint64(time.Now().Unix()) },
	}
	a.UpdateAnswer(initialAnswer)
	return a
}

// 写入新一轮报价，轮次加一
func (a *Aggregator) UpdateAnswer(answer *big.Int) uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	now := a.now()
	a.latestRound++
	a.rounds[a.latestRound] = round{answer: copyInt(answer), updatedAt: now, startedAt: now}
	return a.latestRound
}

// 直接指定轮次数据
func (a *Aggregator) UpdateRoundData(roundID uint64, answer *big.Int, timestamp, startedAt uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.latestRound = roundID
	a.rounds[roundID] = round{answer: copyInt(answer), updatedAt: timestamp, startedAt: startedAt}
}

func (a *Aggregator) GetRoundData(roundID uint64) (oracle.RoundData, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	r, ok := a.rounds[roundID]
	if !ok {
		return oracle.RoundData{}, fmt.Errorf("%w: round %d", ErrNoData, roundID)
	}
	return oracle.RoundData{
		RoundID:         new(big.Int).SetUint64(roundID),
		Answer:          copyInt(r.answer),
		StartedAt:       r.startedAt,
		UpdatedAt:       r.updatedAt,
		AnsweredInRound: new(big.Int).SetUint64(roundID),
	}, nil
}

func (a *Aggregator) LatestRoundData(context.Context) (oracle.RoundData, error) {
	a.mu.RLock()
	latest := a.latestRound
	a.mu.RUnlock()
	return a.GetRoundData(latest)
}

func (a *Aggregator) Decimals(context.Context) (uint8, error) {
	return a.decimals, nil
}

func (a *Aggregator) Version(context.Context) (*big.Int, error) {
	return big.NewInt(0), nil
}

func (a *Aggregator) Description() string {
	return Description
}

func (a *Aggregator) LatestRound() uint64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.latestRound
}

func (a *Aggregator) Invoke(ctx contract.Context, method string, args []string) (interface{}, error) {
	if err := contract.RequireNoValue(ctx, method); err != nil {
		return nil, err
	}
	switch method {
	case "decimals":
		return a.decimals, nil
	case "version":
		return a.Version(ctx.Ctx)
	case "description":
		return a.Description(), nil
	case "latestRound":
		return a.LatestRound(), nil
	case "latestAnswer":
		r, err := a.LatestRoundData(ctx.Ctx)
		if err != nil {
			return nil, err
		}
		return r.Answer, nil
	case "latestRoundData":
		return a.LatestRoundData(ctx.Ctx)
	case "getRoundData":
		id, err := contract.ArgUint(args, 0)
		if err != nil {
			return nil, err
		}
		return a.GetRoundData(id)
	case "updateAnswer":
		answer, err := contract.ArgBig(args, 0)
		if err != nil {
			return nil, err
		}
		id := a.UpdateAnswer(answer)
		ctx.Emit(commoncon.EventAnswerUpdated, map[string]string{
			"current": answer.String(),
			"roundId": strconv.FormatUint(id, 10),
		})
		return id, nil
	case "updateRoundData":
		id, err := contract.ArgUint(args, 0)
		if err != nil {
			return nil, err
		}
		answer, err := contract.ArgBig(args, 1)
		if err != nil {
			return nil, err
		}
		ts, err := contract.ArgUint(args, 2)
		if err != nil {
			return nil, err
		}
		startedAt, err := contract.ArgUint(args, 3)
		if err != nil {
			return nil, err
		}
		a.UpdateRoundData(id, answer, ts, startedAt)
		ctx.Emit(commoncon.EventAnswerUpdated, map[string]string{
			"current": answer.String(),
			"roundId": strconv.FormatUint(id, 10),
		})
		return id, nil
	}
	return nil, fmt.Errorf("%w: %s.%s", contract.ErrMethodNotFound, commoncon.MockV3Aggregator, method)
}

func (a *Aggregator) IsView(method string) bool {
	return method != "updateAnswer" && method != "updateRoundData"
}

// 部署参数: [decimals, initialAnswer]
func Factory(env contract.DeployEnv, args []string) (contract.Contract, error) {
	if env.Value != nil && env.Value.Sign() > 0 {
		return nil, fmt.Errorf("%w: constructor", contract.ErrNotPayable)
	}
	if len(args) == 0 {
		return New(DefaultDecimals, DefaultInitialAnswer), nil
	}
	d, err := contract.ArgUint(args, 0)
	if err != nil {
		return nil, err
	}
	if d > 255 {
		return nil, fmt.Errorf("%w: decimals %d", contract.ErrBadArgs, d)
	}
	answer, err := contract.ArgBig(args, 1)
	if err != nil {
		return nil, err
	}
	return New(uint8(d), answer), nil
}

func copyInt(v *big.Int) *big.Int {
	if v == nil {
		return nil
	}
	return new(big.Int).Set(v)
}
