package oracle

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// 喂价精度（每个原生币的 USD 价格）
const PriceDecimals = 8

var (
	ErrOracleUnavailable = errors.New("oracle unavailable")
	ErrFeedNotFound      = errors.New("price feed not found")

	priceScale = new(big.Int).Exp(big.NewInt(10), big.NewInt(PriceDecimals), nil)
)

// AggregatorV3 latestRoundData 的返回值
type RoundData struct {
	RoundID         *big.Int `json:"round_id"` // uint80，高 16 位为 phase id
	Answer          *big.Int `json:"answer"`
	StartedAt       uint64   `json:"started_at"`
	UpdatedAt       uint64   `json:"updated_at"`
	AnsweredInRound *big.Int `json:"answered_in_round"`
}

type PriceFeed interface {
	LatestRoundData(ctx context.Context) (RoundData, error)
	Decimals(ctx context.Context) (uint8, error)
	Version(ctx context.Context) (*big.Int, error)
}

// 按地址查找喂价合约
type Resolver interface {
	ResolveFeed(ctx context.Context, address common.Address) (PriceFeed, error)
}

// 依次尝试，返回第一个找到的喂价合约
type Resolvers []Resolver

func (rs Resolvers) ResolveFeed(ctx context.Context, address common.Address) (PriceFeed, error) {
	for _, r := range rs {
		if r == nil {
			continue
		}
		feed, err := r.ResolveFeed(ctx, address)
		if err == nil {
			return feed, nil
		}
		if !errors.Is(err, ErrFeedNotFound) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrFeedNotFound, address.Hex())
}

// 单个喂价合约的适配器，地址创建后不变，每次都读取最新报价
type Adapter struct {
	address common.Address
	feed    PriceFeed
}

func NewAdapter(ctx context.Context, address common.Address, resolver Resolver) (*Adapter, error) {
	if resolver == nil {
		return nil, fmt.Errorf("%w: no resolver for %s", ErrFeedNotFound, address.Hex())
	}
	feed, err := resolver.ResolveFeed(ctx, address)
	if err != nil {
		return nil, err
	}
	return &Adapter{address: address, feed: feed}, nil
}

func (a *Adapter) Address() common.Address {
	return a.address
}

// 最新报价（1e8 精度），报价非正或轮次未完成时返回 ErrOracleUnavailable
func (a *Adapter) GetLatestPrice(ctx context.Context) (*big.Int, error) {
	round, err := a.feed.LatestRoundData(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOracleUnavailable, err)
	}
	if round.Answer == nil || round.Answer.Sign() <= 0 {
		return nil, fmt.Errorf("%w: malformed answer %v in round %d", ErrOracleUnavailable, round.Answer, round.RoundID)
	}
	if round.UpdatedAt == 0 {
		return nil, fmt.Errorf("%w: round %d incomplete", ErrOracleUnavailable, round.RoundID)
	}
	return new(big.Int).Set(round.Answer), nil
}

// wei 换算为 USD（1e18 精度）
func (a *Adapter) ToUsd(ctx context.Context, amount *big.Int) (*big.Int, error) {
	price, err := a.GetLatestPrice(ctx)
	if err != nil {
		return nil, err
	}
	return Convert(amount, price), nil
}

// amount * price / 1e8
func Convert(amount, price *big.Int) *big.Int {
	if amount == nil || price == nil {
		return new(big.Int)
	}
	usd := new(big.Int).Mul(amount, price)
	return usd.Quo(usd, priceScale)
}

// 喂价精度必须为 PriceDecimals
func (a *Adapter) CheckDecimals(ctx context.Context) error {
	d, err := a.feed.Decimals(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrOracleUnavailable, err)
	}
	if d != PriceDecimals {
		return fmt.Errorf("%w: feed %s reports %d decimals, want %d", ErrOracleUnavailable, a.address.Hex(), d, PriceDecimals)
	}
	return nil
}

func (a *Adapter) Version(ctx context.Context) (*big.Int, error) {
	v, err := a.feed.Version(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOracleUnavailable, err)
	}
	return v, nil
}
