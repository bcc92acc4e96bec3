// 通过 JSON-RPC 读取 Chainlink 喂价合约
package chainlink

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/cloudflare/cfssl/log"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/fundme/oracle"
)

const AggregatorV3ABI = `[
{"inputs":[],"name":"decimals","outputs":[{"internalType":"uint8","name":"","type":"uint8"}],"stateMutability":"view","type":"function"},
{"inputs":[],"name":"description","outputs":[{"internalType":"string","name":"","type":"string"}],"stateMutability":"view","type":"function"},
{"inputs":[],"name":"version","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
{"inputs":[],"name":"latestRoundData","outputs":[
 {"internalType":"uint80","name":"roundId","type":"uint80"},
 {"internalType":"int256","name":"answer","type":"int256"},
 {"internalType":"uint256","name":"startedAt","type":"uint256"},
 {"internalType":"uint256","name":"updatedAt","type":"uint256"},
 {"internalType":"uint80","name":"answeredInRound","type":"uint80"}],"stateMutability":"view","type":"function"}
]`

var aggregatorABI = mustParseABI()

func mustParseABI() abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(AggregatorV3ABI))
	if err != nil {
		panic(err)
	}
	return parsed
}

// ethclient.Client 实现了该接口
type Caller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error)
}

type Client struct {
	caller Caller
}

func Dial(ctx context.Context, rpcURL string) (*Client, error) {
	c, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		log.Errorf("[Dial] connect %s: %v", rpcURL, err)
		return nil, fmt.Errorf("%w: %v", oracle.ErrOracleUnavailable, err)
	}
	return &Client{caller: c}, nil
}

func NewClient(caller Caller) *Client {
	return &Client{caller: caller}
}

// 地址上没有合约代码时返回 ErrFeedNotFound
func (c *Client) ResolveFeed(ctx context.Context, address common.Address) (oracle.PriceFeed, error) {
	code, err := c.caller.CodeAt(ctx, address, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", oracle.ErrOracleUnavailable, err)
	}
	if len(code) == 0 {
		return nil, fmt.Errorf("%w: no code at %s", oracle.ErrFeedNotFound, address.Hex())
	}
	return &Feed{address: address, caller: c.caller}, nil
}

type Feed struct {
	address common.Address
	caller  Caller
}

func (f *Feed) call(ctx context.Context, method string) ([]interface{}, error) {
	data, err := aggregatorABI.Pack(method)
	if err != nil {
		return nil, err
	}
	out, err := f.caller.CallContract(ctx, ethereum.CallMsg{To: &f.address, Data: data}, nil)
	if err != nil {
		log.Warningf("[Feed.call] %s.%s: %v", f.address.Hex(), method, err)
		return nil, fmt.Errorf("%w: %v", oracle.ErrOracleUnavailable, err)
	}
	values, err := aggregatorABI.Unpack(method, out)
	if err != nil {
		return nil, fmt.Errorf("%w: unpack %s: %v", oracle.ErrOracleUnavailable, method, err)
	}
	return values, nil
}

func (f *Feed) LatestRoundData(ctx context.Context) (oracle.RoundData, error) {
	values, err := f.call(ctx, "latestRoundData")
	if err != nil {
		return oracle.RoundData{}, err
	}
	if len(values) != 5 {
		return oracle.RoundData{}, fmt.Errorf("%w: latestRoundData returned %d values", oracle.ErrOracleUnavailable, len(values))
	}
	ints := make([]*big.Int, 5)
	for i, v := range values {
		n, ok := v.(*big.Int)
		if !ok {
			return oracle.RoundData{}, fmt.Errorf("%w: latestRoundData value %d has type %T", oracle.ErrOracleUnavailable, i, v)
		}
		ints[i] = n
	}
	return oracle.RoundData{
		RoundID:         ints[0],
		Answer:          ints[1],
		StartedAt:       ints[2].Uint64(),
		UpdatedAt:       ints[3].Uint64(),
		AnsweredInRound: ints[4],
	}, nil
}

func (f *Feed) Decimals(ctx context.Context) (uint8, error) {
	values, err := f.call(ctx, "decimals")
	if err != nil {
		return 0, err
	}
	d, ok := values[0].(uint8)
	if !ok {
		return 0, fmt.Errorf("%w: decimals has type %T", oracle.ErrOracleUnavailable, values[0])
	}
	return d, nil
}

func (f *Feed) Version(ctx context.Context) (*big.Int, error) {
	values, err := f.call(ctx, "version")
	if err != nil {
		return nil, err
	}
	v, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("%w: version has type %T", oracle.ErrOracleUnavailable, values[0])
	}
	return v, nil
}

func (f *Feed) Description(ctx context.Context) (string, error) {
	values, err := f.call(ctx, "description")
	if err != nil {
		return "", err
	}
	s, ok := values[0].(string)
	if !ok {
		return "", fmt.Errorf("%w: description has type %T", oracle.ErrOracleUnavailable, values[0])
	}
	return s, nil
}
