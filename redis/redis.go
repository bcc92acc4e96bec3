package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cloudflare/cfssl/log"
	"github.com/fundme/commoncon"
	"github.com/fundme/meta"
	"github.com/go-redis/redis/v8"
)

var ErrBlockNotFound = errors.New("block not found")

type Options struct {
	Addr     string
	Password string
	DB       int
}

// 区块和合约事件都以列表形式存放在 redis 中
type Client struct {
	ctx context.Context
	rdb *redis.Client
}

func NewClient(ctx context.Context, opts Options) *Client {
	if opts.Addr == "" {
		opts.Addr = "127.0.0.1:6379"
	}
	return &Client{
		ctx: ctx,
		rdb: redis.NewClient(&redis.Options{
			Addr:     opts.Addr,
			Password: opts.Password,
			DB:       opts.DB,
		}),
	}
}

func (c *Client) Ping() error {
	return c.rdb.Ping(c.ctx).Err()
}

func (c *Client) Close() error {
	return c.rdb.Close()
}

//set
func (c *Client) SetIntoRedis(key string, value string) error {
	err := c.rdb.Set(c.ctx, key, value, 0).Err()
	if err != nil {
		log.Errorf("[SetIntoRedis] set %s: %v", key, err)
	}
	return err
}

//get，key 不存在时返回空字符串
func (c *Client) GetFromRedis(key string) (string, error) {
	val, err := c.rdb.Get(c.ctx, key).Result()
	if err == redis.Nil {
		log.Infof("the key:%s does not exist", key)
		return "", nil
	} else if err != nil {
		log.Errorf("[GetFromRedis] get %s: %v", key, err)
		return "", err
	}
	return val, nil
}

// list push
func (c *Client) PushToList(key string, value string) error {
	err := c.rdb.RPush(c.ctx, key, value).Err()
	if err != nil {
		log.Errorf("push to list %s error: %s", key, err)
		return err
	}
	return nil
}

/*
 * BlockStore
 */

func (c *Client) AppendBlock(b meta.Block) error {
	bytes, err := json.Marshal(b)
	if err != nil {
		return err
	}
	return c.PushToList(commoncon.BlockChainKey, string(bytes))
}

func (c *Client) Blocks() ([]meta.Block, error) {
	vals, err := c.rdb.LRange(c.ctx, commoncon.BlockChainKey, 0, -1).Result()
	if err != nil {
		log.Errorf("[Blocks] read %s: %v", commoncon.BlockChainKey, err)
		return nil, err
	}
	blocks := make([]meta.Block, 0, len(vals))
	for _, v := range vals {
		var b meta.Block
		if err := json.Unmarshal([]byte(v), &b); err != nil {
			return nil, err
		}
		blocks = append(blocks, b)
	}
	return blocks, nil
}

// 区块高度即列表下标
func (c *Client) Block(height uint64) (meta.Block, error) {
	v, err := c.rdb.LIndex(c.ctx, commoncon.BlockChainKey, int64(height)).Result()
	if err == redis.Nil {
		return meta.Block{}, fmt.Errorf("%w: %d", ErrBlockNotFound, height)
	}
	if err != nil {
		return meta.Block{}, err
	}
	var b meta.Block
	err = json.Unmarshal([]byte(v), &b)
	return b, err
}

// 清空链数据（节点启动时执行）
func (c *Client) Reset() error {
	return c.rdb.Del(c.ctx, commoncon.BlockChainKey, commoncon.EventLogKey).Err()
}

/*
 * event.Sink
 */

func (c *Client) Push(e meta.Event) error {
	bytes, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return c.PushToList(commoncon.EventLogKey, string(bytes))
}

func (c *Client) Events() ([]meta.Event, error) {
	vals, err := c.rdb.LRange(c.ctx, commoncon.EventLogKey, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	events := make([]meta.Event, 0, len(vals))
	for _, v := range vals {
		var e meta.Event
		if err := json.Unmarshal([]byte(v), &e); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, nil
}
