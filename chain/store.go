package chain

import (
	"fmt"
	"sync"

	"github.com/fundme/meta"
)

// 区块存储，redis.Client 实现了该接口
type BlockStore interface {
	AppendBlock(b meta.Block) error
	Blocks() ([]meta.Block, error)
	Block(height uint64) (meta.Block, error)
	Reset() error
}

// 默认的内存区块存储
type MemStore struct {
	mu     sync.RWMutex
	blocks []meta.Block
}

func NewMemStore() *MemStore {
	return &MemStore{}
}

func (m *MemStore) AppendBlock(b meta.Block) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blocks = append(m.blocks, b)
	return nil
}

func (m *MemStore) Blocks() ([]meta.Block, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]meta.Block(nil), m.blocks...), nil
}

func (m *MemStore) Block(height uint64) (meta.Block, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if height >= uint64(len(m.blocks)) {
		return meta.Block{}, fmt.Errorf("%w: %d", ErrBlockNotFound, height)
	}
	return m.blocks[height], nil
}

func (m *MemStore) Reset() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blocks = nil
	return nil
}
