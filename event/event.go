package event

import (
	"sync"
	"sync/atomic"

	"github.com/cloudflare/cfssl/log"
	"github.com/fundme/meta"
)

/*
 * 合约事件总线
 * 链在交易成功提交后调用 Publish，订阅者通过带缓冲的 channel 接收
 * 订阅者处理过慢时直接丢弃事件，不会阻塞链
 */

// 事件的外部存储（例如 redis 列表）
type Sink interface {
	Push(e meta.Event) error
}

// 订阅过滤条件，返回 true 表示接收
type Filter func(e meta.Event) bool

// 按事件名称过滤，names 为空时接收所有事件
func ByName(names ...string) Filter {
	set := map[string]bool{}
	for _, n := range names {
		set[n] = true
	}
	return func(e meta.Event) bool {
		return len(set) == 0 || set[e.Name]
	}
}

type subscriber struct {
	ch     chan meta.Event
	filter Filter
}

type Bus struct {
	mu      sync.RWMutex
	nextID  int
	subs    map[int]*subscriber
	sinks   []Sink
	dropped atomic.Uint64
}

func NewBus(sinks ...Sink) *Bus {
	return &Bus{subs: map[int]*subscriber{}, sinks: sinks}
}

func (b *Bus) AddSink(s Sink) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sinks = append(b.sinks, s)
}

// Subscribe 返回事件 channel 和取消订阅的函数，取消后 channel 被关闭
func (b *Bus) Subscribe(filter Filter, buffer int) (<-chan meta.Event, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	if filter == nil {
		filter = ByName()
	}
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	sub := &subscriber{ch: make(chan meta.Event, buffer), filter: filter}
	b.subs[id] = sub
	b.mu.Unlock()

	var once sync.Once
	return sub.ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(sub.ch)
		})
	}
}

func (b *Bus) Publish(events ...meta.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, e := range events {
		for _, s := range b.sinks {
			if err := s.Push(e); err != nil {
				log.Errorf("[Publish] sink push %s: %v", e.Name, err)
			}
		}
		for id, sub := range b.subs {
			if !sub.filter(e) {
				continue
			}
			select {
			case sub.ch <- e:
			default:
				b.dropped.Add(1)
				log.Warningf("[Publish] subscriber %d is full, drop event %s of tx %s", id, e.Name, e.TxHash.Hex())
			}
		}
	}
}

// 当前订阅者数量
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

func (b *Bus) Dropped() uint64 {
	return b.dropped.Load()
}
