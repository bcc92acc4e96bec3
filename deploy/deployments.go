package deploy

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/cloudflare/cfssl/log"
	"github.com/fundme/commoncon"
	"github.com/fundme/meta"
)

var ErrNoDeployment = errors.New("No deployment found")

// levelDB.DB 实现了该接口
type Store interface {
	Put(key string, value []byte) error
	Iterate(prefix string, fn func(key string, value []byte) error) error
}

// 部署记录，按名称索引
type Deployments struct {
	mu    sync.RWMutex
	items map[string]meta.Deployment
	store Store
}

// store 为 nil 时只保存在内存中
func NewDeployments(store Store) (*Deployments, error) {
	d := &Deployments{items: map[string]meta.Deployment{}, store: store}
	if store == nil {
		return d, nil
	}
	err := store.Iterate(commoncon.DeploymentPrefixKey, func(key string, value []byte) error {
		var dep meta.Deployment
		if err := json.Unmarshal(value, &dep); err != nil {
			return fmt.Errorf("decode %s: %w", key, err)
		}
		d.items[dep.Name] = dep
		return nil
	})
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Deployments) Save(dep meta.Deployment) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.store != nil {
		bytes, err := json.Marshal(dep)
		if err != nil {
			return err
		}
		if err := d.store.Put(commoncon.DeploymentPrefixKey+dep.Name, bytes); err != nil {
			log.Errorf("[Save] persist deployment %s: %v", dep.Name, err)
			return err
		}
	}
	d.items[dep.Name] = dep
	return nil
}

func (d *Deployments) Get(name string) (meta.Deployment, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	dep, ok := d.items[name]
	if !ok {
		return meta.Deployment{}, fmt.Errorf("%w: %s", ErrNoDeployment, name)
	}
	return dep, nil
}

func (d *Deployments) All() []meta.Deployment {
	d.mu.RLock()
	defer d.mu.RUnlock()
	all := make([]meta.Deployment, 0, len(d.items))
	for _, dep := range d.items {
		all = append(all, dep)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })
	return all
}
