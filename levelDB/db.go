package levelDB

import (
	"errors"

	"github.com/cloudflare/cfssl/log"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"
)

var ErrNotFound = errors.New("key not found")

// 对 leveldb 的简单封装，key 统一使用字符串
type DB struct {
	db *leveldb.DB
}

func InitDB(path string) (*DB, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		log.Error("db init err:", err)
		return nil, err
	}
	return &DB{db: db}, nil
}

// 内存数据库，测试和临时节点使用
func InitMemDB() (*DB, error) {
	db, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		log.Error("mem db init err:", err)
		return nil, err
	}
	return &DB{db: db}, nil
}

func (d *DB) Get(key string) ([]byte, error) {
	data, err := d.db.Get([]byte(key), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		log.Error("db get err:", err)
		return nil, err
	}
	return data, nil
}

func (d *DB) Put(key string, value []byte) error {
	err := d.db.Put([]byte(key), value, nil)
	if err != nil {
		log.Error("db put err:", err)
	}
	return err
}

func (d *DB) Delete(key string) error {
	err := d.db.Delete([]byte(key), nil)
	if err != nil {
		log.Error("db delete err", err)
	}
	return err
}

// 遍历指定前缀的所有 key，fn 返回错误时停止
func (d *DB) Iterate(prefix string, fn func(key string, value []byte) error) error {
	iter := d.db.NewIterator(util.BytesPrefix([]byte(prefix)), nil)
	defer iter.Release()
	for iter.Next() {
		if err := fn(string(iter.Key()), iter.Value()); err != nil {
			return err
		}
	}
	return iter.Error()
}

// 批量删除指定前缀的 key（节点启动时清空上次运行的数据）
func (d *DB) DeletePrefix(prefix string) error {
	batch := new(leveldb.Batch)
	err := d.Iterate(prefix, func(key string, _ []byte) error {
		batch.Delete([]byte(key))
		return nil
	})
	if err != nil {
		return err
	}
	return d.db.Write(batch, nil)
}

func (d *DB) Close() error {
	return d.db.Close()
}
