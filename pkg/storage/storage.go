// Package storage 提供按 domain 前缀隔离的键值存储
//
// 对应小程序端的本地缓存语义：读写永不报错，写入失败返回 false，
// 读取未命中返回空串。key 的实际形态为 "<domain>.<key>"。
package storage

import "sync"

// DefaultDomain 未指定 domain 时使用的命名空间
const DefaultDomain = "default"

// Info 存储概况
type Info struct {
	Keys  []string
	Count int
}

// Store 键值存储接口。所有操作都以返回值表达成败，不抛错误。
type Store interface {
	// Save 写入，成功返回 true
	Save(key string, value string, domain string) bool
	// Get 读取，未命中返回空串
	Get(key string, domain string) string
	// Remove 删除，成功返回 true
	Remove(key string, domain string) bool
	// Clear 清空全部数据
	Clear() bool
	// Describe 返回存储概况
	Describe() Info
}

// MemoryStore 进程内存实现
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]string
}

// NewMemoryStore 创建内存存储
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]string)}
}

func fullKey(key, domain string) string {
	if domain == "" {
		domain = DefaultDomain
	}
	return domain + "." + key
}

// Save 写入
func (s *MemoryStore) Save(key, value, domain string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[fullKey(key, domain)] = value
	return true
}

// Get 读取，未命中返回空串
func (s *MemoryStore) Get(key, domain string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data[fullKey(key, domain)]
}

// Remove 删除
func (s *MemoryStore) Remove(key, domain string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, fullKey(key, domain))
	return true
}

// Clear 清空
func (s *MemoryStore) Clear() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = make(map[string]string)
	return true
}

// Describe 返回当前全部 key
func (s *MemoryStore) Describe() Info {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	return Info{Keys: keys, Count: len(keys)}
}
