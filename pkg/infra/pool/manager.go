package pool

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// Manager 池管理器，按类型管理多个命名池
type Manager struct {
	mu     sync.RWMutex
	pools  map[Type]*Pool
	closed atomic.Bool
}

// NewManager 创建新的池管理器
func NewManager() *Manager {
	return &Manager{
		pools: make(map[Type]*Pool),
	}
}

// Register 注册新池
func (m *Manager) Register(typ Type, config *Config) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed.Load() {
		return ErrPoolClosed
	}
	if _, exists := m.pools[typ]; exists {
		return fmt.Errorf("%w: %s", ErrPoolAlreadyExists, typ)
	}

	p, err := NewPool(string(typ), typ, config)
	if err != nil {
		return err
	}
	m.pools[typ] = p
	return nil
}

// Get 获取指定类型的池
func (m *Manager) Get(typ Type) (*Pool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed.Load() {
		return nil, ErrPoolClosed
	}
	p, exists := m.pools[typ]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrPoolNotFound, typ)
	}
	return p, nil
}

// MustGet 获取池，不存在时 panic。仅用于启动期已注册的池。
func (m *Manager) MustGet(typ Type) *Pool {
	p, err := m.Get(typ)
	if err != nil {
		panic(fmt.Sprintf("获取池 '%s' 失败: %v", typ, err))
	}
	return p
}

// Stats 返回所有池的统计信息
func (m *Manager) Stats() map[Type]Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := make(map[Type]Stats, len(m.pools))
	for typ, p := range m.pools {
		stats[typ] = p.Stats()
	}
	return stats
}

// ReleaseAll 释放所有池
func (m *Manager) ReleaseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed.Store(true)
	for _, p := range m.pools {
		p.Release()
	}
	m.pools = make(map[Type]*Pool)
}

// ReleaseAllTimeout 带超时释放所有池
func (m *Manager) ReleaseAllTimeout(timeout time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed.Store(true)
	var firstErr error
	for typ, p := range m.pools {
		if err := p.ReleaseTimeout(timeout); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("释放池 '%s' 超时: %w", typ, err)
		}
	}
	m.pools = make(map[Type]*Pool)
	return firstErr
}

// Close 关闭管理器（等同于 ReleaseAll）
func (m *Manager) Close() error {
	m.ReleaseAll()
	return nil
}
