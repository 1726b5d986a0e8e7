// Package pool wraps ants worker pools with per-pool statistics and a
// named-pool manager. Pipeline stages and keepalive tickers run on these
// pools instead of bare goroutines so that concurrency is bounded and
// panics are contained.
package pool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kart-io/logger"
	"github.com/panjf2000/ants/v2"
)

// Type defines the type of worker pool.
type Type string

const (
	// DefaultPool 默认通用池
	DefaultPool Type = "default"
	// StagePool 流水线阶段执行池（解析、检索、筛选、生成）
	StagePool Type = "stage"
	// HeartbeatPool 心跳保活池
	HeartbeatPool Type = "heartbeat"
)

// Config defines the configuration for a worker pool.
type Config struct {
	// Capacity 池容量（最大并发 goroutine 数）
	Capacity int
	// ExpiryDuration goroutine 空闲过期时间
	ExpiryDuration time.Duration
	// PreAlloc 是否预分配内存
	PreAlloc bool
	// Nonblocking 提交任务是否非阻塞（若池满则返回错误）
	Nonblocking bool
	// MaxBlockingTasks 当 Nonblocking=false 时，最大等待任务数（0 表示无限制）
	MaxBlockingTasks int
	// PanicHandler 恐慌处理函数
	PanicHandler func(interface{})
}

// DefaultConfig 返回默认池配置
func DefaultConfig() *Config {
	return &Config{
		Capacity:       1000,
		ExpiryDuration: 10 * time.Second,
	}
}

// StageConfig 返回阶段执行池配置。
// 每个请求最多占用一个阶段 goroutine，容量即最大并发请求数。
func StageConfig() *Config {
	return &Config{
		Capacity:         512,
		ExpiryDuration:   30 * time.Second,
		PreAlloc:         true,
		Nonblocking:      true,
		MaxBlockingTasks: 64,
	}
}

// HeartbeatConfig 返回心跳池配置。
// 心跳 goroutine 生命周期短且数量与在途请求一致。
func HeartbeatConfig() *Config {
	return &Config{
		Capacity:       512,
		ExpiryDuration: 10 * time.Second,
		Nonblocking:    true,
	}
}

// Pool represents a worker pool.
type Pool struct {
	name   string
	typ    Type
	pool   *ants.Pool
	config *Config
	stats  statsCounter
	closed atomic.Bool
	mu     sync.Mutex
}

type statsCounter struct {
	Submitted      atomic.Int64
	Completed      atomic.Int64
	Failed         atomic.Int64
	Rejected       atomic.Int64
	PanicRecovered atomic.Int64
}

// Stats contains a snapshot of pool statistics.
type Stats struct {
	Submitted      int64
	Completed      int64
	Failed         int64
	Rejected       int64
	PanicRecovered int64
}

// NewPool creates a new worker pool with the given configuration.
func NewPool(name string, typ Type, config *Config) (*Pool, error) {
	if config == nil {
		config = DefaultConfig()
	}

	p := &Pool{
		name:   name,
		typ:    typ,
		config: config,
	}

	opts := []ants.Option{
		ants.WithExpiryDuration(config.ExpiryDuration),
		ants.WithPreAlloc(config.PreAlloc),
		ants.WithNonblocking(config.Nonblocking),
		ants.WithMaxBlockingTasks(config.MaxBlockingTasks),
	}
	if config.PanicHandler != nil {
		opts = append(opts, ants.WithPanicHandler(config.PanicHandler))
	} else {
		opts = append(opts, ants.WithPanicHandler(func(r interface{}) {
			logger.Errorw("Worker panic recovered", "pool", name, "panic", r)
		}))
	}

	inner, err := ants.NewPool(config.Capacity, opts...)
	if err != nil {
		return nil, fmt.Errorf("创建 ants 池失败: %w", err)
	}
	p.pool = inner

	logger.Infow("Worker pool created",
		"name", name,
		"type", string(typ),
		"capacity", config.Capacity,
	)
	return p, nil
}

// Name 返回池名称
func (p *Pool) Name() string { return p.name }

// Type 返回池类型
func (p *Pool) Type() Type { return p.typ }

// Cap 返回池容量
func (p *Pool) Cap() int { return p.pool.Cap() }

// Running 返回正在运行的 goroutine 数量
func (p *Pool) Running() int { return p.pool.Running() }

// Free 返回可用 goroutine 数量
func (p *Pool) Free() int { return p.pool.Free() }

// Submit 提交任务到池中执行
func (p *Pool) Submit(task func()) error {
	if p.closed.Load() {
		return ErrPoolClosed
	}

	err := p.pool.Submit(func() {
		p.stats.Submitted.Add(1)
		defer func() {
			if r := recover(); r != nil {
				p.stats.PanicRecovered.Add(1)
				p.stats.Failed.Add(1)
				// Re-panic so the ants PanicHandler sees it
				panic(r)
			}
			p.stats.Completed.Add(1)
		}()
		task()
	})
	if err != nil {
		if errors.Is(err, ants.ErrPoolOverload) {
			p.stats.Rejected.Add(1)
			return ErrPoolOverload
		}
		p.stats.Failed.Add(1)
		return err
	}
	return nil
}

// SubmitWithContext 提交带上下文的任务。
// 上下文在任务开始前取消则任务被跳过。
func (p *Pool) SubmitWithContext(ctx context.Context, task func()) error {
	if p.closed.Load() {
		return ErrPoolClosed
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	return p.Submit(func() {
		select {
		case <-ctx.Done():
			return
		default:
			task()
		}
	})
}

// Release 关闭池并释放资源
func (p *Pool) Release() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed.Load() {
		return
	}
	p.closed.Store(true)
	p.pool.Release()
	logger.Infow("Worker pool released", "name", p.name)
}

// ReleaseTimeout 关闭池，等待在途任务完成直到超时
func (p *Pool) ReleaseTimeout(timeout time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed.Load() {
		return nil
	}
	p.closed.Store(true)
	return p.pool.ReleaseTimeout(timeout)
}

// Stats 返回池统计信息快照
func (p *Pool) Stats() Stats {
	return Stats{
		Submitted:      p.stats.Submitted.Load(),
		Completed:      p.stats.Completed.Load(),
		Failed:         p.stats.Failed.Load(),
		Rejected:       p.stats.Rejected.Load(),
		PanicRecovered: p.stats.PanicRecovered.Load(),
	}
}
