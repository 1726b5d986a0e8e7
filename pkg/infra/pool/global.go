package pool

import (
	"context"
	"sync"
)

var (
	defaultManager     *Manager
	defaultManagerOnce sync.Once
)

// Default 返回进程级默认管理器，内含 default/stage/heartbeat 三个池。
// 首次调用时惰性初始化。
func Default() *Manager {
	defaultManagerOnce.Do(func() {
		defaultManager = NewManager()
		// 注册失败只会因重复注册或参数错误，此处均不可能
		_ = defaultManager.Register(DefaultPool, DefaultConfig())
		_ = defaultManager.Register(StagePool, StageConfig())
		_ = defaultManager.Register(HeartbeatPool, HeartbeatConfig())
	})
	return defaultManager
}

// Submit 提交任务到默认管理器的指定池
func Submit(typ Type, task func()) error {
	p, err := Default().Get(typ)
	if err != nil {
		return err
	}
	return p.Submit(task)
}

// SubmitWithContext 提交带上下文的任务到默认管理器的指定池
func SubmitWithContext(ctx context.Context, typ Type, task func()) error {
	p, err := Default().Get(typ)
	if err != nil {
		return err
	}
	return p.SubmitWithContext(ctx, task)
}
