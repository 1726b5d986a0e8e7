package pool

import "errors"

var (
	// ErrPoolClosed 池已关闭
	ErrPoolClosed = errors.New("worker pool is closed")
	// ErrPoolOverload 池已满且配置为非阻塞
	ErrPoolOverload = errors.New("worker pool is overloaded")
	// ErrPoolNotFound 指定名称的池不存在
	ErrPoolNotFound = errors.New("worker pool not found")
	// ErrPoolAlreadyExists 池名称已被注册
	ErrPoolAlreadyExists = errors.New("worker pool already exists")
)
