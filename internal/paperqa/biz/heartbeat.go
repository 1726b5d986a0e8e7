package biz

import (
	"sync"
	"time"

	"github.com/kart-io/logger"

	"github.com/kart-io/paperqa/pkg/infra/pool"
)

// heartbeatContent 保活块的内容：单个空格。
const heartbeatContent = " "

// heartbeat 在长阶段执行期间按固定间隔向输出流注入保活块。
//
// Stop 保证精确一次交接：返回后不会再有任何保活块被发出，
// 正在进行的 tick 会被丢弃。真实输出开始之前必须先调用 Stop。
type heartbeat struct {
	done chan struct{}
	wg   sync.WaitGroup
	once sync.Once
}

// startHeartbeat 启动保活定时器。emit 将保活内容写入与真实输出
// 相同的有序通道。interval 必须为正。
func startHeartbeat(interval time.Duration, emit func(content string)) *heartbeat {
	h := &heartbeat{done: make(chan struct{})}

	h.wg.Add(1)
	run := func() {
		defer h.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-h.done:
				return
			case <-ticker.C:
				// tick 与 Stop 竞争时以 Stop 为准
				select {
				case <-h.done:
					return
				default:
				}
				emit(heartbeatContent)
			}
		}
	}
	// 保活定时器跑在专用的 heartbeat 池上；池饱和或已释放时退回裸 goroutine
	if err := pool.Submit(pool.HeartbeatPool, run); err != nil {
		logger.Warnw("Heartbeat pool rejected ticker, running inline goroutine", "error", err.Error())
		go run()
	}

	return h
}

// Stop 停止保活并等待发射 goroutine 退出。
// 返回后保证不再产生任何保活块。可安全地多次调用。
func (h *heartbeat) Stop() {
	h.once.Do(func() {
		close(h.done)
	})
	h.wg.Wait()
}
