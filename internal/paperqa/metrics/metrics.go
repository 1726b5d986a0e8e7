// Package metrics 提供问答流水线的业务指标收集。
package metrics

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// PipelineMetrics 流水线业务指标。
type PipelineMetrics struct {
	// 请求指标
	requestsTotal  uint64 // 总请求数
	requestsErrors uint64 // 以错误文案结束的请求数

	// 阶段降级指标
	parseFallbacks     uint64 // 文档解析降级次数
	analysisFallbacks  uint64 // 问题分析降级次数
	retrievalFallbacks uint64 // 段落检索降级次数
	filterFallbacks    uint64 // 证据筛选降级次数

	// 流式输出指标
	heartbeatsTotal uint64 // 发出的保活块总数
	deltasTotal     uint64 // 转发的答案增量总数

	// 截止时间指标
	deadlineExceeded uint64 // 整体截止时间耗尽次数

	// 耗时指标
	pipelineDuration float64 // 流水线总耗时（秒）

	startTime  time.Time
	durationMu sync.Mutex
}

var (
	globalMetrics *PipelineMetrics
	metricsOnce   sync.Once
)

// GetPipelineMetrics 获取全局流水线指标实例。
func GetPipelineMetrics() *PipelineMetrics {
	metricsOnce.Do(func() {
		globalMetrics = &PipelineMetrics{startTime: time.Now()}
	})
	return globalMetrics
}

// RecordRequest 记录一次请求完成。
func (m *PipelineMetrics) RecordRequest(duration time.Duration, failed bool) {
	atomic.AddUint64(&m.requestsTotal, 1)
	if failed {
		atomic.AddUint64(&m.requestsErrors, 1)
	}

	m.durationMu.Lock()
	m.pipelineDuration += duration.Seconds()
	m.durationMu.Unlock()
}

// RecordFallback 记录一次阶段降级。
func (m *PipelineMetrics) RecordFallback(stage string) {
	switch stage {
	case "parse":
		atomic.AddUint64(&m.parseFallbacks, 1)
	case "analysis":
		atomic.AddUint64(&m.analysisFallbacks, 1)
	case "retrieval":
		atomic.AddUint64(&m.retrievalFallbacks, 1)
	case "filter":
		atomic.AddUint64(&m.filterFallbacks, 1)
	}
}

// RecordHeartbeat 记录一次保活块发送。
func (m *PipelineMetrics) RecordHeartbeat() {
	atomic.AddUint64(&m.heartbeatsTotal, 1)
}

// RecordDelta 记录一次答案增量转发。
func (m *PipelineMetrics) RecordDelta() {
	atomic.AddUint64(&m.deltasTotal, 1)
}

// RecordDeadlineExceeded 记录一次整体截止时间耗尽。
func (m *PipelineMetrics) RecordDeadlineExceeded() {
	atomic.AddUint64(&m.deadlineExceeded, 1)
}

// Export 导出 Prometheus 文本格式指标。
func (m *PipelineMetrics) Export(namespace, subsystem string) string {
	var sb strings.Builder
	prefix := namespace
	if subsystem != "" {
		prefix = prefix + "_" + subsystem
	}

	counter := func(name, help string, value uint64) {
		sb.WriteString(fmt.Sprintf("# HELP %s_%s %s\n", prefix, name, help))
		sb.WriteString(fmt.Sprintf("# TYPE %s_%s counter\n", prefix, name))
		sb.WriteString(fmt.Sprintf("%s_%s %d\n\n", prefix, name, value))
	}

	counter("requests_total", "Total number of pipeline requests.", atomic.LoadUint64(&m.requestsTotal))
	counter("requests_errors_total", "Number of requests ended with an error message.", atomic.LoadUint64(&m.requestsErrors))
	counter("parse_fallbacks_total", "Number of document parsing fallbacks.", atomic.LoadUint64(&m.parseFallbacks))
	counter("analysis_fallbacks_total", "Number of question analysis fallbacks.", atomic.LoadUint64(&m.analysisFallbacks))
	counter("retrieval_fallbacks_total", "Number of passage retrieval fallbacks.", atomic.LoadUint64(&m.retrievalFallbacks))
	counter("filter_fallbacks_total", "Number of evidence filter fallbacks.", atomic.LoadUint64(&m.filterFallbacks))
	counter("heartbeats_total", "Total keepalive chunks emitted.", atomic.LoadUint64(&m.heartbeatsTotal))
	counter("answer_deltas_total", "Total answer deltas forwarded.", atomic.LoadUint64(&m.deltasTotal))
	counter("deadline_exceeded_total", "Number of overall deadline expirations.", atomic.LoadUint64(&m.deadlineExceeded))

	m.durationMu.Lock()
	pipelineDuration := m.pipelineDuration
	m.durationMu.Unlock()

	sb.WriteString(fmt.Sprintf("# HELP %s_duration_seconds_total Total pipeline duration.\n", prefix))
	sb.WriteString(fmt.Sprintf("# TYPE %s_duration_seconds_total counter\n", prefix))
	sb.WriteString(fmt.Sprintf("%s_duration_seconds_total %.6f\n\n", prefix, pipelineDuration))

	uptime := time.Since(m.startTime).Seconds()
	sb.WriteString(fmt.Sprintf("# HELP %s_uptime_seconds Service uptime in seconds.\n", prefix))
	sb.WriteString(fmt.Sprintf("# TYPE %s_uptime_seconds gauge\n", prefix))
	sb.WriteString(fmt.Sprintf("%s_uptime_seconds %.2f\n\n", prefix, uptime))

	return sb.String()
}

// Stats 返回当前统计信息（用于 API）。
func (m *PipelineMetrics) Stats() map[string]interface{} {
	m.durationMu.Lock()
	pipelineDuration := m.pipelineDuration
	m.durationMu.Unlock()

	total := atomic.LoadUint64(&m.requestsTotal)
	avgDuration := 0.0
	if total > 0 {
		avgDuration = pipelineDuration / float64(total)
	}

	return map[string]interface{}{
		"requests": map[string]interface{}{
			"total":               total,
			"errors":              atomic.LoadUint64(&m.requestsErrors),
			"total_duration_secs": pipelineDuration,
			"avg_duration_secs":   avgDuration,
		},
		"fallbacks": map[string]interface{}{
			"parse":     atomic.LoadUint64(&m.parseFallbacks),
			"analysis":  atomic.LoadUint64(&m.analysisFallbacks),
			"retrieval": atomic.LoadUint64(&m.retrievalFallbacks),
			"filter":    atomic.LoadUint64(&m.filterFallbacks),
		},
		"stream": map[string]interface{}{
			"heartbeats":    atomic.LoadUint64(&m.heartbeatsTotal),
			"answer_deltas": atomic.LoadUint64(&m.deltasTotal),
		},
		"deadline_exceeded": atomic.LoadUint64(&m.deadlineExceeded),
		"uptime_seconds":    time.Since(m.startTime).Seconds(),
	}
}

// Reset 重置所有指标（仅用于测试）。
func (m *PipelineMetrics) Reset() {
	atomic.StoreUint64(&m.requestsTotal, 0)
	atomic.StoreUint64(&m.requestsErrors, 0)
	atomic.StoreUint64(&m.parseFallbacks, 0)
	atomic.StoreUint64(&m.analysisFallbacks, 0)
	atomic.StoreUint64(&m.retrievalFallbacks, 0)
	atomic.StoreUint64(&m.filterFallbacks, 0)
	atomic.StoreUint64(&m.heartbeatsTotal, 0)
	atomic.StoreUint64(&m.deltasTotal, 0)
	atomic.StoreUint64(&m.deadlineExceeded, 0)

	m.durationMu.Lock()
	m.pipelineDuration = 0
	m.startTime = time.Now()
	m.durationMu.Unlock()
}
