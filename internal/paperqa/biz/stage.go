package biz

import (
	"context"
	"time"

	"github.com/kart-io/logger"
	"go.opentelemetry.io/otel/attribute"

	"github.com/kart-io/paperqa/pkg/infra/pool"
	"github.com/kart-io/paperqa/pkg/infra/tracing"
	apierrors "github.com/kart-io/paperqa/pkg/utils/errors"
)

// stageResult 承载一次阶段执行的产出。
type stageResult[T any] struct {
	value T
	err   error
}

// runStage 在独立的超时之下执行一个流水线阶段。
//
// 成功时返回 (fn 结果, nil)。fn 超时、出错或整体截止时间已耗尽时，
// 同步执行 fallback 并返回 (fallback 结果, 失败原因)，原因按类别
// 归入结构化错误码：外部调用失败、阶段超时、整体预算耗尽。
// fallback 必须是无外部依赖的纯本地操作，因此不受额外超时约束。
// fn 的迟到结果被丢弃；发往缓冲通道的写入保证执行 fn 的 goroutine
// 不会泄漏。每个阶段只执行一次外部尝试，失败不重试。
func runStage[T any](ctx context.Context, name string, timeout time.Duration, fn func(context.Context) (T, error), fallback func() T) (T, *apierrors.Errno) {
	if err := ctx.Err(); err != nil {
		logger.Warnw("Pipeline deadline exhausted before stage start", "stage", name, "error", err.Error())
		return fallback(), apierrors.ErrDeadlineExceeded.WithCause(err)
	}

	stageCtx, span := tracing.StartStage(ctx, name, attribute.String("stage.timeout", timeout.String()))
	defer span.End()

	stageCtx, cancel := context.WithTimeout(stageCtx, timeout)
	defer cancel()

	start := time.Now()
	results := make(chan stageResult[T], 1)
	task := func() {
		value, err := fn(stageCtx)
		results <- stageResult[T]{value: value, err: err}
	}
	// 阶段工作者跑在有界的 stage 池上；池饱和或已释放时退回裸 goroutine
	if err := pool.Submit(pool.StagePool, task); err != nil {
		logger.Warnw("Stage pool rejected task, running inline goroutine", "stage", name, "error", err.Error())
		go task()
	}

	select {
	case r := <-results:
		if r.err != nil {
			failure := apierrors.ErrExternalService.WithCause(r.err)
			logger.Warnw("Stage failed, using fallback",
				"stage", name,
				"duration", time.Since(start).String(),
				"error", failure.Error(),
			)
			tracing.RecordError(stageCtx, failure)
			span.SetAttributes(attribute.Bool("stage.fallback", true))
			return fallback(), failure
		}
		logger.Infow("Stage completed",
			"stage", name,
			"duration", time.Since(start).String(),
		)
		return r.value, nil
	case <-stageCtx.Done():
		failure := apierrors.ErrStageTimeout.WithCause(stageCtx.Err())
		if ctx.Err() != nil {
			// 整体截止时间先于阶段超时到期
			failure = apierrors.ErrDeadlineExceeded.WithCause(ctx.Err())
		}
		logger.Warnw("Stage timed out, using fallback",
			"stage", name,
			"timeout", timeout.String(),
			"error", failure.Error(),
		)
		tracing.RecordError(stageCtx, failure)
		span.SetAttributes(attribute.Bool("stage.fallback", true))
		return fallback(), failure
	}
}
