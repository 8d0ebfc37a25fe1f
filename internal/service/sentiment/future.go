package sentiment

import (
	"context"

	analysis "github.com/zhouzirui/sentiscope/backend/internal/analysis/sentiment"
	model "github.com/zhouzirui/sentiscope/backend/internal/model/sentiment"
	"github.com/zhouzirui/sentiscope/backend/internal/service/completion"
)

// Future 后台任务的句柄
type Future[T any] struct {
	done chan struct{}
	val  T
	err  error
}

func newFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

func resolved[T any](val T, err error) *Future[T] {
	f := newFuture[T]()
	f.resolve(val, err)
	return f
}

func (f *Future[T]) resolve(val T, err error) {
	f.val = val
	f.err = err
	close(f.done)
}

// Done 结果就绪后关闭
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Await 等待任务完成或 ctx 结束。ctx 结束不会停止任务本身。
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// AnalyzeAsync 后台分析一条文本。校验在返回前完成，
// 不合法的文本直接得到已完成的 future。
// 并发的异步调用共享分析器的并发上限。
func (a *Analyzer) AnalyzeAsync(ctx context.Context, text string) *Future[*model.Result] {
	in, err := analysis.Preprocess(text)
	if err != nil {
		return resolved[*model.Result](nil, err)
	}

	f := newFuture[*model.Result]()
	go func() {
		if err := a.slots.Acquire(ctx, 1); err != nil {
			f.resolve(nil, &model.AnalysisError{Err: completion.Classify("", err)})
			return
		}
		defer a.slots.Release(1)
		f.resolve(a.stage.Analyze(ctx, in))
	}()
	return f
}

// AnalyzeBatchAsync 后台执行 AnalyzeBatch，预处理在返回前完成
func (a *Analyzer) AnalyzeBatchAsync(ctx context.Context, texts []string, limit int, opts ...BatchOption) *Future[[]model.Outcome] {
	b := a.prepare(texts, limit, opts)

	f := newFuture[[]model.Outcome]()
	go func() {
		f.resolve(a.run(ctx, b))
	}()
	return f
}
