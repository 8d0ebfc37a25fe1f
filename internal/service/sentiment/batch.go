package sentiment

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	analysis "github.com/zhouzirui/sentiscope/backend/internal/analysis/sentiment"
	model "github.com/zhouzirui/sentiscope/backend/internal/model/sentiment"
	"github.com/zhouzirui/sentiscope/backend/internal/service/completion"
)

// ProgressFunc 每完成一条回调一次，串行调用
type ProgressFunc func(outcome model.Outcome, done, total int)

type BatchOption func(*batchConfig)

type batchConfig struct {
	progress ProgressFunc
}

// WithProgress 注册进度回调
func WithProgress(fn ProgressFunc) BatchOption {
	return func(c *batchConfig) { c.progress = fn }
}

type batch struct {
	outcomes []model.Outcome
	inputs   []analysis.Input
	pending  []int
	limit    int
	cfg      batchConfig

	mu   sync.Mutex
	done int
}

// prepare 预处理所有文本，失败的直接记为校验错误，
// 不会发给模型。
func (a *Analyzer) prepare(texts []string, limit int, opts []BatchOption) *batch {
	if limit <= 0 {
		limit = a.opts.ConcurrencyLimit
	}
	b := &batch{
		outcomes: make([]model.Outcome, len(texts)),
		inputs:   make([]analysis.Input, len(texts)),
		pending:  make([]int, 0, len(texts)),
		limit:    limit,
	}
	for _, opt := range opts {
		opt(&b.cfg)
	}

	for i, raw := range texts {
		b.outcomes[i].Index = i
		in, err := analysis.Preprocess(raw)
		if err != nil {
			b.outcomes[i].Err = err
			b.report(i)
			continue
		}
		b.inputs[i] = in
		b.pending = append(b.pending, i)
	}
	return b
}

func (b *batch) report(i int) {
	if b.cfg.progress == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.done++
	b.cfg.progress(b.outcomes[i], b.done, len(b.outcomes))
}

// AnalyzeBatch 批量分析，同时最多 limit 个模型调用（<= 0 用默认值）。
// 返回的切片与输入一一对应、下标一致。单条失败留在自己的槽位；
// 系统性失败会取消剩余任务，并与已填的结果一起返回。
func (a *Analyzer) AnalyzeBatch(ctx context.Context, texts []string, limit int, opts ...BatchOption) ([]model.Outcome, error) {
	return a.run(ctx, a.prepare(texts, limit, opts))
}

func (a *Analyzer) run(ctx context.Context, b *batch) ([]model.Outcome, error) {
	a.log.Debug().Int("items", len(b.outcomes)).Int("pending", len(b.pending)).Int("limit", b.limit).Msg("batch started")

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.limit)

	started := make([]bool, len(b.outcomes))
	for _, i := range b.pending {
		if gctx.Err() != nil {
			break
		}
		started[i] = true
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				b.outcomes[i].Err = &model.AnalysisError{Err: completion.Classify("", err)}
				b.report(i)
				return nil
			}

			result, err := a.stage.Analyze(gctx, b.inputs[i])
			b.outcomes[i].Result = result
			b.outcomes[i].Err = err
			b.report(i)
			if model.IsSystemic(err) {
				return err
			}
			return nil
		})
	}

	err := g.Wait()
	for _, i := range b.pending {
		if !started[i] {
			b.outcomes[i].Err = &model.AnalysisError{Err: completion.Classify("", context.Canceled)}
			b.report(i)
		}
	}
	if err == nil {
		err = ctx.Err()
	}

	failed := 0
	for _, o := range b.outcomes {
		if !o.OK() {
			failed++
		}
	}
	event := a.log.Info()
	if err != nil {
		event = a.log.Error().Err(err)
	}
	event.Int("items", len(b.outcomes)).Int("failed", failed).Msg("batch finished")

	return b.outcomes, err
}
