package sentiment

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/compose"

	analysis "github.com/zhouzirui/sentiscope/backend/internal/analysis/sentiment"
	model "github.com/zhouzirui/sentiscope/backend/internal/model/sentiment"
)

// Pipeline 预处理 -> 分析 -> 报告 的完整链路
type Pipeline struct {
	runnable compose.Runnable[string, analysis.Report]
}

// NewPipeline 把三步编译成一条 eino chain
func NewPipeline(ctx context.Context, a *Analyzer) (*Pipeline, error) {
	chain := compose.NewChain[string, analysis.Report]()
	chain.AppendLambda(compose.InvokableLambda(func(ctx context.Context, raw string) (analysis.Input, error) {
		return analysis.Preprocess(raw)
	}))
	chain.AppendLambda(compose.InvokableLambda(func(ctx context.Context, in analysis.Input) (*model.Result, error) {
		return a.stage.Analyze(ctx, in)
	}))
	chain.AppendLambda(compose.InvokableLambda(func(ctx context.Context, r *model.Result) (analysis.Report, error) {
		return analysis.Postprocess(r), nil
	}))

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile sentiment pipeline: %w", err)
	}
	return &Pipeline{runnable: runnable}, nil
}

// Run 分析文本并生成报告。错误类型在链中保留，
// model.IsValidation 等判断依然有效。
func (p *Pipeline) Run(ctx context.Context, text string) (analysis.Report, error) {
	return p.runnable.Invoke(ctx, text)
}
