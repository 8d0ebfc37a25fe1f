package sentiment

import (
	"context"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	analysis "github.com/zhouzirui/sentiscope/backend/internal/analysis/sentiment"
	"github.com/zhouzirui/sentiscope/backend/internal/logging"
	model "github.com/zhouzirui/sentiscope/backend/internal/model/sentiment"
	"github.com/zhouzirui/sentiscope/backend/internal/service/completion"
)

// DefaultConcurrency 未指定时的批量并发上限
const DefaultConcurrency = 5

// Options 分析器配置
type Options struct {
	Model            string
	Temperature      *float32
	MaxRetries       int
	Timeout          time.Duration
	ConcurrencyLimit int
}

// Analyzer 各种分析方式的入口
type Analyzer struct {
	stage *Stage
	opts  Options
	log   *logging.Logger
	slots *semaphore.Weighted
}

func NewAnalyzer(client completion.Client, opts Options, log *logging.Logger) *Analyzer {
	if opts.ConcurrencyLimit <= 0 {
		opts.ConcurrencyLimit = DefaultConcurrency
	}
	if log == nil {
		log = logging.Nop()
	}
	return &Analyzer{
		stage: NewStage(client, StageOptions{
			Temperature: opts.Temperature,
			MaxRetries:  opts.MaxRetries,
			Timeout:     opts.Timeout,
		}),
		opts:  opts,
		log:   log.Sub("sentiment"),
		slots: semaphore.NewWeighted(int64(opts.ConcurrencyLimit)),
	}
}

// Model 分析器使用的模型
func (a *Analyzer) Model() string {
	return a.opts.Model
}

// Stage 分析阶段，组装 pipeline 用
func (a *Analyzer) Stage() *Stage {
	return a.stage
}

// Analyze 预处理并分析一条文本。
// 第一个错误原样返回：*ValidationError、*AnalysisError 或 *SystemicError。
func (a *Analyzer) Analyze(ctx context.Context, text string) (*model.Result, error) {
	in, err := analysis.Preprocess(text)
	if err != nil {
		return nil, err
	}
	return a.stage.Analyze(ctx, in)
}

// AnalyzeSafe 不会失败，错误和 panic 都转成失败响应
func (a *Analyzer) AnalyzeSafe(ctx context.Context, text string) model.AnalysisResponse {
	start := time.Now()
	requestID := uuid.NewString()

	var in analysis.Input
	result, err := Guard(func() (*model.Result, error) {
		var err error
		in, err = analysis.Preprocess(text)
		if err != nil {
			return nil, err
		}
		return a.stage.Analyze(ctx, in)
	})
	if err != nil {
		class, msg := Classify(err)
		a.log.Warn().Str("request_id", requestID).Str("class", string(class)).Err(err).Msg("analysis failed")
		resp := model.Failed(class, msg)
		resp.Metadata = map[string]any{"request_id": requestID, "model": a.opts.Model}
		return resp
	}

	elapsed := time.Since(start)
	a.log.Debug().Str("request_id", requestID).Str("sentiment", string(result.Sentiment)).Dur("elapsed", elapsed).Msg("analysis done")
	return model.Succeeded(result, map[string]any{
		"model":        a.opts.Model,
		"input_length": in.OriginalLength,
		"word_count":   in.WordCount,
		"truncated":    in.Truncated,
		"request_id":   requestID,
		"elapsed_ms":   elapsed.Milliseconds(),
	})
}
