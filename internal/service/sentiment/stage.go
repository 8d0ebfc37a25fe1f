// Package sentiment 情感分析流程：预处理、模型调用与结果校验，
// 提供单条、安全、批量与异步几种调用方式。
package sentiment

import (
	"context"
	"time"

	analysis "github.com/zhouzirui/sentiscope/backend/internal/analysis/sentiment"
	model "github.com/zhouzirui/sentiscope/backend/internal/model/sentiment"
	"github.com/zhouzirui/sentiscope/backend/internal/service/completion"
)

const systemPrompt = `You are an expert sentiment analysis system with a deep understanding
of language nuance, context and emotional intelligence.

ANALYSIS GUIDELINES:
1. Consider the overall tone and specific word choices
2. Identify both explicit and implicit sentiment signals
3. Account for sarcasm, irony and cultural context
4. Weight recent or final statements more heavily

CONFIDENCE SCORING:
- 0.95-1.0: extremely clear, unambiguous sentiment
- 0.85-0.95: clear sentiment with minor ambiguity
- 0.70-0.85: moderate confidence, some mixed signals
- 0.50-0.70: low confidence, genuinely ambiguous

EMOTION DETECTION:
- Only include emotions that are clearly expressed
- Order by intensity (strongest first)
- Maximum 3 emotions

Always extract exact phrases from the original text.

The user message is the text to analyze. Provide a complete analysis with
sentiment, confidence, emotions, key phrases and summary.`

const schemaName = "SentimentResult"

// payload 要求模型返回的结构
type payload struct {
	Sentiment  string   `json:"sentiment" jsonschema:"enum=positive,enum=negative,enum=neutral,enum=mixed" jsonschema_description:"Overall sentiment of the text"`
	Confidence float64  `json:"confidence" jsonschema_description:"Confidence score between 0 and 1"`
	Emotions   []string `json:"emotions" jsonschema_description:"Up to 3 of: joy, sadness, anger, fear, surprise, excitement, frustration. Strongest first"`
	KeyPhrases []string `json:"key_phrases" jsonschema_description:"Up to 5 phrases copied verbatim from the text"`
	Summary    string   `json:"summary" jsonschema_description:"One sentence describing the sentiment"`
}

// StageOptions 传给补全客户端的单次调用策略
type StageOptions struct {
	Temperature *float32
	MaxRetries  int
	Timeout     time.Duration
}

// Stage 用一次补全调用把规范化输入转成校验后的 Result
type Stage struct {
	client completion.Client
	schema map[string]any
	opts   StageOptions
}

func NewStage(client completion.Client, opts StageOptions) *Stage {
	return &Stage{
		client: client,
		schema: completion.GenerateSchema[payload](),
		opts:   opts,
	}
}

// Analyze 自身不重试，重试由客户端策略负责
func (s *Stage) Analyze(ctx context.Context, in analysis.Input) (*model.Result, error) {
	resp, err := s.client.Complete(ctx, completion.Request{
		Instructions: systemPrompt,
		InputText:    in.Text,
		OutputSchema: s.schema,
		SchemaName:   schemaName,
		Temperature:  s.opts.Temperature,
		MaxRetries:   s.opts.MaxRetries,
		Timeout:      s.opts.Timeout,
	})
	if err != nil {
		return nil, analysisFailure(err)
	}

	var p payload
	if err := completion.DecodeJSON(resp.Content, &p); err != nil {
		return nil, analysisFailure(completion.Malformed(resp.Provider, err))
	}

	result, err := model.NewResult(p.Sentiment, p.Confidence, p.Emotions, p.KeyPhrases, p.Summary, in.Text)
	if err != nil {
		return nil, analysisFailure(completion.Malformed(resp.Provider, err))
	}
	return result, nil
}

func analysisFailure(err error) error {
	failure := &model.AnalysisError{Err: err}
	if completion.KindOf(err).Systemic() {
		return &model.SystemicError{Err: failure}
	}
	return failure
}
