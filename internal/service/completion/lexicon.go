package completion

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/zhouzirui/sentiscope/backend/internal/analysis/sentiment"
)

const providerLexicon = "lexicon"

// LexiconClient 离线 provider，用关键词词典打分，不调用托管模型
type LexiconClient struct {
	model string
}

func NewLexiconClient(modelName string) *LexiconClient {
	if modelName == "" {
		modelName = providerLexicon
	}
	return &LexiconClient{model: modelName}
}

// Complete 实现 Client。结构化请求返回 JSON 结论，
// 自由文本请求返回一行语气描述。
func (c *LexiconClient) Complete(ctx context.Context, req Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, Classify(providerLexicon, err)
	}

	verdict := sentiment.Score(req.InputText)

	var content string
	if len(req.OutputSchema) > 0 {
		b, err := json.Marshal(verdict)
		if err != nil {
			return nil, Malformed(providerLexicon, err)
		}
		content = string(b)
	} else {
		content = fmt.Sprintf("That reads as %s (%.0f%% sure). %s", verdict.Sentiment, verdict.Confidence*100, verdict.Summary)
	}

	in := len(strings.Fields(req.Instructions)) + len(strings.Fields(req.InputText))
	for _, rec := range req.History {
		in += len(strings.Fields(rec.Content))
	}
	out := len(strings.Fields(content))

	return &Response{
		Content:  content,
		Model:    c.model,
		Provider: providerLexicon,
		Usage:    Usage{InputTokens: in, OutputTokens: out, TotalTokens: in + out},
	}, nil
}
