package completion

import (
	"context"
	"errors"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"

	"github.com/zhouzirui/sentiscope/backend/internal/model/chat"
)

const (
	providerOpenAI         = "openai"
	defaultSchemaName      = "StructuredOutput"
	defaultMaxOutputTokens = 2000
)

// OpenAIClient 调用 Responses API，请求带 schema 时使用严格 json_schema 输出
type OpenAIClient struct {
	client    openai.Client
	model     string
	maxTokens int64
}

// NewOpenAIClient 创建客户端。关闭 SDK 自带重试，由 Invoke 负责
func NewOpenAIClient(apiKey, baseURL, modelName string, maxTokens int) *OpenAIClient {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if maxTokens <= 0 {
		maxTokens = defaultMaxOutputTokens
	}
	return &OpenAIClient{
		client:    openai.NewClient(opts...),
		model:     modelName,
		maxTokens: int64(maxTokens),
	}
}

// Complete 实现 Client
func (c *OpenAIClient) Complete(ctx context.Context, req Request) (*Response, error) {
	params := c.buildParams(req)

	return Invoke(ctx, providerOpenAI, req, func(ctx context.Context) (*Response, error) {
		resp, err := c.client.Responses.New(ctx, params)
		if err != nil {
			return nil, classifyOpenAI(err)
		}

		text := resp.OutputText()
		if strings.TrimSpace(text) == "" {
			return nil, Malformed(providerOpenAI, errors.New("empty output text"))
		}
		return &Response{
			Content:  text,
			Model:    c.model,
			Provider: providerOpenAI,
			Usage: Usage{
				InputTokens:  int(resp.Usage.InputTokens),
				OutputTokens: int(resp.Usage.OutputTokens),
				TotalTokens:  int(resp.Usage.TotalTokens),
			},
		}, nil
	})
}

func (c *OpenAIClient) buildParams(req Request) responses.ResponseNewParams {
	items := make([]responses.ResponseInputItemUnionParam, 0, len(req.History)+1)
	for _, rec := range req.History {
		role := responses.EasyInputMessageRoleUser
		if rec.Role == chat.Assistant {
			role = responses.EasyInputMessageRoleAssistant
		}
		items = append(items, responses.ResponseInputItemParamOfMessage(rec.Content, role))
	}
	items = append(items, responses.ResponseInputItemParamOfMessage(req.InputText, responses.EasyInputMessageRoleUser))

	params := responses.ResponseNewParams{
		Model:           c.model,
		MaxOutputTokens: openai.Int(c.maxTokens),
		Input: responses.ResponseNewParamsInputUnion{
			OfInputItemList: items,
		},
	}
	if req.Instructions != "" {
		params.Instructions = openai.String(req.Instructions)
	}
	if req.Temperature != nil {
		params.Temperature = openai.Float(float64(*req.Temperature))
	}
	if len(req.OutputSchema) > 0 {
		name := req.SchemaName
		if name == "" {
			name = defaultSchemaName
		}
		params.Text = responses.ResponseTextConfigParam{
			Format: responses.ResponseFormatTextConfigUnionParam{
				OfJSONSchema: &responses.ResponseFormatTextJSONSchemaConfigParam{
					Name:   name,
					Schema: req.OutputSchema,
					Strict: openai.Bool(true),
					Type:   "json_schema",
				},
			},
		}
	}
	return params
}

func classifyOpenAI(err error) error {
	var apiErr *openai.Error
	if !errors.As(err, &apiErr) {
		return Classify(providerOpenAI, err)
	}

	return &Error{Kind: kindForStatus(apiErr.StatusCode), Provider: providerOpenAI, Err: err}
}
