package completion

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/zhouzirui/sentiscope/backend/internal/model/chat"
)

// ChatModelClient 通过编译好的 template -> model 链
// 驱动任意 eino chat model。
type ChatModelClient struct {
	provider string
	model    string
	chain    compose.Runnable[map[string]any, *schema.Message]
}

// NewChatModelClient 围绕 chatModel 编译提示链
func NewChatModelClient(ctx context.Context, provider, modelName string, chatModel model.BaseChatModel) (*ChatModelClient, error) {
	if chatModel == nil {
		return nil, errors.New("chat model is nil")
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{instructions}"),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{input}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile completion chain: %w", err)
	}

	return &ChatModelClient{provider: provider, model: modelName, chain: runnable}, nil
}

// Complete 实现 Client
func (c *ChatModelClient) Complete(ctx context.Context, req Request) (*Response, error) {
	input := map[string]any{
		"instructions": req.Instructions + SchemaPrompt(req.OutputSchema),
		"history":      historyMessages(req.History),
		"input":        req.InputText,
	}

	var opts []compose.Option
	if req.Temperature != nil {
		opts = append(opts, compose.WithChatModelOption(model.WithTemperature(*req.Temperature)))
	}

	return Invoke(ctx, c.provider, req, func(ctx context.Context) (*Response, error) {
		msg, err := c.chain.Invoke(ctx, input, opts...)
		if err != nil {
			return nil, err
		}
		if msg == nil || strings.TrimSpace(msg.Content) == "" {
			return nil, Malformed(c.provider, errors.New("empty completion"))
		}

		resp := &Response{Content: msg.Content, Model: c.model, Provider: c.provider}
		if msg.ResponseMeta != nil && msg.ResponseMeta.Usage != nil {
			usage := msg.ResponseMeta.Usage
			resp.Usage = Usage{
				InputTokens:  usage.PromptTokens,
				OutputTokens: usage.CompletionTokens,
				TotalTokens:  usage.TotalTokens,
			}
		}
		return resp, nil
	})
}

func historyMessages(records []chat.Record) []*schema.Message {
	if len(records) == 0 {
		return nil
	}

	history := make([]*schema.Message, 0, len(records))
	for _, rec := range records {
		switch rec.Role {
		case chat.Assistant:
			history = append(history, schema.AssistantMessage(rec.Content, nil))
		default:
			history = append(history, schema.UserMessage(rec.Content))
		}
	}
	return history
}
