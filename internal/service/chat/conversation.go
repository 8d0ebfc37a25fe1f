package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/zhouzirui/sentiscope/backend/internal/logging"
	"github.com/zhouzirui/sentiscope/backend/internal/model/chat"
	"github.com/zhouzirui/sentiscope/backend/internal/service/completion"
	"github.com/zhouzirui/sentiscope/backend/internal/service/models"
)

var ErrEmptyMessage = errors.New("message cannot be empty")

// ClientSource 按模型 key 取客户端
type ClientSource interface {
	New(ctx context.Context, key string) (completion.Client, models.Spec, error)
	Registry() *models.Registry
}

// ConversationOptions 每轮对话的配置
type ConversationOptions struct {
	SystemPrompt string
	DefaultModel string
	Temperature  *float32
	MaxRetries   int
	Timeout      time.Duration
}

// Reply 一轮中助手的回复
type Reply struct {
	Content string           `json:"content"`
	Model   string           `json:"model"`
	Usage   completion.Usage `json:"usage"`
}

// Conversation 基于 Store 的多轮对话
type Conversation struct {
	store   Store
	clients ClientSource
	usage   *UsageTracker
	opts    ConversationOptions
	log     *logging.Logger

	mu     sync.RWMutex
	models map[string]string
}

func NewConversation(store Store, clients ClientSource, opts ConversationOptions, log *logging.Logger) *Conversation {
	return &Conversation{
		store:   store,
		clients: clients,
		usage:   NewUsageTracker(),
		opts:    opts,
		log:     log.Sub("conversation"),
		models:  make(map[string]string),
	}
}

// Store 底层历史存储
func (c *Conversation) Store() Store {
	return c.store
}

// Usage 会话用量汇总
func (c *Conversation) Usage(key string) UsageSummary {
	return c.usage.Summary(key)
}

// ModelFor 会话当前使用的模型 key
func (c *Conversation) ModelFor(key string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if m, ok := c.models[key]; ok {
		return m
	}
	return c.opts.DefaultModel
}

// SetModel 切换会话模型。立即创建客户端，
// 缺少凭证在这里就报错。
func (c *Conversation) SetModel(ctx context.Context, key, model string) (models.Spec, error) {
	_, spec, err := c.clients.New(ctx, model)
	if err != nil {
		return models.Spec{}, err
	}
	c.mu.Lock()
	c.models[key] = model
	c.mu.Unlock()
	return spec, nil
}

// Send 完成一轮对话。模型应答后才写入两条消息，
// 调用失败时历史不变。
func (c *Conversation) Send(ctx context.Context, key, text string) (Reply, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Reply{}, ErrEmptyMessage
	}
	if key == "" {
		return Reply{}, ErrKeyRequired
	}

	modelKey := c.ModelFor(key)
	client, spec, err := c.clients.New(ctx, modelKey)
	if err != nil {
		return Reply{}, err
	}

	history, err := c.store.Export(ctx, key)
	if err != nil {
		return Reply{}, fmt.Errorf("loading history: %w", err)
	}

	resp, err := client.Complete(ctx, completion.Request{
		Instructions: c.opts.SystemPrompt,
		InputText:    text,
		History:      history,
		Temperature:  c.opts.Temperature,
		MaxRetries:   c.opts.MaxRetries,
		Timeout:      c.opts.Timeout,
	})
	if err != nil {
		c.log.Warn().Str("session", key).Str("model", modelKey).Err(err).Msg("completion failed")
		return Reply{}, err
	}

	if err := c.store.Append(ctx, key, chat.Human, text); err != nil {
		return Reply{}, err
	}
	if err := c.store.Append(ctx, key, chat.Assistant, resp.Content); err != nil {
		return Reply{}, err
	}
	c.usage.Record(key, spec, resp.Usage)

	c.log.Debug().Str("session", key).Str("model", modelKey).Int("tokens", resp.Usage.TotalTokens).Msg("turn completed")
	return Reply{Content: resp.Content, Model: modelKey, Usage: resp.Usage}, nil
}
