package models

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/zhouzirui/sentiscope/backend/internal/config"
	"github.com/zhouzirui/sentiscope/backend/internal/logging"
	"github.com/zhouzirui/sentiscope/backend/internal/service/completion"
)

// ErrNotConfigured 模型对应的 provider 未配置凭证
var ErrNotConfigured = errors.New("provider not configured")

// Factory 按注册表 key 创建并缓存客户端
type Factory struct {
	registry *Registry
	ark      config.ArkConfig
	openai   config.OpenAIConfig
	llm      config.LLMConfig
	log      *logging.Logger

	mu      sync.Mutex
	clients map[string]completion.Client
}

func NewFactory(registry *Registry, cfg *config.Config, log *logging.Logger) *Factory {
	return &Factory{
		registry: registry,
		ark:      cfg.Ark,
		openai:   cfg.OpenAI,
		llm:      cfg.LLM,
		log:      log.Sub("models"),
		clients:  make(map[string]completion.Client),
	}
}

// Registry 模型表
func (f *Factory) Registry() *Registry {
	return f.registry
}

// New 返回 key 对应的客户端，按配置限流
func (f *Factory) New(ctx context.Context, key string) (completion.Client, Spec, error) {
	spec, err := f.registry.Lookup(key)
	if err != nil {
		return nil, Spec{}, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if client, ok := f.clients[key]; ok {
		return client, spec, nil
	}

	client, err := f.build(ctx, spec)
	if err != nil {
		return nil, Spec{}, fmt.Errorf("model %s: %w", key, err)
	}
	client = completion.RateLimited(client, f.llm.RateLimitRPS, f.llm.ConcurrencyLimit)
	f.clients[key] = client

	f.log.Info().Str("model", key).Str("provider", spec.Provider).Msg("completion client ready")
	return client, spec, nil
}

func (f *Factory) build(ctx context.Context, spec Spec) (completion.Client, error) {
	switch spec.Provider {
	case ProviderOpenAI:
		if !f.openai.Enabled() {
			return nil, fmt.Errorf("%w: OPENAI_API_KEY is not set", ErrNotConfigured)
		}
		return completion.NewOpenAIClient(f.openai.APIKey, f.openai.BaseURL, spec.ModelID, spec.MaxTokens), nil
	case ProviderArk:
		chatModel, err := f.ark.NewChatModel(ctx, spec.ModelID, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrNotConfigured, err)
		}
		modelID := spec.ModelID
		if modelID == "" {
			modelID = f.ark.Model
		}
		return completion.NewChatModelClient(ctx, ProviderArk, modelID, chatModel)
	case ProviderLexicon:
		return completion.NewLexiconClient(spec.ModelID), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", spec.Provider)
	}
}

// DefaultKey 选默认模型：优先 SENTIMENT_MODEL，
// 否则取第一个有凭证的 provider（参考 SENTIMENT_PROVIDER），
// 都没有时用离线词典。
func (f *Factory) DefaultKey() string {
	if f.llm.Model != "" {
		return f.llm.Model
	}

	switch f.llm.Provider {
	case ProviderOpenAI:
		return "gpt-mini"
	case ProviderArk:
		return "doubao"
	case ProviderLexicon:
		return "lexicon"
	}

	switch {
	case f.openai.Enabled():
		return "gpt-mini"
	case f.ark.Enabled():
		return "doubao"
	default:
		return "lexicon"
	}
}
