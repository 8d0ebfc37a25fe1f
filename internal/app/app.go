// Package app 组装 HTTP 服务与 CLI 共用的服务。
package app

import (
	"context"
	"fmt"

	"github.com/zhouzirui/sentiscope/backend/internal/config"
	"github.com/zhouzirui/sentiscope/backend/internal/logging"
	"github.com/zhouzirui/sentiscope/backend/internal/service/chat"
	"github.com/zhouzirui/sentiscope/backend/internal/service/models"
	"github.com/zhouzirui/sentiscope/backend/internal/service/sentiment"
)

// App 已装配好的服务集合
type App struct {
	Config       *config.Config
	Log          *logging.Logger
	Registry     *models.Registry
	Factory      *models.Factory
	ModelKey     string
	Analyzer     *sentiment.Analyzer
	Pipeline     *sentiment.Pipeline
	Conversation *chat.Conversation

	closeStore func() error
}

// New 根据配置构建所有服务。
// 分析器优先用 SENTIMENT_MODEL，否则取第一个有凭证的 provider。
func New(ctx context.Context, cfg *config.Config, log *logging.Logger) (*App, error) {
	if log == nil {
		log = logging.Nop()
	}

	registry, err := models.LoadRegistry(cfg.LLM.ModelsFile)
	if err != nil {
		return nil, err
	}
	factory := models.NewFactory(registry, cfg, log)

	key := factory.DefaultKey()
	client, spec, err := factory.New(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("initializing sentiment model: %w", err)
	}

	analyzer := sentiment.NewAnalyzer(client, sentiment.Options{
		Model:            spec.Key,
		Temperature:      cfg.LLM.Temperature,
		MaxRetries:       cfg.LLM.MaxRetries,
		Timeout:          cfg.LLM.Timeout,
		ConcurrencyLimit: cfg.LLM.ConcurrencyLimit,
	}, log)

	pipeline, err := sentiment.NewPipeline(ctx, analyzer)
	if err != nil {
		return nil, err
	}

	store, closeStore, err := chat.OpenStore(cfg.Session.Store, cfg.Session.DBPath, log)
	if err != nil {
		return nil, fmt.Errorf("opening session store: %w", err)
	}

	conv := chat.NewConversation(store, factory, chat.ConversationOptions{
		SystemPrompt: cfg.Chat.SystemPrompt,
		DefaultModel: key,
		MaxRetries:   cfg.LLM.MaxRetries,
		Timeout:      cfg.LLM.Timeout,
	}, log)

	log.Info().
		Str("model", spec.Key).
		Str("provider", spec.Provider).
		Str("store", storeName(cfg.Session.Store)).
		Int("concurrency", cfg.LLM.ConcurrencyLimit).
		Msg("services ready")

	return &App{
		Config:       cfg,
		Log:          log,
		Registry:     registry,
		Factory:      factory,
		ModelKey:     key,
		Analyzer:     analyzer,
		Pipeline:     pipeline,
		Conversation: conv,
		closeStore:   closeStore,
	}, nil
}

// Close 释放会话存储
func (a *App) Close() error {
	if a.closeStore == nil {
		return nil
	}
	return a.closeStore()
}

func storeName(s string) string {
	if s == "" {
		return "memory"
	}
	return s
}
