package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server  ServerConfig
	Log     LogConfig
	LLM     LLMConfig
	Ark     ArkConfig
	OpenAI  OpenAIConfig
	Session SessionConfig
	Chat    ChatConfig
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	llm, err := loadLLMConfig()
	if err != nil {
		return nil, err
	}

	arkCfg, err := loadArkConfig()
	if err != nil {
		return nil, err
	}

	session, err := loadSessionConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Server:  server,
		Log:     LogConfig{Level: getEnvOrDefault("LOG_LEVEL", "info")},
		LLM:     llm,
		Ark:     arkCfg,
		OpenAI:  loadOpenAIConfig(),
		Session: session,
		Chat:    ChatConfig{SystemPrompt: getEnvOrDefault("CHAT_SYSTEM_PROMPT", defaultChatPrompt)},
	}, nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr string
}

// loadServerConfig 解析服务器监听地址。
func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":8080" 或 "127.0.0.1:8080"。
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

// LogConfig 描述日志级别。
type LogConfig struct {
	Level string
}

// LLMConfig 描述情感分析调用策略。
type LLMConfig struct {
	// Provider 为空时按可用凭证自动选择。
	Provider         string
	Model            string
	ModelsFile       string
	Temperature      *float32
	MaxRetries       int
	Timeout          time.Duration
	ConcurrencyLimit int
	RateLimitRPS     float64
}

func loadLLMConfig() (LLMConfig, error) {
	temperature, err := parseOptionalFloat32Env("LLM_TEMPERATURE")
	if err != nil {
		return LLMConfig{}, err
	}
	if temperature == nil {
		val := float32(0.1)
		temperature = &val
	}

	maxRetries, err := parseIntEnv("LLM_MAX_RETRIES", 3)
	if err != nil {
		return LLMConfig{}, err
	}
	if maxRetries < 0 {
		maxRetries = 0
	}

	timeoutSeconds, err := parseIntEnv("LLM_TIMEOUT_SECONDS", 30)
	if err != nil {
		return LLMConfig{}, err
	}

	concurrency, err := parseIntEnv("LLM_CONCURRENCY_LIMIT", 5)
	if err != nil {
		return LLMConfig{}, err
	}
	if concurrency < 1 {
		concurrency = 1
	}

	rps, err := parseOptionalFloatEnv("LLM_RATE_LIMIT_RPS")
	if err != nil {
		return LLMConfig{}, err
	}
	var rateLimit float64
	if rps != nil {
		rateLimit = *rps
	}

	return LLMConfig{
		Provider:         strings.ToLower(strings.TrimSpace(os.Getenv("SENTIMENT_PROVIDER"))),
		Model:            strings.TrimSpace(os.Getenv("SENTIMENT_MODEL")),
		ModelsFile:       strings.TrimSpace(os.Getenv("MODELS_FILE")),
		Temperature:      temperature,
		MaxRetries:       maxRetries,
		Timeout:          time.Duration(timeoutSeconds) * time.Second,
		ConcurrencyLimit: concurrency,
		RateLimitRPS:     rateLimit,
	}, nil
}

// ArkConfig 描述火山方舟模型配置。
type ArkConfig struct {
	APIKey    string
	AccessKey string
	SecretKey string
	Model     string
	BaseURL   string
	Region    string
	TopP      *float32
	MaxTokens *int
}

// Enabled 表示是否提供了必需的密钥。
func (c ArkConfig) Enabled() bool {
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// NewChatModel 使用配置创建一个模型实例；modelID 为空时使用 ARK_MODEL。
func (c ArkConfig) NewChatModel(ctx context.Context, modelID string, temperature *float32) (model.BaseChatModel, error) {
	if modelID == "" {
		modelID = c.Model
	}
	if modelID == "" || (c.APIKey == "" && (c.AccessKey == "" || c.SecretKey == "")) {
		return nil, fmt.Errorf("Ark 凭证或模型配置缺失，至少提供 ARK_API_KEY + ARK_MODEL 或 AK/SK 组合")
	}

	cfg := &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		Region:      c.Region,
		APIKey:      c.APIKey,
		AccessKey:   c.AccessKey,
		SecretKey:   c.SecretKey,
		Model:       modelID,
		MaxTokens:   c.MaxTokens,
		Temperature: temperature,
		TopP:        c.TopP,
	}

	return ark.NewChatModel(ctx, cfg)
}

func loadArkConfig() (ArkConfig, error) {
	topP, err := parseOptionalFloat32Env("ARK_TOP_P")
	if err != nil {
		return ArkConfig{}, err
	}

	maxTokens, err := parseOptionalIntEnv("ARK_MAX_TOKENS")
	if err != nil {
		return ArkConfig{}, err
	}

	return ArkConfig{
		APIKey:    strings.TrimSpace(os.Getenv("ARK_API_KEY")),
		AccessKey: strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY")),
		SecretKey: strings.TrimSpace(os.Getenv("ARK_SECRET_KEY")),
		Model:     strings.TrimSpace(os.Getenv("ARK_MODEL")),
		BaseURL:   getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
		Region:    getEnvOrDefault("ARK_REGION", "cn-beijing"),
		TopP:      topP,
		MaxTokens: maxTokens,
	}, nil
}

// OpenAIConfig 描述 OpenAI Responses API 配置。
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
}

func (c OpenAIConfig) Enabled() bool {
	return c.APIKey != ""
}

func loadOpenAIConfig() OpenAIConfig {
	return OpenAIConfig{
		APIKey:  strings.TrimSpace(os.Getenv("OPENAI_API_KEY")),
		BaseURL: strings.TrimSpace(os.Getenv("OPENAI_BASE_URL")),
	}
}

// SessionConfig 描述会话存储后端。
type SessionConfig struct {
	Store  string
	DBPath string
}

func loadSessionConfig() (SessionConfig, error) {
	store := strings.ToLower(getEnvOrDefault("SESSION_STORE", "memory"))
	switch store {
	case "memory", "sqlite":
	default:
		return SessionConfig{}, fmt.Errorf("invalid SESSION_STORE value %q: want memory or sqlite", store)
	}
	return SessionConfig{
		Store:  store,
		DBPath: getEnvOrDefault("SESSION_DB_PATH", "data/sessions.db"),
	}, nil
}

// ChatConfig 描述多轮对话配置。
type ChatConfig struct {
	SystemPrompt string
}

const defaultChatPrompt = "You are a helpful, concise assistant."

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseIntEnv(key string, defaultValue int) (int, error) {
	val, err := parseOptionalIntEnv(key)
	if err != nil {
		return 0, err
	}
	if val == nil {
		return defaultValue, nil
	}
	return *val, nil
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalFloat32Env(key string) (*float32, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 32)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	result := float32(val)
	return &result, nil
}
