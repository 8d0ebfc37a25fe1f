// Package completion 对接托管的文本补全模型。
// 所有 provider 都通过 Client 调用，失败统一返回 *Error。
package completion

import (
	"context"
	"time"

	"github.com/zhouzirui/sentiscope/backend/internal/model/chat"
)

// Request 一次补全调用
type Request struct {
	Instructions string
	InputText    string
	History      []chat.Record

	// OutputSchema 非空时要求返回符合该 schema 的 JSON 对象，
	// SchemaName 供需要命名的 provider 使用。
	OutputSchema map[string]any
	SchemaName   string

	// Temperature 为 nil 时用 provider 默认值
	Temperature *float32
	MaxRetries  int
	Timeout     time.Duration
}

// Usage 一次调用计费的 token 数
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// Add 累加
func (u *Usage) Add(other Usage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
	u.TotalTokens += other.TotalTokens
}

// Response provider 的原始回复
type Response struct {
	Content  string
	Model    string
	Provider string
	Usage    Usage
}

// Client 各 provider 适配器实现的接口
type Client interface {
	Complete(ctx context.Context, req Request) (*Response, error)
}

// ClientFunc 把函数适配为 Client
type ClientFunc func(ctx context.Context, req Request) (*Response, error)

func (f ClientFunc) Complete(ctx context.Context, req Request) (*Response, error) {
	return f(ctx, req)
}

// Float32 可选温度的小工具
func Float32(v float32) *float32 {
	return &v
}
