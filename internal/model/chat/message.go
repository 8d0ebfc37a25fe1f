package chat

import "time"

// Role 标识一轮对话的发言方
type Role string

const (
	Human     Role = "human"
	Assistant Role = "assistant"
)

// Valid 判断角色是否合法
func (r Role) Valid() bool {
	return r == Human || r == Assistant
}

// Message persists individual turns of a session.
type Message struct {
	ID         string    `json:"id"`
	SessionKey string    `json:"sessionKey"`
	Role       Role      `json:"role"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Record 导出用的单轮记录
type Record struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Records 按原顺序转成导出形式
func Records(messages []Message) []Record {
	out := make([]Record, 0, len(messages))
	for _, m := range messages {
		out = append(out, Record{Role: m.Role, Content: m.Content})
	}
	return out
}
