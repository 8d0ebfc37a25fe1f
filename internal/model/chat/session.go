package chat

import "time"

// Session captures one named conversation history.
type Session struct {
	Key       string    `json:"key"`
	CreatedAt time.Time `json:"createdAt"`
	Messages  []Message `json:"messages"`
}
