package sentiment

import (
	"strings"
	"unicode/utf8"

	model "github.com/zhouzirui/sentiscope/backend/internal/model/sentiment"
)

const (
	// MaxInputRunes 规范化后的长度上限，超出截断并标记
	MaxInputRunes   = 10000
	truncatedMarker = "..."
)

// Input 规范化后的输入
type Input struct {
	Text           string
	OriginalLength int
	WordCount      int
	Truncated      bool
}

// Preprocess 合并连续空白、去掉首尾空白并截断长度。
// 空文本或全空白返回 ValidationError。
func Preprocess(raw string) (Input, error) {
	if raw == "" {
		return Input{}, &model.ValidationError{Err: model.ErrEmptyText}
	}

	words := strings.Fields(raw)
	if len(words) == 0 {
		return Input{}, &model.ValidationError{Err: model.ErrWhitespaceText}
	}

	cleaned := strings.Join(words, " ")
	in := Input{
		Text:           cleaned,
		OriginalLength: utf8.RuneCountInString(raw),
		WordCount:      len(words),
	}

	if utf8.RuneCountInString(cleaned) > MaxInputRunes {
		runes := []rune(cleaned)
		in.Text = string(runes[:MaxInputRunes]) + truncatedMarker
		in.Truncated = true
	}

	return in, nil
}
