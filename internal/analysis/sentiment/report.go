package sentiment

import (
	"fmt"
	"math"
	"strings"

	model "github.com/zhouzirui/sentiscope/backend/internal/model/sentiment"
)

// Report 是面向 API 与终端展示的结果格式。
type Report struct {
	Sentiment         string   `json:"sentiment"`
	Emoji             string   `json:"emoji"`
	Confidence        float64  `json:"confidence"`
	ConfidencePercent string   `json:"confidence_percent"`
	Emotions          []string `json:"emotions"`
	KeyPhrases        []string `json:"key_phrases"`
	Summary           string   `json:"summary"`
	IsPositive        bool     `json:"is_positive"`
	IsNegative        bool     `json:"is_negative"`
}

var emojiByLabel = map[model.Label]string{
	model.Positive: "😊",
	model.Negative: "😞",
	model.Neutral:  "😐",
	model.Mixed:    "🤔",
}

// Emoji 标签对应的表情
func Emoji(label model.Label) string {
	if e, ok := emojiByLabel[label]; ok {
		return e
	}
	return "❓"
}

// Postprocess 将分析结果转换为展示格式。
func Postprocess(r *model.Result) Report {
	emotions := make([]string, 0, len(r.Emotions))
	for _, e := range r.Emotions {
		emotions = append(emotions, string(e))
	}

	return Report{
		Sentiment:         string(r.Sentiment),
		Emoji:             Emoji(r.Sentiment),
		Confidence:        math.Round(r.Confidence*100) / 100,
		ConfidencePercent: fmt.Sprintf("%.0f%%", r.Confidence*100),
		Emotions:          emotions,
		KeyPhrases:        append([]string{}, r.KeyPhrases...),
		Summary:           r.Summary,
		IsPositive:        r.Sentiment == model.Positive,
		IsNegative:        r.Sentiment == model.Negative,
	}
}

// FormatDisplay 渲染成控制台方框
func FormatDisplay(r *model.Result) string {
	report := Postprocess(r)

	emotions := strings.Join(report.Emotions, ", ")
	if emotions == "" {
		emotions = "none"
	}
	phrases := strings.Join(report.KeyPhrases, "\n│   - ")
	if phrases == "" {
		phrases = "none"
	}

	var b strings.Builder
	b.WriteString("┌────────────────────────────────────────\n")
	fmt.Fprintf(&b, "│ SENTIMENT: %s %s\n", strings.ToUpper(report.Sentiment), report.Emoji)
	fmt.Fprintf(&b, "│ CONFIDENCE: %s\n", report.ConfidencePercent)
	fmt.Fprintf(&b, "│ EMOTIONS: %s\n", emotions)
	b.WriteString("│ KEY PHRASES:\n")
	fmt.Fprintf(&b, "│   - %s\n", phrases)
	fmt.Fprintf(&b, "│ SUMMARY: %s\n", report.Summary)
	b.WriteString("└────────────────────────────────────────")
	return b.String()
}
