package sentiment

import (
	"fmt"
	"math"
	"strings"
)

// Label 表示整体情感倾向。
type Label string

const (
	Positive Label = "positive"
	Negative Label = "negative"
	Neutral  Label = "neutral"
	Mixed    Label = "mixed"
)

// Emotion 表示文本中可识别的具体情绪。
type Emotion string

const (
	Joy         Emotion = "joy"
	Sadness     Emotion = "sadness"
	Anger       Emotion = "anger"
	Fear        Emotion = "fear"
	Surprise    Emotion = "surprise"
	Excitement  Emotion = "excitement"
	Frustration Emotion = "frustration"
)

const (
	MaxEmotions   = 3
	MaxKeyPhrases = 5
)

// Labels 所有合法的情感标签
func Labels() []Label {
	return []Label{Positive, Negative, Neutral, Mixed}
}

// Emotions 所有合法的情绪
func Emotions() []Emotion {
	return []Emotion{Joy, Sadness, Anger, Fear, Surprise, Excitement, Frustration}
}

// ParseLabel 解析模型返回的情感标签，大小写与首尾空白不敏感。
func ParseLabel(raw string) (Label, bool) {
	switch Label(strings.ToLower(strings.TrimSpace(raw))) {
	case Positive:
		return Positive, true
	case Negative:
		return Negative, true
	case Neutral:
		return Neutral, true
	case Mixed:
		return Mixed, true
	default:
		return "", false
	}
}

// ParseEmotion 解析单个情绪值。
func ParseEmotion(raw string) (Emotion, bool) {
	candidate := Emotion(strings.ToLower(strings.TrimSpace(raw)))
	for _, e := range Emotions() {
		if e == candidate {
			return e, true
		}
	}
	return "", false
}

// Result 一次分析校验后的结果。只由 NewResult 构造，
// 之后不再修改，切片都是私有副本。
type Result struct {
	Sentiment  Label     `json:"sentiment"`
	Confidence float64   `json:"confidence"`
	Emotions   []Emotion `json:"emotions"`
	KeyPhrases []string  `json:"key_phrases"`
	Summary    string    `json:"summary"`
}

// NewResult 对照原文校验原始字段并构造 Result。
// 不在枚举里的情绪、不是原文子串的短语会被丢弃，
// 之后两个列表按原顺序截断到上限。
func NewResult(label string, confidence float64, emotions []string, keyPhrases []string, summary string, source string) (*Result, error) {
	parsed, ok := ParseLabel(label)
	if !ok {
		return nil, fmt.Errorf("unknown sentiment %q", label)
	}
	if math.IsNaN(confidence) || confidence < 0 || confidence > 1 {
		return nil, fmt.Errorf("confidence %v outside [0, 1]", confidence)
	}

	result := &Result{
		Sentiment:  parsed,
		Confidence: confidence,
		Emotions:   make([]Emotion, 0, MaxEmotions),
		KeyPhrases: make([]string, 0, MaxKeyPhrases),
		Summary:    strings.TrimSpace(summary),
	}

	for _, raw := range emotions {
		if len(result.Emotions) == MaxEmotions {
			break
		}
		if e, ok := ParseEmotion(raw); ok {
			result.Emotions = append(result.Emotions, e)
		}
	}

	for _, phrase := range keyPhrases {
		if len(result.KeyPhrases) == MaxKeyPhrases {
			break
		}
		phrase = strings.TrimSpace(phrase)
		if phrase == "" || !strings.Contains(source, phrase) {
			continue
		}
		result.KeyPhrases = append(result.KeyPhrases, phrase)
	}

	return result, nil
}

// Clone 深拷贝
func (r *Result) Clone() *Result {
	if r == nil {
		return nil
	}
	out := *r
	out.Emotions = append([]Emotion(nil), r.Emotions...)
	out.KeyPhrases = append([]string(nil), r.KeyPhrases...)
	return &out
}
