package sentiment

import (
	"fmt"
	"sort"
	"strings"

	model "github.com/zhouzirui/sentiscope/backend/internal/model/sentiment"
)

// Verdict 是关键词启发式给出的判断，字段与模型输出的 JSON 结构一致。
type Verdict struct {
	Sentiment  string   `json:"sentiment"`
	Confidence float64  `json:"confidence"`
	Emotions   []string `json:"emotions"`
	KeyPhrases []string `json:"key_phrases"`
	Summary    string   `json:"summary"`
}

type bucket struct {
	emotion  model.Emotion
	keywords []string
}

var positiveCues = []string{
	"love", "great", "amazing", "awesome", "excellent", "best", "fantastic", "good", "happy",
	"recommend", "wonderful", "perfect", "exceeded", "changed my life", "5 stars", "thank",
	"喜欢", "开心", "满意", "太棒了", "真棒", "好评",
}

var negativeCues = []string{
	"terrible", "awful", "worst", "hate", "bad", "waste", "disappointed", "broke", "avoid",
	"horrible", "do not buy", "useless", "poor", "refund", "angry",
	"难过", "失望", "糟糕", "生气", "垃圾", "差评",
}

// buckets 顺序固定，保证同分时输出稳定。
var buckets = []bucket{
	{model.Joy, []string{"love", "happy", "glad", "great", "wonderful", "delight", "best", "开心", "高兴", "快乐"}},
	{model.Sadness, []string{"sad", "unhappy", "depressed", "cry", "upset", "disappointed", "miss", "难过", "伤心", "失落"}},
	{model.Anger, []string{"angry", "furious", "hate", "outrage", "mad", "pissed", "生气", "愤怒", "火大"}},
	{model.Fear, []string{"afraid", "scared", "worried", "anxious", "terrified", "nervous", "害怕", "担心"}},
	{model.Surprise, []string{"surprised", "unexpected", "wow", "shocked", "can't believe", "惊喜", "意外"}},
	{model.Excitement, []string{"excited", "amazing", "can't wait", "thrilled", "awesome", "changed my life", "期待", "激动"}},
	{model.Frustration, []string{"frustrat", "waste", "annoying", "broke", "useless", "doesn't work", "terrible", "awful", "烦", "受够了"}},
}

const exclamationBoost = 2

// Score 使用关键词打分推断情感，供离线模式使用；结果可被 NewResult 直接校验。
func Score(text string) Verdict {
	lowered := strings.ToLower(text)

	pos, posPhrases := matchCues(text, lowered, positiveCues)
	neg, negPhrases := matchCues(text, lowered, negativeCues)

	emotionScores := make(map[model.Emotion]int)
	for _, b := range buckets {
		for _, word := range b.keywords {
			if strings.Contains(lowered, word) {
				emotionScores[b.emotion] += 3
			}
		}
	}

	exclamations := strings.Count(text, "!")
	if exclamations > 0 && (pos > 0 || neg > 0) {
		if pos >= neg {
			emotionScores[model.Excitement] += exclamations * exclamationBoost
		} else {
			emotionScores[model.Frustration] += exclamations * exclamationBoost
		}
	}

	v := Verdict{
		Emotions:   rankEmotions(emotionScores),
		KeyPhrases: append(posPhrases, negPhrases...),
	}

	switch {
	case pos > 0 && neg > 0:
		v.Sentiment = string(model.Mixed)
		v.Confidence = 0.6
	case pos > 0:
		v.Sentiment = string(model.Positive)
		v.Confidence = cueConfidence(pos, exclamations)
	case neg > 0:
		v.Sentiment = string(model.Negative)
		v.Confidence = cueConfidence(neg, exclamations)
	default:
		v.Sentiment = string(model.Neutral)
		v.Confidence = 0.55
	}

	v.Summary = fmt.Sprintf("Detected %d positive and %d negative cue(s); overall %s.", pos, neg, v.Sentiment)
	return v
}

// matchCues 返回命中数和从原文截取的片段，
// 保证片段是原文子串。
func matchCues(text, lowered string, cues []string) (int, []string) {
	hits := 0
	var phrases []string
	sameLength := len(text) == len(lowered)
	for _, cue := range cues {
		idx := strings.Index(lowered, cue)
		if idx < 0 {
			continue
		}
		hits++
		if sameLength {
			phrases = append(phrases, text[idx:idx+len(cue)])
		}
	}
	return hits, phrases
}

func rankEmotions(scores map[model.Emotion]int) []string {
	ranked := make([]model.Emotion, 0, len(scores))
	for _, e := range model.Emotions() {
		if scores[e] > 0 {
			ranked = append(ranked, e)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return scores[ranked[i]] > scores[ranked[j]]
	})

	out := make([]string, 0, len(ranked))
	for _, e := range ranked {
		out = append(out, string(e))
	}
	return out
}

func cueConfidence(hits, exclamations int) float64 {
	c := 0.6 + 0.1*float64(hits)
	if exclamations > 0 {
		c += 0.05
	}
	if c > 0.95 {
		c = 0.95
	}
	return c
}
