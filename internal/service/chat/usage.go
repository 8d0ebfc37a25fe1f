package chat

import (
	"sort"
	"sync"

	"github.com/zhouzirui/sentiscope/backend/internal/service/completion"
	"github.com/zhouzirui/sentiscope/backend/internal/service/models"
)

// ModelUsage 会话内单个模型的累计用量
type ModelUsage struct {
	Model string           `json:"model"`
	Calls int              `json:"calls"`
	Usage completion.Usage `json:"usage"`
	Cost  float64          `json:"estimatedCostUsd"`
}

// UsageSummary 会话内所有模型的用量汇总
type UsageSummary struct {
	Session string           `json:"session"`
	Calls   int              `json:"calls"`
	Total   completion.Usage `json:"total"`
	Cost    float64          `json:"estimatedCostUsd"`
	ByModel []ModelUsage     `json:"byModel"`
}

// UsageTracker 按会话、按模型统计 token，
// 费用按注册表单价粗略估算。
type UsageTracker struct {
	mu        sync.Mutex
	bySession map[string]map[string]*ModelUsage
}

func NewUsageTracker() *UsageTracker {
	return &UsageTracker{bySession: make(map[string]map[string]*ModelUsage)}
}

// Record 记录一次调用的用量
func (t *UsageTracker) Record(session string, spec models.Spec, usage completion.Usage) {
	t.mu.Lock()
	defer t.mu.Unlock()

	perModel, ok := t.bySession[session]
	if !ok {
		perModel = make(map[string]*ModelUsage)
		t.bySession[session] = perModel
	}
	entry, ok := perModel[spec.Key]
	if !ok {
		entry = &ModelUsage{Model: spec.Key}
		perModel[spec.Key] = entry
	}
	entry.Calls++
	entry.Usage.Add(usage)
	entry.Cost += spec.EstimateCost(usage)
}

// Summary 返回会话用量快照，未知会话全为 0
func (t *UsageTracker) Summary(session string) UsageSummary {
	t.mu.Lock()
	defer t.mu.Unlock()

	summary := UsageSummary{Session: session, ByModel: make([]ModelUsage, 0)}
	for _, entry := range t.bySession[session] {
		summary.ByModel = append(summary.ByModel, *entry)
		summary.Calls += entry.Calls
		summary.Total.Add(entry.Usage)
		summary.Cost += entry.Cost
	}
	sort.Slice(summary.ByModel, func(i, j int) bool {
		return summary.ByModel[i].Model < summary.ByModel[j].Model
	})
	return summary
}

// Reset 清除会话用量
func (t *UsageTracker) Reset(session string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.bySession, session)
}
