// Package models 维护可选模型表并创建对应的补全客户端。
package models

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/zhouzirui/sentiscope/backend/internal/service/completion"
)

// ErrUnknownModel 注册表中没有该 key
var ErrUnknownModel = errors.New("unknown model")

const (
	ProviderOpenAI  = "openai"
	ProviderArk     = "ark"
	ProviderLexicon = "lexicon"
)

// Spec 一个可选模型，费用单位为美元/百万 token
type Spec struct {
	Key             string  `yaml:"-" json:"key"`
	Provider        string  `yaml:"provider" json:"provider"`
	ModelID         string  `yaml:"model" json:"model"`
	DisplayName     string  `yaml:"display_name" json:"displayName"`
	InputCostPer1M  float64 `yaml:"input_cost_per_1m" json:"inputCostPer1M"`
	OutputCostPer1M float64 `yaml:"output_cost_per_1m" json:"outputCostPer1M"`
	MaxTokens       int     `yaml:"max_tokens" json:"maxTokens,omitempty"`
}

// EstimateCost 按单价估算费用
func (s Spec) EstimateCost(usage completion.Usage) float64 {
	return float64(usage.InputTokens)/1e6*s.InputCostPer1M + float64(usage.OutputTokens)/1e6*s.OutputCostPer1M
}

var defaultSpecs = []Spec{
	{Key: "gpt", Provider: ProviderOpenAI, ModelID: "gpt-4o", DisplayName: "GPT-4o", InputCostPer1M: 2.50, OutputCostPer1M: 10.00},
	{Key: "gpt-mini", Provider: ProviderOpenAI, ModelID: "gpt-4o-mini", DisplayName: "GPT-4o mini", InputCostPer1M: 0.15, OutputCostPer1M: 0.60},
	{Key: "gpt-4.1", Provider: ProviderOpenAI, ModelID: "gpt-4.1", DisplayName: "GPT-4.1", InputCostPer1M: 2.00, OutputCostPer1M: 8.00},
	{Key: "doubao", Provider: ProviderArk, DisplayName: "Doubao (ARK_MODEL)", InputCostPer1M: 0.11, OutputCostPer1M: 0.28},
	{Key: "lexicon", Provider: ProviderLexicon, ModelID: "lexicon", DisplayName: "Offline keyword lexicon"},
}

// Registry 模型 key 到 Spec 的映射
type Registry struct {
	specs map[string]Spec
}

// DefaultRegistry 内置模型表
func DefaultRegistry() *Registry {
	r := &Registry{specs: make(map[string]Spec, len(defaultSpecs))}
	for _, s := range defaultSpecs {
		r.specs[s.Key] = s
	}
	return r
}

type overlayFile struct {
	Models map[string]Spec `yaml:"models"`
}

// LoadRegistry 返回内置表，path 非空时用 YAML 文件覆盖，
// 同名 key 以文件为准。
func LoadRegistry(path string) (*Registry, error) {
	r := DefaultRegistry()
	if path == "" {
		return r, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading models file: %w", err)
	}

	var overlay overlayFile
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return nil, fmt.Errorf("parsing models file %s: %w", path, err)
	}

	for key, spec := range overlay.Models {
		spec.Key = key
		spec.Provider = strings.ToLower(spec.Provider)
		switch spec.Provider {
		case ProviderOpenAI, ProviderArk, ProviderLexicon:
		default:
			return nil, fmt.Errorf("model %q: unknown provider %q", key, spec.Provider)
		}
		if spec.DisplayName == "" {
			spec.DisplayName = key
		}
		r.specs[key] = spec
	}
	return r, nil
}

// Lookup 查找 key 对应的 Spec
func (r *Registry) Lookup(key string) (Spec, error) {
	spec, ok := r.specs[key]
	if !ok {
		return Spec{}, fmt.Errorf("%w: %s. Available: %s", ErrUnknownModel, key, strings.Join(r.Keys(), ", "))
	}
	return spec, nil
}

// Keys 排序后的全部 key
func (r *Registry) Keys() []string {
	keys := make([]string, 0, len(r.specs))
	for k := range r.specs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Specs 按 key 排序的全部 Spec
func (r *Registry) Specs() []Spec {
	out := make([]Spec, 0, len(r.specs))
	for _, k := range r.Keys() {
		out = append(out, r.specs[k])
	}
	return out
}

// ByProvider 按 provider 分组
func (r *Registry) ByProvider() map[string][]string {
	out := make(map[string][]string)
	for _, k := range r.Keys() {
		p := r.specs[k].Provider
		out[p] = append(out[p], k)
	}
	return out
}

// Providers 表中出现的 provider
func (r *Registry) Providers() []string {
	grouped := r.ByProvider()
	out := make([]string, 0, len(grouped))
	for p := range grouped {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}
