package sentiment

import (
	"encoding/json"
)

// FailureClass 失败类别，用于给用户展示
type FailureClass string

const (
	ClassValidation FailureClass = "validation"
	ClassAnalysis   FailureClass = "analysis"
	ClassSystemic   FailureClass = "systemic"
	ClassUnknown    FailureClass = "unknown"
)

// AnalysisResponse 安全调用返回的结果信封。
// 按 Success 只填 Result 或 Error 其一。
type AnalysisResponse struct {
	Success    bool           `json:"success"`
	Result     *Result        `json:"result,omitempty"`
	Error      string         `json:"error,omitempty"`
	ErrorClass FailureClass   `json:"error_class,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// Succeeded 构造成功响应
func Succeeded(result *Result, metadata map[string]any) AnalysisResponse {
	return AnalysisResponse{Success: true, Result: result.Clone(), Metadata: metadata}
}

// Failed 构造失败响应
func Failed(class FailureClass, message string) AnalysisResponse {
	if class == "" {
		class = ClassUnknown
	}
	return AnalysisResponse{Success: false, Error: message, ErrorClass: class}
}

// Outcome 批量中的一个槽位：结果或该条的错误
type Outcome struct {
	Index  int
	Result *Result
	Err    error
}

// OK 槽位是否有结果
func (o Outcome) OK() bool {
	return o.Err == nil && o.Result != nil
}

type outcomeJSON struct {
	Index   int     `json:"index"`
	Success bool    `json:"success"`
	Result  *Result `json:"result,omitempty"`
	Error   string  `json:"error,omitempty"`
}

// MarshalJSON 带 success 标记输出，失败槽位保留错误信息
func (o Outcome) MarshalJSON() ([]byte, error) {
	out := outcomeJSON{Index: o.Index, Success: o.OK(), Result: o.Result}
	if o.Err != nil {
		out.Result = nil
		out.Error = o.Err.Error()
	}
	return json.Marshal(out)
}

// Results 按位置展开结果，失败项为 nil
func Results(outcomes []Outcome) []*Result {
	out := make([]*Result, len(outcomes))
	for i, o := range outcomes {
		if o.OK() {
			out[i] = o.Result
		}
	}
	return out
}
