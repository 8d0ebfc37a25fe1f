package sentiment

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyText      = errors.New("text cannot be empty")
	ErrWhitespaceText = errors.New("text cannot be only whitespace")
)

// ValidationError 输入不合法，调用方需修正后再试
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %v", e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// AnalysisError 模型调用或结果校验失败，可能是暂时的
type AnalysisError struct {
	Err error
}

func (e *AnalysisError) Error() string {
	return fmt.Sprintf("analysis failed: %v", e.Err)
}

func (e *AnalysisError) Unwrap() error { return e.Err }

// SystemicError 服务整体不可用（连不上或凭证被拒）。
// 包着触发它的 AnalysisError，批量任务遇到会直接中止。
type SystemicError struct {
	Err error
}

func (e *SystemicError) Error() string {
	return fmt.Sprintf("service unavailable: %v", e.Err)
}

func (e *SystemicError) Unwrap() error { return e.Err }

// IsValidation 错误链中是否有 ValidationError
func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

// IsAnalysis 错误链中是否有 AnalysisError
func IsAnalysis(err error) bool {
	var target *AnalysisError
	return errors.As(err, &target)
}

// IsSystemic 错误链中是否有 SystemicError
func IsSystemic(err error) bool {
	var target *SystemicError
	return errors.As(err, &target)
}
