package sentiment

import (
	"errors"
	"fmt"

	model "github.com/zhouzirui/sentiscope/backend/internal/model/sentiment"
)

// Guard 执行 fn，把 panic 转成普通错误
func Guard[T any](fn func() (T, error)) (val T, err error) {
	defer func() {
		if r := recover(); r != nil {
			var zero T
			val = zero
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}

// Classify 把错误映射为失败类别和面向用户的信息
func Classify(err error) (model.FailureClass, string) {
	var validation *model.ValidationError
	if errors.As(err, &validation) {
		return model.ClassValidation, "Validation error: " + validation.Err.Error()
	}
	var failure *model.AnalysisError
	// SystemicError 包着 AnalysisError，必须先判
	if model.IsSystemic(err) {
		msg := err.Error()
		if errors.As(err, &failure) {
			msg = failure.Err.Error()
		}
		return model.ClassSystemic, "Service unavailable: " + msg
	}
	if errors.As(err, &failure) {
		return model.ClassAnalysis, "Analysis failed: " + failure.Err.Error()
	}
	return model.ClassUnknown, "Unexpected error: " + err.Error()
}
