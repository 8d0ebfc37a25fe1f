package completion

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"syscall"
)

// Kind provider 失败类型
type Kind string

const (
	KindTimeout     Kind = "timeout"
	KindMalformed   Kind = "malformed_output"
	KindAuth        Kind = "auth"
	KindRateLimit   Kind = "rate_limit"
	KindUnavailable Kind = "unavailable"
	KindCanceled    Kind = "canceled"
	KindUnknown     Kind = "unknown"
)

// Retryable 重试是否可能成功
func (k Kind) Retryable() bool {
	switch k {
	case KindTimeout, KindRateLimit, KindUnavailable:
		return true
	default:
		return false
	}
}

// Systemic 当前是否任何调用都不会成功
func (k Kind) Systemic() bool {
	return k == KindAuth || k == KindUnavailable
}

// Error 所有 Client 返回的带类型错误
type Error struct {
	Kind     Kind
	Provider string
	Err      error
}

func (e *Error) Error() string {
	if e.Provider == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Provider, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Malformed 构造输出格式错误
func Malformed(provider string, err error) *Error {
	return &Error{Kind: KindMalformed, Provider: provider, Err: err}
}

// KindOf 从错误链中取出失败类型
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return kindFromError(err)
}

// Classify 把 err 包成 *Error，已经是则原样返回
func Classify(provider string, err error) error {
	if err == nil {
		return nil
	}
	var ce *Error
	if errors.As(err, &ce) {
		return err
	}
	return &Error{Kind: kindFromError(err), Provider: provider, Err: err}
}

func kindFromError(err error) Kind {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, context.Canceled):
		return KindCanceled
	case errors.Is(err, syscall.ECONNREFUSED), errors.Is(err, syscall.ECONNRESET):
		return KindUnavailable
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return KindUnavailable
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return KindUnavailable
	}

	return kindFromMessage(err.Error())
}

// 只认带前缀的状态码，裸数字不算
var statusPattern = regexp.MustCompile(`(?i)\b(?:status(?:[ _]?code)?|http(?:/[\d.]+)?|error code)\s*[:=]?\s*(\d{3})\b`)

func kindFromMessage(msg string) Kind {
	msg = strings.ToLower(msg)
	if m := statusPattern.FindStringSubmatch(msg); m != nil {
		code, _ := strconv.Atoi(m[1])
		if kind := kindForStatus(code); kind != KindUnknown {
			return kind
		}
	}
	switch {
	case containsAny(msg, "rate limit", "too many requests"):
		return KindRateLimit
	case containsAny(msg, "unauthorized", "forbidden", "invalid api key", "authentication"):
		return KindAuth
	case containsAny(msg, "connection refused", "no such host", "service unavailable", "bad gateway"):
		return KindUnavailable
	case containsAny(msg, "timeout", "deadline"):
		return KindTimeout
	default:
		return KindUnknown
	}
}

// kindForStatus 把 HTTP 状态码映射成失败类型
func kindForStatus(code int) Kind {
	switch {
	case code == http.StatusUnauthorized, code == http.StatusForbidden:
		return KindAuth
	case code == http.StatusTooManyRequests:
		return KindRateLimit
	case code == http.StatusRequestTimeout, code == http.StatusGatewayTimeout:
		return KindTimeout
	case code >= http.StatusInternalServerError && code < 600:
		return KindUnavailable
	default:
		return KindUnknown
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
