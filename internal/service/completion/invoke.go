package completion

import (
	"context"
	"errors"
	"time"
)

const (
	baseBackoff = 500 * time.Millisecond
	maxBackoff  = 8 * time.Second
)

// backoff 第 n 次重试前的等待（从 1 开始），测试里会缩短
var backoff = func(n int) time.Duration {
	d := baseBackoff << (n - 1)
	if d <= 0 || d > maxBackoff {
		return maxBackoff
	}
	return d
}

// Invoke 按 req 的重试与超时策略执行 call。
// 每次尝试单独计超时，可重试的类型最多重试 req.MaxRetries 次，
// 指数退避。返回的错误总是 *Error。
func Invoke(ctx context.Context, provider string, req Request, call func(ctx context.Context) (*Response, error)) (*Response, error) {
	attempts := req.MaxRetries + 1
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			timer := time.NewTimer(backoff(attempt))
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, Classify(provider, ctx.Err())
			case <-timer.C:
			}
		}

		resp, err := attemptOnce(ctx, provider, req.Timeout, call)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, Classify(provider, ctx.Err())
		}
		if !KindOf(err).Retryable() {
			return nil, err
		}
	}
	return nil, lastErr
}

func attemptOnce(ctx context.Context, provider string, timeout time.Duration, call func(ctx context.Context) (*Response, error)) (*Response, error) {
	attemptCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	resp, err := call(attemptCtx)
	if err == nil {
		if resp == nil {
			return nil, Malformed(provider, errors.New("provider returned no response"))
		}
		return resp, nil
	}
	if ctx.Err() == nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
		return nil, &Error{Kind: KindTimeout, Provider: provider, Err: err}
	}
	return nil, Classify(provider, err)
}
