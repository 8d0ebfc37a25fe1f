package completion

import (
	"context"

	"golang.org/x/time/rate"
)

type rateLimited struct {
	next    Client
	limiter *rate.Limiter
}

// RateLimited 把 next 限制为每秒 rps 次，rps <= 0 时原样返回
func RateLimited(next Client, rps float64, burst int) Client {
	if rps <= 0 {
		return next
	}
	if burst < 1 {
		burst = 1
	}
	return &rateLimited{next: next, limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

func (r *rateLimited) Complete(ctx context.Context, req Request) (*Response, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return nil, Classify("", ctx.Err())
		}
		return nil, &Error{Kind: KindTimeout, Err: err}
	}
	return r.next.Complete(ctx, req)
}
