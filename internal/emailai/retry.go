package emailai

import (
	"context"
	"math/rand"
	"time"
)

// maxJitter 退避抖动上限，打散并发调用方的重试节奏
const maxJitter = time.Second

// WithRetry 以指数退避 + 随机抖动执行可失败操作
//
// 最多执行 maxRetries+1 次（首次 + 重试）。非最后一次失败后休眠
// baseDelay * 2^attempt + jitter(0..1s) 再试；重试耗尽时原样返回
// 最后一次遇到的错误。执行器不检查错误类型，是否值得重试由调用方
// 决定（永久性错误应在执行器之外抛出）。
//
// 上下文取消会立即终止退避休眠与后续尝试，返回 ctx.Err()。
func WithRetry[T any](ctx context.Context, op func(ctx context.Context) (T, error), maxRetries int, baseDelay time.Duration) (T, error) {
	var zero T
	var lastErr error

	if maxRetries < 0 {
		maxRetries = 0
	}

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if attempt < maxRetries {
			delay := baseDelay*(1<<uint(attempt)) + jitter()
			timer := time.NewTimer(delay)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return zero, ctx.Err()
			}
		}
	}

	return zero, lastErr
}

// jitter 返回 [0, maxJitter) 的随机附加延迟
func jitter() time.Duration {
	return time.Duration(rand.Int63n(int64(maxJitter)))
}
