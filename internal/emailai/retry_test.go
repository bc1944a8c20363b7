package emailai

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestWithRetryEventualSuccess 失败两次后成功：恰好调用 3 次且有可测的退避延迟
func TestWithRetryEventualSuccess(t *testing.T) {
	attempts := 0
	baseDelay := 5 * time.Millisecond

	start := time.Now()
	result, err := WithRetry(context.Background(), func(ctx context.Context) (string, error) {
		attempts++
		if attempts < 3 {
			return "", errors.New("transient failure")
		}
		return "ok", nil
	}, 3, baseDelay)
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, 3, attempts)
	// 两次退避至少消耗 base*1 + base*2
	assert.Greater(t, elapsed, baseDelay)
}

// TestWithRetryExhaustion 始终失败：初次 + maxRetries 次后原样返回最后的错误
func TestWithRetryExhaustion(t *testing.T) {
	attempts := 0
	lastErr := errors.New("permanent failure")

	_, err := WithRetry(context.Background(), func(ctx context.Context) (int, error) {
		attempts++
		return 0, lastErr
	}, 2, time.Millisecond)

	require.Error(t, err)
	assert.Equal(t, 3, attempts) // 初次 + 2 次重试
	assert.Same(t, lastErr, err) // 错误原样透传，不包装
}

// TestWithRetryFirstAttemptSuccess 首次成功不产生任何延迟
func TestWithRetryFirstAttemptSuccess(t *testing.T) {
	attempts := 0

	start := time.Now()
	result, err := WithRetry(context.Background(), func(ctx context.Context) (int, error) {
		attempts++
		return 42, nil
	}, 5, time.Second)

	require.NoError(t, err)
	assert.Equal(t, 42, result)
	assert.Equal(t, 1, attempts)
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}

// TestWithRetryZeroRetries maxRetries=0 时只执行一次
func TestWithRetryZeroRetries(t *testing.T) {
	attempts := 0

	_, err := WithRetry(context.Background(), func(ctx context.Context) (int, error) {
		attempts++
		return 0, errors.New("boom")
	}, 0, time.Millisecond)

	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}

// TestWithRetryContextCancellation 取消后立即终止，不再执行后续尝试
func TestWithRetryContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0

	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	// 大 baseDelay 确保取消发生在退避休眠期间
	_, err := WithRetry(ctx, func(ctx context.Context) (int, error) {
		attempts++
		return 0, errors.New("failing")
	}, 5, 10*time.Second)

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, attempts)
}

// TestWithRetryPreCancelledContext 已取消的上下文直接返回，不执行操作
func TestWithRetryPreCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	attempts := 0
	_, err := WithRetry(ctx, func(ctx context.Context) (int, error) {
		attempts++
		return 0, nil
	}, 3, time.Millisecond)

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, attempts)
}
