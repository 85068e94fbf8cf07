package chain

import (
	"context"
	"time"
)

// withRetry 对瞬态失败重试 fn，最多额外 retries 次，退避按次数线性递增。
// ctx 取消或超时立即停止并返回 ctx 的错误，不吞掉最后一次失败。
func withRetry[T any](ctx context.Context, retries int, delay time.Duration, fn func() (T, error)) (T, error) {
	var result T
	var err error
	for attempt := 0; ; attempt++ {
		result, err = fn()
		if err == nil || attempt >= retries {
			return result, err
		}
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		case <-time.After(delay * time.Duration(attempt+1)):
		}
	}
}
