// Package retry 指数退避重试，用于对象存储等可能瞬时失败的远端调用。
package retry

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"
)

// Policy 退避策略。
type Policy struct {
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
	Jitter         float64 // 取值 [0, 1)，按比例随机抖动下一次等待。
	Attempts       int     // 总尝试次数，小于 1 时按 1 处理。
}

// DefaultPolicy 快照上传下载使用的默认策略。
func DefaultPolicy() Policy {
	return Policy{
		Attempts:       3,
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     2 * time.Second,
		Multiplier:     2.0,
		Jitter:         0.1,
	}
}

// Do 执行 fn，失败且 retryable 判定可重试时按策略等待后重来。
// retryable 为 nil 时所有错误都重试。ctx 取消时立即返回。
func Do(ctx context.Context, p Policy, fn func(context.Context) error, retryable func(error) bool) error {
	attempts := max(p.Attempts, 1)
	backoff := p.InitialBackoff

	var lastErr error
	tried := 0
	for i := range attempts {
		tried++
		if lastErr = fn(ctx); lastErr == nil {
			return nil
		}
		if i == attempts-1 || (retryable != nil && !retryable(lastErr)) {
			break
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("retry cancelled: %w", ctx.Err())
		case <-timer.C:
		}
		backoff = p.next(backoff)
	}
	if tried == 1 {
		return lastErr
	}
	return fmt.Errorf("after %d attempts: %w", tried, lastErr)
}

func (p Policy) next(cur time.Duration) time.Duration {
	mult := p.Multiplier
	if mult < 1 {
		mult = 1
	}
	next := float64(cur) * mult
	if p.Jitter > 0 {
		next += (rand.Float64()*2 - 1) * p.Jitter * next //nolint:gosec // 抖动不需要密码学随机。
	}
	d := time.Duration(next)
	if p.MaxBackoff > 0 {
		d = min(d, p.MaxBackoff)
	}
	return d
}
