// Package health 汇总依赖的健康检查结果，供 /healthz 使用。
package health

import (
	"context"
	"errors"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sourcegraph/conc"
)

const defaultCheckTimeout = 2 * time.Second

// Checker 定义健康检查函数原型。
type Checker func(ctx context.Context) error

// RedisChecker 返回 Redis 健康检查函数。
func RedisChecker(client redis.UniversalClient) Checker {
	return func(ctx context.Context) error {
		if client == nil {
			return errors.New("redis client is nil")
		}
		return client.Ping(ctx).Err()
	}
}

// Status 单项检查结果。
type Status struct {
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
	Healthy  bool          `json:"healthy"`
}

// Report 全部检查结果。
type Report struct {
	Checks  map[string]Status `json:"checks"`
	Healthy bool              `json:"healthy"`
}

// Registry 具名健康检查集合。
type Registry struct {
	mu       sync.RWMutex
	checkers map[string]Checker
	timeout  time.Duration
}

// NewRegistry 创建检查集合，timeout 为单项检查超时。
func NewRegistry(timeout time.Duration) *Registry {
	if timeout <= 0 {
		timeout = defaultCheckTimeout
	}
	return &Registry{checkers: make(map[string]Checker), timeout: timeout}
}

// Register 注册或替换一项检查。
func (r *Registry) Register(name string, c Checker) {
	if c == nil {
		return
	}
	r.mu.Lock()
	r.checkers[name] = c
	r.mu.Unlock()
}

// Names 已注册的检查名。
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.checkers))
}

// Run 并行执行全部检查。没有注册任何检查时视为健康。
func (r *Registry) Run(ctx context.Context) Report {
	r.mu.RLock()
	checkers := maps.Clone(r.checkers)
	r.mu.RUnlock()

	var mu sync.Mutex
	report := Report{Healthy: true, Checks: make(map[string]Status, len(checkers))}
	var wg conc.WaitGroup
	for name, check := range checkers {
		wg.Go(func() {
			cctx, cancel := context.WithTimeout(ctx, r.timeout)
			defer cancel()
			start := time.Now()
			err := check(cctx)
			st := Status{Healthy: err == nil, Duration: time.Since(start)}
			if err != nil {
				st.Error = err.Error()
			}
			mu.Lock()
			report.Checks[name] = st
			if err != nil {
				report.Healthy = false
			}
			mu.Unlock()
		})
	}
	wg.Wait()
	return report
}
