package api

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/wyfcoding/versioned/metrics"
	"github.com/wyfcoding/versioned/middleware"
	"github.com/wyfcoding/versioned/server"
)

// RouterOptions 路由与中间件参数。
type RouterOptions struct {
	Metrics       *metrics.Metrics
	ServiceName   string
	MetricsPath   string
	SlowThreshold time.Duration
	MaxBodyBytes  int64
	RateLimit     int // 每个客户端 IP 每秒请求数，0 为不限。
	RateBurst     int
	Tracing       bool
}

// NewRouter 组装中间件链并注册全部路由。
func NewRouter(h *Handler, opts RouterOptions) *gin.Engine {
	if opts.MetricsPath == "" {
		opts.MetricsPath = "/metrics"
	}
	mws := []gin.HandlerFunc{middleware.Recovery(h.logger.Logger)}
	if opts.Tracing {
		mws = append(mws, middleware.TracingMiddleware(opts.ServiceName))
	}
	mws = append(mws,
		middleware.Logger(h.logger.Logger, opts.SlowThreshold),
		middleware.HTTPMetricsMiddleware(opts.Metrics, "/healthz", opts.MetricsPath),
	)
	if opts.RateLimit > 0 {
		mws = append(mws, middleware.NewLocalRateLimitMiddleware(opts.RateLimit, max(opts.RateBurst, 1)))
	}
	mws = append(mws, middleware.MaxBodyBytes(opts.MaxBodyBytes))

	gin.SetMode(gin.ReleaseMode)
	engine := server.NewEngine(mws...)
	engine.GET("/healthz", h.Healthz)
	if opts.Metrics != nil {
		engine.GET(opts.MetricsPath, gin.WrapH(opts.Metrics.Handler()))
	}
	h.Register(engine)
	return engine
}
