// Package bootstrap 负责进程级基础设施的装配：配置、日志、追踪、指标、缓存、快照存储，
// 以及容器服务与 HTTP 服务器。
package bootstrap

import (
	"context"
	"fmt"
	"strconv"

	"github.com/wyfcoding/versioned/api"
	"github.com/wyfcoding/versioned/app"
	"github.com/wyfcoding/versioned/cache"
	"github.com/wyfcoding/versioned/config"
	"github.com/wyfcoding/versioned/health"
	"github.com/wyfcoding/versioned/idgen"
	"github.com/wyfcoding/versioned/logging"
	"github.com/wyfcoding/versioned/metrics"
	"github.com/wyfcoding/versioned/redis"
	"github.com/wyfcoding/versioned/server"
	"github.com/wyfcoding/versioned/service"
	"github.com/wyfcoding/versioned/snapshot"
	"github.com/wyfcoding/versioned/storage"
	"github.com/wyfcoding/versioned/tracing"
)

// Bootstrapper 持有装配好的组件，cleanups 在关闭时逆序执行。
type Bootstrapper struct {
	Config   *config.Config
	Logger   *logging.Logger
	Metrics  *metrics.Metrics
	Health   *health.Registry
	Service  *service.Service
	Server   *server.GinServer
	cleanups []func()
}

// Initialize 加载配置并按配置初始化全局日志。
func Initialize(configPath string) (*config.Config, *logging.Logger, error) {
	var cfg config.Config
	if err := config.Load(configPath, &cfg); err != nil {
		return nil, nil, err
	}
	logger := logging.InitLogger(logging.Config{
		Service:    cfg.Server.Name,
		Module:     "bootstrap",
		Level:      cfg.Log.Level,
		Output:     cfg.Log.Output,
		File:       cfg.Log.File,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
		Compress:   cfg.Log.Compress,
	})
	config.PrintWithMask(cfg)
	return &cfg, logger, nil
}

// New 按配置装配全部组件。失败时已创建的资源会被释放。
func New(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*Bootstrapper, error) {
	b := &Bootstrapper{Config: cfg, Logger: logger, Health: health.NewRegistry(0)}
	if err := b.setup(ctx); err != nil {
		b.Close()
		return nil, err
	}
	return b, nil
}

func (b *Bootstrapper) setup(ctx context.Context) error {
	cfg, logger := b.Config, b.Logger

	if err := b.setupTracing(ctx); err != nil {
		return err
	}
	b.Metrics = metrics.NewMetrics(cfg.Server.Name)
	b.Metrics.RegisterBuildInfo(cfg.Server.Name, cfg.Version)

	ids, err := idgen.NewGenerator(cfg.Snowflake)
	if err != nil {
		return fmt.Errorf("init id generator: %w", err)
	}
	opts := []service.Option{
		service.WithLogger(logger.Named("service")),
		service.WithMetrics(b.Metrics),
	}
	if cfg.Cache.Enabled {
		c, err := b.setupCache(ctx)
		if err != nil {
			return err
		}
		opts = append(opts, service.WithCache(c, cfg.Cache.DefaultExpiration))
	}
	store, err := b.setupStore(ctx)
	if err != nil {
		return err
	}
	if store != nil {
		opts = append(opts, service.WithStore(store))
	}
	b.Service = service.New(cfg.Engine, ids, opts...)

	handler := api.NewHandler(b.Service, b.Health, logger.Named("api"))
	router := api.NewRouter(handler, api.RouterOptions{
		Metrics:       b.Metrics,
		ServiceName:   cfg.Server.Name,
		MetricsPath:   cfg.Metrics.Path,
		SlowThreshold: cfg.Log.SlowThreshold,
		MaxBodyBytes:  cfg.Server.HTTP.MaxBodyBytes,
		RateLimit:     rateOf(cfg.RateLimit),
		RateBurst:     cfg.RateLimit.Burst,
		Tracing:       cfg.Tracing.Enabled,
	})
	addr := cfg.Server.HTTP.Addr + ":" + strconv.Itoa(cfg.Server.HTTP.Port)
	b.Server = server.NewGinServer(router, addr, server.Timeouts{
		Read:     cfg.Server.HTTP.ReadTimeout,
		Write:    cfg.Server.HTTP.WriteTimeout,
		Idle:     cfg.Server.HTTP.IdleTimeout,
		Shutdown: cfg.Server.HTTP.ShutdownTimeout,
	}, logger.Named("http").Logger)
	return nil
}

func rateOf(cfg config.RateLimitConfig) int {
	if !cfg.Enabled {
		return 0
	}
	return cfg.Rate
}

func (b *Bootstrapper) onClose(fn func()) {
	b.cleanups = append(b.cleanups, fn)
}

func (b *Bootstrapper) setupTracing(ctx context.Context) error {
	if !b.Config.Tracing.Enabled {
		return nil
	}
	shutdown, err := tracing.InitTracer(ctx, b.Config.Tracing)
	if err != nil {
		return fmt.Errorf("init tracer: %w", err)
	}
	b.onClose(func() {
		if err := shutdown(context.Background()); err != nil {
			b.Logger.Error("failed to shutdown tracer", "error", err)
		}
	})
	return nil
}

// setupCache 本地 BigCache 为一级缓存，启用 Redis 时组合为两级缓存。
func (b *Bootstrapper) setupCache(ctx context.Context) (cache.Cache, error) {
	cfg := b.Config.Cache
	b.Metrics.Registry().MustRegister(cache.Collectors()...)

	l1, err := cache.NewBigCache(ctx, cfg.BigCache, cfg.Prefix)
	if err != nil {
		return nil, err
	}
	b.onClose(func() { _ = l1.Close() })
	if !cfg.Redis.Enabled {
		return l1, nil
	}

	b.Metrics.Registry().MustRegister(redis.Collectors()...)
	l2, err := cache.NewRedisCache(ctx, cfg.Redis, b.Config.CircuitBreaker, cfg.Prefix, b.Logger.Named("cache"))
	if err != nil {
		return nil, err
	}
	b.onClose(func() { _ = l2.Close() })
	b.Health.Register("redis", health.RedisChecker(l2.Client()))
	return cache.NewMultiLevelCache(l1, l2, b.Logger.Named("cache")), nil
}

func (b *Bootstrapper) setupStore(ctx context.Context) (snapshot.Store, error) {
	cfg := b.Config.Snapshot
	switch cfg.Backend {
	case "file":
		store, err := snapshot.NewFileStore(cfg.Dir)
		if err != nil {
			return nil, err
		}
		return store, nil
	case "minio":
		client, err := storage.NewMinIOClient(ctx, cfg.Minio)
		if err != nil {
			return nil, fmt.Errorf("init minio: %w", err)
		}
		storage.RegisterReloadHook(client)
		if check, err := health.MinioChecker(cfg.Minio); err == nil {
			b.Health.Register("minio", check)
		}
		return snapshot.NewObjectStore(client, cfg.Prefix), nil
	default:
		return nil, nil
	}
}

// App 把 HTTP 服务器与清理函数交给 app 管理生命周期。
func (b *Bootstrapper) App() *app.App {
	opts := []app.Option{
		app.WithServer(b.Server),
		app.WithShutdownTimeout(b.Config.Server.HTTP.ShutdownTimeout),
	}
	for _, fn := range b.cleanups {
		opts = append(opts, app.WithCleanup(fn))
	}
	return app.New(b.Config.Server.Name, b.Logger.Logger, opts...)
}

// Close 逆序释放已创建的资源。由 App 接管后无需再调用。
func (b *Bootstrapper) Close() {
	for i := len(b.cleanups) - 1; i >= 0; i-- {
		b.cleanups[i]()
	}
	b.cleanups = nil
}
