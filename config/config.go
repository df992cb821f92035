// Package config 提供统一的配置加载与管理能力：toml 文件 + APP_ 前缀环境变量覆盖，
// 加载后做结构校验，文件变更时热更新日志级别并回调注册的钩子。
package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/wyfcoding/versioned/logging"
)

// Config 全局顶级配置结构.
type Config struct {
	Version        string               `mapstructure:"version"        toml:"version"`
	Server         ServerConfig         `mapstructure:"server"         toml:"server"`
	Log            LogConfig            `mapstructure:"log"            toml:"log"`
	Tracing        TracingConfig        `mapstructure:"tracing"        toml:"tracing"`
	Metrics        MetricsConfig        `mapstructure:"metrics"        toml:"metrics"`
	RateLimit      RateLimitConfig      `mapstructure:"ratelimit"      toml:"ratelimit"`
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuitbreaker" toml:"circuitbreaker"`
	Snowflake      SnowflakeConfig      `mapstructure:"snowflake"      toml:"snowflake"`
	Cache          CacheConfig          `mapstructure:"cache"          toml:"cache"`
	Snapshot       SnapshotConfig       `mapstructure:"snapshot"       toml:"snapshot"`
	Engine         EngineConfig         `mapstructure:"engine"         toml:"engine"`
}

// ServerConfig 定义服务器运行时的基础网络与环境参数.
type ServerConfig struct {
	Name        string `mapstructure:"name"        toml:"name"        validate:"required"`
	Environment string `mapstructure:"environment" toml:"environment" validate:"oneof=dev test prod"`
	HTTP        struct {
		Addr            string        `mapstructure:"addr"             toml:"addr"`
		Port            int           `mapstructure:"port"             toml:"port"             validate:"required,min=1,max=65535"`
		ReadTimeout     time.Duration `mapstructure:"read_timeout"     toml:"read_timeout"`
		WriteTimeout    time.Duration `mapstructure:"write_timeout"    toml:"write_timeout"`
		IdleTimeout     time.Duration `mapstructure:"idle_timeout"     toml:"idle_timeout"`
		ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" toml:"shutdown_timeout"`
		MaxBodyBytes    int64         `mapstructure:"max_body_bytes"   toml:"max_body_bytes"`
	} `mapstructure:"http" toml:"http"`
}

// LogConfig 定义日志输出、级别与切割策略.
type LogConfig struct {
	Level         string        `mapstructure:"level"          toml:"level"          validate:"omitempty,oneof=debug info warn error"`
	Output        string        `mapstructure:"output"         toml:"output"         validate:"omitempty,oneof=stdout file both"`
	File          string        `mapstructure:"file"           toml:"file"`
	MaxSize       int           `mapstructure:"max_size"       toml:"max_size"`    // 单个文件最大大小 (MB)。
	MaxBackups    int           `mapstructure:"max_backups"    toml:"max_backups"` // 最大备份数。
	MaxAge        int           `mapstructure:"max_age"        toml:"max_age"`     // 最大保留天数。
	Compress      bool          `mapstructure:"compress"       toml:"compress"`
	SlowThreshold time.Duration `mapstructure:"slow_threshold" toml:"slow_threshold"` // HTTP 慢请求阈值。
}

// TracingConfig 分布式链路追踪 (OpenTelemetry) 配置.
type TracingConfig struct {
	ServiceName  string  `mapstructure:"service_name"  toml:"service_name"`
	OTLPEndpoint string  `mapstructure:"otlp_endpoint" toml:"otlp_endpoint" validate:"required_if=Enabled true"`
	SamplerRatio float64 `mapstructure:"sampler_ratio" toml:"sampler_ratio" validate:"min=0,max=1"`
	Enabled      bool    `mapstructure:"enabled"       toml:"enabled"`
}

// MetricsConfig 普罗米修斯监控指标暴露配置.
type MetricsConfig struct {
	Path    string `mapstructure:"path"    toml:"path"`
	Enabled bool   `mapstructure:"enabled" toml:"enabled"`
}

// RateLimitConfig 定义令牌桶限流参数.
type RateLimitConfig struct {
	Rate    int  `mapstructure:"rate"    toml:"rate"    validate:"min=0"`
	Burst   int  `mapstructure:"burst"   toml:"burst"   validate:"min=0"`
	Enabled bool `mapstructure:"enabled" toml:"enabled"`
}

// CircuitBreakerConfig 定义 Redis 二级缓存的熔断策略.
type CircuitBreakerConfig struct {
	Interval    time.Duration `mapstructure:"interval"     toml:"interval"`
	Timeout     time.Duration `mapstructure:"timeout"      toml:"timeout"`
	MaxRequests uint32        `mapstructure:"max_requests" toml:"max_requests"`
}

// SnowflakeConfig 容器 ID 生成器参数.
type SnowflakeConfig struct {
	StartTime string `mapstructure:"start_time" toml:"start_time"`
	Type      string `mapstructure:"type"       toml:"type"       validate:"omitempty,oneof=snowflake sonyflake"`
	MachineID int64  `mapstructure:"machine_id" toml:"machine_id" validate:"min=0,max=65535"`
}

// CacheConfig 查询结果缓存配置。BigCache 为一级缓存，Redis 可选作为二级缓存.
type CacheConfig struct {
	Prefix            string         `mapstructure:"prefix"             toml:"prefix"`
	DefaultExpiration time.Duration  `mapstructure:"default_expiration" toml:"default_expiration"`
	Enabled           bool           `mapstructure:"enabled"            toml:"enabled"`
	BigCache          BigCacheConfig `mapstructure:"bigcache"           toml:"bigcache"`
	Redis             RedisConfig    `mapstructure:"redis"              toml:"redis"`
}

// BigCacheConfig 高性能本地内存缓存参数.
type BigCacheConfig struct {
	LifeWindow       time.Duration `mapstructure:"life_window"         toml:"life_window"`
	CleanWindow      time.Duration `mapstructure:"clean_window"        toml:"clean_window"`
	Shards           int           `mapstructure:"shards"              toml:"shards"`
	MaxEntrySize     int           `mapstructure:"max_entry_size"      toml:"max_entry_size"`
	HardMaxCacheSize int           `mapstructure:"hard_max_cache_size" toml:"hard_max_cache_size"`
	Verbose          bool          `mapstructure:"verbose"             toml:"verbose"`
}

// RedisConfig 定义 Redis 连接与池化参数.
type RedisConfig struct {
	Addr         string        `mapstructure:"addr"           toml:"addr"           validate:"required_if=Enabled true"`
	Password     string        `mapstructure:"password"       toml:"password"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"   toml:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"  toml:"write_timeout"`
	DB           int           `mapstructure:"db"             toml:"db"`
	PoolSize     int           `mapstructure:"pool_size"      toml:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns" toml:"min_idle_conns"`
	Enabled      bool          `mapstructure:"enabled"        toml:"enabled"`
}

// SnapshotConfig 快照存储配置.
type SnapshotConfig struct {
	Backend string      `mapstructure:"backend" toml:"backend" validate:"oneof=none file minio"`
	Dir     string      `mapstructure:"dir"     toml:"dir"     validate:"required_if=Backend file"`
	Prefix  string      `mapstructure:"prefix"  toml:"prefix"`
	Minio   MinioConfig `mapstructure:"minio"   toml:"minio"`
}

// MinioConfig 定义 S3 兼容对象存储 MinIO 的连接参数.
type MinioConfig struct {
	Endpoint        string `mapstructure:"endpoint"          toml:"endpoint"    validate:"required_if=Enabled true"`
	AccessKeyID     string `mapstructure:"access_key_id"     toml:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key" toml:"secret_access_key"`
	BucketName      string `mapstructure:"bucket_name"       toml:"bucket_name" validate:"required_if=Enabled true"`
	UseSSL          bool   `mapstructure:"use_ssl"           toml:"use_ssl"`
	Enabled         bool   `mapstructure:"enabled"           toml:"enabled"`
}

// EngineConfig 容器引擎参数.
type EngineConfig struct {
	Aggregator    string `mapstructure:"aggregator"     toml:"aggregator"     validate:"omitempty,oneof=sum min max"`
	ArenaLimit    int    `mapstructure:"arena_limit"    toml:"arena_limit"    validate:"min=0"` // 单个容器节点池上限，0 为不限。
	MaxContainers int    `mapstructure:"max_containers" toml:"max_containers" validate:"min=0"`
	MaxPositions  int    `mapstructure:"max_positions"  toml:"max_positions"  validate:"min=0"`
	TreapSeed     uint64 `mapstructure:"treap_seed"     toml:"treap_seed"` // 0 表示按时间取种子。
}

var (
	vInstance = viper.New()
	hookMu    sync.Mutex
	onReload  []func(*Config)
)

// RegisterReloadHook 注册配置热更新回调。
func RegisterReloadHook(hook func(*Config)) {
	if hook == nil {
		return
	}
	hookMu.Lock()
	onReload = append(onReload, hook)
	hookMu.Unlock()
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.name", "versiond")
	v.SetDefault("server.environment", "dev")
	v.SetDefault("server.http.port", 8080)
	v.SetDefault("server.http.read_timeout", 10*time.Second)
	v.SetDefault("server.http.write_timeout", 10*time.Second)
	v.SetDefault("server.http.shutdown_timeout", 15*time.Second)
	v.SetDefault("log.level", "info")
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.prefix", "pic")
	v.SetDefault("cache.default_expiration", 10*time.Minute)
	v.SetDefault("cache.bigcache.life_window", 10*time.Minute)
	v.SetDefault("cache.bigcache.shards", 64)
	v.SetDefault("snapshot.backend", "none")
	v.SetDefault("engine.aggregator", "sum")
}

// Load 加载配置文件并开启热更新.
func Load(path string, conf *Config) error {
	return load(vInstance, path, conf, true)
}

func load(v *viper.Viper, path string, conf *Config, watch bool) error {
	setDefaults(v)
	v.SetConfigFile(path)
	v.SetConfigType("toml")

	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config error: %w", err)
	}

	if err := v.Unmarshal(conf); err != nil {
		return fmt.Errorf("unmarshal config error: %w", err)
	}

	validate := validator.New()
	if err := validate.Struct(conf); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	if !watch {
		return nil
	}
	v.WatchConfig()
	v.OnConfigChange(func(event fsnotify.Event) {
		slog.Info("detecting config change", "file", event.Name)
		const debounceTimeout = 500 * time.Millisecond
		time.Sleep(debounceTimeout)

		var updated Config
		if err := v.Unmarshal(&updated); err != nil {
			slog.Error("reload config unmarshal failed", "error", err)
			return
		}
		if err := validate.Struct(&updated); err != nil {
			slog.Error("reload config validation failed", "error", err)
			return
		}

		logging.SetLevel(updated.Log.Level)
		slog.Info("config hot-reloaded and validated successfully")

		hookMu.Lock()
		hooks := append([]func(*Config){}, onReload...)
		hookMu.Unlock()
		for _, hook := range hooks {
			hook(&updated)
		}
	})

	return nil
}

// PrintWithMask 脱敏打印当前配置.
func PrintWithMask(conf any) {
	data, err := json.Marshal(conf)
	if err != nil {
		slog.Error("failed to marshal config for printing", "error", err)
		return
	}

	var configMap map[string]any
	if err := json.Unmarshal(data, &configMap); err != nil {
		slog.Error("failed to unmarshal config for masking", "error", err)
		return
	}

	mask(configMap)

	maskedJSON, err := json.MarshalIndent(configMap, "  ", "  ")
	if err != nil {
		slog.Error("failed to marshal masked config", "error", err)
		return
	}

	slog.Info("Current effective configuration", "config", string(maskedJSON))
}

func mask(configMap map[string]any) {
	sensitiveKeys := []string{"password", "secret", "key", "token"}

	for key, val := range configMap {
		if subMap, ok := val.(map[string]any); ok {
			mask(subMap)
			continue
		}

		if slice, ok := val.([]any); ok {
			for _, item := range slice {
				if itemMap, ok := item.(map[string]any); ok {
					mask(itemMap)
				}
			}
			continue
		}

		for _, sensitiveKey := range sensitiveKeys {
			if strings.Contains(strings.ToLower(key), sensitiveKey) {
				configMap[key] = "******"
				break
			}
		}
	}
}

// GetViper 返回底层的 Viper 实例.
func GetViper() *viper.Viper {
	return vInstance
}
