// Package metrics 封装独立的 Prometheus 注册表与服务的标准指标。
package metrics

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 封装了基于 Prometheus 的指标采集注册表及预定义的标准监控指标。
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequestsTotal   *prometheus.CounterVec   // HTTP 请求总量 (维度: method, path, status)
	HTTPRequestDuration *prometheus.HistogramVec // HTTP 请求耗时分布

	OpsTotal    *prometheus.CounterVec   // 容器操作总量 (维度: kind, op, result)
	OpDuration  *prometheus.HistogramVec // 容器操作耗时 (维度: kind, op)
	ArenaNodes  *prometheus.GaugeVec     // 各类容器节点池总节点数 (维度: kind)
	Versions    *prometheus.GaugeVec     // 各类容器版本总数 (维度: kind)
	Containers  *prometheus.GaugeVec     // 存活容器数 (维度: kind)
	CacheLookup *prometheus.CounterVec   // 查询缓存命中情况 (维度: result)

	BuildInfo *prometheus.GaugeVec
}

// NewMetrics 初始化并返回一个新的指标采集器，自动注册 Go 运行时指标和进程指标。
func NewMetrics(serviceName string) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{registry: reg}

	m.HTTPRequestsTotal = m.NewCounterVec(prometheus.CounterOpts{
		Name: "http_server_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	m.HTTPRequestDuration = m.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_server_request_duration_seconds",
		Help:    "HTTP request latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	m.OpsTotal = m.NewCounterVec(prometheus.CounterOpts{
		Name: "pic_operations_total",
		Help: "Total number of container operations",
	}, []string{"kind", "op", "result"})

	m.OpDuration = m.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pic_operation_duration_seconds",
		Help:    "Container operation latency in seconds",
		Buckets: prometheus.ExponentialBuckets(0.000005, 4, 10),
	}, []string{"kind", "op"})

	m.ArenaNodes = m.NewGaugeVec(prometheus.GaugeOpts{
		Name: "pic_arena_nodes",
		Help: "Allocated arena nodes across live containers",
	}, []string{"kind"})

	m.Versions = m.NewGaugeVec(prometheus.GaugeOpts{
		Name: "pic_versions",
		Help: "Published versions across live containers",
	}, []string{"kind"})

	m.Containers = m.NewGaugeVec(prometheus.GaugeOpts{
		Name: "pic_containers",
		Help: "Live containers",
	}, []string{"kind"})

	m.CacheLookup = m.NewCounterVec(prometheus.CounterOpts{
		Name: "pic_query_cache_lookups_total",
		Help: "Query result cache lookups",
	}, []string{"result"})

	slog.Info("unified metrics registry initialized", "service", serviceName)
	return m
}

// NewCounterVec 创建并注册一个新的计数器指标。
func (m *Metrics) NewCounterVec(opts prometheus.CounterOpts, labelNames []string) *prometheus.CounterVec {
	cv := prometheus.NewCounterVec(opts, labelNames)
	m.registry.MustRegister(cv)
	return cv
}

// NewGaugeVec 创建并注册一个新的仪表盘指标。
func (m *Metrics) NewGaugeVec(opts prometheus.GaugeOpts, labelNames []string) *prometheus.GaugeVec {
	gv := prometheus.NewGaugeVec(opts, labelNames)
	m.registry.MustRegister(gv)
	return gv
}

// NewHistogramVec 创建并注册一个新的直方图指标。
func (m *Metrics) NewHistogramVec(opts prometheus.HistogramOpts, labelNames []string) *prometheus.HistogramVec {
	hv := prometheus.NewHistogramVec(opts, labelNames)
	m.registry.MustRegister(hv)
	return hv
}

// Registry 底层注册表，供外部组件注册自定义 Collector。
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler 返回用于暴露指标的 HTTP 处理器。
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
