package metrics

import (
	"cmp"
	"runtime"

	"github.com/prometheus/client_golang/prometheus"
)

// RegisterBuildInfo 发布 versioned_build_info{service, version, go_version} = 1。重复调用无效果。
func (m *Metrics) RegisterBuildInfo(serviceName, version string) {
	if m == nil || m.BuildInfo != nil {
		return
	}
	m.BuildInfo = m.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "versioned",
		Name:      "build_info",
		Help:      "Build of the running versiond binary.",
	}, []string{"service", "version", "go_version"})
	m.BuildInfo.WithLabelValues(cmp.Or(serviceName, "unknown"), cmp.Or(version, "dev"), runtime.Version()).Set(1)
}
