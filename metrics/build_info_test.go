package metrics

import (
	"runtime"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRegisterBuildInfo(t *testing.T) {
	m := NewMetrics("versiond")
	m.RegisterBuildInfo("versiond", "")
	m.RegisterBuildInfo("other", "v2")

	assert.Equal(t, 1, testutil.CollectAndCount(m.BuildInfo))
	assert.InDelta(t, 1, testutil.ToFloat64(m.BuildInfo.WithLabelValues("versiond", "dev", runtime.Version())), 0)
}
