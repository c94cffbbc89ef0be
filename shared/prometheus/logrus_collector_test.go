package prometheus_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"

	"github.com/keep-network/tbtc-relayer/shared/prometheus"
	"github.com/keep-network/tbtc-relayer/shared/testutil/assert"
	"github.com/keep-network/tbtc-relayer/shared/testutil/require"
)

func TestLogrusCollector(t *testing.T) {
	hook := prometheus.NewLogrusCollector()
	logger := logrus.New()
	logger.AddHook(hook)

	prefixed := logger.WithField("prefix", "scheduler")
	prefixed.Info("tick finished")
	prefixed.Info("tick finished")
	prefixed.Warn("tick slow")
	logger.Error("unprefixed failure")

	series := testutil.CollectAndCount(hook.Counter())
	require.Equal(t, 3, series)
	assert.Equal(t, float64(2), testutil.ToFloat64(hook.Counter().WithLabelValues("info", "scheduler")))
	assert.Equal(t, float64(1), testutil.ToFloat64(hook.Counter().WithLabelValues("warning", "scheduler")))
	assert.Equal(t, float64(1), testutil.ToFloat64(hook.Counter().WithLabelValues("error", "global")))
}
