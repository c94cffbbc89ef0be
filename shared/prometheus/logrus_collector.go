package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"
)

// LogrusCollector is a logrus hook counting emitted log entries by level and
// component prefix.
type LogrusCollector struct {
	counter *prometheus.CounterVec
}

const (
	prefixKey     = "prefix"
	defaultPrefix = "global"
)

// NewLogrusCollector registers and returns the hook. Attach it with
// logrus.AddHook to export log_entries_total.
func NewLogrusCollector() *LogrusCollector {
	counter := promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "log_entries_total",
		Help: "Total number of log messages.",
	}, []string{"level", prefixKey})
	return &LogrusCollector{counter: counter}
}

// Counter exposes the underlying metric for tests.
func (hook *LogrusCollector) Counter() *prometheus.CounterVec {
	return hook.counter
}

// Fire implements logrus.Hook.
func (hook *LogrusCollector) Fire(entry *logrus.Entry) error {
	prefix := defaultPrefix
	if prefixValue, ok := entry.Data[prefixKey]; ok {
		prefix, ok = prefixValue.(string)
		if !ok {
			prefix = defaultPrefix
		}
	}
	hook.counter.WithLabelValues(entry.Level.String(), prefix).Inc()
	return nil
}

// Levels implements logrus.Hook: count warnings and above.
func (hook *LogrusCollector) Levels() []logrus.Level {
	return []logrus.Level{logrus.PanicLevel, logrus.FatalLevel, logrus.ErrorLevel, logrus.WarnLevel, logrus.InfoLevel}
}
