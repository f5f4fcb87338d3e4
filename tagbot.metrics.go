package tagbot

import (
	"time"

	"github.com/itsatony/go-cuserr"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the bot's prometheus collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	invocations    *prometheus.CounterVec
	commands       *prometheus.CounterVec
	formatDuration prometheus.Histogram
}

// NewMetrics creates the collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		invocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: MetricNamespace,
			Name:      MetricInvocationsName,
			Help:      MetricHelpInvocations,
		}, []string{MetricLabelResult}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: MetricNamespace,
			Name:      MetricCommandsName,
			Help:      MetricHelpCommands,
		}, []string{MetricLabelCommand, MetricLabelResult}),
		formatDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: MetricNamespace,
			Name:      MetricFormatDuration,
			Help:      MetricHelpFormatSeconds,
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 8),
		}),
	}

	if reg != nil {
		for _, c := range []prometheus.Collector{m.invocations, m.commands, m.formatDuration} {
			if err := reg.Register(c); err != nil {
				return nil, cuserr.WrapStdError(err, ErrCodeConfig, ErrMsgMetricsRegister)
			}
		}
	}
	return m, nil
}

// ObserveInvocation counts one tag invocation outcome.
func (m *Metrics) ObserveInvocation(result string) {
	if m == nil {
		return
	}
	m.invocations.WithLabelValues(result).Inc()
}

// ObserveCommand counts one management command outcome.
func (m *Metrics) ObserveCommand(command, result string) {
	if m == nil {
		return
	}
	m.commands.WithLabelValues(command, result).Inc()
}

// ObserveFormat records how long one Engine.Format call took.
func (m *Metrics) ObserveFormat(d time.Duration) {
	if m == nil {
		return
	}
	m.formatDuration.Observe(d.Seconds())
}
