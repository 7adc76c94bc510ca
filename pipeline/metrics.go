package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/sembridge/metric"
)

type coordinatorMetrics struct {
	cycles        prometheus.Counter
	cycleDuration prometheus.Histogram
	readings      prometheus.Counter
	oracleFails   prometheus.Counter
	parseFails    prometheus.Counter
	generated     prometheus.Counter
	released      prometheus.Counter
	parked        prometheus.Counter
	rejections    *prometheus.CounterVec
}

// newCoordinatorMetrics registers the cycle metrics. On any
// registration failure the coordinator runs without metrics.
func newCoordinatorMetrics(registry *metric.MetricsRegistry) *coordinatorMetrics {
	labels := prometheus.Labels{"component": "coordinator"}
	opts := func(name, help string) prometheus.CounterOpts {
		return prometheus.CounterOpts{
			Namespace:   "sembridge",
			Subsystem:   "pipeline",
			Name:        name,
			ConstLabels: labels,
			Help:        help,
		}
	}

	m := &coordinatorMetrics{
		cycles: prometheus.NewCounter(opts("cycles_total", "Evaluation cycles completed")),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   "sembridge",
			Subsystem:   "pipeline",
			Name:        "cycle_duration_seconds",
			ConstLabels: labels,
			Help:        "Evaluation cycle duration",
			Buckets:     []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		readings:    prometheus.NewCounter(opts("readings_total", "Sensor readings accepted into cycles")),
		oracleFails: prometheus.NewCounter(opts("oracle_failures_total", "Candidate evaluations lost to oracle failures")),
		parseFails:  prometheus.NewCounter(opts("parse_failures_total", "Oracle replies that failed the reply contract")),
		generated:   prometheus.NewCounter(opts("commands_generated_total", "Commands synthesized from oracle actions")),
		released:    prometheus.NewCounter(opts("commands_released_total", "Commands released to the dispatcher")),
		parked:      prometheus.NewCounter(opts("commands_pending_total", "Commands parked for confirmation")),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "sembridge",
			Subsystem:   "pipeline",
			Name:        "rejections_total",
			ConstLabels: labels,
			Help:        "Commands rejected, by deciding stage",
		}, []string{"stage"}),
	}

	serviceName := "pipeline"
	registrations := []struct {
		name string
		err  error
	}{
		{"cycles_total", registry.RegisterCounter(serviceName, "cycles_total", m.cycles)},
		{"cycle_duration_seconds", registry.RegisterHistogram(serviceName, "cycle_duration_seconds", m.cycleDuration)},
		{"readings_total", registry.RegisterCounter(serviceName, "readings_total", m.readings)},
		{"oracle_failures_total", registry.RegisterCounter(serviceName, "oracle_failures_total", m.oracleFails)},
		{"parse_failures_total", registry.RegisterCounter(serviceName, "parse_failures_total", m.parseFails)},
		{"commands_generated_total", registry.RegisterCounter(serviceName, "commands_generated_total", m.generated)},
		{"commands_released_total", registry.RegisterCounter(serviceName, "commands_released_total", m.released)},
		{"commands_pending_total", registry.RegisterCounter(serviceName, "commands_pending_total", m.parked)},
		{"rejections_total", registry.RegisterCounterVec(serviceName, "rejections_total", m.rejections)},
	}
	for _, r := range registrations {
		if r.err != nil {
			return nil
		}
	}
	return m
}

func (m *coordinatorMetrics) observe(s CycleSummary) {
	m.cycles.Inc()
	m.cycleDuration.Observe(s.Duration.Seconds())
	m.readings.Add(float64(s.Readings))
	m.oracleFails.Add(float64(s.OracleFailures))
	m.parseFails.Add(float64(s.ParseFailures))
	m.generated.Add(float64(s.CommandsGenerated))
	m.released.Add(float64(s.Released))
	m.parked.Add(float64(s.Pending))
	for stage, n := range s.Rejected {
		m.rejections.WithLabelValues(stage).Add(float64(n))
	}
}
