package natsclient

import (
	"context"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/sembridge/metric"
)

// connMetrics holds Prometheus metrics for the NATS connection. Traffic
// counters come from nats.Conn.Stats(), which reports cumulative totals,
// so they are exposed as gauges set from each sample. All methods are
// safe on a nil receiver; metrics are optional.
type connMetrics struct {
	core *metric.Metrics

	inMsgs   prometheus.Gauge
	outMsgs  prometheus.Gauge
	inBytes  prometheus.Gauge
	outBytes prometheus.Gauge

	opErrors *prometheus.CounterVec
}

// newConnMetrics creates and registers connection metrics with the
// provided registry.
func newConnMetrics(registry *metric.MetricsRegistry) (*connMetrics, error) {
	if registry == nil {
		return nil, nil
	}

	m := &connMetrics{
		core: registry.CoreMetrics(),

		inMsgs: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "sembridge",
			Subsystem: "nats",
			Name:      "in_msgs",
			Help:      "Cumulative messages received over the connection",
		}),
		outMsgs: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "sembridge",
			Subsystem: "nats",
			Name:      "out_msgs",
			Help:      "Cumulative messages published over the connection",
		}),
		inBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "sembridge",
			Subsystem: "nats",
			Name:      "in_bytes",
			Help:      "Cumulative bytes received over the connection",
		}),
		outBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "sembridge",
			Subsystem: "nats",
			Name:      "out_bytes",
			Help:      "Cumulative bytes published over the connection",
		}),

		opErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sembridge",
			Subsystem: "nats",
			Name:      "operation_errors_total",
			Help:      "Total number of failed NATS operations",
		}, []string{"operation"}),
	}

	if err := registry.RegisterGauge("nats", "in_msgs", m.inMsgs); err != nil {
		return nil, err
	}
	if err := registry.RegisterGauge("nats", "out_msgs", m.outMsgs); err != nil {
		return nil, err
	}
	if err := registry.RegisterGauge("nats", "in_bytes", m.inBytes); err != nil {
		return nil, err
	}
	if err := registry.RegisterGauge("nats", "out_bytes", m.outBytes); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounterVec("nats", "operation_errors", m.opErrors); err != nil {
		return nil, err
	}

	return m, nil
}

// recordStatus mirrors the connection state onto the core gauge.
func (m *connMetrics) recordStatus(connected bool) {
	if m == nil {
		return
	}
	m.core.RecordNATSStatus(connected)
}

// recordReconnect counts a successful reconnection.
func (m *connMetrics) recordReconnect() {
	if m == nil {
		return
	}
	m.core.RecordNATSReconnect()
}

// recordError counts a failed operation.
func (m *connMetrics) recordError(operation string) {
	if m == nil {
		return
	}
	m.opErrors.WithLabelValues(operation).Inc()
}

// updateStats publishes one statistics sample.
func (m *connMetrics) updateStats(stats nats.Statistics, connected bool, rtt time.Duration) {
	if m == nil {
		return
	}

	m.inMsgs.Set(float64(stats.InMsgs))
	m.outMsgs.Set(float64(stats.OutMsgs))
	m.inBytes.Set(float64(stats.InBytes))
	m.outBytes.Set(float64(stats.OutBytes))

	m.core.RecordNATSStatus(connected)
	if connected {
		m.core.RecordNATSRTT(rtt)
	}
}

// startPoller starts a goroutine that samples connection statistics
// periodically. Returns a cancel function to stop the poller.
func (m *connMetrics) startPoller(
	ctx context.Context,
	interval time.Duration,
	sample func() (nats.Statistics, bool, time.Duration),
) context.CancelFunc {
	if m == nil {
		return func() {}
	}

	ctx, cancel := context.WithCancel(ctx)

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				stats, connected, rtt := sample()
				m.updateStats(stats, connected, rtt)
			case <-ctx.Done():
				return
			}
		}
	}()

	return cancel
}
