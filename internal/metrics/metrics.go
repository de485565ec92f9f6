package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// StreamMetrics holds the collectors for one stream connection.
type StreamMetrics struct {
	connects    prometheus.Counter
	reconnects  *prometheus.CounterVec
	messages    prometheus.Counter
	stalls      prometheus.Counter
	rateLimits  prometheus.Counter
	connected   prometheus.Gauge
	retryDelays prometheus.Histogram
}

// NewStreamMetrics creates and registers stream collectors with registry.
func NewStreamMetrics(registry prometheus.Registerer) (*StreamMetrics, error) {
	m := &StreamMetrics{
		connects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "twitterstream",
			Subsystem: "stream",
			Name:      "connects_total",
			Help:      "Successful stream establishments",
		}),
		reconnects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "twitterstream",
			Subsystem: "stream",
			Name:      "reconnects_total",
			Help:      "Reconnect attempts by failure reason",
		}, []string{"reason"}),
		messages: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "twitterstream",
			Subsystem: "stream",
			Name:      "messages_total",
			Help:      "Complete JSON messages emitted by the frame reader",
		}),
		stalls: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "twitterstream",
			Subsystem: "stream",
			Name:      "stalls_total",
			Help:      "Forced reconnects due to a silent connection",
		}),
		rateLimits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "twitterstream",
			Subsystem: "stream",
			Name:      "rate_limits_total",
			Help:      "HTTP 420 responses received",
		}),
		connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "twitterstream",
			Subsystem: "stream",
			Name:      "connected",
			Help:      "1 while a stream connection is established",
		}),
		retryDelays: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "twitterstream",
			Subsystem: "stream",
			Name:      "retry_delay_seconds",
			Help:      "Scheduled reconnect delays",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 80, 160, 320},
		}),
	}

	collectors := []prometheus.Collector{
		m.connects, m.reconnects, m.messages, m.stalls,
		m.rateLimits, m.connected, m.retryDelays,
	}
	for _, c := range collectors {
		if err := registry.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Connected records a successful stream establishment.
func (m *StreamMetrics) Connected() {
	if m == nil {
		return
	}
	m.connects.Inc()
	m.connected.Set(1)
}

// Disconnected records loss of the stream connection.
func (m *StreamMetrics) Disconnected() {
	if m == nil {
		return
	}
	m.connected.Set(0)
}

// Reconnect records a scheduled reconnect with its failure reason and delay.
func (m *StreamMetrics) Reconnect(reason string, delaySeconds float64) {
	if m == nil {
		return
	}
	m.reconnects.WithLabelValues(reason).Inc()
	m.retryDelays.Observe(delaySeconds)
}

// Message records one emitted message.
func (m *StreamMetrics) Message() {
	if m == nil {
		return
	}
	m.messages.Inc()
}

// Stall records a stall-supervisor firing.
func (m *StreamMetrics) Stall() {
	if m == nil {
		return
	}
	m.stalls.Inc()
}

// RateLimited records an HTTP 420 response.
func (m *StreamMetrics) RateLimited() {
	if m == nil {
		return
	}
	m.rateLimits.Inc()
}
