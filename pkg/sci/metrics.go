package sci

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// The transfer results recorded by Metrics.
const (
	ResultOK        = "ok"
	ResultTimeout   = "timeout"
	ResultTransport = "transport"
)

// Metrics collects transfer statistics of one or more instances. A nil
// Metrics value is valid and records nothing.
type Metrics struct {
	Transfers *prometheus.CounterVec
	InFlight  *prometheus.GaugeVec
	Dropped   *prometheus.CounterVec
	Latency   *prometheus.HistogramVec
}

// NewMetrics creates unregistered collectors.
func NewMetrics() *Metrics {
	return &Metrics{
		Transfers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sci",
			Name:      "transfers_total",
			Help:      "Executed transfers by result.",
		}, []string{"instance", "result"}),
		InFlight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "sci",
			Name:      "transfers_in_flight",
			Help:      "Currently allocated transfer slots.",
		}, []string{"instance"}),
		Dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sci",
			Name:      "dropped_messages_total",
			Help:      "Inbound messages discarded by reason.",
		}, []string{"instance", "reason"}),
		Latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "sci",
			Name:      "transfer_duration_seconds",
			Help:      "Time from send to response.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
		}, []string{"instance"}),
	}
}

// Register registers all collectors.
func (m *Metrics) Register(r prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{m.Transfers, m.InFlight, m.Dropped, m.Latency} {
		err := r.Register(c)
		if err != nil {
			return err
		}
	}

	return nil
}

func (m *Metrics) transfer(instance, result string, start time.Time) {
	if m == nil {
		return
	}
	m.Transfers.WithLabelValues(instance, result).Inc()
	if result == ResultOK {
		m.Latency.WithLabelValues(instance).Observe(time.Since(start).Seconds())
	}
}

func (m *Metrics) acquired(instance string, delta float64) {
	if m == nil {
		return
	}
	m.InFlight.WithLabelValues(instance).Add(delta)
}

func (m *Metrics) dropped(instance, reason string) {
	if m == nil {
		return
	}
	m.Dropped.WithLabelValues(instance, reason).Inc()
}
