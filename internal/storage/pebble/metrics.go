package pebblestore

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PromMetrics is a MetricsHook backed by Prometheus histograms.
type PromMetrics struct {
	readSeconds   prometheus.Histogram
	readBytes     prometheus.Counter
	commitSeconds prometheus.Histogram
	commitOps     prometheus.Counter
	commitBytes   prometheus.Counter
}

// NewPromMetrics creates the collectors and registers them with reg.
func NewPromMetrics(reg prometheus.Registerer) (*PromMetrics, error) {
	m := &PromMetrics{
		readSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "factcast", Subsystem: "pebble", Name: "read_seconds",
			Help:    "Latency of point reads.",
			Buckets: prometheus.ExponentialBuckets(0.00005, 4, 8),
		}),
		readBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "factcast", Subsystem: "pebble", Name: "read_bytes_total",
			Help: "Bytes returned by point reads.",
		}),
		commitSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "factcast", Subsystem: "pebble", Name: "commit_seconds",
			Help:    "Latency of batch commits.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
		}),
		commitOps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "factcast", Subsystem: "pebble", Name: "commit_ops_total",
			Help: "Operations written by batch commits.",
		}),
		commitBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "factcast", Subsystem: "pebble", Name: "commit_bytes_total",
			Help: "Bytes written by batch commits.",
		}),
	}
	for _, c := range []prometheus.Collector{m.readSeconds, m.readBytes, m.commitSeconds, m.commitOps, m.commitBytes} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *PromMetrics) ObserveRead(elapsed time.Duration, bytes int) {
	m.readSeconds.Observe(elapsed.Seconds())
	m.readBytes.Add(float64(bytes))
}

func (m *PromMetrics) ObserveBatchCommit(elapsed time.Duration, numOps int, bytes int) {
	m.commitSeconds.Observe(elapsed.Seconds())
	m.commitOps.Add(float64(numOps))
	m.commitBytes.Add(float64(bytes))
}
