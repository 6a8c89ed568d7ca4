package extract

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/tracekit/protoargs/metrics"
)

// Metrics holds extraction-level metrics.
type Metrics struct {
	registry *metrics.ComponentRegistry

	DecodesTotal   *prometheus.CounterVec
	RecordsTotal   prometheus.Counter
	RecordSize     prometheus.Histogram
	RowsPerDecode  prometheus.Histogram
	DecodeDuration prometheus.Histogram
}

// NewMetrics creates extraction metrics.
func NewMetrics() *Metrics {
	reg := metrics.NewComponentRegistry("protoargs", "extract")

	return &Metrics{
		registry: reg,

		DecodesTotal: reg.NewCounterVec(prometheus.CounterOpts{
			Name: "decodes_total",
			Help: "Total number of message decodes by type and outcome",
		}, []string{"type", "outcome"}),

		RecordsTotal: reg.NewCounter(prometheus.CounterOpts{
			Name: "records_total",
			Help: "Total number of records read from trace streams",
		}),

		RecordSize: reg.NewHistogram(prometheus.HistogramOpts{
			Name:    "record_size_bytes",
			Help:    "Size of decoded records",
			Buckets: metrics.SizeBuckets,
		}),

		RowsPerDecode: reg.NewHistogram(prometheus.HistogramOpts{
			Name:    "rows_per_decode",
			Help:    "Argument rows emitted per decoded message",
			Buckets: metrics.CountBuckets,
		}),

		DecodeDuration: reg.NewHistogram(prometheus.HistogramOpts{
			Name:    "decode_duration_seconds",
			Help:    "Time spent decoding one message",
			Buckets: metrics.DurationBuckets,
		}),
	}
}

// RecordDecode records the outcome of one message decode.
func (m *Metrics) RecordDecode(typeName, outcome string, rows int, seconds float64) {
	m.DecodesTotal.WithLabelValues(typeName, outcome).Inc()
	m.RowsPerDecode.Observe(float64(rows))
	m.DecodeDuration.Observe(seconds)
}
