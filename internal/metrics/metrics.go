package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"native-exporter/internal/native"
)

// Metrics holds the Prometheus collectors shared by the pool, the reactor
// and the agent.
type Metrics struct {
	BlocksDecoded  prometheus.Counter
	RowsDecoded    prometheus.Counter
	DecodeErrors   *prometheus.CounterVec
	BatchesEmitted prometheus.Counter
	Jobs           *prometheus.CounterVec
	ScansInFlight  prometheus.Gauge
	ExportDuration prometheus.Histogram
}

// NewMetrics creates and registers all metrics with the provided registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	blocks := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "native_exporter_blocks_decoded_total",
		Help: "Total Native blocks decoded",
	})

	rows := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "native_exporter_rows_decoded_total",
		Help: "Total rows decoded from Native sources",
	})

	decodeErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "native_exporter_decode_errors_total",
		Help: "Decode failures by kind",
	}, []string{"kind"})

	batches := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "native_exporter_batches_emitted_total",
		Help: "Total non-empty batches handed to sinks",
	})

	jobs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "native_exporter_jobs_total",
		Help: "Export jobs by final status",
	}, []string{"status"})

	inFlight := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "native_exporter_scans_in_flight",
		Help: "Sources currently being decoded",
	})

	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "native_exporter_export_duration_seconds",
		Help:    "Wall time of completed exports",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
	})

	reg.MustRegister(blocks, rows, decodeErrors, batches, jobs, inFlight, duration)

	return &Metrics{
		BlocksDecoded:  blocks,
		RowsDecoded:    rows,
		DecodeErrors:   decodeErrors,
		BatchesEmitted: batches,
		Jobs:           jobs,
		ScansInFlight:  inFlight,
		ExportDuration: duration,
	}
}

// ObserveResult records a successfully decoded source.
func (m *Metrics) ObserveResult(res *native.Result) {
	if m == nil || res == nil {
		return
	}
	m.BlocksDecoded.Add(float64(res.Blocks))
	m.RowsDecoded.Add(float64(res.NumRows))
}

// ObserveDecodeError counts err under its kind label.
func (m *Metrics) ObserveDecodeError(err error) {
	if m == nil || err == nil {
		return
	}
	m.DecodeErrors.WithLabelValues(ErrorKind(err)).Inc()
}

// ErrorKind names the decode failure class of err.
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, native.ErrMalformedVarInt):
		return "malformed_varint"
	case errors.Is(err, native.ErrTruncatedStream):
		return "truncated_stream"
	case errors.Is(err, native.ErrSchemaMismatch):
		return "schema_mismatch"
	case errors.Is(err, native.ErrInvalidFolder):
		return "invalid_folder"
	default:
		return "other"
	}
}
