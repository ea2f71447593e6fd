package metrics

import (
	"errors"
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"native-exporter/internal/native"
)

func TestObserveResult(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.ObserveResult(&native.Result{Blocks: 3, NumRows: 2500})
	m.ObserveResult(&native.Result{Blocks: 1, NumRows: 10})

	require.Equal(t, 4.0, testutil.ToFloat64(m.BlocksDecoded))
	require.Equal(t, 2510.0, testutil.ToFloat64(m.RowsDecoded))
}

func TestObserveDecodeError(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	wrapped := &native.DecodeError{Block: 2, Column: "id", Err: native.ErrTruncatedStream}
	m.ObserveDecodeError(wrapped)
	m.ObserveDecodeError(fmt.Errorf("load: %w", wrapped))
	m.ObserveDecodeError(errors.New("boom"))
	m.ObserveDecodeError(nil)

	require.Equal(t, 2.0, testutil.ToFloat64(m.DecodeErrors.WithLabelValues("truncated_stream")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.DecodeErrors.WithLabelValues("other")))
}

func TestErrorKind(t *testing.T) {
	require.Equal(t, "malformed_varint", ErrorKind(native.ErrMalformedVarInt))
	require.Equal(t, "schema_mismatch", ErrorKind(fmt.Errorf("x: %w", native.ErrSchemaMismatch)))
	require.Equal(t, "invalid_folder", ErrorKind(native.ErrInvalidFolder))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveResult(&native.Result{Blocks: 1})
	m.ObserveDecodeError(native.ErrTruncatedStream)
}

func TestNewMetrics_DuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewMetrics(reg)
	require.Panics(t, func() { NewMetrics(reg) })
}
