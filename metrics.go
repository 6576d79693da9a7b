package filevault

import (
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"
)

// Metrics holds the engine's Prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	OperationsTotal   *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec
	KDFDuration       prometheus.Histogram
	PlaintextBytes    *prometheus.CounterVec
}

// NewMetrics registers the engine collectors with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		OperationsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "filevault_operations_total",
				Help: "Total number of seal and open operations",
			},
			[]string{"operation", "status"},
		),
		OperationDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "filevault_operation_duration_seconds",
				Help:    "End-to-end encrypt and decrypt duration in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"operation"},
		),
		KDFDuration: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Name:    "filevault_kdf_duration_seconds",
				Help:    "Key derivation duration in seconds",
				Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2},
			},
		),
		PlaintextBytes: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "filevault_plaintext_bytes_total",
				Help: "Plaintext bytes sealed or recovered",
			},
			[]string{"operation"},
		),
	}
}

// Status label values
const (
	statusOK        = "ok"
	statusAuth      = "auth_failed"
	statusIntegrity = "integrity_failed"
	statusInvalid   = "invalid"
	statusError     = "error"
)

func (m *Metrics) observe(op string, start time.Time, size int, err error) {
	if m == nil {
		return
	}
	m.OperationsTotal.WithLabelValues(op, statusOf(err)).Inc()
	m.OperationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if err == nil {
		m.PlaintextBytes.WithLabelValues(op).Add(float64(size))
	}
}

func (m *Metrics) observeKDF(start time.Time) {
	if m == nil {
		return
	}
	m.KDFDuration.Observe(time.Since(start).Seconds())
}

func statusOf(err error) string {
	switch {
	case err == nil:
		return statusOK
	case IsAuthenticationError(err):
		return statusAuth
	case IsIntegrityError(err):
		return statusIntegrity
	case IsValidationError(err):
		return statusInvalid
	default:
		return statusError
	}
}

func discardLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
