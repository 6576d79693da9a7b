package filevault

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_RecordsOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	e := newTestEngine(t, &Config{Metrics: m})
	ctx := context.Background()

	blob, err := e.EncryptFile(ctx, []byte("counted"), "c.txt", []byte("pw"))
	require.NoError(t, err)
	_, err = e.DecryptFile(ctx, blob, []byte("pw"))
	require.NoError(t, err)
	_, err = e.DecryptFile(ctx, blob, []byte("nope"))
	require.Error(t, err)
	_, err = e.EncryptFile(ctx, []byte("x"), "", []byte("pw"))
	require.Error(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.OperationsTotal.WithLabelValues("encrypt", statusOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OperationsTotal.WithLabelValues("encrypt", statusInvalid)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OperationsTotal.WithLabelValues("decrypt", statusOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OperationsTotal.WithLabelValues("decrypt", statusAuth)))

	// Only successful operations count bytes
	assert.Equal(t, 7.0, testutil.ToFloat64(m.PlaintextBytes.WithLabelValues("encrypt")))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.PlaintextBytes.WithLabelValues("decrypt")))

	count, err := testutil.GatherAndCount(reg, "filevault_kdf_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Equal(t, 4, testutil.CollectAndCount(m.OperationsTotal))
}

func TestMetrics_StatusOf(t *testing.T) {
	assert.Equal(t, statusOK, statusOf(nil))
	assert.Equal(t, statusAuth, statusOf(NewAuthenticationError("id")))
	assert.Equal(t, statusIntegrity, statusOf(NewIntegrityError("id", "bad")))
	assert.Equal(t, statusInvalid, statusOf(NewValidationError("f", nil, "bad")))
	assert.Equal(t, statusError, statusOf(context.Canceled))
}

func TestMetrics_NilIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.observe("encrypt", time.Now(), 1, nil)
	})
}
