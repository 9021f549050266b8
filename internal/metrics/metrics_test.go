package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorderCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewRecorder(reg)

	r.Booking(OutcomeSuccess)
	r.Booking(OutcomeSlotUnavailable)
	r.Booking(OutcomeSlotUnavailable)
	r.Compensation()
	r.Reconciled(3)
	r.Reconciled(0)

	assert.Equal(t, 1.0, testutil.ToFloat64(r.bookings.WithLabelValues(OutcomeSuccess)))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.bookings.WithLabelValues(OutcomeSlotUnavailable)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.compensations))
	assert.Equal(t, 3.0, testutil.ToFloat64(r.reconciled))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestNilRecorderIsNoop(t *testing.T) {
	var r *Recorder
	assert.NotPanics(t, func() {
		r.Booking(OutcomeSuccess)
		r.Cancellation(OutcomeError)
		r.Compensation()
		r.Reconciled(1)
		r.ObserveRequest("GET", "/healthz", "200", 0.01)
	})
}
