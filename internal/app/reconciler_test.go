package app

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Freeeeeet/office_hours/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type fakeReleaser struct {
	calls    atomic.Int32
	released int
	err      error
	grace    time.Duration
}

func (f *fakeReleaser) ReleaseOrphanedClaims(_ context.Context, grace time.Duration) (int, error) {
	f.calls.Add(1)
	f.grace = grace
	return f.released, f.err
}

func TestReconcilerRunOnceCountsReleases(t *testing.T) {
	reg := prometheus.NewRegistry()
	recorder := metrics.NewRecorder(reg)
	releaser := &fakeReleaser{released: 3}

	r := NewReconciler(releaser, recorder, time.Minute, 30*time.Second, zap.NewNop())
	assert.Equal(t, 3, r.RunOnce(context.Background()))
	assert.Equal(t, 30*time.Second, releaser.grace)

	count, err := testutil.GatherAndCount(reg, "office_hours_reconciled_claims_total")
	assert.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestReconcilerRunOnceSurvivesErrors(t *testing.T) {
	releaser := &fakeReleaser{err: errors.New("db down")}
	r := NewReconciler(releaser, nil, time.Minute, time.Second, zap.NewNop())
	assert.Equal(t, 0, r.RunOnce(context.Background()))
}

func TestReconcilerTicksUntilStopped(t *testing.T) {
	releaser := &fakeReleaser{}
	r := NewReconciler(releaser, nil, 5*time.Millisecond, time.Second, zap.NewNop())

	r.Start(context.Background())
	assert.Eventually(t, func() bool { return releaser.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
	r.Stop()

	calls := releaser.calls.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, calls, releaser.calls.Load())
}
