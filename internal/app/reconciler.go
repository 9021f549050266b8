package app

import (
	"context"
	"time"

	"github.com/Freeeeeet/office_hours/internal/metrics"
	"go.uber.org/zap"
)

// OrphanReleaser снимает захваты, после которых запись так и не появилась
type OrphanReleaser interface {
	ReleaseOrphanedClaims(ctx context.Context, grace time.Duration) (int, error)
}

// Reconciler фоновая задача, возвращающая осиротевшие окна в продажу
type Reconciler struct {
	releaser OrphanReleaser
	recorder *metrics.Recorder
	interval time.Duration
	grace    time.Duration
	logger   *zap.Logger
	stopChan chan struct{}
	done     chan struct{}
}

func NewReconciler(releaser OrphanReleaser, recorder *metrics.Recorder, interval, grace time.Duration, logger *zap.Logger) *Reconciler {
	return &Reconciler{
		releaser: releaser,
		recorder: recorder,
		interval: interval,
		grace:    grace,
		logger:   logger,
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start запускает задачу в отдельной горутине
func (r *Reconciler) Start(ctx context.Context) {
	r.logger.Info("Starting orphan claim reconciler",
		zap.Duration("interval", r.interval),
		zap.Duration("grace", r.grace))

	go r.run(ctx)
}

// Stop останавливает задачу и ждёт завершения текущего прохода
func (r *Reconciler) Stop() {
	r.logger.Info("Stopping orphan claim reconciler")
	close(r.stopChan)
	<-r.done
}

func (r *Reconciler) run(ctx context.Context) {
	defer close(r.done)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.RunOnce(ctx)
		case <-r.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

// RunOnce один проход сверки
func (r *Reconciler) RunOnce(ctx context.Context) int {
	released, err := r.releaser.ReleaseOrphanedClaims(ctx, r.grace)
	if err != nil {
		r.logger.Error("Failed to release orphaned claims", zap.Error(err))
		return 0
	}

	if released > 0 {
		r.recorder.Reconciled(released)
		r.logger.Warn("Released orphaned claims", zap.Int("count", released))
	}
	return released
}
