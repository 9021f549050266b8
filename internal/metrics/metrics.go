// Package metrics собирает прометеевские счётчики сервиса.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "office_hours"

// Исходы бронирования и отмены
const (
	OutcomeSuccess          = "success"
	OutcomeSlotUnavailable  = "slot_unavailable"
	OutcomeNotAProfessor    = "not_a_professor"
	OutcomeNotFound         = "not_found"
	OutcomeNotAuthorized    = "not_authorized"
	OutcomeAlreadyCancelled = "already_cancelled"
	OutcomeError            = "error"
)

// Recorder набор метрик. Методы безопасны для nil-получателя
type Recorder struct {
	bookings        *prometheus.CounterVec
	cancellations   *prometheus.CounterVec
	compensations   prometheus.Counter
	reconciled      prometheus.Counter
	requestDuration *prometheus.HistogramVec
}

// NewRecorder создаёт метрики и регистрирует их в reg
func NewRecorder(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		bookings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bookings_total",
			Help:      "Booking attempts by outcome.",
		}, []string{"outcome"}),
		cancellations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cancellations_total",
			Help:      "Cancellation attempts by outcome.",
		}, []string{"outcome"}),
		compensations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "compensations_total",
			Help:      "Claims released because appointment creation failed.",
		}),
		reconciled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconciled_claims_total",
			Help:      "Orphaned claims released by the background reconciler.",
		}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}

	if reg != nil {
		reg.MustRegister(r.bookings, r.cancellations, r.compensations, r.reconciled, r.requestDuration)
	}
	return r
}

func (r *Recorder) Booking(outcome string) {
	if r == nil {
		return
	}
	r.bookings.WithLabelValues(outcome).Inc()
}

func (r *Recorder) Cancellation(outcome string) {
	if r == nil {
		return
	}
	r.cancellations.WithLabelValues(outcome).Inc()
}

func (r *Recorder) Compensation() {
	if r == nil {
		return
	}
	r.compensations.Inc()
}

func (r *Recorder) Reconciled(n int) {
	if r == nil || n <= 0 {
		return
	}
	r.reconciled.Add(float64(n))
}

func (r *Recorder) ObserveRequest(method, route, status string, seconds float64) {
	if r == nil {
		return
	}
	r.requestDuration.WithLabelValues(method, route, status).Observe(seconds)
}
