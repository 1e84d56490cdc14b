package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var sweepBuckets = []float64{.005, .01, .05, .1, .5, 1, 5, 15, 60}

type promRecorder struct {
	loans                  *prometheus.CounterVec
	finesAssessed          prometheus.Counter
	fineAmount             prometheus.Counter
	reservationTransitions *prometheus.CounterVec
	sweepDuration          *prometheus.HistogramVec
	sweepProcessed         *prometheus.CounterVec
	sweepFailures          *prometheus.CounterVec
	notificationsDropped   prometheus.Counter
}

// NewPrometheus registers the lending collectors on reg.
func NewPrometheus(reg prometheus.Registerer) Recorder {
	m := &promRecorder{
		loans: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "library_loans_total",
			Help: "Loan lifecycle actions",
		}, []string{"action"}),

		finesAssessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "library_fines_assessed_total",
			Help: "Fines created by late returns",
		}),

		fineAmount: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "library_fines_assessed_amount_total",
			Help: "Sum of assessed fine amounts",
		}),

		reservationTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "library_reservation_transitions_total",
			Help: "Reservation status changes by target status",
		}, []string{"to"}),

		sweepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "library_sweep_duration_seconds",
			Help:    "Scheduled sweep latency in seconds",
			Buckets: sweepBuckets,
		}, []string{"job"}),

		sweepProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "library_sweep_processed_total",
			Help: "Rows changed by scheduled sweeps",
		}, []string{"job"}),

		sweepFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "library_sweep_failures_total",
			Help: "Scheduled sweeps that returned an error",
		}, []string{"job"}),

		notificationsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "library_notifications_dropped_total",
			Help: "Notifications dropped because the dispatch queue was full",
		}),
	}

	reg.MustRegister(
		m.loans,
		m.finesAssessed,
		m.fineAmount,
		m.reservationTransitions,
		m.sweepDuration,
		m.sweepProcessed,
		m.sweepFailures,
		m.notificationsDropped,
	)
	return m
}

func (m *promRecorder) LoanEvent(action string) {
	m.loans.WithLabelValues(action).Inc()
}

func (m *promRecorder) FineAssessed(amount float64) {
	m.finesAssessed.Inc()
	if amount > 0 {
		m.fineAmount.Add(amount)
	}
}

func (m *promRecorder) ReservationTransition(to string) {
	m.reservationTransitions.WithLabelValues(to).Inc()
}

func (m *promRecorder) SweepCompleted(job string, processed int, took time.Duration, err error) {
	m.sweepDuration.WithLabelValues(job).Observe(took.Seconds())
	if processed > 0 {
		m.sweepProcessed.WithLabelValues(job).Add(float64(processed))
	}
	if err != nil {
		m.sweepFailures.WithLabelValues(job).Inc()
	}
}

func (m *promRecorder) NotificationDropped() {
	m.notificationsDropped.Inc()
}
