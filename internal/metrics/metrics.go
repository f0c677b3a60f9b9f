package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the Prometheus instruments of both processes. Each process
// registers on its own registry.
type Metrics struct {
	Admissions          *prometheus.CounterVec
	EnqueueFailures     prometheus.Counter
	Notifications       *prometheus.CounterVec
	NotificationLatency prometheus.Histogram
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Admissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "meetapp_admissions_total",
			Help: "Subscription requests by outcome.",
		}, []string{"outcome"}),

		EnqueueFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "meetapp_enqueue_failures_total",
			Help: "Admitted subscriptions whose notification could not be queued.",
		}),

		Notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "meetapp_notifications_total",
			Help: "Notification attempts by result: sent, failed (will retry) or dead_lettered.",
		}, []string{"result"}),

		NotificationLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "meetapp_notification_seconds",
			Help:    "Time to render and hand a notification to the mail server.",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		m.Admissions,
		m.EnqueueFailures,
		m.Notifications,
		m.NotificationLatency,
	)

	return m
}

func (m *Metrics) ObserveAdmission(outcome string) {
	m.Admissions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveEnqueueFailure() {
	m.EnqueueFailures.Inc()
}

func (m *Metrics) ObserveSent(latency time.Duration) {
	m.Notifications.WithLabelValues("sent").Inc()
	m.NotificationLatency.Observe(latency.Seconds())
}

func (m *Metrics) ObserveRetry() {
	m.Notifications.WithLabelValues("failed").Inc()
}

func (m *Metrics) ObserveDeadLetter() {
	m.Notifications.WithLabelValues("dead_lettered").Inc()
}
