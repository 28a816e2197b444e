// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "application_transitions_total",
			Help: "Total number of status transitions applied",
		},
		[]string{"event", "outcome"},
	)

	OtpVerificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "otp_verifications_total",
			Help: "Total number of passcode verification attempts",
		},
		[]string{"kind", "result"},
	)

	SwipesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "swipes_total",
			Help: "Total number of swipe gestures processed",
		},
		[]string{"direction", "outcome"},
	)

	SwipesInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "swipes_in_flight",
			Help: "Number of swipe mutations dispatched but not yet confirmed",
		},
	)

	RemoteMutationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "remote_mutation_duration_seconds",
			Help: "Duration of remote store mutations dispatched by swipes",
		},
		[]string{"op"},
	)
)
