package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TransitionsCommitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_transitions_committed_total",
			Help: "Total number of committed status transitions",
		},
		[]string{"action"},
	)

	TransitionsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_transitions_failed_total",
			Help: "Total number of rejected or failed transitions",
		},
		[]string{"action", "error_code"},
	)

	TransitionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "pipeline_transition_duration_seconds",
			Help: "Duration of transition processing in seconds",
		},
		[]string{"action"},
	)

	AssignmentsReserved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_assignments_reserved_total",
			Help: "Total number of interviewer reservations by round",
		},
		[]string{"round"},
	)

	AssignmentsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_assignments_rejected_total",
			Help: "Total number of assignment attempts that found no eligible interviewer",
		},
		[]string{"round"},
	)

	NotificationsEmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_notifications_emitted_total",
			Help: "Total number of lifecycle events pushed to the notification queue",
		},
		[]string{"event_type"},
	)

	NotificationsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pipeline_notifications_dropped_total",
			Help: "Total number of lifecycle events that could not be queued",
		},
	)
)
