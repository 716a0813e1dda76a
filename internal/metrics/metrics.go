package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	InboundMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "condo",
			Subsystem: "assistant",
			Name:      "inbound_messages_total",
			Help:      "Inbound messages by kind",
		},
		[]string{"kind"},
	)

	StateTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "condo",
			Subsystem: "assistant",
			Name:      "state_transitions_total",
			Help:      "Conversation state transitions",
		},
		[]string{"from", "to"},
	)

	OutboundMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "condo",
			Subsystem: "assistant",
			Name:      "outbound_messages_total",
			Help:      "Outbound messages by type and result",
		},
		[]string{"type", "status"},
	)

	MediaUploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "condo",
			Subsystem: "assistant",
			Name:      "media_uploads_total",
			Help:      "Media pipeline runs by content type and result",
		},
		[]string{"content_type", "status"},
	)

	TurnDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "condo",
			Subsystem: "assistant",
			Name:      "turn_duration_seconds",
			Help:      "Time to process one inbound message",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"state"},
	)

	SweptDeletionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "condo",
			Subsystem: "sweeper",
			Name:      "deletions_total",
			Help:      "Scheduled deletions processed by final status",
		},
		[]string{"status"},
	)

	ReclaimedRowsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "condo",
			Subsystem: "sweeper",
			Name:      "reclaimed_rows_total",
			Help:      "Bookkeeping rows deleted after the retention period",
		},
	)
)
