// Package metrics defines the Prometheus collectors shared by the trackersync
// services. Collectors register with the default registry on import.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "trackersync"

// DispatchTotal counts settled dispatch attempts.
// Labels:
//   - tracker: tracker name (e.g. "crm")
//   - outcome: "delivered", "suppressed" or "failed"
var DispatchTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "dispatch_total",
		Help:      "Total number of tracker dispatch attempts, by outcome.",
	},
	[]string{"tracker", "outcome"},
)

// DispatchDuration measures a dispatch from user resolution to settlement.
var DispatchDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "dispatch_duration_seconds",
		Help:      "Duration of tracker dispatch attempts.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"tracker"},
)

// EventsPublishedTotal counts events accepted by the API.
// Label status is "ok" or "error".
var EventsPublishedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_published_total",
		Help:      "Total number of track events published to the bus.",
	},
	[]string{"status"},
)

// WebhookRequestsTotal counts outbound webhook requests.
// Label status is "success", "rejected" (non-2xx) or "error" (transport).
var WebhookRequestsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "webhook_requests_total",
		Help:      "Total number of webhook tracker requests, by result.",
	},
	[]string{"status"},
)
