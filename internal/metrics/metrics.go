// Package metrics registers the portal's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var WebhookEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "billing_portal",
	Subsystem: "webhook",
	Name:      "events_total",
	Help:      "Number of webhook events received, by event type and outcome",
}, []string{"type", "outcome"})

var PaymentsSettledTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "billing_portal",
	Subsystem: "billing",
	Name:      "payments_settled_total",
	Help:      "Number of payments settled by webhook reconciliation, by final status",
}, []string{"status"})
