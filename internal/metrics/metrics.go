// Package metrics holds the process-wide prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	Transitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "banshare_transitions_total",
		Help: "Committed banshare workflow operations by action",
	}, []string{"action"})

	Conflicts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "banshare_conflicts_total",
		Help: "Guarded writes that lost against the current banshare state",
	}, []string{"action"})

	Compensations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "banshare_compensations_total",
		Help: "Compensating writes after a failed gateway call by outcome",
	}, []string{"action", "result"})

	GatewayRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "banshare_gateway_requests_total",
		Help: "Requests to the enforcement bot by method and status class",
	}, []string{"method", "status"})

	Reminders = promauto.NewCounter(prometheus.CounterOpts{
		Name: "banshare_reminders_total",
		Help: "Reminder sweeps that found overdue banshares",
	})
)
