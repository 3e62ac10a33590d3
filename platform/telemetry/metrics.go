// Package telemetry holds the Prometheus collectors shared by the API and the
// automation driver.
package telemetry

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	once sync.Once

	AutomationsScheduled    = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "automations_scheduled_total", Help: "Work items inserted"}, []string{"type"})
	AutomationsDeduplicated = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "automations_deduplicated_total", Help: "Schedule calls answered with an existing item"}, []string{"type"})
	AutomationsDisabled     = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "automations_disabled_total", Help: "Schedule calls skipped because the tenant toggle is off"}, []string{"type"})
	AutomationsClaimed      = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "automations_claimed_total", Help: "Successful pending to processing claims"}, []string{"type"})
	ClaimConflicts          = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "automations_claim_conflicts_total", Help: "Claims lost to another worker"}, []string{"type"})
	AutomationsCompleted    = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "automations_completed_total", Help: "Work items marked completed"}, []string{"type"})
	AutomationsFailed       = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "automations_failed_total", Help: "Work items marked failed"}, []string{"type"})
	AutomationsReaped       = prometheus.NewCounter(prometheus.CounterOpts{Name: "automations_reaped_total", Help: "Stuck processing items failed by the reaper"})
	DispatchLag             = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "automations_dispatch_lag_seconds",
		Help:    "Delay between run_at and the claim",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 900, 3600},
	})
	GenerationDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "automations_generation_seconds",
		Help:    "Content generator latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"type", "outcome"})
	VisitTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "visit_transitions_total", Help: "Applied visit and job status transitions"}, []string{"entity", "to"})
)

// Register adds every collector to the default registry. Safe to call repeatedly.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			AutomationsScheduled,
			AutomationsDeduplicated,
			AutomationsDisabled,
			AutomationsClaimed,
			ClaimConflicts,
			AutomationsCompleted,
			AutomationsFailed,
			AutomationsReaped,
			DispatchLag,
			GenerationDuration,
			VisitTransitions,
		)
	})
}

// Handler exposes the /metrics HTTP handler with a singleton registry.
func Handler() http.Handler {
	Register()
	return promhttp.Handler()
}

// ObserveDispatchLag records how late an item was claimed relative to runAt.
func ObserveDispatchLag(runAt, claimedAt time.Time) {
	if lag := claimedAt.Sub(runAt); lag > 0 {
		DispatchLag.Observe(lag.Seconds())
	}
}
