package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RectifyRuns counts rectify runs by result (ok, failed, presigned)
	RectifyRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "zonekeeper_rectify_runs_total",
		Help: "Total number of zone rectify runs",
	}, []string{"result"})

	// RectifyDuration tracks time spent rectifying one zone
	RectifyDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "zonekeeper_rectify_duration_seconds",
		Help:    "Histogram of zone rectify duration",
		Buckets: prometheus.DefBuckets,
	}, []string{"posture"})

	// OrderingWrites counts ordername/auth update calls issued to the backend
	OrderingWrites = promauto.NewCounter(prometheus.CounterOpts{
		Name: "zonekeeper_ordering_writes_total",
		Help: "Total number of ordername/auth updates issued",
	})

	// ENTChanges counts empty non-terminal markers inserted or deleted
	ENTChanges = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "zonekeeper_ent_changes_total",
		Help: "Total number of empty non-terminal markers inserted or deleted",
	}, []string{"op"})

	// ENTBudgetExhausted counts runs that dropped ENT tracking
	ENTBudgetExhausted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "zonekeeper_ent_budget_exhausted_total",
		Help: "Number of rectify runs that exceeded the empty non-terminal budget",
	})

	// CheckFindings counts integrity findings by severity
	CheckFindings = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "zonekeeper_check_findings_total",
		Help: "Total number of integrity check findings",
	}, []string{"severity"})

	// ZonesChecked counts checked zones by result (passed, failed)
	ZonesChecked = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "zonekeeper_zones_checked_total",
		Help: "Total number of zones checked",
	}, []string{"result"})

	// ActiveWorkers tracks zones being processed by a batch run
	ActiveWorkers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "zonekeeper_active_workers",
		Help: "Number of zones currently being processed by batch workers",
	})
)
