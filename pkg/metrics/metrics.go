package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Problem metrics
	ProblemsBuilt = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "reconf_problems_built_total",
			Help: "Total number of reconfiguration problems built",
		},
	)

	BuildErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconf_build_errors_total",
			Help: "Total number of problems that could not be built, by reason",
		},
		[]string{"reason"},
	)

	// Search metrics
	PropagationFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "reconf_propagation_failures_total",
			Help: "Total number of propagation failures met during search",
		},
	)

	SearchNodes = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "reconf_search_nodes_total",
			Help: "Total number of search decisions",
		},
	)

	SolveDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "reconf_solve_duration_seconds",
			Help:    "Time taken to solve a reconfiguration problem in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Plan metrics
	PlansTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconf_plans_total",
			Help: "Total number of planning requests by result",
		},
		[]string{"result"},
	)

	PlanActions = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "reconf_plan_actions",
			Help:    "Number of actions per extracted plan",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		},
	)
)

// Plan results
const (
	ResultFeasible   = "feasible"
	ResultInfeasible = "infeasible"
	ResultError      = "error"
)

func init() {
	// Register all metrics
	prometheus.MustRegister(ProblemsBuilt)
	prometheus.MustRegister(BuildErrors)
	prometheus.MustRegister(PropagationFailures)
	prometheus.MustRegister(SearchNodes)
	prometheus.MustRegister(SolveDuration)
	prometheus.MustRegister(PlansTotal)
	prometheus.MustRegister(PlanActions)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
