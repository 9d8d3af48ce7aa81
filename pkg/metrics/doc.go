/*
Package metrics provides Prometheus metrics and health endpoints for reconf.

Metrics are registered on the default Prometheus registry at package init
and exposed through Handler. The planner updates them for every request.

# Architecture

	┌──────────────────── METRICS SYSTEM ─────────────────────┐
	│                                                           │
	│  ┌──────────────────────────────────────────┐            │
	│  │          Prometheus Registry              │            │
	│  │  - DefaultRegistry, MustRegister at init  │            │
	│  └──────────────────┬───────────────────────┘            │
	│                     │                                     │
	│  ┌──────────────────▼───────────────────────┐            │
	│  │           Metric Categories               │            │
	│  │  Problems: built, build errors by reason  │            │
	│  │  Search: decisions, propagation failures, │            │
	│  │          solve duration                   │            │
	│  │  Plans: results, actions per plan         │            │
	│  └──────────────────┬───────────────────────┘            │
	│                     │                                     │
	│  ┌──────────────────▼───────────────────────┐            │
	│  │          HTTP Endpoints (reconf serve)    │            │
	│  │  /metrics  Prometheus text exposition     │            │
	│  │  /health   Checker.HealthHandler          │            │
	│  │  /ready    Checker.ReadyHandler           │            │
	│  │  /live     Checker.LivenessHandler        │            │
	│  └──────────────────────────────────────────┘            │
	└───────────────────────────────────────────────────────────┘

# Metrics

	reconf_problems_built_total          counter
	reconf_build_errors_total{reason}    counter
	reconf_propagation_failures_total    counter
	reconf_search_nodes_total            counter
	reconf_solve_duration_seconds        histogram
	reconf_plans_total{result}           counter (feasible, infeasible, error)
	reconf_plan_actions                  histogram

# Usage

	timer := metrics.NewTimer()
	pl, err := p.Solve(ctx, opts)
	timer.ObserveDuration(metrics.SolveDuration)

Useful queries:

	# Share of infeasible requests over the last hour
	sum(rate(reconf_plans_total{result="infeasible"}[1h]))
	  / sum(rate(reconf_plans_total[1h]))

	# 95th percentile solve time
	histogram_quantile(0.95, rate(reconf_solve_duration_seconds_bucket[5m]))
*/
package metrics
