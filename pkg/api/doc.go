/*
Package api serves reconfiguration plans over HTTP.

	POST /v1/plan   scenario document in, JSON plan out
	GET  /health    component health
	GET  /ready     readiness
	GET  /live      liveness
	GET  /metrics   Prometheus metrics

A plan request carries a whole scenario (see package scenario). An
infeasible request is answered with 200 and "feasible": false; a scenario
that cannot be decoded gets a 400, and one whose transitions or durations
are invalid gets a 422.
*/
package api
