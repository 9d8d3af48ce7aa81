// Package planner turns a cluster model and a requested set of VM states
// into a reconfiguration plan.
//
// A Planner builds one reconfiguration problem per call, injects the
// placement constraints, searches for a solution within the configured
// budget and checks the resulting plan against the node capacities. Every
// step is recorded in the metrics package.
package planner
