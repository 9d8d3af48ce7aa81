/*
Package scheduler keeps node resource usage under capacity while VMs move.

A reconfiguration describes every VM by up to two slices. A consuming slice
is the VM occupying its current node from time 0 until it leaves. A
demanding slice is the VM occupying its future node from the moment it
arrives until the end of the reconfiguration. Slice hosters, end moments
and start moments are all unknown while the problem is solved, so the
scheduler cannot check a fixed schedule: it reasons on the bounds of the
variables instead.

# Architecture

TaskScheduler is one csp.Propagator covering every node. On each call it
filters the hosters of the demanding slices against the node capacities,
then runs a local scheduler per node over the slices bound to that node:

	┌────────────────────────── TaskScheduler ──────────────────────────┐
	│  remove nodes too small for a demanding slice                     │
	│  group slices by bound hoster                                     │
	└───────────────┬───────────────────────┬───────────────────────────┘
	                ▼                       ▼
	        local scheduler n1      local scheduler n2   ...
	        ┌──────────────────────────────────────────┐
	        │ 1. critical moments: 0, cEnd lb/ub,      │
	        │    dStart lb/ub                          │
	        │ 2. min and max usage profiles            │
	        │ 3. invariant: min <= capacity, slices    │
	        │    inside the node hosting window        │
	        │ 4. tighten cEnd ub, dStart lb, dStart ub │
	        └──────────────────────────────────────────┘

# Profiles

Usage can only change at a critical moment, so a profile is a step function
over the sorted critical moments. The min profile is the usage the node
carries whatever the remaining choices: leaving slices are removed as early
as they may end, arriving slices are added as late as they may start. The
max profile is the worst case, with the opposite choices.

A VM that stays on its node but demands more than it consumes keeps its
consumption in the min profile until its consuming slice surely ended.

	usage
	  3 ┤      ┌─────┐                 max
	  2 ┤──────┘     └──────┐    ┌──── min
	  1 ┤                   └────┘
	    └──────┬─────┬──────┬────┬────▶ t
	           2     4      6    8

# Pruning

  - A leaving slice must end before the first moment the min profile plus
    its own usage exceeds the capacity.
  - An arriving slice cannot start before the last moment the min profile
    plus its own usage exceeds the capacity.
  - An arriving slice does not need to start after the earliest moment from
    which the max profile fits the node until the end.

Any violation is reported as a csp contradiction and the search backtracks.
Failures are logged at debug level.
*/
package scheduler
