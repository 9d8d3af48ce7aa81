/*
Package reconf models a cluster reconfiguration as a constraint problem.

Build indexes the VMs and nodes of a source model, then creates one action
model per entity. The model is picked from the current and requested
states of the entity:

	current      requested    model
	───────────  ───────────  ──────────────────────────────
	ready        running      BootVMModel          d-slice
	sleeping     running      ResumeVMModel        c-slice, d-slice
	running      running      RelocatableVMModel   c-slice, d-slice
	running      sleeping     SuspendVMModel       c-slice
	running      destroyed    ShutdownVMModel      c-slice
	(absent)     ready        InstantiateVMModel
	ready        ready        StayAwayVMModel
	sleeping     sleeping     StayAwayVMModel
	offline      -            BootableNodeModel
	online       -            ShutdownableNodeModel

Every action lies in the horizon [Start, End]. Slices place the VMs on the
nodes over time:

	node n1  ├────── c-slice vm1 ──────┤
	node n2              ├────────── d-slice vm1 ──────────┤
	         0           dStart     cEnd                 End
	                     └── migrate ──┘

During a migration the slices overlap: the VM still consumes on its source
node until cEnd and already consumes on its destination from dStart.

Constraints narrow the problem variables through Inject. Seal then posts
the propagators that depend on the resource demands: the task scheduler
keeping every node under its capacity, and the links between the node
states and the VM placements. Solve runs a depth-first search and
ExtractPlan reads the timed actions back from the solution.

A problem is built, solved and discarded by a single goroutine.
*/
package reconf
