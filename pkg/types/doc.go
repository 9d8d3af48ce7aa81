/*
Package types defines the cluster state the reconfiguration planner works on.

A Model is a Mapping plus a set of resource views:

	┌──────────────────────── Model ────────────────────────┐
	│  Mapping                                               │
	│    nodes: online | offline                             │
	│    VMs:   ready | running(node) | sleeping(node)       │
	│                                                        │
	│  ShareableResource "cpu"   node → capacity             │
	│  ShareableResource "mem"   VM   → consumption          │
	└────────────────────────────────────────────────────────┘

Only running VMs consume resources on their host. Sleeping VMs are
attached to a node but use none of its capacity. Ready VMs are known
to the cluster and have no host.

Every getter returning a set of entities returns it sorted, so that
anything indexing entities from a Model gets the same order on every run.
*/
package types
