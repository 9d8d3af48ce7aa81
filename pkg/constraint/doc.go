/*
Package constraint provides placement constraints for reconf problems.

Each constraint narrows the variables of a reconf.Problem when injected,
and reports the VMs of a model that violate it:

	Online    nodes end online
	Offline   nodes end offline, their VMs leave
	Fence     VMs end on a subset of the nodes
	Ban       VMs avoid a subset of the nodes
	Root      running VMs stay where they are
	Preserve  VMs get at least an amount of a resource

Constraints are injected before the problem is solved. An injection error
matching IsUnsatisfiable means the constraints cannot be met; any other
error comes from a malformed constraint, such as an unknown VM, node or
resource.
*/
package constraint
