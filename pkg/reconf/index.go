package reconf

import (
	"fmt"

	"github.com/cuemby/reconf/pkg/types"
)

// Index maps VMs and nodes to dense integers, and back.
// It never changes once the problem is built.
type Index struct {
	vms     []types.VMID
	nodes   []types.NodeID
	vmIdx   map[types.VMID]int
	nodeIdx map[types.NodeID]int
}

func newIndex(vms []types.VMID, nodes []types.NodeID) *Index {
	ix := &Index{
		vms:     vms,
		nodes:   nodes,
		vmIdx:   make(map[types.VMID]int, len(vms)),
		nodeIdx: make(map[types.NodeID]int, len(nodes)),
	}
	for i, vm := range vms {
		ix.vmIdx[vm] = i
	}
	for i, n := range nodes {
		ix.nodeIdx[n] = i
	}
	return ix
}

// NumVMs returns the number of indexed VMs
func (ix *Index) NumVMs() int { return len(ix.vms) }

// NumNodes returns the number of indexed nodes
func (ix *Index) NumNodes() int { return len(ix.nodes) }

// VM returns the VM at index i
func (ix *Index) VM(i int) types.VMID { return ix.vms[i] }

// Node returns the node at index i
func (ix *Index) Node(i int) types.NodeID { return ix.nodes[i] }

// VMIndex returns the index of a VM
func (ix *Index) VMIndex(vm types.VMID) (int, error) {
	i, ok := ix.vmIdx[vm]
	if !ok {
		return -1, fmt.Errorf("%s: %w", vm, ErrUnknownVM)
	}
	return i, nil
}

// NodeIndex returns the index of a node
func (ix *Index) NodeIndex(n types.NodeID) (int, error) {
	i, ok := ix.nodeIdx[n]
	if !ok {
		return -1, fmt.Errorf("%s: %w", n, ErrUnknownNode)
	}
	return i, nil
}

// VMs returns the indexed VMs, in index order
func (ix *Index) VMs() []types.VMID {
	return append([]types.VMID(nil), ix.vms...)
}

// Nodes returns the indexed nodes, in index order
func (ix *Index) Nodes() []types.NodeID {
	return append([]types.NodeID(nil), ix.nodes...)
}
