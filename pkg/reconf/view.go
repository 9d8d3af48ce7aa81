package reconf

import (
	"fmt"

	"github.com/cuemby/reconf/pkg/types"
)

// ResourceView is one resource dimension of the problem. It reads the
// capacities and consumptions from the source model and records the
// amount each VM demands once the reconfiguration is over.
type ResourceView struct {
	p      *Problem
	rc     *types.ShareableResource
	demand map[types.VMID]int
}

func newResourceView(p *Problem, rc *types.ShareableResource) *ResourceView {
	return &ResourceView{p: p, rc: rc, demand: make(map[types.VMID]int)}
}

// ID returns the identifier of the underlying resource
func (v *ResourceView) ID() string { return v.rc.ID }

// Resource returns the source resource view
func (v *ResourceView) Resource() *types.ShareableResource { return v.rc }

// Capacity returns the capacity of a node
func (v *ResourceView) Capacity(n types.NodeID) int { return v.rc.Capacity(n) }

// Consumption returns the source consumption of a VM
func (v *ResourceView) Consumption(vm types.VMID) int { return v.rc.Consumption(vm) }

// Demand returns the amount a VM needs at the end of the
// reconfiguration. It defaults to its consumption.
func (v *ResourceView) Demand(vm types.VMID) int {
	if d, ok := v.demand[vm]; ok {
		return d
	}
	return v.rc.Consumption(vm)
}

// Require raises the demand of a VM to at least amount
func (v *ResourceView) Require(vm types.VMID, amount int) error {
	if v.p.sealed {
		return fmt.Errorf("require %d %s for %s: %w", amount, v.rc.ID, vm, ErrSealed)
	}
	if _, err := v.p.index.VMIndex(vm); err != nil {
		return err
	}
	if amount > v.Demand(vm) {
		v.demand[vm] = amount
	}
	return nil
}

// Resized lists the VMs whose demand differs from their consumption
func (v *ResourceView) Resized() []types.VMID {
	var out []types.VMID
	for _, vm := range v.p.index.vms {
		if v.Demand(vm) != v.Consumption(vm) {
			out = append(out, vm)
		}
	}
	return out
}
