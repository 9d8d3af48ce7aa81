package plan

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/cuemby/reconf/pkg/types"
)

// ErrCapacityExceeded is returned when a node is overloaded at some moment
// of a plan
var ErrCapacityExceeded = errors.New("capacity exceeded")

type arrival struct {
	node types.NodeID
	at   int
}

type occupancy struct {
	vm       types.VMID
	node     types.NodeID
	from, to int
	amount   int
}

// VerifyCapacity replays the resource usage of every node over the plan
// and checks it never exceeds the node capacity, for every resource view of
// the source model. A VM consumes on its source node until its leaving
// action ends, and on its destination node from its arriving action start.
// A resized VM switches to its new amount at the resize moment.
func VerifyCapacity(p *Plan) error {
	if p.Source == nil {
		return fmt.Errorf("plan %s has no source model", p.ID)
	}
	src := p.Source.Mapping

	leave := make(map[types.VMID]int)
	arrive := make(map[types.VMID]arrival)
	allocs := make(map[types.VMID]map[string]int)
	for _, a := range p.actions {
		switch a := a.(type) {
		case *MigrateVM:
			leave[a.VM] = a.EndAt
			arrive[a.VM] = arrival{a.Destination, a.StartAt}
		case *SuspendVM:
			leave[a.VM] = a.EndAt
		case *ShutdownVM:
			leave[a.VM] = a.EndAt
		case *BootVM:
			arrive[a.VM] = arrival{a.Node, a.StartAt}
		case *ResumeVM:
			arrive[a.VM] = arrival{a.Destination, a.StartAt}
		case *Allocate:
			if allocs[a.VM] == nil {
				allocs[a.VM] = make(map[string]int)
			}
			allocs[a.VM][a.ResourceID] = a.Amount
		}
	}

	for _, rc := range p.Source.Views() {
		var occ []occupancy
		for _, vm := range src.VMsIn(types.VMStateRunning) {
			host, _ := src.VMLocation(vm)
			to, ok := leave[vm]
			if !ok {
				to = math.MaxInt
			}
			occ = append(occ, occupancy{vm: vm, node: host, from: 0, to: to, amount: rc.Consumption(vm)})
		}
		for vm, in := range arrive {
			amount := rc.Consumption(vm)
			if x, ok := allocs[vm][rc.ID]; ok {
				amount = x
			}
			occ = append(occ, occupancy{vm: vm, node: in.node, from: in.at, to: math.MaxInt, amount: amount})
		}
		for _, r := range p.Resized {
			if r.ResourceID != rc.ID {
				continue
			}
			occ = resize(occ, r)
		}
		if err := checkOccupancy(rc, occ); err != nil {
			return err
		}
	}
	return nil
}

// resize splits the occupancy of a VM on its node at the resize moment
func resize(occ []occupancy, r Resize) []occupancy {
	for i, o := range occ {
		if o.vm != r.VM || o.node != r.Node || o.to != math.MaxInt {
			continue
		}
		from := max(o.from, r.At)
		occ[i].to = from
		return append(occ, occupancy{vm: r.VM, node: r.Node, from: from, to: math.MaxInt, amount: r.Amount})
	}
	return occ
}

func checkOccupancy(rc *types.ShareableResource, occ []occupancy) error {
	byNode := make(map[types.NodeID][]occupancy)
	for _, o := range occ {
		byNode[o.node] = append(byNode[o.node], o)
	}
	nodes := make([]types.NodeID, 0, len(byNode))
	for n := range byNode {
		nodes = append(nodes, n)
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i] < nodes[j] })

	for _, n := range nodes {
		list := byNode[n]
		capacity := rc.Capacity(n)
		for _, cur := range list {
			t := cur.from
			used := 0
			for _, o := range list {
				if o.from <= t && t < o.to {
					used += o.amount
				}
			}
			if used > capacity {
				return fmt.Errorf("node %s, resource %s at t=%d: usage %d over capacity %d: %w",
					n, rc.ID, t, used, capacity, ErrCapacityExceeded)
			}
		}
	}
	return nil
}
