package constraint

import (
	"errors"
	"fmt"

	"github.com/cuemby/reconf/pkg/csp"
	"github.com/cuemby/reconf/pkg/reconf"
	"github.com/cuemby/reconf/pkg/types"
)

var (
	_ reconf.Constraint = (*Online)(nil)
	_ reconf.Constraint = (*Offline)(nil)
	_ reconf.Constraint = (*Fence)(nil)
	_ reconf.Constraint = (*Ban)(nil)
	_ reconf.Constraint = (*Root)(nil)
	_ reconf.Constraint = (*Preserve)(nil)
)

// Online requires nodes to end online
type Online struct {
	Nodes []types.NodeID
}

func (c *Online) Inject(p *reconf.Problem) error {
	return setNodeStates(p, c.Nodes, 1)
}

// MisplacedVMs returns nothing: a node state does not depend on its VMs
func (c *Online) MisplacedVMs(*types.Model) []types.VMID { return nil }

func (c *Online) String() string { return fmt.Sprintf("online(nodes=%v)", c.Nodes) }

// Offline requires nodes to end offline. Their running VMs must leave
// and they cannot keep sleeping VMs.
type Offline struct {
	Nodes []types.NodeID
}

func (c *Offline) Inject(p *reconf.Problem) error {
	return setNodeStates(p, c.Nodes, 0)
}

func (c *Offline) MisplacedVMs(m *types.Model) []types.VMID {
	var out []types.VMID
	for _, n := range c.Nodes {
		out = append(out, m.Mapping.RunningVMs(n)...)
	}
	return out
}

func (c *Offline) String() string { return fmt.Sprintf("offline(nodes=%v)", c.Nodes) }

func setNodeStates(p *reconf.Problem, nodes []types.NodeID, state int) error {
	for _, n := range nodes {
		v, err := p.NodeState(n)
		if err != nil {
			return err
		}
		if err := p.Store().Instantiate(v, state); err != nil {
			return fmt.Errorf("node %s: %w", n, err)
		}
	}
	return nil
}

// Fence restricts the nodes the VMs may run on at the end of the
// reconfiguration
type Fence struct {
	VMs   []types.VMID
	Nodes []types.NodeID
}

func (c *Fence) Inject(p *reconf.Problem) error {
	allowed, err := nodeIndexes(p, c.Nodes)
	if err != nil {
		return err
	}
	return restrictHosters(p, c.VMs, func(k int) bool {
		_, ok := allowed[k]
		return !ok
	})
}

func (c *Fence) MisplacedVMs(m *types.Model) []types.VMID {
	allowed := make(map[types.NodeID]struct{}, len(c.Nodes))
	for _, n := range c.Nodes {
		allowed[n] = struct{}{}
	}
	var out []types.VMID
	for _, vm := range c.VMs {
		if m.Mapping.VMState(vm) != types.VMStateRunning {
			continue
		}
		n, _ := m.Mapping.VMLocation(vm)
		if _, ok := allowed[n]; !ok {
			out = append(out, vm)
		}
	}
	return out
}

func (c *Fence) String() string { return fmt.Sprintf("fence(vms=%v, nodes=%v)", c.VMs, c.Nodes) }

// Ban prevents the VMs from running on some nodes at the end of the
// reconfiguration
type Ban struct {
	VMs   []types.VMID
	Nodes []types.NodeID
}

func (c *Ban) Inject(p *reconf.Problem) error {
	banned, err := nodeIndexes(p, c.Nodes)
	if err != nil {
		return err
	}
	return restrictHosters(p, c.VMs, func(k int) bool {
		_, ok := banned[k]
		return ok
	})
}

func (c *Ban) MisplacedVMs(m *types.Model) []types.VMID {
	banned := make(map[types.NodeID]struct{}, len(c.Nodes))
	for _, n := range c.Nodes {
		banned[n] = struct{}{}
	}
	var out []types.VMID
	for _, vm := range c.VMs {
		if m.Mapping.VMState(vm) != types.VMStateRunning {
			continue
		}
		n, _ := m.Mapping.VMLocation(vm)
		if _, ok := banned[n]; ok {
			out = append(out, vm)
		}
	}
	return out
}

func (c *Ban) String() string { return fmt.Sprintf("ban(vms=%v, nodes=%v)", c.VMs, c.Nodes) }

// nodeIndexes resolves node identities to problem indexes
func nodeIndexes(p *reconf.Problem, nodes []types.NodeID) (map[int]struct{}, error) {
	out := make(map[int]struct{}, len(nodes))
	for _, n := range nodes {
		k, err := p.Index().NodeIndex(n)
		if err != nil {
			return nil, err
		}
		out[k] = struct{}{}
	}
	return out, nil
}

// restrictHosters removes the nodes matching drop from the demanding slice
// hoster of every VM ending running
func restrictHosters(p *reconf.Problem, vms []types.VMID, drop func(k int) bool) error {
	st := p.Store()
	for _, vm := range vms {
		m, err := p.VMModel(vm)
		if err != nil {
			return err
		}
		s := m.DSlice()
		if s == nil {
			continue
		}
		for _, k := range st.Values(s.Hoster) {
			if !drop(k) {
				continue
			}
			if err := st.Remove(s.Hoster, k); err != nil {
				return fmt.Errorf("vm %s: %w", vm, err)
			}
		}
	}
	return nil
}

// Root keeps running VMs on their current node
type Root struct {
	VMs []types.VMID
}

func (c *Root) Inject(p *reconf.Problem) error {
	st := p.Store()
	for _, vm := range c.VMs {
		m, err := p.VMModel(vm)
		if err != nil {
			return err
		}
		cs, ds := m.CSlice(), m.DSlice()
		if cs == nil || ds == nil || m.Kind() != reconf.KindRelocatable {
			continue
		}
		if err := st.Instantiate(ds.Hoster, st.Value(cs.Hoster)); err != nil {
			return fmt.Errorf("vm %s: %w", vm, err)
		}
	}
	return nil
}

// MisplacedVMs returns nothing: a VM is never misplaced on its own node
func (c *Root) MisplacedVMs(*types.Model) []types.VMID { return nil }

func (c *Root) String() string { return fmt.Sprintf("root(vms=%v)", c.VMs) }

// Preserve guarantees an amount of a resource to the VMs ending running
type Preserve struct {
	VMs      []types.VMID
	Resource string
	Amount   int
}

func (c *Preserve) Inject(p *reconf.Problem) error {
	v, err := p.View(c.Resource)
	if err != nil {
		return err
	}
	for _, vm := range c.VMs {
		m, err := p.VMModel(vm)
		if err != nil {
			return err
		}
		if m.DSlice() == nil {
			continue
		}
		if err := v.Require(vm, c.Amount); err != nil {
			logger := p.Logger()
			logger.Error().Err(err).
				Str("vm", string(vm)).
				Str("resource", c.Resource).
				Int("amount", c.Amount).
				Msg("Unable to preserve resource")
			return err
		}
	}
	return nil
}

// MisplacedVMs returns the VMs sharing a node with a VM that gets less
// than the preserved amount. Every VM is misplaced when the model has no
// such resource.
func (c *Preserve) MisplacedVMs(m *types.Model) []types.VMID {
	rc, ok := m.View(c.Resource)
	if !ok {
		return append([]types.VMID(nil), c.VMs...)
	}
	seen := make(map[types.VMID]struct{})
	var out []types.VMID
	for _, vm := range c.VMs {
		if rc.Consumption(vm) >= c.Amount {
			continue
		}
		n, ok := m.Mapping.VMLocation(vm)
		if !ok {
			continue
		}
		for _, other := range m.Mapping.RunningVMs(n) {
			if _, dup := seen[other]; !dup {
				seen[other] = struct{}{}
				out = append(out, other)
			}
		}
	}
	return out
}

func (c *Preserve) String() string {
	return fmt.Sprintf("preserve(vms=%v, rc=%s, amount=%d)", c.VMs, c.Resource, c.Amount)
}

// IsUnsatisfiable reports whether an injection error means the constraints
// cannot be met, as opposed to a malformed constraint
func IsUnsatisfiable(err error) bool {
	return errors.Is(err, csp.ErrContradiction)
}
