package types

import (
	"fmt"
	"sort"
)

// VMID identifies a virtual machine
type VMID string

// NodeID identifies a physical node
type NodeID string

// VMState represents the state of a VM in a mapping
type VMState string

const (
	// VMStateReady is a VM waiting to be placed, with no host
	VMStateReady      VMState = "ready"
	VMStateRunning    VMState = "running"
	VMStateSleeping   VMState = "sleeping"
	VMStateTerminated VMState = "terminated"
)

// NodeState represents the power state of a node
type NodeState string

const (
	NodeStateOnline  NodeState = "online"
	NodeStateOffline NodeState = "offline"
	NodeStateUnknown NodeState = "unknown"
)

// Mapping is the placement of VMs on nodes and the state of every entity.
// Ready VMs have no host; running and sleeping VMs are hosted on an
// online node.
type Mapping struct {
	nodes map[NodeID]NodeState
	vms   map[VMID]VMState
	hosts map[VMID]NodeID
}

// NewMapping creates an empty mapping
func NewMapping() *Mapping {
	return &Mapping{
		nodes: make(map[NodeID]NodeState),
		vms:   make(map[VMID]VMState),
		hosts: make(map[VMID]NodeID),
	}
}

// AddOnlineNode declares an online node
func (m *Mapping) AddOnlineNode(n NodeID) {
	m.nodes[n] = NodeStateOnline
}

// AddOfflineNode declares an offline node. It fails if the node hosts VMs.
func (m *Mapping) AddOfflineNode(n NodeID) error {
	for vm, h := range m.hosts {
		if h == n {
			return fmt.Errorf("node %s hosts %s: cannot be offline", n, vm)
		}
	}
	m.nodes[n] = NodeStateOffline
	return nil
}

// AddReadyVM declares a VM waiting to be placed
func (m *Mapping) AddReadyVM(vm VMID) {
	delete(m.hosts, vm)
	m.vms[vm] = VMStateReady
}

// AddRunningVM places a running VM on an online node
func (m *Mapping) AddRunningVM(vm VMID, n NodeID) error {
	return m.place(vm, n, VMStateRunning)
}

// AddSleepingVM places a sleeping VM on an online node
func (m *Mapping) AddSleepingVM(vm VMID, n NodeID) error {
	return m.place(vm, n, VMStateSleeping)
}

func (m *Mapping) place(vm VMID, n NodeID, st VMState) error {
	if m.nodes[n] != NodeStateOnline {
		return fmt.Errorf("cannot place %s on %s: node is not online", vm, n)
	}
	m.vms[vm] = st
	m.hosts[vm] = n
	return nil
}

// RemoveVM removes a VM from the mapping
func (m *Mapping) RemoveVM(vm VMID) bool {
	if _, ok := m.vms[vm]; !ok {
		return false
	}
	delete(m.vms, vm)
	delete(m.hosts, vm)
	return true
}

// SetNodeState changes the power state of a node. Hosted VMs prevent a
// node from going offline.
func (m *Mapping) SetNodeState(n NodeID, st NodeState) error {
	if st == NodeStateOffline {
		return m.AddOfflineNode(n)
	}
	m.nodes[n] = st
	return nil
}

// VMState returns the state of a VM, or VMStateTerminated if it is unknown
func (m *Mapping) VMState(vm VMID) VMState {
	if st, ok := m.vms[vm]; ok {
		return st
	}
	return VMStateTerminated
}

// NodeState returns the state of a node, or NodeStateUnknown
func (m *Mapping) NodeState(n NodeID) NodeState {
	if st, ok := m.nodes[n]; ok {
		return st
	}
	return NodeStateUnknown
}

// VMLocation returns the node hosting a VM
func (m *Mapping) VMLocation(vm VMID) (NodeID, bool) {
	n, ok := m.hosts[vm]
	return n, ok
}

// HasVM reports whether the VM is part of the mapping
func (m *Mapping) HasVM(vm VMID) bool {
	_, ok := m.vms[vm]
	return ok
}

// HasNode reports whether the node is part of the mapping
func (m *Mapping) HasNode(n NodeID) bool {
	_, ok := m.nodes[n]
	return ok
}

// AllVMs returns every VM of the mapping, sorted
func (m *Mapping) AllVMs() []VMID {
	out := make([]VMID, 0, len(m.vms))
	for vm := range m.vms {
		out = append(out, vm)
	}
	sortVMs(out)
	return out
}

// AllNodes returns every node of the mapping, sorted
func (m *Mapping) AllNodes() []NodeID {
	out := make([]NodeID, 0, len(m.nodes))
	for n := range m.nodes {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// VMsIn returns the sorted VMs in the given state
func (m *Mapping) VMsIn(st VMState) []VMID {
	var out []VMID
	for vm, s := range m.vms {
		if s == st {
			out = append(out, vm)
		}
	}
	sortVMs(out)
	return out
}

// NodesIn returns the sorted nodes in the given state
func (m *Mapping) NodesIn(st NodeState) []NodeID {
	var out []NodeID
	for n, s := range m.nodes {
		if s == st {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// RunningVMs returns the sorted running VMs hosted on a node
func (m *Mapping) RunningVMs(n NodeID) []VMID {
	return m.hosted(n, VMStateRunning)
}

// SleepingVMs returns the sorted sleeping VMs hosted on a node
func (m *Mapping) SleepingVMs(n NodeID) []VMID {
	return m.hosted(n, VMStateSleeping)
}

func (m *Mapping) hosted(n NodeID, st VMState) []VMID {
	var out []VMID
	for vm, h := range m.hosts {
		if h == n && m.vms[vm] == st {
			out = append(out, vm)
		}
	}
	sortVMs(out)
	return out
}

// Clone returns a deep copy of the mapping
func (m *Mapping) Clone() *Mapping {
	c := NewMapping()
	for n, st := range m.nodes {
		c.nodes[n] = st
	}
	for vm, st := range m.vms {
		c.vms[vm] = st
	}
	for vm, n := range m.hosts {
		c.hosts[vm] = n
	}
	return c
}

func sortVMs(vms []VMID) {
	sort.Slice(vms, func(i, j int) bool { return vms[i] < vms[j] })
}

// ShareableResource is one resource dimension: a capacity per node and a
// consumption per VM. Entities without an explicit amount get the default.
type ShareableResource struct {
	ID      string
	Default int
	vms     map[VMID]int
	nodes   map[NodeID]int
}

// NewShareableResource creates a resource view with a default amount
func NewShareableResource(id string, def int) *ShareableResource {
	return &ShareableResource{
		ID:      id,
		Default: def,
		vms:     make(map[VMID]int),
		nodes:   make(map[NodeID]int),
	}
}

// SetCapacity sets the capacity of a node
func (r *ShareableResource) SetCapacity(n NodeID, amount int) *ShareableResource {
	r.nodes[n] = amount
	return r
}

// SetConsumption sets the consumption of a VM
func (r *ShareableResource) SetConsumption(vm VMID, amount int) *ShareableResource {
	r.vms[vm] = amount
	return r
}

// Capacity returns the capacity of a node
func (r *ShareableResource) Capacity(n NodeID) int {
	if v, ok := r.nodes[n]; ok {
		return v
	}
	return r.Default
}

// Consumption returns the consumption of a VM
func (r *ShareableResource) Consumption(vm VMID) int {
	if v, ok := r.vms[vm]; ok {
		return v
	}
	return r.Default
}

// Clone returns a deep copy of the view
func (r *ShareableResource) Clone() *ShareableResource {
	c := NewShareableResource(r.ID, r.Default)
	for vm, v := range r.vms {
		c.vms[vm] = v
	}
	for n, v := range r.nodes {
		c.nodes[n] = v
	}
	return c
}

// Model is a cluster state: a mapping plus the resource views attached to it
type Model struct {
	Mapping *Mapping
	views   map[string]*ShareableResource
}

// NewModel creates a model with an empty mapping
func NewModel() *Model {
	return &Model{Mapping: NewMapping(), views: make(map[string]*ShareableResource)}
}

// Attach registers a resource view, replacing any view with the same ID
func (m *Model) Attach(r *ShareableResource) {
	m.views[r.ID] = r
}

// View returns the resource view with the given ID
func (m *Model) View(id string) (*ShareableResource, bool) {
	r, ok := m.views[id]
	return r, ok
}

// Views returns every resource view, sorted by ID
func (m *Model) Views() []*ShareableResource {
	out := make([]*ShareableResource, 0, len(m.views))
	for _, r := range m.views {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Clone returns a deep copy of the model
func (m *Model) Clone() *Model {
	c := &Model{Mapping: m.Mapping.Clone(), views: make(map[string]*ShareableResource, len(m.views))}
	for id, r := range m.views {
		c.views[id] = r.Clone()
	}
	return c
}
