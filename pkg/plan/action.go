package plan

import (
	"errors"
	"fmt"

	"github.com/cuemby/reconf/pkg/types"
)

// ErrInapplicable is returned when an action does not match the state of
// the model it is applied to
var ErrInapplicable = errors.New("action is not applicable")

// Action is a timed change of the cluster state
type Action interface {
	Start() int
	End() int
	// Apply changes the model as if the action had completed
	Apply(m *types.Model) error
	String() string
}

// Interval is the [start, end) time window of an action
type Interval struct {
	StartAt int
	EndAt   int
}

// Start returns the moment the action starts
func (i Interval) Start() int { return i.StartAt }

// End returns the moment the action ends
func (i Interval) End() int { return i.EndAt }

func (i Interval) window() string {
	return fmt.Sprintf("%d:%d", i.StartAt, i.EndAt)
}

func inapplicable(a Action, format string, args ...any) error {
	return fmt.Errorf("%s: %s: %w", a, fmt.Sprintf(format, args...), ErrInapplicable)
}

// BootNode turns an offline node online
type BootNode struct {
	Interval
	Node types.NodeID
}

func (a *BootNode) Apply(m *types.Model) error {
	if st := m.Mapping.NodeState(a.Node); st != types.NodeStateOffline {
		return inapplicable(a, "node is %s", st)
	}
	return m.Mapping.SetNodeState(a.Node, types.NodeStateOnline)
}

func (a *BootNode) String() string {
	return fmt.Sprintf("%s bootNode(node=%s)", a.window(), a.Node)
}

// ShutdownNode turns an online node offline. The node must not host any VM.
type ShutdownNode struct {
	Interval
	Node types.NodeID
}

func (a *ShutdownNode) Apply(m *types.Model) error {
	if st := m.Mapping.NodeState(a.Node); st != types.NodeStateOnline {
		return inapplicable(a, "node is %s", st)
	}
	if err := m.Mapping.SetNodeState(a.Node, types.NodeStateOffline); err != nil {
		return inapplicable(a, "%v", err)
	}
	return nil
}

func (a *ShutdownNode) String() string {
	return fmt.Sprintf("%s shutdownNode(node=%s)", a.window(), a.Node)
}

// BootVM starts a ready VM on an online node
type BootVM struct {
	Interval
	VM   types.VMID
	Node types.NodeID
}

func (a *BootVM) Apply(m *types.Model) error {
	if st := m.Mapping.VMState(a.VM); st != types.VMStateReady {
		return inapplicable(a, "vm is %s", st)
	}
	if err := m.Mapping.AddRunningVM(a.VM, a.Node); err != nil {
		return inapplicable(a, "%v", err)
	}
	return nil
}

func (a *BootVM) String() string {
	return fmt.Sprintf("%s bootVM(vm=%s, on=%s)", a.window(), a.VM, a.Node)
}

// ShutdownVM halts a running VM, removing it from the cluster
type ShutdownVM struct {
	Interval
	VM   types.VMID
	Node types.NodeID
}

func (a *ShutdownVM) Apply(m *types.Model) error {
	if err := expectRunningOn(m, a.VM, a.Node); err != nil {
		return inapplicable(a, "%v", err)
	}
	m.Mapping.RemoveVM(a.VM)
	return nil
}

func (a *ShutdownVM) String() string {
	return fmt.Sprintf("%s shutdownVM(vm=%s, on=%s)", a.window(), a.VM, a.Node)
}

// SuspendVM puts a running VM to sleep on its host
type SuspendVM struct {
	Interval
	VM          types.VMID
	Source      types.NodeID
	Destination types.NodeID
}

func (a *SuspendVM) Apply(m *types.Model) error {
	if err := expectRunningOn(m, a.VM, a.Source); err != nil {
		return inapplicable(a, "%v", err)
	}
	if err := m.Mapping.AddSleepingVM(a.VM, a.Destination); err != nil {
		return inapplicable(a, "%v", err)
	}
	return nil
}

func (a *SuspendVM) String() string {
	return fmt.Sprintf("%s suspendVM(vm=%s, from=%s, to=%s)", a.window(), a.VM, a.Source, a.Destination)
}

// ResumeVM wakes a sleeping VM up, possibly on another node
type ResumeVM struct {
	Interval
	VM          types.VMID
	Source      types.NodeID
	Destination types.NodeID
}

func (a *ResumeVM) Apply(m *types.Model) error {
	if st := m.Mapping.VMState(a.VM); st != types.VMStateSleeping {
		return inapplicable(a, "vm is %s", st)
	}
	if loc, _ := m.Mapping.VMLocation(a.VM); loc != a.Source {
		return inapplicable(a, "vm is on %s", loc)
	}
	if err := m.Mapping.AddRunningVM(a.VM, a.Destination); err != nil {
		return inapplicable(a, "%v", err)
	}
	return nil
}

func (a *ResumeVM) String() string {
	return fmt.Sprintf("%s resumeVM(vm=%s, from=%s, to=%s)", a.window(), a.VM, a.Source, a.Destination)
}

// MigrateVM live-migrates a running VM between two online nodes
type MigrateVM struct {
	Interval
	VM          types.VMID
	Source      types.NodeID
	Destination types.NodeID
}

func (a *MigrateVM) Apply(m *types.Model) error {
	if a.Source == a.Destination {
		return inapplicable(a, "source and destination are the same")
	}
	if err := expectRunningOn(m, a.VM, a.Source); err != nil {
		return inapplicable(a, "%v", err)
	}
	if err := m.Mapping.AddRunningVM(a.VM, a.Destination); err != nil {
		return inapplicable(a, "%v", err)
	}
	return nil
}

func (a *MigrateVM) String() string {
	return fmt.Sprintf("%s migrate(vm=%s, from=%s, to=%s)", a.window(), a.VM, a.Source, a.Destination)
}

// Allocate changes the amount of a resource reserved for a VM
type Allocate struct {
	Interval
	VM         types.VMID
	Node       types.NodeID
	ResourceID string
	Amount     int
}

func (a *Allocate) Apply(m *types.Model) error {
	rc, ok := m.View(a.ResourceID)
	if !ok {
		return inapplicable(a, "no resource view %q", a.ResourceID)
	}
	if !m.Mapping.HasVM(a.VM) {
		return inapplicable(a, "unknown vm")
	}
	rc.SetConsumption(a.VM, a.Amount)
	return nil
}

func (a *Allocate) String() string {
	return fmt.Sprintf("%s allocate(vm=%s, on=%s, rc=%s, amount=%d)", a.window(), a.VM, a.Node, a.ResourceID, a.Amount)
}

func expectRunningOn(m *types.Model, vm types.VMID, n types.NodeID) error {
	if st := m.Mapping.VMState(vm); st != types.VMStateRunning {
		return fmt.Errorf("vm is %s", st)
	}
	if loc, _ := m.Mapping.VMLocation(vm); loc != n {
		return fmt.Errorf("vm is on %s", loc)
	}
	return nil
}
