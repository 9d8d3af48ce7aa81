package reconf

import (
	"github.com/cuemby/reconf/pkg/csp"
	"github.com/cuemby/reconf/pkg/plan"
	"github.com/cuemby/reconf/pkg/types"
)

// Kind names an action model variant
type Kind string

const (
	KindBootVM           Kind = "bootVM"
	KindResumeVM         Kind = "resumeVM"
	KindRelocatable      Kind = "relocatable"
	KindSuspendVM        Kind = "suspendVM"
	KindShutdownVM       Kind = "shutdownVM"
	KindInstantiateVM    Kind = "instantiateVM"
	KindStayAway         Kind = "stayAway"
	KindBootableNode     Kind = "bootableNode"
	KindShutdownableNode Kind = "shutdownableNode"
)

// ActionModel ties an entity to the variables describing its transition.
// The set of implementations is closed: one per supported transition.
type ActionModel interface {
	Kind() Kind

	Start() csp.Var
	End() csp.Var
	Duration() csp.Var
	Cost() csp.Var

	// State is 1 when the entity ends the reconfiguration running (VMs)
	// or online (nodes)
	State() csp.Var

	// CSlice and DSlice return nil when the transition has none
	CSlice() *Slice
	DSlice() *Slice

	// Actions materializes the transition once every variable is bound.
	// It returns no action when the solution implies no change.
	Actions(p *Problem) ([]plan.Action, error)

	vars() []csp.Var
}

// VMActionModel is the action model of a VM
type VMActionModel interface {
	ActionModel
	VM() types.VMID
}

// NodeActionModel is the action model of a node
type NodeActionModel interface {
	ActionModel
	Node() types.NodeID

	// HostingStart is the earliest moment the node can host a demanding
	// slice, HostingEnd the latest moment it can host a consuming slice
	HostingStart() csp.Var
	HostingEnd() csp.Var
}

type base struct {
	start, end, duration, cost, state csp.Var
	cSlice, dSlice                    *Slice
}

func (b *base) Start() csp.Var    { return b.start }
func (b *base) End() csp.Var      { return b.end }
func (b *base) Duration() csp.Var { return b.duration }
func (b *base) Cost() csp.Var     { return b.cost }
func (b *base) State() csp.Var    { return b.state }
func (b *base) CSlice() *Slice    { return b.cSlice }
func (b *base) DSlice() *Slice    { return b.dSlice }

func (b *base) vars() []csp.Var {
	vs := []csp.Var{b.start, b.end, b.duration, b.cost, b.state}
	if b.cSlice != nil {
		vs = append(vs, b.cSlice.vars()...)
	}
	if b.dSlice != nil {
		vs = append(vs, b.dSlice.vars()...)
	}
	return vs
}

func interval(p *Problem, m ActionModel) plan.Interval {
	return plan.Interval{StartAt: p.store.Value(m.Start()), EndAt: p.store.Value(m.End())}
}
