package reconf

import (
	"fmt"

	"github.com/cuemby/reconf/pkg/csp"
	"github.com/cuemby/reconf/pkg/duration"
	"github.com/cuemby/reconf/pkg/plan"
	"github.com/cuemby/reconf/pkg/types"
)

type nodeBase struct {
	base
	node                     types.NodeID
	hostingStart, hostingEnd csp.Var
}

func (m *nodeBase) Node() types.NodeID    { return m.node }
func (m *nodeBase) HostingStart() csp.Var { return m.hostingStart }
func (m *nodeBase) HostingEnd() csp.Var   { return m.hostingEnd }

func (m *nodeBase) vars() []csp.Var {
	return append(m.base.vars(), m.hostingStart, m.hostingEnd)
}

// timed creates the state, the {0, d} duration and the start and end
// moments of a node action
func (m *nodeBase) timed(p *Problem, kind Kind, d int) error {
	var err error
	m.state = p.BoolVar(fmt.Sprintf("%s(%s).state", kind, m.node))
	if m.duration, err = p.EnumVar(fmt.Sprintf("%s(%s).duration", kind, m.node), 0, d); err != nil {
		return err
	}
	m.start = p.makeDuration(fmt.Sprintf("%s(%s).start", kind, m.node))
	m.end = p.makeDuration(fmt.Sprintf("%s(%s).end", kind, m.node))
	p.Post(&csp.Sum{X: m.start, Y: m.duration, Z: m.end})
	p.Post(&csp.LessEq{X: m.end, Y: p.end})
	return nil
}

// BootableNodeModel is an offline node that may be booted
type BootableNodeModel struct {
	nodeBase
}

func newBootableNode(p *Problem, n types.NodeID, idx int) (*BootableNodeModel, error) {
	d, err := p.evaluate(duration.BootNode, string(n))
	if err != nil {
		return nil, err
	}
	m := &BootableNodeModel{nodeBase{node: n}}
	if err := m.timed(p, KindBootableNode, d); err != nil {
		return nil, err
	}
	offline := p.BoolVar(fmt.Sprintf("bootableNode(%s).offline", n))
	p.Post(&csp.Not{A: m.state, B: offline})
	p.Post(&csp.IFFEqConst{B: offline, X: m.duration, C: 0})

	m.cost = p.makeDuration(fmt.Sprintf("bootableNode(%s).cost", n))
	p.Post(&csp.TimesBool{B: m.state, X: m.end, Z: m.cost})

	m.hostingStart = m.end
	m.hostingEnd = p.end
	host := p.Const(fmt.Sprintf("node(%s)", n), idx)
	m.dSlice = p.newSlice("dSlice", string(n), host, m.hostingStart, p.end)
	return m, nil
}

func (m *BootableNodeModel) Kind() Kind { return KindBootableNode }

func (m *BootableNodeModel) Actions(p *Problem) ([]plan.Action, error) {
	if p.store.Value(m.state) == 0 {
		return nil, nil
	}
	return []plan.Action{&plan.BootNode{Interval: interval(p, m), Node: m.node}}, nil
}

// ShutdownableNodeModel is an online node that may be turned off
type ShutdownableNodeModel struct {
	nodeBase
}

func newShutdownableNode(p *Problem, n types.NodeID, idx int) (*ShutdownableNodeModel, error) {
	d, err := p.evaluate(duration.ShutdownNode, string(n))
	if err != nil {
		return nil, err
	}
	m := &ShutdownableNodeModel{nodeBase{node: n}}
	if err := m.timed(p, KindShutdownableNode, d); err != nil {
		return nil, err
	}
	p.Post(&csp.IFFEqConst{B: m.state, X: m.duration, C: 0})

	offline := p.BoolVar(fmt.Sprintf("shutdownableNode(%s).offline", n))
	p.Post(&csp.Not{A: m.state, B: offline})
	m.cost = p.makeDuration(fmt.Sprintf("shutdownableNode(%s).cost", n))
	p.Post(&csp.TimesBool{B: offline, X: m.end, Z: m.cost})

	// The node hosts VMs until it starts shutting down, or until the end
	// if it stays online.
	m.hostingStart = p.start
	m.hostingEnd = p.makeDuration(fmt.Sprintf("shutdownableNode(%s).hostingEnd", n))
	p.Post(&csp.Choose{B: m.state, X0: m.start, X1: p.end, Z: m.hostingEnd})

	host := p.Const(fmt.Sprintf("node(%s)", n), idx)
	m.cSlice = p.newSlice("cSlice", string(n), host, p.start, m.hostingEnd)
	return m, nil
}

func (m *ShutdownableNodeModel) Kind() Kind { return KindShutdownableNode }

func (m *ShutdownableNodeModel) Actions(p *Problem) ([]plan.Action, error) {
	if p.store.Value(m.state) == 1 {
		return nil, nil
	}
	return []plan.Action{&plan.ShutdownNode{Interval: interval(p, m), Node: m.node}}, nil
}
