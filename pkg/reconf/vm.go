package reconf

import (
	"fmt"

	"github.com/cuemby/reconf/pkg/csp"
	"github.com/cuemby/reconf/pkg/duration"
	"github.com/cuemby/reconf/pkg/plan"
	"github.com/cuemby/reconf/pkg/types"
)

type vmBase struct {
	base
	vm types.VMID
}

func (m *vmBase) VM() types.VMID { return m.vm }

// arrive creates a VM action of fixed duration d starting a demanding slice
// on a node to choose. It is shared by the boot and the resume models.
func (m *vmBase) arrive(p *Problem, kind Kind, d int) error {
	var err error
	if m.start, err = p.IntVar(fmt.Sprintf("%s(%s).start", kind, m.vm), 0, p.cfg.MaxTime-d); err != nil {
		return err
	}
	if m.end, err = p.IntVar(fmt.Sprintf("%s(%s).end", kind, m.vm), d, p.cfg.MaxTime); err != nil {
		return err
	}
	p.Post(&csp.Offset{X: m.start, Y: m.end, C: d})
	p.Post(&csp.LessEq{X: m.end, Y: p.end})
	m.duration = p.Const(fmt.Sprintf("%s(%s).duration", kind, m.vm), d)
	m.cost = m.end
	m.state = p.Const(fmt.Sprintf("%s(%s).state", kind, m.vm), 1)

	host, err := p.makeHoster(fmt.Sprintf("dSlice_hoster(%s)", m.vm))
	if err != nil {
		return err
	}
	m.dSlice = p.newSlice("dSlice", string(m.vm), host, m.start, p.end)
	return p.setLB(m.dSlice.Duration, d)
}

// depart creates a VM action of fixed duration d ending the consuming slice
// of the VM on its current node
func (m *vmBase) depart(p *Problem, kind Kind, d int) error {
	host, err := p.currentHost(m.vm)
	if err != nil {
		return err
	}
	cEnd, err := p.IntVar(fmt.Sprintf("cSlice_end(%s)", m.vm), d, p.cfg.MaxTime)
	if err != nil {
		return err
	}
	m.cSlice = p.newSlice("cSlice", string(m.vm), host, p.start, cEnd)
	if m.start, err = p.IntVar(fmt.Sprintf("%s(%s).start", kind, m.vm), 0, p.cfg.MaxTime-d); err != nil {
		return err
	}
	m.end = cEnd
	p.Post(&csp.Offset{X: m.start, Y: m.end, C: d})
	m.duration = p.Const(fmt.Sprintf("%s(%s).duration", kind, m.vm), d)
	m.cost = m.end
	m.state = p.Const(fmt.Sprintf("%s(%s).state", kind, m.vm), 0)
	return nil
}

// noop creates a transition without any timed action
func (m *vmBase) noop(p *Problem, kind Kind) {
	m.start = p.start
	m.end = p.start
	m.duration = p.Const(fmt.Sprintf("%s(%s).duration", kind, m.vm), 0)
	m.cost = m.duration
	m.state = p.Const(fmt.Sprintf("%s(%s).state", kind, m.vm), 0)
}

// BootVMModel boots a ready VM on a node to choose
type BootVMModel struct {
	vmBase
}

func newBootVM(p *Problem, vm types.VMID) (*BootVMModel, error) {
	d, err := p.evaluate(duration.BootVM, string(vm))
	if err != nil {
		return nil, err
	}
	m := &BootVMModel{vmBase{vm: vm}}
	if err := m.arrive(p, KindBootVM, d); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *BootVMModel) Kind() Kind { return KindBootVM }

func (m *BootVMModel) Actions(p *Problem) ([]plan.Action, error) {
	return []plan.Action{&plan.BootVM{
		Interval: interval(p, m),
		VM:       m.vm,
		Node:     p.hostOf(m.dSlice),
	}}, nil
}

// ResumeVMModel resumes a sleeping VM on a node to choose
type ResumeVMModel struct {
	vmBase
}

func newResumeVM(p *Problem, vm types.VMID) (*ResumeVMModel, error) {
	d, err := p.evaluate(duration.ResumeVM, string(vm))
	if err != nil {
		return nil, err
	}
	m := &ResumeVMModel{vmBase{vm: vm}}
	if err := m.arrive(p, KindResumeVM, d); err != nil {
		return nil, err
	}
	host, err := p.currentHost(vm)
	if err != nil {
		return nil, err
	}
	m.cSlice = p.newSlice("cSlice", string(vm), host, p.start, m.end)
	return m, nil
}

func (m *ResumeVMModel) Kind() Kind { return KindResumeVM }

func (m *ResumeVMModel) Actions(p *Problem) ([]plan.Action, error) {
	return []plan.Action{&plan.ResumeVM{
		Interval:    interval(p, m),
		VM:          m.vm,
		Source:      p.hostOf(m.cSlice),
		Destination: p.hostOf(m.dSlice),
	}}, nil
}

// RelocatableVMModel keeps a running VM running, either on its current
// node or on another one through a live migration
type RelocatableVMModel struct {
	vmBase

	// Move is 1 when the VM changes node, Stay its negation
	Move csp.Var
	Stay csp.Var
}

func newRelocatable(p *Problem, vm types.VMID) (*RelocatableVMModel, error) {
	d, err := p.evaluate(duration.MigrateVM, string(vm))
	if err != nil {
		return nil, err
	}
	src, err := p.currentHost(vm)
	if err != nil {
		return nil, err
	}
	m := &RelocatableVMModel{vmBase: vmBase{vm: vm}}
	if m.duration, err = p.EnumVar(fmt.Sprintf("relocatable(%s).duration", vm), 0, d); err != nil {
		return nil, err
	}
	m.cost = p.makeDuration(fmt.Sprintf("relocatable(%s).cost", vm))
	cEnd := p.makeDuration(fmt.Sprintf("cSlice_end(%s)", vm))
	m.cSlice = p.newSlice("cSlice", string(vm), src, p.start, cEnd)

	dStart := p.makeDuration(fmt.Sprintf("dSlice_start(%s)", vm))
	dst, err := p.makeHoster(fmt.Sprintf("dSlice_hoster(%s)", vm))
	if err != nil {
		return nil, err
	}
	m.dSlice = p.newSlice("dSlice", string(vm), dst, dStart, p.end)

	m.Move = p.BoolVar(fmt.Sprintf("relocatable(%s).move", vm))
	m.Stay = p.BoolVar(fmt.Sprintf("relocatable(%s).stay", vm))
	p.Post(&csp.ReifiedNotEqual{B: m.Move, X: src, Y: dst})
	p.Post(&csp.Not{A: m.Move, B: m.Stay})
	p.Post(&csp.TimesBool{B: m.Move, X: cEnd, Z: m.cost})
	p.Post(&csp.IFFEqConst{B: m.Stay, X: m.duration, C: 0})
	p.Post(&csp.LessEq{X: m.duration, Y: m.cSlice.Duration})
	p.Post(&csp.LessEq{X: m.duration, Y: m.dSlice.Duration})

	m.start = dStart
	m.end = cEnd
	p.Post(&csp.Sum{X: m.start, Y: m.duration, Z: m.end})
	m.state = p.Const(fmt.Sprintf("relocatable(%s).state", vm), 1)
	return m, nil
}

// postStay collapses the slice that is useless when the VM stays: the
// consuming one when the VM shrinks or keeps its size, the demanding one
// when it grows.
func (m *RelocatableVMModel) postStay(p *Problem, increasing bool) {
	if increasing {
		p.Post(&csp.ImpliesEqConst{B: m.Stay, X: m.dSlice.Duration, C: 0})
		return
	}
	p.Post(&csp.ImpliesEqConst{B: m.Stay, X: m.cSlice.Duration, C: 0})
}

func (m *RelocatableVMModel) Kind() Kind { return KindRelocatable }

func (m *RelocatableVMModel) Actions(p *Problem) ([]plan.Action, error) {
	src, dst := p.hostOf(m.cSlice), p.hostOf(m.dSlice)
	if src == dst {
		return nil, nil
	}
	return []plan.Action{&plan.MigrateVM{
		Interval:    interval(p, m),
		VM:          m.vm,
		Source:      src,
		Destination: dst,
	}}, nil
}

func (m *RelocatableVMModel) vars() []csp.Var {
	return append(m.base.vars(), m.Move, m.Stay)
}

// SuspendVMModel puts a running VM to sleep on its node
type SuspendVMModel struct {
	vmBase
}

func newSuspendVM(p *Problem, vm types.VMID) (*SuspendVMModel, error) {
	d, err := p.evaluate(duration.SuspendVM, string(vm))
	if err != nil {
		return nil, err
	}
	m := &SuspendVMModel{vmBase{vm: vm}}
	if err := m.depart(p, KindSuspendVM, d); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *SuspendVMModel) Kind() Kind { return KindSuspendVM }

func (m *SuspendVMModel) Actions(p *Problem) ([]plan.Action, error) {
	host := p.hostOf(m.cSlice)
	return []plan.Action{&plan.SuspendVM{
		Interval:    interval(p, m),
		VM:          m.vm,
		Source:      host,
		Destination: host,
	}}, nil
}

// ShutdownVMModel halts a running VM
type ShutdownVMModel struct {
	vmBase
}

func newShutdownVM(p *Problem, vm types.VMID) (*ShutdownVMModel, error) {
	d, err := p.evaluate(duration.ShutdownVM, string(vm))
	if err != nil {
		return nil, err
	}
	m := &ShutdownVMModel{vmBase{vm: vm}}
	if err := m.depart(p, KindShutdownVM, d); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *ShutdownVMModel) Kind() Kind { return KindShutdownVM }

func (m *ShutdownVMModel) Actions(p *Problem) ([]plan.Action, error) {
	return []plan.Action{&plan.ShutdownVM{
		Interval: interval(p, m),
		VM:       m.vm,
		Node:     p.hostOf(m.cSlice),
	}}, nil
}

// InstantiateVMModel declares a new VM, ready to be booted. It has no
// resource footprint and no timed action.
type InstantiateVMModel struct {
	vmBase
}

func newInstantiateVM(p *Problem, vm types.VMID) *InstantiateVMModel {
	m := &InstantiateVMModel{vmBase{vm: vm}}
	m.noop(p, KindInstantiateVM)
	return m
}

func (m *InstantiateVMModel) Kind() Kind { return KindInstantiateVM }

func (m *InstantiateVMModel) Actions(*Problem) ([]plan.Action, error) { return nil, nil }

// StayAwayVMModel leaves a ready or sleeping VM as it is
type StayAwayVMModel struct {
	vmBase
}

func newStayAway(p *Problem, vm types.VMID) *StayAwayVMModel {
	m := &StayAwayVMModel{vmBase{vm: vm}}
	m.noop(p, KindStayAway)
	return m
}

func (m *StayAwayVMModel) Kind() Kind { return KindStayAway }

func (m *StayAwayVMModel) Actions(*Problem) ([]plan.Action, error) { return nil, nil }
