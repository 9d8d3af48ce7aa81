package reconf

import (
	"fmt"

	"github.com/cuemby/reconf/pkg/plan"
)

// ExtractPlan turns the solution into a plan. Node actions are added before
// the VM actions. Every variable of the action models and the horizon end
// must be bound.
func (p *Problem) ExtractPlan() (*plan.Plan, error) {
	if err := p.checkSolved(); err != nil {
		return nil, err
	}

	pl := plan.New(p.src)
	for _, m := range p.nodeModels {
		as, err := m.Actions(p)
		if err != nil {
			return nil, fmt.Errorf("node %s: %w", m.Node(), err)
		}
		for _, a := range as {
			pl.Add(a)
		}
	}
	for _, m := range p.vmModels {
		as, err := m.Actions(p)
		if err != nil {
			return nil, fmt.Errorf("vm %s: %w", m.VM(), err)
		}
		for _, a := range as {
			pl.Add(a)
		}
		if m.Kind() == KindInstantiateVM {
			pl.Instantiated = append(pl.Instantiated, m.VM())
		}
		if m.DSlice() == nil {
			continue
		}
		if len(as) > 0 {
			p.allocations(pl, m, as[0])
		} else {
			p.resizes(pl, m)
		}
	}

	if err := p.checkConsistency(pl); err != nil {
		return nil, err
	}
	p.logger.Debug().
		Str("plan", pl.ID).
		Int("actions", pl.Size()).
		Int("duration", pl.Duration()).
		Msg("Plan extracted")
	return pl, nil
}

// allocations adds the resource changes of a VM arriving on a node. They
// share the window of the action bringing the VM there.
func (p *Problem) allocations(pl *plan.Plan, m VMActionModel, arrival plan.Action) {
	for _, v := range p.Views() {
		demand := v.Demand(m.VM())
		if demand == v.Consumption(m.VM()) {
			continue
		}
		pl.Add(&plan.Allocate{
			Interval:   plan.Interval{StartAt: arrival.Start(), EndAt: arrival.End()},
			VM:         m.VM(),
			Node:       p.hostOf(m.DSlice()),
			ResourceID: v.ID(),
			Amount:     demand,
		})
	}
}

// resizes records the resource changes of a VM staying on its node. They
// hold from the start of its demanding slice: the horizon end when the VM
// grows, 0 when it shrinks.
func (p *Problem) resizes(pl *plan.Plan, m VMActionModel) {
	ds := m.DSlice()
	for _, v := range p.Views() {
		demand := v.Demand(m.VM())
		if demand == v.Consumption(m.VM()) {
			continue
		}
		pl.Resized = append(pl.Resized, plan.Resize{
			VM:         m.VM(),
			Node:       p.hostOf(ds),
			ResourceID: v.ID(),
			Amount:     demand,
			At:         p.store.Value(ds.Start),
		})
	}
}

func (p *Problem) checkSolved() error {
	if !p.store.Bound(p.end) {
		return fmt.Errorf("%s is %s: %w", p.store.Name(p.end), p.store.Describe(p.end), ErrNotSolved)
	}
	check := func(m ActionModel) error {
		for _, v := range m.vars() {
			if !p.store.Bound(v) {
				return fmt.Errorf("%s is %s: %w", p.store.Name(v), p.store.Describe(v), ErrNotSolved)
			}
		}
		return nil
	}
	for _, m := range p.nodeModels {
		if err := check(m); err != nil {
			return err
		}
	}
	for _, m := range p.vmModels {
		if err := check(m); err != nil {
			return err
		}
	}
	return nil
}

func (p *Problem) checkConsistency(pl *plan.Plan) error {
	for _, a := range pl.Actions() {
		if a.End() <= a.Start() {
			return fmt.Errorf("%s has no duration: %w", a, ErrInconsistentPlan)
		}
	}
	if end := p.store.Value(p.end); pl.Duration() != end {
		return fmt.Errorf("plan lasts %d but the horizon ends at %d: %w", pl.Duration(), end, ErrInconsistentPlan)
	}
	return nil
}
