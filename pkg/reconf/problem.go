package reconf

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/cuemby/reconf/pkg/csp"
	"github.com/cuemby/reconf/pkg/duration"
	"github.com/cuemby/reconf/pkg/plan"
	"github.com/cuemby/reconf/pkg/scheduler"
	"github.com/cuemby/reconf/pkg/types"
)

// Request lists the state every VM must reach. A VM of the source model
// must appear in exactly one set; a VM absent from the source model may
// only be requested ready.
type Request struct {
	ToWait    []types.VMID
	ToRun     []types.VMID
	ToSleep   []types.VMID
	ToDestroy []types.VMID
}

// KeepState returns the request leaving every VM of a model in its
// current state
func KeepState(m *types.Model) Request {
	return Request{
		ToWait:  m.Mapping.VMsIn(types.VMStateReady),
		ToRun:   m.Mapping.VMsIn(types.VMStateRunning),
		ToSleep: m.Mapping.VMsIn(types.VMStateSleeping),
	}
}

// Problem is the constraint model of a reconfiguration: one action model
// per VM and per node sharing a horizon [Start, End], and the propagators
// keeping the resource usage of the nodes under their capacity.
type Problem struct {
	ID string

	src    *types.Model
	cfg    Config
	logger zerolog.Logger

	store *csp.Store
	index *Index

	start, end csp.Var

	vmModels   []VMActionModel
	nodeModels []NodeActionModel
	views      map[string]*ResourceView

	sealed bool
}

// Build creates the problem turning the source model into the requested
// states. Every VM is modeled, including the ones the request does not
// move.
func Build(src *types.Model, req Request, cfg Config) (*Problem, error) {
	if src == nil {
		return nil, errors.New("reconf: nil source model")
	}
	if cfg.MaxTime < 0 {
		return nil, fmt.Errorf("max time %d: %w", cfg.MaxTime, ErrInvalidBounds)
	}
	if cfg.Durations == nil {
		cfg.Durations = duration.Defaults()
	}
	if cfg.Relocation == "" {
		cfg.Relocation = RelocationAuto
	}

	next, err := nextStates(src.Mapping, req)
	if err != nil {
		return nil, err
	}

	p := &Problem{
		ID:    uuid.New().String(),
		src:   src,
		cfg:   cfg,
		store: csp.NewStore(),
		views: make(map[string]*ResourceView),
	}
	p.logger = cfg.Logger.With().Str("problem", p.ID).Logger()

	vms := make([]types.VMID, 0, len(next))
	for vm := range next {
		vms = append(vms, vm)
	}
	sort.Slice(vms, func(i, j int) bool { return vms[i] < vms[j] })
	p.index = newIndex(vms, src.Mapping.AllNodes())

	p.start = p.Const("start", 0)
	if p.end, err = p.IntVar("end", 0, cfg.MaxTime); err != nil {
		return nil, err
	}

	for i, n := range p.index.nodes {
		var m NodeActionModel
		switch src.Mapping.NodeState(n) {
		case types.NodeStateOffline:
			m, err = newBootableNode(p, n, i)
		default:
			m, err = newShutdownableNode(p, n, i)
		}
		if err != nil {
			return nil, err
		}
		p.nodeModels = append(p.nodeModels, m)
	}

	for _, vm := range p.index.vms {
		m, err := p.vmModel(vm, src.Mapping.VMState(vm), next[vm])
		if err != nil {
			return nil, err
		}
		p.vmModels = append(p.vmModels, m)
	}

	// A node cannot be turned off while it keeps a sleeping VM
	for _, m := range p.vmModels {
		stays := m.Kind() == KindSuspendVM ||
			(m.Kind() == KindStayAway && src.Mapping.VMState(m.VM()) == types.VMStateSleeping)
		if !stays {
			continue
		}
		n, _ := src.Mapping.VMLocation(m.VM())
		k, err := p.index.NodeIndex(n)
		if err != nil {
			return nil, err
		}
		if err := p.setLB(p.nodeModels[k].State(), 1); err != nil {
			return nil, err
		}
	}

	for _, rc := range src.Views() {
		p.views[rc.ID] = newResourceView(p, rc)
	}

	p.logger.Debug().
		Int("vms", p.index.NumVMs()).
		Int("nodes", p.index.NumNodes()).
		Int("variables", p.store.NumVars()).
		Msg("Problem built")
	return p, nil
}

// nextStates checks every VM is requested in exactly one state
func nextStates(m *types.Mapping, req Request) (map[types.VMID]types.VMState, error) {
	requested := make(map[types.VMID][]types.VMState)
	add := func(vms []types.VMID, st types.VMState) {
		for _, vm := range vms {
			requested[vm] = append(requested[vm], st)
		}
	}
	add(req.ToWait, types.VMStateReady)
	add(req.ToRun, types.VMStateRunning)
	add(req.ToSleep, types.VMStateSleeping)
	add(req.ToDestroy, types.VMStateTerminated)

	next := make(map[types.VMID]types.VMState, len(requested))
	for vm, sts := range requested {
		if len(sts) > 1 {
			names := make([]string, len(sts))
			for i, st := range sts {
				names[i] = string(st)
			}
			return nil, transitionError(vm, m.VMState(vm), ErrAmbiguousTransition, names...)
		}
		next[vm] = sts[0]
	}
	for _, vm := range m.AllVMs() {
		if _, ok := next[vm]; !ok {
			return nil, transitionError(vm, m.VMState(vm), ErrUndefinedTransition)
		}
	}
	return next, nil
}

// vmModel picks the action model of a VM from its current and next states
func (p *Problem) vmModel(vm types.VMID, cur, next types.VMState) (VMActionModel, error) {
	switch {
	case next == types.VMStateRunning && cur == types.VMStateReady:
		return newBootVM(p, vm)
	case next == types.VMStateRunning && cur == types.VMStateSleeping:
		return newResumeVM(p, vm)
	case next == types.VMStateRunning && cur == types.VMStateRunning:
		return newRelocatable(p, vm)
	case next == types.VMStateReady && !p.src.Mapping.HasVM(vm):
		return newInstantiateVM(p, vm), nil
	case next == types.VMStateReady && cur == types.VMStateReady:
		return newStayAway(p, vm), nil
	case next == types.VMStateSleeping && cur == types.VMStateRunning:
		return newSuspendVM(p, vm)
	case next == types.VMStateSleeping && cur == types.VMStateSleeping:
		return newStayAway(p, vm), nil
	case next == types.VMStateTerminated && cur == types.VMStateRunning:
		return newShutdownVM(p, vm)
	}
	return nil, transitionError(vm, cur, ErrInvalidTransition, string(next))
}

// Store returns the variable store of the problem
func (p *Problem) Store() *csp.Store { return p.store }

// Start returns the horizon start, always 0
func (p *Problem) Start() csp.Var { return p.start }

// End returns the horizon end. Every action ends before it.
func (p *Problem) End() csp.Var { return p.end }

// Index returns the entity index of the problem
func (p *Problem) Index() *Index { return p.index }

// Source returns the model the problem starts from
func (p *Problem) Source() *types.Model { return p.src }

// Logger returns the logger of the problem
func (p *Problem) Logger() zerolog.Logger { return p.logger }

// VMModel returns the action model of a VM
func (p *Problem) VMModel(vm types.VMID) (VMActionModel, error) {
	i, err := p.index.VMIndex(vm)
	if err != nil {
		return nil, err
	}
	return p.vmModels[i], nil
}

// NodeModel returns the action model of a node
func (p *Problem) NodeModel(n types.NodeID) (NodeActionModel, error) {
	i, err := p.index.NodeIndex(n)
	if err != nil {
		return nil, err
	}
	return p.nodeModels[i], nil
}

// NodeState returns the variable set to 1 when the node ends online
func (p *Problem) NodeState(n types.NodeID) (csp.Var, error) {
	m, err := p.NodeModel(n)
	if err != nil {
		return 0, err
	}
	return m.State(), nil
}

// VMModels returns the VM action models, in index order
func (p *Problem) VMModels() []VMActionModel {
	return append([]VMActionModel(nil), p.vmModels...)
}

// NodeModels returns the node action models, in index order
func (p *Problem) NodeModels() []NodeActionModel {
	return append([]NodeActionModel(nil), p.nodeModels...)
}

// CSlices returns the consuming slices of the VMs, in index order
func (p *Problem) CSlices() []*Slice {
	var out []*Slice
	for _, m := range p.vmModels {
		if s := m.CSlice(); s != nil {
			out = append(out, s)
		}
	}
	return out
}

// DSlices returns the demanding slices of the VMs, in index order
func (p *Problem) DSlices() []*Slice {
	var out []*Slice
	for _, m := range p.vmModels {
		if s := m.DSlice(); s != nil {
			out = append(out, s)
		}
	}
	return out
}

// View returns the resource view with the given identifier
func (p *Problem) View(id string) (*ResourceView, error) {
	v, ok := p.views[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", id, ErrUnknownView)
	}
	return v, nil
}

// Views returns the resource views, sorted by identifier
func (p *Problem) Views() []*ResourceView {
	out := make([]*ResourceView, 0, len(p.views))
	for _, v := range p.views {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// Sealed reports whether the problem propagators are posted
func (p *Problem) Sealed() bool { return p.sealed }

// IntVar creates a variable over [lb, ub]
func (p *Problem) IntVar(name string, lb, ub int) (csp.Var, error) {
	v, err := p.store.IntVar(name, lb, ub)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidBounds, err)
	}
	return v, nil
}

// EnumVar creates a variable over an explicit set of values
func (p *Problem) EnumVar(name string, values ...int) (csp.Var, error) {
	v, err := p.store.EnumVar(name, values...)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidBounds, err)
	}
	return v, nil
}

// BoolVar creates a 0/1 variable
func (p *Problem) BoolVar(name string) csp.Var { return p.store.BoolVar(name) }

// Const creates a bound variable
func (p *Problem) Const(name string, x int) csp.Var { return p.store.Const(name, x) }

// Post adds a propagator to the problem
func (p *Problem) Post(c csp.Propagator) { p.store.Post(c) }

// makeDuration creates a moment or a duration inside [0, MaxTime]
func (p *Problem) makeDuration(name string) csp.Var {
	// IntVar only fails on an empty interval and Build rejects a negative
	// MaxTime before any variable exists.
	v, _ := p.store.IntVar(name, 0, p.cfg.MaxTime)
	return v
}

// makeHoster creates a variable over every node index
func (p *Problem) makeHoster(name string) (csp.Var, error) {
	return p.IntVar(name, 0, p.index.NumNodes()-1)
}

// currentHost returns a constant holding the index of the node hosting vm
func (p *Problem) currentHost(vm types.VMID) (csp.Var, error) {
	n, ok := p.src.Mapping.VMLocation(vm)
	if !ok {
		return 0, fmt.Errorf("%s has no host: %w", vm, ErrUnknownNode)
	}
	k, err := p.index.NodeIndex(n)
	if err != nil {
		return 0, err
	}
	return p.Const(fmt.Sprintf("host(%s)", vm), k), nil
}

// hostOf returns the node a solved slice is placed on
func (p *Problem) hostOf(s *Slice) types.NodeID {
	return p.index.Node(p.store.Value(s.Hoster))
}

func (p *Problem) setLB(v csp.Var, x int) error {
	if err := p.store.SetLB(v, x); err != nil {
		return fmt.Errorf("%s >= %d: %w", p.store.Name(v), x, err)
	}
	return nil
}

// evaluate estimates a strictly positive action duration
func (p *Problem) evaluate(k duration.Kind, entity string) (int, error) {
	d, err := p.cfg.Durations.Evaluate(k, entity)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrDuration, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%w: %s on %s must be positive, got %d", ErrDuration, k, entity, d)
	}
	return d, nil
}

// Seal posts the propagators depending on the resource demands. Demands
// cannot change afterwards. Sealing twice is a no-op.
func (p *Problem) Seal() error {
	if p.sealed {
		return nil
	}
	views := p.Views()

	for _, m := range p.vmModels {
		if r, ok := m.(*RelocatableVMModel); ok {
			r.postStay(p, p.increasing(r.vm, views))
		}
	}

	ts, err := scheduler.New(p.schedulerConfig(views))
	if err != nil {
		return err
	}
	p.Post(ts)

	var hosters []csp.Var
	for _, s := range p.DSlices() {
		hosters = append(hosters, s.Hoster)
	}
	for k, m := range p.nodeModels {
		p.Post(&hostingLink{node: k, state: m.State(), hosters: hosters})
	}

	p.sealed = true
	p.logger.Debug().Int("views", len(views)).Str("scheduler", ts.String()).Msg("Problem sealed")
	return nil
}

// increasing tells whether a staying VM keeps its consumption until the
// end of the reconfiguration
func (p *Problem) increasing(vm types.VMID, views []*ResourceView) bool {
	switch p.cfg.Relocation {
	case RelocationIncrease:
		return true
	case RelocationDecrease:
		return false
	}
	for _, v := range views {
		if v.Demand(vm) > v.Consumption(vm) {
			return true
		}
	}
	return false
}

func (p *Problem) schedulerConfig(views []*ResourceView) scheduler.Config {
	dims := len(views)
	if dims == 0 {
		dims = 1
	}
	nodes := p.index.NumNodes()
	cfg := scheduler.Config{
		Capacities: make([][]int, dims),
		CUsages:    make([][]int, dims),
		DUsages:    make([][]int, dims),
		Early:      make([]csp.Var, nodes),
		Last:       make([]csp.Var, nodes),
		Logger:     p.logger.With().Str("component", "scheduler").Logger(),
	}
	for d := range cfg.Capacities {
		cfg.Capacities[d] = make([]int, nodes)
		for k := 0; k < nodes; k++ {
			if d < len(views) {
				cfg.Capacities[d][k] = views[d].Capacity(p.index.Node(k))
			}
		}
	}
	for k, m := range p.nodeModels {
		cfg.Early[k] = m.HostingStart()
		cfg.Last[k] = m.HostingEnd()
	}

	cOf := make(map[int]int)
	for i, m := range p.vmModels {
		s := m.CSlice()
		if s == nil {
			continue
		}
		cOf[i] = len(cfg.CEnds)
		cfg.CHosters = append(cfg.CHosters, s.Hoster)
		cfg.CEnds = append(cfg.CEnds, s.End)
		running := p.src.Mapping.VMState(m.VM()) == types.VMStateRunning
		for d := range cfg.CUsages {
			u := 0
			if running && d < len(views) {
				u = views[d].Consumption(m.VM())
			}
			cfg.CUsages[d] = append(cfg.CUsages[d], u)
		}
	}
	for i, m := range p.vmModels {
		s := m.DSlice()
		if s == nil {
			continue
		}
		cfg.DHosters = append(cfg.DHosters, s.Hoster)
		cfg.DStarts = append(cfg.DStarts, s.Start)
		for d := range cfg.DUsages {
			u := 0
			if d < len(views) {
				u = views[d].Demand(m.VM())
			}
			cfg.DUsages[d] = append(cfg.DUsages[d], u)
		}
		if j, ok := cOf[i]; ok {
			cfg.Assocs = append(cfg.Assocs, j)
		} else {
			cfg.Assocs = append(cfg.Assocs, scheduler.NoAssociation)
		}
	}
	return cfg
}

// Propagate seals the problem and runs the propagators to their fixpoint.
// A contradiction means the problem has no solution.
func (p *Problem) Propagate() error {
	if err := p.Seal(); err != nil {
		return err
	}
	return p.store.Fixpoint()
}

// SolveOptions bounds the search
type SolveOptions struct {
	// NodeLimit caps the number of search decisions; zero means unlimited
	NodeLimit int
}

// Solve seals the problem, searches for a solution and extracts its plan.
// It returns a nil plan and no error when the problem has no solution.
func (p *Problem) Solve(ctx context.Context, opts SolveOptions) (*plan.Plan, error) {
	if err := p.Seal(); err != nil {
		return nil, err
	}
	order, prefer := p.searchStrategy()
	ok, err := p.store.Solve(ctx, csp.SearchOptions{
		Order:     order,
		Prefer:    prefer,
		NodeLimit: opts.NodeLimit,
	})
	stats := p.store.Stats()
	if err != nil {
		return nil, err
	}
	if !ok {
		p.logger.Debug().Int("nodes", stats.Nodes).Int("failures", stats.Failures).Msg("No solution")
		return nil, nil
	}
	p.logger.Debug().
		Int("nodes", stats.Nodes).
		Int("failures", stats.Failures).
		Int("end", p.store.Value(p.end)).
		Msg("Solution found")
	return p.ExtractPlan()
}

// searchStrategy places the VMs first, trying their current node then the
// online nodes, then decides the node states, keeping them if possible.
// Moments come next, and the horizon end last so it settles on the
// smallest value the actions allow.
func (p *Problem) searchStrategy() ([]csp.Var, map[csp.Var][]int) {
	prefer := make(map[csp.Var][]int)
	var online []int
	for k, n := range p.index.nodes {
		if p.src.Mapping.NodeState(n) == types.NodeStateOnline {
			online = append(online, k)
		}
	}

	var order []csp.Var
	for _, m := range p.vmModels {
		ds := m.DSlice()
		if ds == nil {
			continue
		}
		order = append(order, ds.Hoster)
		var values []int
		if cs := m.CSlice(); cs != nil {
			values = append(values, p.store.Value(cs.Hoster))
		}
		prefer[ds.Hoster] = append(values, online...)
	}
	for _, m := range p.nodeModels {
		order = append(order, m.State())
		if _, ok := m.(*ShutdownableNodeModel); ok {
			prefer[m.State()] = []int{1}
		}
	}

	// A staying VM that grows starts its demanding slice at the horizon
	// end, so its start follows the end.
	var tail []csp.Var
	for _, m := range p.vmModels {
		if ds := m.DSlice(); ds != nil {
			if r, ok := m.(*RelocatableVMModel); ok && p.increasing(r.vm, p.Views()) {
				tail = append(tail, ds.Start)
				continue
			}
			order = append(order, ds.Start)
		}
	}
	for _, m := range p.vmModels {
		if cs := m.CSlice(); cs != nil {
			order = append(order, cs.End)
		}
	}
	for _, m := range p.vmModels {
		order = append(order, m.Start())
	}
	for _, m := range p.nodeModels {
		order = append(order, m.Start())
	}

	for v := csp.Var(0); int(v) < p.store.NumVars(); v++ {
		order = append(order, v)
	}

	late := make(map[csp.Var]struct{}, len(tail)+1)
	late[p.end] = struct{}{}
	for _, v := range tail {
		late[v] = struct{}{}
	}
	out := make([]csp.Var, 0, len(order)+len(tail)+1)
	for _, v := range order {
		if _, ok := late[v]; !ok {
			out = append(out, v)
		}
	}
	out = append(out, p.end)
	return append(out, tail...), prefer
}
