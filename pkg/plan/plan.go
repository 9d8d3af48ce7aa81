package plan

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/cuemby/reconf/pkg/types"
)

// Plan is a set of timed actions transforming a source model
type Plan struct {
	ID     string
	Source *types.Model

	// Instantiated lists the VMs the plan brings into the cluster without
	// any timed action. They appear as ready VMs in the resulting model.
	Instantiated []types.VMID

	// Resized lists the resource changes of VMs staying on their node.
	// They are not timed actions.
	Resized []Resize

	actions []Action
}

// Resize changes the amount of a resource reserved for a VM that stays on
// its node. The new amount holds from moment At.
type Resize struct {
	VM         types.VMID
	Node       types.NodeID
	ResourceID string
	Amount     int
	At         int
}

func (r Resize) String() string {
	return fmt.Sprintf("%d resize(vm=%s, on=%s, rc=%s, amount=%d)", r.At, r.VM, r.Node, r.ResourceID, r.Amount)
}

// New creates an empty plan for a source model
func New(src *types.Model) *Plan {
	return &Plan{
		ID:     uuid.New().String(),
		Source: src,
	}
}

// Add appends an action to the plan
func (p *Plan) Add(a Action) {
	p.actions = append(p.actions, a)
}

// Actions returns the actions sorted by start, then by end. Actions with the
// same window keep their insertion order.
func (p *Plan) Actions() []Action {
	out := append([]Action(nil), p.actions...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Start() != out[j].Start() {
			return out[i].Start() < out[j].Start()
		}
		return out[i].End() < out[j].End()
	})
	return out
}

// Size returns the number of actions
func (p *Plan) Size() int {
	return len(p.actions)
}

// Duration returns the moment the last action ends
func (p *Plan) Duration() int {
	d := 0
	for _, a := range p.actions {
		if a.End() > d {
			d = a.End()
		}
	}
	return d
}

// Result replays the actions on a copy of the source model, then the
// resizes, and returns the resulting model
func (p *Plan) Result() (*types.Model, error) {
	if p.Source == nil {
		return nil, fmt.Errorf("plan %s has no source model", p.ID)
	}
	m := p.Source.Clone()
	for _, vm := range p.Instantiated {
		m.Mapping.AddReadyVM(vm)
	}
	for _, a := range p.Actions() {
		if err := a.Apply(m); err != nil {
			return nil, err
		}
	}
	for _, r := range p.Resized {
		rc, ok := m.View(r.ResourceID)
		if !ok {
			return nil, fmt.Errorf("%s: no resource view %q: %w", r, r.ResourceID, ErrInapplicable)
		}
		if loc, _ := m.Mapping.VMLocation(r.VM); m.Mapping.VMState(r.VM) != types.VMStateRunning || loc != r.Node {
			return nil, fmt.Errorf("%s: vm is not running there: %w", r, ErrInapplicable)
		}
		rc.SetConsumption(r.VM, r.Amount)
	}
	return m, nil
}

func (p *Plan) String() string {
	var b strings.Builder
	for _, a := range p.Actions() {
		b.WriteString(a.String())
		b.WriteByte('\n')
	}
	return b.String()
}
