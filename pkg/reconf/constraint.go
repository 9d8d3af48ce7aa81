package reconf

import "github.com/cuemby/reconf/pkg/types"

// Constraint restricts the solutions of a problem. Inject may only narrow
// the domains of the problem variables or post propagators on them; it must
// run before the problem is solved.
type Constraint interface {
	Inject(p *Problem) error

	// MisplacedVMs returns the VMs of a model violating the constraint
	MisplacedVMs(m *types.Model) []types.VMID
}

// Inject injects every constraint into the problem, stopping at the first
// failure
func (p *Problem) Inject(cs ...Constraint) error {
	for _, c := range cs {
		if err := c.Inject(p); err != nil {
			return err
		}
	}
	return nil
}
