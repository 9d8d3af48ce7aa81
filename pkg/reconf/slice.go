package reconf

import (
	"fmt"

	"github.com/cuemby/reconf/pkg/csp"
)

// Slice is the occupation of a node by an entity over [Start, End).
// A consuming slice is the entity on its current node, a demanding slice
// the entity on its future node.
type Slice struct {
	Subject  string
	Hoster   csp.Var
	Start    csp.Var
	End      csp.Var
	Duration csp.Var
}

// newSlice links start, end and a new duration variable, and keeps the
// slice inside the horizon
func (p *Problem) newSlice(label, subject string, hoster, start, end csp.Var) *Slice {
	s := &Slice{
		Subject:  subject,
		Hoster:   hoster,
		Start:    start,
		End:      end,
		Duration: p.makeDuration(fmt.Sprintf("%s_duration(%s)", label, subject)),
	}
	p.Post(&csp.Sum{X: s.Start, Y: s.Duration, Z: s.End})
	p.Post(&csp.LessEq{X: s.End, Y: p.end})
	return s
}

// Describe renders the slice with the current domains of its variables
func (s *Slice) Describe(st *csp.Store) string {
	return fmt.Sprintf("%s{on=%s, start=%s, end=%s}", s.Subject,
		st.Describe(s.Hoster), st.Describe(s.Start), st.Describe(s.End))
}

func (s *Slice) vars() []csp.Var {
	return []csp.Var{s.Hoster, s.Start, s.End, s.Duration}
}
