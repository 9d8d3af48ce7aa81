package reconf

import (
	"fmt"

	"github.com/cuemby/reconf/pkg/csp"
)

// hostingLink ties the state of a node to the demanding slices: a node
// ending offline hosts none of them, a node hosting one ends online.
type hostingLink struct {
	node    int
	state   csp.Var
	hosters []csp.Var
}

func (l *hostingLink) Vars() []csp.Var {
	return append([]csp.Var{l.state}, l.hosters...)
}

func (l *hostingLink) Propagate(s *csp.Store) error {
	if s.Bound(l.state) && s.Value(l.state) == 0 {
		for _, h := range l.hosters {
			if err := s.Remove(h, l.node); err != nil {
				return err
			}
		}
		return nil
	}
	for _, h := range l.hosters {
		if s.Bound(h) && s.Value(h) == l.node {
			return s.Instantiate(l.state, 1)
		}
	}
	return nil
}

func (l *hostingLink) String() string {
	return fmt.Sprintf("hostingLink(node=%d, slices=%d)", l.node, len(l.hosters))
}
