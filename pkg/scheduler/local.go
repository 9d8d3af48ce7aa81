package scheduler

import (
	"fmt"
	"sort"

	"github.com/cuemby/reconf/pkg/csp"
)

// local schedules the slices of a single node. It is rebuilt on every
// propagation from the slices currently bound to the node.
type local struct {
	ts *TaskScheduler
	me int

	// out lists the consuming slices hosted on the node, in lists the
	// demanding slices whose hoster is bound to the node
	out []int
	in  []int

	inSet  map[int]bool
	outSet map[int]bool

	moments []int
	min     [][]int
	max     [][]int
}

func newLocal(ts *TaskScheduler, me int, out, in []int) *local {
	l := &local{
		ts:     ts,
		me:     me,
		out:    out,
		in:     in,
		inSet:  make(map[int]bool, len(in)),
		outSet: make(map[int]bool, len(out)),
	}
	for _, j := range in {
		l.inSet[j] = true
	}
	for _, j := range out {
		l.outSet[j] = true
	}
	return l
}

func (l *local) dims() int { return len(l.ts.cfg.Capacities) }

func (l *local) capacity(dim int) int { return l.ts.cfg.Capacities[dim][l.me] }

func (l *local) propagate(s *csp.Store) error {
	l.computeProfiles(s)
	if err := l.checkInvariant(s); err != nil {
		return err
	}
	if err := l.updateHostingWindow(s); err != nil {
		return err
	}
	if err := l.updateCEndsSup(s); err != nil {
		return err
	}
	if err := l.updateDStartsInf(s); err != nil {
		return err
	}
	return l.updateDStartsSup(s)
}

// computeProfiles builds the min and max usage profiles of the node over
// its critical moments. Both start from the usage of the consuming slices.
// A leaving slice is removed from min at its earliest end and from max at
// its latest end, unless it is replaced by a larger demanding slice of the
// same VM on this node: then the release is postponed in min.
// An arriving slice is added to min at its latest start and to max at its
// earliest start.
func (l *local) computeProfiles(s *csp.Store) {
	cfg := l.ts.cfg
	set := map[int]struct{}{0: {}}
	for _, j := range l.out {
		set[s.LB(cfg.CEnds[j])] = struct{}{}
		set[s.UB(cfg.CEnds[j])] = struct{}{}
	}
	for _, j := range l.in {
		set[s.LB(cfg.DStarts[j])] = struct{}{}
		set[s.UB(cfg.DStarts[j])] = struct{}{}
	}
	l.moments = l.moments[:0]
	for t := range set {
		l.moments = append(l.moments, t)
	}
	sort.Ints(l.moments)
	pos := make(map[int]int, len(l.moments))
	for i, t := range l.moments {
		pos[t] = i
	}

	l.min = make([][]int, l.dims())
	l.max = make([][]int, l.dims())
	for d := 0; d < l.dims(); d++ {
		l.min[d] = make([]int, len(l.moments))
		l.max[d] = make([]int, len(l.moments))
		for _, j := range l.out {
			l.min[d][0] += cfg.CUsages[d][j]
		}
		l.max[d][0] = l.min[d][0]
	}

	for _, j := range l.out {
		early, late := pos[s.LB(cfg.CEnds[j])], pos[s.UB(cfg.CEnds[j])]
		postponed := l.associatedToDSliceHere(j) && l.increasing(j)
		for d := 0; d < l.dims(); d++ {
			c := cfg.CUsages[d][j]
			if postponed {
				l.max[d][early] -= c
				l.min[d][late] -= c
			} else {
				l.min[d][early] -= c
				l.max[d][late] -= c
			}
		}
	}
	for _, j := range l.in {
		early, late := pos[s.LB(cfg.DStarts[j])], pos[s.UB(cfg.DStarts[j])]
		for d := 0; d < l.dims(); d++ {
			l.min[d][late] += cfg.DUsages[d][j]
			l.max[d][early] += cfg.DUsages[d][j]
		}
	}

	for d := 0; d < l.dims(); d++ {
		for i := 1; i < len(l.moments); i++ {
			l.min[d][i] += l.min[d][i-1]
			l.max[d][i] += l.max[d][i-1]
		}
	}
}

func (l *local) checkInvariant(s *csp.Store) error {
	cfg := l.ts.cfg
	for i, t := range l.moments {
		for d := 0; d < l.dims(); d++ {
			if l.min[d][i] > l.capacity(d) {
				return l.fail("usage %d over capacity %d at t=%d on dimension %d", l.min[d][i], l.capacity(d), t, d)
			}
		}
	}
	early, last := cfg.Early[l.me], cfg.Last[l.me]
	for _, j := range l.in {
		if s.UB(cfg.DStarts[j]) < s.LB(early) {
			return l.fail("demanding slice %d must start at %d, before the node can host it (%d)",
				j, s.UB(cfg.DStarts[j]), s.LB(early))
		}
	}
	for _, j := range l.out {
		if s.LB(cfg.CEnds[j]) > s.UB(last) {
			return l.fail("consuming slice %d ends at %d, after the node stops hosting (%d)",
				j, s.LB(cfg.CEnds[j]), s.UB(last))
		}
	}
	return nil
}

// updateHostingWindow keeps every slice on the node within the moments the
// node can host it, and the window around every slice.
func (l *local) updateHostingWindow(s *csp.Store) error {
	cfg := l.ts.cfg
	early, last := cfg.Early[l.me], cfg.Last[l.me]
	for _, j := range l.in {
		if err := s.SetLB(cfg.DStarts[j], s.LB(early)); err != nil {
			return err
		}
		if err := s.SetUB(early, s.UB(cfg.DStarts[j])); err != nil {
			return err
		}
	}
	for _, j := range l.out {
		if err := s.SetUB(cfg.CEnds[j], s.UB(last)); err != nil {
			return err
		}
		if err := s.SetLB(last, s.LB(cfg.CEnds[j])); err != nil {
			return err
		}
	}
	return nil
}

// updateCEndsSup makes a leaving slice end before the first moment the
// committed usage plus its own would overload the node.
func (l *local) updateCEndsSup(s *csp.Store) error {
	cfg := l.ts.cfg
	for _, j := range l.out {
		end := cfg.CEnds[j]
		if s.Bound(end) || l.associatedToDSliceHere(j) {
			continue
		}
		lb, ub := s.LB(end), s.UB(end)
		for i, t := range l.moments {
			if t >= ub {
				break
			}
			if t >= lb && l.exceeds(l.min, i, cfg.CUsages, j) {
				if err := s.SetUB(end, min(t, s.UB(cfg.Last[l.me]))); err != nil {
					return err
				}
				break
			}
		}
	}
	return nil
}

// updateDStartsInf makes an arriving slice start after the last moment the
// committed usage plus its own would overload the node.
func (l *local) updateDStartsInf(s *csp.Store) error {
	cfg := l.ts.cfg
	for _, j := range l.in {
		start := cfg.DStarts[j]
		if s.Bound(start) || l.associatedToCSliceHere(j) {
			continue
		}
		lb, ub := s.LB(start), s.UB(start)
		for i := len(l.moments) - 1; i > 0; i-- {
			t := l.moments[i]
			if t <= lb {
				break
			}
			if t <= ub && l.exceeds(l.min, i-1, cfg.DUsages, j) {
				if err := s.SetLB(start, max(t, s.LB(cfg.Early[l.me]))); err != nil {
					return err
				}
				break
			}
		}
	}
	return nil
}

// updateDStartsSup caps the start of an arriving slice to the earliest
// moment from which the worst-case usage, itself included, fits the node
// until the end. Starting any later brings nothing.
func (l *local) updateDStartsSup(s *csp.Store) error {
	cfg := l.ts.cfg
	for _, j := range l.in {
		start := cfg.DStarts[j]
		if s.Bound(start) || l.associatedToCSliceHere(j) {
			continue
		}
		lb := s.LB(start)
		lastSup := -1
		for i := len(l.moments) - 1; i >= 0; i-- {
			t := l.moments[i]
			fits := true
			for d := 0; d < l.dims(); d++ {
				used := l.max[d][i]
				if t < lb {
					used += cfg.DUsages[d][j]
				}
				if used > l.capacity(d) {
					fits = false
					break
				}
			}
			if !fits {
				break
			}
			lastSup = t
		}
		if lastSup == -1 || s.UB(start) <= lastSup {
			continue
		}
		ub := max(lb, lastSup, s.UB(cfg.Early[l.me]))
		if err := s.SetUB(start, ub); err != nil {
			return err
		}
	}
	return nil
}

func (l *local) exceeds(profile [][]int, i int, usages [][]int, j int) bool {
	for d := 0; d < l.dims(); d++ {
		if profile[d][i]+usages[d][j] > l.capacity(d) {
			return true
		}
	}
	return false
}

// increasing reports whether the VM of consuming slice j demands more than
// it consumes, in at least one dimension.
func (l *local) increasing(j int) bool {
	dj := l.ts.revAssocs[j]
	for d := 0; d < l.dims(); d++ {
		if l.ts.cfg.DUsages[d][dj] > l.ts.cfg.CUsages[d][j] {
			return true
		}
	}
	return false
}

func (l *local) associatedToDSliceHere(c int) bool {
	dj := l.ts.revAssocs[c]
	return dj != NoAssociation && l.inSet[dj]
}

func (l *local) associatedToCSliceHere(d int) bool {
	cj := l.ts.cfg.Assocs[d]
	return cj != NoAssociation && l.outSet[cj]
}

func (l *local) fail(format string, args ...any) error {
	return csp.Fail(fmt.Sprintf("node %d", l.me), fmt.Sprintf(format, args...))
}
