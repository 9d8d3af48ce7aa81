package csp

import (
	"errors"
	"fmt"
)

// ErrContradiction is matched by every propagation failure.
var ErrContradiction = errors.New("contradiction")

// ContradictionError reports the variable whose domain became empty, or the
// propagator that detected an inconsistency.
type ContradictionError struct {
	Var    string
	Reason string
}

func (e *ContradictionError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("contradiction on %s: %s", e.Var, e.Reason)
	}
	return fmt.Sprintf("contradiction on %s", e.Var)
}

// Is makes errors.Is(err, ErrContradiction) hold.
func (e *ContradictionError) Is(target error) bool {
	return target == ErrContradiction
}

// Fail builds a contradiction raised by a propagator rather than by an
// emptied domain.
func Fail(source, reason string) error {
	return &ContradictionError{Var: source, Reason: reason}
}

// Var is a handle on a variable owned by a Store.
type Var int

// Propagator narrows the domains of the variables it watches.
// Propagate is re-invoked whenever one of those variables changes and must
// only ever narrow domains.
type Propagator interface {
	Vars() []Var
	Propagate(s *Store) error
}

type trailEntry struct {
	v   Var
	dom domain
}

// Stats counts the work done by a store.
type Stats struct {
	Propagations int
	Failures     int
	Nodes        int
	Backtracks   int
}

// Store is the arena owning every variable domain of one problem.
// All narrowing goes through SetLB, SetUB, Instantiate and Remove.
type Store struct {
	doms  []domain
	names []string

	props    []Propagator
	watchers [][]int
	queue    []int
	queued   []bool

	trail  []trailEntry
	worlds []int
	saved  []int
	world  int
	nextID int

	stats Stats
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{}
}

func (s *Store) add(name string, d domain) Var {
	v := Var(len(s.doms))
	s.doms = append(s.doms, d)
	s.names = append(s.names, name)
	s.watchers = append(s.watchers, nil)
	s.saved = append(s.saved, -1)
	return v
}

// IntVar creates a variable ranging over [lb, ub].
func (s *Store) IntVar(name string, lb, ub int) (Var, error) {
	if lb > ub {
		return 0, fmt.Errorf("variable %s: empty interval [%d,%d]", name, lb, ub)
	}
	return s.add(name, boundedDomain(lb, ub)), nil
}

// EnumVar creates a variable ranging over the given values.
func (s *Store) EnumVar(name string, values ...int) (Var, error) {
	if len(values) == 0 {
		return 0, fmt.Errorf("variable %s: no values", name)
	}
	return s.add(name, enumDomain(values)), nil
}

// BoolVar creates a variable ranging over {0, 1}.
func (s *Store) BoolVar(name string) Var {
	return s.add(name, boundedDomain(0, 1))
}

// Const creates a variable bound to x.
func (s *Store) Const(name string, x int) Var {
	return s.add(name, boundedDomain(x, x))
}

// NumVars returns the number of variables in the store.
func (s *Store) NumVars() int { return len(s.doms) }

// Name returns the label of v.
func (s *Store) Name(v Var) string { return s.names[v] }

// LB returns the lower bound of v.
func (s *Store) LB(v Var) int { return s.doms[v].lb }

// UB returns the upper bound of v.
func (s *Store) UB(v Var) int { return s.doms[v].ub }

// Bound reports whether v holds a single value.
func (s *Store) Bound(v Var) bool { return s.doms[v].bound() }

// Value returns the value of a bound variable. It panics otherwise.
func (s *Store) Value(v Var) int {
	d := s.doms[v]
	if !d.bound() {
		panic(fmt.Sprintf("csp: variable %s is not bound (%s)", s.names[v], d))
	}
	return d.lb
}

// Contains reports whether x is still in the domain of v.
func (s *Store) Contains(v Var, x int) bool { return s.doms[v].contains(x) }

// Size returns the number of values left in the domain of v.
func (s *Store) Size(v Var) int { return s.doms[v].size() }

// Values lists the values left in the domain of v.
func (s *Store) Values(v Var) []int {
	d := s.doms[v]
	if d.vals != nil {
		return append([]int(nil), d.vals...)
	}
	out := make([]int, 0, d.size())
	for x := d.lb; x <= d.ub; x++ {
		out = append(out, x)
	}
	return out
}

// Describe renders v and its domain, for logs and errors.
func (s *Store) Describe(v Var) string {
	return fmt.Sprintf("%s=%s", s.names[v], s.doms[v])
}

// SetLB raises the lower bound of v to x.
func (s *Store) SetLB(v Var, x int) error {
	return s.update(v, s.doms[v].withLB(x))
}

// SetUB lowers the upper bound of v to x.
func (s *Store) SetUB(v Var, x int) error {
	return s.update(v, s.doms[v].withUB(x))
}

// Instantiate binds v to x.
func (s *Store) Instantiate(v Var, x int) error {
	d := s.doms[v]
	if !d.contains(x) {
		return &ContradictionError{Var: s.names[v], Reason: fmt.Sprintf("%d not in %s", x, d)}
	}
	return s.update(v, boundedDomain(x, x))
}

// Remove removes x from the domain of v.
func (s *Store) Remove(v Var, x int) error {
	return s.update(v, s.doms[v].without(x))
}

// update is the single narrowing choke point: it refuses to widen a domain,
// saves the previous domain on the trail and schedules the watchers.
func (s *Store) update(v Var, nd domain) error {
	old := s.doms[v]
	if nd.empty() {
		return &ContradictionError{Var: s.names[v]}
	}
	if nd.lb == old.lb && nd.ub == old.ub && nd.size() == old.size() {
		return nil
	}
	if nd.lb < old.lb || nd.ub > old.ub || nd.size() > old.size() {
		panic(fmt.Sprintf("csp: domain of %s widened from %s to %s", s.names[v], old, nd))
	}
	if len(s.worlds) > 0 && s.saved[v] != s.world {
		s.trail = append(s.trail, trailEntry{v: v, dom: old})
		s.saved[v] = s.world
	}
	s.doms[v] = nd
	for _, p := range s.watchers[v] {
		s.schedule(p)
	}
	return nil
}

// Post registers a propagator and schedules its first run.
func (s *Store) Post(p Propagator) {
	id := len(s.props)
	s.props = append(s.props, p)
	s.queued = append(s.queued, false)
	seen := make(map[Var]struct{})
	for _, v := range p.Vars() {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		s.watchers[v] = append(s.watchers[v], id)
	}
	s.schedule(id)
}

func (s *Store) schedule(id int) {
	if s.queued[id] {
		return
	}
	s.queued[id] = true
	s.queue = append(s.queue, id)
}

// Fixpoint runs the scheduled propagators until none is left or one fails.
func (s *Store) Fixpoint() error {
	for len(s.queue) > 0 {
		id := s.queue[0]
		s.queue = s.queue[1:]
		s.queued[id] = false
		s.stats.Propagations++
		if err := s.props[id].Propagate(s); err != nil {
			s.flush()
			if errors.Is(err, ErrContradiction) {
				s.stats.Failures++
			}
			return err
		}
	}
	return nil
}

func (s *Store) flush() {
	for _, id := range s.queue {
		s.queued[id] = false
	}
	s.queue = s.queue[:0]
}

// Push opens a new world; domain changes made from now on are undone by Pop.
func (s *Store) Push() {
	s.nextID++
	s.worlds = append(s.worlds, len(s.trail))
	s.world = s.nextID
}

// Pop restores the domains saved when the current world was opened.
func (s *Store) Pop() {
	n := len(s.worlds)
	if n == 0 {
		return
	}
	mark := s.worlds[n-1]
	s.worlds = s.worlds[:n-1]
	for i := len(s.trail) - 1; i >= mark; i-- {
		e := s.trail[i]
		s.doms[e.v] = e.dom
		s.saved[e.v] = -1
	}
	s.trail = s.trail[:mark]
	s.flush()
	s.nextID++
	s.world = s.nextID
	s.stats.Backtracks++
}

// Depth returns the number of open worlds.
func (s *Store) Depth() int { return len(s.worlds) }

// Stats returns the work counters.
func (s *Store) Stats() Stats { return s.stats }
