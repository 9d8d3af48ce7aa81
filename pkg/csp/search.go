package csp

import (
	"context"
	"errors"
)

// ErrNodeLimit is returned by Solve when the node budget is exhausted
// before the search space is.
var ErrNodeLimit = errors.New("search node limit reached")

// SearchOptions bounds a depth-first search.
type SearchOptions struct {
	// Order lists the variables to branch on first. Every other unbound
	// variable is labeled afterwards, in creation order.
	Order []Var

	// Prefer lists, per variable, the values to try before the others.
	// The remaining values are tried in ascending order.
	Prefer map[Var][]int

	// NodeLimit caps the number of decisions; zero means unlimited.
	NodeLimit int
}

// Solve labels every variable of the store by chronological depth-first
// search: the first preferred value still in the domain, or else the
// smallest one, is tried first and, on failure, is excluded before trying
// again. The propagation fixpoint runs after every
// decision.
//
// It returns true when every variable is bound, false when the problem is
// proven infeasible. On success the domains are left bound; on failure they
// are restored to their state before the call.
func (s *Store) Solve(ctx context.Context, opts SearchOptions) (bool, error) {
	if err := s.Fixpoint(); err != nil {
		if errors.Is(err, ErrContradiction) {
			return false, nil
		}
		return false, err
	}
	order := make([]Var, 0, s.NumVars())
	inOrder := make(map[Var]struct{}, len(opts.Order))
	for _, v := range opts.Order {
		if _, ok := inOrder[v]; !ok {
			inOrder[v] = struct{}{}
			order = append(order, v)
		}
	}
	for v := Var(0); int(v) < s.NumVars(); v++ {
		if _, ok := inOrder[v]; !ok {
			order = append(order, v)
		}
	}
	return s.dfs(ctx, order, 0, opts)
}

func (s *Store) dfs(ctx context.Context, order []Var, from int, opts SearchOptions) (bool, error) {
	i := from
	for i < len(order) && s.Bound(order[i]) {
		i++
	}
	if i == len(order) {
		return true, nil
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if opts.NodeLimit > 0 && s.stats.Nodes >= opts.NodeLimit {
		return false, ErrNodeLimit
	}
	s.stats.Nodes++

	v := order[i]
	x := s.LB(v)
	for _, p := range opts.Prefer[v] {
		if s.Contains(v, p) {
			x = p
			break
		}
	}

	s.Push()
	err := s.Instantiate(v, x)
	if err == nil {
		err = s.Fixpoint()
	}
	if err == nil {
		ok, serr := s.dfs(ctx, order, i, opts)
		if ok || serr != nil {
			if serr != nil {
				s.Pop()
			}
			return ok, serr
		}
	} else if !errors.Is(err, ErrContradiction) {
		s.Pop()
		return false, err
	}
	s.Pop()

	// Refutation: x is excluded, the variable stays undecided.
	s.Push()
	err = s.Remove(v, x)
	if err == nil {
		err = s.Fixpoint()
	}
	if err != nil {
		s.Pop()
		if errors.Is(err, ErrContradiction) {
			return false, nil
		}
		return false, err
	}
	ok, serr := s.dfs(ctx, order, i, opts)
	if !ok || serr != nil {
		s.Pop()
	}
	return ok, serr
}
