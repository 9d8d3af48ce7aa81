package csp

import "fmt"

// Offset enforces y = x + c.
type Offset struct {
	X, Y Var
	C    int
}

func (p *Offset) Vars() []Var { return []Var{p.X, p.Y} }

func (p *Offset) Propagate(s *Store) error {
	if err := s.SetLB(p.Y, s.LB(p.X)+p.C); err != nil {
		return err
	}
	if err := s.SetUB(p.Y, s.UB(p.X)+p.C); err != nil {
		return err
	}
	if err := s.SetLB(p.X, s.LB(p.Y)-p.C); err != nil {
		return err
	}
	return s.SetUB(p.X, s.UB(p.Y)-p.C)
}

// LessEq enforces x <= y + c.
type LessEq struct {
	X, Y Var
	C    int
}

func (p *LessEq) Vars() []Var { return []Var{p.X, p.Y} }

func (p *LessEq) Propagate(s *Store) error {
	if err := s.SetUB(p.X, s.UB(p.Y)+p.C); err != nil {
		return err
	}
	return s.SetLB(p.Y, s.LB(p.X)-p.C)
}

// Sum enforces z = x + y.
type Sum struct {
	X, Y, Z Var
}

func (p *Sum) Vars() []Var { return []Var{p.X, p.Y, p.Z} }

func (p *Sum) Propagate(s *Store) error {
	if err := s.SetLB(p.Z, s.LB(p.X)+s.LB(p.Y)); err != nil {
		return err
	}
	if err := s.SetUB(p.Z, s.UB(p.X)+s.UB(p.Y)); err != nil {
		return err
	}
	if err := s.SetLB(p.X, s.LB(p.Z)-s.UB(p.Y)); err != nil {
		return err
	}
	if err := s.SetUB(p.X, s.UB(p.Z)-s.LB(p.Y)); err != nil {
		return err
	}
	if err := s.SetLB(p.Y, s.LB(p.Z)-s.UB(p.X)); err != nil {
		return err
	}
	return s.SetUB(p.Y, s.UB(p.Z)-s.LB(p.X))
}

// Not enforces b = 1 - a over two boolean variables.
type Not struct {
	A, B Var
}

func (p *Not) Vars() []Var { return []Var{p.A, p.B} }

func (p *Not) Propagate(s *Store) error {
	if s.Bound(p.A) {
		if err := s.Instantiate(p.B, 1-s.Value(p.A)); err != nil {
			return err
		}
	}
	if s.Bound(p.B) {
		return s.Instantiate(p.A, 1-s.Value(p.B))
	}
	return nil
}

// TimesBool enforces z = b * x with b boolean and x non-negative.
type TimesBool struct {
	B, X, Z Var
}

func (p *TimesBool) Vars() []Var { return []Var{p.B, p.X, p.Z} }

func (p *TimesBool) Propagate(s *Store) error {
	if s.Bound(p.B) {
		if s.Value(p.B) == 0 {
			return s.Instantiate(p.Z, 0)
		}
		return equalBounds(s, p.X, p.Z)
	}
	if err := s.SetLB(p.Z, 0); err != nil {
		return err
	}
	if err := s.SetUB(p.Z, s.UB(p.X)); err != nil {
		return err
	}
	if s.LB(p.Z) > 0 {
		return s.Instantiate(p.B, 1)
	}
	if s.LB(p.X) > s.UB(p.Z) {
		return s.Instantiate(p.B, 0)
	}
	return nil
}

// ReifiedNotEqual enforces b <=> (x != y).
type ReifiedNotEqual struct {
	B, X, Y Var
}

func (p *ReifiedNotEqual) Vars() []Var { return []Var{p.B, p.X, p.Y} }

func (p *ReifiedNotEqual) Propagate(s *Store) error {
	if s.Bound(p.B) {
		if s.Value(p.B) == 1 {
			if s.Bound(p.X) {
				if err := s.Remove(p.Y, s.Value(p.X)); err != nil {
					return err
				}
			}
			if s.Bound(p.Y) {
				return s.Remove(p.X, s.Value(p.Y))
			}
			return nil
		}
		return equalValues(s, p.X, p.Y)
	}
	if s.Bound(p.X) && s.Bound(p.Y) {
		if s.Value(p.X) == s.Value(p.Y) {
			return s.Instantiate(p.B, 0)
		}
		return s.Instantiate(p.B, 1)
	}
	if !intersects(s, p.X, p.Y) {
		return s.Instantiate(p.B, 1)
	}
	return nil
}

// IFFEqConst enforces b <=> (x == c) as a two-way fixpoint: binding b
// tightens x to or away from c, and x reaching or excluding c binds b.
type IFFEqConst struct {
	B, X Var
	C    int
}

func (p *IFFEqConst) Vars() []Var { return []Var{p.B, p.X} }

func (p *IFFEqConst) Propagate(s *Store) error {
	if s.Bound(p.B) {
		if s.Value(p.B) == 1 {
			return s.Instantiate(p.X, p.C)
		}
		return s.Remove(p.X, p.C)
	}
	if !s.Contains(p.X, p.C) {
		return s.Instantiate(p.B, 0)
	}
	if s.Bound(p.X) {
		return s.Instantiate(p.B, 1)
	}
	return nil
}

// ImpliesEqConst enforces b => (x == c).
type ImpliesEqConst struct {
	B, X Var
	C    int
}

func (p *ImpliesEqConst) Vars() []Var { return []Var{p.B, p.X} }

func (p *ImpliesEqConst) Propagate(s *Store) error {
	if s.Bound(p.B) && s.Value(p.B) == 1 {
		return s.Instantiate(p.X, p.C)
	}
	if !s.Contains(p.X, p.C) {
		return s.Instantiate(p.B, 0)
	}
	return nil
}

// Choose enforces z = (b ? x1 : x0).
type Choose struct {
	B, X0, X1, Z Var
}

func (p *Choose) Vars() []Var { return []Var{p.B, p.X0, p.X1, p.Z} }

func (p *Choose) Propagate(s *Store) error {
	if s.Bound(p.B) {
		if s.Value(p.B) == 1 {
			return equalBounds(s, p.X1, p.Z)
		}
		return equalBounds(s, p.X0, p.Z)
	}
	if err := s.SetLB(p.Z, min(s.LB(p.X0), s.LB(p.X1))); err != nil {
		return err
	}
	if err := s.SetUB(p.Z, max(s.UB(p.X0), s.UB(p.X1))); err != nil {
		return err
	}
	if s.UB(p.Z) < s.LB(p.X1) || s.LB(p.Z) > s.UB(p.X1) {
		return s.Instantiate(p.B, 0)
	}
	if s.UB(p.Z) < s.LB(p.X0) || s.LB(p.Z) > s.UB(p.X0) {
		return s.Instantiate(p.B, 1)
	}
	return nil
}

// Func adapts a closure into a propagator, for one-off links between
// variables that do not deserve a dedicated type.
type Func struct {
	Label string
	On    []Var
	Fn    func(s *Store) error
}

func (p *Func) Vars() []Var { return p.On }

func (p *Func) Propagate(s *Store) error { return p.Fn(s) }

func (p *Func) String() string { return fmt.Sprintf("func(%s)", p.Label) }

func equalBounds(s *Store, a, b Var) error {
	if err := s.SetLB(a, s.LB(b)); err != nil {
		return err
	}
	if err := s.SetUB(a, s.UB(b)); err != nil {
		return err
	}
	if err := s.SetLB(b, s.LB(a)); err != nil {
		return err
	}
	return s.SetUB(b, s.UB(a))
}

// equalValues restricts x and y to their common values.
func equalValues(s *Store, x, y Var) error {
	if err := equalBounds(s, x, y); err != nil {
		return err
	}
	if s.doms[x].vals == nil && s.doms[y].vals == nil {
		return nil
	}
	for _, v := range s.Values(x) {
		if !s.Contains(y, v) {
			if err := s.Remove(x, v); err != nil {
				return err
			}
		}
	}
	for _, v := range s.Values(y) {
		if !s.Contains(x, v) {
			if err := s.Remove(y, v); err != nil {
				return err
			}
		}
	}
	return nil
}

func intersects(s *Store, x, y Var) bool {
	if s.UB(x) < s.LB(y) || s.UB(y) < s.LB(x) {
		return false
	}
	if s.doms[x].vals == nil && s.doms[y].vals == nil {
		return true
	}
	a, b := x, y
	if s.Size(b) < s.Size(a) {
		a, b = b, a
	}
	for _, v := range s.Values(a) {
		if s.Contains(b, v) {
			return true
		}
	}
	return false
}
