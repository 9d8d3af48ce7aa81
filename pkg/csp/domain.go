package csp

import (
	"fmt"
	"sort"
	"strings"
)

// domain is the set of values a variable may still take.
// A nil vals slice denotes the interval [lb, ub]; otherwise vals holds the
// sorted remaining values and lb/ub mirror its first and last element.
// Domains are never mutated in place once saved on the trail: every
// narrowing builds a new vals slice.
type domain struct {
	lb, ub int
	vals   []int
}

func boundedDomain(lb, ub int) domain {
	return domain{lb: lb, ub: ub}
}

func enumDomain(values []int) domain {
	vals := append([]int(nil), values...)
	sort.Ints(vals)
	out := vals[:0]
	for i, v := range vals {
		if i == 0 || v != vals[i-1] {
			out = append(out, v)
		}
	}
	return domain{lb: out[0], ub: out[len(out)-1], vals: out}
}

func (d domain) empty() bool {
	return d.lb > d.ub
}

func (d domain) bound() bool {
	return d.lb == d.ub
}

func (d domain) size() int {
	if d.empty() {
		return 0
	}
	if d.vals != nil {
		return len(d.vals)
	}
	return d.ub - d.lb + 1
}

func (d domain) contains(x int) bool {
	if x < d.lb || x > d.ub {
		return false
	}
	if d.vals == nil {
		return true
	}
	i := sort.SearchInts(d.vals, x)
	return i < len(d.vals) && d.vals[i] == x
}

// withLB returns the domain restricted to values >= x.
func (d domain) withLB(x int) domain {
	if x <= d.lb {
		return d
	}
	if d.vals == nil {
		return domain{lb: x, ub: d.ub}
	}
	i := sort.SearchInts(d.vals, x)
	return fromVals(d.vals[i:])
}

// withUB returns the domain restricted to values <= x.
func (d domain) withUB(x int) domain {
	if x >= d.ub {
		return d
	}
	if d.vals == nil {
		return domain{lb: d.lb, ub: x}
	}
	i := sort.SearchInts(d.vals, x+1)
	return fromVals(d.vals[:i])
}

// without returns the domain minus x. Removing an inner value of an
// interval domain converts it to an enumerated one.
func (d domain) without(x int) domain {
	if !d.contains(x) {
		return d
	}
	if d.vals == nil {
		switch x {
		case d.lb:
			return domain{lb: d.lb + 1, ub: d.ub}
		case d.ub:
			return domain{lb: d.lb, ub: d.ub - 1}
		}
		vals := make([]int, 0, d.ub-d.lb)
		for v := d.lb; v <= d.ub; v++ {
			if v != x {
				vals = append(vals, v)
			}
		}
		return fromVals(vals)
	}
	vals := make([]int, 0, len(d.vals)-1)
	for _, v := range d.vals {
		if v != x {
			vals = append(vals, v)
		}
	}
	return fromVals(vals)
}

// next returns the smallest value of the domain strictly greater than x.
func (d domain) next(x int) (int, bool) {
	if x >= d.ub {
		return 0, false
	}
	if d.vals == nil {
		if x < d.lb {
			return d.lb, true
		}
		return x + 1, true
	}
	i := sort.SearchInts(d.vals, x+1)
	return d.vals[i], true
}

func fromVals(vals []int) domain {
	if len(vals) == 0 {
		return domain{lb: 1, ub: 0}
	}
	cp := append([]int(nil), vals...)
	return domain{lb: cp[0], ub: cp[len(cp)-1], vals: cp}
}

func (d domain) String() string {
	switch {
	case d.empty():
		return "{}"
	case d.bound():
		return fmt.Sprintf("%d", d.lb)
	case d.vals == nil:
		return fmt.Sprintf("[%d,%d]", d.lb, d.ub)
	}
	parts := make([]string, len(d.vals))
	for i, v := range d.vals {
		parts[i] = fmt.Sprintf("%d", v)
	}
	return "{" + strings.Join(parts, ",") + "}"
}
