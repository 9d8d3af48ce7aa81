package scheduler

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/cuemby/reconf/pkg/csp"
)

// NoAssociation marks a slice with no counterpart for the same VM
const NoAssociation = -1

// Config describes the slices and nodes the task scheduler works on.
// Usages and capacities are indexed by dimension first.
type Config struct {
	// Capacities[d][k] is the capacity of node k on dimension d
	Capacities [][]int

	// Consuming slices: constant hosters, end moments and usages
	CHosters []csp.Var
	CEnds    []csp.Var
	CUsages  [][]int

	// Demanding slices: hosters, start moments and usages
	DHosters []csp.Var
	DStarts  []csp.Var
	DUsages  [][]int

	// Early[k] is the earliest moment node k can host a demanding slice,
	// Last[k] the latest moment it can host a consuming slice
	Early []csp.Var
	Last  []csp.Var

	// Assocs[j] is the consuming slice of the VM owning demanding slice j,
	// or NoAssociation
	Assocs []int

	Logger zerolog.Logger
}

// TaskScheduler is a propagator keeping the resource usage of every node
// under its capacity, at every moment, while slices leave and arrive.
type TaskScheduler struct {
	cfg       Config
	revAssocs []int
	vars      []csp.Var
	nodes     int
}

// New creates a task scheduler. It fails when the slice arrays are
// inconsistent with each other.
func New(cfg Config) (*TaskScheduler, error) {
	if len(cfg.Capacities) == 0 {
		return nil, errors.New("task scheduler needs at least one dimension")
	}
	nodes := len(cfg.Capacities[0])
	if len(cfg.Early) != nodes || len(cfg.Last) != nodes {
		return nil, fmt.Errorf("task scheduler: %d nodes but %d early and %d last moments", nodes, len(cfg.Early), len(cfg.Last))
	}
	if len(cfg.CEnds) != len(cfg.CHosters) {
		return nil, fmt.Errorf("task scheduler: %d consuming hosters for %d ends", len(cfg.CHosters), len(cfg.CEnds))
	}
	if len(cfg.DStarts) != len(cfg.DHosters) || len(cfg.Assocs) != len(cfg.DHosters) {
		return nil, fmt.Errorf("task scheduler: %d demanding hosters, %d starts, %d associations",
			len(cfg.DHosters), len(cfg.DStarts), len(cfg.Assocs))
	}
	if len(cfg.CUsages) != len(cfg.Capacities) || len(cfg.DUsages) != len(cfg.Capacities) {
		return nil, fmt.Errorf("task scheduler: usages and capacities have different dimensions")
	}
	for d := range cfg.Capacities {
		if len(cfg.Capacities[d]) != nodes {
			return nil, fmt.Errorf("task scheduler: dimension %d has %d capacities for %d nodes", d, len(cfg.Capacities[d]), nodes)
		}
		if len(cfg.CUsages[d]) != len(cfg.CEnds) || len(cfg.DUsages[d]) != len(cfg.DStarts) {
			return nil, fmt.Errorf("task scheduler: dimension %d does not size every slice", d)
		}
	}

	ts := &TaskScheduler{cfg: cfg, nodes: nodes}
	ts.revAssocs = make([]int, len(cfg.CEnds))
	for i := range ts.revAssocs {
		ts.revAssocs[i] = NoAssociation
	}
	for dj, cj := range cfg.Assocs {
		if cj == NoAssociation {
			continue
		}
		if cj < 0 || cj >= len(cfg.CEnds) {
			return nil, fmt.Errorf("task scheduler: demanding slice %d associated to unknown consuming slice %d", dj, cj)
		}
		ts.revAssocs[cj] = dj
	}

	ts.vars = append(ts.vars, cfg.CHosters...)
	ts.vars = append(ts.vars, cfg.CEnds...)
	ts.vars = append(ts.vars, cfg.DHosters...)
	ts.vars = append(ts.vars, cfg.DStarts...)
	ts.vars = append(ts.vars, cfg.Early...)
	ts.vars = append(ts.vars, cfg.Last...)
	return ts, nil
}

// Vars returns every variable the scheduler reacts to
func (ts *TaskScheduler) Vars() []csp.Var {
	return ts.vars
}

// Propagate removes from every demanding slice the nodes too small to host
// it, then runs the local scheduler of every node on the slices bound to it.
func (ts *TaskScheduler) Propagate(s *csp.Store) error {
	if err := ts.filterHosters(s); err != nil {
		return err
	}

	outs := make([][]int, ts.nodes)
	ins := make([][]int, ts.nodes)
	for j, h := range ts.cfg.CHosters {
		if s.Bound(h) {
			k := s.Value(h)
			outs[k] = append(outs[k], j)
		}
	}
	for j, h := range ts.cfg.DHosters {
		if s.Bound(h) {
			k := s.Value(h)
			ins[k] = append(ins[k], j)
		}
	}

	for k := 0; k < ts.nodes; k++ {
		if len(outs[k]) == 0 && len(ins[k]) == 0 {
			continue
		}
		if err := newLocal(ts, k, outs[k], ins[k]).propagate(s); err != nil {
			ts.cfg.Logger.Debug().
				Int("node", k).
				Err(err).
				Msg("Node schedule is infeasible")
			return err
		}
	}
	return nil
}

func (ts *TaskScheduler) filterHosters(s *csp.Store) error {
	for j, h := range ts.cfg.DHosters {
		for _, k := range s.Values(h) {
			if k < 0 || k >= ts.nodes {
				if err := s.Remove(h, k); err != nil {
					return err
				}
				continue
			}
			for d := range ts.cfg.Capacities {
				if ts.cfg.DUsages[d][j] > ts.cfg.Capacities[d][k] {
					if err := s.Remove(h, k); err != nil {
						return err
					}
					break
				}
			}
		}
	}
	return nil
}

func (ts *TaskScheduler) String() string {
	return fmt.Sprintf("taskScheduler(%d nodes, %d cSlices, %d dSlices)", ts.nodes, len(ts.cfg.CEnds), len(ts.cfg.DStarts))
}
