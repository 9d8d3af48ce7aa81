package scheduler

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/reconf/pkg/csp"
)

// oneNode builds a single node of capacity 2 hosting two VMs of usage 1.
// The first may leave in [0,10], the second stays until 10. A third VM of
// usage 1 arrives in [0,10].
type oneNode struct {
	s      *csp.Store
	cEnds  []csp.Var
	dStart csp.Var
	early  csp.Var
	last   csp.Var
}

func newOneNode(t *testing.T, capacity int) (*oneNode, *TaskScheduler) {
	t.Helper()
	s := csp.NewStore()
	n := &oneNode{s: s}
	host := s.Const("host", 0)
	c0, _ := s.IntVar("cEnd0", 0, 10)
	c1 := s.Const("cEnd1", 10)
	n.cEnds = []csp.Var{c0, c1}
	n.dStart, _ = s.IntVar("dStart0", 0, 10)
	n.early, _ = s.IntVar("early", 0, 10)
	n.last, _ = s.IntVar("last", 0, 10)

	ts, err := New(Config{
		Capacities: [][]int{{capacity}},
		CHosters:   []csp.Var{host, host},
		CEnds:      n.cEnds,
		CUsages:    [][]int{{1, 1}},
		DHosters:   []csp.Var{s.Const("dHost0", 0)},
		DStarts:    []csp.Var{n.dStart},
		DUsages:    [][]int{{1}},
		Early:      []csp.Var{n.early},
		Last:       []csp.Var{n.last},
		Assocs:     []int{NoAssociation},
	})
	require.NoError(t, err)
	s.Post(ts)
	return n, ts
}

func TestTaskScheduler_ArrivalWaitsForDeparture(t *testing.T) {
	n, _ := newOneNode(t, 2)
	s := n.s
	require.NoError(t, s.Fixpoint())
	assert.Equal(t, 0, s.LB(n.dStart))

	require.NoError(t, s.SetLB(n.cEnds[0], 5))
	require.NoError(t, s.Fixpoint())
	assert.Equal(t, 5, s.LB(n.dStart))
	assert.Equal(t, 10, s.UB(n.dStart))
	assert.Equal(t, 10, s.LB(n.last))
}

func TestTaskScheduler_DepartureBeforeArrival(t *testing.T) {
	n, _ := newOneNode(t, 2)
	s := n.s
	require.NoError(t, s.Instantiate(n.dStart, 3))
	require.NoError(t, s.Fixpoint())
	assert.Equal(t, 3, s.UB(n.cEnds[0]))
	assert.Equal(t, 3, s.UB(n.early))
}

func TestTaskScheduler_Overload(t *testing.T) {
	n, _ := newOneNode(t, 2)
	s := n.s
	require.NoError(t, s.SetLB(n.cEnds[0], 7))
	require.NoError(t, s.SetUB(n.dStart, 5))
	err := s.Fixpoint()
	require.Error(t, err)
	assert.True(t, errors.Is(err, csp.ErrContradiction))
}

func TestTaskScheduler_HostingWindow(t *testing.T) {
	t.Run("arrival after the node can host", func(t *testing.T) {
		n, _ := newOneNode(t, 3)
		s := n.s
		require.NoError(t, s.SetLB(n.early, 4))
		require.NoError(t, s.Fixpoint())
		assert.Equal(t, 4, s.LB(n.dStart))
	})

	t.Run("node ready before the arrival", func(t *testing.T) {
		n, _ := newOneNode(t, 3)
		s := n.s
		require.NoError(t, s.SetUB(n.dStart, 6))
		require.NoError(t, s.Fixpoint())
		assert.Equal(t, 6, s.UB(n.early))
	})

	t.Run("consuming slice ending too late", func(t *testing.T) {
		n, _ := newOneNode(t, 3)
		s := n.s
		require.NoError(t, s.SetUB(n.last, 8))
		assert.Error(t, s.Fixpoint())
	})
}

func TestTaskScheduler_FilterHosters(t *testing.T) {
	s := csp.NewStore()
	h, _ := s.IntVar("dHost0", 0, 2)
	start, _ := s.IntVar("dStart0", 0, 10)
	zero := s.Const("zero", 0)
	end := s.Const("end", 10)

	ts, err := New(Config{
		Capacities: [][]int{{2, 4, 8}, {16, 2, 16}},
		DHosters:   []csp.Var{h},
		DStarts:    []csp.Var{start},
		DUsages:    [][]int{{3}, {4}},
		CUsages:    [][]int{{}, {}},
		Early:      []csp.Var{zero, zero, zero},
		Last:       []csp.Var{end, end, end},
		Assocs:     []int{NoAssociation},
	})
	require.NoError(t, err)
	s.Post(ts)
	require.NoError(t, s.Fixpoint())
	assert.Equal(t, 2, s.Value(h))
}

func TestTaskScheduler_IncreasingStay(t *testing.T) {
	s := csp.NewStore()
	host := s.Const("host", 0)
	cEnd, _ := s.IntVar("cEnd0", 0, 10)
	dStart, _ := s.IntVar("dStart0", 0, 10)
	zero := s.Const("zero", 0)
	end := s.Const("end", 10)

	// The VM stays and grows from 1 to 2 on a node that already hosts 1
	// unit for another VM leaving at 10.
	other := s.Const("cEnd1", 10)
	ts, err := New(Config{
		Capacities: [][]int{{3}},
		CHosters:   []csp.Var{host, host},
		CEnds:      []csp.Var{cEnd, other},
		CUsages:    [][]int{{1, 1}},
		DHosters:   []csp.Var{host},
		DStarts:    []csp.Var{dStart},
		DUsages:    [][]int{{2}},
		Early:      []csp.Var{zero},
		Last:       []csp.Var{end},
		Assocs:     []int{0},
	})
	require.NoError(t, err)
	s.Post(ts)
	require.NoError(t, s.Fixpoint())

	l := newLocal(ts, 0, []int{0, 1}, []int{0})
	l.computeProfiles(s)
	assert.Equal(t, []int{0, 10}, l.moments)
	// The consumption of the growing VM stays in min until its slice ends.
	assert.Equal(t, []int{2, 2}, l.min[0])
	assert.Equal(t, []int{3, 2}, l.max[0])
}

func TestNew_Validation(t *testing.T) {
	s := csp.NewStore()
	v := s.Const("v", 0)

	tests := []struct {
		name string
		cfg  Config
	}{
		{name: "no dimension", cfg: Config{}},
		{
			name: "missing early moments",
			cfg:  Config{Capacities: [][]int{{1}}, CUsages: [][]int{{}}, DUsages: [][]int{{}}},
		},
		{
			name: "association out of range",
			cfg: Config{
				Capacities: [][]int{{1}},
				DHosters:   []csp.Var{v},
				DStarts:    []csp.Var{v},
				DUsages:    [][]int{{1}},
				CUsages:    [][]int{{}},
				Early:      []csp.Var{v},
				Last:       []csp.Var{v},
				Assocs:     []int{3},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg)
			assert.Error(t, err)
		})
	}
}
