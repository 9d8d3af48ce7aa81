package planner

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/reconf/pkg/constraint"
	"github.com/cuemby/reconf/pkg/reconf"
	"github.com/cuemby/reconf/pkg/types"
)

// twoNodes returns n1 hosting vm1 and vm2, n2 empty, both of capacity 2
func twoNodes(t *testing.T) *types.Model {
	t.Helper()
	mo := types.NewModel()
	mo.Mapping.AddOnlineNode("n1")
	mo.Mapping.AddOnlineNode("n2")
	require.NoError(t, mo.Mapping.AddRunningVM("vm1", "n1"))
	require.NoError(t, mo.Mapping.AddRunningVM("vm2", "n1"))
	mo.Attach(types.NewShareableResource("cpu", 1).SetCapacity("n1", 2).SetCapacity("n2", 2))
	return mo
}

func testPlanner() *Planner {
	cfg := DefaultConfig()
	cfg.MaxTime = 20
	cfg.Timeout = 10 * time.Second
	return New(cfg, nil)
}

func TestPlan_KeepState(t *testing.T) {
	mo := twoNodes(t)
	res, err := testPlanner().Plan(context.Background(), mo, reconf.KeepState(mo))
	require.NoError(t, err)
	require.True(t, res.Feasible)
	assert.NotEmpty(t, res.ProblemID)
	assert.Equal(t, 0, res.Plan.Size())
	assert.Empty(t, res.Misplaced)
}

func TestPlan_Offline(t *testing.T) {
	mo := twoNodes(t)
	res, err := testPlanner().Plan(context.Background(), mo, reconf.KeepState(mo),
		&constraint.Offline{Nodes: []types.NodeID{"n1"}})
	require.NoError(t, err)
	require.True(t, res.Feasible)
	assert.ElementsMatch(t, []types.VMID{"vm1", "vm2"}, res.Misplaced)

	dst, err := res.Plan.Result()
	require.NoError(t, err)
	assert.Equal(t, types.NodeStateOffline, dst.Mapping.NodeState("n1"))
	for _, vm := range []types.VMID{"vm1", "vm2"} {
		n, ok := dst.Mapping.VMLocation(vm)
		require.True(t, ok)
		assert.Equal(t, types.NodeID("n2"), n)
	}
	assert.Positive(t, res.Stats.Nodes)
}

func TestPlan_Infeasible(t *testing.T) {
	tests := []struct {
		name string
		cs   []reconf.Constraint
	}{
		{
			name: "conflicting states",
			cs: []reconf.Constraint{
				&constraint.Online{Nodes: []types.NodeID{"n1"}},
				&constraint.Offline{Nodes: []types.NodeID{"n1"}},
			},
		},
		{
			name: "no room left",
			cs: []reconf.Constraint{
				&constraint.Offline{Nodes: []types.NodeID{"n2"}},
				&constraint.Preserve{VMs: []types.VMID{"vm1"}, Resource: "cpu", Amount: 2},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mo := twoNodes(t)
			res, err := testPlanner().Plan(context.Background(), mo, reconf.KeepState(mo), tt.cs...)
			require.NoError(t, err)
			assert.False(t, res.Feasible)
			assert.Nil(t, res.Plan)
		})
	}
}

func TestPlan_BuildError(t *testing.T) {
	mo := twoNodes(t)
	req := reconf.Request{ToRun: []types.VMID{"vm1"}}

	res, err := testPlanner().Plan(context.Background(), mo, req)
	require.Error(t, err)
	assert.ErrorIs(t, err, reconf.ErrUndefinedTransition)
	assert.Nil(t, res)
	assert.Equal(t, "undefined_transition", buildErrorReason(err))
}

func TestPlan_UnknownConstraintTarget(t *testing.T) {
	mo := twoNodes(t)
	_, err := testPlanner().Plan(context.Background(), mo, reconf.KeepState(mo),
		&constraint.Ban{VMs: []types.VMID{"vm1"}, Nodes: []types.NodeID{"n9"}})
	require.Error(t, err)
	assert.ErrorIs(t, err, reconf.ErrUnknownNode)
}

func TestPlan_Cancelled(t *testing.T) {
	mo := twoNodes(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := testPlanner().Plan(ctx, mo, reconf.KeepState(mo),
		&constraint.Offline{Nodes: []types.NodeID{"n1"}})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
