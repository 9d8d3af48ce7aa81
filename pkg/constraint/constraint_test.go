package constraint

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/reconf/pkg/plan"
	"github.com/cuemby/reconf/pkg/reconf"
	"github.com/cuemby/reconf/pkg/types"
)

// cluster returns three online nodes of capacity 2, vm1 and vm2 running
// on n1, vm3 running on n2 and vm4 sleeping on n3
func cluster(t *testing.T) *types.Model {
	t.Helper()
	mo := types.NewModel()
	for _, n := range []types.NodeID{"n1", "n2", "n3"} {
		mo.Mapping.AddOnlineNode(n)
	}
	require.NoError(t, mo.Mapping.AddRunningVM("vm1", "n1"))
	require.NoError(t, mo.Mapping.AddRunningVM("vm2", "n1"))
	require.NoError(t, mo.Mapping.AddRunningVM("vm3", "n2"))
	require.NoError(t, mo.Mapping.AddSleepingVM("vm4", "n3"))
	mo.Attach(types.NewShareableResource("cpu", 1).
		SetCapacity("n1", 2).SetCapacity("n2", 2).SetCapacity("n3", 2))
	return mo
}

func build(t *testing.T, mo *types.Model) *reconf.Problem {
	t.Helper()
	cfg := reconf.DefaultConfig()
	cfg.MaxTime = 20
	p, err := reconf.Build(mo, reconf.KeepState(mo), cfg)
	require.NoError(t, err)
	return p
}

func hosts(t *testing.T, p *reconf.Problem, vm types.VMID) []int {
	t.Helper()
	m, err := p.VMModel(vm)
	require.NoError(t, err)
	return p.Store().Values(m.DSlice().Hoster)
}

func TestInject(t *testing.T) {
	tests := []struct {
		name    string
		c       reconf.Constraint
		check   func(t *testing.T, p *reconf.Problem)
		wantErr error
	}{
		{
			name: "fence",
			c:    &Fence{VMs: []types.VMID{"vm1"}, Nodes: []types.NodeID{"n2", "n3"}},
			check: func(t *testing.T, p *reconf.Problem) {
				assert.Equal(t, []int{1, 2}, hosts(t, p, "vm1"))
				assert.Equal(t, []int{0, 1, 2}, hosts(t, p, "vm2"))
			},
		},
		{
			name: "ban",
			c:    &Ban{VMs: []types.VMID{"vm1", "vm3"}, Nodes: []types.NodeID{"n2"}},
			check: func(t *testing.T, p *reconf.Problem) {
				assert.Equal(t, []int{0, 2}, hosts(t, p, "vm1"))
				assert.Equal(t, []int{0, 2}, hosts(t, p, "vm3"))
			},
		},
		{
			name: "root",
			c:    &Root{VMs: []types.VMID{"vm3", "vm4"}},
			check: func(t *testing.T, p *reconf.Problem) {
				assert.Equal(t, []int{1}, hosts(t, p, "vm3"))
			},
		},
		{
			name: "online",
			c:    &Online{Nodes: []types.NodeID{"n2"}},
			check: func(t *testing.T, p *reconf.Problem) {
				v, err := p.NodeState("n2")
				require.NoError(t, err)
				assert.Equal(t, 1, p.Store().Value(v))
			},
		},
		{
			name: "preserve",
			c:    &Preserve{VMs: []types.VMID{"vm1", "vm4"}, Resource: "cpu", Amount: 2},
			check: func(t *testing.T, p *reconf.Problem) {
				v, err := p.View("cpu")
				require.NoError(t, err)
				assert.Equal(t, 2, v.Demand("vm1"))
				assert.Equal(t, 1, v.Demand("vm4"))
			},
		},
		{name: "fence unknown node", c: &Fence{VMs: []types.VMID{"vm1"}, Nodes: []types.NodeID{"n9"}}, wantErr: reconf.ErrUnknownNode},
		{name: "ban unknown vm", c: &Ban{VMs: []types.VMID{"vm9"}, Nodes: []types.NodeID{"n1"}}, wantErr: reconf.ErrUnknownVM},
		{name: "offline unknown node", c: &Offline{Nodes: []types.NodeID{"n9"}}, wantErr: reconf.ErrUnknownNode},
		{name: "preserve unknown resource", c: &Preserve{VMs: []types.VMID{"vm1"}, Resource: "mem", Amount: 1}, wantErr: reconf.ErrUnknownView},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := build(t, cluster(t))
			err := p.Inject(tt.c)
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
				assert.False(t, IsUnsatisfiable(err))
				return
			}
			require.NoError(t, err)
			tt.check(t, p)
		})
	}
}

func TestInject_Unsatisfiable(t *testing.T) {
	p := build(t, cluster(t))
	require.NoError(t, p.Inject(&Fence{VMs: []types.VMID{"vm1"}, Nodes: []types.NodeID{"n2"}}))
	err := p.Inject(&Ban{VMs: []types.VMID{"vm1"}, Nodes: []types.NodeID{"n2"}})
	require.Error(t, err)
	assert.True(t, IsUnsatisfiable(err))
}

func TestPreserve_Sealed(t *testing.T) {
	p := build(t, cluster(t))
	require.NoError(t, p.Seal())

	err := p.Inject(&Preserve{VMs: []types.VMID{"vm1"}, Resource: "cpu", Amount: 2})
	require.Error(t, err)
	assert.ErrorIs(t, err, reconf.ErrSealed)
	assert.False(t, IsUnsatisfiable(err))
}

func TestPreserve_Plan(t *testing.T) {
	mo := cluster(t)
	p := build(t, mo)
	require.NoError(t, p.Inject(&Preserve{VMs: []types.VMID{"vm3"}, Resource: "cpu", Amount: 2}))

	pl, err := p.Solve(context.Background(), reconf.SolveOptions{})
	require.NoError(t, err)
	require.NotNil(t, pl)
	assert.NoError(t, plan.VerifyCapacity(pl))

	// vm3 either grows on n2 or moves to n3 with its new amount.
	var amounts []int
	for _, a := range pl.Actions() {
		if alloc, ok := a.(*plan.Allocate); ok && alloc.VM == "vm3" {
			amounts = append(amounts, alloc.Amount)
		}
	}
	for _, r := range pl.Resized {
		if r.VM == "vm3" {
			amounts = append(amounts, r.Amount)
		}
	}
	assert.Equal(t, []int{2}, amounts)

	res, err := pl.Result()
	require.NoError(t, err)
	rc, _ := res.View("cpu")
	assert.Equal(t, 2, rc.Consumption("vm3"))
	assert.Empty(t, (&Preserve{VMs: []types.VMID{"vm3"}, Resource: "cpu", Amount: 2}).MisplacedVMs(res))
}

func TestOffline_Plan(t *testing.T) {
	mo := cluster(t)
	p := build(t, mo)
	require.NoError(t, p.Inject(&Offline{Nodes: []types.NodeID{"n2"}}))

	pl, err := p.Solve(context.Background(), reconf.SolveOptions{})
	require.NoError(t, err)
	require.NotNil(t, pl)
	assert.NoError(t, plan.VerifyCapacity(pl))

	res, err := pl.Result()
	require.NoError(t, err)
	assert.Equal(t, types.NodeStateOffline, res.Mapping.NodeState("n2"))
	assert.Empty(t, (&Offline{Nodes: []types.NodeID{"n2"}}).MisplacedVMs(res))
	assert.Equal(t, types.VMStateRunning, res.Mapping.VMState("vm3"))
}

func TestMisplacedVMs(t *testing.T) {
	mo := cluster(t)
	tests := []struct {
		name string
		c    reconf.Constraint
		want []types.VMID
	}{
		{name: "online", c: &Online{Nodes: []types.NodeID{"n1"}}},
		{name: "offline", c: &Offline{Nodes: []types.NodeID{"n1", "n3"}}, want: []types.VMID{"vm1", "vm2"}},
		{name: "fence", c: &Fence{VMs: []types.VMID{"vm1", "vm3", "vm4"}, Nodes: []types.NodeID{"n2"}}, want: []types.VMID{"vm1"}},
		{name: "ban", c: &Ban{VMs: []types.VMID{"vm1", "vm3"}, Nodes: []types.NodeID{"n2"}}, want: []types.VMID{"vm3"}},
		{name: "root", c: &Root{VMs: []types.VMID{"vm1"}}},
		{name: "preserve", c: &Preserve{VMs: []types.VMID{"vm1"}, Resource: "cpu", Amount: 2}, want: []types.VMID{"vm1", "vm2"}},
		{name: "preserve met", c: &Preserve{VMs: []types.VMID{"vm1"}, Resource: "cpu", Amount: 1}},
		{name: "preserve unknown resource", c: &Preserve{VMs: []types.VMID{"vm3"}, Resource: "mem", Amount: 1}, want: []types.VMID{"vm3"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.c.MisplacedVMs(mo))
		})
	}
}
