package plan

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/reconf/pkg/types"
)

func sourceModel(t *testing.T) *types.Model {
	t.Helper()
	mo := types.NewModel()
	mo.Mapping.AddOnlineNode("n1")
	mo.Mapping.AddOnlineNode("n2")
	require.NoError(t, mo.Mapping.AddOfflineNode("n3"))
	require.NoError(t, mo.Mapping.AddRunningVM("vm1", "n1"))
	require.NoError(t, mo.Mapping.AddRunningVM("vm2", "n2"))
	require.NoError(t, mo.Mapping.AddSleepingVM("vm3", "n2"))
	mo.Mapping.AddReadyVM("vm4")
	mo.Attach(types.NewShareableResource("cpu", 1).
		SetCapacity("n1", 2).SetCapacity("n2", 2).SetCapacity("n3", 4))
	return mo
}

func TestAction_Apply(t *testing.T) {
	tests := []struct {
		name    string
		action  Action
		wantErr bool
		check   func(t *testing.T, m *types.Model)
	}{
		{
			name:   "migrate",
			action: &MigrateVM{Interval{0, 3}, "vm1", "n1", "n2"},
			check: func(t *testing.T, m *types.Model) {
				loc, _ := m.Mapping.VMLocation("vm1")
				assert.Equal(t, types.NodeID("n2"), loc)
			},
		},
		{name: "migrate in place", action: &MigrateVM{Interval{0, 3}, "vm1", "n1", "n1"}, wantErr: true},
		{name: "migrate from wrong node", action: &MigrateVM{Interval{0, 3}, "vm1", "n2", "n1"}, wantErr: true},
		{name: "migrate to offline node", action: &MigrateVM{Interval{0, 3}, "vm1", "n1", "n3"}, wantErr: true},
		{
			name:   "boot vm",
			action: &BootVM{Interval{0, 2}, "vm4", "n1"},
			check: func(t *testing.T, m *types.Model) {
				assert.Equal(t, types.VMStateRunning, m.Mapping.VMState("vm4"))
			},
		},
		{name: "boot running vm", action: &BootVM{Interval{0, 2}, "vm1", "n1"}, wantErr: true},
		{
			name:   "resume",
			action: &ResumeVM{Interval{0, 2}, "vm3", "n2", "n1"},
			check: func(t *testing.T, m *types.Model) {
				assert.Equal(t, []types.VMID{"vm1", "vm3"}, m.Mapping.RunningVMs("n1"))
			},
		},
		{
			name:   "suspend",
			action: &SuspendVM{Interval{0, 2}, "vm1", "n1", "n1"},
			check: func(t *testing.T, m *types.Model) {
				assert.Equal(t, types.VMStateSleeping, m.Mapping.VMState("vm1"))
			},
		},
		{
			name:   "shutdown vm",
			action: &ShutdownVM{Interval{0, 2}, "vm1", "n1"},
			check: func(t *testing.T, m *types.Model) {
				assert.False(t, m.Mapping.HasVM("vm1"))
			},
		},
		{name: "shutdown hosting node", action: &ShutdownNode{Interval{0, 2}, "n1"}, wantErr: true},
		{name: "shutdown offline node", action: &ShutdownNode{Interval{0, 2}, "n3"}, wantErr: true},
		{
			name:   "boot node",
			action: &BootNode{Interval{0, 2}, "n3"},
			check: func(t *testing.T, m *types.Model) {
				assert.Equal(t, types.NodeStateOnline, m.Mapping.NodeState("n3"))
			},
		},
		{
			name:   "allocate",
			action: &Allocate{Interval{0, 2}, "vm1", "n1", "cpu", 2},
			check: func(t *testing.T, m *types.Model) {
				rc, _ := m.View("cpu")
				assert.Equal(t, 2, rc.Consumption("vm1"))
			},
		},
		{name: "allocate on unknown view", action: &Allocate{Interval{0, 2}, "vm1", "n1", "mem", 2}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := sourceModel(t)
			err := tt.action.Apply(m)
			if tt.wantErr {
				assert.True(t, errors.Is(err, ErrInapplicable))
				return
			}
			require.NoError(t, err)
			tt.check(t, m)
		})
	}
}

func TestPlan_ActionsOrder(t *testing.T) {
	p := New(sourceModel(t))
	p.Add(&BootVM{Interval{5, 7}, "vm4", "n3"})
	p.Add(&MigrateVM{Interval{0, 3}, "vm1", "n1", "n2"})
	p.Add(&BootNode{Interval{0, 5}, "n3"})

	var got []string
	for _, a := range p.Actions() {
		got = append(got, a.String())
	}
	want := []string{
		"0:3 migrate(vm=vm1, from=n1, to=n2)",
		"0:5 bootNode(node=n3)",
		"5:7 bootVM(vm=vm4, on=n3)",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Actions() mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 7, p.Duration())
	assert.Equal(t, 3, p.Size())
	assert.NotEmpty(t, p.ID)
}

func TestPlan_Result(t *testing.T) {
	src := sourceModel(t)
	p := New(src)
	p.Add(&BootVM{Interval{5, 7}, "vm4", "n3"})
	p.Add(&BootNode{Interval{0, 5}, "n3"})
	p.Add(&ShutdownVM{Interval{0, 2}, "vm1", "n1"})
	p.Add(&ShutdownNode{Interval{2, 4}, "n1"})
	p.Instantiated = []types.VMID{"vm5"}

	res, err := p.Result()
	require.NoError(t, err)
	assert.Equal(t, types.NodeStateOffline, res.Mapping.NodeState("n1"))
	assert.Equal(t, types.NodeStateOnline, res.Mapping.NodeState("n3"))
	assert.Equal(t, []types.VMID{"vm4"}, res.Mapping.RunningVMs("n3"))
	assert.Equal(t, types.VMStateReady, res.Mapping.VMState("vm5"))

	// The source model is untouched.
	assert.Equal(t, types.VMStateRunning, src.Mapping.VMState("vm1"))

	p.Add(&ShutdownNode{Interval{8, 9}, "n1"})
	_, err = p.Result()
	assert.ErrorIs(t, err, ErrInapplicable)
}

func TestPlan_ResultResized(t *testing.T) {
	tests := []struct {
		name    string
		resize  Resize
		wantErr bool
	}{
		{name: "staying vm", resize: Resize{VM: "vm2", Node: "n2", ResourceID: "cpu", Amount: 2}},
		{name: "unknown view", resize: Resize{VM: "vm2", Node: "n2", ResourceID: "mem", Amount: 2}, wantErr: true},
		{name: "other node", resize: Resize{VM: "vm2", Node: "n1", ResourceID: "cpu", Amount: 2}, wantErr: true},
		{name: "sleeping vm", resize: Resize{VM: "vm3", Node: "n2", ResourceID: "cpu", Amount: 2}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New(sourceModel(t))
			p.Resized = []Resize{tt.resize}
			res, err := p.Result()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInapplicable)
				return
			}
			require.NoError(t, err)
			rc, _ := res.View("cpu")
			assert.Equal(t, 2, rc.Consumption("vm2"))
			assert.Equal(t, 0, p.Size())
		})
	}
}

func TestVerifyCapacity(t *testing.T) {
	t.Run("migration after departure", func(t *testing.T) {
		p := New(sourceModel(t))
		p.Add(&ShutdownVM{Interval{0, 3}, "vm2", "n2"})
		p.Add(&MigrateVM{Interval{3, 5}, "vm1", "n1", "n2"})
		p.Add(&BootVM{Interval{0, 2}, "vm4", "n1"})
		assert.NoError(t, VerifyCapacity(p))
	})

	t.Run("overlapping arrival", func(t *testing.T) {
		p := New(sourceModel(t))
		p.Add(&BootVM{Interval{0, 2}, "vm4", "n1"})
		p.Add(&ResumeVM{Interval{1, 2}, "vm3", "n2", "n1"})
		assert.ErrorIs(t, VerifyCapacity(p), ErrCapacityExceeded)
	})

	t.Run("allocation grows the footprint", func(t *testing.T) {
		p := New(sourceModel(t))
		p.Add(&MigrateVM{Interval{0, 3}, "vm1", "n1", "n2"})
		p.Add(&Allocate{Interval{0, 3}, "vm1", "n2", "cpu", 2})
		err := VerifyCapacity(p)
		assert.ErrorIs(t, err, ErrCapacityExceeded)
	})

	t.Run("staying vm grows in place", func(t *testing.T) {
		p := New(sourceModel(t))
		p.Resized = []Resize{{VM: "vm1", Node: "n1", ResourceID: "cpu", Amount: 2}}
		assert.NoError(t, VerifyCapacity(p))
	})

	t.Run("staying vm grows after an arrival", func(t *testing.T) {
		p := New(sourceModel(t))
		p.Add(&BootVM{Interval{0, 2}, "vm4", "n1"})
		p.Resized = []Resize{{VM: "vm1", Node: "n1", ResourceID: "cpu", Amount: 2, At: 2}}
		assert.ErrorIs(t, VerifyCapacity(p), ErrCapacityExceeded)
	})

	t.Run("staying vm shrinks before an arrival", func(t *testing.T) {
		p := New(sourceModel(t))
		p.Add(&ResumeVM{Interval{0, 2}, "vm3", "n2", "n1"})
		p.Add(&BootVM{Interval{0, 2}, "vm4", "n1"})
		p.Resized = []Resize{{VM: "vm1", Node: "n1", ResourceID: "cpu", Amount: 0}}
		assert.NoError(t, VerifyCapacity(p))
	})
}
