package scenario

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/reconf/pkg/constraint"
	"github.com/cuemby/reconf/pkg/duration"
	"github.com/cuemby/reconf/pkg/planner"
	"github.com/cuemby/reconf/pkg/reconf"
	"github.com/cuemby/reconf/pkg/types"
)

const drain = `
apiVersion: reconf/v1
kind: Scenario
metadata:
  name: drain-n1
spec:
  planner:
    maxTime: 50
    timeout: 5s
  nodes:
    - {id: n1, state: online}
    - {id: n2, state: online}
    - {id: n3, state: offline}
  vms:
    - {id: vm1, state: running, host: n1}
    - {id: vm2, state: running, host: n1}
    - {id: vm3, state: ready}
    - {id: vm4, state: sleeping, host: n2}
  resources:
    - id: mem
      default: 1
      capacity: {n1: 4, n2: 4, n3: 8}
      consumption: {vm1: 2}
  request:
    destroy: [vm2]
    keep: true
  durations:
    bootVM: {constant: 3}
    migrateVM: {linear: {resource: mem, a: 2, b: 1}}
  constraints:
    - {type: offline, nodes: [n1]}
    - {type: preserve, vms: [vm1], resource: mem, amount: 3}
`

func TestParse(t *testing.T) {
	sc, err := Parse([]byte(drain))
	require.NoError(t, err)

	assert.Equal(t, "drain-n1", sc.Name)

	m := sc.Model.Mapping
	assert.Equal(t, types.NodeStateOffline, m.NodeState("n3"))
	assert.Equal(t, types.VMStateSleeping, m.VMState("vm4"))
	host, ok := m.VMLocation("vm1")
	require.True(t, ok)
	assert.Equal(t, types.NodeID("n1"), host)

	mem, ok := sc.Model.View("mem")
	require.True(t, ok)
	assert.Equal(t, 8, mem.Capacity("n3"))
	assert.Equal(t, 2, mem.Consumption("vm1"))
	assert.Equal(t, 1, mem.Consumption("vm3"))

	assert.Equal(t, reconf.Request{
		ToRun:     []types.VMID{"vm1"},
		ToWait:    []types.VMID{"vm3"},
		ToSleep:   []types.VMID{"vm4"},
		ToDestroy: []types.VMID{"vm2"},
	}, sc.Request)

	d, err := sc.Durations.Evaluate(duration.BootVM, "vm3")
	require.NoError(t, err)
	assert.Equal(t, 3, d)
	d, err = sc.Durations.Evaluate(duration.MigrateVM, "vm1")
	require.NoError(t, err)
	assert.Equal(t, 5, d)
	d, err = sc.Durations.Evaluate(duration.ShutdownNode, "n1")
	require.NoError(t, err)
	assert.Equal(t, 1, d)

	require.Len(t, sc.Constraints, 2)
	assert.Equal(t, &constraint.Offline{Nodes: []types.NodeID{"n1"}}, sc.Constraints[0])
	assert.Equal(t, &constraint.Preserve{VMs: []types.VMID{"vm1"}, Resource: "mem", Amount: 3}, sc.Constraints[1])

	assert.Equal(t, 50, sc.Planner.MaxTime)
	assert.Equal(t, 5*time.Second, sc.Planner.Timeout)
	assert.Equal(t, reconf.RelocationAuto, sc.Planner.Relocation)
}

func TestParse_Defaults(t *testing.T) {
	sc, err := Parse([]byte(`
apiVersion: reconf/v1
kind: Scenario
spec:
  nodes: [{id: n1}]
  vms: [{id: vm1, state: running, host: n1}]
  request: {run: [vm1]}
`))
	require.NoError(t, err)
	assert.Equal(t, planner.DefaultConfig(), sc.Planner)
	assert.Equal(t, types.NodeStateOnline, sc.Model.Mapping.NodeState("n1"))
	assert.Empty(t, sc.Constraints)
	assert.Equal(t, []types.VMID{"vm1"}, sc.Request.ToRun)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		spec string
	}{
		{name: "unknown node state", spec: `nodes: [{id: n1, state: broken}]`},
		{name: "duplicate node", spec: `nodes: [{id: n1}, {id: n1}]`},
		{name: "unknown vm state", spec: `{nodes: [{id: n1}], vms: [{id: vm1, state: paused}]}`},
		{name: "running vm without host", spec: `vms: [{id: vm1, state: running}]`},
		{name: "running vm on offline node", spec: `{nodes: [{id: n1, state: offline}], vms: [{id: vm1, state: running, host: n1}]}`},
		{name: "ready vm with host", spec: `{nodes: [{id: n1}], vms: [{id: vm1, state: ready, host: n1}]}`},
		{name: "duplicate vm", spec: `vms: [{id: vm1, state: ready}, {id: vm1, state: ready}]`},
		{name: "duplicate resource", spec: `resources: [{id: cpu}, {id: cpu}]`},
		{name: "unknown action kind", spec: `durations: {rebootVM: {constant: 1}}`},
		{name: "empty duration", spec: `durations: {bootVM: {}}`},
		{name: "exclusive durations", spec: `durations: {bootVM: {constant: 1, linear: {resource: cpu}}}`},
		{name: "linear on unknown resource", spec: `durations: {bootVM: {linear: {resource: cpu, a: 1}}}`},
		{name: "unknown constraint", spec: `constraints: [{type: spread, vms: [vm1]}]`},
		{name: "fence without nodes", spec: `constraints: [{type: fence, vms: [vm1]}]`},
		{name: "preserve without resource", spec: `constraints: [{type: preserve, vms: [vm1], amount: 2}]`},
		{name: "malformed planner", spec: `planner: {maxTime: soon}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := "apiVersion: reconf/v1\nkind: Scenario\nspec:\n  " + tt.spec + "\n"
			_, err := Parse([]byte(doc))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalid)
			assert.NotErrorIs(t, err, ErrMalformed)
		})
	}
}

func TestParse_Header(t *testing.T) {
	_, err := Parse([]byte("apiVersion: v2\nkind: Scenario\n"))
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = Parse([]byte("apiVersion: reconf/v1\nkind: Service\n"))
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = Parse([]byte("apiVersion: [reconf"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalid)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "drain.yaml")
	require.NoError(t, os.WriteFile(path, []byte(drain), 0o600))

	sc, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "drain-n1", sc.Name)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoad_Plan(t *testing.T) {
	path := filepath.Join(t.TempDir(), "drain.yaml")
	require.NoError(t, os.WriteFile(path, []byte(drain), 0o600))
	sc, err := Load(path)
	require.NoError(t, err)

	res, err := planner.New(sc.Planner, sc.Durations).
		Plan(context.Background(), sc.Model, sc.Request, sc.Constraints...)
	require.NoError(t, err)
	require.True(t, res.Feasible)

	dst, err := res.Plan.Result()
	require.NoError(t, err)
	assert.Equal(t, types.NodeStateOffline, dst.Mapping.NodeState("n1"))
	assert.False(t, dst.Mapping.HasVM("vm2"))
	assert.Equal(t, types.VMStateRunning, dst.Mapping.VMState("vm1"))
	host, ok := dst.Mapping.VMLocation("vm1")
	require.True(t, ok)
	assert.NotEqual(t, types.NodeID("n1"), host)
}
