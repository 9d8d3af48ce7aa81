package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const drain = `
apiVersion: reconf/v1
kind: Scenario
metadata:
  name: drain
spec:
  nodes:
    - {id: n1, state: online}
    - {id: n2, state: online}
  vms:
    - {id: vm1, state: running, host: n1}
  resources:
    - {id: cpu, default: 1, capacity: {n1: 2, n2: 2}}
  request: {keep: true}
  constraints:
    - {type: offline, nodes: [n1]}
`

func TestPlanCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "drain.yaml")
	require.NoError(t, os.WriteFile(path, []byte(drain), 0o600))

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"plan", "-f", path, "-o", "json", "--max-time", "30"})
	require.NoError(t, rootCmd.Execute())

	var res planOutput
	require.NoError(t, json.Unmarshal(out.Bytes(), &res))
	assert.Equal(t, "drain", res.Scenario)
	assert.True(t, res.Feasible)
	assert.Len(t, res.Actions, 2)
	assert.Equal(t, []string{"vm1"}, res.Misplaced)
}
