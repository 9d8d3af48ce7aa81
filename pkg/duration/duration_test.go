package duration

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/reconf/pkg/types"
)

func TestEvaluators_Evaluate(t *testing.T) {
	mem := types.NewShareableResource("mem", 0).SetConsumption("vm1", 4)

	e := Defaults()
	e.Register(MigrateVM, Linear{View: mem, A: 2, B: 1})
	e.Register(ShutdownNode, Constant(-3))
	e.Unregister(SuspendVM)

	tests := []struct {
		name    string
		kind    Kind
		entity  string
		want    int
		wantErr error
	}{
		{name: "default constant", kind: BootVM, entity: "vm1", want: 1},
		{name: "linear", kind: MigrateVM, entity: "vm1", want: 9},
		{name: "linear default consumption", kind: MigrateVM, entity: "vm2", want: 1},
		{name: "negative", kind: ShutdownNode, entity: "n1", wantErr: ErrNegativeDuration},
		{name: "missing", kind: SuspendVM, entity: "vm1", wantErr: ErrNoEvaluator},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.Evaluate(tt.kind, tt.entity)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLinear_NoView(t *testing.T) {
	_, err := Linear{A: 1}.Evaluate("vm1")
	assert.Error(t, err)
	assert.Equal(t, "d=3", Constant(3).String())
}
