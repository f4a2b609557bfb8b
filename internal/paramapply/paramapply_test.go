package paramapply_test

import (
	"testing"

	"github.com/fmitcpd/fmitcpd/internal/paramapply"
	"github.com/fmitcpd/fmitcpd/internal/simulation"
	"github.com/fmitcpd/fmitcpd/pkg/config"
	"github.com/stretchr/testify/require"
)

func newInstantiated(t *testing.T) (*simulation.Reference, *simulation.Instance) {
	t.Helper()
	ref := simulation.NewReference()
	inst, err := ref.ParseArchive("dummy", t.TempDir())
	require.NoError(t, err)
	require.Equal(t, simulation.StatusOK, ref.Instantiate(inst, "test", false))
	return ref, inst
}

func TestApply_XMLStartValuesAppliedFirst(t *testing.T) {
	ref, inst := newInstantiated(t)
	for i := range inst.Variables {
		if inst.Variables[i].ValueReference == 7 {
			inst.Variables[i].HasStart = true
			inst.Variables[i].StartReal = 1.5
		}
	}

	require.NoError(t, paramapply.Apply(ref, inst, nil))

	values, status := ref.GetReal(inst, []uint32{7})
	require.Equal(t, simulation.StatusOK, status)
	require.Equal(t, []float64{1.5}, values)
}

func TestApply_OverridesWinOverStartValues(t *testing.T) {
	ref, inst := newInstantiated(t)
	for i := range inst.Variables {
		if inst.Variables[i].ValueReference == 7 {
			inst.Variables[i].HasStart = true
			inst.Variables[i].StartReal = 1.5
		}
	}

	overrides, err := paramapply.FromConfig([]config.ParamOverride{
		{Ref: 7, Type: "real", Real: 9.9},
	})
	require.NoError(t, err)
	require.NoError(t, paramapply.Apply(ref, inst, overrides))

	values, status := ref.GetReal(inst, []uint32{7})
	require.Equal(t, simulation.StatusOK, status)
	require.Equal(t, []float64{9.9}, values)
}

func TestFromConfig_RejectsUnknownType(t *testing.T) {
	_, err := paramapply.FromConfig([]config.ParamOverride{{Ref: 1, Type: "complex"}})
	require.Error(t, err)
}
