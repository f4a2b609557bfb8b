package lifecycle

import (
	"testing"

	"github.com/fmitcpd/fmitcpd/internal/protocol/fmitcp"
	"github.com/stretchr/testify/require"
)

func TestMachine_HandshakeSequence(t *testing.T) {
	m := New(false)
	require.Equal(t, Loaded, m.State())

	require.True(t, m.Allowed(fmitcp.OpInstantiate))
	m.Advance(fmitcp.OpInstantiate)
	require.Equal(t, Instantiated, m.State())

	require.True(t, m.Allowed(fmitcp.OpInitializeSlave))
	m.Advance(fmitcp.OpInitializeSlave)
	require.Equal(t, Initialized, m.State())

	require.True(t, m.Allowed(fmitcp.OpDoStep))
	m.Advance(fmitcp.OpDoStep)
	require.Equal(t, Initialized, m.State())
}

func TestMachine_IllegalDoStepBeforeInit_DoesNotAdvance(t *testing.T) {
	m := New(false)
	m.Advance(fmitcp.OpInstantiate)
	require.False(t, m.Allowed(fmitcp.OpDoStep))
	require.Equal(t, Instantiated, m.State())
}

func TestMachine_IdempotentFree(t *testing.T) {
	m := New(false)
	m.Advance(fmitcp.OpInstantiate)
	require.True(t, m.Allowed(fmitcp.OpFreeSlaveInstance))
	m.Advance(fmitcp.OpFreeSlaveInstance)
	require.Equal(t, Freed, m.State())

	require.True(t, m.Allowed(fmitcp.OpFreeSlaveInstance))
	m.Advance(fmitcp.OpFreeSlaveInstance)
	require.Equal(t, Freed, m.State())
}

func TestMachine_CancelStepOnlyAfterDoStep(t *testing.T) {
	m := New(false)
	m.Advance(fmitcp.OpInstantiate)
	m.Advance(fmitcp.OpInitializeSlave)

	require.False(t, m.Allowed(fmitcp.OpCancelStep))
	m.Advance(fmitcp.OpDoStep)
	require.True(t, m.Allowed(fmitcp.OpCancelStep))
}

func TestMachine_ResetFromTerminatedReturnsToInstantiated(t *testing.T) {
	m := New(false)
	m.Advance(fmitcp.OpInstantiate)
	m.Advance(fmitcp.OpInitializeSlave)
	m.Advance(fmitcp.OpTerminateSlave)
	require.Equal(t, Terminated, m.State())

	require.True(t, m.Allowed(fmitcp.OpResetSlave))
	m.Advance(fmitcp.OpResetSlave)
	require.Equal(t, Instantiated, m.State())
}

func TestMachine_DummyModeAllowsEverything(t *testing.T) {
	m := New(true)
	require.True(t, m.Allowed(fmitcp.OpDoStep))
	require.True(t, m.Allowed(fmitcp.OpGetReal))
	m.Advance(fmitcp.OpDoStep)
	require.Equal(t, Dummy, m.State())
}

func TestMachine_FatalMakesSubsequentOpsIllegal(t *testing.T) {
	m := New(false)
	m.Advance(fmitcp.OpInstantiate)
	m.Advance(fmitcp.OpInitializeSlave)
	m.Fatal()
	require.False(t, m.Allowed(fmitcp.OpDoStep))
}
