package dispatch

import (
	"os"
	"testing"

	"github.com/fmitcpd/fmitcpd/internal/lifecycle"
	"github.com/fmitcpd/fmitcpd/internal/logger"
	"github.com/fmitcpd/fmitcpd/internal/protocol/fmitcp"
	"github.com/fmitcpd/fmitcpd/internal/simulation"
	"github.com/stretchr/testify/require"
)

func newTestDispatcher(t *testing.T) (*Dispatcher, *simulation.Instance) {
	t.Helper()
	ref := simulation.NewReference()
	inst, err := ref.ParseArchive("dummy", t.TempDir())
	require.NoError(t, err)

	d := New(Config{
		Adapter:  ref,
		Instance: inst,
		Machine:  lifecycle.New(false),
		Logger:   logger.Default(),
	})
	return d, inst
}

// TestScenario_HandshakeThroughTeardown drives the literal end-to-end
// scenarios from spec.md §8 in sequence against one instance: scenarios 1-4
// and 6 (scenario 5 is TestScenario_IllegalTransition).
func TestScenario_HandshakeThroughTeardown(t *testing.T) {
	d, inst := newTestDispatcher(t)
	scratch := inst.ScratchDir

	// 1. Handshake.
	resp := d.Handle(&fmitcp.Request{Op: fmitcp.OpInstantiate, MessageID: 1})
	require.Equal(t, uint32(1), resp.MessageID)
	require.Equal(t, fmitcp.StatusOK, resp.Status)
	require.Equal(t, lifecycle.Instantiated, d.cfg.Machine.State())

	// 2. Initialization.
	resp = d.Handle(&fmitcp.Request{
		Op: fmitcp.OpInitializeSlave, MessageID: 2,
		ToleranceDefined: false, StartTime: 0.0,
		StopTimeDefined: true, StopTime: 1.0,
	})
	require.Equal(t, uint32(2), resp.MessageID)
	require.Equal(t, fmitcp.StatusOK, resp.Status)
	require.Equal(t, lifecycle.Initialized, d.cfg.Machine.State())

	// 3. One step.
	resp = d.Handle(&fmitcp.Request{
		Op: fmitcp.OpDoStep, MessageID: 3,
		CurrentCommPoint: 0.0, StepSize: 0.1, NewStep: true,
	})
	require.Equal(t, uint32(3), resp.MessageID)
	require.Equal(t, fmitcp.StatusOK, resp.Status)

	// 4. Typed IO.
	resp = d.Handle(&fmitcp.Request{
		Op: fmitcp.OpSetReal, MessageID: 4,
		ValueRefs: []uint32{7}, RealValues: []float64{3.14},
	})
	require.Equal(t, uint32(4), resp.MessageID)
	require.Equal(t, fmitcp.StatusOK, resp.Status)

	resp = d.Handle(&fmitcp.Request{Op: fmitcp.OpGetReal, MessageID: 5, ValueRefs: []uint32{7}})
	require.Equal(t, uint32(5), resp.MessageID)
	require.Equal(t, fmitcp.StatusOK, resp.Status)
	require.Equal(t, []float64{3.14}, resp.RealValues)

	// 6. Teardown (scenario 5, illegal transition, is covered separately
	// since it requires a fresh pre-init instance).
	resp = d.Handle(&fmitcp.Request{Op: fmitcp.OpTerminateSlave, MessageID: 7})
	require.Equal(t, uint32(7), resp.MessageID)
	require.Equal(t, fmitcp.StatusOK, resp.Status)

	resp = d.Handle(&fmitcp.Request{Op: fmitcp.OpFreeSlaveInstance, MessageID: 8})
	require.Equal(t, uint32(8), resp.MessageID)
	require.Equal(t, fmitcp.StatusOK, resp.Status)

	_, err := os.Stat(scratch)
	require.True(t, os.IsNotExist(err))
}

// TestScenario_IllegalTransition is scenario 5: do_step before
// initialization must answer status=error and leave the state unchanged.
func TestScenario_IllegalTransition(t *testing.T) {
	d, _ := newTestDispatcher(t)
	d.Handle(&fmitcp.Request{Op: fmitcp.OpInstantiate, MessageID: 1})

	resp := d.Handle(&fmitcp.Request{Op: fmitcp.OpDoStep, MessageID: 6})
	require.Equal(t, uint32(6), resp.MessageID)
	require.Equal(t, fmitcp.StatusError, resp.Status)
	require.Equal(t, lifecycle.Instantiated, d.cfg.Machine.State())
}

func TestArrayLengthSymmetry_SetRealMismatchIsArgumentError(t *testing.T) {
	d, _ := newTestDispatcher(t)
	d.Handle(&fmitcp.Request{Op: fmitcp.OpInstantiate, MessageID: 1})

	resp := d.Handle(&fmitcp.Request{
		Op: fmitcp.OpSetReal, MessageID: 2,
		ValueRefs: []uint32{7, 8}, RealValues: []float64{1},
	})
	require.Equal(t, fmitcp.StatusError, resp.Status)
}

func TestIdempotentFree(t *testing.T) {
	d, _ := newTestDispatcher(t)
	d.Handle(&fmitcp.Request{Op: fmitcp.OpInstantiate, MessageID: 1})

	r1 := d.Handle(&fmitcp.Request{Op: fmitcp.OpFreeSlaveInstance, MessageID: 2})
	require.Equal(t, fmitcp.StatusOK, r1.Status)
	r2 := d.Handle(&fmitcp.Request{Op: fmitcp.OpFreeSlaveInstance, MessageID: 3})
	require.Equal(t, fmitcp.StatusOK, r2.Status)
}

func TestDummyMode_GetRealReturnsCannedZeroValues(t *testing.T) {
	ref := simulation.NewReference()
	inst, err := ref.ParseArchive("dummy", t.TempDir())
	require.NoError(t, err)

	d := New(Config{
		Adapter:  ref,
		Instance: inst,
		Machine:  lifecycle.New(true),
		Logger:   logger.Default(),
		Dummy:    true,
	})

	resp := d.Handle(&fmitcp.Request{Op: fmitcp.OpGetReal, MessageID: 1, ValueRefs: []uint32{7, 8}})
	require.Equal(t, fmitcp.StatusOK, resp.Status)
	require.Equal(t, []float64{0, 0}, resp.RealValues)
}

func TestModelExchangePlaceholder_IsNoOpSuccess(t *testing.T) {
	d, _ := newTestDispatcher(t)
	resp := d.Handle(&fmitcp.Request{Op: fmitcp.OpSetTime, MessageID: 1})
	require.Equal(t, fmitcp.StatusOK, resp.Status)
}
