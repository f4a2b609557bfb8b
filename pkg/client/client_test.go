package client_test

import (
	"context"
	"testing"
	"time"

	"github.com/fmitcpd/fmitcpd/internal/dispatch"
	"github.com/fmitcpd/fmitcpd/internal/lifecycle"
	"github.com/fmitcpd/fmitcpd/internal/logger"
	"github.com/fmitcpd/fmitcpd/internal/protocol/fmitcp"
	"github.com/fmitcpd/fmitcpd/internal/simulation"
	"github.com/fmitcpd/fmitcpd/pkg/client"
	"github.com/stretchr/testify/require"
)

func startTestServer(t *testing.T) string {
	t.Helper()
	ref := simulation.NewReference()
	inst, err := ref.ParseArchive("dummy", t.TempDir())
	require.NoError(t, err)

	d := dispatch.New(dispatch.Config{
		Adapter:  ref,
		Instance: inst,
		Machine:  lifecycle.New(false),
		Logger:   logger.Default(),
	})

	srv := fmitcp.NewServer(fmitcp.ServerConfig{Addr: "127.0.0.1:0", Dispatcher: d, Logger: logger.Default()})
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	go srv.Serve(ctx)
	<-srv.Ready()
	t.Cleanup(srv.Stop)
	return srv.Addr()
}

func TestClient_HandshakeThroughGetSetReal(t *testing.T) {
	addr := startTestServer(t)
	c, err := client.Dial(addr, logger.Default())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	resp, err := c.Instantiate(ctx, "inst1", false)
	require.NoError(t, err)
	require.Equal(t, fmitcp.StatusOK, resp.Status)

	resp, err = c.InitializeSlave(ctx, false, 0, 0, true, 1.0)
	require.NoError(t, err)
	require.Equal(t, fmitcp.StatusOK, resp.Status)

	require.NoError(t, c.SetReal(ctx, []uint32{7}, []float64{3.14}))

	values, err := c.GetReal(ctx, []uint32{7})
	require.NoError(t, err)
	require.Equal(t, []float64{3.14}, values)

	resp, err = c.TerminateSlave(ctx)
	require.NoError(t, err)
	require.Equal(t, fmitcp.StatusOK, resp.Status)

	resp, err = c.FreeSlaveInstance(ctx)
	require.NoError(t, err)
	require.Equal(t, fmitcp.StatusOK, resp.Status)
}

func TestClient_MonotonicMessageIDs(t *testing.T) {
	addr := startTestServer(t)
	c, err := client.Dial(addr, logger.Default())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	resp1, err := c.Instantiate(ctx, "inst1", false)
	require.NoError(t, err)
	resp2, err := c.GetVersion(ctx)
	require.NoError(t, err)

	require.Less(t, resp1.MessageID, resp2.MessageID)
}

func TestClient_IllegalStateArrivesAsInBandErrorStatus(t *testing.T) {
	addr := startTestServer(t)
	c, err := client.Dial(addr, logger.Default())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// do_step before instantiate/initialize is illegal from the Loaded state;
	// the transport call still succeeds, the error arrives in-band.
	resp, err := c.Call(ctx, &fmitcp.Request{Op: fmitcp.OpDoStep, CurrentCommPoint: 0, StepSize: 0.1, NewStep: true})
	require.NoError(t, err)
	require.Equal(t, fmitcp.StatusError, resp.Status)
}

func TestClient_CallAfterCloseReturnsError(t *testing.T) {
	addr := startTestServer(t)
	c, err := client.Dial(addr, logger.Default())
	require.NoError(t, err)

	require.NoError(t, c.Close())

	_, err = c.Call(context.Background(), &fmitcp.Request{Op: fmitcp.OpGetVersion})
	require.Error(t, err)
}
