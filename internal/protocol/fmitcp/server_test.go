package fmitcp_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/fmitcpd/fmitcpd/internal/dispatch"
	"github.com/fmitcpd/fmitcpd/internal/lifecycle"
	"github.com/fmitcpd/fmitcpd/internal/logger"
	"github.com/fmitcpd/fmitcpd/internal/protocol/fmitcp"
	"github.com/fmitcpd/fmitcpd/internal/simulation"
	"github.com/stretchr/testify/require"
)

func startTestServer(t *testing.T) (*fmitcp.Server, net.Conn) {
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

	conn, err := net.Dial("tcp", srv.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return srv, conn
}

func roundTrip(t *testing.T, conn net.Conn, req *fmitcp.Request) *fmitcp.Response {
	t.Helper()
	payload, err := fmitcp.EncodeRequest(req)
	require.NoError(t, err)
	require.NoError(t, fmitcp.WriteFrame(conn, payload))

	out, err := fmitcp.ReadFrame(conn)
	require.NoError(t, err)
	resp, err := fmitcp.DecodeResponse(out)
	require.NoError(t, err)
	return resp
}

func TestServer_KeepaliveDoesNotDesynchronizeFrames(t *testing.T) {
	_, conn := startTestServer(t)

	require.NoError(t, conn.SetDeadline(time.Now().Add(5*time.Second)))
	require.NoError(t, fmitcp.WriteFrame(conn, nil))

	resp := roundTrip(t, conn, &fmitcp.Request{Op: fmitcp.OpInstantiate, MessageID: 1})
	require.Equal(t, uint32(1), resp.MessageID)
	require.Equal(t, fmitcp.StatusOK, resp.Status)
}

func TestServer_HandshakeOverTCP(t *testing.T) {
	_, conn := startTestServer(t)
	require.NoError(t, conn.SetDeadline(time.Now().Add(5*time.Second)))

	resp := roundTrip(t, conn, &fmitcp.Request{Op: fmitcp.OpInstantiate, MessageID: 1})
	require.Equal(t, fmitcp.StatusOK, resp.Status)

	resp = roundTrip(t, conn, &fmitcp.Request{
		Op: fmitcp.OpInitializeSlave, MessageID: 2,
		StopTimeDefined: true, StopTime: 1.0,
	})
	require.Equal(t, fmitcp.StatusOK, resp.Status)

	resp = roundTrip(t, conn, &fmitcp.Request{
		Op: fmitcp.OpSetReal, MessageID: 3, ValueRefs: []uint32{7}, RealValues: []float64{2.5},
	})
	require.Equal(t, fmitcp.StatusOK, resp.Status)

	resp = roundTrip(t, conn, &fmitcp.Request{Op: fmitcp.OpGetReal, MessageID: 4, ValueRefs: []uint32{7}})
	require.Equal(t, fmitcp.StatusOK, resp.Status)
	require.Equal(t, []float64{2.5}, resp.RealValues)
}
