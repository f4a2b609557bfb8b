package coordinator_test

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
	"github.com/fmitcpd/fmitcpd/pkg/coordinator"
	"github.com/stretchr/testify/require"
)

func startTestComponent(t *testing.T, name string) coordinator.Component {
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

	c, err := client.Dial(srv.Addr(), logger.Default())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	return coordinator.Component{Name: name, Client: c}
}

func TestCoordinator_RunTransfersValuesEachStep(t *testing.T) {
	a := startTestComponent(t, "a")
	b := startTestComponent(t, "b")

	co, err := coordinator.New(coordinator.Config{
		Components: []coordinator.Component{a, b},
		Connections: []coordinator.Connection{
			{SrcFmu: "a", SrcRef: 7, DstFmu: "b", DstRef: 7, Type: coordinator.TypeReal},
		},
		StartTime: 0,
		StepSize:  100 * time.Millisecond,
		EndTime:   300 * time.Millisecond,
		Logger:    logger.Default(),
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	result, err := co.Run(ctx)
	require.NoError(t, err)
	require.False(t, result.Halted)
	require.Equal(t, 3, result.Step)
}

func TestCoordinator_RejectsUnknownConnectionEndpoint(t *testing.T) {
	a := startTestComponent(t, "a")

	_, err := coordinator.New(coordinator.Config{
		Components: []coordinator.Component{a},
		Connections: []coordinator.Connection{
			{SrcFmu: "a", SrcRef: 7, DstFmu: "missing", DstRef: 7, Type: coordinator.TypeReal},
		},
		StepSize: 100 * time.Millisecond,
		EndTime:  300 * time.Millisecond,
		Logger:   logger.Default(),
	})
	require.Error(t, err)
}

func TestCoordinator_RejectsMismatchedStepOrder(t *testing.T) {
	a := startTestComponent(t, "a")
	b := startTestComponent(t, "b")

	_, err := coordinator.New(coordinator.Config{
		Components: []coordinator.Component{a, b},
		StepOrder:  []string{"a"},
		StepSize:   100 * time.Millisecond,
		EndTime:    300 * time.Millisecond,
		Logger:     logger.Default(),
	})
	require.Error(t, err)
}

func TestCoordinator_RejectsZeroStepSize(t *testing.T) {
	a := startTestComponent(t, "a")

	_, err := coordinator.New(coordinator.Config{
		Components: []coordinator.Component{a},
		EndTime:    300 * time.Millisecond,
		Logger:     logger.Default(),
	})
	require.Error(t, err)
}
