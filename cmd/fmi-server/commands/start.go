package commands

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/fmitcpd/fmitcpd/internal/dispatch"
	"github.com/fmitcpd/fmitcpd/internal/lifecycle"
	"github.com/fmitcpd/fmitcpd/internal/logger"
	"github.com/fmitcpd/fmitcpd/internal/paramapply"
	"github.com/fmitcpd/fmitcpd/internal/protocol/fmitcp"
	"github.com/fmitcpd/fmitcpd/internal/simulation"
	"github.com/fmitcpd/fmitcpd/pkg/config"
	"github.com/fmitcpd/fmitcpd/pkg/metrics"
	prommetrics "github.com/fmitcpd/fmitcpd/pkg/metrics/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the protocol server",
	RunE:  runStart,
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadServer(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.New(logger.Config{
		Level: cfg.Logging.Level, Format: cfg.Logging.Format,
		Output: cfg.Logging.Output, Categories: toCategories(cfg.Logging.Categories),
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	var serverMetrics metrics.ServerMetrics
	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
		serverMetrics = prommetrics.NewServerMetrics()
		go serveMetrics(cfg.Metrics.Port, log)
	}

	adapter := simulation.NewReference()
	inst, err := adapter.ParseArchive(cfg.ArchiveURL, cfg.ScratchRoot)
	if err != nil {
		return fmt.Errorf("parse archive: %w", err)
	}

	overrides, err := paramapply.FromConfig(cfg.Overrides)
	if err != nil {
		return fmt.Errorf("parse overrides: %w", err)
	}

	dummy := cfg.Dummy || cfg.ArchiveURL == "dummy"
	d := dispatch.New(dispatch.Config{
		Adapter:             adapter,
		Instance:            inst,
		Machine:             lifecycle.New(dummy),
		Logger:              log,
		Dummy:               dummy,
		StrictUnimplemented: cfg.StrictUnimplemented,
		Metrics:             serverMetrics,
		Overrides:           overrides,
	})

	srv := fmitcp.NewServer(fmitcp.ServerConfig{
		Addr:       cfg.Addr,
		Dispatcher: d,
		Logger:     log,
		Hooks: fmitcp.Hooks{
			OnClientConnect: func(addr string) {
				log.Network("client connected", "addr", addr)
				if serverMetrics != nil {
					serverMetrics.RecordConnectionAccepted()
				}
			},
			OnClientDisconnect: func(addr string) {
				log.Network("client disconnected", "addr", addr)
				if serverMetrics != nil {
					serverMetrics.RecordConnectionClosed()
				}
			},
			OnError: func(addr string, err error) {
				log.Error("connection error", "addr", addr, "error", err)
			},
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	serveDone := make(chan error, 1)
	go func() { serveDone <- srv.Serve(ctx) }()
	<-srv.Ready()
	log.Network("server listening", "addr", srv.Addr(), "archive", cfg.ArchiveURL, "dummy", dummy)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigChan:
		signal.Stop(sigChan)
		log.Network("shutdown signal received")
		srv.Stop()
		return <-serveDone
	case err := <-serveDone:
		signal.Stop(sigChan)
		return err
	}
}

func serveMetrics(port int, log logger.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}))
	addr := fmt.Sprintf(":%d", port)
	log.Network("metrics endpoint listening", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Error("metrics server failed", "error", err)
	}
}

func toCategories(names []string) []logger.Category {
	if len(names) == 0 {
		return nil
	}
	cats := make([]logger.Category, len(names))
	for i, n := range names {
		cats[i] = logger.Category(n)
	}
	return cats
}
