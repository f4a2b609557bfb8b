package commands

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/fmitcpd/fmitcpd/internal/cli/output"
	"github.com/fmitcpd/fmitcpd/internal/logger"
	"github.com/fmitcpd/fmitcpd/pkg/client"
	"github.com/fmitcpd/fmitcpd/pkg/config"
	"github.com/fmitcpd/fmitcpd/pkg/coordinator"
	"github.com/fmitcpd/fmitcpd/pkg/metrics"
	prommetrics "github.com/fmitcpd/fmitcpd/pkg/metrics/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Dial the configured components and run the Jacobi stepper",
	RunE:  runRun,
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadCoordinator(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.New(logger.Config{
		Level: cfg.Logging.Level, Format: cfg.Logging.Format, Output: cfg.Logging.Output,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	var coordMetrics metrics.CoordinatorMetrics
	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
		coordMetrics = prommetrics.NewCoordinatorMetrics()
		go serveMetrics(cfg.Metrics.Port, log)
	}

	clients := make(map[string]*client.Client, len(cfg.Fmus))
	for _, f := range cfg.Fmus {
		c, err := client.Dial(f.Addr, log)
		if err != nil {
			return fmt.Errorf("dial %s at %s: %w", f.Name, f.Addr, err)
		}
		defer c.Close()
		clients[f.Name] = c
	}

	co, err := coordinator.FromSpec(cfg, clients, log, coordMetrics)
	if err != nil {
		return fmt.Errorf("build coordinator: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Network("shutdown signal received")
		cancel()
	}()

	result, runErr := co.Run(ctx)

	format, err := output.ParseFormat(cfg.Output)
	if err != nil {
		return fmt.Errorf("output format: %w", err)
	}
	if err := output.Print(cmd.OutOrStdout(), format, output.Result{
		Step: result.Step, Time: result.Time,
		Halted: result.Halted, OffendingFmu: result.OffendingFmu,
	}); err != nil {
		log.Error("failed to print result", "error", err)
	}

	return runErr
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
