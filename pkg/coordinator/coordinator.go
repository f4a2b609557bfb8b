// Package coordinator implements the master-side Jacobi-step orchestrator
// (spec.md §4.H): it drives N remote components in lock-step, transferring
// connection values between steps according to a fixed, config-declared
// wiring.
package coordinator

import (
	"context"
	"fmt"
	"time"

	"github.com/fmitcpd/fmitcpd/internal/logger"
	"github.com/fmitcpd/fmitcpd/internal/protocol/fmitcp"
	"github.com/fmitcpd/fmitcpd/pkg/client"
	"github.com/fmitcpd/fmitcpd/pkg/config"
	"github.com/fmitcpd/fmitcpd/pkg/metrics"
)

// ValueType is the primitive type carried by one connection endpoint.
type ValueType string

const (
	TypeReal    ValueType = "real"
	TypeInteger ValueType = "integer"
	TypeBoolean ValueType = "boolean"
	TypeString  ValueType = "string"
)

// Component is one dialed remote component plus its configured name, used
// both to address it in the connection catalogue and to label metrics/logs.
type Component struct {
	Name   string
	Client *client.Client
}

// Connection is the immutable 4-tuple from spec.md §3: a value transfer from
// one component's output to another's input, applied once per step.
type Connection struct {
	SrcFmu string
	SrcRef uint32
	DstFmu string
	DstRef uint32
	Type   ValueType
}

// StepResult reports the outcome of one Jacobi step.
type StepResult struct {
	Step           int
	Time           float64
	Halted         bool
	OffendingIndex int
	OffendingFmu   string
}

// Coordinator drives Components through Connections at a fixed step size
// from StartTime to EndTime (spec.md §4.H).
type Coordinator struct {
	components  []Component
	byName      map[string]*Component
	connections []Connection
	stepOrder   []string

	startTime float64
	stepSize  float64
	endTime   float64

	logger  logger.Logger
	metrics metrics.CoordinatorMetrics
}

// Config wires a Coordinator. StepOrder, when non-empty, must name every
// component exactly once; it affects only the order transfers are applied
// within a step (spec.md §3 StepOrder), never the stepping itself.
type Config struct {
	Components  []Component
	Connections []Connection
	StepOrder   []string
	StartTime   time.Duration
	StepSize    time.Duration
	EndTime     time.Duration
	Logger      logger.Logger
	Metrics     metrics.CoordinatorMetrics
}

func New(cfg Config) (*Coordinator, error) {
	if len(cfg.Components) == 0 {
		return nil, fmt.Errorf("coordinator: no components configured")
	}
	if cfg.StepSize <= 0 {
		return nil, fmt.Errorf("coordinator: step size must be positive")
	}

	byName := make(map[string]*Component, len(cfg.Components))
	for i := range cfg.Components {
		c := &cfg.Components[i]
		if _, dup := byName[c.Name]; dup {
			return nil, fmt.Errorf("coordinator: duplicate component name %q", c.Name)
		}
		byName[c.Name] = c
	}
	for _, conn := range cfg.Connections {
		if _, ok := byName[conn.SrcFmu]; !ok {
			return nil, fmt.Errorf("coordinator: connection references unknown source fmu %q", conn.SrcFmu)
		}
		if _, ok := byName[conn.DstFmu]; !ok {
			return nil, fmt.Errorf("coordinator: connection references unknown destination fmu %q", conn.DstFmu)
		}
	}

	order := cfg.StepOrder
	if len(order) == 0 {
		order = make([]string, len(cfg.Components))
		for i, c := range cfg.Components {
			order[i] = c.Name
		}
	} else {
		if len(order) != len(cfg.Components) {
			return nil, fmt.Errorf("coordinator: step_order must name every component exactly once")
		}
		seen := make(map[string]bool, len(order))
		for _, name := range order {
			if _, ok := byName[name]; !ok || seen[name] {
				return nil, fmt.Errorf("coordinator: step_order must name every component exactly once")
			}
			seen[name] = true
		}
	}

	return &Coordinator{
		components:  cfg.Components,
		byName:      byName,
		connections: cfg.Connections,
		stepOrder:   order,
		startTime:   cfg.StartTime.Seconds(),
		stepSize:    cfg.StepSize.Seconds(),
		endTime:     cfg.EndTime.Seconds(),
		logger:      cfg.Logger,
		metrics:     cfg.Metrics,
	}, nil
}

// FromSpec builds the Component/Connection slices of a Config from a
// loaded config.CoordinatorConfig plus one dialed client per FMU, and passes
// it to New.
func FromSpec(cfg *config.CoordinatorConfig, clients map[string]*client.Client, log logger.Logger, m metrics.CoordinatorMetrics) (*Coordinator, error) {
	components := make([]Component, 0, len(cfg.Fmus))
	for _, f := range cfg.Fmus {
		c, ok := clients[f.Name]
		if !ok {
			return nil, fmt.Errorf("coordinator: no client dialed for fmu %q", f.Name)
		}
		components = append(components, Component{Name: f.Name, Client: c})
	}

	connections := make([]Connection, 0, len(cfg.Connections))
	for _, cs := range cfg.Connections {
		connections = append(connections, Connection{
			SrcFmu: cs.SrcFmu, SrcRef: cs.SrcRef,
			DstFmu: cs.DstFmu, DstRef: cs.DstRef,
			Type: ValueType(cs.Type),
		})
	}

	return New(Config{
		Components:  components,
		Connections: connections,
		StepOrder:   cfg.StepOrder,
		StartTime:   cfg.StartTime,
		StepSize:    cfg.StepSize,
		EndTime:     cfg.EndTime,
		Logger:      log,
		Metrics:     m,
	})
}

// Run instantiates, initializes, and steps every component from StartTime to
// EndTime, then terminates and frees them. It returns the first halting
// StepResult, if any, alongside an error; a nil error with a non-halting
// final result means the horizon completed cleanly.
func (co *Coordinator) Run(ctx context.Context) (StepResult, error) {
	if err := co.instantiateAll(ctx); err != nil {
		return StepResult{}, err
	}
	if err := co.initializeAll(ctx); err != nil {
		return StepResult{}, err
	}
	defer co.teardownAll(ctx)

	t := co.startTime
	step := 0
	for t < co.endTime {
		select {
		case <-ctx.Done():
			return StepResult{Step: step, Time: t}, ctx.Err()
		default:
		}

		result, err := co.stepOnce(ctx, step, t)
		if err != nil {
			return result, err
		}
		if result.Halted {
			return result, fmt.Errorf("coordinator: component %q returned non-ok status at step %d", result.OffendingFmu, step)
		}
		if err := co.transfer(ctx); err != nil {
			return StepResult{Step: step, Time: t}, err
		}

		step++
		t = co.startTime + float64(step)*co.stepSize
	}
	return StepResult{Step: step, Time: t}, nil
}

func (co *Coordinator) instantiateAll(ctx context.Context) error {
	for _, c := range co.components {
		resp, err := c.Client.Instantiate(ctx, c.Name, false)
		if err != nil {
			return fmt.Errorf("coordinator: instantiate %q: %w", c.Name, err)
		}
		if err := statusErr(c.Name, resp); err != nil {
			return err
		}
	}
	return nil
}

func (co *Coordinator) initializeAll(ctx context.Context) error {
	for _, c := range co.components {
		resp, err := c.Client.InitializeSlave(ctx, false, 0, co.startTime, true, co.endTime)
		if err != nil {
			return fmt.Errorf("coordinator: initialize_slave %q: %w", c.Name, err)
		}
		if err := statusErr(c.Name, resp); err != nil {
			return err
		}
	}
	return nil
}

func (co *Coordinator) teardownAll(ctx context.Context) {
	for _, c := range co.components {
		if _, err := c.Client.TerminateSlave(ctx); err != nil {
			co.logger.Error("coordinator: terminate_slave failed", "fmu", c.Name, "error", err)
		}
		if _, err := c.Client.FreeSlaveInstance(ctx); err != nil {
			co.logger.Error("coordinator: free_slave_instance failed", "fmu", c.Name, "error", err)
		}
	}
}

// stepOnce advances every component by exactly stepSize from t
// (invariant 1). It halts on the first non-ok response, surfacing the
// offending index (invariant 3), before any transfer for this step occurs.
func (co *Coordinator) stepOnce(ctx context.Context, step int, t float64) (StepResult, error) {
	start := time.Now()
	for i, c := range co.components {
		resp, err := c.Client.DoStep(ctx, t, co.stepSize, true)
		if err != nil {
			if co.metrics != nil {
				co.metrics.RecordStep(time.Since(start), false)
			}
			return StepResult{Step: step, Time: t}, fmt.Errorf("coordinator: do_step %q: %w", c.Name, err)
		}
		if resp.Status != fmitcp.StatusOK && resp.Status != fmitcp.StatusWarning {
			if co.metrics != nil {
				co.metrics.RecordStep(time.Since(start), false)
			}
			return StepResult{Step: step, Time: t, Halted: true, OffendingIndex: i, OffendingFmu: c.Name}, nil
		}
	}
	if co.metrics != nil {
		co.metrics.RecordStep(time.Since(start), true)
	}
	return StepResult{Step: step, Time: t}, nil
}

// transfer reads every connection's source value after the step and writes
// it to the destination before the next step begins (invariant 2 and 4).
// stepOrder only determines the order transfers are iterated in here.
func (co *Coordinator) transfer(ctx context.Context) error {
	for _, name := range co.stepOrder {
		for _, conn := range co.connections {
			if conn.SrcFmu != name {
				continue
			}
			if err := co.transferOne(ctx, conn); err != nil {
				return err
			}
		}
	}
	return nil
}

func (co *Coordinator) transferOne(ctx context.Context, conn Connection) error {
	src := co.byName[conn.SrcFmu]
	dst := co.byName[conn.DstFmu]

	switch conn.Type {
	case TypeReal:
		values, err := src.Client.GetReal(ctx, []uint32{conn.SrcRef})
		if err != nil {
			return fmt.Errorf("coordinator: get_real %q: %w", src.Name, err)
		}
		if err := dst.Client.SetReal(ctx, []uint32{conn.DstRef}, values); err != nil {
			return fmt.Errorf("coordinator: set_real %q: %w", dst.Name, err)
		}
	case TypeInteger:
		values, err := src.Client.GetInteger(ctx, []uint32{conn.SrcRef})
		if err != nil {
			return fmt.Errorf("coordinator: get_integer %q: %w", src.Name, err)
		}
		if err := dst.Client.SetInteger(ctx, []uint32{conn.DstRef}, values); err != nil {
			return fmt.Errorf("coordinator: set_integer %q: %w", dst.Name, err)
		}
	case TypeBoolean:
		values, err := src.Client.GetBoolean(ctx, []uint32{conn.SrcRef})
		if err != nil {
			return fmt.Errorf("coordinator: get_boolean %q: %w", src.Name, err)
		}
		if err := dst.Client.SetBoolean(ctx, []uint32{conn.DstRef}, values); err != nil {
			return fmt.Errorf("coordinator: set_boolean %q: %w", dst.Name, err)
		}
	case TypeString:
		values, err := src.Client.GetString(ctx, []uint32{conn.SrcRef})
		if err != nil {
			return fmt.Errorf("coordinator: get_string %q: %w", src.Name, err)
		}
		if err := dst.Client.SetString(ctx, []uint32{conn.DstRef}, values); err != nil {
			return fmt.Errorf("coordinator: set_string %q: %w", dst.Name, err)
		}
	default:
		return fmt.Errorf("coordinator: connection %s.%d -> %s.%d has unknown type %q", conn.SrcFmu, conn.SrcRef, conn.DstFmu, conn.DstRef, conn.Type)
	}

	if co.metrics != nil {
		co.metrics.RecordTransfer(conn.SrcFmu, conn.DstFmu)
	}
	return nil
}

func statusErr(fmuName string, resp *fmitcp.Response) error {
	if resp.Status == fmitcp.StatusOK || resp.Status == fmitcp.StatusWarning {
		return nil
	}
	return fmt.Errorf("coordinator: %q returned status %s", fmuName, resp.Status)
}
