// Package dispatch implements the request dispatcher from spec.md §4.F: one
// handler per request kind, wired through a table rather than a long switch
// (spec.md §9 "Request-type mega-dispatch"), consulting the lifecycle state
// machine before every call into the simulation adapter.
package dispatch

import (
	"fmt"
	"time"

	"github.com/fmitcpd/fmitcpd/internal/lifecycle"
	"github.com/fmitcpd/fmitcpd/internal/logger"
	"github.com/fmitcpd/fmitcpd/internal/paramapply"
	"github.com/fmitcpd/fmitcpd/internal/protocol/fmitcp"
	"github.com/fmitcpd/fmitcpd/internal/simulation"
	"github.com/fmitcpd/fmitcpd/pkg/metrics"
)

// handlerFunc implements one request kind. It may assume Allowed(op) has
// already returned true for the current state.
type handlerFunc func(d *Dispatcher, req *fmitcp.Request) *fmitcp.Response

// handlerTable maps every implemented operation to its handler. Populated
// in init, mirroring the teacher's DispatchTable idiom
// (internal/protocol/portmap/dispatch.go) generalized from an RPC procedure
// number to the fmitcp.Op enumeration.
var handlerTable map[fmitcp.Op]handlerFunc

func init() {
	handlerTable = map[fmitcp.Op]handlerFunc{
		fmitcp.OpInstantiate:        handleInstantiate,
		fmitcp.OpInitializeSlave:    handleInitializeSlave,
		fmitcp.OpTerminateSlave:     handleTerminateSlave,
		fmitcp.OpResetSlave:         handleResetSlave,
		fmitcp.OpFreeSlaveInstance:  handleFreeSlaveInstance,
		fmitcp.OpDoStep:             handleDoStep,
		fmitcp.OpCancelStep:         handleCancelStep,
		fmitcp.OpGetReal:            handleGetReal,
		fmitcp.OpSetReal:            handleSetReal,
		fmitcp.OpGetInteger:         handleGetInteger,
		fmitcp.OpSetInteger:         handleSetInteger,
		fmitcp.OpGetBoolean:         handleGetBoolean,
		fmitcp.OpSetBoolean:         handleSetBoolean,
		fmitcp.OpGetString:          handleGetString,
		fmitcp.OpSetString:          handleSetString,
		fmitcp.OpSetRealInputDerivatives:  handleSetRealInputDerivatives,
		fmitcp.OpGetRealOutputDerivatives: handleGetRealOutputDerivatives,
		fmitcp.OpGetDirectionalDerivative: handleGetDirectionalDerivative,
		fmitcp.OpGetStatus:          handleGetStatus,
		fmitcp.OpGetRealStatus:      handleGetRealStatus,
		fmitcp.OpGetIntegerStatus:   handleGetIntegerStatus,
		fmitcp.OpGetBooleanStatus:   handleGetBooleanStatus,
		fmitcp.OpGetStringStatus:    handleGetStringStatus,
		fmitcp.OpGetFmuState:        handleGetFmuState,
		fmitcp.OpSetFmuState:        handleSetFmuState,
		fmitcp.OpFreeFmuState:       handleFreeFmuState,
		fmitcp.OpSerializedFmuStateSize: handleSerializedFmuStateSize,
		fmitcp.OpSerializeFmuState:      handleSerializeFmuState,
		fmitcp.OpDeSerializeFmuState:    handleDeSerializeFmuState,
		fmitcp.OpGetVersion:         handleGetVersion,
		fmitcp.OpGetXml:             handleGetXml,
		fmitcp.OpSetDebugLogging:    handleSetDebugLogging,
	}

	// Model-exchange placeholders: recognized, accepted, always a no-op
	// success (spec.md §6), never touching the co-simulation lifecycle.
	for _, op := range []fmitcp.Op{
		fmitcp.OpInstantiateModel, fmitcp.OpFreeModelInstance, fmitcp.OpSetTime,
		fmitcp.OpSetContinuousStates, fmitcp.OpCompletedIntegratorStep,
		fmitcp.OpInitializeModel, fmitcp.OpGetDerivatives, fmitcp.OpGetEventIndicators,
		fmitcp.OpEventUpdate, fmitcp.OpCompletedEventIteration, fmitcp.OpGetContinuousStates,
		fmitcp.OpGetNominalContinuousStates, fmitcp.OpTerminate,
	} {
		handlerTable[op] = handleModelExchangeNoOp
	}
}

// Config wires a Dispatcher to its collaborators.
type Config struct {
	Adapter  simulation.Adapter
	Instance *simulation.Instance
	Machine  *lifecycle.Machine
	Logger   logger.Logger

	// Dummy bypasses the adapter entirely: every recognized request
	// produces a canned success response (spec.md §4.E, §9 open question
	// "dummy mode bypasses the adapter entirely").
	Dummy bool

	// StrictUnimplemented selects the response policy for a recognized but
	// unimplemented operation: true answers status=error explicitly; false
	// silently drops the request (spec.md §9 open question). Every
	// operation in §6 has a handler in this package, so in practice this
	// only governs future additions to the enumeration that ship without
	// a handlerTable entry yet.
	StrictUnimplemented bool

	// OnFatal is called when an operation's adapter status is `fatal`
	// (spec.md §7 RuntimeError).
	OnFatal func(error)

	// Metrics is nil-safe: a nil value disables instrumentation entirely
	// (pkg/metrics' nil-safe constructor idiom).
	Metrics metrics.ServerMetrics

	// Overrides are applied via the adapter's typed setters immediately
	// after a successful instantiate, following the catalogue's own XML
	// start values (spec.md §4.I).
	Overrides []paramapply.Override
}

// Dispatcher implements fmitcp.RequestHandler.
type Dispatcher struct {
	cfg Config
}

// New builds a Dispatcher from cfg.
func New(cfg Config) *Dispatcher {
	return &Dispatcher{cfg: cfg}
}

var _ fmitcp.RequestHandler = (*Dispatcher)(nil)

// Handle implements fmitcp.RequestHandler. It logs the inbound and outbound
// events at NETWORK level in the canonical "< op(...)" / "> op(...)" form
// from spec.md §4.F, step (1) and (6).
func (d *Dispatcher) Handle(req *fmitcp.Request) *fmitcp.Response {
	d.cfg.Logger.Network(fmt.Sprintf("< %s", req.Op), "message_id", req.MessageID, "fmu_id", req.FmuID)

	start := time.Now()
	var resp *fmitcp.Response
	if d.cfg.Dummy {
		resp = dummyResponse(req)
	} else {
		resp = d.dispatch(req)
	}

	if resp == nil {
		d.cfg.Logger.Network(fmt.Sprintf("> %s (dropped)", req.Op), "message_id", req.MessageID)
		return nil
	}
	if d.cfg.Metrics != nil {
		d.cfg.Metrics.RecordRequest(resp.Op.String(), resp.Status.String(), time.Since(start))
	}
	d.cfg.Logger.Network(fmt.Sprintf("> %s", resp.Op), "message_id", resp.MessageID, "status", resp.Status)
	return resp
}

func (d *Dispatcher) dispatch(req *fmitcp.Request) *fmitcp.Response {
	h, ok := handlerTable[req.Op]
	if !ok {
		if d.cfg.StrictUnimplemented {
			return errorResponse(req)
		}
		return nil
	}

	if !d.cfg.Machine.Allowed(req.Op) {
		return errorResponse(req)
	}

	resp := h(d, req)

	switch resp.Status {
	case fmitcp.StatusOK, fmitcp.StatusWarning:
		d.cfg.Machine.Advance(req.Op)
	case fmitcp.StatusFatal:
		d.cfg.Machine.Fatal()
		if d.cfg.OnFatal != nil {
			d.cfg.OnFatal(fmt.Errorf("fmitcp: fatal status from %s", req.Op))
		}
	}
	return resp
}

func errorResponse(req *fmitcp.Request) *fmitcp.Response {
	return &fmitcp.Response{Op: req.Op, MessageID: req.MessageID, FmuID: req.FmuID, Status: fmitcp.StatusError}
}

func statusResponse(req *fmitcp.Request, status simulation.Status) *fmitcp.Response {
	return &fmitcp.Response{Op: req.Op, MessageID: req.MessageID, FmuID: req.FmuID, Status: status}
}

func handleInstantiate(d *Dispatcher, req *fmitcp.Request) *fmitcp.Response {
	status := d.cfg.Adapter.Instantiate(d.cfg.Instance, req.Name, req.Visible)
	if status != simulation.StatusOK {
		return statusResponse(req, status)
	}
	// Catalogue XML start values, then config overrides on top (spec.md
	// §4.I). A failure here is a RuntimeError, not an IllegalState: the
	// instance already exists, so it is reported as an error status
	// rather than rejecting the instantiate outright.
	if err := paramapply.Apply(d.cfg.Adapter, d.cfg.Instance, d.cfg.Overrides); err != nil {
		d.cfg.Logger.Error("fmitcp: param application failed", "error", err)
		return statusResponse(req, simulation.StatusError)
	}
	return statusResponse(req, simulation.StatusOK)
}

func handleInitializeSlave(d *Dispatcher, req *fmitcp.Request) *fmitcp.Response {
	a, inst := d.cfg.Adapter, d.cfg.Instance

	// Atomic per spec.md §4.D: a failure at any step leaves the instance
	// in Instantiated, since Advance is only called on an overall
	// success/warning status.
	if status := a.SetupExperiment(inst, req.ToleranceDefined, req.Tolerance, req.StartTime, req.StopTimeDefined, req.StopTime); status != simulation.StatusOK {
		return statusResponse(req, status)
	}
	if status := a.EnterInitializationMode(inst); status != simulation.StatusOK {
		return statusResponse(req, status)
	}
	return statusResponse(req, a.ExitInitializationMode(inst))
}

func handleTerminateSlave(d *Dispatcher, req *fmitcp.Request) *fmitcp.Response {
	return statusResponse(req, d.cfg.Adapter.Terminate(d.cfg.Instance))
}

func handleResetSlave(d *Dispatcher, req *fmitcp.Request) *fmitcp.Response {
	return statusResponse(req, d.cfg.Adapter.Reset(d.cfg.Instance))
}

func handleFreeSlaveInstance(d *Dispatcher, req *fmitcp.Request) *fmitcp.Response {
	if err := d.cfg.Adapter.Free(d.cfg.Instance); err != nil {
		d.cfg.Logger.Error("fmitcp: free failed", "error", err)
		return errorResponse(req)
	}
	return statusResponse(req, simulation.StatusOK)
}

func handleDoStep(d *Dispatcher, req *fmitcp.Request) *fmitcp.Response {
	status := d.cfg.Adapter.DoStep(d.cfg.Instance, req.CurrentCommPoint, req.StepSize, req.NewStep)
	return statusResponse(req, status)
}

func handleCancelStep(d *Dispatcher, req *fmitcp.Request) *fmitcp.Response {
	return statusResponse(req, d.cfg.Adapter.CancelStep(d.cfg.Instance))
}

func handleGetReal(d *Dispatcher, req *fmitcp.Request) *fmitcp.Response {
	values, status := d.cfg.Adapter.GetReal(d.cfg.Instance, req.ValueRefs)
	resp := statusResponse(req, status)
	resp.RealValues = values
	return resp
}

func handleSetReal(d *Dispatcher, req *fmitcp.Request) *fmitcp.Response {
	if len(req.ValueRefs) != len(req.RealValues) {
		return errorResponse(req)
	}
	return statusResponse(req, d.cfg.Adapter.SetReal(d.cfg.Instance, req.ValueRefs, req.RealValues))
}

func handleGetInteger(d *Dispatcher, req *fmitcp.Request) *fmitcp.Response {
	values, status := d.cfg.Adapter.GetInteger(d.cfg.Instance, req.ValueRefs)
	resp := statusResponse(req, status)
	resp.IntValues = values
	return resp
}

func handleSetInteger(d *Dispatcher, req *fmitcp.Request) *fmitcp.Response {
	if len(req.ValueRefs) != len(req.IntValues) {
		return errorResponse(req)
	}
	return statusResponse(req, d.cfg.Adapter.SetInteger(d.cfg.Instance, req.ValueRefs, req.IntValues))
}

func handleGetBoolean(d *Dispatcher, req *fmitcp.Request) *fmitcp.Response {
	values, status := d.cfg.Adapter.GetBoolean(d.cfg.Instance, req.ValueRefs)
	resp := statusResponse(req, status)
	resp.BoolValues = values
	return resp
}

func handleSetBoolean(d *Dispatcher, req *fmitcp.Request) *fmitcp.Response {
	if len(req.ValueRefs) != len(req.BoolValues) {
		return errorResponse(req)
	}
	return statusResponse(req, d.cfg.Adapter.SetBoolean(d.cfg.Instance, req.ValueRefs, req.BoolValues))
}

func handleGetString(d *Dispatcher, req *fmitcp.Request) *fmitcp.Response {
	values, status := d.cfg.Adapter.GetString(d.cfg.Instance, req.ValueRefs)
	resp := statusResponse(req, status)
	resp.StrValues = values
	return resp
}

func handleSetString(d *Dispatcher, req *fmitcp.Request) *fmitcp.Response {
	if len(req.ValueRefs) != len(req.StrValues) {
		return errorResponse(req)
	}
	return statusResponse(req, d.cfg.Adapter.SetString(d.cfg.Instance, req.ValueRefs, req.StrValues))
}

func handleSetRealInputDerivatives(d *Dispatcher, req *fmitcp.Request) *fmitcp.Response {
	if len(req.ValueRefs) != len(req.Orders) || len(req.ValueRefs) != len(req.RealValues) {
		return errorResponse(req)
	}
	status := d.cfg.Adapter.SetRealInputDerivatives(d.cfg.Instance, req.ValueRefs, req.Orders, req.RealValues)
	return statusResponse(req, status)
}

func handleGetRealOutputDerivatives(d *Dispatcher, req *fmitcp.Request) *fmitcp.Response {
	if len(req.ValueRefs) != len(req.Orders) {
		return errorResponse(req)
	}
	values, status := d.cfg.Adapter.GetRealOutputDerivatives(d.cfg.Instance, req.ValueRefs, req.Orders)
	resp := statusResponse(req, status)
	resp.RealValues = values
	return resp
}

func handleGetDirectionalDerivative(d *Dispatcher, req *fmitcp.Request) *fmitcp.Response {
	dz, status := d.cfg.Adapter.GetDirectionalDerivative(d.cfg.Instance, req.ValueRefs, req.InputRefs, req.InputDeltas)
	resp := statusResponse(req, status)
	resp.RealValues = dz
	return resp
}

func handleGetStatus(d *Dispatcher, req *fmitcp.Request) *fmitcp.Response {
	return statusResponse(req, d.cfg.Adapter.GetStatus(d.cfg.Instance))
}

func handleGetRealStatus(d *Dispatcher, req *fmitcp.Request) *fmitcp.Response {
	v, status := d.cfg.Adapter.GetRealStatus(d.cfg.Instance)
	resp := statusResponse(req, status)
	resp.RealValues = []float64{v}
	return resp
}

func handleGetIntegerStatus(d *Dispatcher, req *fmitcp.Request) *fmitcp.Response {
	v, status := d.cfg.Adapter.GetIntegerStatus(d.cfg.Instance)
	resp := statusResponse(req, status)
	resp.IntValues = []int32{v}
	return resp
}

func handleGetBooleanStatus(d *Dispatcher, req *fmitcp.Request) *fmitcp.Response {
	v, status := d.cfg.Adapter.GetBooleanStatus(d.cfg.Instance)
	resp := statusResponse(req, status)
	resp.BoolValues = []bool{v}
	return resp
}

func handleGetStringStatus(d *Dispatcher, req *fmitcp.Request) *fmitcp.Response {
	v, status := d.cfg.Adapter.GetStringStatus(d.cfg.Instance)
	resp := statusResponse(req, status)
	resp.StrValues = []string{v}
	return resp
}

func handleGetFmuState(d *Dispatcher, req *fmitcp.Request) *fmitcp.Response {
	id, status := d.cfg.Adapter.GetFmuState(d.cfg.Instance)
	resp := statusResponse(req, status)
	resp.StateID = id
	return resp
}

func handleSetFmuState(d *Dispatcher, req *fmitcp.Request) *fmitcp.Response {
	return statusResponse(req, d.cfg.Adapter.SetFmuState(d.cfg.Instance, req.StateID))
}

func handleFreeFmuState(d *Dispatcher, req *fmitcp.Request) *fmitcp.Response {
	return statusResponse(req, d.cfg.Adapter.FreeFmuState(d.cfg.Instance, req.StateID))
}

func handleSerializedFmuStateSize(d *Dispatcher, req *fmitcp.Request) *fmitcp.Response {
	size, status := d.cfg.Adapter.SerializeSize(d.cfg.Instance, req.StateID)
	resp := statusResponse(req, status)
	resp.Size = size
	return resp
}

func handleSerializeFmuState(d *Dispatcher, req *fmitcp.Request) *fmitcp.Response {
	data, status := d.cfg.Adapter.Serialize(d.cfg.Instance, req.StateID)
	resp := statusResponse(req, status)
	resp.Data = data
	return resp
}

func handleDeSerializeFmuState(d *Dispatcher, req *fmitcp.Request) *fmitcp.Response {
	id, status := d.cfg.Adapter.Deserialize(d.cfg.Instance, req.Data)
	resp := statusResponse(req, status)
	resp.StateID = id
	return resp
}

func handleGetVersion(d *Dispatcher, req *fmitcp.Request) *fmitcp.Response {
	resp := statusResponse(req, simulation.StatusOK)
	resp.Version = "2.0"
	return resp
}

func handleGetXml(d *Dispatcher, req *fmitcp.Request) *fmitcp.Response {
	resp := statusResponse(req, simulation.StatusOK)
	resp.Xml = modelDescriptionXML(d.cfg.Instance)
	return resp
}

func handleSetDebugLogging(d *Dispatcher, req *fmitcp.Request) *fmitcp.Response {
	status := d.cfg.Adapter.SetDebugLogging(d.cfg.Instance, req.DebugEnabled, req.Categories)
	return statusResponse(req, status)
}

func handleModelExchangeNoOp(d *Dispatcher, req *fmitcp.Request) *fmitcp.Response {
	return statusResponse(req, simulation.StatusOK)
}

// modelDescriptionXML renders a minimal modelDescription.xml fragment
// listing inst's variable catalogue, enough for get_xml's response payload.
// A real modelDescription.xml is part of the FMU archive the native runtime
// parses; this is a derived summary, not a re-parse of that file.
func modelDescriptionXML(inst *simulation.Instance) string {
	xml := fmt.Sprintf(`<fmiModelDescription fmiVersion="%s" modelName="%s">`, inst.FMIVersion, inst.Name)
	for _, v := range inst.Variables {
		xml += fmt.Sprintf(`<ScalarVariable name=%q valueReference="%d"/>`, v.Name, v.ValueReference)
	}
	return xml + `</fmiModelDescription>`
}

// dummyResponse answers every recognized request with a canned success,
// sized from the request so the response shape matches a real run for the
// same inputs (spec.md §8 "Dummy equivalence": same tags, ids and statuses,
// differing only in numeric payloads).
func dummyResponse(req *fmitcp.Request) *fmitcp.Response {
	resp := &fmitcp.Response{Op: req.Op, MessageID: req.MessageID, FmuID: req.FmuID, Status: fmitcp.StatusOK}
	switch req.Op {
	case fmitcp.OpGetReal:
		resp.RealValues = make([]float64, len(req.ValueRefs))
	case fmitcp.OpGetInteger:
		resp.IntValues = make([]int32, len(req.ValueRefs))
	case fmitcp.OpGetBoolean:
		resp.BoolValues = make([]bool, len(req.ValueRefs))
	case fmitcp.OpGetString:
		resp.StrValues = make([]string, len(req.ValueRefs))
	case fmitcp.OpGetRealStatus:
		resp.RealValues = []float64{0}
	case fmitcp.OpGetIntegerStatus:
		resp.IntValues = []int32{0}
	case fmitcp.OpGetBooleanStatus:
		resp.BoolValues = []bool{false}
	case fmitcp.OpGetStringStatus:
		resp.StrValues = []string{""}
	case fmitcp.OpGetDirectionalDerivative, fmitcp.OpGetRealOutputDerivatives:
		resp.RealValues = make([]float64, len(req.ValueRefs))
	case fmitcp.OpGetVersion:
		resp.Version = "2.0"
	case fmitcp.OpGetXml:
		resp.Xml = `<fmiModelDescription/>`
	}
	return resp
}
