// Package simulation defines the opaque handle and typed operation surface
// over a loaded co-simulation component (spec.md §4.C). The native FMI
// runtime itself — unpacking the model archive, loading the platform
// binary, exposing typed get/set/step entry points — is named out of scope
// in spec.md §1 as an external collaborator; this package only defines the
// contract the rest of the server consumes, plus one pure-Go reference
// implementation sufficient to drive the lifecycle and the scenarios in
// spec.md §8 without a real platform binary.
package simulation

import (
	"github.com/fmitcpd/fmitcpd/internal/protocol/fmitcp"
)

// Status is the native co-simulation result code from spec.md §4.C. The
// dispatcher maps it onto the wire by identity (spec.md §4.F), so this is
// simply fmitcp's Status.
type Status = fmitcp.Status

const (
	StatusOK      = fmitcp.StatusOK
	StatusWarning = fmitcp.StatusWarning
	StatusDiscard = fmitcp.StatusDiscard
	StatusError   = fmitcp.StatusError
	StatusFatal   = fmitcp.StatusFatal
	StatusPending = fmitcp.StatusPending
)

// PrimitiveType is one of the four FMI variable primitive types.
type PrimitiveType int

const (
	TypeReal PrimitiveType = iota
	TypeInteger
	TypeBoolean
	TypeString
)

// Causality classifies how a variable participates in the model interface.
type Causality int

const (
	CausalityParameter Causality = iota
	CausalityCalculatedParameter
	CausalityInput
	CausalityOutput
	CausalityLocal
	CausalityIndependent
)

// Variability classifies how a variable may change during a simulation.
type Variability int

const (
	VariabilityConstant Variability = iota
	VariabilityFixed
	VariabilityTunable
	VariabilityDiscrete
	VariabilityContinuous
)

// VariableDescriptor is one entry of an instance's variable catalogue
// (spec.md §3).
type VariableDescriptor struct {
	Name           string
	ValueReference uint32
	Type           PrimitiveType
	Causality      Causality
	Variability    Variability

	// Start carries the declared XML start value, if any, consumed by the
	// config/param application component (spec.md §4.I). Exactly one of
	// these is meaningful, per Type.
	HasStart  bool
	StartReal float64
	StartInt  int32
	StartBool bool
	StartStr  string
}

// Kind selects which flavor of FMU a binary is loaded as (spec.md §4.C
// loadBinary). Only CS and the hybrid ME+CS are cosim-capable; a pure ME
// FMU must be rejected with UnsupportedKind.
type Kind int

const (
	KindCS Kind = iota
	KindModelExchangeAndCS
	KindModelExchange
)

// ErrUnsupportedKind is returned by LoadBinary when kind is not
// cosim-capable (spec.md §4.C).
type ErrUnsupportedKind struct{ Kind Kind }

func (e *ErrUnsupportedKind) Error() string { return "simulation: unsupported kind for co-simulation" }

// ErrArgumentMismatch reports a length mismatch between parallel arrays
// (spec.md §4.C set_T, §7 ArgumentError).
type ErrArgumentMismatch struct {
	RefsLen, ValuesLen int
}

func (e *ErrArgumentMismatch) Error() string {
	return "simulation: value reference and value array length mismatch"
}

// Instance represents one loaded component (spec.md §3 SimulationInstance).
// While Handle is non-nil the scratch directory exists and the archive is
// considered unpacked into it; both are released together by Adapter.Free.
type Instance struct {
	ArchiveURL string
	ScratchDir string
	Name       string
	FMIVersion string
	Variables  []VariableDescriptor

	// Handle is the adapter's private runtime handle; opaque to callers.
	Handle any
}

// VariableByRef looks up a catalogue entry by value reference.
func (i *Instance) VariableByRef(ref uint32) (VariableDescriptor, bool) {
	for _, v := range i.Variables {
		if v.ValueReference == ref {
			return v, true
		}
	}
	return VariableDescriptor{}, false
}

// Adapter is the opaque handle operation surface from spec.md §4.C. Every
// call returns a native Status; optional operations (state rollback,
// serialization, derivatives) may legitimately answer StatusDiscard when
// the underlying model does not support them.
type Adapter interface {
	ParseArchive(url, workDir string) (*Instance, error)
	LoadBinary(inst *Instance, kind Kind) (Status, error)

	Instantiate(inst *Instance, name string, visible bool) Status
	SetupExperiment(inst *Instance, toleranceDefined bool, tolerance, startTime float64, stopTimeDefined bool, stopTime float64) Status
	EnterInitializationMode(inst *Instance) Status
	ExitInitializationMode(inst *Instance) Status

	DoStep(inst *Instance, currentCommPoint, stepSize float64, newStep bool) Status
	CancelStep(inst *Instance) Status
	Terminate(inst *Instance) Status
	Reset(inst *Instance) Status

	GetReal(inst *Instance, refs []uint32) ([]float64, Status)
	SetReal(inst *Instance, refs []uint32, values []float64) Status
	GetInteger(inst *Instance, refs []uint32) ([]int32, Status)
	SetInteger(inst *Instance, refs []uint32, values []int32) Status
	GetBoolean(inst *Instance, refs []uint32) ([]bool, Status)
	SetBoolean(inst *Instance, refs []uint32, values []bool) Status
	GetString(inst *Instance, refs []uint32) ([]string, Status)
	SetString(inst *Instance, refs []uint32, values []string) Status

	GetFmuState(inst *Instance) (uint32, Status)
	SetFmuState(inst *Instance, stateID uint32) Status
	FreeFmuState(inst *Instance, stateID uint32) Status
	SerializeSize(inst *Instance, stateID uint32) (uint32, Status)
	Serialize(inst *Instance, stateID uint32) ([]byte, Status)
	Deserialize(inst *Instance, data []byte) (uint32, Status)

	GetDirectionalDerivative(inst *Instance, vref, zref []uint32, dv []float64) ([]float64, Status)
	SetRealInputDerivatives(inst *Instance, vref []uint32, order []int32, value []float64) Status
	GetRealOutputDerivatives(inst *Instance, vref []uint32, order []int32) ([]float64, Status)

	GetStatus(inst *Instance) Status
	GetRealStatus(inst *Instance) (float64, Status)
	GetIntegerStatus(inst *Instance) (int32, Status)
	GetBooleanStatus(inst *Instance) (bool, Status)
	GetStringStatus(inst *Instance) (string, Status)

	SetDebugLogging(inst *Instance, enabled bool, categories []string) Status

	// Free is idempotent; after it returns only the Freed state is legal.
	Free(inst *Instance) error
}
