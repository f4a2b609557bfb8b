// Package fmitcp implements the wire protocol described in spec.md §6: a
// tagged-union request/response schema over length-delimited TCP frames.
package fmitcp

import "fmt"

// Op identifies a request/response kind. The full enumeration mirrors
// spec.md §6 exactly, including the model-exchange placeholders that this
// co-simulation-only server accepts but answers with a no-op response.
type Op int32

const (
	OpInstantiate Op = iota + 1
	OpInitializeSlave
	OpTerminateSlave
	OpResetSlave
	OpFreeSlaveInstance

	OpDoStep
	OpCancelStep

	OpGetReal
	OpSetReal
	OpGetInteger
	OpSetInteger
	OpGetBoolean
	OpSetBoolean
	OpGetString
	OpSetString

	OpSetRealInputDerivatives
	OpGetRealOutputDerivatives
	OpGetDirectionalDerivative

	OpGetStatus
	OpGetRealStatus
	OpGetIntegerStatus
	OpGetBooleanStatus
	OpGetStringStatus

	OpGetFmuState
	OpSetFmuState
	OpFreeFmuState
	OpSerializedFmuStateSize
	OpSerializeFmuState
	OpDeSerializeFmuState

	OpGetVersion
	OpSetDebugLogging
	OpGetXml

	// Model-exchange placeholders: accepted, always answered with a no-op
	// success response (spec.md §6).
	OpInstantiateModel
	OpFreeModelInstance
	OpSetTime
	OpSetContinuousStates
	OpCompletedIntegratorStep
	OpInitializeModel
	OpGetDerivatives
	OpGetEventIndicators
	OpEventUpdate
	OpCompletedEventIteration
	OpGetContinuousStates
	OpGetNominalContinuousStates
	OpTerminate
)

// names backs Op.String() and the dispatcher's canonical log line.
var names = map[Op]string{
	OpInstantiate:                 "instantiate",
	OpInitializeSlave:             "initialize_slave",
	OpTerminateSlave:              "terminate_slave",
	OpResetSlave:                  "reset_slave",
	OpFreeSlaveInstance:           "free_slave_instance",
	OpDoStep:                      "do_step",
	OpCancelStep:                  "cancel_step",
	OpGetReal:                     "get_real",
	OpSetReal:                     "set_real",
	OpGetInteger:                  "get_integer",
	OpSetInteger:                  "set_integer",
	OpGetBoolean:                  "get_boolean",
	OpSetBoolean:                  "set_boolean",
	OpGetString:                   "get_string",
	OpSetString:                   "set_string",
	OpSetRealInputDerivatives:     "set_real_input_derivatives",
	OpGetRealOutputDerivatives:    "get_real_output_derivatives",
	OpGetDirectionalDerivative:    "get_directional_derivative",
	OpGetStatus:                   "get_status",
	OpGetRealStatus:               "get_real_status",
	OpGetIntegerStatus:            "get_integer_status",
	OpGetBooleanStatus:            "get_boolean_status",
	OpGetStringStatus:             "get_string_status",
	OpGetFmuState:                 "get_fmu_state",
	OpSetFmuState:                 "set_fmu_state",
	OpFreeFmuState:                "free_fmu_state",
	OpSerializedFmuStateSize:      "serialized_fmu_state_size",
	OpSerializeFmuState:           "serialize_fmu_state",
	OpDeSerializeFmuState:         "de_serialize_fmu_state",
	OpGetVersion:                  "get_version",
	OpSetDebugLogging:             "set_debug_logging",
	OpGetXml:                      "get_xml",
	OpInstantiateModel:            "instantiate_model",
	OpFreeModelInstance:           "free_model_instance",
	OpSetTime:                     "set_time",
	OpSetContinuousStates:         "set_continuous_states",
	OpCompletedIntegratorStep:     "completed_integrator_step",
	OpInitializeModel:             "initialize_model",
	OpGetDerivatives:              "get_derivatives",
	OpGetEventIndicators:          "get_event_indicators",
	OpEventUpdate:                 "eventUpdate",
	OpCompletedEventIteration:     "completed_event_iteration",
	OpGetContinuousStates:         "get_continuous_states",
	OpGetNominalContinuousStates:  "get_nominal_continuous_states",
	OpTerminate:                   "terminate",
}

// String returns the operation's canonical lowercase (mostly) name, or
// "unknown_op(N)" for a tag outside the enumeration.
func (o Op) String() string {
	if n, ok := names[o]; ok {
		return n
	}
	return fmt.Sprintf("unknown_op(%d)", int32(o))
}

// Known reports whether o is a recognized operation tag.
func (o Op) Known() bool {
	_, ok := names[o]
	return ok
}

// Status is the native co-simulation result code from spec.md §4.C,
// identical across the adapter, the dispatcher and the client.
type Status int32

const (
	StatusOK Status = iota
	StatusWarning
	StatusDiscard
	StatusError
	StatusFatal
	StatusPending
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusWarning:
		return "warning"
	case StatusDiscard:
		return "discard"
	case StatusError:
		return "error"
	case StatusFatal:
		return "fatal"
	case StatusPending:
		return "pending"
	default:
		return "unknown"
	}
}

// Request is the wire shape of every request kind. Fields are a flattened
// superset of every operation's arguments; a given Op only populates the
// fields that operation defines (spec.md §3's "tagged union"). Unused
// fields are left at their zero value and cost nothing beyond a few encoded
// bytes, trading a little wire bandwidth for a single, reflection-friendly
// struct the codec can marshal without a generated oneof.
type Request struct {
	Op        Op
	MessageID uint32
	FmuID     uint32

	ValueRefs  []uint32
	RealValues []float64
	IntValues  []int32
	BoolValues []bool
	StrValues  []string
	Orders     []int32

	InputRefs   []uint32
	InputDeltas []float64

	StateID uint32

	ToleranceDefined bool
	Tolerance        float64
	StartTime        float64
	StopTimeDefined  bool
	StopTime         float64

	CurrentCommPoint float64
	StepSize         float64
	NewStep          bool

	DebugEnabled bool
	Categories   []string

	Data []byte

	Name    string
	Visible bool
	Kind    int32
}

// Response is the wire shape of every response kind, mirroring Request.
type Response struct {
	Op        Op
	MessageID uint32
	FmuID     uint32
	Status    Status

	RealValues []float64
	IntValues  []int32
	BoolValues []bool
	StrValues  []string

	StateID uint32
	Size    uint32
	Data    []byte

	Version string
	Xml     string
}
