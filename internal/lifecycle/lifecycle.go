// Package lifecycle implements the instance state machine from spec.md
// §4.D: the single source of truth for which requests are legal in which
// state. Handlers consult it before calling the simulation adapter; it
// never touches the adapter itself.
package lifecycle

import "github.com/fmitcpd/fmitcpd/internal/protocol/fmitcp"

// State is one of the lifecycle states from spec.md §3.
type State int

const (
	Loaded State = iota
	Instantiated
	Initialized
	Terminated
	Freed
	// Dummy is the sentinel root state in which every operation returns a
	// canned success without consulting the state machine further.
	Dummy
)

func (s State) String() string {
	switch s {
	case Loaded:
		return "Loaded"
	case Instantiated:
		return "Instantiated"
	case Initialized:
		return "Initialized"
	case Terminated:
		return "Terminated"
	case Freed:
		return "Freed"
	case Dummy:
		return "Dummy"
	default:
		return "Unknown"
	}
}

// Machine tracks one instance's lifecycle state and decides legality of
// each incoming operation, per the transition table in spec.md §4.D.
type Machine struct {
	state State
	// asyncStepPending records that do_step issued an asynchronous step,
	// which is the only state cancel_step may target (spec.md §4.D note).
	asyncStepPending bool
}

// New returns a Machine in Loaded state, or in Dummy state if dummy is true.
func New(dummy bool) *Machine {
	if dummy {
		return &Machine{state: Dummy}
	}
	return &Machine{state: Loaded}
}

// State returns the current state.
func (m *Machine) State() State { return m.state }

// getSetOps is the set of variable get/set requests, legal from both
// Instantiated and Initialized.
var getSetOps = map[fmitcp.Op]bool{
	fmitcp.OpGetReal: true, fmitcp.OpSetReal: true,
	fmitcp.OpGetInteger: true, fmitcp.OpSetInteger: true,
	fmitcp.OpGetBoolean: true, fmitcp.OpSetBoolean: true,
	fmitcp.OpGetString: true, fmitcp.OpSetString: true,
}

// stateQueryOps is the set of requests only legal while Initialized.
var stateQueryOps = map[fmitcp.Op]bool{
	fmitcp.OpGetStatus: true, fmitcp.OpGetRealStatus: true,
	fmitcp.OpGetIntegerStatus: true, fmitcp.OpGetBooleanStatus: true,
	fmitcp.OpGetStringStatus: true, fmitcp.OpGetFmuState: true,
	fmitcp.OpSetFmuState: true, fmitcp.OpFreeFmuState: true,
	fmitcp.OpSerializedFmuStateSize: true, fmitcp.OpSerializeFmuState: true,
	fmitcp.OpDeSerializeFmuState: true,
	fmitcp.OpGetDirectionalDerivative:   true,
	fmitcp.OpSetRealInputDerivatives:    true,
	fmitcp.OpGetRealOutputDerivatives:   true,
}

// Allowed reports whether op may be processed from the current state. It
// never mutates the machine; call Advance separately once the adapter call
// has actually been made (spec.md §4.D: "Illegal transitions ... the state
// does not advance").
func (m *Machine) Allowed(op fmitcp.Op) bool {
	if m.state == Dummy {
		return true
	}
	// free_slave_instance is legal from any state, including Freed itself,
	// so that two consecutive frees both succeed (spec.md §8 idempotent
	// free). get_version/get_xml/set_debug_logging are meta queries legal
	// anywhere short of Freed.
	switch op {
	case fmitcp.OpFreeSlaveInstance:
		return true
	case fmitcp.OpGetVersion, fmitcp.OpGetXml, fmitcp.OpSetDebugLogging:
		return m.state != Freed
	}

	switch op {
	case fmitcp.OpInstantiate:
		return m.state == Loaded
	case fmitcp.OpInitializeSlave:
		return m.state == Instantiated
	case fmitcp.OpDoStep:
		return m.state == Initialized
	case fmitcp.OpCancelStep:
		return m.state == Initialized && m.asyncStepPending
	case fmitcp.OpTerminateSlave:
		return m.state == Initialized
	case fmitcp.OpResetSlave:
		return m.state == Initialized || m.state == Terminated
	}

	if getSetOps[op] {
		return m.state == Instantiated || m.state == Initialized
	}
	if stateQueryOps[op] {
		return m.state == Initialized
	}

	// Model-exchange placeholders: always legal, always a no-op, never
	// touch the co-simulation state machine.
	return true
}

// Advance applies op's transition, per spec.md §4.D. Call only after the
// adapter call the op represents has succeeded; on an adapter failure the
// state is left unchanged by simply not calling Advance.
func (m *Machine) Advance(op fmitcp.Op) {
	if m.state == Dummy {
		return
	}
	switch op {
	case fmitcp.OpInstantiate:
		m.state = Instantiated
	case fmitcp.OpInitializeSlave:
		m.state = Initialized
	case fmitcp.OpDoStep:
		m.asyncStepPending = true
	case fmitcp.OpCancelStep:
		m.asyncStepPending = false
	case fmitcp.OpTerminateSlave:
		m.state = Terminated
	case fmitcp.OpResetSlave:
		m.state = Instantiated
		m.asyncStepPending = false
	case fmitcp.OpFreeSlaveInstance:
		m.state = Freed
	}
}

// Fatal forces the machine into an unusable terminal state: subsequent
// operations must respond with status=error (spec.md §7 RuntimeError,
// "fatal" case). Freed is reused since both states accept no further
// legitimate operations.
func (m *Machine) Fatal() {
	if m.state != Dummy {
		m.state = Freed
	}
}
