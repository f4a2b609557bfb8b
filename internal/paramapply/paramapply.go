// Package paramapply applies a component's declared start values and any
// configured parameter overrides through the simulation adapter's typed
// setters (spec.md §4.I). It runs once, in the Instantiated state, before
// initialize_slave.
package paramapply

import (
	"fmt"

	"github.com/fmitcpd/fmitcpd/internal/simulation"
	"github.com/fmitcpd/fmitcpd/pkg/config"
)

// Override is one command-line/config parameter override, applied after
// the catalogue's XML start values to give it precedence.
type Override struct {
	Ref  uint32
	Type simulation.PrimitiveType

	Real float64
	Int  int32
	Bool bool
	Str  string
}

// FromConfig converts config.ParamOverride entries (whose Type is a
// string) into the typed Override the adapter setters expect.
func FromConfig(specs []config.ParamOverride) ([]Override, error) {
	out := make([]Override, 0, len(specs))
	for _, s := range specs {
		t, err := parseType(s.Type)
		if err != nil {
			return nil, fmt.Errorf("paramapply: override for ref %d: %w", s.Ref, err)
		}
		out = append(out, Override{Ref: s.Ref, Type: t, Real: s.Real, Int: s.Int, Bool: s.Bool, Str: s.Str})
	}
	return out, nil
}

func parseType(s string) (simulation.PrimitiveType, error) {
	switch s {
	case "real":
		return simulation.TypeReal, nil
	case "integer":
		return simulation.TypeInteger, nil
	case "boolean":
		return simulation.TypeBoolean, nil
	case "string":
		return simulation.TypeString, nil
	default:
		return 0, fmt.Errorf("unknown primitive type %q", s)
	}
}

// Apply writes inst's declared XML start values via adapter's typed
// setters, then applies overrides on top (spec.md §4.I: "Command-line
// parameter overrides are applied last... to give the user precedence").
func Apply(adapter simulation.Adapter, inst *simulation.Instance, overrides []Override) error {
	if err := applyStartValues(adapter, inst); err != nil {
		return err
	}
	return applyOverrides(adapter, inst, overrides)
}

func applyStartValues(adapter simulation.Adapter, inst *simulation.Instance) error {
	var reals, ints, bools, strs []uint32
	var realVals []float64
	var intVals []int32
	var boolVals []bool
	var strVals []string

	for _, v := range inst.Variables {
		if !v.HasStart {
			continue
		}
		switch v.Type {
		case simulation.TypeReal:
			reals = append(reals, v.ValueReference)
			realVals = append(realVals, v.StartReal)
		case simulation.TypeInteger:
			ints = append(ints, v.ValueReference)
			intVals = append(intVals, v.StartInt)
		case simulation.TypeBoolean:
			bools = append(bools, v.ValueReference)
			boolVals = append(boolVals, v.StartBool)
		case simulation.TypeString:
			strs = append(strs, v.ValueReference)
			strVals = append(strVals, v.StartStr)
		}
	}

	if len(reals) > 0 {
		if status := adapter.SetReal(inst, reals, realVals); status != simulation.StatusOK {
			return fmt.Errorf("paramapply: set_real start values: status %s", status)
		}
	}
	if len(ints) > 0 {
		if status := adapter.SetInteger(inst, ints, intVals); status != simulation.StatusOK {
			return fmt.Errorf("paramapply: set_integer start values: status %s", status)
		}
	}
	if len(bools) > 0 {
		if status := adapter.SetBoolean(inst, bools, boolVals); status != simulation.StatusOK {
			return fmt.Errorf("paramapply: set_boolean start values: status %s", status)
		}
	}
	if len(strs) > 0 {
		if status := adapter.SetString(inst, strs, strVals); status != simulation.StatusOK {
			return fmt.Errorf("paramapply: set_string start values: status %s", status)
		}
	}
	return nil
}

func applyOverrides(adapter simulation.Adapter, inst *simulation.Instance, overrides []Override) error {
	for _, o := range overrides {
		var status simulation.Status
		switch o.Type {
		case simulation.TypeReal:
			status = adapter.SetReal(inst, []uint32{o.Ref}, []float64{o.Real})
		case simulation.TypeInteger:
			status = adapter.SetInteger(inst, []uint32{o.Ref}, []int32{o.Int})
		case simulation.TypeBoolean:
			status = adapter.SetBoolean(inst, []uint32{o.Ref}, []bool{o.Bool})
		case simulation.TypeString:
			status = adapter.SetString(inst, []uint32{o.Ref}, []string{o.Str})
		default:
			return fmt.Errorf("paramapply: override for ref %d has unknown type", o.Ref)
		}
		if status != simulation.StatusOK {
			return fmt.Errorf("paramapply: override for ref %d: status %s", o.Ref, status)
		}
	}
	return nil
}
