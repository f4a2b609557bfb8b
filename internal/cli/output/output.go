// Package output prints a coordinator run's result in whichever format its
// configuration names (spec.md §6 "Configuration inputs (coordinator)":
// table, json, or yaml), the one shape fmi-coordinator ever has to print.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/olekukonko/tablewriter"
	"gopkg.in/yaml.v3"
)

// Format is the coordinator's result-printing format.
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
)

// ParseFormat parses a CoordinatorConfig.Output string into a Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "table", "":
		return FormatTable, nil
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("invalid output format: %q (valid: table, json, yaml)", s)
	}
}

// Result is the Jacobi stepper's run summary (pkg/coordinator.StepResult),
// reshaped with the tags Print needs.
type Result struct {
	Step         int     `json:"step" yaml:"step"`
	Time         float64 `json:"time" yaml:"time"`
	Halted       bool    `json:"halted" yaml:"halted"`
	OffendingFmu string  `json:"offending_fmu,omitempty" yaml:"offending_fmu,omitempty"`
}

// Print writes r to w in format.
func Print(w io.Writer, format Format, r Result) error {
	switch format {
	case FormatTable:
		return printTable(w, r)
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer func() { _ = enc.Close() }()
		return enc.Encode(r)
	default:
		return fmt.Errorf("unknown output format: %s", format)
	}
}

// printTable renders r as the single-row summary table the coordinator's
// default output shows after a run completes.
func printTable(w io.Writer, r Result) error {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"STEP", "TIME", "HALTED", "OFFENDING FMU"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("  ")
	table.SetNoWhiteSpace(true)

	table.Append([]string{
		fmt.Sprintf("%d", r.Step),
		fmt.Sprintf("%.4f", r.Time),
		fmt.Sprintf("%t", r.Halted),
		r.OffendingFmu,
	})

	table.Render()
	return nil
}
