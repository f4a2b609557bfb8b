package output

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFormat(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want Format
	}{
		{"", FormatTable},
		{"table", FormatTable},
		{"JSON", FormatJSON},
		{"yaml", FormatYAML},
		{"yml", FormatYAML},
	} {
		got, err := ParseFormat(tc.in)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got)
	}

	_, err := ParseFormat("xml")
	require.Error(t, err)
}

func TestPrint_Table(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Print(&buf, FormatTable, Result{Step: 3, Time: 0.3, Halted: false}))
	out := buf.String()
	assert.Contains(t, out, "STEP")
	assert.Contains(t, out, "3")
	assert.Contains(t, out, "0.3000")
}

func TestPrint_TableHaltedRow(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Print(&buf, FormatTable, Result{Step: 5, Time: 0.5, Halted: true, OffendingFmu: "tank"}))
	out := buf.String()
	assert.Contains(t, out, "5")
	assert.Contains(t, out, "true")
	assert.Contains(t, out, "tank")
}

func TestPrint_JSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Print(&buf, FormatJSON, Result{Step: 2, Time: 0.2, Halted: true, OffendingFmu: "pump"}))
	out := buf.String()
	assert.Contains(t, out, `"step": 2`)
	assert.Contains(t, out, `"offending_fmu": "pump"`)
}

func TestPrint_YAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Print(&buf, FormatYAML, Result{Step: 1, Time: 0.1}))
	out := buf.String()
	assert.Contains(t, out, "step: 1")
	assert.NotContains(t, out, "offending_fmu")
}

func TestPrint_UnknownFormat(t *testing.T) {
	var buf bytes.Buffer
	err := Print(&buf, Format("xml"), Result{})
	require.Error(t, err)
}
