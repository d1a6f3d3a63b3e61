package table

import (
	"testing"

	"gtmvars/internal/gtm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleVars() []gtm.EnrichedVariable {
	return []gtm.EnrichedVariable{
		{VariableName: "campaignID", VariableType: "Constant", Tags: []string{"PageView"}},
		{VariableName: "DLV - value", VariableType: "Data Layer Variable", Triggers: []string{"Purchase", "Refund"}},
		{VariableName: "unused", VariableType: "Custom JavaScript"},
		{VariableName: "lookup", VariableType: "Lookup Table", LinkedVariables: []string{"Page URL"}},
	}
}

func TestBuild_PreservesOrderAndCells(t *testing.T) {
	tbl := Build(sampleVars(), nil)

	assert.Equal(t, []string{"Variable Name", "Type", "Tags", "Triggers", "Variables"}, tbl.Header())
	require.Equal(t, 4, tbl.Len())
	assert.Equal(t, []string{"campaignID", "DLV - value", "unused", "lookup"}, tbl.Names())
	assert.Equal(t, []string{"DLV - value", "Data Layer Variable", "", "Purchase, Refund", ""}, tbl.Rows[1].Cells())
	assert.Equal(t, []string{"unused", "Custom JavaScript", "", "", ""}, tbl.Rows[2].Cells())
}

func TestBuild_ColumnSubset(t *testing.T) {
	cols, err := ParseColumns([]string{"name", "Tags"})
	require.NoError(t, err)

	tbl := Build(sampleVars(), cols)

	assert.Equal(t, []string{"Variable Name", "Tags"}, tbl.Header())
	assert.Equal(t, []string{"campaignID", "PageView"}, tbl.Rows[0].Cells())
}

func TestParseColumns(t *testing.T) {
	cols, err := ParseColumns(nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultColumns(), cols)

	_, err = ParseColumns([]string{"owner"})
	assert.Error(t, err)
}

func TestCellsAreCopies(t *testing.T) {
	tbl := Build(sampleVars(), nil)
	cells := tbl.Rows[0].Cells()
	cells[0] = "mutated"
	assert.Equal(t, "campaignID", tbl.Rows[0].Cells()[0])
}

func TestDeletable(t *testing.T) {
	tbl := Build(sampleVars(), nil)
	got := map[string]bool{}
	for _, r := range tbl.Rows {
		got[r.Name()] = r.Deletable()
	}
	assert.Equal(t, map[string]bool{"campaignID": false, "DLV - value": false, "unused": true, "lookup": false}, got)
}

func TestRemove(t *testing.T) {
	tbl := Build(sampleVars(), nil)

	n := tbl.Remove(map[string]bool{"unused": true, "absent": true})

	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"campaignID", "DLV - value", "lookup"}, tbl.Names())
}

func TestColumnTitleUnknown(t *testing.T) {
	assert.Equal(t, "Column(42)", Column(42).Title())
}
