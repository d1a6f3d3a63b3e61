package ui

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSimpleTable(t *testing.T) {
	table := NewSimpleTable("GTM Variables", []string{"Variable Name", "Tags"})
	table.AddRow("campaignID", "GA4 Config, Purchase")
	table.AddRow("short") // missing cells render blank

	view := table.View(DefaultStyles())

	assert.Contains(t, view, "GTM Variables")
	assert.Contains(t, view, "Variable Name")
	assert.Contains(t, view, "GA4 Config, Purchase")
	assert.Contains(t, view, "short")
}

func TestSimpleTable_EmptyStillShowsHeader(t *testing.T) {
	view := NewSimpleTable("", []string{"Variable Name"}).View(DefaultStyles())
	assert.Contains(t, view, "Variable Name")
}

func TestSimpleTable_Truncates(t *testing.T) {
	table := NewSimpleTable("", []string{"Name"})
	table.MaxCellWidth = 6
	table.AddRow("abcdefghij")

	view := table.View(DefaultStyles())
	assert.Contains(t, view, "abcde…")
	assert.False(t, strings.Contains(view, "abcdefghij"))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 0))
	assert.Equal(t, "abc", truncate("abc", 3))
	assert.Equal(t, "a…", truncate("abc", 2))
	assert.Equal(t, "…", truncate("abc", 1))
}
