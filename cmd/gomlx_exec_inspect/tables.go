package main

import (
	"github.com/charmbracelet/lipgloss"
	lgtable "github.com/charmbracelet/lipgloss/table"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Underline(true).MarginTop(1).PaddingLeft(2)

	cellStyle      = lipgloss.NewStyle().Padding(0, 1)
	headerStyle    = cellStyle.Bold(true).Foreground(lipgloss.Color("12"))
	stripeStyle    = cellStyle.Faint(true)
	highlightStyle = cellStyle.Bold(true).Foreground(lipgloss.Color("9"))
	borderStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

// reportTable is a lipgloss table whose rows can be flagged, e.g. unsupported parameters or failed
// runs, and are then rendered highlighted.
type reportTable struct {
	*lgtable.Table
	columns []lipgloss.Position
	flagged []bool
}

// newReportTable creates a table with the given column alignments. Columns beyond the
// alignments given are left aligned.
func newReportTable(columns ...lipgloss.Position) *reportTable {
	t := &reportTable{columns: columns}
	t.Table = lgtable.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		StyleFunc(t.styleFor)
	return t
}

// Add appends a row, highlighted if flagged.
func (t *reportTable) Add(flagged bool, cells ...string) {
	t.flagged = append(t.flagged, flagged)
	t.Table.Row(cells...)
}

func (t *reportTable) styleFor(row, col int) lipgloss.Style {
	var style lipgloss.Style
	switch {
	case row < 0:
		return headerStyle.Align(lipgloss.Center)
	case row < len(t.flagged) && t.flagged[row]:
		style = highlightStyle
	case row%2 == 1:
		style = stripeStyle
	default:
		style = cellStyle
	}
	if col < len(t.columns) {
		return style.Align(t.columns[col])
	}
	return style.Align(lipgloss.Left)
}
