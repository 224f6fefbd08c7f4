package main

import (
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	lgtable "github.com/charmbracelet/lipgloss/table"
	"github.com/nowemoore/phonology-app/pkg/analysis"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).
			Padding(0, 1).Align(lipgloss.Center)
	cellStyle = lipgloss.NewStyle().
			PaddingLeft(1).PaddingRight(1)
	faintCellStyle = cellStyle.Faint(true)
	messageStyle   = lipgloss.NewStyle().Bold(true)
	errorStyle     = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "9", Dark: "9"}).
			Bold(true)
)

// newTable returns a bordered table; alignments apply per column, the last
// one repeating for any further columns.
func newTable(headers []string, alignments ...lipgloss.Position) *lgtable.Table {
	return lgtable.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("99"))).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			var s lipgloss.Style
			switch {
			case row == lgtable.HeaderRow:
				return headerStyle
			case row%2 == 0:
				s = cellStyle
			default:
				s = faintCellStyle
			}
			alignment := lipgloss.Left
			if col < len(alignments) {
				alignment = alignments[col]
			} else if len(alignments) > 0 {
				alignment = alignments[len(alignments)-1]
			}
			return s.Align(alignment)
		})
}

// solutionsTable lists the solutions of a result, one per row.
func solutionsTable(res *analysis.Result) *lgtable.Table {
	t := newTable([]string{"#", "features"}, lipgloss.Right, lipgloss.Left)
	for i, sol := range res.Solutions {
		specs := make([]string, len(sol))
		for j, fs := range sol {
			specs[j] = "[" + fs.String() + "]"
		}
		t.Row(strconv.Itoa(i+1), strings.Join(specs, " "))
	}
	return t
}
