package cmd

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/kozaktomas/face-verify/internal/evaluate"
)

var (
	colorAccent = lipgloss.Color("#20B9B4")
	colorMuted  = lipgloss.Color("#6E7681")
	colorWarn   = lipgloss.Color("#F4D03F")

	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(colorAccent)
	mutedStyle  = lipgloss.NewStyle().Foreground(colorMuted)
	warnStyle   = lipgloss.NewStyle().Foreground(colorWarn)
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(colorAccent).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
)

// renderTable renders rows under headers with a rounded border.
func renderTable(headers []string, rows [][]string) string {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorMuted)).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Render()
}

func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}

func metricRow(m evaluate.Metrics) []string {
	return []string{formatScore(m.Accuracy), formatScore(m.Precision), formatScore(m.Recall), formatScore(m.F1)}
}

var metricHeaders = []string{"Accuracy", "Precision", "Recall", "F1-score"}

func printTitle(s string) {
	fmt.Println(titleStyle.Render(s))
}

func printWarning(format string, args ...any) {
	fmt.Println(warnStyle.Render("Warning: " + fmt.Sprintf(format, args...)))
}
