package summary

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

const (
	okMark     = "✓"
	failedMark = "✗"
	noValue    = "-"
)

// renderText writes r as an aligned table. Colors are only used when w is a terminal.
func renderText(w io.Writer, r Report) error {
	re := lipgloss.NewRenderer(w)
	var (
		title   = re.NewStyle().Bold(true)
		muted   = re.NewStyle().Foreground(lipgloss.Color("#666666"))
		success = re.NewStyle().Foreground(lipgloss.Color("#00CC66")).Bold(true)
		failure = re.NewStyle().Foreground(lipgloss.Color("#FF0000")).Bold(true)
	)

	rows := make([][4]string, 0, len(r.Outcomes))
	var widths [4]int
	for _, e := range r.Outcomes {
		row := [4]string{e.Source, orNoValue(e.Kind), e.Stage, noValue}
		if e.Status != 0 {
			row[3] = strconv.Itoa(e.Status)
		}
		for i, cell := range row {
			widths[i] = max(widths[i], lipgloss.Width(cell))
		}
		rows = append(rows, row)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %s\n", title.Render("Run "+r.RunID), muted.Render(fmt.Sprintf("on database %q", r.Database)))
	for i, e := range r.Outcomes {
		mark := success.Render(okMark)
		if !e.Success {
			mark = failure.Render(failedMark)
		}
		cells := make([]string, 0, len(rows[i])+2)
		cells = append(cells, " "+mark)
		for j, cell := range rows[i] {
			cells = append(cells, re.NewStyle().Width(widths[j]).Render(cell))
		}
		cells = append(cells, e.Message)
		sb.WriteString(strings.Join(cells, "  "))
		sb.WriteString("\n")
	}

	status := success.Render(fmt.Sprintf("%d synchronized", r.Succeeded))
	if r.Failed > 0 {
		status += ", " + failure.Render(fmt.Sprintf("%d failed", r.Failed))
	}
	fmt.Fprintf(&sb, "%d units: %s %s\n", r.Total, status, muted.Render("in "+r.Elapsed))

	_, err := io.WriteString(w, sb.String())
	return err
}

func orNoValue(s string) string {
	if s == "" {
		return noValue
	}
	return s
}
