package report

import (
	"fmt"
	"strings"

	"github.com/Afrawles/capledger/internal/capacity"
	"github.com/charmbracelet/lipgloss"
)

var (
	colorHeader = lipgloss.Color("#fe8019")
	colorDim    = lipgloss.Color("#928374")
	colorRed    = lipgloss.Color("#fb4934")
	colorYellow = lipgloss.Color("#fabd2f")
	colorGreen  = lipgloss.Color("#8ec07c")
)

// Palette holds the styles used by the terminal renderers. The zero value
// renders plain text.
type Palette struct {
	Header lipgloss.Style
	Dim    lipgloss.Style
	High   lipgloss.Style
	Medium lipgloss.Style
	Low    lipgloss.Style
}

// ColorPalette returns the styled palette for interactive terminals.
func ColorPalette() Palette {
	return Palette{
		Header: lipgloss.NewStyle().Foreground(colorHeader).Bold(true),
		Dim:    lipgloss.NewStyle().Foreground(colorDim),
		High:   lipgloss.NewStyle().Foreground(colorRed),
		Medium: lipgloss.NewStyle().Foreground(colorYellow),
		Low:    lipgloss.NewStyle().Foreground(colorGreen),
	}
}

// PlainPalette renders without escape sequences.
func PlainPalette() Palette {
	plain := lipgloss.NewStyle()
	return Palette{Header: plain, Dim: plain, High: plain, Medium: plain, Low: plain}
}

// RenderLedger renders the per-assignee ledger followed by any data
// quality warnings.
func RenderLedger(ledger *capacity.Ledger, p Palette) string {
	headers := []string{"ASSIGNEE", "TEAM", "WINDOW", "TASKS", "OCCUPIED", "IDLE DAYS", "IDLE HOURS", "NOTES"}
	rows := make([][]string, 0, len(ledger.Entries))
	for _, e := range ledger.Entries {
		rows = append(rows, []string{
			e.Assignee,
			e.Team,
			e.Window.String(),
			fmt.Sprintf("%d/%d", e.TasksInWindow, e.Tasks),
			fmt.Sprintf("%d", e.OccupiedBusinessDays),
			p.idleStyle(e.IdleBusinessDays, e.WindowBusinessDays).Render(fmt.Sprintf("%d", e.IdleBusinessDays)),
			fmt.Sprintf("%d", e.IdleHours),
			p.Dim.Render(entryNotes(e)),
		})
	}

	var b strings.Builder
	b.WriteString(p.Header.Render(fmt.Sprintf("Capacity ledger %s (%dh/day)", ledger.Window, ledger.HoursPerDay)))
	b.WriteString("\n\n")
	b.WriteString(renderTable(headers, rows, p))

	if len(ledger.Anomalies) > 0 {
		b.WriteString("\n")
		b.WriteString(p.Medium.Render(fmt.Sprintf("%d data quality warning(s):", len(ledger.Anomalies))))
		b.WriteString("\n")
		for _, a := range ledger.Anomalies {
			b.WriteString("  ")
			b.WriteString(p.Dim.Render(a.String()))
			b.WriteString("\n")
		}
	}
	return b.String()
}

// RenderSummary renders the manager summary per team and the global total.
func RenderSummary(ledger *capacity.Ledger, p Palette) string {
	headers := []string{"TEAM", "ASSIGNEES", "BUSINESS DAYS", "OCCUPIED", "IDLE DAYS", "IDLE HOURS", "CAPACITY HOURS", "UTILIZATION"}
	var rows [][]string
	for _, t := range ledger.ByTeam() {
		rows = append(rows, summaryCells(t.Team, t.Summary))
	}
	global := summaryCells("Total", ledger.Global())
	for i := range global {
		global[i] = p.Header.Render(global[i])
	}
	rows = append(rows, global)

	var b strings.Builder
	b.WriteString(p.Header.Render(fmt.Sprintf("Manager summary %s", ledger.Window)))
	b.WriteString("\n\n")
	b.WriteString(renderTable(headers, rows, p))
	return b.String()
}

func summaryCells(label string, s capacity.Summary) []string {
	return []string{
		label,
		fmt.Sprintf("%d", s.Assignees),
		fmt.Sprintf("%d", s.WindowBusinessDays),
		fmt.Sprintf("%d", s.OccupiedBusinessDays),
		fmt.Sprintf("%d", s.IdleBusinessDays),
		fmt.Sprintf("%d", s.IdleHours),
		fmt.Sprintf("%d", s.CapacityHours),
		formatPercent(s.Utilization),
	}
}

func (p Palette) idleStyle(idle, total int) lipgloss.Style {
	if total == 0 {
		return p.Dim
	}
	ratio := float64(idle) / float64(total)
	switch {
	case ratio >= 0.5:
		return p.High
	case ratio >= 0.2:
		return p.Medium
	default:
		return p.Low
	}
}

// renderTable pads columns to the widest visible cell, measuring with
// lipgloss so escape sequences don't count.
func renderTable(headers []string, rows [][]string, p Palette) string {
	const colGap = 2

	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range rows {
		for i := 0; i < len(headers) && i < len(row); i++ {
			if w := lipgloss.Width(row[i]); w > widths[i] {
				widths[i] = w
			}
		}
	}

	var b strings.Builder
	writeRow := func(cells []string, style func(string) string) {
		for i := range headers {
			cell := ""
			if i < len(cells) {
				cell = cells[i]
			}
			b.WriteString(style(cell))
			if i < len(headers)-1 {
				b.WriteString(strings.Repeat(" ", widths[i]-lipgloss.Width(cell)+colGap))
			}
		}
		b.WriteString("\n")
	}

	writeRow(headers, func(s string) string { return p.Header.Render(s) })
	for i, w := range widths {
		b.WriteString(p.Dim.Render(strings.Repeat("─", w)))
		if i < len(widths)-1 {
			b.WriteString(strings.Repeat(" ", colGap))
		}
	}
	b.WriteString("\n")
	for _, row := range rows {
		writeRow(row, func(s string) string { return s })
	}
	return b.String()
}
