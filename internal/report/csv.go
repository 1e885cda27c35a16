package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Afrawles/capledger/internal/capacity"
)

type CSVExporter struct {
	OutputDir string
}

func NewCSVExporter(outputDir string) *CSVExporter {
	return &CSVExporter{OutputDir: outputDir}
}

var ledgerHeader = []string{
	"#",
	"Assignee",
	"Team",
	"Window From",
	"Window To",
	"Tasks",
	"Tasks In Window",
	"Business Days",
	"Occupied Days",
	"Idle Days",
	"Idle Hours",
	"Notes",
}

var summaryHeader = []string{
	"Team",
	"Assignees",
	"Business Days",
	"Occupied Days",
	"Idle Days",
	"Idle Hours",
	"Capacity Hours",
	"Utilization",
}

// Export writes the capacity ledger and the team summary, returning the
// paths written.
func (e *CSVExporter) Export(ledger *capacity.Ledger) ([]string, error) {
	if err := os.MkdirAll(e.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	timestamp := time.Now().Format("2006-01-02_15-04-05")

	ledgerFile := filepath.Join(e.OutputDir, fmt.Sprintf("ledger_%s.csv", timestamp))
	if err := e.exportLedger(ledger, ledgerFile); err != nil {
		return nil, fmt.Errorf("failed to export ledger: %w", err)
	}

	teamsFile := filepath.Join(e.OutputDir, fmt.Sprintf("ledger_%s_teams.csv", timestamp))
	if err := e.exportTeams(ledger, teamsFile); err != nil {
		return nil, fmt.Errorf("failed to export team summary: %w", err)
	}

	return []string{ledgerFile, teamsFile}, nil
}

func (e *CSVExporter) exportLedger(ledger *capacity.Ledger, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)

	if err := writer.Write(ledgerHeader); err != nil {
		return err
	}

	for i, entry := range ledger.Entries {
		if err := writer.Write(ledgerRow(i+1, entry)); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

func (e *CSVExporter) exportTeams(ledger *capacity.Ledger, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)

	rows := [][]string{
		{"Date From:", formatDate(ledger.Window.Start)},
		{"Date to:", formatDate(ledger.Window.End)},
		{""},
		summaryHeader,
	}
	for _, team := range ledger.ByTeam() {
		rows = append(rows, summaryRow(team.Team, team.Summary))
	}
	rows = append(rows, summaryRow("Total", ledger.Global()))

	if err := writer.WriteAll(rows); err != nil {
		return err
	}
	return nil
}

func ledgerRow(n int, entry capacity.Entry) []string {
	return []string{
		fmt.Sprintf("%d", n),
		entry.Assignee,
		entry.Team,
		formatDate(entry.Window.Start),
		formatDate(entry.Window.End),
		fmt.Sprintf("%d", entry.Tasks),
		fmt.Sprintf("%d", entry.TasksInWindow),
		fmt.Sprintf("%d", entry.WindowBusinessDays),
		fmt.Sprintf("%d", entry.OccupiedBusinessDays),
		fmt.Sprintf("%d", entry.IdleBusinessDays),
		fmt.Sprintf("%d", entry.IdleHours),
		entryNotes(entry),
	}
}

func summaryRow(label string, s capacity.Summary) []string {
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

func entryNotes(entry capacity.Entry) string {
	var notes []string
	if entry.Override {
		notes = append(notes, "custom window")
	}
	if entry.NoData() {
		notes = append(notes, "no tasks in window")
	}
	return strings.Join(notes, "; ")
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(capacity.DateLayout)
}

func formatPercent(f float64) string {
	return fmt.Sprintf("%.1f%%", f*100)
}
