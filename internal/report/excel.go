package report

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/Afrawles/capledger/internal/capacity"
	"github.com/xuri/excelize/v2"
)

const (
	dashboardSheet = "Dashboard"
	ledgerSheet    = "Ledger"
	anomalySheet   = "Anomalies"
)

type ExcelExporter struct {
	OutputDir string
}

func NewExcelExporter(outputDir string) *ExcelExporter {
	return &ExcelExporter{OutputDir: outputDir}
}

type excelStyles struct {
	header  int
	team    int
	total   int
	percent int
}

// Export writes a workbook with the dashboard, the full ledger, the
// anomalies and one sheet per team. It returns the file path.
func (e *ExcelExporter) Export(ledger *capacity.Ledger) (string, error) {
	timestamp := time.Now().Format("2006-01-02_15-04-05")
	filename := filepath.Join(e.OutputDir, fmt.Sprintf("ledger_%s.xlsx", timestamp))

	f := excelize.NewFile()
	defer f.Close()

	styles, err := newExcelStyles(f)
	if err != nil {
		return "", fmt.Errorf("failed to create styles: %w", err)
	}

	if err := e.createDashboardSheet(f, styles, ledger); err != nil {
		return "", fmt.Errorf("failed to create dashboard: %w", err)
	}

	if err := e.createLedgerSheet(f, styles, ledgerSheet, ledger.Entries); err != nil {
		return "", fmt.Errorf("failed to create ledger sheet: %w", err)
	}

	if len(ledger.Anomalies) > 0 {
		if err := e.createAnomalySheet(f, styles, ledger.Anomalies); err != nil {
			return "", fmt.Errorf("failed to create anomaly sheet: %w", err)
		}
	}

	byTeam := make(map[string][]capacity.Entry)
	for _, entry := range ledger.Entries {
		team := strings.TrimSpace(entry.Team)
		if team == "" {
			team = capacity.NoTeam
		}
		byTeam[team] = append(byTeam[team], entry)
	}
	used := map[string]bool{dashboardSheet: true, ledgerSheet: true, anomalySheet: true}
	for _, team := range ledger.ByTeam() {
		sheetName := uniqueSheetName(used, "Team "+team.Team)
		if err := e.createLedgerSheet(f, styles, sheetName, byTeam[team.Team]); err != nil {
			return "", fmt.Errorf("failed to create sheet for %s: %w", team.Team, err)
		}
	}

	// the default sheet only exists until the first real one is added
	_ = f.DeleteSheet("Sheet1")
	if idx, err := f.GetSheetIndex(dashboardSheet); err == nil {
		f.SetActiveSheet(idx)
	}

	if err := f.SaveAs(filename); err != nil {
		return "", fmt.Errorf("failed to save excel file: %w", err)
	}

	return filename, nil
}

func newExcelStyles(f *excelize.File) (excelStyles, error) {
	border := []excelize.Border{
		{Type: "left", Color: "#000000", Style: 1},
		{Type: "right", Color: "#000000", Style: 1},
		{Type: "top", Color: "#000000", Style: 1},
		{Type: "bottom", Color: "#000000", Style: 1},
	}

	var s excelStyles
	var err error

	s.header, err = f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Font:      &excelize.Font{Bold: true, Color: "#FFFFFF"},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
		Border:    border,
	})
	if err != nil {
		return s, err
	}

	s.team, err = f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#B4C7E7"}, Pattern: 1},
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "left", Vertical: "center"},
		Border:    border,
	})
	if err != nil {
		return s, err
	}

	s.total, err = f.NewStyle(&excelize.Style{
		Fill:   excelize.Fill{Type: "pattern", Color: []string{"#B4C7E7"}, Pattern: 1},
		Font:   &excelize.Font{Bold: true},
		Border: border,
	})
	if err != nil {
		return s, err
	}

	s.percent, err = f.NewStyle(&excelize.Style{NumFmt: 10})
	return s, err
}

func (e *ExcelExporter) createDashboardSheet(f *excelize.File, styles excelStyles, ledger *capacity.Ledger) error {
	if _, err := f.NewSheet(dashboardSheet); err != nil {
		return err
	}

	f.SetCellValue(dashboardSheet, "A1", "Date From:")
	f.SetCellValue(dashboardSheet, "B1", formatDate(ledger.Window.Start))
	f.SetCellValue(dashboardSheet, "A2", "Date to:")
	f.SetCellValue(dashboardSheet, "B2", formatDate(ledger.Window.End))
	f.SetCellValue(dashboardSheet, "A3", "Hours per day:")
	f.SetCellValue(dashboardSheet, "B3", ledger.HoursPerDay)

	row := 5
	for col, header := range summaryHeader {
		cell := cellName(col+1, row)
		f.SetCellValue(dashboardSheet, cell, header)
		f.SetCellStyle(dashboardSheet, cell, cell, styles.header)
	}
	row++

	for _, team := range ledger.ByTeam() {
		writeSummaryRow(f, dashboardSheet, row, team.Team, team.Summary, styles)
		f.SetCellStyle(dashboardSheet, cellName(1, row), cellName(1, row), styles.team)
		row++
	}

	writeSummaryRow(f, dashboardSheet, row, "Total", ledger.Global(), styles)
	f.SetCellStyle(dashboardSheet, cellName(1, row), cellName(len(summaryHeader)-1, row), styles.total)

	f.SetColWidth(dashboardSheet, "A", "A", 24)
	f.SetColWidth(dashboardSheet, "B", columnLetter(len(summaryHeader)), 15)

	return nil
}

func writeSummaryRow(f *excelize.File, sheet string, row int, label string, s capacity.Summary, styles excelStyles) {
	values := []any{
		label,
		s.Assignees,
		s.WindowBusinessDays,
		s.OccupiedBusinessDays,
		s.IdleBusinessDays,
		s.IdleHours,
		s.CapacityHours,
		s.Utilization,
	}
	for col, v := range values {
		f.SetCellValue(sheet, cellName(col+1, row), v)
	}
	last := cellName(len(values), row)
	f.SetCellStyle(sheet, last, last, styles.percent)
}

func (e *ExcelExporter) createLedgerSheet(f *excelize.File, styles excelStyles, sheetName string, entries []capacity.Entry) error {
	if _, err := f.NewSheet(sheetName); err != nil {
		return err
	}

	for col, header := range ledgerHeader {
		cell := cellName(col+1, 1)
		f.SetCellValue(sheetName, cell, header)
		f.SetCellStyle(sheetName, cell, cell, styles.header)
	}

	for i, entry := range entries {
		row := i + 2
		values := []any{
			i + 1,
			entry.Assignee,
			entry.Team,
			formatDate(entry.Window.Start),
			formatDate(entry.Window.End),
			entry.Tasks,
			entry.TasksInWindow,
			entry.WindowBusinessDays,
			entry.OccupiedBusinessDays,
			entry.IdleBusinessDays,
			entry.IdleHours,
			entryNotes(entry),
		}
		for col, v := range values {
			f.SetCellValue(sheetName, cellName(col+1, row), v)
		}
	}

	f.SetColWidth(sheetName, "A", "A", 5)
	f.SetColWidth(sheetName, "B", "C", 24)
	f.SetColWidth(sheetName, "D", "K", 15)
	f.SetColWidth(sheetName, "L", "L", 30)

	f.SetPanes(sheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})

	return nil
}

func (e *ExcelExporter) createAnomalySheet(f *excelize.File, styles excelStyles, anomalies []capacity.Anomaly) error {
	if _, err := f.NewSheet(anomalySheet); err != nil {
		return err
	}

	headers := []string{"Task", "Assignee", "Problem", "Field", "Value"}
	for col, header := range headers {
		cell := cellName(col+1, 1)
		f.SetCellValue(anomalySheet, cell, header)
		f.SetCellStyle(anomalySheet, cell, cell, styles.header)
	}

	for i, a := range anomalies {
		row := i + 2
		f.SetCellValue(anomalySheet, cellName(1, row), a.TaskID)
		f.SetCellValue(anomalySheet, cellName(2, row), a.Assignee)
		f.SetCellValue(anomalySheet, cellName(3, row), strings.ReplaceAll(string(a.Kind), "_", " "))
		f.SetCellValue(anomalySheet, cellName(4, row), a.Field)
		f.SetCellValue(anomalySheet, cellName(5, row), a.Value)
	}

	f.SetColWidth(anomalySheet, "A", "B", 20)
	f.SetColWidth(anomalySheet, "C", "C", 24)
	f.SetColWidth(anomalySheet, "D", "E", 28)

	return nil
}

func cellName(col, row int) string {
	return fmt.Sprintf("%s%d", columnLetter(col), row)
}

func columnLetter(col int) string {
	result := ""
	for col > 0 {
		col--
		result = string(rune('A'+col%26)) + result
		col /= 26
	}
	return result
}

func sanitizeSheetName(name string) string {
	replacer := strings.NewReplacer(
		"/", "-",
		"\\", "-",
		"?", "",
		"*", "",
		":", "-",
		"[", "(",
		"]", ")",
	)
	name = replacer.Replace(name)

	runes := []rune(name)
	if len(runes) > 31 {
		name = string(runes[:31])
	}

	return name
}

func uniqueSheetName(used map[string]bool, name string) string {
	base := sanitizeSheetName(name)
	candidate := base
	for n := 2; used[strings.ToLower(candidate)] || used[candidate]; n++ {
		suffix := fmt.Sprintf(" %d", n)
		runes := []rune(base)
		if len(runes)+len(suffix) > 31 {
			runes = runes[:31-len(suffix)]
		}
		candidate = string(runes) + suffix
	}
	used[strings.ToLower(candidate)] = true
	used[candidate] = true
	return candidate
}
