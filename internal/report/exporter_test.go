package report

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Afrawles/capledger/internal/capacity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	require.NoError(t, err)
	return rows
}

func TestCSVExporter_Export(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")

	paths, err := NewCSVExporter(dir).Export(testLedger())

	require.NoError(t, err)
	require.Len(t, paths, 2)

	rows := readCSV(t, paths[0])
	require.Len(t, rows, 5)
	assert.Equal(t, ledgerHeader, rows[0])
	assert.Equal(t, []string{"1", "ana", "Platform", "2025-12-01", "2025-12-05", "1", "1", "5", "5", "0", "0", ""}, rows[1])
	assert.Equal(t, "dee", rows[4][1])
	assert.Equal(t, "no tasks in window", rows[4][11])

	teams := readCSV(t, paths[1])
	assert.Equal(t, []string{"Date From:", "2025-12-01"}, teams[0])
	// the blank spacer line is skipped by the reader
	assert.Equal(t, summaryHeader, teams[2])
	assert.Equal(t, "Growth", teams[3][0])
	last := teams[len(teams)-1]
	assert.Equal(t, []string{"Total", "4", "20", "8", "12", "96", "160", "40.0%"}, last)
}

func TestExcelExporter_Export(t *testing.T) {
	dir := t.TempDir()

	path, err := NewExcelExporter(dir).Export(testLedger())
	require.NoError(t, err)

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t,
		[]string{"Dashboard", "Ledger", "Anomalies", "Team Growth", "Team No team", "Team Platform"},
		f.GetSheetList())

	rows, err := f.GetRows("Ledger")
	require.NoError(t, err)
	require.Len(t, rows, 5)
	assert.Equal(t, "ana", rows[1][1])

	anomalies, err := f.GetRows("Anomalies")
	require.NoError(t, err)
	require.Len(t, anomalies, 2)
	assert.Equal(t, "G-1", anomalies[1][0])
	assert.Equal(t, "inverted range", anomalies[1][2])

	total, err := f.GetCellValue("Dashboard", "A9")
	require.NoError(t, err)
	assert.Equal(t, "Total", total)
}

func TestExcelExporter_TeamSheetTrimsTeamName(t *testing.T) {
	ledger := &capacity.Ledger{
		Window:      testWindow,
		HoursPerDay: 8,
		Entries: []capacity.Entry{
			{Assignee: "eve", Team: " Core ", Window: testWindow, WindowBusinessDays: 5, IdleBusinessDays: 5, IdleHours: 40},
		},
	}

	path, err := NewExcelExporter(t.TempDir()).Export(ledger)
	require.NoError(t, err)

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	assert.Contains(t, f.GetSheetList(), "Team Core")
	rows, err := f.GetRows("Team Core")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "eve", rows[1][1])
}

func TestUniqueSheetName(t *testing.T) {
	used := map[string]bool{}

	first := uniqueSheetName(used, "Team [Core]/Ops: a very long team name indeed")
	second := uniqueSheetName(used, "Team [Core]/Ops: a very long team name indeed")

	assert.Equal(t, "Team (Core)-Ops- a very long te", first)
	assert.LessOrEqual(t, len([]rune(second)), 31)
	assert.NotEqual(t, first, second)
	assert.True(t, strings.HasSuffix(second, " 2"))
}

func TestExporter_ExportJSON(t *testing.T) {
	dir := t.TempDir()

	require.NoError(t, NewExporter(dir).ExportJSON(testLedger(), "ledger.json"))

	data, err := os.ReadFile(filepath.Join(dir, "ledger.json"))
	require.NoError(t, err)

	var decoded struct {
		Window  map[string]string `json:"window"`
		Entries []struct {
			Assignee string `json:"assignee"`
			Idle     int    `json:"idle_business_days"`
		} `json:"entries"`
		Global struct {
			IdleHours int `json:"idle_hours"`
		} `json:"global"`
		Teams     []map[string]any `json:"teams"`
		Anomalies []map[string]any `json:"anomalies"`
	}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "2025-12-01", decoded.Window["start"])
	assert.Len(t, decoded.Entries, 4)
	assert.Equal(t, 96, decoded.Global.IdleHours)
	assert.Len(t, decoded.Teams, 3)
	assert.Len(t, decoded.Anomalies, 1)
}

func TestExporter_ExportHTML(t *testing.T) {
	dir := t.TempDir()

	require.NoError(t, NewExporter(dir).ExportHTML(testLedger(), "ledger.html", "jane doe"))

	data, err := os.ReadFile(filepath.Join(dir, "ledger.html"))
	require.NoError(t, err)
	html := string(data)
	assert.Contains(t, html, "Capacity Ledger")
	assert.Contains(t, html, "submitted by Jane Doe")
	assert.Contains(t, html, "Manager Summary")
	assert.Contains(t, html, "Inverted Range")
	assert.Contains(t, html, "no tasks in window")
}

func TestRenderLedger_Plain(t *testing.T) {
	out := RenderLedger(testLedger(), PlainPalette())

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	assert.Equal(t, "Capacity ledger 2025-12-01..2025-12-05 (8h/day)", lines[0])
	assert.True(t, strings.HasPrefix(lines[2], "ASSIGNEE"))
	assert.Contains(t, out, "1 data quality warning(s):")
	assert.Contains(t, out, "G-1 (cy): inverted_range on due")
	assert.NotContains(t, out, "\x1b[")
}

func TestRenderSummary_Plain(t *testing.T) {
	out := RenderSummary(testLedger(), PlainPalette())

	assert.Contains(t, out, "Manager summary 2025-12-01..2025-12-05")
	assert.Contains(t, out, "Platform")
	assert.Contains(t, out, "40.0%")
}
