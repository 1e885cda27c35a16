package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/Afrawles/capledger/internal/capacity"
	"github.com/Afrawles/capledger/internal/history"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCommaList(t *testing.T) {
	assert.Equal(t, []string{}, parseCommaList(""))
	assert.Equal(t, []string{"ana", "ben"}, parseCommaList(" ana, ,ben ,"))
}

func TestParseOverrides(t *testing.T) {
	overrides, err := parseOverrides([]string{
		"ana=2025-12-08:2025-12-12",
		" ben = 2025-12-01:2025-12-03",
	})

	require.NoError(t, err)
	assert.Equal(t, "2025-12-08..2025-12-12", overrides["ana"].String())
	assert.Equal(t, "2025-12-01..2025-12-03", overrides["ben"].String())
}

func TestParseOverrides_Invalid(t *testing.T) {
	tests := []struct {
		value string
		want  string
	}{
		{"ana", "want name="},
		{"=2025-12-01:2025-12-02", "want name="},
		{"ana=2025-12-01", "want name="},
		{"ana=2025-12-01:soon", "override for ana"},
		{"ana=2025-12-05:2025-12-01", "ends before it starts"},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			_, err := parseOverrides([]string{tt.value})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestPalette_PlainWhenNotTerminal(t *testing.T) {
	var buf bytes.Buffer

	p := palette(&buf)

	assert.Equal(t, "idle", p.High.Render("idle"))
}

func TestRootCommand_CSVFile(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "tasks.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte(
		"assignee,team,start,due\n"+
			"ana,Platform,2025-12-01,2025-12-02\n"+
			"ben,Growth,2025-12-03,2025-12-05\n"), 0644))

	t.Setenv("CLICKUP_API_KEY", "")
	t.Setenv("CAPLEDGER_HISTORY_DB", "")

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{
		"summary",
		"--start", "2025-12-01",
		"--end", "2025-12-05",
		"--csv-file", csvPath,
		"--roster", "dee",
		"--format", "csv",
		"--output", filepath.Join(dir, "out"),
	})
	t.Cleanup(func() { rootCmd.SetArgs(nil); rootCmd.SetOut(nil) })

	require.NoError(t, rootCmd.Execute())

	assert.Contains(t, out.String(), "Manager summary 2025-12-01..2025-12-05")
	assert.Contains(t, out.String(), "Growth")
	assert.Contains(t, out.String(), "Reports saved:")

	files, err := filepath.Glob(filepath.Join(dir, "out", "ledger_*.csv"))
	require.NoError(t, err)
	assert.Len(t, files, 2)
}

func TestStoredLedger_UsesRunHeader(t *testing.T) {
	db, err := history.OpenDB(":memory:")
	require.NoError(t, err)
	defer db.Close()
	store := history.NewStore(db)
	ctx := context.Background()

	w, err := capacity.ParseWindow("2025-12-01", "2025-12-05")
	require.NoError(t, err)
	// the alphabetically first assignee has its own window
	override, err := capacity.ParseWindow("2025-12-08", "2025-12-12")
	require.NoError(t, err)
	ledger := capacity.NewCalculator(
		capacity.WithHoursPerDay(6),
		capacity.WithOverrides(map[string]capacity.Window{"ana": override}),
		capacity.WithRoster("ana", "ben"),
	).Compute(nil, w)

	runID, err := store.SaveLedger(ctx, ledger)
	require.NoError(t, err)

	stored, err := storedLedger(ctx, store, runID)
	require.NoError(t, err)
	assert.Equal(t, w, stored.Window)
	assert.Equal(t, 6, stored.HoursPerDay)
	require.Len(t, stored.Entries, 2)
	assert.Equal(t, override, stored.Entries[0].Window)

	_, err = storedLedger(ctx, store, "missing")
	assert.ErrorIs(t, err, history.ErrNotFound)
}
