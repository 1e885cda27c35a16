package capacity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedger_Summaries(t *testing.T) {
	tasks := []Task{
		{Assignee: "ana", Team: "Platform", Start: "2025-12-01", Due: "2025-12-05"},
		{Assignee: "ben", Team: "Platform", Start: "2025-12-01", Due: "2025-12-02"},
		{Assignee: "cy", Team: "Growth", Start: "2025-12-03", Due: "2025-12-03"},
		{Assignee: "dee", Start: "2025-12-01", Due: "2025-12-01"},
	}

	ledger := NewCalculator().Compute(tasks, firstWeek)

	global := ledger.Global()
	assert.Equal(t, 4, global.Assignees)
	assert.Equal(t, 20, global.WindowBusinessDays)
	assert.Equal(t, 9, global.OccupiedBusinessDays)
	assert.Equal(t, 11, global.IdleBusinessDays)
	assert.Equal(t, 88, global.IdleHours)
	assert.Equal(t, 160, global.CapacityHours)
	assert.InDelta(t, 0.45, global.Utilization, 1e-9)

	teams := ledger.ByTeam()
	require.Len(t, teams, 3)
	assert.Equal(t, "Growth", teams[0].Team)
	assert.Equal(t, 4, teams[0].IdleBusinessDays)
	assert.Equal(t, NoTeam, teams[1].Team)
	assert.Equal(t, "Platform", teams[2].Team)
	assert.Equal(t, 2, teams[2].Assignees)
	assert.Equal(t, 7, teams[2].OccupiedBusinessDays)
	assert.Equal(t, 24, teams[2].IdleHours)
}

func TestLedger_EmptyGlobal(t *testing.T) {
	ledger := NewCalculator().Compute(nil, firstWeek)

	assert.Empty(t, ledger.Entries)
	assert.Equal(t, Summary{}, ledger.Global())
	assert.Empty(t, ledger.ByTeam())
}
