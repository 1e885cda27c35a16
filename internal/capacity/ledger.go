package capacity

import (
	"cmp"
	"slices"
	"strings"
	"time"
)

// NoTeam labels assignees none of whose tasks carry a team.
const NoTeam = "No team"

// Entry is one row of the capacity ledger.
type Entry struct {
	Assignee             string     `json:"assignee"`
	Team                 string     `json:"team,omitempty"`
	Window               Window     `json:"window"`
	Override             bool       `json:"window_override,omitempty"`
	Tasks                int        `json:"tasks"`
	TasksInWindow        int        `json:"tasks_in_window"`
	Merged               []Interval `json:"merged,omitempty"`
	WindowBusinessDays   int        `json:"window_business_days"`
	OccupiedBusinessDays int        `json:"occupied_business_days"`
	IdleBusinessDays     int        `json:"idle_business_days"`
	IdleHours            int        `json:"idle_hours"`
}

// NoData reports whether none of the assignee's tasks touch the window, in
// which case the idle figure reflects missing data rather than spare capacity.
func (e Entry) NoData() bool {
	return e.TasksInWindow == 0
}

// Ledger is the result of one calculator run.
type Ledger struct {
	Window      Window    `json:"window"`
	HoursPerDay int       `json:"hours_per_day"`
	GeneratedAt time.Time `json:"generated_at"`
	Entries     []Entry   `json:"entries"`
	Anomalies   []Anomaly `json:"anomalies,omitempty"`
}

// Idle flattens the ledger into the assignee -> idle mapping.
func (l *Ledger) Idle() map[string]Idle {
	out := make(map[string]Idle, len(l.Entries))
	for _, e := range l.Entries {
		out[e.Assignee] = Idle{Days: e.IdleBusinessDays, Hours: e.IdleHours}
	}
	return out
}

// Entry looks up the row of one assignee.
func (l *Ledger) Entry(assignee string) (Entry, bool) {
	key := assigneeKey(assignee)
	for _, e := range l.Entries {
		if e.Assignee == key {
			return e, true
		}
	}
	return Entry{}, false
}

// Summary aggregates ledger entries.
type Summary struct {
	Assignees            int     `json:"assignees"`
	WindowBusinessDays   int     `json:"window_business_days"`
	OccupiedBusinessDays int     `json:"occupied_business_days"`
	IdleBusinessDays     int     `json:"idle_business_days"`
	IdleHours            int     `json:"idle_hours"`
	CapacityHours        int     `json:"capacity_hours"`
	Utilization          float64 `json:"utilization"`
}

// TeamSummary is one row of the manager summary.
type TeamSummary struct {
	Team string `json:"team"`
	Summary
}

// Global summarizes the whole ledger.
func (l *Ledger) Global() Summary {
	return summarize(l.Entries, l.HoursPerDay)
}

// ByTeam summarizes the ledger per team, sorted by team name.
func (l *Ledger) ByTeam() []TeamSummary {
	grouped := make(map[string][]Entry)
	for _, e := range l.Entries {
		team := strings.TrimSpace(e.Team)
		if team == "" {
			team = NoTeam
		}
		grouped[team] = append(grouped[team], e)
	}

	teams := make([]TeamSummary, 0, len(grouped))
	for team, entries := range grouped {
		teams = append(teams, TeamSummary{Team: team, Summary: summarize(entries, l.HoursPerDay)})
	}
	slices.SortFunc(teams, func(a, b TeamSummary) int {
		return cmp.Compare(a.Team, b.Team)
	})
	return teams
}

func summarize(entries []Entry, hoursPerDay int) Summary {
	var s Summary
	for _, e := range entries {
		s.Assignees++
		s.WindowBusinessDays += e.WindowBusinessDays
		s.OccupiedBusinessDays += e.OccupiedBusinessDays
		s.IdleBusinessDays += e.IdleBusinessDays
		s.IdleHours += e.IdleHours
	}
	s.CapacityHours = s.WindowBusinessDays * hoursPerDay
	if s.WindowBusinessDays > 0 {
		s.Utilization = float64(s.OccupiedBusinessDays) / float64(s.WindowBusinessDays)
	}
	return s
}
