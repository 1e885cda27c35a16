package capacity

import (
	"cmp"
	"slices"
	"strings"
	"time"
)

// DefaultHoursPerDay converts idle business days into idle hours.
const DefaultHoursPerDay = 8

// Idle is the idle time of one assignee inside a window.
type Idle struct {
	Days  int `json:"idle_days"`
	Hours int `json:"idle_hours"`
}

// Option configures a Calculator.
type Option func(*Calculator)

// WithClock sets the time source used when a task has no usable start.
func WithClock(now func() time.Time) Option {
	return func(c *Calculator) {
		if now != nil {
			c.now = now
		}
	}
}

// WithHoursPerDay overrides the 8-hour workday. Non-positive values are ignored.
func WithHoursPerDay(hours int) Option {
	return func(c *Calculator) {
		if hours > 0 {
			c.hoursPerDay = hours
		}
	}
}

// WithOverrides measures the named assignees against their own window.
func WithOverrides(overrides map[string]Window) Option {
	return func(c *Calculator) {
		for name, w := range overrides {
			c.overrides[assigneeKey(name)] = w
		}
	}
}

// WithRoster makes the named assignees appear in the ledger even when they
// own no tasks.
func WithRoster(names ...string) Option {
	return func(c *Calculator) {
		for _, name := range names {
			c.roster = append(c.roster, assigneeKey(name))
		}
	}
}

// Calculator computes per-assignee idle business days. It holds no state
// between calls and is safe for concurrent use.
type Calculator struct {
	hoursPerDay int
	now         func() time.Time
	overrides   map[string]Window
	roster      []string
}

func NewCalculator(opts ...Option) *Calculator {
	c := &Calculator{
		hoursPerDay: DefaultHoursPerDay,
		now:         time.Now,
		overrides:   make(map[string]Window),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Span returns the smallest window covering window and every override.
func (c *Calculator) Span(window Window) Window {
	span := window
	for _, w := range c.overrides {
		if w.Start.Before(span.Start) {
			span.Start = w.Start
		}
		if w.End.After(span.End) {
			span.End = w.End
		}
	}
	return span
}

// HoursPerDay returns the configured workday length.
func (c *Calculator) HoursPerDay() int {
	return c.hoursPerDay
}

// ComputeIdleBusinessDays returns idle days and hours per assignee for the
// given window with the default calculator settings.
func ComputeIdleBusinessDays(tasks []Task, window Window) map[string]Idle {
	return NewCalculator().Compute(tasks, window).Idle()
}

type bucket struct {
	team      string
	intervals []Interval
}

// Compute builds the ledger for tasks against window, honouring per-assignee
// overrides and the roster.
func (c *Calculator) Compute(tasks []Task, window Window) *Ledger {
	buckets := make(map[string]*bucket)
	get := func(name string) *bucket {
		b, ok := buckets[name]
		if !ok {
			b = &bucket{}
			buckets[name] = b
		}
		return b
	}
	for _, name := range c.roster {
		get(name)
	}

	var anomalies []Anomaly
	for _, t := range tasks {
		iv, found := c.interval(t)
		anomalies = append(anomalies, found...)

		b := get(t.AssigneeKey())
		b.intervals = append(b.intervals, iv)
		// the smallest team name wins so the result ignores task order
		if team := strings.TrimSpace(t.Team); team != "" && (b.team == "" || team < b.team) {
			b.team = team
		}
	}

	ledger := &Ledger{
		Window:      window,
		HoursPerDay: c.hoursPerDay,
		GeneratedAt: c.now().UTC(),
		Entries:     make([]Entry, 0, len(buckets)),
		Anomalies:   sortAnomalies(anomalies),
	}
	for name, b := range buckets {
		w, override := c.overrides[name]
		if !override {
			w = window
		}
		entry := c.entry(name, w, b.intervals)
		entry.Team = b.team
		entry.Override = override
		ledger.Entries = append(ledger.Entries, entry)
	}
	slices.SortFunc(ledger.Entries, func(a, b Entry) int {
		return cmp.Compare(a.Assignee, b.Assignee)
	})
	return ledger
}

func (c *Calculator) entry(assignee string, w Window, intervals []Interval) Entry {
	bounds := w.Bounds()

	inWindow := 0
	for _, iv := range intervals {
		if _, ok := iv.Clip(bounds); ok {
			inWindow++
		}
	}

	merged := MergeIntervals(intervals)
	occupied := 0
	for _, iv := range merged {
		clipped, ok := iv.Clip(bounds)
		if !ok {
			continue
		}
		occupied += clipped.BusinessDays()
	}

	total := bounds.BusinessDays()
	idle := max(0, total-occupied)

	return Entry{
		Assignee:             assignee,
		Window:               w,
		Tasks:                len(intervals),
		TasksInWindow:        inWindow,
		Merged:               merged,
		WindowBusinessDays:   total,
		OccupiedBusinessDays: occupied,
		IdleBusinessDays:     idle,
		IdleHours:            idle * c.hoursPerDay,
	}
}

func sortAnomalies(anomalies []Anomaly) []Anomaly {
	slices.SortStableFunc(anomalies, func(a, b Anomaly) int {
		return cmp.Or(
			cmp.Compare(a.Assignee, b.Assignee),
			cmp.Compare(a.TaskID, b.TaskID),
			cmp.Compare(a.Field, b.Field),
			cmp.Compare(a.Kind, b.Kind),
		)
	})
	return anomalies
}
