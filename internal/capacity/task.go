package capacity

import (
	"fmt"
	"strings"
	"time"
)

// Unassigned is the bucket for tasks without an assignee.
const Unassigned = "Unassigned"

// Task is a task or issue record as delivered by a source. Timestamps stay
// raw so that every source shares the same lenient parsing in ParseTimestamp.
// End is an alias of Due for sources that call it that.
type Task struct {
	ID       string `json:"id,omitempty"`
	Title    string `json:"title,omitempty"`
	Assignee string `json:"assignee,omitempty"`
	Team     string `json:"team,omitempty"`
	Source   string `json:"source,omitempty"`
	Start    string `json:"start,omitempty"`
	Due      string `json:"due,omitempty"`
	End      string `json:"end,omitempty"`
	Created  string `json:"created,omitempty"`
}

// AssigneeKey is the bucket the task is counted under.
func (t Task) AssigneeKey() string {
	return assigneeKey(t.Assignee)
}

// CreatedAt returns the parsed creation time, zero if absent or malformed.
func (t Task) CreatedAt() time.Time {
	created, _ := ParseTimestamp(t.Created)
	return created
}

func assigneeKey(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return Unassigned
	}
	return name
}

// AnomalyKind classifies a data-quality problem found while normalizing a task.
type AnomalyKind string

const (
	AnomalyInvertedRange AnomalyKind = "inverted_range"
	AnomalyUnparseable   AnomalyKind = "unparseable_timestamp"
	AnomalyMissingStart  AnomalyKind = "missing_start"
)

// Anomaly is recorded whenever a task is silently repaired. The repair itself
// still happens; anomalies only make it visible.
type Anomaly struct {
	TaskID   string      `json:"task_id,omitempty"`
	Assignee string      `json:"assignee"`
	Kind     AnomalyKind `json:"kind"`
	Field    string      `json:"field"`
	Value    string      `json:"value,omitempty"`
}

func (a Anomaly) String() string {
	id := a.TaskID
	if id == "" {
		id = "<no id>"
	}
	if a.Value == "" {
		return fmt.Sprintf("%s (%s): %s on %s", id, a.Assignee, a.Kind, a.Field)
	}
	return fmt.Sprintf("%s (%s): %s on %s %q", id, a.Assignee, a.Kind, a.Field, a.Value)
}

// interval normalizes a task into its day-aligned half-open interval.
//
// Start falls back start -> created -> due -> now, end falls back
// due -> start, and an end before the start is clamped to the start.
func (c *Calculator) interval(t Task) (Interval, []Anomaly) {
	var anomalies []Anomaly
	report := func(kind AnomalyKind, field, value string) {
		anomalies = append(anomalies, Anomaly{
			TaskID:   t.ID,
			Assignee: t.AssigneeKey(),
			Kind:     kind,
			Field:    field,
			Value:    value,
		})
	}
	parse := func(field, raw string) (time.Time, bool) {
		if strings.TrimSpace(raw) == "" {
			return time.Time{}, false
		}
		ts, ok := ParseTimestamp(raw)
		if !ok {
			report(AnomalyUnparseable, field, raw)
		}
		return ts, ok
	}

	start, hasStart := parse("start", t.Start)
	created, hasCreated := parse("created", t.Created)
	due, hasDue := parse("due", t.Due)
	if !hasDue {
		due, hasDue = parse("end", t.End)
	}

	switch {
	case hasStart:
	case hasCreated:
		start = created
	case hasDue:
		start = due
	default:
		start = c.now()
		report(AnomalyMissingStart, "start", "")
	}
	start = Midnight(start)

	end := start
	if hasDue {
		end = Midnight(due)
	}
	if end.Before(start) {
		report(AnomalyInvertedRange, "due", fmt.Sprintf("%s < %s", end.Format(DateLayout), start.Format(DateLayout)))
		end = start
	}

	return Interval{Start: start, End: end.Add(Day)}, anomalies
}
