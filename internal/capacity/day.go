package capacity

import "time"

// Day is one calendar day. All intervals in this package are aligned to UTC
// midnights, so adding Day never crosses a DST boundary.
const Day = 24 * time.Hour

// DateLayout is the date format used for windows and exported dates.
const DateLayout = "2006-01-02"

// Midnight returns 00:00 UTC of the UTC calendar date of t.
func Midnight(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// IsBusinessDay reports whether the UTC weekday of t is Monday through Friday.
func IsBusinessDay(t time.Time) bool {
	switch t.UTC().Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	return true
}

// CountBusinessDays walks [start, end) one day at a time and counts the
// business days. An empty or inverted range counts zero.
func CountBusinessDays(start, end time.Time) int {
	n := 0
	for d := Midnight(start); d.Before(end); d = d.Add(Day) {
		if IsBusinessDay(d) {
			n++
		}
	}
	return n
}
