package capacity

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrWindowUnset indicates a window without a start or end date.
	ErrWindowUnset = errors.New("working window start and end are required")

	// ErrWindowInverted indicates a window whose end precedes its start.
	ErrWindowInverted = errors.New("working window ends before it starts")
)

// Window is the inclusive date range idle time is measured against.
type Window struct {
	Start time.Time
	End   time.Time
}

// NewWindow builds a window from the UTC dates of start and end.
func NewWindow(start, end time.Time) Window {
	return Window{Start: Midnight(start), End: Midnight(end)}
}

// ParseWindow parses two YYYY-MM-DD dates.
func ParseWindow(from, to string) (Window, error) {
	start, err := time.Parse(DateLayout, strings.TrimSpace(from))
	if err != nil {
		return Window{}, fmt.Errorf("invalid window start %q: %w", from, err)
	}
	end, err := time.Parse(DateLayout, strings.TrimSpace(to))
	if err != nil {
		return Window{}, fmt.Errorf("invalid window end %q: %w", to, err)
	}
	return NewWindow(start, end), nil
}

// MonthWindow returns the calendar month containing t.
func MonthWindow(t time.Time) Window {
	first := Midnight(t).AddDate(0, 0, 1-t.UTC().Day())
	return Window{Start: first, End: first.AddDate(0, 1, -1)}
}

// Bounds is the half-open interval covered by the window. The end date is
// inclusive, so the interval stops at the midnight after it.
func (w Window) Bounds() Interval {
	return Interval{Start: Midnight(w.Start), End: Midnight(w.End).Add(Day)}
}

// BusinessDays counts business days in the window.
func (w Window) BusinessDays() int {
	return w.Bounds().BusinessDays()
}

// Validate is for callers that accept windows from users. The calculator
// itself never rejects a window.
func (w Window) Validate() error {
	if w.Start.IsZero() || w.End.IsZero() {
		return ErrWindowUnset
	}
	if Midnight(w.End).Before(Midnight(w.Start)) {
		return fmt.Errorf("%w: %s", ErrWindowInverted, w)
	}
	return nil
}

func (w Window) String() string {
	return fmt.Sprintf("%s..%s", w.Start.Format(DateLayout), w.End.Format(DateLayout))
}

type windowJSON struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

func (w Window) MarshalJSON() ([]byte, error) {
	return json.Marshal(windowJSON{
		Start: w.Start.Format(DateLayout),
		End:   w.End.Format(DateLayout),
	})
}

func (w *Window) UnmarshalJSON(data []byte) error {
	var raw windowJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseWindow(raw.Start, raw.End)
	if err != nil {
		return err
	}
	*w = parsed
	return nil
}
