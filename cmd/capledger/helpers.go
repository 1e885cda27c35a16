package main

import (
	"fmt"
	"strings"

	"github.com/Afrawles/capledger/internal/capacity"
)

// parseCommaList splits a comma-separated string, trims whitespace and
// drops empty items.
func parseCommaList(input string) []string {
	if input == "" {
		return []string{}
	}

	parts := strings.Split(input, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// parseOverrides parses name=YYYY-MM-DD:YYYY-MM-DD values into per-assignee
// windows. A name given twice keeps the last window.
func parseOverrides(values []string) (map[string]capacity.Window, error) {
	overrides := make(map[string]capacity.Window, len(values))
	for _, value := range values {
		name, dates, ok := strings.Cut(value, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid override %q: want name=YYYY-MM-DD:YYYY-MM-DD", value)
		}

		from, to, ok := strings.Cut(dates, ":")
		if !ok {
			return nil, fmt.Errorf("invalid override %q: want name=YYYY-MM-DD:YYYY-MM-DD", value)
		}

		w, err := capacity.ParseWindow(from, to)
		if err != nil {
			return nil, fmt.Errorf("override for %s: %w", name, err)
		}
		if err := w.Validate(); err != nil {
			return nil, fmt.Errorf("override for %s: %w", name, err)
		}
		overrides[name] = w
	}
	return overrides, nil
}
