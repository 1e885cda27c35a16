package capacity

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseWindow(t *testing.T) {
	w, err := ParseWindow("2025-12-01", " 2025-12-05 ")
	require.NoError(t, err)
	assert.Equal(t, date("2025-12-01"), w.Start)
	assert.Equal(t, date("2025-12-05"), w.End)
	assert.Equal(t, iv("2025-12-01", "2025-12-06"), w.Bounds())
	assert.Equal(t, 5, w.BusinessDays())

	_, err = ParseWindow("12/01/2025", "2025-12-05")
	assert.Error(t, err)
}

func TestWindow_Validate(t *testing.T) {
	assert.NoError(t, window("2025-12-01", "2025-12-01").Validate())
	assert.ErrorIs(t, Window{}.Validate(), ErrWindowUnset)
	assert.ErrorIs(t, window("2025-12-05", "2025-12-01").Validate(), ErrWindowInverted)
}

func TestMonthWindow(t *testing.T) {
	w := MonthWindow(time.Date(2025, 12, 17, 15, 0, 0, 0, time.UTC))
	assert.Equal(t, window("2025-12-01", "2025-12-31"), w)

	feb := MonthWindow(time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, window("2024-02-01", "2024-02-29"), feb)
}

func TestWindow_JSON(t *testing.T) {
	data, err := json.Marshal(firstWeek)
	require.NoError(t, err)
	assert.JSONEq(t, `{"start":"2025-12-01","end":"2025-12-05"}`, string(data))

	var decoded Window
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, firstWeek, decoded)
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"2025-12-01", "2025-12-01T00:00:00Z", true},
		{"2025-12-01T23:30:00-05:00", "2025-12-02T04:30:00Z", true},
		{"2025-12-01T10:00:00.123Z", "2025-12-01T10:00:00.123Z", true},
		{"2025-12-01T10:00:00", "2025-12-01T10:00:00Z", true},
		{"2025-12-01 10:00:00", "2025-12-01T10:00:00Z", true},
		{"2025/12/01", "2025-12-01T00:00:00Z", true},
		{"20251201", "2025-12-01T00:00:00Z", true},
		{"1764547200000", "2025-12-01T00:00:00Z", true},
		{"", "", false},
		{"   ", "", false},
		{"soon", "", false},
		{"2025-13-40", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseTimestamp(tt.in)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				want, err := time.Parse(time.RFC3339Nano, tt.want)
				require.NoError(t, err)
				assert.True(t, want.Equal(got), "got %s want %s", got, want)
			}
		})
	}
}
