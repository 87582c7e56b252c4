package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatUptime(t *testing.T) {
	tests := []struct {
		name     string
		uptime   string
		expected string
	}{
		{name: "seconds only", uptime: "42s", expected: "42s"},
		{name: "minutes and seconds", uptime: "5m30s", expected: "5m 30s"},
		{name: "hours", uptime: "2h15m0s", expected: "2h 15m 0s"},
		{name: "days", uptime: "72h30m15s", expected: "3d 0h 30m 15s"},
		{name: "unparseable passes through", uptime: "soon", expected: "soon"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, FormatUptime(tt.uptime))
		})
	}
}

func TestFormatTime(t *testing.T) {
	// A valid RFC3339 timestamp parses and reformats
	formatted := FormatTime("2026-01-15T10:30:00Z")
	assert.NotEqual(t, "2026-01-15T10:30:00Z", formatted)
	assert.Contains(t, formatted, "2026")

	// Invalid input passes through unchanged
	assert.Equal(t, "yesterday", FormatTime("yesterday"))
}

func TestFormatAge(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name     string
		t        time.Time
		expected string
	}{
		{name: "zero time", t: time.Time{}, expected: "-"},
		{name: "seconds", t: now.Add(-30 * time.Second), expected: "30s"},
		{name: "minutes", t: now.Add(-5 * time.Minute), expected: "5m"},
		{name: "hours", t: now.Add(-3 * time.Hour), expected: "3h"},
		{name: "days", t: now.Add(-49 * time.Hour), expected: "2d"},
		{name: "future clamps to zero", t: now.Add(time.Hour), expected: "0s"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, FormatAge(tt.t))
		})
	}
}
