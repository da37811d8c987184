package util

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseTime(t *testing.T) {
	want := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	cases := map[string]struct {
		in string
		ok bool
		at time.Time
	}{
		"rfc3339":     {"2026-03-01T12:00:00Z", true, want},
		"date only":   {"2026-03-01", true, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)},
		"unix":        {"1772366400", true, want},
		"unix millis": {"1772366400000", true, want},
		"empty":       {"", false, time.Time{}},
		"garbage":     {"yesterday", false, time.Time{}},
		"negative":    {"-5", false, time.Time{}},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			got, ok := ParseTime(tc.in)
			assert.Equal(t, tc.ok, ok)
			if tc.ok {
				assert.True(t, tc.at.Equal(got), "got %s", got)
			}
		})
	}
}

func TestParseTimeDefault(t *testing.T) {
	def := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, def, ParseTimeDefault("nope", def))
}
