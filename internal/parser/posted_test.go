package parser

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseRelativeDate(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, time.March, 7, 15, 4, 5, 123456789, time.UTC)
	dayStart := func(t time.Time) time.Time {
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	}

	tests := []struct {
		text string
		want time.Time
		ok   bool
	}{
		{"3 days ago", dayStart(now.AddDate(0, 0, -3)), true},
		{"30+ days ago", dayStart(now.AddDate(0, 0, -30)), true},
		{"1 day ago", dayStart(now.AddDate(0, 0, -1)), true},
		{"Today", dayStart(now), true},
		{"just posted", time.Time{}, false},
		{"many days ago", time.Time{}, false},
		{"", time.Time{}, false},
	}
	for _, tc := range tests {
		t.Run(tc.text, func(t *testing.T) {
			t.Parallel()
			got, ok := ParseRelativeDate(tc.text, now)
			require.Equal(t, tc.ok, ok)
			if tc.ok {
				require.Equal(t, tc.want, got)
				require.Zero(t, got.Hour())
				require.Zero(t, got.Nanosecond())
			}
		})
	}
}

func TestPostedAtFallsBackToNow(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, time.March, 7, 15, 4, 5, 123456789, time.UTC)

	// Unrecognized footer text keeps full precision, deliberately untruncated.
	require.Equal(t, now, PostedAt([]string{"Save job", "Report job"}, now))
	require.Equal(t, now, PostedAt(nil, now))

	// The first matching string wins.
	got := PostedAt([]string{"Save job", "2 days ago", "Report job"}, now)
	require.Equal(t, time.Date(2024, time.March, 5, 0, 0, 0, 0, time.UTC), got)
}
