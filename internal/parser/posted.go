package parser

import (
	"strconv"
	"strings"
	"time"
)

// maxRelativeDays is how the site renders anything older than a month.
const maxRelativeDays = 30

// PostedAt scans the footer strings for a relative posting date and resolves
// it against now. When nothing matches, it returns now as-is: the site gives
// day granularity only, so matched dates are truncated to the start of their
// day while the fallback keeps full precision as a "seen at" stamp.
func PostedAt(texts []string, now time.Time) time.Time {
	for _, text := range texts {
		if posted, ok := ParseRelativeDate(text, now); ok {
			return posted
		}
	}
	return now
}

// ParseRelativeDate resolves one free-text relative date against now.
// Recognized shapes: "<n> days ago", "30+ days ago" (clamped to 30),
// "1 day ago", and "Today".
func ParseRelativeDate(text string, now time.Time) (time.Time, bool) {
	switch {
	case text == "Today":
		return startOfDay(now), true
	case text == "1 day ago":
		return startOfDay(now.AddDate(0, 0, -1)), true
	case strings.HasSuffix(text, " days ago"):
		raw := strings.TrimSuffix(text, " days ago")
		days := maxRelativeDays
		if raw != "30+" {
			n, err := strconv.Atoi(raw)
			if err != nil {
				return time.Time{}, false
			}
			days = n
		}
		return startOfDay(now.AddDate(0, 0, -days)), true
	default:
		return time.Time{}, false
	}
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
