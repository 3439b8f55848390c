package ingest

import "time"

func testNow() time.Time {
	return time.Date(2024, time.March, 7, 15, 4, 5, 0, time.UTC)
}

func timePtr(t time.Time) *time.Time {
	return &t
}
