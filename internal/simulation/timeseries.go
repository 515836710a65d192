// Package simulation drives the per-timestep power model across a full
// year and reduces the result into energy statistics.
package simulation

import (
	"fmt"
	"time"
)

// GenerateTimeSeries returns timestamps from start to end inclusive at
// the given interval. The interval must be 1-1440 minutes. Both endpoints
// are included when the interval lands on them.
func GenerateTimeSeries(start, end time.Time, intervalMinutes int) ([]time.Time, error) {
	if intervalMinutes < 1 || intervalMinutes > 1440 {
		return nil, fmt.Errorf("interval must be 1-1440 minutes, got %d", intervalMinutes)
	}
	if start.IsZero() || end.IsZero() {
		return nil, fmt.Errorf("time range endpoints must be real instants")
	}
	if end.Before(start) {
		return nil, fmt.Errorf("end %s before start %s", end.Format(time.RFC3339), start.Format(time.RFC3339))
	}

	step := time.Duration(intervalMinutes) * time.Minute
	out := make([]time.Time, 0, int(end.Sub(start)/step)+1)
	for ts := start; !ts.After(end); ts = ts.Add(step) {
		out = append(out, ts)
	}
	return out, nil
}

// GenerateYear returns a full calendar year of timestamps in tz, from
// January 1 00:00 through the last grid point of December 31.
func GenerateYear(year, intervalMinutes int, tz *time.Location) ([]time.Time, error) {
	if tz == nil {
		tz = time.UTC
	}
	start := time.Date(year, time.January, 1, 0, 0, 0, 0, tz)
	end := time.Date(year, time.December, 31, 23, 59, 59, 0, tz)
	return GenerateTimeSeries(start, end, intervalMinutes)
}
