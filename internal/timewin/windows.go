// Package timewin splits an inclusive date range into per-day query windows.
//
// The metadata catalog is most reliable when queried at day granularity, so
// every curate job walks its date range one calendar day at a time. Windows
// are always expressed in UTC.
package timewin

import "time"

// Window is one calendar day's query interval: the day's 00:00:00 through
// 23:59:59 UTC.
type Window struct {
	Start time.Time
	End   time.Time
}

// Day returns the window's calendar date at midnight UTC.
func (w Window) Day() time.Time {
	return w.Start
}

// Windows returns one Window per calendar day in [start, end], in ascending
// order. The time-of-day components of start and end are ignored; only their
// UTC calendar dates matter. An end before start yields an empty slice.
func Windows(start, end time.Time) []Window {
	first := midnightUTC(start)
	last := midnightUTC(end)
	if last.Before(first) {
		return nil
	}

	days := int(last.Sub(first).Hours()/24) + 1
	out := make([]Window, 0, days)
	for d := first; !d.After(last); d = d.AddDate(0, 0, 1) {
		out = append(out, Window{
			Start: d,
			End:   d.Add(24*time.Hour - time.Second),
		})
	}
	return out
}

func midnightUTC(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
