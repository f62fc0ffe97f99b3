// Package period maps wall-clock time onto the recurring quota window.
//
// The window boundary is a fixed local hour in a named time zone, so a
// daylight-saving transition never shifts the boundary by an hour. The policy
// is a pure function of its inputs; callers supply the clock.
package period

import "time"

// Defaults for the quota window boundary.
const (
	DefaultZone       = "America/Denver"
	DefaultAnchorHour = 12
)

// KeyFor returns the canonical key of the period containing now. The period
// begins at the most recent occurrence of anchorHour local time in loc at or
// before now, and the key is that boundary's date in loc.
func KeyFor(now time.Time, anchorHour int, loc *time.Location) string {
	return boundaryAtOrBefore(now, anchorHour, loc).Format("2006-01-02")
}

// NextResetAfter returns the next period boundary strictly after now.
func NextResetAfter(now time.Time, anchorHour int, loc *time.Location) time.Time {
	boundary := boundaryAtOrBefore(now, anchorHour, loc)
	return anchorOn(boundary.AddDate(0, 0, 1), anchorHour, loc)
}

func boundaryAtOrBefore(now time.Time, anchorHour int, loc *time.Location) time.Time {
	local := now.In(loc)
	boundary := anchorOn(local, anchorHour, loc)
	if now.Before(boundary) {
		boundary = anchorOn(local.AddDate(0, 0, -1), anchorHour, loc)
	}
	return boundary
}

// anchorOn pins the anchor hour onto day's date in loc. time.Date resolves
// the zone offset for that specific date, which is what keeps the boundary
// stable across daylight-saving transitions.
func anchorOn(day time.Time, anchorHour int, loc *time.Location) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), anchorHour, 0, 0, 0, loc)
}
