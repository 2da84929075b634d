package synth

import "time"

// Daypart boundaries in local hours.
const (
	morningStart = 6
	dayStart     = 12
	eveningStart = 18
	nightStart   = 22
)

// TimeOfDayAt buckets the local hour of t.
func TimeOfDayAt(t time.Time) TimeOfDay {
	switch h := t.Hour(); {
	case h >= morningStart && h < dayStart:
		return Morning
	case h >= dayStart && h < eveningStart:
		return Day
	case h >= eveningStart && h < nightStart:
		return Evening
	default:
		return Night
	}
}

// DetectTimeOfDay returns the daypart of now in the IANA zone tz. An empty
// or unknown zone falls back to UTC; the bool reports whether tz was used.
func DetectTimeOfDay(now time.Time, tz string) (TimeOfDay, bool) {
	loc, err := time.LoadLocation(tz)
	if tz == "" || err != nil {
		return TimeOfDayAt(now.UTC()), false
	}
	return TimeOfDayAt(now.In(loc)), true
}
