package schedule

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const secondsPerDay = 24 * 60 * 60

// TimeOfDay is a GTFS arrival time expressed as seconds after midnight of the
// service day. Values of 24:00:00 and later fall on the following calendar day.
type TimeOfDay int

// ParseTimeOfDay parses "H:MM:SS" or "HH:MM:SS". The hour component is not
// capped at 23.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("%w: %q", ErrUnparsableTime, s)
	}

	var fields [3]int
	for i, part := range parts {
		if part == "" {
			return 0, fmt.Errorf("%w: %q", ErrUnparsableTime, s)
		}
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("%w: %q", ErrUnparsableTime, s)
		}
		fields[i] = n
	}
	if fields[1] > 59 || fields[2] > 59 {
		return 0, fmt.Errorf("%w: %q", ErrUnparsableTime, s)
	}

	return TimeOfDay(fields[0]*3600 + fields[1]*60 + fields[2]), nil
}

// On resolves the time of day to an absolute instant on the given service day,
// in the service day's location. Overflow past 24h rolls onto the next day(s).
func (t TimeOfDay) On(serviceDay time.Time) time.Time {
	y, m, d := serviceDay.Date()
	secs := int(t)
	days := secs / secondsPerDay
	secs %= secondsPerDay
	return time.Date(y, m, d+days, secs/3600, (secs%3600)/60, secs%60, 0, serviceDay.Location())
}

func (t TimeOfDay) String() string {
	secs := int(t)
	return fmt.Sprintf("%02d:%02d:%02d", secs/3600, (secs%3600)/60, secs%60)
}

// FormatClock renders an instant the way riders read it, e.g. "3:04 PM".
func FormatClock(t time.Time) string {
	return t.Format("3:04 PM")
}
