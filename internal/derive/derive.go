// Package derive holds the pure derived-value helpers used by the dashboard:
// display formatting and simple supply projections. No I/O, no clock writes.
package derive

import (
	"fmt"
	"math"
	"time"
)

// FormatVolume renders liters for display. Values of 1000 L and above switch
// to the "k" suffix.
func FormatVolume(liters float64) string {
	if liters >= 1000 {
		return fmt.Sprintf("%.1fk L", liters/1000)
	}
	return fmt.Sprintf("%.1f L", liters)
}

func FormatPercent(value float64) string {
	return fmt.Sprintf("%.1f%%", value)
}

func FormatTemperature(celsius float64) string {
	return fmt.Sprintf("%.1f°C", celsius)
}

// FormatRelativeTime renders an RFC3339 timestamp as a human phrase relative
// to now. Unparseable input yields "Unknown" rather than an error.
func FormatRelativeTime(ts string) string {
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return "Unknown"
	}
	return RelativeTime(t, time.Now())
}

// RelativeTime is the clock-injected form of FormatRelativeTime.
func RelativeTime(t, now time.Time) string {
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "Just now"
	case d < time.Hour:
		return plural(int(d.Minutes()), "minute")
	case d < 24*time.Hour:
		return plural(int(d.Hours()), "hour")
	default:
		return plural(int(d.Hours()/24), "day")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s ago", unit)
	}
	return fmt.Sprintf("%d %ss ago", n, unit)
}

// FormatDate renders an RFC3339 timestamp as "Jan 2, 2006".
func FormatDate(ts string) string {
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return "Invalid date"
	}
	return t.Format("Jan 2, 2006")
}

// FormatTime renders an RFC3339 timestamp as "15:04".
func FormatTime(ts string) string {
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return "Invalid time"
	}
	return t.Format("15:04")
}

// DaysRemaining projects whole days of headroom between capacity and the
// current volume at the given daily usage rate. The result is negative when
// the tank is over capacity. ok is false when dailyUsage is zero or negative
// (no sensible projection exists).
func DaysRemaining(currentVolume, capacity, dailyUsage float64) (days int, ok bool) {
	if dailyUsage <= 0 {
		return 0, false
	}
	return int(math.Floor((capacity - currentVolume) / dailyUsage)), true
}
