package utils

import "time"

// DateLayout is the ISO date format used in reports and API responses.
const DateLayout = "2006-01-02"

// DaysBetween returns the whole days from a to b (negative when b precedes a).
func DaysBetween(a, b time.Time) int {
	return int(b.Sub(a).Hours() / 24)
}

// FormatDate renders a date in the report layout, or dashes when zero.
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return "----------"
	}
	return t.Format(DateLayout)
}

// ParseDayMonthYear parses the dd/mm/yyyy dates used by the ECDC feed into
// a UTC midnight timestamp.
func ParseDayMonthYear(s string) (time.Time, error) {
	return time.Parse("02/01/2006", s)
}
