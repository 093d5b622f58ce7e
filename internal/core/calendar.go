package core

import (
	"strings"
	"time"
)

const (
	TimestampLayout = "2006-01-02 15:04:05"
	DateLayout      = "2006-01-02"
	MonthLayout     = "2006-01"
)

// FormatTimestamp renders t as stored wall-clock text in loc.
func FormatTimestamp(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(TimestampLayout)
}

// ParseTimestamp reads "YYYY-MM-DD HH:MM:SS", RFC 3339 or a bare "YYYY-MM-DD" in loc.
func ParseTimestamp(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.ParseInLocation(TimestampLayout, s, loc); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.In(loc), nil
	}
	if t, err := time.ParseInLocation(DateLayout, s, loc); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation("2006-01-02T15:04", s, loc); err == nil {
		return t, nil
	}
	return time.Time{}, InvalidInput("timestamp must be YYYY-MM-DD or YYYY-MM-DD HH:MM:SS")
}

// ValidateMonthPrefix accepts an empty prefix or a YYYY-MM month.
func ValidateMonthPrefix(s string) error {
	if s == "" {
		return nil
	}
	if _, err := time.Parse(MonthLayout, s); err != nil {
		return InvalidInput("month must be YYYY-MM")
	}
	return nil
}

// MonthRange returns [first of t's month, first of the following month) in t's location.
func MonthRange(t time.Time) DateRange {
	loc := t.Location()
	start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, loc)
	var end time.Time
	if t.Month() == time.December {
		end = time.Date(t.Year()+1, time.January, 1, 0, 0, 0, 0, loc)
	} else {
		end = time.Date(t.Year(), t.Month()+1, 1, 0, 0, 0, 0, loc)
	}
	return DateRange{Start: start, End: end}
}

// TrailingDays covers the last days calendar days up to and including t's day.
func TrailingDays(t time.Time, days int) DateRange {
	loc := t.Location()
	today := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
	return DateRange{
		Start: today.AddDate(0, 0, -(days - 1)),
		End:   today.AddDate(0, 0, 1),
	}
}
