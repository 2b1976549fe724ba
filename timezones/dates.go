package timezones

import (
	"fmt"
	"strings"
	"time"

	"kpitracker/utils"
)

const (
	DateLayout      = "2006-01-02"
	TimestampLayout = "2006-01-02 15:04:05"
)

var dateLayouts = []string{DateLayout, "02-01-2006"}

func parseCalendarDate(value, field string, loc *time.Location) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, utils.NewValidationError(field, fmt.Sprintf("Invalid %s, must be YYYY-MM-DD", field))
}

// ParseLocalDate returns local midnight of the given date in loc, as a UTC instant.
func ParseLocalDate(value, field string, loc *time.Location) (time.Time, error) {
	t, err := parseCalendarDate(value, field, loc)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

// ParseLocalEndOfDay returns 23:59:59 local time of the given date in loc, as a UTC instant.
func ParseLocalEndOfDay(value, field string, loc *time.Location) (time.Time, error) {
	t, err := parseCalendarDate(value, field, loc)
	if err != nil {
		return time.Time{}, err
	}
	return EndOfDay(t, loc), nil
}

func StartOfDay(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc).UTC()
}

func EndOfDay(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 23, 59, 59, 0, loc).UTC()
}

// Rezone keeps the local calendar date of t in from and rebuilds the same wall
// clock time in to.
func Rezone(t time.Time, from, to *time.Location) time.Time {
	local := t.In(from)
	return time.Date(local.Year(), local.Month(), local.Day(),
		local.Hour(), local.Minute(), local.Second(), 0, to).UTC()
}

func FormatDate(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return ""
	}
	return t.In(loc).Format(DateLayout)
}

func FormatTimestamp(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return ""
	}
	return t.In(loc).Format(TimestampLayout)
}

func FormatISO(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return ""
	}
	return t.In(loc).Format(time.RFC3339)
}
