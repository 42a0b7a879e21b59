package util

import (
    "strconv"
    "time"
)

// DateLayout is the calendar date format used on every external surface.
const DateLayout = "2006-01-02"

// ParseDate accepts YYYY-MM-DD, RFC3339 and unix seconds. Returns (t, true) if any worked.
// The result is truncated to midnight UTC.
func ParseDate(s string) (time.Time, bool) {
    if s == "" {
        return time.Time{}, false
    }
    if t, err := time.Parse(DateLayout, s); err == nil {
        return t.UTC(), true
    }
    if t, err := time.Parse(time.RFC3339, s); err == nil {
        return Day(t), true
    }
    if ts, err := strconv.ParseInt(s, 10, 64); err == nil && ts > 0 {
        return Day(time.Unix(ts, 0)), true
    }
    return time.Time{}, false
}

// ParseDateDefault parses a date or returns def if empty/invalid.
func ParseDateDefault(s string, def time.Time) time.Time {
    if t, ok := ParseDate(s); ok {
        return t
    }
    return def
}

// Day truncates t to midnight UTC.
func Day(t time.Time) time.Time {
    y, m, d := t.UTC().Date()
    return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// FormatDate renders t as YYYY-MM-DD in UTC.
func FormatDate(t time.Time) string {
    return t.UTC().Format(DateLayout)
}

// TrailingRange returns [today-days, today] as calendar days.
func TrailingRange(now time.Time, days int) (time.Time, time.Time) {
    end := Day(now)
    return end.AddDate(0, 0, -days), end
}
