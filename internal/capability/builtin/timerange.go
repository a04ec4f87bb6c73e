package builtin

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

var (
	monthRange   = regexp.MustCompile(`^(\d{4})-(\d{2})$`)
	quarterRange = regexp.MustCompile(`^(\d{4})-Q([1-4])$`)
	lastDays     = regexp.MustCompile(`^last_(\d+)d$`)
)

// resolveTimeRange turns a time-range token into an inclusive [from, to]
// day window. It accepts the named ranges of the query schema (today,
// yesterday, 7d, this_month, ...) and the report formats (2024-01,
// 2024-Q1, last_30d).
func resolveTimeRange(token string, now time.Time) (from, to time.Time, err error) {
	day := now.UTC().Truncate(24 * time.Hour)

	switch token {
	case "today":
		return day, day, nil
	case "yesterday":
		y := day.AddDate(0, 0, -1)
		return y, y, nil
	case "7d":
		return day.AddDate(0, 0, -7), day.AddDate(0, 0, -1), nil
	case "30d":
		return day.AddDate(0, 0, -30), day.AddDate(0, 0, -1), nil
	case "90d":
		return day.AddDate(0, 0, -90), day.AddDate(0, 0, -1), nil
	case "this_month":
		start := time.Date(day.Year(), day.Month(), 1, 0, 0, 0, 0, time.UTC)
		return start, day, nil
	case "last_month":
		start := time.Date(day.Year(), day.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -1, 0)
		return start, start.AddDate(0, 1, -1), nil
	case "this_quarter":
		q := (int(day.Month()) - 1) / 3
		start := time.Date(day.Year(), time.Month(q*3+1), 1, 0, 0, 0, 0, time.UTC)
		return start, day, nil
	case "this_year":
		start := time.Date(day.Year(), 1, 1, 0, 0, 0, 0, time.UTC)
		return start, day, nil
	}

	if m := monthRange.FindStringSubmatch(token); m != nil {
		year, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		if month < 1 || month > 12 {
			return from, to, fmt.Errorf("invalid month in time range %q", token)
		}
		start := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
		return start, start.AddDate(0, 1, -1), nil
	}
	if m := quarterRange.FindStringSubmatch(token); m != nil {
		year, _ := strconv.Atoi(m[1])
		q, _ := strconv.Atoi(m[2])
		start := time.Date(year, time.Month((q-1)*3+1), 1, 0, 0, 0, 0, time.UTC)
		return start, start.AddDate(0, 3, -1), nil
	}
	if m := lastDays.FindStringSubmatch(token); m != nil {
		n, _ := strconv.Atoi(m[1])
		if n < 1 {
			return from, to, fmt.Errorf("invalid day count in time range %q", token)
		}
		return day.AddDate(0, 0, -n), day.AddDate(0, 0, -1), nil
	}

	return from, to, fmt.Errorf("unrecognized time range %q", token)
}

// previousWindow returns the window of equal length immediately before
// [from, to].
func previousWindow(from, to time.Time) (time.Time, time.Time) {
	days := int(to.Sub(from).Hours()/24) + 1
	return from.AddDate(0, 0, -days), from.AddDate(0, 0, -1)
}
