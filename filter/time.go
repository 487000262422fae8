package filter

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// dateLayout and dateTimeLayouts are the literal input shapes the
// normalizer accepts, per spec §4.3.1.
const dateLayout = "2006-01-02"

var dateTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// ParseDateTime parses a single Date, ISO date string, or ISO datetime
// string into a concrete UTC time.Time. It does not handle range or
// relative-keyword forms; use ParseDateRange for those.
func ParseDateTime(value any) (time.Time, error) {
	switch v := value.(type) {
	case time.Time:
		return v.UTC(), nil
	case string:
		if t, err := time.Parse(dateLayout, v); err == nil {
			return t.UTC(), nil
		}
		for _, layout := range dateTimeLayouts {
			if t, err := time.Parse(layout, v); err == nil {
				return t.UTC(), nil
			}
		}
		return time.Time{}, fmt.Errorf("filter: unparseable date/time %q", v)
	default:
		return time.Time{}, fmt.Errorf("filter: unsupported date/time value %T", value)
	}
}

// ParseDateRange resolves a dateRange value — a bare date string, an
// explicit [start, end] pair, or a relative keyword — to a concrete
// inclusive [start, end] UTC bound pair (a whole-day end is its
// 23:59:59.999 instant), per spec §4.3.1. now is the reference
// instant for relative keywords (always UTC).
func ParseDateRange(value any, now time.Time) (start, end time.Time, err error) {
	now = now.UTC()

	switch v := value.(type) {
	case string:
		if kw, ok := parseRelativeKeyword(v, now); ok {
			return kw.start, kw.end, nil
		}
		d, err := ParseDateTime(v)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		dayStart := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
		dayEnd := dayStart.Add(24*time.Hour - time.Millisecond)
		return dayStart, dayEnd, nil

	case []string:
		if len(v) != 2 {
			return time.Time{}, time.Time{}, fmt.Errorf("filter: date range must have exactly 2 entries, got %d", len(v))
		}
		return parseExplicitRange(v[0], v[1])

	case []any:
		if len(v) != 2 {
			return time.Time{}, time.Time{}, fmt.Errorf("filter: date range must have exactly 2 entries, got %d", len(v))
		}
		s0, ok0 := v[0].(string)
		s1, ok1 := v[1].(string)
		if !ok0 || !ok1 {
			return time.Time{}, time.Time{}, fmt.Errorf("filter: date range entries must be strings")
		}
		return parseExplicitRange(s0, s1)

	default:
		return time.Time{}, time.Time{}, fmt.Errorf("filter: unsupported dateRange value %T", value)
	}
}

func parseExplicitRange(a, b string) (time.Time, time.Time, error) {
	start, err := ParseDateTime(a)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err := ParseDateTime(b)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	// A bare end date (no time-of-day component in the source string)
	// is inclusive of that whole day, matching the single-date rule.
	if _, _, ok := hasTimeComponent(b); !ok {
		end = time.Date(end.Year(), end.Month(), end.Day(), 23, 59, 59, 999000000, time.UTC)
	}
	return start, end, nil
}

func hasTimeComponent(s string) (time.Time, time.Time, bool) {
	if _, err := time.Parse(dateLayout, s); err == nil {
		return time.Time{}, time.Time{}, false
	}
	return time.Time{}, time.Time{}, true
}

type resolvedRange struct{ start, end time.Time }

// parseRelativeKeyword recognizes the keyword forms named in spec
// §4.3.1: "last N days/weeks/months/quarters", "this day/week/month/quarter/year".
func parseRelativeKeyword(s string, now time.Time) (resolvedRange, bool) {
	s = strings.ToLower(strings.TrimSpace(s))

	if rest, ok := cutPrefix(s, "last "); ok {
		fields := strings.Fields(rest)
		if len(fields) == 2 {
			n, err := strconv.Atoi(fields[0])
			if err == nil && n > 0 {
				unit := strings.TrimSuffix(fields[1], "s")
				switch unit {
				case "day":
					end := truncateToDay(now)
					start := end.AddDate(0, 0, -n)
					return resolvedRange{start, end.Add(-time.Millisecond)}, true
				case "week":
					end := truncateToDay(now)
					start := end.AddDate(0, 0, -7*n)
					return resolvedRange{start, end.Add(-time.Millisecond)}, true
				case "month":
					end := truncateToDay(now)
					start := end.AddDate(0, -n, 0)
					return resolvedRange{start, end.Add(-time.Millisecond)}, true
				case "quarter":
					end := truncateToDay(now)
					start := end.AddDate(0, -3*n, 0)
					return resolvedRange{start, end.Add(-time.Millisecond)}, true
				}
			}
		}
		return resolvedRange{}, false
	}

	if rest, ok := cutPrefix(s, "this "); ok {
		switch rest {
		case "day":
			start := truncateToDay(now)
			return resolvedRange{start, start.Add(24*time.Hour - time.Millisecond)}, true
		case "week":
			start := truncateToWeek(now)
			return resolvedRange{start, start.AddDate(0, 0, 7).Add(-time.Millisecond)}, true
		case "month":
			start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
			return resolvedRange{start, start.AddDate(0, 1, 0).Add(-time.Millisecond)}, true
		case "quarter":
			start := truncateToQuarter(now)
			return resolvedRange{start, start.AddDate(0, 3, 0).Add(-time.Millisecond)}, true
		case "year":
			start := time.Date(now.Year(), 1, 1, 0, 0, 0, 0, time.UTC)
			return resolvedRange{start, start.AddDate(1, 0, 0).Add(-time.Millisecond)}, true
		}
		return resolvedRange{}, false
	}

	return resolvedRange{}, false
}

func cutPrefix(s, prefix string) (string, bool) {
	if strings.HasPrefix(s, prefix) {
		return s[len(prefix):], true
	}
	return "", false
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// truncateToWeek returns the Monday 00:00:00 on or before t (ISO week start).
func truncateToWeek(t time.Time) time.Time {
	day := truncateToDay(t)
	offset := int(day.Weekday()) - int(time.Monday)
	if offset < 0 {
		offset += 7
	}
	return day.AddDate(0, 0, -offset)
}

func truncateToQuarter(t time.Time) time.Time {
	q := (int(t.Month()) - 1) / 3
	firstMonth := time.Month(q*3 + 1)
	return time.Date(t.Year(), firstMonth, 1, 0, 0, 0, 0, time.UTC)
}

// TruncateToGranularity truncates t to the start of the period containing
// it, for the given granularity. Used by the comparison orchestrator to
// compute __periodDayIndex (spec §4.9 step 4).
func TruncateToGranularity(t time.Time, g string) time.Time {
	t = t.UTC()
	switch g {
	case "year":
		return time.Date(t.Year(), 1, 1, 0, 0, 0, 0, time.UTC)
	case "quarter":
		return truncateToQuarter(t)
	case "month":
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	case "week":
		return truncateToWeek(t)
	case "day":
		return truncateToDay(t)
	case "hour":
		return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, time.UTC)
	case "minute":
		return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), 0, 0, time.UTC)
	case "second":
		return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, time.UTC)
	default:
		return truncateToDay(t)
	}
}

// GranularityDistance returns the integer number of whole granularity
// units between from and to (to - from), used for __periodDayIndex
// alignment (spec §4.9 step 4). Negative if to precedes from.
func GranularityDistance(from, to time.Time, g string) int {
	from, to = from.UTC(), to.UTC()
	switch g {
	case "year":
		return to.Year() - from.Year()
	case "quarter":
		return quarterIndex(to) - quarterIndex(from)
	case "month":
		return (to.Year()-from.Year())*12 + int(to.Month()) - int(from.Month())
	case "week":
		return int(to.Sub(from).Hours() / (24 * 7))
	case "day":
		return int(TruncateToGranularity(to, "day").Sub(TruncateToGranularity(from, "day")).Hours() / 24)
	case "hour":
		return int(to.Sub(from).Hours())
	case "minute":
		return int(to.Sub(from).Minutes())
	case "second":
		return int(to.Sub(from).Seconds())
	default:
		return int(TruncateToGranularity(to, "day").Sub(TruncateToGranularity(from, "day")).Hours() / 24)
	}
}

func quarterIndex(t time.Time) int {
	return t.Year()*4 + (int(t.Month())-1)/3
}
