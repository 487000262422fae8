package dialect

import (
	"fmt"
	"strings"

	"github.com/cubegraph/semantic/query"
)

// SQLite renders SQLite SQL via modernc.org/sqlite. SQLite's LIKE is
// case-insensitive for ASCII by default but case-sensitive under
// COLLATE BINARY columns and for non-ASCII text, so string predicates
// pin COLLATE NOCASE explicitly rather than relying on the connection's
// default PRAGMA. Granularity truncation uses strftime. Placeholders
// are positional "?".
type SQLite struct{}

func (s *SQLite) Name() string { return "sqlite" }

func (s *SQLite) Capabilities() Capabilities {
	return Capabilities{
		SupportsWindowFunctions: true,
		SupportsFrameClause:     true,
		SupportsCTE:             true,
		DateType:                "TEXT",
		BooleanRepresentation:   BooleanInt,
	}
}

func (s *SQLite) BuildCount(expr string) string        { return fmt.Sprintf("COUNT(%s)", expr) }
func (s *SQLite) BuildCountDistinct(expr string) string { return fmt.Sprintf("COUNT(DISTINCT %s)", expr) }
func (s *SQLite) BuildSum(expr string) string            { return fmt.Sprintf("SUM(%s)", expr) }
func (s *SQLite) BuildAvg(expr string) string             { return fmt.Sprintf("AVG(%s)", expr) }
func (s *SQLite) BuildMin(expr string) string             { return fmt.Sprintf("MIN(%s)", expr) }
func (s *SQLite) BuildMax(expr string) string             { return fmt.Sprintf("MAX(%s)", expr) }

func (s *SQLite) BuildStringCondition(columnExpr string, op query.Operator, placeholder string) (string, error) {
	switch op {
	case query.OpContains:
		return fmt.Sprintf("%s LIKE '%%' || %s || '%%' COLLATE NOCASE", columnExpr, placeholder), nil
	case query.OpNotContains:
		return fmt.Sprintf("%s NOT LIKE '%%' || %s || '%%' COLLATE NOCASE", columnExpr, placeholder), nil
	case query.OpStartsWith:
		return fmt.Sprintf("%s LIKE %s || '%%' COLLATE NOCASE", columnExpr, placeholder), nil
	case query.OpEndsWith:
		return fmt.Sprintf("%s LIKE '%%' || %s COLLATE NOCASE", columnExpr, placeholder), nil
	default:
		return "", fmt.Errorf("dialect sqlite: unsupported string operator %q", op)
	}
}

func (s *SQLite) BuildTimeDimension(granularity query.Granularity, expr string) (string, error) {
	switch granularity {
	case query.GranQuarter:
		// SQLite has no native quarter unit: truncate to the month, then
		// walk back the 0/1/2 extra months within the quarter via
		// date()'s "start of month"/"-N months" modifiers, same technique
		// MySQL's DATE_SUB(..., INTERVAL (MONTH(expr)-1) % 3 MONTH) uses.
		return fmt.Sprintf(
			"strftime('%%Y-%%m-%%dT00:00:00', date(%s, 'start of month', '-' || ((CAST(strftime('%%m', %s) AS INTEGER) - 1) %% 3) || ' months'))",
			expr, expr,
		), nil
	case query.GranWeek:
		// strftime('%%w', ...) is 0 (Sunday) .. 6 (Saturday); (%%w + 6) %% 7
		// is days-since-Monday, matching MySQL's WEEKDAY()-based truncation
		// to a Monday week start.
		return fmt.Sprintf(
			"strftime('%%Y-%%m-%%dT00:00:00', date(%s, '-' || ((CAST(strftime('%%w', %s) AS INTEGER) + 6) %% 7) || ' days'))",
			expr, expr,
		), nil
	}

	format, err := sqliteStrftimeFormat(granularity)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("strftime('%s', %s)", format, expr), nil
}

func sqliteStrftimeFormat(g query.Granularity) (string, error) {
	switch g {
	case query.GranYear:
		return "%Y-01-01T00:00:00", nil
	case query.GranMonth:
		return "%Y-%m-01T00:00:00", nil
	case query.GranDay:
		return "%Y-%m-%dT00:00:00", nil
	case query.GranHour:
		return "%Y-%m-%dT%H:00:00", nil
	case query.GranMinute:
		return "%Y-%m-%dT%H:%M:00", nil
	case query.GranSecond:
		return "%Y-%m-%dT%H:%M:%S", nil
	default:
		return "", fmt.Errorf("dialect sqlite: unknown granularity %q", g)
	}
}

func (s *SQLite) BuildWindow(fn string, arg string, cfg WindowSpec, resolver WindowResolver) (string, error) {
	return buildAnsiWindow(s, fn, arg, cfg, resolver)
}

func (s *SQLite) TrueLiteral() string  { return "1" }
func (s *SQLite) FalseLiteral() string { return "0" }

func (s *SQLite) Placeholder(n int) string { return "?" }

func (s *SQLite) QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
