package dialect

import (
	"fmt"
	"strings"

	"github.com/cubegraph/semantic/query"
)

// MySQL renders MySQL/MariaDB SQL. MySQL's default collation is
// case-insensitive already for most text columns, but to guarantee
// case-insensitivity regardless of column collation we fold both sides
// with LOWER(...), matching the common defensive idiom for multi-tenant
// string search. Granularity truncation uses DATE_FORMAT/arithmetic
// rather than a single truncation builtin. Placeholders are positional
// "?" — MySQL has no named/numbered bind syntax.
type MySQL struct{}

func (m *MySQL) Name() string { return "mysql" }

func (m *MySQL) Capabilities() Capabilities {
	return Capabilities{
		SupportsWindowFunctions: true,
		SupportsFrameClause:     true,
		SupportsCTE:             true,
		DateType:                "DATETIME",
		BooleanRepresentation:   BooleanInt,
	}
}

func (m *MySQL) BuildCount(expr string) string        { return fmt.Sprintf("COUNT(%s)", expr) }
func (m *MySQL) BuildCountDistinct(expr string) string { return fmt.Sprintf("COUNT(DISTINCT %s)", expr) }
func (m *MySQL) BuildSum(expr string) string            { return fmt.Sprintf("SUM(%s)", expr) }
func (m *MySQL) BuildAvg(expr string) string             { return fmt.Sprintf("AVG(%s)", expr) }
func (m *MySQL) BuildMin(expr string) string             { return fmt.Sprintf("MIN(%s)", expr) }
func (m *MySQL) BuildMax(expr string) string             { return fmt.Sprintf("MAX(%s)", expr) }

func (m *MySQL) BuildStringCondition(columnExpr string, op query.Operator, placeholder string) (string, error) {
	col := fmt.Sprintf("LOWER(%s)", columnExpr)
	val := fmt.Sprintf("LOWER(%s)", placeholder)
	switch op {
	case query.OpContains:
		return fmt.Sprintf("%s LIKE CONCAT('%%', %s, '%%')", col, val), nil
	case query.OpNotContains:
		return fmt.Sprintf("%s NOT LIKE CONCAT('%%', %s, '%%')", col, val), nil
	case query.OpStartsWith:
		return fmt.Sprintf("%s LIKE CONCAT(%s, '%%')", col, val), nil
	case query.OpEndsWith:
		return fmt.Sprintf("%s LIKE CONCAT('%%', %s)", col, val), nil
	default:
		return "", fmt.Errorf("dialect mysql: unsupported string operator %q", op)
	}
}

func (m *MySQL) BuildTimeDimension(granularity query.Granularity, expr string) (string, error) {
	switch granularity {
	case query.GranYear:
		return fmt.Sprintf("DATE_FORMAT(%s, '%%Y-01-01 00:00:00')", expr), nil
	case query.GranQuarter:
		return fmt.Sprintf(
			"DATE_SUB(DATE_FORMAT(%s, '%%Y-%%m-01 00:00:00'), INTERVAL (MONTH(%s) - 1) %% 3 MONTH)",
			expr, expr,
		), nil
	case query.GranMonth:
		return fmt.Sprintf("DATE_FORMAT(%s, '%%Y-%%m-01 00:00:00')", expr), nil
	case query.GranWeek:
		// MySQL weeks start Monday here (mode 3): truncate to that Monday.
		return fmt.Sprintf("DATE_SUB(DATE(%s), INTERVAL WEEKDAY(%s) DAY)", expr, expr), nil
	case query.GranDay:
		return fmt.Sprintf("DATE(%s)", expr), nil
	case query.GranHour:
		return fmt.Sprintf("DATE_FORMAT(%s, '%%Y-%%m-%%d %%H:00:00')", expr), nil
	case query.GranMinute:
		return fmt.Sprintf("DATE_FORMAT(%s, '%%Y-%%m-%%d %%H:%%i:00')", expr), nil
	case query.GranSecond:
		return fmt.Sprintf("DATE_FORMAT(%s, '%%Y-%%m-%%d %%H:%%i:%%s')", expr), nil
	default:
		return "", fmt.Errorf("dialect mysql: unknown granularity %q", granularity)
	}
}

func (m *MySQL) BuildWindow(fn string, arg string, cfg WindowSpec, resolver WindowResolver) (string, error) {
	return buildAnsiWindow(m, fn, arg, cfg, resolver)
}

func (m *MySQL) TrueLiteral() string  { return "1" }
func (m *MySQL) FalseLiteral() string { return "0" }

func (m *MySQL) Placeholder(n int) string { return "?" }

func (m *MySQL) QuoteIdent(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}
