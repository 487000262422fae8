package dialect

import (
	"fmt"
	"strings"

	"github.com/cubegraph/semantic/query"
)

// Postgres renders PostgreSQL SQL: ILIKE for case-insensitive string
// matching, DATE_TRUNC for granularity truncation, $N placeholders, and
// full window-function + CTE support.
type Postgres struct{}

func (p *Postgres) Name() string { return "postgres" }

func (p *Postgres) Capabilities() Capabilities {
	return Capabilities{
		SupportsWindowFunctions: true,
		SupportsFrameClause:     true,
		SupportsCTE:             true,
		DateType:                "timestamptz",
		BooleanRepresentation:   BooleanNative,
	}
}

func (p *Postgres) BuildCount(expr string) string         { return fmt.Sprintf("COUNT(%s)", expr) }
func (p *Postgres) BuildCountDistinct(expr string) string  { return fmt.Sprintf("COUNT(DISTINCT %s)", expr) }
func (p *Postgres) BuildSum(expr string) string            { return fmt.Sprintf("SUM(%s)", expr) }
func (p *Postgres) BuildAvg(expr string) string             { return fmt.Sprintf("AVG(%s)", expr) }
func (p *Postgres) BuildMin(expr string) string             { return fmt.Sprintf("MIN(%s)", expr) }
func (p *Postgres) BuildMax(expr string) string             { return fmt.Sprintf("MAX(%s)", expr) }

func (p *Postgres) BuildStringCondition(columnExpr string, op query.Operator, placeholder string) (string, error) {
	switch op {
	case query.OpContains:
		return fmt.Sprintf("%s ILIKE '%%' || %s || '%%'", columnExpr, placeholder), nil
	case query.OpNotContains:
		return fmt.Sprintf("%s NOT ILIKE '%%' || %s || '%%'", columnExpr, placeholder), nil
	case query.OpStartsWith:
		return fmt.Sprintf("%s ILIKE %s || '%%'", columnExpr, placeholder), nil
	case query.OpEndsWith:
		return fmt.Sprintf("%s ILIKE '%%' || %s", columnExpr, placeholder), nil
	default:
		return "", fmt.Errorf("dialect postgres: unsupported string operator %q", op)
	}
}

func (p *Postgres) BuildTimeDimension(granularity query.Granularity, expr string) (string, error) {
	unit, err := postgresTruncUnit(granularity)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("DATE_TRUNC('%s', %s)", unit, expr), nil
}

func postgresTruncUnit(g query.Granularity) (string, error) {
	switch g {
	case query.GranYear:
		return "year", nil
	case query.GranQuarter:
		return "quarter", nil
	case query.GranMonth:
		return "month", nil
	case query.GranWeek:
		return "week", nil
	case query.GranDay:
		return "day", nil
	case query.GranHour:
		return "hour", nil
	case query.GranMinute:
		return "minute", nil
	case query.GranSecond:
		return "second", nil
	default:
		return "", fmt.Errorf("dialect postgres: unknown granularity %q", g)
	}
}

func (p *Postgres) BuildWindow(fn string, arg string, cfg WindowSpec, resolver WindowResolver) (string, error) {
	return buildAnsiWindow(p, fn, arg, cfg, resolver)
}

func (p *Postgres) TrueLiteral() string  { return "TRUE" }
func (p *Postgres) FalseLiteral() string { return "FALSE" }

func (p *Postgres) Placeholder(n int) string { return fmt.Sprintf("$%d", n) }

func (p *Postgres) QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// buildAnsiWindow is shared by dialects whose window-function syntax is
// plain ANSI SQL (Postgres; MySQL 8+ uses the same shape).
func buildAnsiWindow(d Dialect, fn string, arg string, cfg WindowSpec, resolver WindowResolver) (string, error) {
	var b strings.Builder
	b.WriteString(fn)
	b.WriteByte('(')
	b.WriteString(arg)
	b.WriteString(") OVER (")

	wrote := false
	if len(cfg.PartitionBy) > 0 {
		cols := make([]string, 0, len(cfg.PartitionBy))
		for _, f := range cfg.PartitionBy {
			col, err := resolver.ResolveField(f)
			if err != nil {
				return "", err
			}
			cols = append(cols, col)
		}
		b.WriteString("PARTITION BY ")
		b.WriteString(strings.Join(cols, ", "))
		wrote = true
	}
	if len(cfg.OrderBy) > 0 {
		if wrote {
			b.WriteByte(' ')
		}
		parts := make([]string, 0, len(cfg.OrderBy))
		for _, o := range cfg.OrderBy {
			col, err := resolver.ResolveField(o.Field)
			if err != nil {
				return "", err
			}
			dir := "ASC"
			if strings.EqualFold(o.Direction, "desc") {
				dir = "DESC"
			}
			parts = append(parts, fmt.Sprintf("%s %s", col, dir))
		}
		b.WriteString("ORDER BY ")
		b.WriteString(strings.Join(parts, ", "))
		wrote = true
	}
	if cfg.HasFrame {
		if wrote {
			b.WriteByte(' ')
		}
		frame, err := renderFrame(cfg)
		if err != nil {
			return "", err
		}
		b.WriteString(frame)
	}
	b.WriteByte(')')
	return b.String(), nil
}

func renderFrame(cfg WindowSpec) (string, error) {
	unit := strings.ToUpper(cfg.FrameType)
	if unit != "ROWS" && unit != "RANGE" {
		return "", fmt.Errorf("dialect: unknown frame type %q", cfg.FrameType)
	}
	start, err := renderBound(cfg.FrameStart, true)
	if err != nil {
		return "", err
	}
	end, err := renderBound(cfg.FrameEnd, false)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s BETWEEN %s AND %s", unit, start, end), nil
}

func renderBound(b WindowBound, isStart bool) (string, error) {
	switch b.Kind {
	case "unbounded":
		if isStart {
			return "UNBOUNDED PRECEDING", nil
		}
		return "UNBOUNDED FOLLOWING", nil
	case "current":
		return "CURRENT ROW", nil
	case "offset":
		if b.Offset == 0 {
			return "CURRENT ROW", nil
		}
		if isStart {
			return fmt.Sprintf("%d PRECEDING", abs(b.Offset)), nil
		}
		return fmt.Sprintf("%d FOLLOWING", abs(b.Offset)), nil
	default:
		return "", fmt.Errorf("dialect: unknown frame bound kind %q", b.Kind)
	}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
