package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/cubegraph/semantic/executor"
)

// formatRows renders rows as a markdown table, grounded on the teacher's
// TableFormatter (datalog/executor/table_formatter.go) — same renderer,
// same "_N rows_" trailer, generalized from a Datalog Tuple/Symbol
// column pair to a result-set keyed by qualified "Cube.field" names.
func formatRows(columns []string, rows []executor.Row) string {
	if len(rows) == 0 {
		return fmt.Sprintf("_Columns: %v_\n\n_No rows_", columns)
	}

	var b strings.Builder

	alignment := make([]tw.Align, len(columns))
	for i := range alignment {
		alignment[i] = tw.AlignNone
	}

	table := tablewriter.NewTable(&b,
		tablewriter.WithRenderer(renderer.NewMarkdown()),
		tablewriter.WithAlignment(alignment),
		tablewriter.WithHeaderAutoFormat(tw.Off),
	)
	table.Header(columns)

	for _, r := range rows {
		row := make([]string, len(columns))
		for i, c := range columns {
			row[i] = formatValue(r[c])
		}
		table.Append(row)
	}
	table.Render()

	b.WriteString(fmt.Sprintf("\n_%d rows_\n", len(rows)))
	return b.String()
}

// columnsFromQuery returns the qualified field names a query selects,
// in select-list order (measures, then dimensions, then time dimensions).
func columnsFromQuery(measures, dimensions, timeDimensions []string) []string {
	cols := make([]string, 0, len(measures)+len(dimensions)+len(timeDimensions))
	cols = append(cols, measures...)
	cols = append(cols, dimensions...)
	cols = append(cols, timeDimensions...)
	return cols
}

func formatValue(val any) string {
	if val == nil {
		return "nil"
	}
	switch v := val.(type) {
	case string:
		return v
	case int:
		return fmt.Sprintf("%d", v)
	case int64:
		return fmt.Sprintf("%d", v)
	case float64:
		return fmt.Sprintf("%.2f", v)
	case bool:
		return fmt.Sprintf("%t", v)
	case time.Time:
		return v.Format("2006-01-02 15:04:05")
	default:
		return fmt.Sprintf("%v", v)
	}
}
