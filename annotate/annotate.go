// Package annotate converts driver rows into the compiler's typed
// QueryResult: row data coerced to proper Go types, plus per-field
// metadata describing every measure, dimension and time dimension the
// query touched (spec §3.9, §4.8 step 6-7, §6.3).
package annotate

import (
	"strconv"

	"github.com/google/uuid"

	"github.com/cubegraph/semantic/executor"
	"github.com/cubegraph/semantic/model"
	"github.com/cubegraph/semantic/query"
)

// FieldAnnotation is the per-field metadata entry the wire format exposes
// for a measure or dimension.
type FieldAnnotation struct {
	Title  string `json:"title"`
	Type   string `json:"type"`
	Format string `json:"format,omitempty"`
}

// TimeDimensionAnnotation additionally carries the requested granularity.
type TimeDimensionAnnotation struct {
	Title       string `json:"title"`
	Type        string `json:"type"`
	Granularity string `json:"granularity,omitempty"`
}

// PeriodsAnnotation is populated only for a compareDateRange query (spec
// §4.9 step 6).
type PeriodsAnnotation struct {
	Ranges [][2]string `json:"ranges"`
	Labels []string    `json:"labels"`
}

// Annotation is the annotation sub-object of QueryResult.
type Annotation struct {
	Measures       map[string]FieldAnnotation         `json:"measures"`
	Dimensions     map[string]FieldAnnotation         `json:"dimensions"`
	TimeDimensions map[string]TimeDimensionAnnotation `json:"timeDimensions"`
	Periods        *PeriodsAnnotation                 `json:"periods,omitempty"`
}

// QueryResult is the compiler's output (spec §3.9, §6.3).
type QueryResult struct {
	QueryType       string               `json:"queryType"`
	Data            []executor.Row       `json:"data"`
	Annotation      Annotation           `json:"annotation"`
	Query           *query.SemanticQuery `json:"query"`
	RequestID       string               `json:"requestId"`
	LastRefreshTime string               `json:"lastRefreshTime"`
}

// newRequestID is a package-level hook so tests can stub out uuid
// generation for deterministic assertions.
var newRequestID = func() string { return uuid.NewString() }

// Build assembles a QueryResult from raw executor rows. lastRefreshTime
// is the already-formatted (RFC3339) instant to stamp as LastRefreshTime,
// threaded in by the caller rather than read from time.Now() here so
// compiler tests can assert on an exact value.
func Build(reg *model.Registry, q *query.SemanticQuery, rows []executor.Row, queryType, lastRefreshTime string) (*QueryResult, error) {
	data := make([]executor.Row, len(rows))
	for i, r := range rows {
		data[i] = coerceNumericStrings(reg, q, r)
	}

	return &QueryResult{
		QueryType:       queryType,
		Data:            data,
		Annotation:      buildAnnotation(reg, q),
		Query:           q,
		RequestID:       newRequestID(),
		LastRefreshTime: lastRefreshTime,
	}, nil
}

// coerceNumericStrings converts any measure column whose driver-returned
// value is a numeric string into a proper number (spec §4.8 step 6:
// "PostgreSQL returns count/sum as strings"). Dimension and time-dimension
// columns are left untouched — only fields this query requested as
// measures are coerced, since a string dimension value (e.g. a
// department name) must never be misinterpreted as numeric.
func coerceNumericStrings(reg *model.Registry, q *query.SemanticQuery, row executor.Row) executor.Row {
	out := make(executor.Row, len(row))
	for k, v := range row {
		out[k] = v
	}
	for _, m := range q.Measures {
		s, ok := out[m].(string)
		if !ok {
			continue
		}
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			out[m] = n
			continue
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			out[m] = f
		}
	}
	return out
}

func buildAnnotation(reg *model.Registry, q *query.SemanticQuery) Annotation {
	ann := Annotation{
		Measures:       map[string]FieldAnnotation{},
		Dimensions:     map[string]FieldAnnotation{},
		TimeDimensions: map[string]TimeDimensionAnnotation{},
	}

	for _, name := range q.Measures {
		cubeName, field, ok := query.SplitQualified(name)
		if !ok {
			continue
		}
		cube := reg.Get(cubeName)
		if cube == nil {
			continue
		}
		m, ok := cube.Measure(field)
		if !ok {
			continue
		}
		ann.Measures[name] = FieldAnnotation{
			Title:  displayTitle(m.Title, field),
			Type:   string(m.AggregationType),
			Format: m.Format,
		}
	}

	for _, name := range q.Dimensions {
		cubeName, field, ok := query.SplitQualified(name)
		if !ok {
			continue
		}
		cube := reg.Get(cubeName)
		if cube == nil {
			continue
		}
		d, ok := cube.Dimension(field)
		if !ok {
			continue
		}
		ann.Dimensions[name] = FieldAnnotation{
			Title:  displayTitle(d.Title, field),
			Type:   string(d.Type),
			Format: d.Format,
		}
	}

	for _, td := range q.TimeDimensions {
		cubeName, field, ok := query.SplitQualified(td.Dimension)
		if !ok {
			continue
		}
		cube := reg.Get(cubeName)
		if cube == nil {
			continue
		}
		d, ok := cube.Dimension(field)
		if !ok {
			continue
		}
		ann.TimeDimensions[td.Dimension] = TimeDimensionAnnotation{
			Title:       displayTitle(d.Title, field),
			Type:        string(d.Type),
			Granularity: string(td.Granularity),
		}
	}

	return ann
}

func displayTitle(title, fallback string) string {
	if title != "" {
		return title
	}
	return fallback
}
