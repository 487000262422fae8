package query

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// UnmarshalJSON parses SemanticQuery off the wire. It is hand-written
// (rather than a plain struct tag decode) only for the Order field: a
// JSON object's key order is significant here (spec §4.5 step 9) and
// Go's map type does not preserve it, so Order is decoded by walking
// the raw object tokens in sequence instead of through map[string]Direction.
func (q *SemanticQuery) UnmarshalJSON(data []byte) error {
	type alias SemanticQuery
	var raw struct {
		alias
		Order json.RawMessage `json:"order,omitempty"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*q = SemanticQuery(raw.alias)
	q.Order = nil

	if len(raw.Order) == 0 || bytes.Equal(bytes.TrimSpace(raw.Order), []byte("null")) {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw.Order))
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("query: decoding order: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("query: order must be a JSON object")
	}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("query: decoding order key: %w", err)
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("query: order key must be a string")
		}
		var dir Direction
		if err := dec.Decode(&dir); err != nil {
			return fmt.Errorf("query: decoding order value for %q: %w", key, err)
		}
		q.Order = append(q.Order, OrderEntry{Field: key, Direction: dir})
	}
	return nil
}

// MarshalJSON re-emits Order as a JSON object, preserving the slice's
// order in the resulting object's key order (Go's encoding/json writes
// object keys in the order they are appended to the buffer, so this
// round-trips what UnmarshalJSON produced).
func (q SemanticQuery) MarshalJSON() ([]byte, error) {
	type alias SemanticQuery
	a := alias(q)
	a.Order = nil

	var buf bytes.Buffer
	buf.WriteByte('{')
	first := true
	writeField := func(name string, v any, omitEmpty bool) error {
		if omitEmpty && isEmptyValue(v) {
			return nil
		}
		b, err := json.Marshal(v)
		if err != nil {
			return err
		}
		if !first {
			buf.WriteByte(',')
		}
		first = false
		keyB, _ := json.Marshal(name)
		buf.Write(keyB)
		buf.WriteByte(':')
		buf.Write(b)
		return nil
	}

	if err := writeField("measures", a.Measures, true); err != nil {
		return nil, err
	}
	if err := writeField("dimensions", a.Dimensions, true); err != nil {
		return nil, err
	}
	if err := writeField("timeDimensions", a.TimeDimensions, true); err != nil {
		return nil, err
	}
	if err := writeField("filters", a.Filters, true); err != nil {
		return nil, err
	}
	if len(q.Order) > 0 {
		if !first {
			buf.WriteByte(',')
		}
		first = false
		buf.WriteString(`"order":{`)
		for i, e := range q.Order {
			if i > 0 {
				buf.WriteByte(',')
			}
			keyB, _ := json.Marshal(e.Field)
			buf.Write(keyB)
			buf.WriteByte(':')
			valB, _ := json.Marshal(e.Direction)
			buf.Write(valB)
		}
		buf.WriteByte('}')
	}
	if a.Limit != nil {
		if err := writeField("limit", a.Limit, false); err != nil {
			return nil, err
		}
	}
	if a.Offset != nil {
		if err := writeField("offset", a.Offset, false); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func isEmptyValue(v any) bool {
	switch t := v.(type) {
	case []string:
		return len(t) == 0
	case []TimeDimension:
		return len(t) == 0
	case []Filter:
		return len(t) == 0
	default:
		return v == nil
	}
}
