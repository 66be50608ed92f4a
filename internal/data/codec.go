package data

import (
	"database/sql"
	"encoding/json"

	"nominatim-indexer/internal/biz"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"
)

func encodeGeometry(g orb.Geometry) string {
	return wkt.MarshalString(g)
}

func decodeGeometry(s string) (orb.Geometry, error) {
	g, err := wkt.Unmarshal(s)
	if err != nil {
		return nil, biz.ErrInvalidGeometry.WithCause(err)
	}
	return g, nil
}

func encodeTags(m map[string]string) any {
	if len(m) == 0 {
		return nil
	}
	b, _ := json.Marshal(m)
	return string(b)
}

func decodeTags(s sql.NullString) map[string]string {
	if !s.Valid || s.String == "" {
		return nil
	}
	m := map[string]string{}
	if err := json.Unmarshal([]byte(s.String), &m); err != nil {
		return nil
	}
	return m
}

func encodeTokens(tokens []int64) string {
	if tokens == nil {
		tokens = []int64{}
	}
	b, _ := json.Marshal(tokens)
	return string(b)
}

func decodeTokens(s string) []int64 {
	var out []int64
	_ = json.Unmarshal([]byte(s), &out)
	return out
}

// nullID 0 写为 NULL。
func nullID(id int64) any {
	if id == 0 {
		return nil
	}
	return id
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func chunks[T any](items []T, size int) [][]T {
	var out [][]T
	for len(items) > size {
		out = append(out, items[:size])
		items = items[size:]
	}
	if len(items) > 0 {
		out = append(out, items)
	}
	return out
}

func anySlice(ids []int64) []any {
	out := make([]any, len(ids))
	for i, id := range ids {
		out[i] = id
	}
	return out
}
