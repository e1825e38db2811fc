package store

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"time"
)

// timestampLayout is fixed-width so lexical order in SQLite equals chronological order.
const timestampLayout = "2006-01-02T15:04:05.000000000Z"

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func parseTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(timestampLayout, s)
	if err != nil {
		// Rows written by other tools may carry plain RFC 3339.
		return time.Parse(time.RFC3339Nano, s)
	}
	return t, nil
}

// decoder turns stored JSON blobs back into Go values.
// Malformed or missing data decodes to an empty value; the failure is logged, never returned.
type decoder struct {
	log *slog.Logger
}

func (d decoder) strings(table, id, column string, raw sql.NullString) []string {
	if !raw.Valid || raw.String == "" {
		return []string{}
	}
	var out []string
	if err := json.Unmarshal([]byte(raw.String), &out); err != nil {
		d.warn(table, id, column, err)
		return []string{}
	}
	if out == nil {
		return []string{}
	}
	return out
}

func (d decoder) stringMap(table, id, column string, raw sql.NullString) map[string]string {
	if !raw.Valid || raw.String == "" {
		return map[string]string{}
	}
	var out map[string]string
	if err := json.Unmarshal([]byte(raw.String), &out); err != nil {
		d.warn(table, id, column, err)
		return map[string]string{}
	}
	if out == nil {
		return map[string]string{}
	}
	return out
}

func (d decoder) warn(table, id, column string, err error) {
	d.log.Warn("malformed stored field, using empty value",
		"table", table, "id", id, "column", column, "err", err)
}

func encodeJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func encodeStrings(in []string) (string, error) {
	if in == nil {
		in = []string{}
	}
	return encodeJSON(in)
}

func encodeStringMap(in map[string]string) (string, error) {
	if in == nil {
		in = map[string]string{}
	}
	return encodeJSON(in)
}

func nullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// optional maps a nil pointer to SQL NULL.
func optional(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}
