package postgres

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/vikram-trellis/corgi-hack/internal/core/domain"
)

// whereBuilder accumulates AND-ed predicates with positional placeholders.
type whereBuilder struct {
	clauses []string
	args    []any
}

func (w *whereBuilder) next(v any) string {
	w.args = append(w.args, v)
	return fmt.Sprintf("$%d", len(w.args))
}

func (w *whereBuilder) eq(column string, v string) {
	if v == "" {
		return
	}
	w.clauses = append(w.clauses, column+" = "+w.next(v))
}

func (w *whereBuilder) dateRange(column string, from, to *domain.Date) {
	if from != nil && !from.IsZero() {
		w.clauses = append(w.clauses, column+" >= "+w.next(from.Time))
	}
	if to != nil && !to.IsZero() {
		w.clauses = append(w.clauses, column+" <= "+w.next(to.Time))
	}
}

// nameSearch matches a case-insensitive substring of first or last name.
func (w *whereBuilder) nameSearch(term string) {
	term = strings.TrimSpace(term)
	if term == "" {
		return
	}
	p := w.next("%" + escapeLike(term) + "%")
	w.clauses = append(w.clauses, fmt.Sprintf("(first_name ILIKE %s OR last_name ILIKE %s)", p, p))
}

func (w *whereBuilder) sql() string {
	if len(w.clauses) == 0 {
		return ""
	}
	return "WHERE " + strings.Join(w.clauses, " AND ")
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// setClause renders the assignments of changes plus updated_at, numbering placeholders from
// start. It returns the clause and its arguments.
func setClause(changes domain.Changes, start int, now time.Time) (string, []any) {
	parts := make([]string, 0, len(changes)+1)
	args := make([]any, 0, len(changes)+1)
	for _, ch := range changes {
		args = append(args, ch.Value)
		parts = append(parts, fmt.Sprintf("%s = $%d", ch.Column, start+len(args)-1))
	}
	args = append(args, now)
	parts = append(parts, fmt.Sprintf("updated_at = $%d", start+len(args)-1))
	return strings.Join(parts, ", "), args
}

type scanner interface {
	Scan(dest ...any) error
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func nullBool(b *bool) sql.NullBool {
	if b == nil {
		return sql.NullBool{}
	}
	return sql.NullBool{Bool: *b, Valid: true}
}

func nullDate(d *domain.Date) sql.NullTime {
	if d == nil || d.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: d.Time, Valid: true}
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func boolPtr(v sql.NullBool) *bool {
	if !v.Valid {
		return nil
	}
	b := v.Bool
	return &b
}

func datePtr(v sql.NullTime) *domain.Date {
	if !v.Valid {
		return nil
	}
	d := domain.DateOf(v.Time)
	return &d
}

func timePtr(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}

func marshalJSON(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal json column: %w", err)
	}
	return raw, nil
}

// marshalMetadata stores an absent map as NULL.
func marshalMetadata(m map[string]any) ([]byte, error) {
	if m == nil {
		return nil, nil
	}
	return marshalJSON(m)
}

func unmarshalList(raw []byte) ([]string, error) {
	out := []string{}
	if len(raw) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("unmarshal list column: %w", err)
	}
	if out == nil {
		out = []string{}
	}
	return out, nil
}

func unmarshalMetadata(raw []byte) (map[string]any, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("unmarshal metadata column: %w", err)
	}
	return out, nil
}

// placeholders returns "$from, ..., $from+n-1".
func placeholders(from, n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("$%d", from+i)
	}
	return strings.Join(parts, ", ")
}
