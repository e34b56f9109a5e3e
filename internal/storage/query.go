package storage

import (
	"fmt"
	"strings"
	"time"
)

// whereBuilder accumulates AND-ed SQL conditions with their bind values.
// Conditions are always built from constant SQL fragments; user input only
// ever travels through args.
type whereBuilder struct {
	clauses []string
	args    []any
}

func (w *whereBuilder) add(clause string, args ...any) {
	if n := strings.Count(clause, "?"); n != len(args) {
		panic(fmt.Sprintf("storage: clause %q has %d placeholders but %d args", clause, n, len(args)))
	}
	w.clauses = append(w.clauses, clause)
	w.args = append(w.args, args...)
}

// where renders the conditions as a WHERE clause, or "" when there are none.
func (w *whereBuilder) where() string {
	if len(w.clauses) == 0 {
		return ""
	}
	return "WHERE " + strings.Join(w.clauses, " AND ")
}

// values returns a copy of the bind values so callers can append to it.
func (w *whereBuilder) values() []any {
	out := make([]any, len(w.args))
	copy(out, w.args)
	return out
}

func (w *whereBuilder) clone() *whereBuilder {
	return &whereBuilder{
		clauses: append([]string(nil), w.clauses...),
		args:    w.values(),
	}
}

// applyRange adds the shared time-range and domain filters on v.visited_at
// and u.domain.
func (w *whereBuilder) applyRange(start, end time.Time, domain string) {
	if !start.IsZero() {
		w.add("v.visited_at >= ?", start.Unix())
	}
	if !end.IsZero() {
		w.add("v.visited_at <= ?", end.Unix())
	}
	if domain != "" {
		w.add("u.domain = ?", domain)
	}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// likePattern turns free text into a substring LIKE pattern matched with
// ESCAPE '\'.
func likePattern(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}

// limitClause renders LIMIT/OFFSET. Zero means not supplied; an offset on
// its own uses LIMIT -1, which SQLite reads as unbounded.
func limitClause(limit, offset int) (string, []any) {
	switch {
	case limit > 0 && offset > 0:
		return "LIMIT ? OFFSET ?", []any{limit, offset}
	case limit > 0:
		return "LIMIT ?", []any{limit}
	case offset > 0:
		return "LIMIT -1 OFFSET ?", []any{offset}
	default:
		return "", nil
	}
}
