package query

import (
	"strings"
	"time"
)

// Predicate is a single filter condition contributed to the compiled
// query: a SQL fragment referencing the events table as "e", plus its
// bound arguments. Predicates are ANDed together.
type Predicate struct {
	SQL  string
	Args []any
}

// PredicateExtender lets external collaborators narrow or rewrite the
// compiled predicate list before execution (capability-based redaction,
// for example). Extenders run in registration order and must return a
// well-formed list; a nil return or a predicate with empty SQL is a
// contract violation and fails the query. Panics propagate.
type PredicateExtender func(preds []Predicate, f Filter) []Predicate

// compile translates a normalized Filter into the predicate list for
// the events table. Occasions mode ignores the generic filters and
// predicates on the occasion run alone.
func compile(f Filter, now time.Time) ([]Predicate, error) {
	if o := f.Occasions; o != nil {
		return []Predicate{
			{SQL: "e.occasions_id = ?", Args: []any{o.OccasionsID}},
			{SQL: "e.id < ?", Args: []any{o.LogRowID}},
		}, nil
	}

	var preds []Predicate

	if f.SinceID > 0 {
		preds = append(preds, Predicate{SQL: "e.id > ?", Args: []any{f.SinceID}})
	}

	from, to, err := f.dateBounds(now)
	if err != nil {
		return nil, err
	}
	if !from.IsZero() {
		preds = append(preds, Predicate{
			SQL:  "e.date >= ?",
			Args: []any{from.UTC().Format(time.RFC3339)},
		})
	}
	if !to.IsZero() {
		preds = append(preds, Predicate{
			SQL:  "e.date <= ?",
			Args: []any{to.UTC().Format(time.RFC3339)},
		})
	}

	// Every search word must match the message or some context value.
	for _, word := range strings.Fields(f.Search) {
		pattern := "%" + escapeLike(word) + "%"
		preds = append(preds, Predicate{
			SQL: `(e.message LIKE ? ESCAPE '\' OR EXISTS (
				SELECT 1 FROM event_contexts c
				WHERE c.event_id = e.id AND c.value LIKE ? ESCAPE '\'))`,
			Args: []any{pattern, pattern},
		})
	}

	if len(f.Levels) > 0 {
		args := make([]any, len(f.Levels))
		for i, l := range f.Levels {
			args[i] = string(l)
		}
		preds = append(preds, Predicate{
			SQL:  "e.level IN (" + placeholders(len(args)) + ")",
			Args: args,
		})
	}

	if len(f.Loggers) > 0 {
		args := make([]any, len(f.Loggers))
		for i, l := range f.Loggers {
			args[i] = l
		}
		preds = append(preds, Predicate{
			SQL:  "e.logger IN (" + placeholders(len(args)) + ")",
			Args: args,
		})
	}

	if len(f.UserIDs) > 0 {
		args := make([]any, len(f.UserIDs))
		for i, id := range f.UserIDs {
			args[i] = id
		}
		preds = append(preds, Predicate{
			SQL:  "e.initiator_user_id IN (" + placeholders(len(args)) + ")",
			Args: args,
		})
	}

	return preds, nil
}

// applyExtenders runs each registered extender over the predicate list,
// validating the returned shape.
func applyExtenders(preds []Predicate, f Filter, extenders []PredicateExtender) ([]Predicate, error) {
	for _, ext := range extenders {
		out := ext(preds, f)
		if out == nil {
			return nil, invalidHook("extender returned nil predicate list")
		}
		for _, p := range out {
			if strings.TrimSpace(p.SQL) == "" {
				return nil, invalidHook("extender returned predicate with empty SQL")
			}
		}
		preds = out
	}
	return preds, nil
}

// whereClause joins predicates into a WHERE clause and flattens their
// arguments. Empty predicate lists produce an empty clause.
func whereClause(preds []Predicate) (string, []any) {
	if len(preds) == 0 {
		return "", nil
	}
	clauses := make([]string, len(preds))
	var args []any
	for i, p := range preds {
		clauses[i] = p.SQL
		args = append(args, p.Args...)
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// placeholders returns n comma-separated "?" marks.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// escapeLike escapes LIKE wildcards in a user-supplied search word so
// it matches as a literal substring.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "%", `\%`)
	s = strings.ReplaceAll(s, "_", `\_`)
	return s
}

func invalidHook(detail string) error {
	return &hookError{detail: detail}
}

// hookError attaches detail to ErrHookContract.
type hookError struct {
	detail string
}

func (e *hookError) Error() string {
	return ErrHookContract.Error() + ": " + e.detail
}

func (e *hookError) Unwrap() error {
	return ErrHookContract
}
