package sql

import (
	"fmt"
	"sort"
	"strings"

	"github.com/tesseradmin/tessera"
	"github.com/tesseradmin/tessera/schema"
)

// Selector builds a SELECT statement for one model and implements the
// tessera.Query contract. It is a mutable builder: every Query-method
// returns the same receiver.
type Selector struct {
	model    *schema.Model
	registry schema.Registry
	table    string

	preds        []string
	args         []any
	orders       []string
	joins        []string
	joined       map[string]struct{}
	preloads     [][]string
	joinPreloads []string
	scopes       map[string]func(*Selector, tessera.User) *Selector
}

// NewSelector returns a selector for the given model. The table name
// derives from the model name by convention.
func NewSelector(model *schema.Model, registry schema.Registry) *Selector {
	return &Selector{
		model:    model,
		registry: registry,
		table:    schema.TableName(model.Name),
		joined:   make(map[string]struct{}),
	}
}

// Table overrides the derived table name.
func (s *Selector) Table(name string) *Selector {
	s.table = name
	return s
}

// WithScope registers a named custom scope, making the selector usable
// as the target of "custom" permission scopes.
func (s *Selector) WithScope(name string, fn func(*Selector, tessera.User) *Selector) *Selector {
	if s.scopes == nil {
		s.scopes = make(map[string]func(*Selector, tessera.User) *Selector)
	}
	s.scopes[name] = fn
	return s
}

// Scope implements tessera.NamedScoper.
func (s *Selector) Scope(name string, user tessera.User) (tessera.Query, bool) {
	fn, ok := s.scopes[name]
	if !ok {
		return nil, false
	}
	return fn(s, user), true
}

// WhereEQ implements tessera.Query.
func (s *Selector) WhereEQ(field string, value any) tessera.Query {
	s.preds = append(s.preds, fmt.Sprintf("%s = ?", s.column(field)))
	s.args = append(s.args, value)
	return s
}

// WhereIn implements tessera.Query. An empty value set matches no
// rows.
func (s *Selector) WhereIn(field string, values ...any) tessera.Query {
	if len(values) == 0 {
		s.preds = append(s.preds, "FALSE")
		return s
	}
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(values)), ", ")
	s.preds = append(s.preds, fmt.Sprintf("%s IN (%s)", s.column(field), marks))
	s.args = append(s.args, values...)
	return s
}

// Where implements tessera.Query, adding one equality predicate per
// condition key. Keys are applied in sorted order so the generated SQL
// is deterministic.
func (s *Selector) Where(condition map[string]any) tessera.Query {
	keys := make([]string, 0, len(condition))
	for k := range condition {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		s.WhereEQ(k, condition[k])
	}
	return s
}

// OrderBy implements tessera.Query. A dot-path orders by the joined
// association's column.
func (s *Selector) OrderBy(field string, desc bool) tessera.Query {
	term := s.column(field)
	if desc {
		term += " DESC"
	}
	s.orders = append(s.orders, term)
	return s
}

// Preload implements tessera.Query. The chain is fetched with separate
// statements by Load; the primary statement is unaffected.
func (s *Selector) Preload(path ...string) tessera.Query {
	if len(path) > 0 {
		s.preloads = append(s.preloads, path)
	}
	return s
}

// Join implements tessera.Query, forcing a join usable by WHERE and
// ORDER BY clauses. Unknown associations are ignored. The joined rows
// are never materialized.
func (s *Selector) Join(assoc string) tessera.Query {
	s.join(assoc)
	return s
}

// JoinPreload implements tessera.Query: a single join whose columns
// are selected, aliased, and materialized into the related record.
// Safe only for to-one associations, which cannot multiply rows.
func (s *Selector) JoinPreload(assoc string) tessera.Query {
	if s.join(assoc) {
		s.joinPreloads = append(s.joinPreloads, assoc)
	}
	return s
}

func (s *Selector) join(assoc string) bool {
	if _, ok := s.joined[assoc]; ok {
		return true
	}
	a, ok := s.model.Association(assoc)
	if !ok {
		return false
	}
	target := schema.TableName(a.Target)
	fk := s.model.ForeignKeyOf(a)
	var on string
	if a.ToMany() {
		on = fmt.Sprintf("%s.%s = %s.%s", quote(target), quote(fk), quote(s.table), quote("id"))
	} else {
		on = fmt.Sprintf("%s.%s = %s.%s", quote(target), quote("id"), quote(s.table), quote(fk))
	}
	s.joins = append(s.joins, fmt.Sprintf("LEFT JOIN %s ON %s", quote(target), on))
	s.joined[assoc] = struct{}{}
	return true
}

// Preloads returns the collected preload chains.
func (s *Selector) Preloads() [][]string { return s.preloads }

// JoinPreloads returns the associations materialized through a join.
func (s *Selector) JoinPreloads() []string { return s.joinPreloads }

// Model returns the model the selector was built for.
func (s *Selector) Model() *schema.Model { return s.model }

// Query returns the SQL statement and its arguments.
func (s *Selector) Query() (string, []any) {
	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(strings.Join(s.selectColumns(), ", "))
	b.WriteString(" FROM ")
	b.WriteString(quote(s.table))
	for _, j := range s.joins {
		b.WriteString(" ")
		b.WriteString(j)
	}
	if len(s.preds) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(s.preds, " AND "))
	}
	if len(s.orders) > 0 {
		b.WriteString(" ORDER BY ")
		b.WriteString(strings.Join(s.orders, ", "))
	}
	return b.String(), s.args
}

// selectColumns lists the base table's columns plus, for every
// join-preloaded association, the target's columns aliased with the
// association prefix.
func (s *Selector) selectColumns() []string {
	var cols []string
	for _, c := range modelColumns(s.model) {
		cols = append(cols, fmt.Sprintf("%s.%s", quote(s.table), quote(c)))
	}
	for _, assoc := range s.joinPreloads {
		a, ok := s.model.Association(assoc)
		if !ok {
			continue
		}
		target, err := s.registry.Model(a.Target)
		if err != nil {
			continue
		}
		table := schema.TableName(a.Target)
		for _, c := range modelColumns(target) {
			cols = append(cols, fmt.Sprintf("%s.%s AS %s", quote(table), quote(c), quote(assoc+"__"+c)))
		}
	}
	return cols
}

// column renders a field reference, routing dot-paths to the joined
// association's table.
func (s *Selector) column(field string) string {
	if !strings.Contains(field, ".") {
		return fmt.Sprintf("%s.%s", quote(s.table), quote(field))
	}
	parts := strings.SplitN(field, ".", 2)
	if a, ok := s.model.Association(parts[0]); ok {
		return fmt.Sprintf("%s.%s", quote(schema.TableName(a.Target)), quote(parts[1]))
	}
	return fmt.Sprintf("%s.%s", quote(parts[0]), quote(parts[1]))
}

// modelColumns returns the physical columns of a model: the id, its
// plain fields, and its belongs-to foreign keys, deduplicated.
func modelColumns(m *schema.Model) []string {
	seen := map[string]struct{}{"id": {}}
	cols := []string{"id"}
	for _, c := range m.Fields {
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		cols = append(cols, c)
	}
	for _, c := range m.ForeignKeyColumns() {
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		cols = append(cols, c)
	}
	return cols
}

func quote(ident string) string {
	return `"` + ident + `"`
}

var (
	_ tessera.Query       = (*Selector)(nil)
	_ tessera.NamedScoper = (*Selector)(nil)
)
