package sql

import (
	"context"
	"fmt"
	"strings"

	"github.com/tesseradmin/tessera"
	"github.com/tesseradmin/tessera/dialect"
	"github.com/tesseradmin/tessera/schema"
)

// Load executes the selector's primary statement and its preload
// chains, returning hydrated records. Join-preloaded associations are
// materialized from the aliased columns of the primary statement;
// every preload chain runs as a separate IN-batched statement per
// level, so the primary row set is never multiplied.
func Load(ctx context.Context, drv dialect.ExecQuerier, s *Selector) ([]*tessera.MapRecord, error) {
	records, err := queryRecords(ctx, drv, s)
	if err != nil {
		return nil, err
	}
	for _, chain := range s.Preloads() {
		if err := preloadChain(ctx, drv, s.Model(), s.registry, records, chain); err != nil {
			return nil, err
		}
	}
	return records, nil
}

func queryRecords(ctx context.Context, drv dialect.ExecQuerier, s *Selector) ([]*tessera.MapRecord, error) {
	query, args := s.Query()
	var rows Rows
	if err := drv.Query(ctx, query, args, &rows); err != nil {
		return nil, err
	}
	defer rows.Close()
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var records []*tessera.MapRecord
	for rows.Next() {
		values := make([]any, len(columns))
		for i := range values {
			values[i] = new(any)
		}
		if err := rows.Scan(values...); err != nil {
			return nil, err
		}
		attrs := make(map[string]any, len(columns))
		for i, col := range columns {
			attrs[col] = normalize(*values[i].(*any))
		}
		records = append(records, hydrate(attrs, s.JoinPreloads()))
	}
	return records, rows.Err()
}

// hydrate splits association-prefixed columns out of the scanned row
// into nested to-one records. A joined row whose id is NULL marks an
// absent association and hydrates no record.
func hydrate(attrs map[string]any, joinPreloads []string) *tessera.MapRecord {
	rec := &tessera.MapRecord{Attrs: attrs}
	for _, assoc := range joinPreloads {
		prefix := assoc + "__"
		nested := make(map[string]any)
		for col, v := range attrs {
			if strings.HasPrefix(col, prefix) {
				nested[strings.TrimPrefix(col, prefix)] = v
				delete(attrs, col)
			}
		}
		if nested["id"] == nil {
			continue
		}
		if rec.One == nil {
			rec.One = make(map[string]tessera.Record)
		}
		rec.One[assoc] = &tessera.MapRecord{Attrs: nested}
	}
	return rec
}

// preloadChain loads one association level of the chain for the given
// parent records, then recurses into the loaded records for the
// remainder of the chain.
func preloadChain(ctx context.Context, drv dialect.ExecQuerier, model *schema.Model, registry schema.Registry, parents []*tessera.MapRecord, chain []string) error {
	if len(parents) == 0 || len(chain) == 0 {
		return nil
	}
	assoc, ok := model.Association(chain[0])
	if !ok {
		return nil
	}
	target, err := registry.Model(assoc.Target)
	if err != nil {
		return err
	}
	fk := model.ForeignKeyOf(assoc)
	var loaded []*tessera.MapRecord
	if assoc.ToMany() {
		loaded, err = preloadMany(ctx, drv, registry, assoc.Name, fk, target, parents)
	} else {
		loaded, err = preloadOne(ctx, drv, registry, assoc.Name, fk, target, parents)
	}
	if err != nil {
		return err
	}
	return preloadChain(ctx, drv, target, registry, loaded, chain[1:])
}

// preloadOne batches a to-one association: one statement selecting the
// targets whose ids appear as foreign keys on the parents.
func preloadOne(ctx context.Context, drv dialect.ExecQuerier, registry schema.Registry, assoc, fk string, target *schema.Model, parents []*tessera.MapRecord) ([]*tessera.MapRecord, error) {
	fks := distinct(parents, fk)
	if len(fks) == 0 {
		return nil, nil
	}
	sel := NewSelector(target, registry)
	sel.WhereIn("id", fks...)
	related, err := queryRecords(ctx, drv, sel)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*tessera.MapRecord, len(related))
	for _, r := range related {
		byID[scanKey(r.Attrs["id"])] = r
	}
	for _, p := range parents {
		v, ok := p.Attrs[fk]
		if !ok || v == nil {
			continue
		}
		r, ok := byID[scanKey(v)]
		if !ok {
			continue
		}
		if p.One == nil {
			p.One = make(map[string]tessera.Record)
		}
		p.One[assoc] = r
	}
	return related, nil
}

// preloadMany batches a to-many association: one statement selecting
// the targets whose foreign key points at any parent, grouped back onto
// the parents in id order.
func preloadMany(ctx context.Context, drv dialect.ExecQuerier, registry schema.Registry, assoc, fk string, target *schema.Model, parents []*tessera.MapRecord) ([]*tessera.MapRecord, error) {
	ids := distinct(parents, "id")
	if len(ids) == 0 {
		return nil, nil
	}
	sel := NewSelector(target, registry)
	sel.WhereIn(fk, ids...)
	sel.OrderBy("id", false)
	related, err := queryRecords(ctx, drv, sel)
	if err != nil {
		return nil, err
	}
	byFK := make(map[string][]tessera.Record)
	for _, r := range related {
		k := scanKey(r.Attrs[fk])
		byFK[k] = append(byFK[k], r)
	}
	for _, p := range parents {
		if p.Many == nil {
			p.Many = make(map[string][]tessera.Record)
		}
		group := byFK[scanKey(p.Attrs["id"])]
		if group == nil {
			group = []tessera.Record{}
		}
		p.Many[assoc] = group
	}
	return related, nil
}

// distinct collects the distinct non-nil values of one attribute
// across records, preserving first-seen order.
func distinct(records []*tessera.MapRecord, attr string) []any {
	seen := make(map[string]struct{})
	var out []any
	for _, r := range records {
		v, ok := r.Attrs[attr]
		if !ok || v == nil {
			continue
		}
		k := scanKey(v)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, v)
	}
	return out
}

// normalize converts driver byte slices to strings so attribute values
// compare and render naturally.
func normalize(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

// scanKey maps a scanned value to a comparable key. Drivers disagree
// on integer widths for the same column, so keys compare by rendered
// form rather than by dynamic type.
func scanKey(v any) string {
	return fmt.Sprint(v)
}
