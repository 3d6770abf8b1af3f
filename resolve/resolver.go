// Package resolve implements the field value resolver: it turns a
// presenter's declared field path (a plain field, a dot-path across
// associations, or a text template) into a displayable value for one
// record, consulting a permission evaluator scoped to the current
// model at every association boundary.
//
// Resolution is deliberately fail-closed: missing associations,
// missing records, unknown models, and unauthorized fields all degrade
// to nil (or an empty collection on the has-many branch) and are
// indistinguishable from one another at the API boundary. The resolver
// never returns an error and never panics during normal resolution.
package resolve

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/tesseradmin/tessera"
	"github.com/tesseradmin/tessera/schema"
)

// DefaultMask is the value rendered in place of masked fields.
const DefaultMask = "********"

// Resolver resolves field paths against records of one model. It is
// stateless beyond its construction bindings and safe to discard after
// the request it was built for.
type Resolver struct {
	model    *schema.Model
	registry schema.Registry
	checker  tessera.FieldChecker
	factory  tessera.CheckerFactory
	mask     string
	fkLabels bool
	log      *zap.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLogger sets the resolver's logger. The default is a no-op
// logger.
func WithLogger(log *zap.Logger) Option {
	return func(r *Resolver) { r.log = log }
}

// WithMask overrides the value rendered for masked fields.
func WithMask(mask string) Option {
	return func(r *Resolver) { r.mask = mask }
}

// WithoutForeignKeyLabels disables mapping raw foreign-key columns to
// the labelled associated record.
func WithoutForeignKeyLabels() Option {
	return func(r *Resolver) { r.fkLabels = false }
}

// New builds a resolver for the given model. The checker is the
// permission evaluator scoped to that model; the factory builds
// scoped evaluators for the models dot-paths traverse into. A nil
// factory reuses the root checker at every hop.
func New(model *schema.Model, registry schema.Registry, checker tessera.FieldChecker, factory tessera.CheckerFactory, opts ...Option) *Resolver {
	r := &Resolver{
		model:    model,
		registry: registry,
		checker:  checker,
		factory:  factory,
		mask:     DefaultMask,
		fkLabels: true,
		log:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve resolves a field path against a record. The result is a
// scalar for plain fields and to-one dot-paths, a string for
// templates, and an ordered slice for paths crossing a to-many
// association. Anything unreadable or missing resolves to nil.
func (r *Resolver) Resolve(rec tessera.Record, path string) any {
	if rec == nil || path == "" {
		return nil
	}
	// Checkers built for traversed models are memoized for the
	// duration of this call only, to respect request-scoped role
	// state.
	cache := map[string]tessera.FieldChecker{r.model.Name: r.checker}
	return r.resolve(rec, path, r.model, r.checker, cache)
}

func (r *Resolver) resolve(rec tessera.Record, path string, model *schema.Model, checker tessera.FieldChecker, cache map[string]tessera.FieldChecker) any {
	switch {
	// Template detection takes precedence over dot-path detection.
	case tessera.IsTemplate(path):
		return r.renderTemplate(rec, path, model, checker, cache)
	case tessera.IsDotPath(path):
		return r.resolveDotPath(rec, path, model, checker, cache)
	default:
		// Permission gating for top-level simple fields is
		// caller-side, via the evaluator's field-list checks.
		return r.readValue(rec, path, model, checker, cache)
	}
}

// renderTemplate substitutes every {ref} with its resolved string
// form. A nil resolution substitutes as the empty string, never the
// literal word "nil".
func (r *Resolver) renderTemplate(rec tessera.Record, tmpl string, model *schema.Model, checker tessera.FieldChecker, cache map[string]tessera.FieldChecker) string {
	return tessera.ExpandTemplate(tmpl, func(ref string) string {
		v := r.resolveRef(rec, ref, model, checker, cache)
		if v == nil {
			return ""
		}
		return fmt.Sprint(v)
	})
}

// resolveRef resolves a single template reference. Unlike top-level
// simple fields, simple refs inside a template are permission-checked
// here, since the caller's field-list gate never sees them.
func (r *Resolver) resolveRef(rec tessera.Record, ref string, model *schema.Model, checker tessera.FieldChecker, cache map[string]tessera.FieldChecker) any {
	if tessera.IsDotPath(ref) {
		return r.resolveDotPath(rec, ref, model, checker, cache)
	}
	if !checker.FieldReadable(ref) {
		return nil
	}
	if checker.FieldMasked(ref) {
		return r.mask
	}
	return r.readValue(rec, ref, model, checker, cache)
}

// resolveDotPath walks the path segments left to right, constructing a
// scoped checker for every model it traverses into. The terminal field
// is checked against the evaluator of the model it belongs to; the
// intermediate association hops themselves carry no permission.
func (r *Resolver) resolveDotPath(rec tessera.Record, path string, model *schema.Model, checker tessera.FieldChecker, cache map[string]tessera.FieldChecker) any {
	segs := tessera.SplitPath(path)
	for i := 0; i < len(segs)-1; i++ {
		assoc, ok := model.Association(segs[i])
		if !ok {
			return nil
		}
		target, err := r.registry.Model(assoc.Target)
		if err != nil {
			return nil
		}
		next := r.checkerFor(assoc.Target, cache)
		if assoc.ToMany() {
			rest := strings.Join(segs[i+1:], ".")
			return r.resolveMany(rec, assoc.Name, rest, target, next, cache)
		}
		related, ok := rec.Related(assoc.Name)
		if !ok {
			return nil
		}
		rec, model, checker = related, target, next
	}
	term := segs[len(segs)-1]
	if !checker.FieldReadable(term) {
		return nil
	}
	if checker.FieldMasked(term) {
		return r.mask
	}
	return r.readValue(rec, term, model, checker, cache)
}

// resolveMany resolves the remaining path independently against each
// related record, dropping entries that resolved to nil. Non-nil falsy
// values and empty strings are kept; order is preserved.
func (r *Resolver) resolveMany(rec tessera.Record, assoc, rest string, target *schema.Model, checker tessera.FieldChecker, cache map[string]tessera.FieldChecker) []any {
	items, ok := rec.RelatedMany(assoc)
	out := make([]any, 0, len(items))
	if !ok {
		return out
	}
	for _, item := range items {
		if item == nil {
			continue
		}
		// resolveRef applies the terminal permission check to a simple
		// remaining field, matching the to-one branch.
		if v := r.resolveRef(item, rest, target, checker, cache); v != nil {
			out = append(out, v)
		}
	}
	return out
}

// readValue reads a named attribute, mapping raw foreign-key columns
// to the labelled associated record when the association's target is a
// model the registry understands.
func (r *Resolver) readValue(rec tessera.Record, field string, model *schema.Model, checker tessera.FieldChecker, cache map[string]tessera.FieldChecker) any {
	raw, ok := rec.Get(field)
	if r.fkLabels {
		if labelled, found := r.labelForeignKey(rec, field, model, cache); found {
			return labelled
		}
	}
	if !ok {
		return nil
	}
	return raw
}

// labelForeignKey renders the display template of the record a
// foreign-key column points at. It reports false when the column is
// not a foreign key, the target model is unknown, the related record
// is absent, or the target declares no display template. The caller
// then falls back to the raw identifier.
func (r *Resolver) labelForeignKey(rec tessera.Record, field string, model *schema.Model, cache map[string]tessera.FieldChecker) (any, bool) {
	assoc, ok := model.AssociationForColumn(field)
	if !ok {
		return nil, false
	}
	target, err := r.registry.Model(assoc.Target)
	if err != nil || target.DisplayTemplate == "" {
		return nil, false
	}
	related, ok := rec.Related(assoc.Name)
	if !ok {
		return nil, false
	}
	checker := r.checkerFor(assoc.Target, cache)
	return r.renderTemplate(related, target.DisplayTemplate, target, checker, cache), true
}

func (r *Resolver) checkerFor(model string, cache map[string]tessera.FieldChecker) tessera.FieldChecker {
	if c, ok := cache[model]; ok {
		return c
	}
	var c tessera.FieldChecker
	if r.factory != nil {
		c = r.factory.CheckerFor(model)
	} else {
		c = r.checker
	}
	cache[model] = c
	return c
}
