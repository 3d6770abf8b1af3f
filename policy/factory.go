package policy

import (
	"github.com/tesseradmin/tessera"
	"github.com/tesseradmin/tessera/schema"
)

// Factory builds evaluators scoped to arbitrary models for one user.
// The field resolver uses it to construct a per-hop evaluator whenever
// a dot-path crosses an association boundary.
type Factory struct {
	set      Set
	registry schema.Registry
	user     tessera.User
	opts     []Option
}

// NewFactory returns a factory bound to the given policy set and user.
// The options are applied to every evaluator it builds.
func NewFactory(set Set, registry schema.Registry, user tessera.User, opts ...Option) *Factory {
	return &Factory{set: set, registry: registry, user: user, opts: opts}
}

// Evaluator builds an evaluator scoped to the given model.
func (f *Factory) Evaluator(model string) *Evaluator {
	return New(f.set, f.registry, f.user, model, f.opts...)
}

// CheckerFor implements tessera.CheckerFactory.
func (f *Factory) CheckerFor(model string) tessera.FieldChecker {
	return f.Evaluator(model)
}

var _ tessera.CheckerFactory = (*Factory)(nil)
var _ tessera.FieldChecker = (*Evaluator)(nil)
