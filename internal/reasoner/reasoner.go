// Package reasoner provides a structural reasoner over a model's query graph.
//
// Inferred named types of an individual are its asserted named classes, the
// named conjuncts of asserted intersections, and the TBox superclass closure
// of both. An individual holding two disjoint types makes the model
// inconsistent. In strict mode a relation over an undeclared object property
// does too.
package reasoner

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"

	"modelcore/pkg/domain"
)

// Option configures a Factory.
type Option func(*Factory)

// WithStrict makes undeclared relation properties an inconsistency.
func WithStrict(strict bool) Option {
	return func(f *Factory) { f.strict = strict }
}

// Factory creates structural reasoners. It is safe for concurrent use.
type Factory struct {
	strict   bool
	created  atomic.Int64
	disposed atomic.Int64
}

var _ domain.ReasonerFactory = (*Factory)(nil)

// NewFactory constructs a reasoner factory.
func NewFactory(opts ...Option) *Factory {
	f := &Factory{}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// CreateReasoner implements domain.ReasonerFactory.
func (f *Factory) CreateReasoner(_ context.Context, source domain.QueryGraphSource) (domain.Reasoner, error) {
	f.created.Add(1)
	return &Structural{factory: f, source: source, strict: f.strict}, nil
}

// Created returns how many reasoners the factory has built.
func (f *Factory) Created() int64 { return f.created.Load() }

// Live returns created minus disposed reasoners.
func (f *Factory) Live() int64 { return f.created.Load() - f.disposed.Load() }

// Structural is one reasoner bound to a query graph source.
type Structural struct {
	factory *Factory
	source  domain.QueryGraphSource
	strict  bool

	mu         sync.Mutex
	flushed    bool
	disposed   bool
	version    uint64
	types      map[domain.IRI][]domain.IRI
	consistent bool
}

// Flush recomputes inferred types from the current query graph.
// The source must not block on locks held by the caller.
func (r *Structural) Flush(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.disposed {
		return domain.ErrDisposed
	}
	r.compute(r.source.QueryGraph())
	return nil
}

func (r *Structural) compute(q *domain.QueryGraph) {
	r.types = make(map[domain.IRI][]domain.IRI)
	r.consistent = true
	for _, ind := range q.Individuals() {
		set := make(map[domain.IRI]struct{})
		for _, expr := range q.AssertedTypes(ind) {
			for _, c := range conjuncts(expr) {
				set[c] = struct{}{}
				if q.TBox != nil {
					for _, sup := range q.TBox.SuperClasses(c) {
						set[sup] = struct{}{}
					}
				}
			}
		}
		types := make([]domain.IRI, 0, len(set))
		for c := range set {
			types = append(types, c)
		}
		sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
		r.types[ind] = types
		if q.TBox != nil && hasDisjointPair(q.TBox, types) {
			r.consistent = false
		}
		if r.strict && q.TBox != nil {
			for _, rel := range q.Relations(ind) {
				if !q.TBox.HasProperty(rel.Predicate) {
					r.consistent = false
				}
			}
		}
	}
	r.version = q.Version
	r.flushed = true
}

// conjuncts returns the named classes an individual is entailed to have
// directly from expr.
func conjuncts(expr domain.Expression) []domain.IRI {
	switch expr.Kind {
	case domain.ExprClass:
		return []domain.IRI{expr.Class}
	case domain.ExprAnd:
		var out []domain.IRI
		for _, op := range expr.Operands {
			out = append(out, conjuncts(op)...)
		}
		return out
	}
	return nil
}

func hasDisjointPair(tbox *domain.TBox, types []domain.IRI) bool {
	for i := range types {
		for j := i + 1; j < len(types); j++ {
			if tbox.Disjoint(types[i], types[j]) {
				return true
			}
		}
	}
	return false
}

func (r *Structural) ensure() error {
	if r.disposed {
		return domain.ErrDisposed
	}
	if !r.flushed {
		r.compute(r.source.QueryGraph())
	}
	return nil
}

// IsConsistent reports whether no individual holds two disjoint types. It
// answers from the last flush; a never-flushed reasoner flushes first.
func (r *Structural) IsConsistent(_ context.Context) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.ensure(); err != nil {
		return false, err
	}
	return r.consistent, nil
}

// Types returns the inferred named types of individual.
func (r *Structural) Types(_ context.Context, individual domain.IRI) ([]domain.IRI, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.ensure(); err != nil {
		return nil, err
	}
	types, ok := r.types[individual]
	if !ok {
		return nil, &domain.UnknownIdentifierError{Kind: domain.IdentifierIndividual, ID: string(individual)}
	}
	return append([]domain.IRI(nil), types...), nil
}

// Version returns the query graph version of the last flush.
func (r *Structural) Version() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.version
}

// Dispose releases the reasoner. Later calls fail with domain.ErrDisposed.
func (r *Structural) Dispose() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.disposed {
		return
	}
	r.disposed = true
	r.types = nil
	r.factory.disposed.Add(1)
}
