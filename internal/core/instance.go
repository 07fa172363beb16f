package core

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"modelcore/pkg/domain"
)

// InstanceState is the lifecycle state of a ModelInstance.
type InstanceState string

// Instance states. Ready instances move between reasoner-built and
// reasoner-stale; disposed is terminal.
const (
	StateUninitialized InstanceState = "uninitialized"
	StateReady         InstanceState = "ready"
	StateReasonerBuilt InstanceState = "reasoner_built"
	StateReasonerStale InstanceState = "reasoner_stale"
	StateDisposed      InstanceState = "disposed"
)

// ModelInstance is the live, cached form of one model: its ABox, the shared
// TBox, the derived query graph and two lazily built reasoners.
//
// Lock order: mu (structural) before ledger, before reasonerMu, before
// moduleMu. Reasoners read the query graph through an atomic pointer and never
// take mu.
type ModelInstance struct {
	id        domain.ModelID
	tbox      *domain.TBox
	reasoners domain.ReasonerFactory

	mu       sync.Mutex
	abox     *domain.Graph
	version  uint64
	modified bool

	wired    atomic.Bool
	disposed atomic.Bool
	query    atomic.Pointer[domain.QueryGraph]

	reasonerMu    sync.Mutex
	reasonerReady atomic.Bool
	reasoner      domain.Reasoner
	// flushed is the query graph version observed before the last primary
	// flush started; the reasoner is fresh only while it equals the current one.
	flushed atomic.Uint64

	moduleMu sync.Mutex
	module   domain.Reasoner
}

// newInstance wires facts into a ready instance. The TBox import and the
// ontology declaration are re-attached when missing; that does not count as
// a modification.
func newInstance(id domain.ModelID, tbox *domain.TBox, reasoners domain.ReasonerFactory, facts []domain.Fact) (*ModelInstance, error) {
	inst := &ModelInstance{id: id, tbox: tbox, reasoners: reasoners}
	g := domain.NewGraph(domain.OntologyFact(id))
	for _, f := range facts {
		if err := f.Validate(); err != nil {
			return nil, err
		}
		g.Add(f)
	}
	if tbox != nil {
		g.Add(domain.ImportFact(id, tbox.IRI()))
	}
	inst.abox = g
	if err := inst.rebuildQuery(); err != nil {
		return nil, err
	}
	inst.wired.Store(true)
	return inst, nil
}

// ID returns the model ID.
func (m *ModelInstance) ID() domain.ModelID { return m.id }

// TBox returns the shared schema.
func (m *ModelInstance) TBox() *domain.TBox { return m.tbox }

// State reports the lifecycle state.
func (m *ModelInstance) State() InstanceState {
	switch {
	case m.disposed.Load():
		return StateDisposed
	case !m.wired.Load():
		return StateUninitialized
	case !m.reasonerReady.Load():
		return StateReady
	case m.stale():
		return StateReasonerStale
	default:
		return StateReasonerBuilt
	}
}

// Modified reports whether the ABox changed since the last successful save.
func (m *ModelInstance) Modified() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.modified
}

// Version counts structural changes applied to the instance.
func (m *ModelInstance) Version() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.version
}

// Facts returns a snapshot of the ABox in insertion order.
func (m *ModelInstance) Facts() []domain.Fact {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.abox.Facts()
}

// Snapshot returns an independent copy of the ABox.
func (m *ModelInstance) Snapshot() *domain.Graph {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.abox.Clone()
}

// QueryGraph returns the query graph of the current ABox, or nil once disposed.
func (m *ModelInstance) QueryGraph() *domain.QueryGraph {
	return m.query.Load()
}

// currentVersion is the version of the published query graph.
func (m *ModelInstance) currentVersion() (uint64, bool) {
	q := m.query.Load()
	if q == nil {
		return 0, false
	}
	return q.Version, true
}

// stale reports whether the primary reasoner may answer from an older graph
// than the published one.
func (m *ModelInstance) stale() bool {
	v, ok := m.currentVersion()
	return !ok || m.flushed.Load() != v
}

func (m *ModelInstance) rebuildQuery() error {
	q, err := domain.BuildQueryGraph(m.id, m.tbox, m.abox, m.version)
	if err != nil {
		return &domain.MalformedInputError{Source: string(m.id), Reason: "query graph", Err: err}
	}
	m.query.Store(q)
	return nil
}

// applyLocked applies edits as one unit. The caller holds mu. If the query
// graph cannot be rebuilt the edits are reverted and nothing changes.
func (m *ModelInstance) applyLocked(edits domain.EditList) error {
	if m.disposed.Load() {
		return domain.ErrDisposed
	}
	if len(edits) == 0 {
		return nil
	}
	for _, e := range edits {
		m.abox.Apply(e)
	}
	m.version++
	if err := m.rebuildQuery(); err != nil {
		for _, e := range edits.Invert() {
			m.abox.Apply(e)
		}
		m.version--
		return err
	}
	m.modified = true
	m.onMutation()
	return nil
}

// onMutation drops the module reasoner. It runs synchronously on the mutation
// path with mu held; the primary reasoner becomes stale through the version
// bump of the new query graph.
func (m *ModelInstance) onMutation() {
	m.moduleMu.Lock()
	if m.module != nil {
		m.module.Dispose()
		m.module = nil
	}
	m.moduleMu.Unlock()
}

func (m *ModelInstance) source() domain.QueryGraphSource {
	return domain.QueryGraphFunc(m.query.Load)
}

// Reasoner returns the primary reasoner, building and flushing it on first use.
func (m *ModelInstance) Reasoner(ctx context.Context) (domain.Reasoner, error) {
	if m.disposed.Load() {
		return nil, domain.ErrDisposed
	}
	if m.reasonerReady.Load() {
		return m.reasoner, nil
	}
	m.reasonerMu.Lock()
	defer m.reasonerMu.Unlock()
	if m.reasonerReady.Load() {
		return m.reasoner, nil
	}
	if m.disposed.Load() {
		return nil, domain.ErrDisposed
	}
	r, err := m.reasoners.CreateReasoner(ctx, m.source())
	if err != nil {
		return nil, fmt.Errorf("create reasoner for %s: %w", m.id, err)
	}
	// read before the flush: a graph published while it runs leaves the
	// recorded version behind and the reasoner stale.
	v, ok := m.currentVersion()
	if !ok {
		r.Dispose()
		return nil, domain.ErrDisposed
	}
	if err := r.Flush(ctx); err != nil {
		r.Dispose()
		return nil, fmt.Errorf("flush reasoner for %s: %w", m.id, err)
	}
	m.reasoner = r
	m.flushed.Store(v)
	m.reasonerReady.Store(true)
	return r, nil
}

// Flush brings the primary reasoner up to date with the ABox.
func (m *ModelInstance) Flush(ctx context.Context) error {
	if !m.reasonerReady.Load() {
		_, err := m.Reasoner(ctx)
		return err
	}
	m.reasonerMu.Lock()
	defer m.reasonerMu.Unlock()
	if m.disposed.Load() || !m.reasonerReady.Load() {
		return domain.ErrDisposed
	}
	v, ok := m.currentVersion()
	if !ok {
		return domain.ErrDisposed
	}
	if err := m.reasoner.Flush(ctx); err != nil {
		return fmt.Errorf("flush reasoner for %s: %w", m.id, err)
	}
	m.flushed.Store(v)
	return nil
}

// FreshReasoner returns the primary reasoner once it has flushed against the
// query graph version current at the time of the call.
func (m *ModelInstance) FreshReasoner(ctx context.Context) (domain.Reasoner, error) {
	target, ok := m.currentVersion()
	if !ok {
		return nil, domain.ErrDisposed
	}
	r, err := m.Reasoner(ctx)
	if err != nil {
		return nil, err
	}
	for m.flushed.Load() < target {
		if err := m.Flush(ctx); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// ModuleReasoner returns the reasoner over the individuals-only module of the
// ABox. It is dropped by every mutation and rebuilt on the next call.
func (m *ModelInstance) ModuleReasoner(ctx context.Context) (domain.Reasoner, error) {
	if m.disposed.Load() {
		return nil, domain.ErrDisposed
	}
	m.moduleMu.Lock()
	defer m.moduleMu.Unlock()
	if m.module != nil {
		return m.module, nil
	}
	q := m.query.Load()
	if q == nil {
		return nil, domain.ErrDisposed
	}
	module := q.Restrict(q.Individuals())
	r, err := m.reasoners.CreateReasoner(ctx, domain.QueryGraphFunc(func() *domain.QueryGraph { return module }))
	if err != nil {
		return nil, fmt.Errorf("create module reasoner for %s: %w", m.id, err)
	}
	if err := r.Flush(ctx); err != nil {
		r.Dispose()
		return nil, fmt.Errorf("flush module reasoner for %s: %w", m.id, err)
	}
	m.module = r
	return r, nil
}

// HasModuleReasoner reports whether a module reasoner is currently built.
func (m *ModelInstance) HasModuleReasoner() bool {
	m.moduleMu.Lock()
	defer m.moduleMu.Unlock()
	return m.module != nil
}

// Dispose releases both reasoners and the query graph. Later operations fail
// with domain.ErrDisposed. It is idempotent.
func (m *ModelInstance) Dispose() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.disposeLocked()
}

func (m *ModelInstance) disposeLocked() {
	if !m.disposed.CompareAndSwap(false, true) {
		return
	}
	m.reasonerMu.Lock()
	// reasoner is read without the lock once ready, so the field is left set.
	if m.reasoner != nil {
		m.reasoner.Dispose()
	}
	m.reasonerReady.Store(false)
	m.reasonerMu.Unlock()

	m.moduleMu.Lock()
	if m.module != nil {
		m.module.Dispose()
		m.module = nil
	}
	m.moduleMu.Unlock()
	m.query.Store(nil)
}
