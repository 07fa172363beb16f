package core

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"modelcore/internal/codec"
	"modelcore/internal/modelstore"
	"modelcore/internal/schema"
	"modelcore/pkg/domain"
)

// ErrClosed is returned by a registry after Close.
var ErrClosed = errors.New("model registry closed")

// EditProducer computes an edit list against the current ABox. It runs with
// the model lock held and must not retain view.
type EditProducer func(view domain.GraphView) (domain.EditList, error)

// MutationResult reports the effective edits of one mutation.
type MutationResult struct {
	ModelID  domain.ModelID
	Edits    domain.EditList
	Modified bool
}

// SaveOptions controls Save.
type SaveOptions struct {
	// ClearUndoHistory drops the undo stack once the save has committed.
	ClearUndoHistory bool
}

type historyKeeper interface {
	ClearUndo(id domain.ModelID)
	Forget(id domain.ModelID)
}

type errorRecorder interface {
	RecordError(ctx context.Context, operation, errorType string)
}

// Registry is the authoritative map from model ID to live ModelInstance. At
// most one instance exists per ID: concurrent first loads are deduplicated and
// inserted with check-and-insert under the registry lock.
type Registry struct {
	opts     options
	tbox     *domain.TBox
	store    *modelstore.Store
	ids      *IDGenerator
	recorder ChangeRecorder

	mu     sync.RWMutex
	models map[domain.ModelID]*ModelInstance
	closed bool
	loads  singleflight.Group
}

// NewRegistry builds a registry over store. A nil tbox selects an empty schema.
func NewRegistry(tbox *domain.TBox, store *modelstore.Store, opts ...Option) *Registry {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if tbox == nil {
		tbox = schema.Empty("")
	}
	return &Registry{
		opts:   o,
		tbox:   tbox,
		store:  store,
		ids:    NewIDGenerator(o.idPrefix, o.clock.Now()),
		models: make(map[domain.ModelID]*ModelInstance),
	}
}

// TBox returns the shared schema.
func (r *Registry) TBox() *domain.TBox { return r.tbox }

// Store returns the persistent model store.
func (r *Registry) Store() *modelstore.Store { return r.store }

func (r *Registry) run(ctx context.Context, op string, id domain.ModelID, actor string, fn func(ctx context.Context) error) error {
	ctx, span := r.opts.tracer.Start(ctx, op)
	started := time.Now()
	err := fn(ctx)
	duration := time.Since(started)
	span.End(err)
	r.opts.metrics.Observe(ctx, op, err == nil, duration)

	entry := AuditEntry{
		Operation: op,
		ModelID:   id,
		ActorID:   actor,
		Status:    AuditStatusSuccess,
		Duration:  duration,
		Timestamp: r.opts.clock.Now(),
	}
	if err != nil {
		entry.Status = AuditStatusError
		entry.Error = err.Error()
		entry.ErrorType = domain.Classify(err)
		if rec, ok := r.opts.metrics.(errorRecorder); ok {
			rec.RecordError(ctx, op, entry.ErrorType)
		}
		if errors.Is(err, domain.ErrDurableIO) {
			r.opts.logger.Error("operation failed", "operation", op, "model_id", string(id), "error_type", entry.ErrorType, "error", err)
		} else {
			r.opts.logger.Warn("operation failed", "operation", op, "model_id", string(id), "error_type", entry.ErrorType, "error", err)
		}
	} else {
		r.opts.logger.Debug("operation completed", "operation", op, "model_id", string(id), "duration", duration)
	}
	r.opts.audit.Record(ctx, entry)
	return err
}

func (r *Registry) observeCache(n int) {
	if r.opts.cache != nil {
		r.opts.cache.CachedModels(n)
	}
}

func (r *Registry) cached(id domain.ModelID) (*ModelInstance, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return nil, ErrClosed
	}
	return r.models[id], nil
}

// Get returns the live instance of id, loading it from the store on a miss.
func (r *Registry) Get(ctx context.Context, id domain.ModelID) (*ModelInstance, error) {
	var inst *ModelInstance
	err := r.run(ctx, "get", id, "", func(ctx context.Context) error {
		var err error
		inst, err = r.get(ctx, id)
		return err
	})
	return inst, err
}

func (r *Registry) get(ctx context.Context, id domain.ModelID) (*ModelInstance, error) {
	if id == "" {
		return nil, domain.UnknownModel(id)
	}
	if inst, err := r.cached(id); inst != nil || err != nil {
		return inst, err
	}
	// one caller's cancellation must not fail the peers sharing its load
	loadCtx := context.WithoutCancel(ctx)
	v, err, _ := r.loads.Do(string(id), func() (any, error) {
		if inst, err := r.cached(id); inst != nil || err != nil {
			return inst, err
		}
		facts, err := r.store.Load(loadCtx, id)
		if err != nil {
			return nil, err
		}
		inst, err := newInstance(id, r.tbox, r.opts.reasoners, facts)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", id, err)
		}
		return r.insert(inst, false)
	})
	if err != nil {
		return nil, err
	}
	return v.(*ModelInstance), nil
}

// insert publishes inst. An existing instance wins unless mustBeNew, in which
// case the collision is an error; the loser is disposed either way.
func (r *Registry) insert(inst *ModelInstance, mustBeNew bool) (*ModelInstance, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		inst.Dispose()
		return nil, ErrClosed
	}
	if existing, ok := r.models[inst.id]; ok {
		r.mu.Unlock()
		inst.Dispose()
		if mustBeNew {
			return nil, &domain.AlreadyExistsError{ModelID: inst.id}
		}
		return existing, nil
	}
	r.models[inst.id] = inst
	n := len(r.models)
	r.mu.Unlock()
	r.observeCache(n)
	return inst, nil
}

// lockInstance returns the instance of id with its structural lock held. An
// instance unlinked while the caller waited is reloaded once.
func (r *Registry) lockInstance(ctx context.Context, id domain.ModelID) (*ModelInstance, error) {
	for attempt := 0; ; attempt++ {
		inst, err := r.get(ctx, id)
		if err != nil {
			return nil, err
		}
		inst.mu.Lock()
		if !inst.disposed.Load() {
			return inst, nil
		}
		inst.mu.Unlock()
		if attempt > 0 {
			return nil, domain.ErrDisposed
		}
	}
}

// Unlink disposes and evicts the live instance of id. Unknown IDs are a no-op.
func (r *Registry) Unlink(id domain.ModelID) {
	r.mu.Lock()
	inst, ok := r.models[id]
	delete(r.models, id)
	n := len(r.models)
	r.mu.Unlock()
	if !ok {
		return
	}
	inst.Dispose()
	if h, ok := r.recorder.(historyKeeper); ok {
		h.Forget(id)
	}
	r.observeCache(n)
}

// GenerateBlankModel registers a new, empty model importing the TBox. The
// acting user is recorded as contributor.
func (r *Registry) GenerateBlankModel(ctx context.Context, meta domain.Metadata) (*ModelInstance, error) {
	var inst *ModelInstance
	id := r.ids.Next()
	err := r.run(ctx, "create_blank_model", id, meta.ActorID, func(ctx context.Context) error {
		exists, err := r.store.Exists(ctx, id)
		if err != nil {
			return err
		}
		if exists {
			return &domain.AlreadyExistsError{ModelID: id}
		}
		var facts []domain.Fact
		if meta.ActorID != "" {
			facts = append(facts, domain.AnnotationFact(domain.IRI(id), domain.ContributorProperty, meta.ActorID))
		}
		fresh, err := newInstance(id, r.tbox, r.opts.reasoners, facts)
		if err != nil {
			return err
		}
		fresh.modified = true
		inst, err = r.insert(fresh, true)
		return err
	})
	return inst, err
}

// ApplyMutation is the single path through which fact-level edits reach an
// ABox. Under the model lock it computes the edits against the current
// state, validates them, drops the ones that would not change anything and
// applies the rest as one unit. The effective edits are then recorded and,
// when flush is set, the reasoner is brought up to date. A failure before
// apply leaves the ABox untouched.
func (r *Registry) ApplyMutation(ctx context.Context, id domain.ModelID, produce EditProducer, flush bool, meta domain.Metadata) (MutationResult, error) {
	var res MutationResult
	err := r.run(ctx, "apply_mutation", id, meta.ActorID, func(ctx context.Context) error {
		var err error
		res, err = r.applyMutation(ctx, id, produce, flush, meta)
		return err
	})
	return res, err
}

func (r *Registry) applyMutation(ctx context.Context, id domain.ModelID, produce EditProducer, flush bool, meta domain.Metadata) (MutationResult, error) {
	inst, err := r.lockInstance(ctx, id)
	if err != nil {
		return MutationResult{}, err
	}
	defer inst.mu.Unlock()

	edits, err := produce(inst.abox)
	if err != nil {
		return MutationResult{}, err
	}
	if err := edits.Validate(); err != nil {
		return MutationResult{}, err
	}
	effective := edits.Effective(inst.abox)
	if err := inst.applyLocked(effective); err != nil {
		return MutationResult{}, err
	}
	if len(effective) > 0 && r.recorder != nil {
		r.recorder.RecordChange(domain.ChangeEvent{
			ID:        uuid.NewString(),
			ModelID:   id,
			ActorID:   meta.ActorID,
			Token:     meta.Token,
			Edits:     effective.Clone(),
			Timestamp: r.opts.clock.Now(),
		})
	}
	res := MutationResult{ModelID: id, Edits: effective, Modified: inst.modified}
	if flush {
		if err := inst.Flush(ctx); err != nil {
			return res, err
		}
	}
	return res, nil
}

// Save replaces the durable partition of id with the live ABox. The modified
// flag is cleared only after the store commit succeeds.
func (r *Registry) Save(ctx context.Context, id domain.ModelID, opts SaveOptions, meta domain.Metadata) error {
	return r.run(ctx, "save", id, meta.ActorID, func(ctx context.Context) error {
		inst, err := r.lockInstance(ctx, id)
		if err != nil {
			return err
		}
		defer inst.mu.Unlock()
		if err := r.store.Save(ctx, id, inst.abox.Facts()); err != nil {
			return err
		}
		inst.modified = false
		if opts.ClearUndoHistory {
			if h, ok := r.recorder.(historyKeeper); ok {
				h.ClearUndo(id)
			}
		}
		return nil
	})
}

// Export encodes the live ABox of id with the ontology declaration first.
func (r *Registry) Export(ctx context.Context, id domain.ModelID, format domain.Format) ([]byte, error) {
	var out []byte
	err := r.run(ctx, "export", id, "", func(ctx context.Context) error {
		c, err := codec.For(format)
		if err != nil {
			return &domain.MalformedInputError{Source: string(format), Reason: "export format", Err: err}
		}
		inst, err := r.lockInstance(ctx, id)
		if err != nil {
			return err
		}
		facts := inst.abox.Facts()
		inst.mu.Unlock()
		out, err = c.Encode(modelstore.HoistOntology(facts))
		return err
	})
	return out, err
}

// ExportStored encodes the durable partition of id. Unsaved edits of a
// cached instance are not included.
func (r *Registry) ExportStored(ctx context.Context, id domain.ModelID, format domain.Format) ([]byte, error) {
	var out []byte
	err := r.run(ctx, "export_stored", id, "", func(ctx context.Context) error {
		exists, err := r.store.Exists(ctx, id)
		if err != nil {
			return err
		}
		if !exists {
			return domain.UnknownModel(id)
		}
		out, err = r.store.ExportOne(ctx, id, format)
		return err
	})
	return out, err
}

// Validate checks consistency through the primary reasoner and shape
// conformance. An inconsistent model is a result, not an error.
func (r *Registry) Validate(ctx context.Context, id domain.ModelID) (domain.ValidationResult, error) {
	var res domain.ValidationResult
	err := r.run(ctx, "validate", id, "", func(ctx context.Context) error {
		inst, err := r.get(ctx, id)
		if err != nil {
			return err
		}
		reasoner, err := inst.FreshReasoner(ctx)
		if err != nil {
			return err
		}
		graph := inst.QueryGraph()
		if graph == nil {
			return domain.ErrDisposed
		}
		res, err = r.opts.validator.Validate(ctx, domain.ValidationInput{Graph: graph, Reasoner: reasoner})
		return err
	})
	return res, err
}

// Types returns the inferred named types of individual in model id.
func (r *Registry) Types(ctx context.Context, id domain.ModelID, individual domain.IRI) ([]domain.IRI, error) {
	var types []domain.IRI
	err := r.run(ctx, "types", id, "", func(ctx context.Context) error {
		inst, err := r.get(ctx, id)
		if err != nil {
			return err
		}
		reasoner, err := inst.FreshReasoner(ctx)
		if err != nil {
			return err
		}
		types, err = reasoner.Types(ctx, individual)
		return err
	})
	return types, err
}

// Flush brings the primary reasoner of id up to date.
func (r *Registry) Flush(ctx context.Context, id domain.ModelID) error {
	return r.run(ctx, "flush", id, "", func(ctx context.Context) error {
		inst, err := r.get(ctx, id)
		if err != nil {
			return err
		}
		return inst.Flush(ctx)
	})
}

// Import bulk-imports sources into the store. Live instances, saved or not,
// collide like stored models under every duplicate policy; under
// DuplicateOverwrite they are unlinked so the next Get sees the imported graph.
func (r *Registry) Import(ctx context.Context, sources []modelstore.Source, opts modelstore.ImportOptions) (modelstore.ImportReport, error) {
	var report modelstore.ImportReport
	live := opts.Live
	opts.Live = func(id domain.ModelID) bool {
		if inst, _ := r.cached(id); inst != nil {
			return true
		}
		return live != nil && live(id)
	}
	err := r.run(ctx, "import", "", "", func(ctx context.Context) error {
		var err error
		report, err = r.store.ImportBulk(ctx, sources, opts)
		if opts.Duplicates == modelstore.DuplicateOverwrite {
			for _, id := range report.Imported() {
				r.Unlink(id)
			}
		}
		return err
	})
	return report, err
}

// Delete removes id's durable partition and then unlinks it. A live model that
// was never saved is deleted by unlinking alone. When storage fails the live
// instance is left in place.
func (r *Registry) Delete(ctx context.Context, id domain.ModelID, meta domain.Metadata) error {
	return r.run(ctx, "delete", id, meta.ActorID, func(ctx context.Context) error {
		live, err := r.cached(id)
		if err != nil {
			return err
		}
		err = r.store.Delete(ctx, id)
		if live != nil && errors.Is(err, domain.ErrUnknownIdentifier) {
			err = nil
		}
		if err != nil {
			return err
		}
		r.Unlink(id)
		return nil
	})
}

// Modified reports the modified flag of a live instance without loading it.
func (r *Registry) Modified(id domain.ModelID) (bool, bool) {
	inst, _ := r.cached(id)
	if inst == nil {
		return false, false
	}
	return inst.Modified(), true
}

// CachedIDs lists the live instances, sorted.
func (r *Registry) CachedIDs() []domain.ModelID {
	r.mu.RLock()
	out := make([]domain.ModelID, 0, len(r.models))
	for id := range r.models {
		out = append(out, id)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Close disposes every live instance. The registry rejects further use.
func (r *Registry) Close() {
	r.mu.Lock()
	r.closed = true
	live := r.models
	r.models = make(map[domain.ModelID]*ModelInstance)
	r.mu.Unlock()
	for id, inst := range live {
		inst.Dispose()
		if h, ok := r.recorder.(historyKeeper); ok {
			h.Forget(id)
		}
	}
	r.observeCache(0)
}
