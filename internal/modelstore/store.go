// Package modelstore maps model IDs onto durable graph partitions. It owns the
// persisted shape of a model: imports are stripped before commit and the
// ontology declaration is always the first stored and exported fact.
package modelstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"modelcore/internal/codec"
	"modelcore/internal/logging"
	"modelcore/pkg/domain"
)

// Option configures a Store.
type Option func(*Store)

// WithReadTimeout bounds Load, ExportOne, Exists and ListIDs. Expiry aborts
// the underlying store transaction through its context.
func WithReadTimeout(d time.Duration) Option {
	return func(s *Store) { s.readTimeout = d }
}

// WithLogger sets the logger used for skipped and failed import items.
func WithLogger(l logging.Logger) Option {
	return func(s *Store) { s.logger = logging.OrNop(l) }
}

// WithImportConcurrency caps parallel parse and commit workers of ImportBulk.
func WithImportConcurrency(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// Store is the persistent model store. Saves and imports on different IDs
// may run concurrently.
type Store struct {
	parts       domain.PartitionStore
	logger      logging.Logger
	readTimeout time.Duration
	concurrency int
	claims      claimSet
}

// New wraps a partition store.
func New(parts domain.PartitionStore, opts ...Option) *Store {
	s := &Store{
		parts:       parts,
		logger:      logging.Nop(),
		concurrency: 8,
		claims:      claimSet{ids: make(map[domain.ModelID]struct{})},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Partitions exposes the underlying partition store.
func (s *Store) Partitions() domain.PartitionStore { return s.parts }

// Close closes the partition store.
func (s *Store) Close() error { return s.parts.Close() }

func (s *Store) readContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.readTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.readTimeout)
}

func durable(op string, id domain.ModelID, err error) error {
	if err == nil {
		return nil
	}
	var unknown *domain.UnknownIdentifierError
	if errors.As(err, &unknown) {
		return err
	}
	var dio *domain.DurableIOError
	if errors.As(err, &dio) {
		return err
	}
	return &domain.DurableIOError{Op: op, ModelID: id, Err: err}
}

// Load returns the stored facts of id in stored order.
func (s *Store) Load(ctx context.Context, id domain.ModelID) ([]domain.Fact, error) {
	ctx, cancel := s.readContext(ctx)
	defer cancel()
	var facts []domain.Fact
	err := s.parts.ExportFacts(ctx, id, func(f domain.Fact) error {
		facts = append(facts, f)
		return nil
	})
	if err != nil {
		return nil, durable("load", id, err)
	}
	return facts, nil
}

// Prepare returns facts in persisted shape: import declarations removed and
// the ontology declaration of id first. A missing declaration is added.
func Prepare(id domain.ModelID, facts []domain.Fact) []domain.Fact {
	decl := domain.OntologyFact(id)
	out := make([]domain.Fact, 0, len(facts)+1)
	out = append(out, decl)
	seen := map[string]struct{}{decl.Key(): {}}
	for _, f := range facts {
		if f.Kind == domain.FactImport {
			continue
		}
		key := f.Key()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, f)
	}
	return out
}

// HoistOntology moves ontology declarations ahead of every other fact,
// keeping relative order otherwise.
func HoistOntology(facts []domain.Fact) []domain.Fact {
	out := make([]domain.Fact, 0, len(facts))
	for _, f := range facts {
		if f.Kind == domain.FactOntology {
			out = append(out, f)
		}
	}
	for _, f := range facts {
		if f.Kind != domain.FactOntology {
			out = append(out, f)
		}
	}
	return out
}

// Save atomically replaces the partition of id. On error the previous
// partition is left intact.
func (s *Store) Save(ctx context.Context, id domain.ModelID, facts []domain.Fact) error {
	return durable("save", id, s.replace(ctx, id, Prepare(id, facts)))
}

func (s *Store) replace(ctx context.Context, id domain.ModelID, facts []domain.Fact) (err error) {
	tx, err := s.parts.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	if err = tx.Clear(ctx, id); err != nil {
		return err
	}
	if err = tx.AddFacts(ctx, id, facts); err != nil {
		return err
	}
	return tx.Commit()
}

// ExportOne encodes the stored partition of id with the ontology declaration
// as the first fact; some downstream parsers are order sensitive.
func (s *Store) ExportOne(ctx context.Context, id domain.ModelID, format domain.Format) ([]byte, error) {
	c, err := codec.For(format)
	if err != nil {
		return nil, &domain.MalformedInputError{Source: string(format), Reason: "export format", Err: err}
	}
	facts, err := s.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	return c.Encode(HoistOntology(facts))
}

// ListIDs enumerates stored partitions without reading their facts.
func (s *Store) ListIDs(ctx context.Context) ([]domain.ModelID, error) {
	ctx, cancel := s.readContext(ctx)
	defer cancel()
	ids, err := s.parts.ListPartitionIDs(ctx)
	if err != nil {
		return nil, durable("list", "", err)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// Exists reports whether id has a durable partition.
func (s *Store) Exists(ctx context.Context, id domain.ModelID) (bool, error) {
	ctx, cancel := s.readContext(ctx)
	defer cancel()
	ok, err := s.parts.HasPartition(ctx, id)
	if err != nil {
		return false, durable("exists", id, err)
	}
	return ok, nil
}

// Delete removes the partition of id.
func (s *Store) Delete(ctx context.Context, id domain.ModelID) (err error) {
	ok, err := s.Exists(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return domain.UnknownModel(id)
	}
	tx, err := s.parts.Begin(ctx)
	if err != nil {
		return durable("delete", id, err)
	}
	if err = tx.Delete(ctx, id); err != nil {
		_ = tx.Rollback()
		return durable("delete", id, err)
	}
	if err = tx.Commit(); err != nil {
		return durable("delete", id, fmt.Errorf("commit: %w", err))
	}
	return nil
}
