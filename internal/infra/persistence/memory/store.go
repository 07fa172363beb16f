// Package memory provides an in-memory partition store used for tests and
// ephemeral environments.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"

	"modelcore/pkg/domain"
)

var _ domain.PartitionStore = (*Store)(nil)

// ErrTxDone is returned by operations on a committed or rolled back transaction.
var ErrTxDone = errors.New("memory: transaction already finished")

type memoryState map[domain.ModelID][]domain.Fact

func (s memoryState) clone(ids map[domain.ModelID]struct{}) memoryState {
	out := make(memoryState, len(s))
	for id, facts := range s {
		if _, touched := ids[id]; touched {
			out[id] = append([]domain.Fact(nil), facts...)
			continue
		}
		out[id] = facts
	}
	return out
}

// Store keeps partitions in memory. Transactions buffer their operations and
// apply them under one lock on Commit, so readers observe either the previous
// or the new partition contents.
type Store struct {
	mu    sync.RWMutex
	state memoryState

	failMu     sync.Mutex
	failCommit error
}

// NewStore constructs an empty in-memory store.
func NewStore() *Store {
	return &Store{state: make(memoryState)}
}

// FailNextCommit makes the next Commit return err without applying anything.
func (s *Store) FailNextCommit(err error) {
	s.failMu.Lock()
	s.failCommit = err
	s.failMu.Unlock()
}

func (s *Store) takeFailure() error {
	s.failMu.Lock()
	defer s.failMu.Unlock()
	err := s.failCommit
	s.failCommit = nil
	return err
}

type opKind uint8

const (
	opClear opKind = iota + 1
	opAdd
	opDelete
)

type pendingOp struct {
	kind  opKind
	id    domain.ModelID
	facts []domain.Fact
}

type transaction struct {
	store *Store
	ops   []pendingOp
	done  bool
}

// Begin opens a buffered write transaction.
func (s *Store) Begin(ctx context.Context) (domain.PartitionTx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &transaction{store: s}, nil
}

func (tx *transaction) record(op pendingOp) error {
	if tx.done {
		return ErrTxDone
	}
	tx.ops = append(tx.ops, op)
	return nil
}

func (tx *transaction) Clear(ctx context.Context, id domain.ModelID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return tx.record(pendingOp{kind: opClear, id: id})
}

func (tx *transaction) AddFacts(ctx context.Context, id domain.ModelID, facts []domain.Fact) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return tx.record(pendingOp{kind: opAdd, id: id, facts: append([]domain.Fact(nil), facts...)})
}

func (tx *transaction) Delete(ctx context.Context, id domain.ModelID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return tx.record(pendingOp{kind: opDelete, id: id})
}

func (tx *transaction) Commit() error {
	if tx.done {
		return ErrTxDone
	}
	tx.done = true
	if err := tx.store.takeFailure(); err != nil {
		return err
	}
	s := tx.store
	s.mu.Lock()
	defer s.mu.Unlock()

	touched := make(map[domain.ModelID]struct{}, len(tx.ops))
	for _, op := range tx.ops {
		touched[op.id] = struct{}{}
	}
	next := s.state.clone(touched)
	for _, op := range tx.ops {
		switch op.kind {
		case opClear:
			next[op.id] = []domain.Fact{}
		case opAdd:
			next[op.id] = append(next[op.id], op.facts...)
		case opDelete:
			delete(next, op.id)
		}
	}
	s.state = next
	return nil
}

func (tx *transaction) Rollback() error {
	tx.done = true
	tx.ops = nil
	return nil
}

// ExportFacts streams a committed snapshot of the partition.
func (s *Store) ExportFacts(ctx context.Context, id domain.ModelID, fn func(domain.Fact) error) error {
	s.mu.RLock()
	facts, ok := s.state[id]
	s.mu.RUnlock()
	if !ok {
		return domain.UnknownModel(id)
	}
	for _, f := range facts {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(f); err != nil {
			return err
		}
	}
	return nil
}

// HasPartition reports whether id has been committed.
func (s *Store) HasPartition(_ context.Context, id domain.ModelID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.state[id]
	return ok, nil
}

// ListPartitionIDs returns the committed partition IDs, sorted.
func (s *Store) ListPartitionIDs(_ context.Context) ([]domain.ModelID, error) {
	s.mu.RLock()
	out := make([]domain.ModelID, 0, len(s.state))
	for id := range s.state {
		out = append(out, id)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// Close is a no-op.
func (s *Store) Close() error { return nil }
