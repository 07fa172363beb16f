// Package blobpart stores each model partition as one JSON-lines object on a
// blob store. Publishing goes through the blob store's Replace, so a crashed
// write never exposes a partial partition.
package blobpart

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"hash/fnv"
	"sort"
	"strings"
	"sync"

	"modelcore/internal/blob"
	"modelcore/internal/codec"
	"modelcore/pkg/domain"
)

const (
	// DefaultPrefix is the key prefix partitions are written under.
	DefaultPrefix = "partitions/"
	objectSuffix  = ".jsonl"
	contentType   = "application/x-ndjson"
	stripes       = 32
)

var _ domain.PartitionStore = (*Store)(nil)

// ErrTxDone is returned by operations on a finished transaction.
var ErrTxDone = errors.New("blobpart: transaction already finished")

// Store maps partitions onto blob objects.
type Store struct {
	blobs  blob.Store
	prefix string
	codec  codec.JSONL
	locks  [stripes]sync.Mutex
}

// New wraps blobs. An empty prefix selects DefaultPrefix.
func New(blobs blob.Store, prefix string) *Store {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &Store{blobs: blobs, prefix: prefix}
}

// Key returns the object key holding partition id. IDs are base64url encoded
// so URI-shaped identifiers map to a single path segment.
func (s *Store) Key(id domain.ModelID) string {
	return s.prefix + base64.RawURLEncoding.EncodeToString([]byte(id)) + objectSuffix
}

func (s *Store) idFromKey(key string) (domain.ModelID, bool) {
	name, ok := strings.CutPrefix(key, s.prefix)
	if !ok {
		return "", false
	}
	name, ok = strings.CutSuffix(name, objectSuffix)
	if !ok || strings.Contains(name, "/") {
		return "", false
	}
	raw, err := base64.RawURLEncoding.DecodeString(name)
	if err != nil {
		return "", false
	}
	return domain.ModelID(raw), true
}

func stripe(id domain.ModelID) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return int(h.Sum32() % stripes)
}

type partitionPlan struct {
	reset   bool // start from empty instead of the stored facts
	deleted bool
	facts   []domain.Fact
}

type transaction struct {
	// ctx is the Begin context; Commit has no context of its own.
	ctx   context.Context
	store *Store
	order []domain.ModelID
	plans map[domain.ModelID]*partitionPlan
	done  bool
}

// Begin opens a buffered transaction. Commit is atomic per partition.
func (s *Store) Begin(ctx context.Context) (domain.PartitionTx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &transaction{ctx: ctx, store: s, plans: make(map[domain.ModelID]*partitionPlan)}, nil
}

func (tx *transaction) plan(id domain.ModelID) (*partitionPlan, error) {
	if tx.done {
		return nil, ErrTxDone
	}
	p, ok := tx.plans[id]
	if !ok {
		p = &partitionPlan{}
		tx.plans[id] = p
		tx.order = append(tx.order, id)
	}
	return p, nil
}

func (tx *transaction) Clear(_ context.Context, id domain.ModelID) error {
	p, err := tx.plan(id)
	if err != nil {
		return err
	}
	*p = partitionPlan{reset: true}
	return nil
}

func (tx *transaction) AddFacts(_ context.Context, id domain.ModelID, facts []domain.Fact) error {
	p, err := tx.plan(id)
	if err != nil {
		return err
	}
	if p.deleted {
		*p = partitionPlan{reset: true}
	}
	p.facts = append(p.facts, facts...)
	return nil
}

func (tx *transaction) Delete(_ context.Context, id domain.ModelID) error {
	p, err := tx.plan(id)
	if err != nil {
		return err
	}
	*p = partitionPlan{deleted: true}
	return nil
}

func (tx *transaction) Rollback() error {
	tx.done = true
	tx.plans = nil
	return nil
}

func (tx *transaction) Commit() error {
	if tx.done {
		return ErrTxDone
	}
	tx.done = true
	s := tx.store
	held := make([]int, 0, len(tx.order))
	seen := make(map[int]bool, len(tx.order))
	for _, id := range tx.order {
		if n := stripe(id); !seen[n] {
			seen[n] = true
			held = append(held, n)
		}
	}
	sort.Ints(held)
	for _, n := range held {
		s.locks[n].Lock()
	}
	defer func() {
		for _, n := range held {
			s.locks[n].Unlock()
		}
	}()
	for _, id := range tx.order {
		if err := s.apply(tx.ctx, id, tx.plans[id]); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) apply(ctx context.Context, id domain.ModelID, p *partitionPlan) error {
	key := s.Key(id)
	if p.deleted {
		if _, err := s.blobs.Delete(ctx, key); err != nil {
			return fmt.Errorf("delete partition %s: %w", id, err)
		}
		return nil
	}
	facts := p.facts
	if !p.reset {
		existing, err := s.read(ctx, id)
		if err != nil && !errors.Is(err, domain.ErrUnknownIdentifier) {
			return err
		}
		facts = append(existing, facts...)
	}
	data, err := s.codec.Encode(facts)
	if err != nil {
		return fmt.Errorf("encode partition %s: %w", id, err)
	}
	if _, err := blob.ReplaceBytes(ctx, s.blobs, key, data, blob.PutOptions{
		ContentType: contentType,
		Metadata:    map[string]string{"model-id": string(id)},
	}); err != nil {
		return fmt.Errorf("publish partition %s: %w", id, err)
	}
	return nil
}

func (s *Store) read(ctx context.Context, id domain.ModelID) ([]domain.Fact, error) {
	_, data, err := blob.ReadBytes(ctx, s.blobs, s.Key(id))
	if err != nil {
		if errors.Is(err, blob.ErrNotFound) {
			return nil, domain.UnknownModel(id)
		}
		return nil, fmt.Errorf("read partition %s: %w", id, err)
	}
	return s.codec.Decode(data)
}

// ExportFacts reads one published object, so it never observes a torn write.
func (s *Store) ExportFacts(ctx context.Context, id domain.ModelID, fn func(domain.Fact) error) error {
	facts, err := s.read(ctx, id)
	if err != nil {
		return err
	}
	for _, f := range facts {
		if err := fn(f); err != nil {
			return err
		}
	}
	return nil
}

// HasPartition checks for the partition object.
func (s *Store) HasPartition(ctx context.Context, id domain.ModelID) (bool, error) {
	if _, err := s.blobs.Head(ctx, s.Key(id)); err != nil {
		if errors.Is(err, blob.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// ListPartitionIDs lists object keys under the prefix without reading content.
func (s *Store) ListPartitionIDs(ctx context.Context) ([]domain.ModelID, error) {
	infos, err := s.blobs.List(ctx, s.prefix)
	if err != nil {
		return nil, err
	}
	out := make([]domain.ModelID, 0, len(infos))
	for _, info := range infos {
		if id, ok := s.idFromKey(info.Key); ok {
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// Close is a no-op; the blob store is owned by the caller.
func (s *Store) Close() error { return nil }
