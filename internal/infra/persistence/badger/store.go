// Package badger persists model partitions in an embedded BadgerDB key-value
// store. Partition markers live under p\x00<id>; facts under
// f\x00<id>\x00<seq> with a big-endian sequence so prefix iteration yields
// stored order.
package badger

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"modelcore/pkg/domain"
)

var _ domain.PartitionStore = (*Store)(nil)

const sep = 0x00

var (
	partitionPrefix = []byte{'p', sep}
	factPrefix      = []byte{'f', sep}
)

func partitionKey(id domain.ModelID) []byte {
	return append(append([]byte(nil), partitionPrefix...), id...)
}

func factsPrefix(id domain.ModelID) []byte {
	k := append(append([]byte(nil), factPrefix...), id...)
	return append(k, sep)
}

func factKey(id domain.ModelID, seq uint64) []byte {
	k := factsPrefix(id)
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], seq)
	return append(k, buf[:]...)
}

// Options configures the badger store.
type Options struct {
	// Dir is the data directory. Ignored when InMemory is set.
	Dir      string
	InMemory bool
}

// Store is a badger-backed partition store.
type Store struct {
	db *badger.DB
}

// NewStore opens the badger database described by opts.
func NewStore(opts Options) (*Store, error) {
	var bopts badger.Options
	if opts.InMemory {
		bopts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if opts.Dir == "" {
			return nil, errors.New("badger: data directory required")
		}
		bopts = badger.DefaultOptions(opts.Dir)
	}
	db, err := badger.Open(bopts.WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &Store{db: db}, nil
}

// Begin opens a read-write badger transaction. Writes are invisible to
// readers until Commit.
func (s *Store) Begin(ctx context.Context) (domain.PartitionTx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &transaction{txn: s.db.NewTransaction(true), next: make(map[domain.ModelID]uint64)}, nil
}

type transaction struct {
	txn  *badger.Txn
	next map[domain.ModelID]uint64
}

func (tx *transaction) keysWithPrefix(prefix []byte) [][]byte {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = prefix
	it := tx.txn.NewIterator(opts)
	defer it.Close()
	var keys [][]byte
	for it.Rewind(); it.Valid(); it.Next() {
		keys = append(keys, it.Item().KeyCopy(nil))
	}
	return keys
}

func (tx *transaction) deleteFacts(id domain.ModelID) error {
	// collect first; deleting under an open iterator is not allowed
	for _, key := range tx.keysWithPrefix(factsPrefix(id)) {
		if err := tx.txn.Delete(key); err != nil {
			return fmt.Errorf("delete fact: %w", err)
		}
	}
	return nil
}

func (tx *transaction) Clear(ctx context.Context, id domain.ModelID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := tx.deleteFacts(id); err != nil {
		return err
	}
	if err := tx.txn.Set(partitionKey(id), nil); err != nil {
		return fmt.Errorf("mark partition: %w", err)
	}
	tx.next[id] = 1
	return nil
}

func (tx *transaction) nextSeq(id domain.ModelID) uint64 {
	if n, ok := tx.next[id]; ok {
		return n
	}
	prefix := factsPrefix(id)
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Reverse = true
	it := tx.txn.NewIterator(opts)
	defer it.Close()
	seek := append(append([]byte(nil), prefix...), 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff)
	it.Seek(seek)
	if !it.ValidForPrefix(prefix) {
		return 1
	}
	key := it.Item().Key()
	return binary.BigEndian.Uint64(key[len(key)-8:]) + 1
}

func (tx *transaction) AddFacts(ctx context.Context, id domain.ModelID, facts []domain.Fact) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := tx.txn.Set(partitionKey(id), nil); err != nil {
		return fmt.Errorf("mark partition: %w", err)
	}
	seq := tx.nextSeq(id)
	for _, f := range facts {
		val, err := json.Marshal(f)
		if err != nil {
			return fmt.Errorf("encode fact: %w", err)
		}
		if err := tx.txn.Set(factKey(id, seq), val); err != nil {
			return fmt.Errorf("put fact: %w", err)
		}
		seq++
	}
	tx.next[id] = seq
	return nil
}

func (tx *transaction) Delete(ctx context.Context, id domain.ModelID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := tx.deleteFacts(id); err != nil {
		return err
	}
	if err := tx.txn.Delete(partitionKey(id)); err != nil {
		return fmt.Errorf("delete partition: %w", err)
	}
	delete(tx.next, id)
	return nil
}

func (tx *transaction) Commit() error {
	if err := tx.txn.Commit(); err != nil {
		return fmt.Errorf("badger commit failed: %w", err)
	}
	return nil
}

func (tx *transaction) Rollback() error {
	tx.txn.Discard()
	return nil
}

// ExportFacts streams the partition from one read snapshot.
func (s *Store) ExportFacts(ctx context.Context, id domain.ModelID, fn func(domain.Fact) error) error {
	return s.db.View(func(txn *badger.Txn) error {
		if _, err := txn.Get(partitionKey(id)); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return domain.UnknownModel(id)
			}
			return fmt.Errorf("lookup partition: %w", err)
		}
		opts := badger.DefaultIteratorOptions
		opts.Prefix = factsPrefix(id)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var f domain.Fact
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &f)
			}); err != nil {
				return fmt.Errorf("decode fact: %w", err)
			}
			if err := fn(f); err != nil {
				return err
			}
		}
		return nil
	})
}

// HasPartition reports whether id has a partition marker.
func (s *Store) HasPartition(_ context.Context, id domain.ModelID) (bool, error) {
	var ok bool
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(partitionKey(id))
		switch {
		case err == nil:
			ok = true
			return nil
		case errors.Is(err, badger.ErrKeyNotFound):
			return nil
		default:
			return err
		}
	})
	return ok, err
}

// ListPartitionIDs returns partition IDs in key order without reading facts.
func (s *Store) ListPartitionIDs(ctx context.Context) ([]domain.ModelID, error) {
	var out []domain.ModelID
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = partitionPrefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			key := it.Item().Key()
			out = append(out, domain.ModelID(bytes.TrimPrefix(key, partitionPrefix)))
		}
		return nil
	})
	return out, err
}

// Close releases the database.
func (s *Store) Close() error { return s.db.Close() }
