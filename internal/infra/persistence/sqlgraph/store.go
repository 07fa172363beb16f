// Package sqlgraph implements the durable partition store over database/sql.
// The sqlite and postgres packages supply the driver and dialect.
package sqlgraph

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"modelcore/pkg/domain"
)

// Dialect captures the driver differences the store cares about.
type Dialect struct {
	Name string
	// Numbered rewrites `?` placeholders to `$1, $2, ...`.
	Numbered bool
	// ReadTx configures the snapshot transaction used by reads.
	ReadTx *sql.TxOptions
}

// Schema is applied on open. Statements are idempotent.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS partitions (
		model_id TEXT PRIMARY KEY
	)`,
	`CREATE TABLE IF NOT EXISTS facts (
		model_id TEXT NOT NULL,
		seq BIGINT NOT NULL,
		kind TEXT NOT NULL,
		subject TEXT NOT NULL,
		predicate TEXT NOT NULL,
		object TEXT NOT NULL,
		literal TEXT NOT NULL,
		target TEXT NOT NULL,
		PRIMARY KEY (model_id, seq)
	)`,
}

const (
	qDeleteFacts     = `DELETE FROM facts WHERE model_id = ?`
	qDeletePartition = `DELETE FROM partitions WHERE model_id = ?`
	qEnsurePartition = `INSERT INTO partitions(model_id) VALUES(?) ON CONFLICT(model_id) DO NOTHING`
	qMaxSeq          = `SELECT MAX(seq) FROM facts WHERE model_id = ?`
	qInsertFact      = `INSERT INTO facts(model_id, seq, kind, subject, predicate, object, literal, target) VALUES(?, ?, ?, ?, ?, ?, ?, ?)`
	qHasPartition    = `SELECT model_id FROM partitions WHERE model_id = ?`
	qListPartitions  = `SELECT model_id FROM partitions ORDER BY model_id`
	qExportFacts     = `SELECT kind, subject, predicate, object, literal, target FROM facts WHERE model_id = ? ORDER BY seq`
)

// Store persists partitions in the partitions/facts tables.
type Store struct {
	db      *sql.DB
	dialect Dialect
}

var _ domain.PartitionStore = (*Store)(nil)

// New wraps an open database and applies the schema.
func New(ctx context.Context, db *sql.DB, dialect Dialect) (*Store, error) {
	for _, stmt := range Schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("apply %s schema: %w", dialect.Name, err)
		}
	}
	return &Store{db: db, dialect: dialect}, nil
}

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) q(query string) string {
	if !s.dialect.Numbered {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Begin opens a write transaction.
func (s *Store) Begin(ctx context.Context) (domain.PartitionTx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	return &partitionTx{store: s, tx: tx, next: make(map[domain.ModelID]int64)}, nil
}

type partitionTx struct {
	store *Store
	tx    *sql.Tx
	next  map[domain.ModelID]int64
}

func (t *partitionTx) Clear(ctx context.Context, id domain.ModelID) error {
	if _, err := t.tx.ExecContext(ctx, t.store.q(qDeleteFacts), string(id)); err != nil {
		return fmt.Errorf("clear %s: %w", id, err)
	}
	if _, err := t.tx.ExecContext(ctx, t.store.q(qEnsurePartition), string(id)); err != nil {
		return fmt.Errorf("create partition %s: %w", id, err)
	}
	t.next[id] = 1
	return nil
}

func (t *partitionTx) AddFacts(ctx context.Context, id domain.ModelID, facts []domain.Fact) error {
	seq, ok := t.next[id]
	if !ok {
		if _, err := t.tx.ExecContext(ctx, t.store.q(qEnsurePartition), string(id)); err != nil {
			return fmt.Errorf("create partition %s: %w", id, err)
		}
		var maxSeq sql.NullInt64
		if err := t.tx.QueryRowContext(ctx, t.store.q(qMaxSeq), string(id)).Scan(&maxSeq); err != nil && !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("next seq %s: %w", id, err)
		}
		seq = maxSeq.Int64 + 1
	}
	insert := t.store.q(qInsertFact)
	for _, f := range facts {
		if _, err := t.tx.ExecContext(ctx, insert,
			string(id), seq, string(f.Kind), string(f.Subject), string(f.Predicate), string(f.Object), f.Literal, f.Target,
		); err != nil {
			return fmt.Errorf("insert fact %s: %w", f, err)
		}
		seq++
	}
	t.next[id] = seq
	return nil
}

func (t *partitionTx) Delete(ctx context.Context, id domain.ModelID) error {
	if _, err := t.tx.ExecContext(ctx, t.store.q(qDeleteFacts), string(id)); err != nil {
		return fmt.Errorf("delete facts %s: %w", id, err)
	}
	if _, err := t.tx.ExecContext(ctx, t.store.q(qDeletePartition), string(id)); err != nil {
		return fmt.Errorf("delete partition %s: %w", id, err)
	}
	delete(t.next, id)
	return nil
}

func (t *partitionTx) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (t *partitionTx) Rollback() error {
	if err := t.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return err
	}
	return nil
}

// ExportFacts streams one partition inside a single read transaction.
func (s *Store) ExportFacts(ctx context.Context, id domain.ModelID, fn func(domain.Fact) error) error {
	tx, err := s.db.BeginTx(ctx, s.dialect.ReadTx)
	if err != nil {
		return fmt.Errorf("begin read: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	exists, err := hasPartition(ctx, tx, s.q(qHasPartition), id)
	if err != nil {
		return err
	}
	if !exists {
		return domain.UnknownModel(id)
	}
	rows, err := tx.QueryContext(ctx, s.q(qExportFacts), string(id))
	if err != nil {
		return fmt.Errorf("select facts %s: %w", id, err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var kind, subject, predicate, object string
		var f domain.Fact
		if err := rows.Scan(&kind, &subject, &predicate, &object, &f.Literal, &f.Target); err != nil {
			return fmt.Errorf("scan fact: %w", err)
		}
		f.Kind = domain.FactKind(kind)
		f.Subject = domain.IRI(subject)
		f.Predicate = domain.IRI(predicate)
		f.Object = domain.IRI(object)
		if err := fn(f); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate facts %s: %w", id, err)
	}
	return nil
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func hasPartition(ctx context.Context, q queryer, query string, id domain.ModelID) (bool, error) {
	rows, err := q.QueryContext(ctx, query, string(id))
	if err != nil {
		return false, fmt.Errorf("lookup partition %s: %w", id, err)
	}
	defer func() { _ = rows.Close() }()
	found := rows.Next()
	if err := rows.Err(); err != nil {
		return false, fmt.Errorf("lookup partition %s: %w", id, err)
	}
	return found, nil
}

// HasPartition reports whether id has a durable partition.
func (s *Store) HasPartition(ctx context.Context, id domain.ModelID) (bool, error) {
	return hasPartition(ctx, s.db, s.q(qHasPartition), id)
}

// ListPartitionIDs enumerates partitions without reading their facts.
func (s *Store) ListPartitionIDs(ctx context.Context) ([]domain.ModelID, error) {
	rows, err := s.db.QueryContext(ctx, qListPartitions)
	if err != nil {
		return nil, fmt.Errorf("list partitions: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var ids []domain.ModelID
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan partition: %w", err)
		}
		ids = append(ids, domain.ModelID(id))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate partitions: %w", err)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }
