package domain

import "context"

// QueryGraphSource yields the query graph a reasoner is bound to. Reasoners
// call it from Flush, which may run concurrently with mutations of the owning
// model; each call returns one immutable published graph.
type QueryGraphSource interface {
	QueryGraph() *QueryGraph
}

// QueryGraphFunc adapts a function to QueryGraphSource.
type QueryGraphFunc func() *QueryGraph

// QueryGraph implements QueryGraphSource.
func (f QueryGraphFunc) QueryGraph() *QueryGraph { return f() }

// Reasoner computes inferred facts for one model.
type Reasoner interface {
	// Flush recomputes derived state from the current query graph.
	Flush(ctx context.Context) error
	IsConsistent(ctx context.Context) (bool, error)
	// Types returns the asserted and inferred named types of individual.
	Types(ctx context.Context, individual IRI) ([]IRI, error)
	Dispose()
}

// ReasonerFactory creates reasoners bound to a query graph source.
type ReasonerFactory interface {
	CreateReasoner(ctx context.Context, source QueryGraphSource) (Reasoner, error)
}

// ValidationInput is what a validator inspects.
type ValidationInput struct {
	Graph    *QueryGraph
	Reasoner Reasoner
}

// Validator checks a model for consistency and shape conformance.
type Validator interface {
	Validate(ctx context.Context, input ValidationInput) (ValidationResult, error)
}

// PartitionTx is one write transaction against the durable graph store.
// Nothing is visible to readers until Commit succeeds.
type PartitionTx interface {
	// Clear makes the partition exist and be empty.
	Clear(ctx context.Context, id ModelID) error
	AddFacts(ctx context.Context, id ModelID, facts []Fact) error
	// Delete removes the partition entirely.
	Delete(ctx context.Context, id ModelID) error
	Commit() error
	Rollback() error
}

// PartitionStore is the durable graph store: one partition per model ID.
// Implementations offer at least read-committed isolation per transaction.
type PartitionStore interface {
	Begin(ctx context.Context) (PartitionTx, error)
	// ExportFacts streams the partition's facts in stored order. It returns an
	// UnknownIdentifierError when the partition does not exist.
	ExportFacts(ctx context.Context, id ModelID, fn func(Fact) error) error
	HasPartition(ctx context.Context, id ModelID) (bool, error)
	ListPartitionIDs(ctx context.Context) ([]ModelID, error)
	Close() error
}

// Format names a serialization format.
type Format string

// Codec converts between bytes and facts in one format.
type Codec interface {
	Format() Format
	Decode(data []byte) ([]Fact, error)
	Encode(facts []Fact) ([]byte, error)
}
