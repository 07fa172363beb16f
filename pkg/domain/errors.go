package domain

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel errors of the lifecycle manager's error taxonomy. Typed errors
// below match them through errors.Is.
var (
	ErrUnknownIdentifier = errors.New("unknown identifier")
	ErrAlreadyExists     = errors.New("already exists")
	ErrInconsistentState = errors.New("inconsistent state")
	ErrDurableIO         = errors.New("durable store failure")
	ErrMalformedInput    = errors.New("malformed input")
	ErrMissingIdentifier = errors.New("missing self-declared identifier")
	ErrDisposed          = errors.New("model instance disposed")
)

// IdentifierKind names what an unknown identifier was expected to address.
type IdentifierKind string

// Identifier kinds reported by UnknownIdentifierError.
const (
	IdentifierModel      IdentifierKind = "model"
	IdentifierIndividual IdentifierKind = "individual"
	IdentifierProperty   IdentifierKind = "property"
	IdentifierClass      IdentifierKind = "class"
)

// UnknownIdentifierError is returned when a caller references an ID that is not
// present in the addressed graph or store.
type UnknownIdentifierError struct {
	Kind IdentifierKind
	ID   string
}

func (e *UnknownIdentifierError) Error() string {
	return fmt.Sprintf("unknown %s identifier %s", e.Kind, e.ID)
}

// Is matches ErrUnknownIdentifier.
func (e *UnknownIdentifierError) Is(target error) bool { return target == ErrUnknownIdentifier }

// AlreadyExistsError reports a model ID collision with a live or durable model.
type AlreadyExistsError struct {
	ModelID ModelID
}

func (e *AlreadyExistsError) Error() string {
	return fmt.Sprintf("model %s already exists", e.ModelID)
}

// Is matches ErrAlreadyExists.
func (e *AlreadyExistsError) Is(target error) bool { return target == ErrAlreadyExists }

// DurableIOError wraps a failed durable store operation. Durable state is
// unchanged when it is returned.
type DurableIOError struct {
	Op      string
	ModelID ModelID
	Err     error
}

func (e *DurableIOError) Error() string {
	if e.ModelID == "" {
		return fmt.Sprintf("durable %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("durable %s %s: %v", e.Op, e.ModelID, e.Err)
}

// Unwrap exposes the underlying store error.
func (e *DurableIOError) Unwrap() error { return e.Err }

// Is matches ErrDurableIO.
func (e *DurableIOError) Is(target error) bool { return target == ErrDurableIO }

// MalformedInputError reports a fact, edit or import source that cannot be used.
type MalformedInputError struct {
	Source string
	Reason string
	Err    error
}

func (e *MalformedInputError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed input %s: %s: %v", e.Source, e.Reason, e.Err)
	}
	return fmt.Sprintf("malformed input %s: %s", e.Source, e.Reason)
}

// Unwrap exposes the underlying cause.
func (e *MalformedInputError) Unwrap() error { return e.Err }

// Is matches ErrMalformedInput.
func (e *MalformedInputError) Is(target error) bool { return target == ErrMalformedInput }

// MissingIdentifier builds the error for an import source without a self-declared ID.
func MissingIdentifier(source string) error {
	return &MalformedInputError{Source: source, Reason: "no ontology declaration", Err: ErrMissingIdentifier}
}

// UnknownModel builds the error for an unknown model ID.
func UnknownModel(id ModelID) error {
	return &UnknownIdentifierError{Kind: IdentifierModel, ID: string(id)}
}

// Error type names used for metrics and trace labels.
const (
	ErrTypeUnknownIdentifier = "unknown_identifier"
	ErrTypeAlreadyExists     = "already_exists"
	ErrTypeInconsistent      = "inconsistent"
	ErrTypeDurableIO         = "durable_io"
	ErrTypeMalformed         = "malformed_input"
	ErrTypeDisposed          = "disposed"
	ErrTypeTimeout           = "timeout"
	ErrTypeUnknown           = "unknown"
)

// Classify maps err onto the taxonomy for labelling. It returns "" for nil.
func Classify(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.DeadlineExceeded):
		return ErrTypeTimeout
	case errors.Is(err, ErrUnknownIdentifier):
		return ErrTypeUnknownIdentifier
	case errors.Is(err, ErrAlreadyExists):
		return ErrTypeAlreadyExists
	case errors.Is(err, ErrInconsistentState):
		return ErrTypeInconsistent
	case errors.Is(err, ErrDurableIO):
		return ErrTypeDurableIO
	case errors.Is(err, ErrMalformedInput):
		return ErrTypeMalformed
	case errors.Is(err, ErrDisposed):
		return ErrTypeDisposed
	default:
		return ErrTypeUnknown
	}
}
