package domain

import "time"

// EditOp is the closed set of low-level graph edits.
type EditOp uint8

const (
	// EditAdd inserts a fact.
	EditAdd EditOp = iota + 1
	// EditRemove deletes a fact.
	EditRemove
)

func (op EditOp) String() string {
	switch op {
	case EditAdd:
		return "add"
	case EditRemove:
		return "remove"
	default:
		return "unknown"
	}
}

// MarshalText encodes the op for JSON payloads.
func (op EditOp) MarshalText() ([]byte, error) { return []byte(op.String()), nil }

// UnmarshalText decodes the op from JSON payloads.
func (op *EditOp) UnmarshalText(b []byte) error {
	switch string(b) {
	case "add":
		*op = EditAdd
	case "remove":
		*op = EditRemove
	default:
		return &MalformedInputError{Source: string(b), Reason: "unknown edit op"}
	}
	return nil
}

// Edit is one add or remove of a fact.
type Edit struct {
	Op   EditOp `json:"op"`
	Fact Fact   `json:"fact"`
}

// Add builds an add edit.
func Add(f Fact) Edit { return Edit{Op: EditAdd, Fact: f} }

// Remove builds a remove edit.
func Remove(f Fact) Edit { return Edit{Op: EditRemove, Fact: f} }

// Invert returns the structural inverse of the edit.
func (e Edit) Invert() Edit {
	switch e.Op {
	case EditAdd:
		return Edit{Op: EditRemove, Fact: e.Fact}
	case EditRemove:
		return Edit{Op: EditAdd, Fact: e.Fact}
	}
	return e
}

// EditList is an ordered sequence of edits applied as one unit.
type EditList []Edit

// Invert returns the inverse list: every edit inverted, in reverse order.
func (l EditList) Invert() EditList {
	out := make(EditList, len(l))
	for i, e := range l {
		out[len(l)-1-i] = e.Invert()
	}
	return out
}

// Validate checks every fact before anything is applied.
func (l EditList) Validate() error {
	for _, e := range l {
		if e.Op != EditAdd && e.Op != EditRemove {
			return &MalformedInputError{Source: e.Fact.String(), Reason: "unknown edit op"}
		}
		if err := e.Fact.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Effective simulates the list against view and returns only the edits that
// change state, in order. Adding a present fact or removing an absent one is
// dropped so that the inverse of the result restores view exactly.
func (l EditList) Effective(view GraphView) EditList {
	present := make(map[string]bool, len(l))
	out := make(EditList, 0, len(l))
	for _, e := range l {
		key := e.Fact.Key()
		has, seen := present[key]
		if !seen {
			has = view.Contains(e.Fact)
		}
		switch {
		case e.Op == EditAdd && !has:
			present[key] = true
			out = append(out, e)
		case e.Op == EditRemove && has:
			present[key] = false
			out = append(out, e)
		default:
			present[key] = has
		}
	}
	return out
}

// Clone returns an independent copy.
func (l EditList) Clone() EditList {
	return append(EditList(nil), l...)
}

// Metadata carries the caller identity and coalescing token of a request.
type Metadata struct {
	// ActorID is the trusted, caller-supplied operator identity.
	ActorID string
	// Token groups several mutations of one logical request into one undo unit.
	Token string
}

// ChangeEvent is one recorded, undoable unit of edits. It is never mutated
// after creation; coalescing produces a new event.
type ChangeEvent struct {
	ID        string    `json:"id"`
	ModelID   ModelID   `json:"model_id"`
	ActorID   string    `json:"actor_id"`
	Token     string    `json:"token,omitempty"`
	Edits     EditList  `json:"edits"`
	Timestamp time.Time `json:"timestamp"`
}

// Clone returns a deep copy of the event.
func (c ChangeEvent) Clone() ChangeEvent {
	cp := c
	cp.Edits = c.Edits.Clone()
	return cp
}

// WithActor returns a copy attributed to actor.
func (c ChangeEvent) WithActor(actor string) ChangeEvent {
	cp := c.Clone()
	cp.ActorID = actor
	return cp
}
