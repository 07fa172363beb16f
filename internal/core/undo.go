package core

import (
	"context"

	"modelcore/internal/modelstore"
	"modelcore/pkg/domain"
)

// UndoAwareRegistry records every committed mutation in a Ledger and
// replays the ledger for undo and redo.
type UndoAwareRegistry struct {
	*Registry
	ledger *Ledger
}

// NewUndoAwareRegistry builds a registry whose mutations are undoable.
func NewUndoAwareRegistry(tbox *domain.TBox, store *modelstore.Store, opts ...Option) *UndoAwareRegistry {
	r := NewRegistry(tbox, store, opts...)
	ledger := NewLedger()
	r.recorder = ledger
	return &UndoAwareRegistry{Registry: r, ledger: ledger}
}

// Ledger exposes the undo/redo ledger.
func (u *UndoAwareRegistry) Ledger() *Ledger { return u.ledger }

// Undo reverts the most recent undo unit of id. It reports false when there
// is nothing to undo. The model lock is held for the whole pop, invert and
// apply sequence.
func (u *UndoAwareRegistry) Undo(ctx context.Context, id domain.ModelID, actor string) (bool, error) {
	var applied bool
	err := u.run(ctx, "undo", id, actor, func(ctx context.Context) error {
		inst, err := u.lockInstance(ctx, id)
		if err != nil {
			return err
		}
		defer inst.mu.Unlock()
		ev, ok := u.ledger.popUndo(id)
		if !ok {
			return nil
		}
		if err := inst.applyLocked(ev.Edits.Invert()); err != nil {
			u.ledger.pushUndo(ev)
			return err
		}
		u.ledger.pushRedo(ev.WithActor(actor))
		applied = true
		return nil
	})
	return applied, err
}

// Redo re-applies the most recently undone unit of id. It reports false when
// there is nothing to redo.
func (u *UndoAwareRegistry) Redo(ctx context.Context, id domain.ModelID, actor string) (bool, error) {
	var applied bool
	err := u.run(ctx, "redo", id, actor, func(ctx context.Context) error {
		inst, err := u.lockInstance(ctx, id)
		if err != nil {
			return err
		}
		defer inst.mu.Unlock()
		ev, ok := u.ledger.popRedo(id)
		if !ok {
			return nil
		}
		if err := inst.applyLocked(ev.Edits); err != nil {
			u.ledger.pushRedo(ev)
			return err
		}
		u.ledger.pushUndo(ev.WithActor(actor))
		applied = true
		return nil
	})
	return applied, err
}

// UndoRedoState returns copies of the undo and redo stacks of id, oldest first.
func (u *UndoAwareRegistry) UndoRedoState(id domain.ModelID) (undo, redo []domain.ChangeEvent) {
	return u.ledger.State(id)
}

// ClearUndoHistory drops the undo stack of id.
func (u *UndoAwareRegistry) ClearUndoHistory(id domain.ModelID) {
	u.ledger.ClearUndo(id)
}
