package core

import (
	"sync"

	"modelcore/pkg/domain"
)

// ChangeRecorder receives every change event the mutation path commits.
// RecordChange is called with the model lock held.
type ChangeRecorder interface {
	RecordChange(event domain.ChangeEvent)
}

// ledgerEntry holds the undo and redo stacks of one model; the top is the
// last element.
type ledgerEntry struct {
	undo []domain.ChangeEvent
	redo []domain.ChangeEvent
}

// Ledger keeps per-model undo and redo stacks. Its lock is always acquired
// after the model lock, never before.
type Ledger struct {
	mu      sync.Mutex
	entries map[domain.ModelID]*ledgerEntry
}

var _ ChangeRecorder = (*Ledger)(nil)

// NewLedger returns an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{entries: make(map[domain.ModelID]*ledgerEntry)}
}

func (l *Ledger) entry(id domain.ModelID) *ledgerEntry {
	e, ok := l.entries[id]
	if !ok {
		e = &ledgerEntry{}
		l.entries[id] = e
	}
	return e
}

// RecordChange pushes event and clears the redo stack. When event carries
// the same non-empty token as the top of the undo stack its edits are
// appended to that event instead.
func (l *Ledger) RecordChange(event domain.ChangeEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e := l.entry(event.ModelID)
	e.redo = nil
	if n := len(e.undo); n > 0 && event.Token != "" && e.undo[n-1].Token == event.Token {
		merged := e.undo[n-1].Clone()
		merged.Edits = append(merged.Edits, event.Edits...)
		e.undo[n-1] = merged
		return
	}
	e.undo = append(e.undo, event.Clone())
}

func (l *Ledger) popUndo(id domain.ModelID) (domain.ChangeEvent, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[id]
	if !ok || len(e.undo) == 0 {
		return domain.ChangeEvent{}, false
	}
	ev := e.undo[len(e.undo)-1]
	e.undo = e.undo[:len(e.undo)-1]
	return ev, true
}

func (l *Ledger) popRedo(id domain.ModelID) (domain.ChangeEvent, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[id]
	if !ok || len(e.redo) == 0 {
		return domain.ChangeEvent{}, false
	}
	ev := e.redo[len(e.redo)-1]
	e.redo = e.redo[:len(e.redo)-1]
	return ev, true
}

func (l *Ledger) pushRedo(ev domain.ChangeEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e := l.entry(ev.ModelID)
	e.redo = append(e.redo, ev)
}

// pushUndo pushes without touching redo and without coalescing.
func (l *Ledger) pushUndo(ev domain.ChangeEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e := l.entry(ev.ModelID)
	e.undo = append(e.undo, ev)
}

// State returns copies of the undo and redo stacks, oldest first.
func (l *Ledger) State(id domain.ModelID) (undo, redo []domain.ChangeEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[id]
	if !ok {
		return nil, nil
	}
	undo = make([]domain.ChangeEvent, len(e.undo))
	for i, ev := range e.undo {
		undo[i] = ev.Clone()
	}
	redo = make([]domain.ChangeEvent, len(e.redo))
	for i, ev := range e.redo {
		redo[i] = ev.Clone()
	}
	return undo, redo
}

// ClearUndo drops the undo stack of id; redo is kept.
func (l *Ledger) ClearUndo(id domain.ModelID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if e, ok := l.entries[id]; ok {
		e.undo = nil
	}
}

// Forget drops both stacks of id.
func (l *Ledger) Forget(id domain.ModelID) {
	l.mu.Lock()
	delete(l.entries, id)
	l.mu.Unlock()
}
