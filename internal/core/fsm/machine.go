// Package fsm provides table-driven finite-state machines for document lifecycles.
//
// A Machine only knows which (state, event) pairs are legal. Guards that need
// document data (amounts, actors, expiry dates) live in the document services,
// which call Fire after the guard passes.
package fsm

import (
	"slices"

	"procura/internal/core/apperror"
)

// Transition declares that Event moves a document from any of From to To.
type Transition[S ~string, E ~string] struct {
	From  []S
	Event E
	To    S
}

// Machine is an immutable transition table.
type Machine[S ~string, E ~string] struct {
	entity string
	states []S
	table  map[S]map[E]S
}

// New builds a machine for entity over the given states.
// Panics on a transition that references an undeclared state or is declared twice.
func New[S ~string, E ~string](entity string, states []S, transitions ...Transition[S, E]) *Machine[S, E] {
	m := &Machine[S, E]{
		entity: entity,
		states: slices.Clone(states),
		table:  make(map[S]map[E]S, len(states)),
	}
	for _, s := range states {
		m.table[s] = make(map[E]S)
	}
	for _, tr := range transitions {
		if _, ok := m.table[tr.To]; !ok {
			panic("fsm: " + entity + ": unknown target state " + string(tr.To))
		}
		for _, from := range tr.From {
			events, ok := m.table[from]
			if !ok {
				panic("fsm: " + entity + ": unknown source state " + string(from))
			}
			if _, dup := events[tr.Event]; dup {
				panic("fsm: " + entity + ": duplicate transition " + string(from) + "/" + string(tr.Event))
			}
			events[tr.Event] = tr.To
		}
	}
	return m
}

// Entity returns the document type name used in errors.
func (m *Machine[S, E]) Entity() string { return m.entity }

// States returns all declared states.
func (m *Machine[S, E]) States() []S { return slices.Clone(m.states) }

// Can reports whether event is legal from state.
func (m *Machine[S, E]) Can(from S, event E) bool {
	_, ok := m.table[from][event]
	return ok
}

// Fire returns the target state of event from state, or INVALID_TRANSITION.
func (m *Machine[S, E]) Fire(from S, event E) (S, error) {
	to, ok := m.table[from][event]
	if !ok {
		return from, apperror.NewInvalidTransition(m.entity, string(from), string(event))
	}
	return to, nil
}

// Check is Fire without the target state.
func (m *Machine[S, E]) Check(from S, event E) error {
	_, err := m.Fire(from, event)
	return err
}

// Events lists the events legal from state, sorted.
func (m *Machine[S, E]) Events(from S) []E {
	events := make([]E, 0, len(m.table[from]))
	for e := range m.table[from] {
		events = append(events, e)
	}
	slices.Sort(events)
	return events
}

// IsTerminal reports whether no event leaves state.
func (m *Machine[S, E]) IsTerminal(s S) bool {
	return len(m.table[s]) == 0
}
