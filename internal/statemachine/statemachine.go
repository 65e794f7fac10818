// Package statemachine implements the per-symbol trading state machine
// spec.md §4.2 describes, grounded on original_source/core/state_machine.py.
package statemachine

import (
	"fmt"
	"sync"
)

// State is one of the five per-symbol lifecycle states.
type State string

const (
	StateIdle          State = "IDLE"
	StateEval          State = "EVAL"
	StateEntryPending  State = "ENTRY_PENDING"
	StateInPosition    State = "IN_POSITION"
	StateExitPending   State = "EXIT_PENDING"
)

// validTransitions enumerates every allowed edge; anything else is rejected.
// Grounded on original_source/core/state_machine.py's transition table.
var validTransitions = map[State]map[State]bool{
	StateIdle:         {StateEval: true},
	StateEval:         {StateIdle: true, StateEntryPending: true},
	StateEntryPending: {StateInPosition: true, StateIdle: true},
	StateInPosition:   {StateExitPending: true},
	StateExitPending:  {StateIdle: true, StateInPosition: true},
}

// Machine is a single symbol's state machine, guarded by its own mutex so
// concurrent ticks across symbols never contend.
type Machine struct {
	symbol string

	mu    sync.Mutex
	state State
}

// New starts a symbol's machine in IDLE.
func New(symbol string) *Machine {
	return &Machine{symbol: symbol, state: StateIdle}
}

func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Transition moves to `to` if the edge from the current state is valid,
// otherwise returns an error naming both states (spec.md §4.2: an invalid
// transition is a defect, never silently ignored).
func (m *Machine) Transition(to State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	allowed := validTransitions[m.state]
	if !allowed[to] {
		return fmt.Errorf("statemachine: %s: invalid transition %s -> %s", m.symbol, m.state, to)
	}
	m.state = to
	return nil
}

// Restore force-sets the machine's state without edge validation. Used
// only at engine startup to reconstruct a symbol's state from open trades
// in the repository (spec.md §4.2: "state is in-memory and reconstructed
// on engine startup by inspecting open trades") — never during a tick.
func (m *Machine) Restore(state State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = state
}

// MustTransition is Transition for call sites that have already validated
// the edge is legal and would rather panic than silently continue in a
// corrupted state. The engine itself does not call it; the trading loop
// uses Transition.
func (m *Machine) MustTransition(to State) {
	if err := m.Transition(to); err != nil {
		panic(err)
	}
}
