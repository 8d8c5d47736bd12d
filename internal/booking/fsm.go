// Package booking drives the booking workflow and commits bookings.
package booking

import "slices"

// State is a step of the booking workflow.
type State string

const (
	StateSelectingAddress State = "selecting_address"
	StateSelectingService State = "selecting_service"
	StateSelectingDate    State = "selecting_date"
	StateSelectingOptions State = "selecting_options"
	StateConfirming       State = "confirming"
	StateCommitted        State = "committed"
	StateCanceled         State = "canceled"
)

// Terminal reports whether no further input is accepted.
func (s State) Terminal() bool {
	return s == StateCommitted || s == StateCanceled
}

// FSM holds the allowed transitions of the booking workflow.
type FSM struct {
	transitions map[State][]State
	back        map[State]State
}

// NewFSM creates a new FSM with predefined transitions.
func NewFSM() *FSM {
	return &FSM{
		transitions: map[State][]State{
			StateSelectingAddress: {StateSelectingService, StateCanceled},
			StateSelectingService: {StateSelectingDate, StateSelectingAddress, StateCanceled},
			StateSelectingDate:    {StateSelectingOptions, StateSelectingService, StateCanceled},
			StateSelectingOptions: {StateConfirming, StateSelectingDate, StateCanceled},
			StateConfirming:       {StateCommitted, StateSelectingOptions, StateCanceled},
		},
		back: map[State]State{
			StateSelectingService: StateSelectingAddress,
			StateSelectingDate:    StateSelectingService,
			StateSelectingOptions: StateSelectingDate,
			StateConfirming:       StateSelectingOptions,
		},
	}
}

// CanTransition checks if transition is allowed.
func (f *FSM) CanTransition(from, to State) bool {
	return slices.Contains(f.transitions[from], to)
}

// Previous returns the state a Back input leads to.
func (f *FSM) Previous(from State) (State, bool) {
	s, ok := f.back[from]
	return s, ok
}
