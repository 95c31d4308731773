package workflow

import (
	"context"
	"fmt"
)

// GuardFunc is a function that evaluates whether a transition should be allowed
type GuardFunc func(ctx context.Context) bool

// StateMachine tracks the current state of one expense and validates transitions
type StateMachine interface {
	// State returns the current state
	State() State

	// CanFire returns true if the trigger is permitted in the current state
	CanFire(trigger Trigger) bool

	// Fire attempts to execute the trigger, transitioning to the new state if allowed
	Fire(ctx context.Context, trigger Trigger) error
}

type transition struct {
	toState State
	guard   GuardFunc
}

// Definition is an immutable transition table shared by every machine built from it
type Definition struct {
	transitions map[State]map[Trigger][]transition
}

// NewDefinition creates an empty transition table
func NewDefinition() *Definition {
	return &Definition{transitions: make(map[State]map[Trigger][]transition)}
}

// Permit allows trigger to move from one state to another
func (d *Definition) Permit(from State, trigger Trigger, to State) *Definition {
	return d.PermitIf(from, trigger, to, nil)
}

// PermitIf allows trigger to move from one state to another when guard passes.
// Guards registered for the same (state, trigger) are tried in order.
func (d *Definition) PermitIf(from State, trigger Trigger, to State, guard GuardFunc) *Definition {
	if !from.IsValid() {
		panic(fmt.Sprintf("invalid state: %s", from))
	}
	if !to.IsValid() {
		panic(fmt.Sprintf("invalid target state: %s", to))
	}
	if from.IsTerminal() {
		panic(fmt.Sprintf("terminal state %s cannot have transitions", from))
	}

	byTrigger, ok := d.transitions[from]
	if !ok {
		byTrigger = make(map[Trigger][]transition)
		d.transitions[from] = byTrigger
	}
	byTrigger[trigger] = append(byTrigger[trigger], transition{toState: to, guard: guard})
	return d
}

// Build creates a machine positioned at the initial state
func (d *Definition) Build(initial State) (StateMachine, error) {
	if !initial.IsValid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidState, initial)
	}
	return &stateMachine{current: initial, def: d}, nil
}

type stateMachine struct {
	current State
	def     *Definition
}

func (m *stateMachine) State() State {
	return m.current
}

func (m *stateMachine) CanFire(trigger Trigger) bool {
	return len(m.def.transitions[m.current][trigger]) > 0
}

func (m *stateMachine) Fire(ctx context.Context, trigger Trigger) error {
	candidates := m.def.transitions[m.current][trigger]
	if len(candidates) == 0 {
		return fmt.Errorf("%w: cannot fire trigger %s from state %s", ErrInvalidTransition, trigger, m.current)
	}

	for _, t := range candidates {
		if t.guard == nil || t.guard(ctx) {
			m.current = t.toState
			return nil
		}
	}

	return fmt.Errorf("%w: trigger %s from state %s", ErrGuardFailed, trigger, m.current)
}

var expenseLifecycle = NewDefinition().
	Permit(StateDraft, TriggerSubmit, StatePending).
	Permit(StatePending, TriggerApprove, StateApproved).
	Permit(StatePending, TriggerReject, StateRejected)

// NewExpenseMachine returns a machine for the expense lifecycle
// draft -> pending -> approved|rejected, starting at the persisted status.
func NewExpenseMachine(current State) (StateMachine, error) {
	return expenseLifecycle.Build(current)
}
