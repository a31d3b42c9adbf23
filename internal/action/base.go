package action

import "fmt"

// Base is embedded by every concrete action to provide the shared
// state-machine bookkeeping, the same way the teacher embeds common
// progress fields into OperationState (pkg/apply/state.go) rather than
// re-deriving them per handler.
type Base struct {
	kind  Kind
	state State
}

// NewBase constructs a Base in StateUninitialized for the given kind.
func NewBase(kind Kind) Base {
	return Base{kind: kind, state: StateUninitialized}
}

func (b *Base) Kind() Kind    { return b.kind }
func (b *Base) State() State  { return b.state }

// MarkPlanned transitions Uninitialized -> Planned. It is a
// programming error to call it from any other state.
func (b *Base) MarkPlanned() error {
	if b.state != StateUninitialized {
		return fmt.Errorf("action %s: cannot plan from state %s", b.kind, b.state)
	}
	b.state = StatePlanned
	return nil
}

// MarkCompleted transitions Planned -> Completed.
func (b *Base) MarkCompleted() error {
	if b.state != StatePlanned {
		return fmt.Errorf("action %s: cannot complete from state %s", b.kind, b.state)
	}
	b.state = StateCompleted
	return nil
}

// MarkReverted transitions Completed -> Uninitialized.
func (b *Base) MarkReverted() error {
	if b.state != StateCompleted {
		return fmt.Errorf("action %s: cannot revert from state %s", b.kind, b.state)
	}
	b.state = StateUninitialized
	return nil
}

// RequirePlanned returns an error unless the action is Planned, for
// TryExecute guards.
func (b *Base) RequirePlanned() error {
	if b.state != StatePlanned {
		return fmt.Errorf("action %s: execute requires state planned, got %s", b.kind, b.state)
	}
	return nil
}

// RequireCompleted returns an error unless the action is Completed,
// for TryRevert guards.
func (b *Base) RequireCompleted() error {
	if b.state != StateCompleted {
		return fmt.Errorf("action %s: revert requires state completed, got %s", b.kind, b.state)
	}
	return nil
}

// RequireDescribable enforces "an Action exposes planned_descriptions
// only when state != Uninitialized" (spec.md §3).
func (b *Base) RequireDescribable() error {
	if b.state == StateUninitialized {
		return fmt.Errorf("action %s: not yet planned", b.kind)
	}
	return nil
}

// RequireExecutedDescribable enforces "exposes executed_descriptions
// only when state = Completed" (spec.md §3).
func (b *Base) RequireExecutedDescribable() error {
	if b.state != StateCompleted {
		return fmt.Errorf("action %s: executed descriptions require state completed, got %s", b.kind, b.state)
	}
	return nil
}
