// Package action defines the uniform contract every host mutation in
// nix-installer implements: a tagged kind, a plan/execute/revert
// lifecycle, and a textual description of what each phase does.
package action

import "context"

// Kind is the stable textual tag identifying a concrete action variant.
// It is the serializer's round-trip key (see Registry) and never
// changes once shipped.
type Kind string

// State is a node in the per-action lifecycle from spec.md §3:
//
//	Uninitialized -> Planned -> Completed -> (Reverted == Uninitialized)
type State string

const (
	StateUninitialized State = "uninitialized"
	StatePlanned       State = "planned"
	StateCompleted     State = "completed"
)

// Reversibility is how a kind self-describes its revert behavior
// (spec.md §4.A "Self-description of reversibility"). It is a static
// property of the kind, not a runtime decision.
type Reversibility string

const (
	// ReversibilityLossless means revert fully restores pre-execute state.
	ReversibilityLossless Reversibility = "lossless"
	// ReversibilityBestEffort means revert restores from a recorded
	// backup but cannot guarantee bit-for-bit restoration (e.g. a
	// foreign tool's own state was touched).
	ReversibilityBestEffort Reversibility = "best_effort"
	// ReversibilityNoop means execute has no host-visible effect to
	// undo (e.g. a read-only fetch into a tempfile that is itself
	// reverted by a sibling action).
	ReversibilityNoop Reversibility = "noop"
)

// Description is one human-reviewable line plus optional explanatory
// detail, shown to the user pre-execute (planned) or during revert
// (executed). It mirrors the original program's ActionDescription.
type Description struct {
	Description string
	Explanation []string
}

// NewDescription builds a Description with no explanation lines.
func NewDescription(description string, explanation ...string) Description {
	return Description{Description: description, Explanation: explanation}
}

// Action is the capability set every concrete mutation implements:
// describe-execute, describe-revert, execute, revert, children, and
// (via Registry) serialize. Implementations must not hold any mutex
// across a suspension point inside TryExecute/TryRevert.
type Action interface {
	// Kind returns the stable tag used for serialization.
	Kind() Kind

	// State returns the action's current lifecycle state.
	State() State

	// TracingSynopsis is a short human label, stable across state
	// transitions, used in logs and in composite error synopsis paths.
	TracingSynopsis() string

	// Reversibility is a static property of the kind.
	Reversibility() Reversibility

	// ParallelSafe reports whether this action's children (if any) may
	// be dispatched concurrently by the executor. It is a property of
	// the kind, never a runtime heuristic (spec.md §4.D).
	ParallelSafe() bool

	// Children returns owned child actions in execution order, or nil
	// for a primitive (non-composite) action. Children are never
	// shared between composites.
	Children() []Action

	// PlannedDescriptions returns the lines describing what execute
	// will do. Only callable once State() != StateUninitialized.
	PlannedDescriptions() ([]Description, error)

	// ExecutedDescriptions returns the lines describing what revert
	// will do. Only callable once State() == StateCompleted.
	ExecutedDescriptions() ([]Description, error)

	// TryPlan inspects the host (read-only) and records the minimized
	// work this action will perform, transitioning Uninitialized ->
	// Planned. It must be deterministic for identical input and host
	// state, and must never mutate the host.
	TryPlan(ctx context.Context) error

	// TryExecute performs the recorded mutation, transitioning
	// Planned -> Completed. Only callable from StatePlanned. Must be
	// idempotent: re-running after success either no-ops or returns a
	// typed AlreadyDone error (see errors.go).
	TryExecute(ctx context.Context) error

	// TryRevert undoes the recorded mutation, transitioning Completed
	// -> Uninitialized. Only callable from StateCompleted. Must be
	// idempotent: a second call after success returns nil without
	// further mutation.
	TryRevert(ctx context.Context) error
}
