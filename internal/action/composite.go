package action

import (
	"context"
	"fmt"
	"sync/atomic"
)

// Composite embeds Base and adds the child-state-derivation rule from
// spec.md §3: "Composite Action state is a monotonic function of its
// children's states: it becomes Completed iff all children are
// Completed; it becomes Reverted iff all children are Uninitialized."
//
// Concrete composites (internal/action/composite) embed Composite,
// populate Kids in TryPlan, and drive them from TryExecute/TryRevert;
// Composite.Sync recomputes the aggregate state after each child
// transition so partial execution is always observable and resumable.
type Composite struct {
	Base
	Kids       []Action
	parallel   bool
	synopsis   string
	planLines  []Description
}

// NewComposite constructs a Composite for the given kind and synopsis.
// parallelSafe declares, once and for all, whether this kind's children
// may be dispatched concurrently by the executor.
func NewComposite(kind Kind, synopsis string, parallelSafe bool) Composite {
	return Composite{Base: NewBase(kind), synopsis: synopsis, parallel: parallelSafe}
}

func (c *Composite) TracingSynopsis() string { return c.synopsis }
func (c *Composite) ParallelSafe() bool      { return c.parallel }
func (c *Composite) Children() []Action      { return c.Kids }
func (c *Composite) Reversibility() Reversibility {
	// A composite is only as reversible as its weakest child.
	worst := ReversibilityLossless
	for _, k := range c.Kids {
		switch k.Reversibility() {
		case ReversibilityNoop:
			if worst == ReversibilityLossless {
				worst = ReversibilityNoop
			}
		case ReversibilityBestEffort:
			worst = ReversibilityBestEffort
		}
	}
	return worst
}

// Sync recomputes c.state from the children's current states. Call
// this after every child transition (spec.md §3: "Partial children are
// allowed mid-execution and resumed via the receipt.").
func (c *Composite) Sync() {
	if len(c.Kids) == 0 {
		return
	}
	allCompleted := true
	allUninitialized := true
	for _, k := range c.Kids {
		if k.State() != StateCompleted {
			allCompleted = false
		}
		if k.State() != StateUninitialized {
			allUninitialized = false
		}
	}
	switch {
	case allCompleted:
		c.state = StateCompleted
	case allUninitialized && c.state == StateCompleted:
		c.state = StateUninitialized
	}
}

// MarkCompleted shadows Base.MarkCompleted: a composite's completion
// is derived from its children (Sync), not asserted independently, so
// this reconciles the two rather than re-checking Base's Planned-only
// precondition, which Sync has often already advanced past by the
// time a concrete composite's TryExecute calls this. A composite
// planned with zero children (an inapplicable phase, e.g. --no-start-
// daemon) has nothing for Sync to derive from and completes directly.
func (c *Composite) MarkCompleted() error {
	if len(c.Kids) == 0 {
		if c.state != StatePlanned && c.state != StateCompleted {
			return fmt.Errorf("action %s: cannot complete from state %s", c.kind, c.state)
		}
		c.state = StateCompleted
		return nil
	}
	c.Sync()
	if c.state != StateCompleted {
		return fmt.Errorf("action %s: cannot complete, children not all completed (state %s)", c.kind, c.state)
	}
	return nil
}

// MarkReverted is MarkCompleted's mirror for revert.
func (c *Composite) MarkReverted() error {
	if len(c.Kids) == 0 {
		if c.state != StateCompleted && c.state != StateUninitialized {
			return fmt.Errorf("action %s: cannot revert from state %s", c.kind, c.state)
		}
		c.state = StateUninitialized
		return nil
	}
	c.Sync()
	if c.state != StateUninitialized {
		return fmt.Errorf("action %s: cannot revert, children not all reverted (state %s)", c.kind, c.state)
	}
	return nil
}

// SetPlannedDescriptions stores the lines a composite exposes for
// review once planned; concrete composites call this at the end of
// TryPlan, after populating Kids.
func (c *Composite) SetPlannedDescriptions(lines []Description) { c.planLines = lines }

// PlannedDescriptions concatenates the composite's own line(s) with
// those of its children, matching spec.md's convention that a
// composite's description is a rollup of its children's.
func (c *Composite) PlannedDescriptions() ([]Description, error) {
	if err := c.RequireDescribable(); err != nil {
		return nil, err
	}
	out := append([]Description{}, c.planLines...)
	for _, k := range c.Kids {
		lines, err := k.PlannedDescriptions()
		if err != nil {
			return nil, err
		}
		out = append(out, lines...)
	}
	return out, nil
}

// ExecutedDescriptions is the revert-time symmetric rollup, in reverse
// child order (children revert in reverse of execute order).
func (c *Composite) ExecutedDescriptions() ([]Description, error) {
	if err := c.RequireExecutedDescribable(); err != nil {
		return nil, err
	}
	out := []Description{}
	for i := len(c.Kids) - 1; i >= 0; i-- {
		lines, err := c.Kids[i].ExecutedDescriptions()
		if err != nil {
			return nil, err
		}
		out = append(out, lines...)
	}
	return out, nil
}

// MaxParallelChildren bounds how many children ExecuteChildrenParallel
// (and executeUsersParallel in internal/action/composite) dispatch at
// once. It is a package variable rather than a Settings field, swapped
// the same way internal/action/base.Host is, so tests can shrink it
// and cmd/nix-installer can raise it without threading a parameter
// through every composite constructor. spec.md §5 calls for "a
// blocking-thread pool with a bounded capacity"; this is that bound,
// implemented as a channel semaphore the way the teacher's
// pkg/apply#executeParallel fan-out gated its own concurrent workers.
var MaxParallelChildren = 8

// SemaphoreWidth returns the current bounded-dispatch width, clamped
// to at least 1. Exported so callers outside this package (e.g.
// internal/action/composite's executeUsersParallel) that implement
// their own bounded fan-out share the same configurable knob.
func SemaphoreWidth() int {
	if MaxParallelChildren < 1 {
		return 1
	}
	return MaxParallelChildren
}

// ExecuteChildrenSequential runs each child's TryExecute in order,
// stopping on the first failure. It implements the non-parallel-safe
// half of spec.md §4.D step 2.
func (c *Composite) ExecuteChildrenSequential(ctx context.Context) error {
	for _, k := range c.Kids {
		if err := k.TryExecute(ctx); err != nil {
			c.Sync()
			return c.RollbackOnFailure(ctx, Enrich(err, c.synopsis))
		}
		c.Sync()
	}
	return nil
}

// ExecuteChildrenParallel dispatches children through a bounded
// semaphore (width MaxParallelChildren), drains all in-flight children
// on the first failure (spec.md §4.D step 3: "Aborts further
// dispatch... Waits for already-started siblings to finish (drain)"),
// and returns the first-encountered error enriched with this
// composite's synopsis.
func (c *Composite) ExecuteChildrenParallel(ctx context.Context) error {
	type outcome struct {
		idx int
		err error
	}
	sem := make(chan struct{}, SemaphoreWidth())
	results := make(chan outcome, len(c.Kids))
	var aborted atomic.Bool
	for i, k := range c.Kids {
		sem <- struct{}{}
		if aborted.Load() {
			<-sem
			results <- outcome{idx: i}
			continue
		}
		go func(i int, k Action) {
			defer func() { <-sem }()
			err := k.TryExecute(ctx)
			if err != nil {
				aborted.Store(true)
			}
			results <- outcome{idx: i, err: err}
		}(i, k)
	}
	var firstErr error
	for range c.Kids {
		res := <-results
		if res.err != nil && firstErr == nil {
			firstErr = res.err
		}
	}
	c.Sync()
	if firstErr != nil {
		return c.RollbackOnFailure(ctx, Enrich(firstErr, c.synopsis))
	}
	return nil
}

// RollbackOnFailure best-effort reverts every child already Completed
// and folds any revert failures together with cause into a
// RollbackError. A composite's own TryExecute never reaches Completed
// once a child (or a step after all children succeeded, e.g.
// ProvisionSELinux's trailing semanage call) fails, so it is never
// added to the executor's top-level completed list and its own
// already-applied children would otherwise be orphaned on the host
// (spec.md §4.D step 4, testable property "rollback completeness").
// cause should already carry this composite's synopsis (via Enrich or
// a direct NewError call) before being passed in.
func (c *Composite) RollbackOnFailure(ctx context.Context, cause error) error {
	revertErr := c.RevertChildrenSequential(ctx)
	if revertErr == nil {
		return &RollbackError{Cause: cause}
	}
	failures := []error{revertErr}
	if rf, ok := revertErr.(*RevertFailures); ok {
		failures = rf.Failures
	}
	return &RollbackError{Cause: cause, RevertFailures: failures}
}

// RevertChildrenSequential runs each child's TryRevert in reverse
// order, collecting (not stopping on) failures per spec.md §4.D's
// best-effort rollback discipline extended to revert-of-a-composite.
func (c *Composite) RevertChildrenSequential(ctx context.Context) error {
	var failures []error
	for i := len(c.Kids) - 1; i >= 0; i-- {
		if c.Kids[i].State() != StateCompleted {
			continue
		}
		if err := c.Kids[i].TryRevert(ctx); err != nil {
			failures = append(failures, err)
		}
		c.Sync()
	}
	if len(failures) > 0 {
		return &RevertFailures{Failures: failures}
	}
	return nil
}
