// Package executor implements spec.md §4.D: driving a Plan's top-level
// actions through execute (or revert) in order, with best-effort
// rollback on failure and a progress event stream. Grounded on the
// teacher's pkg/apply orchestration loop -- a sequential driver over a
// list of steps, each of which may itself fan out internally -- with
// the same "abort further dispatch, drain in-flight, unwind
// completed" discipline the teacher applies at cluster-operation
// granularity applied here at action granularity.
package executor

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/nixinstall/nix-installer/internal/action"
	"github.com/nixinstall/nix-installer/internal/plan"
)

// Executor drives a single Plan through execute or revert. It is not
// safe for concurrent reuse across two Execute/Revert calls: each call
// owns the Executor's event channel for its own duration.
type Executor struct {
	Logger *logrus.Logger
	events chan Event
}

// New constructs an Executor that logs through logger, matching the
// teacher's convention of threading one logrus.Logger through the
// whole call chain instead of a package-global.
func New(logger *logrus.Logger) *Executor {
	if logger == nil {
		logger = logrus.New()
	}
	return &Executor{Logger: logger}
}

// Execute runs every top-level action of p's plan in order (the
// array-as-edge-encoding invariant from spec.md §4.C). ctx cancellation
// triggers a Cancelled rollback the same as an action failure would;
// hardCtx cancellation aborts immediately with no rollback and no
// receipt (spec.md §7 HardAbort, the "second interrupt" case -- see
// cancel.go).
func (e *Executor) Execute(ctx context.Context, hardCtx context.Context, p *plan.Plan) (*plan.Plan, error) {
	if e.events == nil {
		e.events = make(chan Event, p.TotalActions()+8)
	}
	defer close(e.events)

	var completed []action.Action
	for _, a := range p.Actions {
		select {
		case <-hardCtx.Done():
			e.Logger.Warn("hard abort requested, skipping rollback")
			return p, action.NewError(action.TagHardAbort, "execute", hardCtx.Err())
		default:
		}
		if err := ctx.Err(); err != nil {
			e.Logger.WithError(err).Warn("execution cancelled, rolling back")
			return p, e.rollback(ctx, completed, action.NewError(action.TagCancelled, "execute", err))
		}

		// An action already at StateCompleted here was cured: the cure
		// engine classified it as Matches/Adoptable against the live
		// host and restored its state directly (see internal/cure),
		// skipping TryExecute for anything cure already found present.
		if a.State() == action.StateCompleted {
			completed = append(completed, a)
			e.emit(Event{Kind: EventCompleted, Synopsis: a.TracingSynopsis()})
			continue
		}

		e.emit(Event{Kind: EventExecuting, Synopsis: a.TracingSynopsis()})
		if err := a.TryExecute(ctx); err != nil && !action.IsAlreadyDone(err) {
			e.emit(Event{Kind: EventFailed, Synopsis: a.TracingSynopsis(), Err: err})
			e.Logger.WithError(err).WithField("action", a.TracingSynopsis()).Error("action failed, rolling back")
			return p, e.rollback(ctx, completed, err)
		}
		completed = append(completed, a)
		e.emit(Event{Kind: EventCompleted, Synopsis: a.TracingSynopsis()})
	}
	return p, nil
}

// rollback reverts completed in reverse order, collecting (never
// stopping on) revert failures, and wraps cause together with them in
// a RollbackError (spec.md §4.D step 4). cause may already be a
// RollbackError of its own: a composite that failed partway through
// its own children reverts them itself before returning (see
// Composite.RollbackOnFailure), since the executor's completed list
// never includes a top-level action whose TryExecute itself failed.
// That inner RollbackError is flattened into this one rather than
// nested, so the caller sees one flat list of revert failures and the
// one underlying cause.
func (e *Executor) rollback(ctx context.Context, completed []action.Action, cause error) error {
	var failures []error
	if inner, ok := cause.(*action.RollbackError); ok {
		failures = append(failures, inner.RevertFailures...)
		cause = inner.Cause
	}
	for i := len(completed) - 1; i >= 0; i-- {
		a := completed[i]
		e.emit(Event{Kind: EventReverting, Synopsis: a.TracingSynopsis()})
		if err := a.TryRevert(ctx); err != nil {
			failures = append(failures, fmt.Errorf("reverting %s: %w", a.TracingSynopsis(), err))
			e.emit(Event{Kind: EventFailed, Synopsis: a.TracingSynopsis(), Err: err})
			e.Logger.WithError(err).WithField("action", a.TracingSynopsis()).Error("revert failed, continuing rollback")
			continue
		}
		e.emit(Event{Kind: EventReverted, Synopsis: a.TracingSynopsis()})
	}
	return &action.RollbackError{Cause: cause, RevertFailures: failures}
}

// Revert drives every top-level action of p in reverse order, tolerant
// of individual revert failures, without the completed-only filtering
// a post-failure rollback needs (every top-level action of a
// successfully executed plan is Completed by definition). Used by
// standalone uninstall; see internal/receipt.Uninstall for the
// receipt-aware wrapper that also deletes the receipt file.
func (e *Executor) Revert(ctx context.Context, p *plan.Plan) error {
	if e.events == nil {
		e.events = make(chan Event, p.TotalActions()+8)
	}
	defer close(e.events)

	var failures []error
	for i := len(p.Actions) - 1; i >= 0; i-- {
		a := p.Actions[i]
		if a.State() != action.StateCompleted {
			continue
		}
		e.emit(Event{Kind: EventReverting, Synopsis: a.TracingSynopsis()})
		if err := a.TryRevert(ctx); err != nil {
			failures = append(failures, fmt.Errorf("reverting %s: %w", a.TracingSynopsis(), err))
			e.emit(Event{Kind: EventFailed, Synopsis: a.TracingSynopsis(), Err: err})
			continue
		}
		e.emit(Event{Kind: EventReverted, Synopsis: a.TracingSynopsis()})
	}
	if len(failures) > 0 {
		return &action.RevertFailures{Failures: failures}
	}
	return nil
}
