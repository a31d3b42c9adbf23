// Package cure implements spec.md §4.F: reconciling a freshly computed
// plan against whatever the live host (or a stale receipt) already
// shows, so re-running install against a partial prior install
// converges instead of failing with a blanket "already installed"
// error. Grounded on original_source/src/action/base/*.rs's per-kind
// "is this already present, and does it match?" checks, generalized
// here into a single classification pass over the plan tree.
package cure

import (
	"github.com/nixinstall/nix-installer/internal/action"
	"github.com/nixinstall/nix-installer/internal/plan"
)

// Classification records the verdict reached for one action, plus
// (when Adoptable) the live counterpart it was compared against.
type Classification struct {
	Fresh    action.Action
	Verdict  action.Verdict
	Ghost    action.Action // nil unless Verdict is Matches or Adoptable
	Conflict string        // human-readable reason, set only when Conflicting
}

// Classify walks fresh's top-level actions against ghost's, pairing by
// position (plans from the same planner tag always produce the same
// action sequence for the same settings) and classifying each pair.
// Fresh actions with no ghost counterpart at that position are Missing.
func Classify(fresh, ghost *plan.Plan) []Classification {
	d := plan.CompareTopLevel(fresh, ghost)

	results := make([]Classification, 0, len(fresh.Actions))
	for _, pair := range d.Common {
		results = append(results, classifyPair(pair.Fresh, pair.Ghost))
	}
	for _, a := range d.OnlyFresh {
		results = append(results, Classification{Fresh: a, Verdict: action.VerdictMissing})
	}
	return results
}

func classifyPair(fresh, ghost action.Action) Classification {
	if ghost == nil {
		return Classification{Fresh: fresh, Verdict: action.VerdictMissing}
	}
	if fresh.Kind() != ghost.Kind() {
		return Classification{
			Fresh:    fresh,
			Verdict:  action.VerdictConflicting,
			Conflict: "kind mismatch: fresh plan expects " + string(fresh.Kind()) + " but host shows " + string(ghost.Kind()),
		}
	}

	if adoptable, ok := fresh.(action.AdoptableAction); ok {
		verdict, reason := adoptable.CompareGhost(ghost)
		switch verdict {
		case action.VerdictMatches:
			return Classification{Fresh: fresh, Verdict: action.VerdictMatches, Ghost: ghost}
		case action.VerdictAdoptable:
			adoptable.AdoptGhost(ghost)
			return Classification{Fresh: fresh, Verdict: action.VerdictAdoptable, Ghost: ghost}
		case action.VerdictConflicting:
			return Classification{Fresh: fresh, Verdict: action.VerdictConflicting, Conflict: reason}
		default:
			return Classification{Fresh: fresh, Verdict: action.VerdictMissing}
		}
	}

	// Kinds with no CompareGhost implementation (composites, and
	// primitives with nothing meaningful to adopt) fall back to a
	// coarse presence check: same kind at the same position counts as
	// a match. A composite's children are not classified on their own;
	// Apply marks them Completed together with their parent.
	return Classification{Fresh: fresh, Verdict: action.VerdictMatches, Ghost: ghost}
}

// Apply marks every Matches and Adoptable action Completed directly
// (skipping TryExecute) so the executor only runs TryExecute on
// actions that classified as Missing. It refuses outright, doing
// nothing, if any classification is Conflicting.
func Apply(classifications []Classification) error {
	for _, c := range classifications {
		if c.Verdict == action.VerdictConflicting {
			return action.NewError(action.TagCureConflict, c.Fresh.TracingSynopsis(), &conflictError{reason: c.Conflict})
		}
	}
	for _, c := range classifications {
		if c.Verdict == action.VerdictMatches || c.Verdict == action.VerdictAdoptable {
			restoreCompleted(c.Fresh)
		}
	}
	return nil
}

// restoreCompleted marks a and every descendant Completed. A
// composite whose top-level state is restored this way still has
// children left over from TryPlan in StatePlanned; without walking
// down to them too, a later TryRevert's RevertChildrenSequential (which
// only reverts children already StateCompleted, per spec.md §4.D) would
// skip every one of them, leaving an adopted install's host state
// untouched on uninstall despite the receipt claiming it was reverted.
func restoreCompleted(a action.Action) {
	if restorer, ok := a.(interface{ RestoreState(action.State) }); ok {
		restorer.RestoreState(action.StateCompleted)
	}
	for _, k := range a.Children() {
		restoreCompleted(k)
	}
}

type conflictError struct{ reason string }

func (e *conflictError) Error() string { return e.reason }
