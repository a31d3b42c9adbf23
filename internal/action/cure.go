package action

// Verdict is the outcome of classifying one fresh action against its
// ghost counterpart during cure (spec.md §4.F step 2). It lives in
// this package, rather than internal/cure, so that concrete action
// kinds in internal/action/base can implement AdoptableAction without
// creating an import cycle back into the cure engine that drives them.
type Verdict string

const (
	// VerdictMatches means the ghost shows the exact same kind and
	// parameters; the action is marked Completed without running
	// TryExecute.
	VerdictMatches Verdict = "matches"
	// VerdictAdoptable means the ghost differs in a way the action
	// declares tolerable; AdoptGhost absorbs the live values and the
	// action is marked Completed.
	VerdictAdoptable Verdict = "adoptable"
	// VerdictMissing means the ghost shows the prerequisite absent;
	// the action stays Planned and executes normally.
	VerdictMissing Verdict = "missing"
	// VerdictConflicting means the ghost shows a kind- or
	// identity-mismatch; cure fails with CureConflict and performs no
	// mutation.
	VerdictConflicting Verdict = "conflicting"
)

// AdoptableAction is implemented by an action kind that knows how to
// compare itself against a ghost counterpart of the same kind and,
// when the ghost differs only in adoptable ways, absorb the ghost's
// live values into itself. Kinds that don't implement it can only ever
// classify as VerdictMatches or VerdictMissing at the cure engine's
// coarse, kind-only granularity.
type AdoptableAction interface {
	Action
	// CompareGhost reports whether ghost is the same resource with
	// matching identity, and if so whether its parameters are
	// identical, adoptably different, or in conflict. A ghost of a
	// different identity (e.g. a different username) should return
	// VerdictMissing, not VerdictConflicting: it simply isn't a
	// counterpart to this action.
	CompareGhost(ghost Action) (verdict Verdict, reason string)
	// AdoptGhost absorbs ghost's live parameter values into the
	// receiver. Called only after CompareGhost returned
	// VerdictAdoptable.
	AdoptGhost(ghost Action)
}
