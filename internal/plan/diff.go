package plan

import "github.com/nixinstall/nix-installer/internal/action"

// Diff pairs up two plans' top-level actions by index, since plans
// from the same planner tag always produce the same action sequence
// for the same settings (spec.md §4.C determinism invariant). It
// exists mainly to give internal/cure a structural starting point:
// cure additionally classifies by kind and parameters, not just
// position, but a same-shape diff is the cheap first pass.
type Diff struct {
	Fresh    []action.Action
	Ghost    []action.Action
	OnlyFresh []action.Action
	OnlyGhost []action.Action
	Common   []ActionPair
}

// ActionPair is one fresh/ghost action found at the same top-level
// index in both plans.
type ActionPair struct {
	Fresh action.Action
	Ghost action.Action
}

// CompareTopLevel builds a Diff between two plans' top-level action
// slices. It does not recurse into composite children; internal/cure
// does that per-pair once it knows which pairs are worth descending
// into.
func CompareTopLevel(fresh, ghost *Plan) Diff {
	d := Diff{Fresh: fresh.Actions, Ghost: ghost.Actions}
	n := len(fresh.Actions)
	if len(ghost.Actions) < n {
		n = len(ghost.Actions)
	}
	for i := 0; i < n; i++ {
		d.Common = append(d.Common, ActionPair{Fresh: fresh.Actions[i], Ghost: ghost.Actions[i]})
	}
	if len(fresh.Actions) > n {
		d.OnlyFresh = append(d.OnlyFresh, fresh.Actions[n:]...)
	}
	if len(ghost.Actions) > n {
		d.OnlyGhost = append(d.OnlyGhost, ghost.Actions[n:]...)
	}
	return d
}
