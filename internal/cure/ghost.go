package cure

import (
	"context"

	"github.com/nixinstall/nix-installer/internal/action"
	"github.com/nixinstall/nix-installer/internal/plan"
)

// GhostInspector is implemented by top-level composite kinds that know
// how to inspect the live host and report whether their effect is
// already present, building a same-kind ghost action carrying the
// live values if so. Kinds that don't implement it are treated by
// SynthesizeGhost as always-present, matching spec.md §4.F's framing
// that a ghost plan is a best-effort reconstruction, not a certainty.
type GhostInspector interface {
	action.Action
	InspectGhost(ctx context.Context) (ghost action.Action, present bool, err error)
}

// SynthesizeGhost builds a "ghost" plan describing the live host's
// current state, shaped like fresh so Classify can pair them up
// position-by-position (spec.md §4.F step 1, the "else synthesize"
// branch used when no prior receipt is present or the operator moved
// one aside). Actions with no GhostInspector implementation are
// assumed present as-is: without a live-state signal to the contrary,
// treating them as a match is the conservative choice that avoids
// clobbering resources this ghost synthesis simply doesn't know how
// to inspect.
func SynthesizeGhost(ctx context.Context, fresh *plan.Plan) (*plan.Plan, error) {
	ghost := &plan.Plan{
		SchemaVersion: fresh.SchemaVersion,
		PlannerTag:    fresh.PlannerTag,
		Archive:       fresh.Archive,
		Settings:      fresh.Settings,
	}

	for _, a := range fresh.Actions {
		inspector, ok := a.(GhostInspector)
		if !ok {
			// No inspection signal for this kind: treat it as present
			// as planned. This is the conservative default described
			// in the doc comment above.
			ghost.Actions = append(ghost.Actions, a)
			continue
		}
		g, present, err := inspector.InspectGhost(ctx)
		if err != nil {
			return nil, err
		}
		if !present {
			// A nil entry tells Classify this position is Missing
			// without needing a kind comparison against nothing.
			ghost.Actions = append(ghost.Actions, nil)
			continue
		}
		ghost.Actions = append(ghost.Actions, g)
	}
	return ghost, nil
}
