package receipt

import (
	"context"
	"fmt"

	"github.com/nixinstall/nix-installer/internal/action"
	"github.com/nixinstall/nix-installer/internal/plan"
)

// Uninstall reverts every top-level action in p, in reverse order,
// tolerant of individual revert failures the way a failed install's
// automatic rollback is (spec.md §4.D): a host that already drifted
// out from under the receipt (a build user deleted by hand, a unit
// file edited away) must not leave uninstall stuck partway through.
// Every failure is collected and reported, but only an explicit skip
// leaves the receipt in place afterward -- a revert that was attempted
// and failed has nothing left for the receipt to accurately describe,
// while a skip means the caller chose to leave that piece installed.
//
// skip, when non-nil, is consulted before reverting each top-level
// action; returning true leaves that action (and its receipt entry)
// in place, letting an operator uninstall selectively (e.g. keep the
// daemon's persistent state directory).
func Uninstall(ctx context.Context, path string, p *plan.Plan, skip func(action.Action) bool) error {
	var failures []error
	skipped := false

	for i := len(p.Actions) - 1; i >= 0; i-- {
		a := p.Actions[i]
		if skip != nil && skip(a) {
			skipped = true
			continue
		}
		if a.State() != action.StateCompleted {
			continue
		}
		if err := a.TryRevert(ctx); err != nil {
			if action.IsAlreadyDone(err) {
				continue
			}
			failures = append(failures, fmt.Errorf("reverting %s: %w", a.TracingSynopsis(), err))
			continue
		}
		if err := Write(path, p); err != nil {
			failures = append(failures, fmt.Errorf("updating receipt after reverting %s: %w", a.TracingSynopsis(), err))
		}
	}

	if !skipped {
		if err := Delete(path); err != nil {
			failures = append(failures, fmt.Errorf("deleting receipt: %w", err))
		}
	}

	if len(failures) > 0 {
		return action.NewError(action.TagRevertFailed, "uninstall", &action.RevertFailures{Failures: failures})
	}
	return nil
}
