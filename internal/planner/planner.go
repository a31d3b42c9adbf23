// Package planner is the external collaborator spec.md §1 carves out
// of the core: given resolved settings, it assembles ten composite
// phases into a concrete Plan. The
// core (internal/plan, internal/action) specifies the contract a
// planner must honor -- top-level actions execute left to right -- not
// which per-OS recipe produces them; this package is one such recipe,
// grounded on the teacher's pkg/plan build-from-cluster-spec style of
// assembling a Plan from smaller, independently testable pieces.
package planner

import (
	"context"
	"fmt"

	"github.com/nixinstall/nix-installer/internal/action"
	"github.com/nixinstall/nix-installer/internal/action/composite"
	"github.com/nixinstall/nix-installer/internal/config"
	"github.com/nixinstall/nix-installer/internal/plan"
)

// Planner builds a Plan for one target platform from resolved
// settings. Concrete planners (linux.go, darwin.go) each own their own
// filesystem layout decisions; this interface is the seam the executor
// and cure engine depend on, never a concrete planner directly.
type Planner interface {
	// Tag identifies this planner in Plan.PlannerTag, so a receipt
	// records which recipe produced it.
	Tag() string
	Build(ctx context.Context, archive plan.ArchiveSource, settings config.Settings) (*plan.Plan, error)
}

// For selects the planner appropriate to goos ("linux" or "darwin"),
// matching runtime.GOOS at call sites that don't need to plan for a
// foreign platform.
func For(goos string) (Planner, error) {
	switch goos {
	case "linux":
		return &Linux{}, nil
	case "darwin":
		return &Darwin{}, nil
	default:
		return nil, fmt.Errorf("no planner for GOOS %q", goos)
	}
}

// buildCommonPhases assembles all ten phases, shared by every planner;
// the target tree is placed under storeRoot, which each planner
// resolves for its platform. storeRoot is the resolved store root; workDir is a
// scratch directory used to stage the archive download before it's
// moved into the store.
func buildCommonPhases(ctx context.Context, storeRoot, workDir, supervisorRoot string, archive plan.ArchiveSource, settings config.Settings) ([]action.Action, error) {
	var actions []action.Action

	ensure := composite.NewEnsureWorkingDirectory(workDir, nil)
	if err := ensure.TryPlan(ctx); err != nil {
		return nil, err
	}
	actions = append(actions, ensure)

	identities := composite.NewProvisionIdentities(settings)
	if err := identities.TryPlan(ctx); err != nil {
		return nil, err
	}
	actions = append(actions, identities)

	tree := composite.NewCreateNixTree(storeRoot)
	if err := tree.TryPlan(ctx); err != nil {
		return nil, err
	}
	actions = append(actions, tree)

	unpack := composite.NewUnpackArchive(archive, workDir, storeRoot+"/store")
	if err := unpack.TryPlan(ctx); err != nil {
		return nil, err
	}
	actions = append(actions, unpack)

	selinux := composite.NewProvisionSELinux(storeRoot + "/nix-selinux.pp")
	if err := selinux.TryPlan(ctx); err != nil {
		return nil, err
	}
	actions = append(actions, selinux)

	profile := composite.NewSetupDefaultProfile(storeRoot, settings.ModifyProfile)
	if err := profile.TryPlan(ctx); err != nil {
		return nil, err
	}
	actions = append(actions, profile)

	place := composite.NewPlaceConfiguration(settings, "/etc/nix")
	if err := place.TryPlan(ctx); err != nil {
		return nil, err
	}
	actions = append(actions, place)

	profiles := composite.NewConfigureShellProfiles(storeRoot)
	if err := profiles.TryPlan(ctx); err != nil {
		return nil, err
	}
	actions = append(actions, profiles)

	daemonBinary := storeRoot + "/var/nix/profiles/default/bin/nix-daemon"
	initPhase := composite.NewConfigureInitPhase(settings.Init, daemonBinary, supervisorRoot, settings.Init == config.InitSystemSystemd)
	if err := initPhase.TryPlan(ctx); err != nil {
		return nil, err
	}
	actions = append(actions, initPhase)

	start := composite.NewStartDaemonPhase(settings, supervisorRoot)
	if err := start.TryPlan(ctx); err != nil {
		return nil, err
	}
	actions = append(actions, start)

	return actions, nil
}
