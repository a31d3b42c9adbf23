package planner

import (
	"context"

	"github.com/nixinstall/nix-installer/internal/config"
	"github.com/nixinstall/nix-installer/internal/plan"
)

// Darwin roots the store at /nix the same as Linux; spec.md §4.B notes
// macOS may instead root the target tree on a dedicated APFS volume,
// but that volume-provisioning decision belongs to a real macOS
// planner's disk-management collaborator, out of scope here (spec.md
// §1's "system tools invoked by individual actions" carve-out) --
// this planner assumes the volume, if any, is already mounted at
// /nix by the time Build runs.
type Darwin struct{}

func (d *Darwin) Tag() string { return "darwin" }

func (d *Darwin) Build(ctx context.Context, archive plan.ArchiveSource, settings config.Settings) (*plan.Plan, error) {
	const storeRoot = "/nix"
	const workDir = "/nix/tmp-install"
	const supervisorRoot = "/Library/nix-installer/supervisor"

	actions, err := buildCommonPhases(ctx, storeRoot, workDir, supervisorRoot, archive, settings)
	if err != nil {
		return nil, err
	}

	p := plan.New(d.Tag(), archive, settings)
	for _, a := range actions {
		p.AddAction(a)
	}
	return p, nil
}
