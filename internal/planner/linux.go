package planner

import (
	"context"

	"github.com/nixinstall/nix-installer/internal/config"
	"github.com/nixinstall/nix-installer/internal/plan"
)

// Linux roots the store at the conventional /nix and drives init
// through systemd, launchd being unavailable, or through supervisord
// when Settings.Init requests it for a container without systemd.
type Linux struct{}

func (l *Linux) Tag() string { return "linux" }

func (l *Linux) Build(ctx context.Context, archive plan.ArchiveSource, settings config.Settings) (*plan.Plan, error) {
	const storeRoot = "/nix"
	const workDir = "/nix/tmp-install"
	const supervisorRoot = "/etc/nix-installer/supervisor"

	actions, err := buildCommonPhases(ctx, storeRoot, workDir, supervisorRoot, archive, settings)
	if err != nil {
		return nil, err
	}

	p := plan.New(l.Tag(), archive, settings)
	for _, a := range actions {
		p.AddAction(a)
	}
	return p, nil
}
