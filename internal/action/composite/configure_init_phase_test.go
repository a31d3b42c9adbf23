package composite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nixinstall/nix-installer/internal/config"
)

func TestConfigureInitPhase_SystemdWithSocketPlansServiceAndSocket(t *testing.T) {
	fake := withFakeHost(t)
	ctx := context.Background()

	c := NewConfigureInitPhase(config.InitSystemSystemd, "/nix/var/nix/profiles/default/bin/nix-daemon", "", true)
	require.NoError(t, c.TryPlan(ctx))
	require.Len(t, c.Kids, 2)
	require.NoError(t, c.TryExecute(ctx))
	assert.Contains(t, fake.RunCalls, "systemctl enable --now nix-daemon.socket")

	require.NoError(t, c.TryRevert(ctx))
}

func TestConfigureInitPhase_SystemdWithoutSocketPlansServiceOnly(t *testing.T) {
	withFakeHost(t)
	ctx := context.Background()

	c := NewConfigureInitPhase(config.InitSystemSystemd, "/nix/var/nix/profiles/default/bin/nix-daemon", "", false)
	require.NoError(t, c.TryPlan(ctx))
	require.Len(t, c.Kids, 1)
	require.NoError(t, c.TryExecute(ctx))
	require.NoError(t, c.TryRevert(ctx))
}

func TestConfigureInitPhase_EnableSocketIgnoredOffSystemd(t *testing.T) {
	withFakeHost(t)
	ctx := context.Background()

	c := NewConfigureInitPhase(config.InitSystemLaunchd, "/nix/var/nix/profiles/default/bin/nix-daemon", "", true)
	require.NoError(t, c.TryPlan(ctx))
	require.Len(t, c.Kids, 1, "socket activation only applies to systemd")
	require.NoError(t, c.TryExecute(ctx))
	require.NoError(t, c.TryRevert(ctx))
}
