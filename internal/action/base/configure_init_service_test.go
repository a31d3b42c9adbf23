package base

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nixinstall/nix-installer/internal/config"
)

func TestConfigureInitService_Systemd_PlanExecuteRevert(t *testing.T) {
	fake := withFakeHost(t)
	ctx := context.Background()

	c := NewConfigureInitService(config.InitSystemSystemd, "/nix/var/nix/profiles/default/bin/nix-daemon", "")
	require.NoError(t, c.TryPlan(ctx))
	require.NoError(t, c.TryExecute(ctx))

	assert.Contains(t, fake.RunCalls, "systemctl daemon-reload")
	assert.Contains(t, fake.RunCalls, "systemctl enable nix-daemon")
	exists, err := fake.FileExists("/etc/systemd/system/nix-daemon.service")
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, c.TryRevert(ctx))
	assert.Contains(t, fake.RunCalls, "systemctl disable nix-daemon")
	exists, err = fake.FileExists("/etc/systemd/system/nix-daemon.service")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestConfigureInitService_Launchd_PlanExecuteRevert(t *testing.T) {
	fake := withFakeHost(t)
	ctx := context.Background()

	c := NewConfigureInitService(config.InitSystemLaunchd, "/nix/var/nix/profiles/default/bin/nix-daemon", "")
	require.NoError(t, c.TryPlan(ctx))
	require.NoError(t, c.TryExecute(ctx))
	assert.Contains(t, fake.RunCalls, "launchctl load -w /Library/LaunchDaemons/org.nixos.nix-daemon.plist")

	require.NoError(t, c.TryRevert(ctx))
	assert.Contains(t, fake.RunCalls, "launchctl unload /Library/LaunchDaemons/org.nixos.nix-daemon.plist")
}

func TestConfigureInitService_Supervisor_PlanExecuteRevert(t *testing.T) {
	withFakeHost(t)
	ctx := context.Background()
	root := t.TempDir()

	c := NewConfigureInitService(config.InitSystemSupervisor, "/nix/var/nix/profiles/default/bin/nix-daemon", filepath.Join(root, "supervisor"))
	require.NoError(t, c.TryPlan(ctx))
	require.NoError(t, c.TryExecute(ctx))
	require.NoError(t, c.TryRevert(ctx))
}

func TestConfigureInitService_None_IsANoOp(t *testing.T) {
	fake := withFakeHost(t)
	ctx := context.Background()

	c := NewConfigureInitService(config.InitSystemNone, "/nix/var/nix/profiles/default/bin/nix-daemon", "")
	require.NoError(t, c.TryPlan(ctx))
	require.NoError(t, c.TryExecute(ctx))
	require.NoError(t, c.TryRevert(ctx))
	assert.Empty(t, fake.RunCalls)
}

func TestConfigureInitService_RejectsUnknownInitSystem(t *testing.T) {
	withFakeHost(t)
	c := NewConfigureInitService(config.InitSystem("bogus"), "/bin/nix-daemon", "")
	err := c.TryPlan(context.Background())
	assert.Error(t, err)
}
