package base

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderTemplate_NixConfRendersBuildGroupAndExtraConf(t *testing.T) {
	fake := withFakeHost(t)
	ctx := context.Background()

	data := map[string]any{
		"NixBuildGroupName": "nixbld",
		"ExtraConf":         []string{"experimental-features = nix-command flakes"},
	}
	r := NewRenderTemplate("nix.conf.tmpl", "/etc/nix/nix.conf", data, 0o644)
	require.NoError(t, r.TryPlan(ctx))
	require.NoError(t, r.TryExecute(ctx))

	content, err := fake.ReadFile("/etc/nix/nix.conf")
	require.NoError(t, err)
	assert.Contains(t, string(content), "build-users-group = nixbld")
	assert.Contains(t, string(content), "experimental-features = nix-command flakes")
}

func TestRenderTemplate_SystemdUnitRendersStorePrefix(t *testing.T) {
	fake := withFakeHost(t)
	ctx := context.Background()

	data := map[string]any{"NixStorePrefix": "/nix/var/nix/profiles/default"}
	r := NewRenderTemplate("nix-daemon.service.tmpl", "/etc/systemd/system/nix-daemon.service", data, 0o644)
	require.NoError(t, r.TryPlan(ctx))
	require.NoError(t, r.TryExecute(ctx))

	content, err := fake.ReadFile("/etc/systemd/system/nix-daemon.service")
	require.NoError(t, err)
	assert.Contains(t, string(content), "ExecStart=/nix/var/nix/profiles/default/bin/nix-daemon")
}

func TestRenderTemplate_UnknownTemplateFailsPlan(t *testing.T) {
	withFakeHost(t)
	r := NewRenderTemplate("does-not-exist.tmpl", "/etc/nix/nix.conf", nil, 0o644)
	err := r.TryPlan(context.Background())
	assert.Error(t, err)
}

func TestRenderTemplate_RevertRemovesRenderedFile(t *testing.T) {
	fake := withFakeHost(t)
	ctx := context.Background()

	data := map[string]any{"NixBuildGroupName": "nixbld"}
	r := NewRenderTemplate("nix.conf.tmpl", "/etc/nix/nix.conf", data, 0o644)
	require.NoError(t, r.TryPlan(ctx))
	require.NoError(t, r.TryExecute(ctx))
	require.NoError(t, r.TryRevert(ctx))

	exists, err := fake.FileExists("/etc/nix/nix.conf")
	require.NoError(t, err)
	assert.False(t, exists)
}
