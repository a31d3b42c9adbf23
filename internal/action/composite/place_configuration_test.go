package composite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nixinstall/nix-installer/internal/config"
)

func TestPlaceConfiguration_WritesNixConf(t *testing.T) {
	fake := withFakeHost(t)
	ctx := context.Background()

	settings := config.Default()
	settings.ExtraConf = []string{"experimental-features = nix-command flakes"}

	p := NewPlaceConfiguration(settings, "/etc/nix")
	require.NoError(t, p.TryPlan(ctx))
	require.NoError(t, p.TryExecute(ctx))
	require.Len(t, p.Kids, 1)

	content, err := fake.ReadFile("/etc/nix/nix.conf")
	require.NoError(t, err)
	assert.Contains(t, string(content), "build-users-group = nixbld")
	assert.Contains(t, string(content), "experimental-features = nix-command flakes")

	require.NoError(t, p.TryRevert(ctx))
	exists, err := fake.FileExists("/etc/nix/nix.conf")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestPlaceConfiguration_SkipNixConfPlansNoChildren(t *testing.T) {
	fake := withFakeHost(t)
	ctx := context.Background()

	settings := config.Default()
	settings.SkipNixConf = true

	p := NewPlaceConfiguration(settings, "/etc/nix")
	require.NoError(t, p.TryPlan(ctx))
	assert.Empty(t, p.Kids)
	require.NoError(t, p.TryExecute(ctx))
	require.NoError(t, p.TryRevert(ctx))

	exists, err := fake.FileExists("/etc/nix/nix.conf")
	require.NoError(t, err)
	assert.False(t, exists)
}
