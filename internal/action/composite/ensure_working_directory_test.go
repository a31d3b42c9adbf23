package composite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nixinstall/nix-installer/internal/action"
)

func TestEnsureWorkingDirectory_PlanExecuteRevert(t *testing.T) {
	fake := withFakeHost(t)
	ctx := context.Background()

	e := NewEnsureWorkingDirectory("/nix", []string{"var", "var/nix"})
	require.NoError(t, e.TryPlan(ctx))
	require.NoError(t, e.TryExecute(ctx))
	require.Len(t, e.Kids, 3)

	for _, p := range []string{"/nix", "/nix/var", "/nix/var/nix"} {
		isDir, err := fake.IsDirectory(p)
		require.NoError(t, err)
		assert.True(t, isDir, "%s must exist after execute", p)
	}

	require.NoError(t, e.TryRevert(ctx))
	for _, p := range []string{"/nix", "/nix/var", "/nix/var/nix"} {
		isDir, err := fake.IsDirectory(p)
		require.NoError(t, err)
		assert.False(t, isDir, "%s must be gone after revert", p)
	}
}

func TestEnsureWorkingDirectory_InspectGhostReportsPresentWhenDirsExist(t *testing.T) {
	fake := withFakeHost(t)
	fake.WithDirectory("/nix")
	fake.WithDirectory("/nix/var")
	ctx := context.Background()

	e := NewEnsureWorkingDirectory("/nix", []string{"var"})
	require.NoError(t, e.TryPlan(ctx))

	ghost, present, err := e.InspectGhost(ctx)
	require.NoError(t, err)
	assert.True(t, present)
	require.NotNil(t, ghost)
	assert.Equal(t, action.StateCompleted, ghost.State())
}

func TestEnsureWorkingDirectory_InspectGhostReportsAbsentWhenAnyDirMissing(t *testing.T) {
	fake := withFakeHost(t)
	fake.WithDirectory("/nix")
	ctx := context.Background()

	e := NewEnsureWorkingDirectory("/nix", []string{"var"})
	require.NoError(t, e.TryPlan(ctx))

	_, present, err := e.InspectGhost(ctx)
	require.NoError(t, err)
	assert.False(t, present)
}
