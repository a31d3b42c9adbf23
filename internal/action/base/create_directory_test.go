package base

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nixinstall/nix-installer/internal/action"
	"github.com/nixinstall/nix-installer/internal/hostio"
)

func withFakeHost(t *testing.T) *hostio.Fake {
	t.Helper()
	prev := Host
	fake := hostio.NewFake()
	Host = fake
	t.Cleanup(func() { Host = prev })
	return fake
}

func TestCreateDirectory_PlanExecuteRevert(t *testing.T) {
	withFakeHost(t)
	ctx := context.Background()

	c := NewCreateDirectory("/nix/store", 0o755, "", "")
	require.NoError(t, c.TryPlan(ctx))
	assert.Equal(t, action.StatePlanned, c.State())

	require.NoError(t, c.TryExecute(ctx))
	assert.Equal(t, action.StateCompleted, c.State())

	isDir, err := Host.IsDirectory("/nix/store")
	require.NoError(t, err)
	assert.True(t, isDir)

	require.NoError(t, c.TryRevert(ctx))
	assert.Equal(t, action.StateUninitialized, c.State())

	isDir, err = Host.IsDirectory("/nix/store")
	require.NoError(t, err)
	assert.False(t, isDir, "revert should remove a directory this action created")
}

func TestCreateDirectory_PreExistingIsNotRemovedOnRevert(t *testing.T) {
	fake := withFakeHost(t)
	fake.WithDirectory("/nix")
	ctx := context.Background()

	c := NewCreateDirectory("/nix", 0o755, "", "")
	require.NoError(t, c.TryPlan(ctx))
	require.NoError(t, c.TryExecute(ctx))
	require.NoError(t, c.TryRevert(ctx))

	isDir, err := Host.IsDirectory("/nix")
	require.NoError(t, err)
	assert.True(t, isDir, "an already-present directory must survive revert")
}

func TestCreateDirectory_PlanRejectsPathOccupiedByAFile(t *testing.T) {
	fake := withFakeHost(t)
	fake.WithFile("/nix", []byte("not a directory"), 0o644)
	ctx := context.Background()

	c := NewCreateDirectory("/nix", 0o755, "", "")
	err := c.TryPlan(ctx)
	require.Error(t, err)
	var ae *action.Error
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, action.TagPlanConflict, ae.Tag)
}

func TestCreateDirectory_ExecuteRequiresPlanned(t *testing.T) {
	withFakeHost(t)
	c := NewCreateDirectory("/nix/store", 0o755, "", "")
	err := c.TryExecute(context.Background())
	assert.Error(t, err)
}

func TestCreateDirectory_RoundTripsThroughRegistry(t *testing.T) {
	withFakeHost(t)
	ctx := context.Background()

	c := NewCreateDirectory("/nix/store", 0o755, "root", "wheel")
	require.NoError(t, c.TryPlan(ctx))

	env, err := action.Marshal(c)
	require.NoError(t, err)

	rehydrated, err := action.Unmarshal(env)
	require.NoError(t, err)

	got, ok := rehydrated.(*CreateDirectory)
	require.True(t, ok)
	assert.Equal(t, c.Path, got.Path)
	assert.Equal(t, c.Mode, got.Mode)
	assert.Equal(t, c.Owner, got.Owner)
	assert.Equal(t, c.Group, got.Group)
	assert.Equal(t, os.FileMode(0o755), got.Mode)
}
