package base

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nixinstall/nix-installer/internal/action"
)

func TestRemoveDirectory_PlanExecuteRevertRoundTrip(t *testing.T) {
	fake := withFakeHost(t)
	fake.WithDirectory("/nix/tmp-install")
	ctx := context.Background()

	r := NewRemoveDirectory("/nix/tmp-install")
	require.NoError(t, r.TryPlan(ctx))
	require.NoError(t, r.TryExecute(ctx))

	exists, err := fake.IsDirectory("/nix/tmp-install")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, r.TryRevert(ctx))
	exists, err = fake.IsDirectory("/nix/tmp-install")
	require.NoError(t, err)
	assert.True(t, exists, "revert recreates an empty directory in place of the removed tree")
}

func TestRemoveDirectory_NeverExistedIsNoOpOnExecuteAndRevert(t *testing.T) {
	fake := withFakeHost(t)
	ctx := context.Background()

	r := NewRemoveDirectory("/nix/tmp-install")
	require.NoError(t, r.TryPlan(ctx))
	require.NoError(t, r.TryExecute(ctx))
	require.NoError(t, r.TryRevert(ctx))

	exists, err := fake.IsDirectory("/nix/tmp-install")
	require.NoError(t, err)
	assert.False(t, exists, "revert must not fabricate a directory that never existed")
}

func TestRemoveDirectory_RoundTripsThroughRegistry(t *testing.T) {
	withFakeHost(t)
	ctx := context.Background()
	r := NewRemoveDirectory("/nix/tmp-install")
	require.NoError(t, r.TryPlan(ctx))

	env, err := action.Marshal(r)
	require.NoError(t, err)
	restored, err := action.Unmarshal(env)
	require.NoError(t, err)

	rr, ok := restored.(*RemoveDirectory)
	require.True(t, ok)
	assert.Equal(t, r.Path, rr.Path)
}
