package base

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRemoveFile_PlanExecuteRevertRestoresContent(t *testing.T) {
	fake := withFakeHost(t)
	fake.WithFile("/etc/nix/nix.conf", []byte("build-users-group = nixbld\n"), 0o644)
	ctx := context.Background()

	r := NewRemoveFile("/etc/nix/nix.conf")
	require.NoError(t, r.TryPlan(ctx))
	require.NoError(t, r.TryExecute(ctx))

	exists, err := fake.FileExists("/etc/nix/nix.conf")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, r.TryRevert(ctx))
	data, err := fake.ReadFile("/etc/nix/nix.conf")
	require.NoError(t, err)
	assert.Equal(t, "build-users-group = nixbld\n", string(data))
}

func TestRemoveFile_NeverExistedIsNoOp(t *testing.T) {
	fake := withFakeHost(t)
	ctx := context.Background()

	r := NewRemoveFile("/etc/nix/nix.conf")
	require.NoError(t, r.TryPlan(ctx))
	require.NoError(t, r.TryExecute(ctx))
	require.NoError(t, r.TryRevert(ctx))

	exists, err := fake.FileExists("/etc/nix/nix.conf")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestRemoveFile_ExecuteRequiresPlanned(t *testing.T) {
	withFakeHost(t)
	r := NewRemoveFile("/etc/nix/nix.conf")
	err := r.TryExecute(context.Background())
	assert.Error(t, err)
}
