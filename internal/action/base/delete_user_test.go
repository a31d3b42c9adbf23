package base

import (
	"context"
	"os/user"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeleteUser_PlanExecuteRevert(t *testing.T) {
	fake := withFakeHost(t)
	fake.WithUser(&user.User{Username: "nixbld1", Uid: "3001", Gid: "3000"})
	ctx := context.Background()

	d := NewDeleteUser("nixbld1")
	require.NoError(t, d.TryPlan(ctx))
	require.NoError(t, d.TryExecute(ctx))
	assert.Contains(t, fake.RunCalls, "userdel nixbld1")

	require.NoError(t, d.TryRevert(ctx))
	found := false
	for _, call := range fake.RunCalls {
		if len(call) >= 7 && call[:7] == "useradd" {
			found = true
		}
	}
	assert.True(t, found, "revert must recreate the user via useradd")
}

func TestDeleteUser_NeverExistedIsNoOp(t *testing.T) {
	fake := withFakeHost(t)
	ctx := context.Background()

	d := NewDeleteUser("nixbld1")
	require.NoError(t, d.TryPlan(ctx))
	require.NoError(t, d.TryExecute(ctx))
	require.NoError(t, d.TryRevert(ctx))

	assert.Empty(t, fake.RunCalls, "a user that never existed triggers no userdel/useradd calls")
}
