package base

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nixinstall/nix-installer/internal/hostio"
)

func TestEnableSocket_PlanExecuteRevert(t *testing.T) {
	fake := withFakeHost(t)
	ctx := context.Background()

	e := NewEnableSocket("nix-daemon.socket")
	require.NoError(t, e.TryPlan(ctx))
	require.NoError(t, e.TryExecute(ctx))
	assert.Contains(t, fake.RunCalls, "systemctl enable --now nix-daemon.socket")

	require.NoError(t, e.TryRevert(ctx))
	assert.Contains(t, fake.RunCalls, "systemctl disable --now nix-daemon.socket")
}

func TestEnableSocket_AlreadyEnabledSkipsExecuteAndRevert(t *testing.T) {
	fake := withFakeHost(t)
	fake.Responses["systemctl is-enabled nix-daemon.socket"] = hostio.FakeResponse{Stdout: "enabled\n"}
	ctx := context.Background()

	e := NewEnableSocket("nix-daemon.socket")
	require.NoError(t, e.TryPlan(ctx))
	require.NoError(t, e.TryExecute(ctx))
	require.NoError(t, e.TryRevert(ctx))

	for _, call := range fake.RunCalls {
		assert.NotEqual(t, "systemctl enable --now nix-daemon.socket", call)
		assert.NotEqual(t, "systemctl disable --now nix-daemon.socket", call)
	}
}
