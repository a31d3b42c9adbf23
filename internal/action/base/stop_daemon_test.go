package base

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nixinstall/nix-installer/internal/config"
	"github.com/nixinstall/nix-installer/internal/hostio"
)

func TestStopDaemon_Systemd_StopsWhenActive(t *testing.T) {
	fake := withFakeHost(t)
	ctx := context.Background()

	s := NewStopDaemon(config.InitSystemSystemd, "")
	require.NoError(t, s.TryPlan(ctx))
	require.NoError(t, s.TryExecute(ctx))
	assert.Contains(t, fake.RunCalls, "systemctl stop nix-daemon")

	require.NoError(t, s.TryRevert(ctx))
	assert.Contains(t, fake.RunCalls, "systemctl start nix-daemon")
}

func TestStopDaemon_Systemd_AlreadyInactiveSkipsStopAndStart(t *testing.T) {
	fake := withFakeHost(t)
	fake.Responses["systemctl is-active --quiet nix-daemon"] = hostio.FakeResponse{Err: errors.New("inactive")}
	ctx := context.Background()

	s := NewStopDaemon(config.InitSystemSystemd, "")
	require.NoError(t, s.TryPlan(ctx))
	require.NoError(t, s.TryExecute(ctx))
	require.NoError(t, s.TryRevert(ctx))

	for _, call := range fake.RunCalls {
		assert.NotEqual(t, "systemctl stop nix-daemon", call)
		assert.NotEqual(t, "systemctl start nix-daemon", call)
	}
}

func TestStopDaemon_None_IsANoOp(t *testing.T) {
	fake := withFakeHost(t)
	ctx := context.Background()

	s := NewStopDaemon(config.InitSystemNone, "")
	require.NoError(t, s.TryPlan(ctx))
	require.NoError(t, s.TryExecute(ctx))
	require.NoError(t, s.TryRevert(ctx))
	assert.Empty(t, fake.RunCalls)
}
