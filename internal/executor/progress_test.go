package executor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nixinstall/nix-installer/internal/action"
	"github.com/nixinstall/nix-installer/internal/action/base"
	"github.com/nixinstall/nix-installer/internal/plan"
)

func TestEvents_CalledBeforeExecuteStillReceivesEvents(t *testing.T) {
	withFakeHost(t)
	ctx := context.Background()

	group := base.NewCreateGroup("nixbld", 3000)
	require.NoError(t, group.TryPlan(ctx))

	p := &plan.Plan{Actions: []action.Action{group}}
	exec := New(testLogger())

	events := exec.Events()
	received := make(chan []Event, 1)
	go func() {
		var got []Event
		for ev := range events {
			got = append(got, ev)
		}
		received <- got
	}()

	_, err := exec.Execute(context.Background(), context.Background(), p)
	require.NoError(t, err)

	got := <-received
	require.NotEmpty(t, got, "a goroutine started before Execute must still see progress events")
	assert.Equal(t, EventExecuting, got[0].Kind)
}
