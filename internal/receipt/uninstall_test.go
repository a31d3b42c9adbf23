package receipt

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nixinstall/nix-installer/internal/action"
	"github.com/nixinstall/nix-installer/internal/action/base"
	"github.com/nixinstall/nix-installer/internal/hostio"
	"github.com/nixinstall/nix-installer/internal/plan"
)

func TestUninstall_RevertsInReverseOrderAndDeletesReceipt(t *testing.T) {
	withFakeHost(t)
	ctx := context.Background()

	group := base.NewCreateGroup("nixbld", 3000)
	require.NoError(t, group.TryPlan(ctx))
	require.NoError(t, group.TryExecute(ctx))

	dir := base.NewCreateDirectory("/nix/store", 0o755, "", "")
	require.NoError(t, dir.TryPlan(ctx))
	require.NoError(t, dir.TryExecute(ctx))

	p := &plan.Plan{SchemaVersion: plan.CurrentSchemaVersion, Actions: []action.Action{group, dir}}
	path := filepath.Join(t.TempDir(), "receipt.json")
	require.NoError(t, Write(path, p))

	require.NoError(t, Uninstall(ctx, path, p, nil))
	assert.Equal(t, action.StateUninitialized, dir.State())
	assert.Equal(t, action.StateUninitialized, group.State())
	assert.False(t, Exists(path))
}

func TestUninstall_SkipCallbackLeavesReceiptInPlace(t *testing.T) {
	withFakeHost(t)
	ctx := context.Background()

	group := base.NewCreateGroup("nixbld", 3000)
	require.NoError(t, group.TryPlan(ctx))
	require.NoError(t, group.TryExecute(ctx))

	p := &plan.Plan{SchemaVersion: plan.CurrentSchemaVersion, Actions: []action.Action{group}}
	path := filepath.Join(t.TempDir(), "receipt.json")
	require.NoError(t, Write(path, p))

	skip := func(a action.Action) bool { return a.Kind() == base.KindCreateGroup }
	require.NoError(t, Uninstall(ctx, path, p, skip))

	assert.Equal(t, action.StateCompleted, group.State(), "a skipped action must not be reverted")
	assert.True(t, Exists(path), "the receipt survives while a skipped action remains outstanding")
}

func TestUninstall_ContinuesPastRevertFailures(t *testing.T) {
	fake := withFakeHost(t)
	ctx := context.Background()

	group := base.NewCreateGroup("nixbld", 3000)
	require.NoError(t, group.TryPlan(ctx))
	require.NoError(t, group.TryExecute(ctx))

	dir := base.NewCreateDirectory("/nix/store", 0o755, "", "")
	require.NoError(t, dir.TryPlan(ctx))
	require.NoError(t, dir.TryExecute(ctx))

	fake.Responses["groupdel nixbld"] = hostio.FakeResponse{Err: fmt.Errorf("device busy")}

	p := &plan.Plan{SchemaVersion: plan.CurrentSchemaVersion, Actions: []action.Action{group, dir}}
	path := filepath.Join(t.TempDir(), "receipt.json")
	require.NoError(t, Write(path, p))

	err := Uninstall(ctx, path, p, nil)
	require.Error(t, err)
	var ae *action.Error
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, action.TagRevertFailed, ae.Tag)
	assert.Equal(t, action.StateUninitialized, dir.State(), "dir must still revert even though group's revert failed")
	assert.False(t, Exists(path), "an attempted-but-failed revert is reported, not treated as a reason to keep the receipt")
}
