package receipt

import (
	"context"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nixinstall/nix-installer/internal/action"
	"github.com/nixinstall/nix-installer/internal/action/base"
	"github.com/nixinstall/nix-installer/internal/hostio"
	"github.com/nixinstall/nix-installer/internal/plan"
)

func withFakeHost(t *testing.T) *hostio.Fake {
	t.Helper()
	prev := base.Host
	fake := hostio.NewFake()
	base.Host = fake
	t.Cleanup(func() { base.Host = prev })
	return fake
}

func testPlan(t *testing.T) *plan.Plan {
	withFakeHost(t)
	ctx := context.Background()
	group := base.NewCreateGroup("nixbld", 3000)
	require.NoError(t, group.TryPlan(ctx))
	require.NoError(t, group.TryExecute(ctx))
	return &plan.Plan{SchemaVersion: plan.CurrentSchemaVersion, PlannerTag: "linux", Actions: []action.Action{group}}
}

func TestWriteAndLoad_RoundTrip(t *testing.T) {
	p := testPlan(t)
	path := filepath.Join(t.TempDir(), "receipt.json")

	require.NoError(t, Write(path, p))
	assert.True(t, Exists(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Len(t, loaded.Actions, 1)

	group, ok := loaded.Actions[0].(*base.CreateGroup)
	require.True(t, ok)
	assert.Equal(t, "nixbld", group.Name)
	assert.Equal(t, action.StateCompleted, group.State())
}

func TestWrite_WritesChecksumSidecar(t *testing.T) {
	p := testPlan(t)
	path := filepath.Join(t.TempDir(), "receipt.json")

	require.NoError(t, Write(path, p))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	sum, err := os.ReadFile(path + checksumSuffix)
	require.NoError(t, err)

	_, err = hex.DecodeString(string(sum))
	require.NoError(t, err, "checksum sidecar must be valid hex")
	assert.NotEmpty(t, data)
}

func TestLoad_RejectsTamperedReceipt(t *testing.T) {
	p := testPlan(t)
	path := filepath.Join(t.TempDir(), "receipt.json")
	require.NoError(t, Write(path, p))

	original, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, append(original, []byte("tampered")...), 0o644))

	_, err = Load(path)
	require.Error(t, err)
	var ae *action.Error
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, action.TagReceiptIncompatible, ae.Tag)
}

func TestLoad_TolerantOfMissingChecksumSidecar(t *testing.T) {
	p := testPlan(t)
	path := filepath.Join(t.TempDir(), "receipt.json")
	require.NoError(t, Write(path, p))
	require.NoError(t, os.Remove(path+checksumSuffix))

	_, err := Load(path)
	require.NoError(t, err, "older receipts predate the checksum sidecar and must still load")
}

func TestLoad_RejectsFutureSchemaVersion(t *testing.T) {
	p := testPlan(t)
	p.SchemaVersion = plan.CurrentSchemaVersion + 1
	path := filepath.Join(t.TempDir(), "receipt.json")
	require.NoError(t, Write(path, p))

	_, err := Load(path)
	require.Error(t, err)
	var ae *action.Error
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, action.TagReceiptIncompatible, ae.Tag)
}

func TestLoadForced_ToleratesFutureSchemaVersionAndTamperedChecksum(t *testing.T) {
	p := testPlan(t)
	p.SchemaVersion = plan.CurrentSchemaVersion + 1
	path := filepath.Join(t.TempDir(), "receipt.json")
	require.NoError(t, Write(path, p))

	loaded, err := LoadForced(path)
	require.NoError(t, err, "LoadForced skips the future-schema refusal Load enforces")
	require.Len(t, loaded.Actions, 1)

	original, err := os.ReadFile(path)
	require.NoError(t, err)
	tamperedPath := filepath.Join(t.TempDir(), "tampered.json")
	require.NoError(t, os.WriteFile(tamperedPath, original, 0o644))
	_, err = LoadForced(tamperedPath)
	assert.NoError(t, err, "LoadForced never even reads the checksum sidecar")
}

func TestLoadForced_StillRejectsUnparseableJSON(t *testing.T) {
	badPath := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(badPath, []byte("not json"), 0o644))

	_, err := LoadForced(badPath)
	require.Error(t, err)
	var ae *action.Error
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, action.TagReceiptIncompatible, ae.Tag)
}

func TestDelete_RemovesReceiptAndSidecar(t *testing.T) {
	p := testPlan(t)
	path := filepath.Join(t.TempDir(), "receipt.json")
	require.NoError(t, Write(path, p))

	require.NoError(t, Delete(path))
	assert.False(t, Exists(path))
	_, err := os.Stat(path + checksumSuffix)
	assert.True(t, os.IsNotExist(err))
}

func TestDelete_IdempotentOnMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "does-not-exist.json")
	assert.NoError(t, Delete(path))
}
