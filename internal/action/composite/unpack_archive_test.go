package composite

import (
	"context"
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

func TestUnpackArchive_EmbeddedArchivePlanExecute(t *testing.T) {
	fake := withFakeHost(t)
	fake.WithFile("/embed/archive.tar.xz", []byte("fake nix tarball"), 0o644)
	ctx := context.Background()

	archive := plan.ArchiveSource{
		EmbeddedBlobRef: "/embed/archive.tar.xz",
		ExpectedDigest:  "deadbeef",
		Version:         "2.24.0",
	}
	u := NewUnpackArchive(archive, "/nix/tmp", "/nix/store/target")

	require.NoError(t, u.TryPlan(ctx))
	assert.Equal(t, action.StatePlanned, u.State())
	assert.Len(t, u.Kids, 2, "embedded archives skip FetchURL: move + version marker only")

	require.NoError(t, u.TryExecute(ctx))
	assert.Equal(t, action.StateCompleted, u.State())

	exists, err := fake.FileExists("/nix/store/target/archive")
	require.NoError(t, err)
	assert.True(t, exists)

	marker, err := fake.ReadFile("/nix/store/target/.nix-installer-version")
	require.NoError(t, err)
	assert.Equal(t, "2.24.0", string(marker))
}

func TestUnpackArchive_RejectsMalformedVersion(t *testing.T) {
	withFakeHost(t)
	archive := plan.ArchiveSource{EmbeddedBlobRef: "/embed/archive.tar.xz", Version: "not-a-version!!"}
	u := NewUnpackArchive(archive, "/nix/tmp", "/nix/store/target")

	err := u.TryPlan(context.Background())
	require.Error(t, err)
	var ae *action.Error
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, action.TagPlanConflict, ae.Tag)
}

func TestUnpackArchive_CompareGhost(t *testing.T) {
	fresh := NewUnpackArchive(plan.ArchiveSource{Version: "2.24.0"}, "/nix/tmp", "/nix/store/target")

	t.Run("same version matches", func(t *testing.T) {
		ghost := NewUnpackArchive(plan.ArchiveSource{Version: "2.24.0"}, "/nix/tmp", "/nix/store/target")
		verdict, _ := fresh.CompareGhost(ghost)
		assert.Equal(t, action.VerdictMatches, verdict)
	})

	t.Run("newer ghost is adoptable", func(t *testing.T) {
		ghost := NewUnpackArchive(plan.ArchiveSource{Version: "2.25.0"}, "/nix/tmp", "/nix/store/target")
		verdict, _ := fresh.CompareGhost(ghost)
		assert.Equal(t, action.VerdictAdoptable, verdict)
	})

	t.Run("older ghost conflicts", func(t *testing.T) {
		ghost := NewUnpackArchive(plan.ArchiveSource{Version: "2.20.0"}, "/nix/tmp", "/nix/store/target")
		verdict, reason := fresh.CompareGhost(ghost)
		assert.Equal(t, action.VerdictConflicting, verdict)
		assert.NotEmpty(t, reason)
	})
}

func TestUnpackArchive_InspectGhostReadsVersionMarker(t *testing.T) {
	fake := withFakeHost(t)
	fake.WithFile("/nix/store/target/.nix-installer-version", []byte("2.24.0"), 0o644)
	ctx := context.Background()

	u := NewUnpackArchive(plan.ArchiveSource{Version: "2.24.0"}, "/nix/tmp", "/nix/store/target")
	ghost, present, err := u.InspectGhost(ctx)
	require.NoError(t, err)
	require.True(t, present)

	g, ok := ghost.(*UnpackArchive)
	require.True(t, ok)
	assert.Equal(t, "2.24.0", g.Archive.Version)
	assert.Equal(t, action.StateCompleted, g.State())
}

func TestUnpackArchive_InspectGhostAbsentWhenNoMarker(t *testing.T) {
	withFakeHost(t)
	ctx := context.Background()

	u := NewUnpackArchive(plan.ArchiveSource{Version: "2.24.0"}, "/nix/tmp", "/nix/store/target")
	_, present, err := u.InspectGhost(ctx)
	require.NoError(t, err)
	assert.False(t, present)
}
