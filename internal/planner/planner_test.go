package planner

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nixinstall/nix-installer/internal/action/base"
	"github.com/nixinstall/nix-installer/internal/config"
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

func testArchive() plan.ArchiveSource {
	return plan.ArchiveSource{EmbeddedBlobRef: "/embed/archive.tar.xz", ExpectedDigest: "deadbeef", Version: "2.24.0"}
}

func TestFor_ReturnsPlannerPerGOOS(t *testing.T) {
	linux, err := For("linux")
	require.NoError(t, err)
	assert.Equal(t, "linux", linux.Tag())

	darwin, err := For("darwin")
	require.NoError(t, err)
	assert.Equal(t, "darwin", darwin.Tag())

	_, err = For("plan9")
	assert.Error(t, err)
}

func TestLinux_BuildProducesAllTenPhases(t *testing.T) {
	fake := withFakeHost(t)
	fake.WithFile("/embed/archive.tar.xz", []byte("fake archive contents"), 0o644)

	settings := config.Default()
	settings.Init = config.InitSystemSystemd

	p, err := (&Linux{}).Build(context.Background(), testArchive(), settings)
	require.NoError(t, err)

	assert.Equal(t, "linux", p.PlannerTag)
	require.Len(t, p.Actions, 10)
	assert.Equal(t, plan.CurrentSchemaVersion, p.SchemaVersion)
	assert.NotEmpty(t, p.ID)
}

func TestDarwin_BuildProducesAllTenPhases(t *testing.T) {
	fake := withFakeHost(t)
	fake.WithFile("/embed/archive.tar.xz", []byte("fake archive contents"), 0o644)

	settings := config.Default()
	settings.Init = config.InitSystemLaunchd

	p, err := (&Darwin{}).Build(context.Background(), testArchive(), settings)
	require.NoError(t, err)

	assert.Equal(t, "darwin", p.PlannerTag)
	require.Len(t, p.Actions, 10)
}

func TestLinux_TwoBuildsProduceDistinctPlanIDs(t *testing.T) {
	fake := withFakeHost(t)
	fake.WithFile("/embed/archive.tar.xz", []byte("fake archive contents"), 0o644)

	settings := config.Default()
	p1, err := (&Linux{}).Build(context.Background(), testArchive(), settings)
	require.NoError(t, err)
	p2, err := (&Linux{}).Build(context.Background(), testArchive(), settings)
	require.NoError(t, err)

	assert.NotEqual(t, p1.ID, p2.ID, "each Build call is a distinct plan, even for an identical action sequence")
}
