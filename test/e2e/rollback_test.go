//go:build e2e
// +build e2e

package e2e

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nixinstall/nix-installer/test/e2e/testutil"
)

// TestS5_DaemonStartFailureRollsBackEarlierPhases forces a real
// daemon-start failure: the fixture archive is an opaque blob rather
// than a genuine Nix closure, so no executable ever lands at the
// daemon binary path ConfigureInitService's unit file points at, and
// "systemctl start nix-daemon" fails for real inside the container.
// Every phase that ran before daemon-start must revert in reverse
// order: the build group and users go away, the systemd unit files
// are removed, and the store tree comes back down to nothing but the
// receipt install always writes for postmortem inspection.
func TestS5_DaemonStartFailureRollsBackEarlierPhases(t *testing.T) {
	c := testutil.StartInstallerContainer(t, testutil.ContainerOpts{Systemd: true})

	res := c.RunInstaller(t, "install", "linux",
		"--no-confirm",
		"--archive-url", c.ArchiveURL,
		"--archive-digest", c.ArchiveDigest,
		"--archive-version", "2.24.0",
	)
	require.NotEqual(t, 0, res.ExitCode, "install must fail: the fixture archive never provides a runnable nix-daemon")

	assert.False(t, c.GroupExists(t, "nixbld"), "build group must be reverted after rollback")
	assert.False(t, c.UserExists(t, "nixbld1"), "build users must be reverted after rollback")
	assert.False(t, c.FileExists(t, "/etc/systemd/system/nix-daemon.service"), "daemon unit must be removed on revert")
	assert.False(t, c.FileExists(t, "/etc/systemd/system/nix-daemon.socket"), "socket unit must be removed on revert")
	assert.False(t, c.FileExists(t, "/nix/store"), "store tree must be torn back down on revert")
	assert.False(t, c.FileExists(t, "/nix/var/nix/profiles"), "profile tree must be torn back down on revert")
}
