//go:build e2e
// +build e2e

package e2e

import (
	"strings"
	"testing"

	"github.com/nixinstall/nix-installer/test/e2e/testutil"
)

// TestHelpCommand verifies the binary's help output for the root
// command and each subcommand, run against the locally-built binary
// rather than a container since --help never touches the host.
func TestHelpCommand(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		contains []string
	}{
		{
			name: "root help",
			args: []string{"--help"},
			contains: []string{
				"nix-installer",
				"Usage:",
				"Available Commands:",
				"install",
				"uninstall",
				"repair",
				"plan",
			},
		},
		{
			name: "short help flag",
			args: []string{"-h"},
			contains: []string{
				"nix-installer",
				"Usage:",
			},
		},
		{
			name: "install help",
			args: []string{"install", "--help"},
			contains: []string{
				"install",
				"--no-confirm",
				"--start-daemon",
				"--nix-build-user-count",
			},
		},
		{
			name: "uninstall help",
			args: []string{"uninstall", "--help"},
			contains: []string{
				"uninstall",
				"--no-confirm",
				"--force",
			},
		},
		{
			name: "repair help",
			args: []string{"repair", "--help"},
			contains: []string{
				"repair",
				"--no-confirm",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := testutil.RunCommand(t, tt.args...)
			testutil.AssertSuccess(t, result)

			for _, expected := range tt.contains {
				if !strings.Contains(result.Stdout, expected) {
					t.Errorf("Help output missing %q\nOutput:\n%s", expected, result.Stdout)
				}
			}

			if len(result.Stdout) < 50 {
				t.Errorf("Help output suspiciously short (%d chars): %s",
					len(result.Stdout), result.Stdout)
			}
		})
	}
}

// TestInvalidCommand verifies cobra's usual error handling for an
// unknown top-level command.
func TestInvalidCommand(t *testing.T) {
	result := testutil.RunCommand(t, "invalid-command")
	testutil.AssertFailure(t, result)

	combined := result.Stdout + result.Stderr
	if !strings.Contains(combined, "unknown command") {
		t.Errorf("Expected unknown command error, got stdout=%q stderr=%q", result.Stdout, result.Stderr)
	}
}
