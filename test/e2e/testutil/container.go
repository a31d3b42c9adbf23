// Package testutil provides utilities for end-to-end testing of the
// nix-installer binary against real containers.
package testutil

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

var (
	installerBinaryPath string
	installerBuildOnce  sync.Once
	installerBuildErr   error
)

// BuildInstallerBinary builds cmd/nix-installer for GOOS=linux and
// returns the path to the resulting binary, building it only once per
// test run the way BuildBinary does for the mup binary.
func BuildInstallerBinary(t *testing.T) string {
	t.Helper()

	installerBuildOnce.Do(func() {
		_, filename, _, ok := runtime.Caller(0)
		if !ok {
			installerBuildErr = fmt.Errorf("failed to get caller info")
			return
		}
		projectRoot, err := filepath.Abs(filepath.Join(filepath.Dir(filename), "..", "..", ".."))
		if err != nil {
			installerBuildErr = fmt.Errorf("failed to get project root: %w", err)
			return
		}

		binDir := filepath.Join(projectRoot, "test", "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			installerBuildErr = fmt.Errorf("failed to create bin directory: %w", err)
			return
		}
		installerBinaryPath = filepath.Join(binDir, "nix-installer-linux")

		cmd := exec.Command("go", "build", "-o", installerBinaryPath, "./cmd/nix-installer")
		cmd.Dir = projectRoot
		cmd.Env = append(os.Environ(), "GOOS=linux", "GOARCH=amd64", "CGO_ENABLED=0")
		var stdout, stderr bytes.Buffer
		cmd.Stdout, cmd.Stderr = &stdout, &stderr
		if err := cmd.Run(); err != nil {
			installerBuildErr = fmt.Errorf("failed to build nix-installer: %w\nstdout: %s\nstderr: %s",
				err, stdout.String(), stderr.String())
		}
	})

	if installerBuildErr != nil {
		t.Fatalf("failed to build nix-installer binary: %v", installerBuildErr)
	}
	return installerBinaryPath
}

const (
	// InstallerPathInContainer is where the compiled binary lands
	// inside the target container.
	InstallerPathInContainer = "/usr/local/bin/nix-installer"
	// ArchivePathInContainer is the fixture archive FetchURL pulls,
	// served over loopback HTTP so the install runs without reaching
	// out to the real internet.
	ArchivePathInContainer = "/root/fixture-archive.tar.xz"
)

// InstallerContainer wraps a running container plus the fixture
// wiring (binary, archive server) that every install scenario needs.
type InstallerContainer struct {
	Container testcontainers.Container
	ctx       context.Context

	// ArchiveURL is reachable from inside the container and resolves
	// to a small deterministic fixture, standing in for a real Nix
	// release tarball.
	ArchiveURL    string
	ArchiveDigest string
}

// ContainerOpts selects which of S1-S6's two base images to launch.
type ContainerOpts struct {
	// Systemd runs the container under a real systemd PID 1, needed
	// for the systemd init scenarios (S1, S3, S4, S5). Requires the
	// container runtime to allow --privileged and a cgroup mount.
	Systemd bool
}

// StartInstallerContainer launches a debian:bookworm-slim container,
// waits for it to be ready to accept exec calls, copies the compiled
// installer binary in, and starts a loopback fixture archive server.
func StartInstallerContainer(t *testing.T, opts ContainerOpts) *InstallerContainer {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image: "debian:bookworm-slim",
	}
	if opts.Systemd {
		req.Cmd = []string{"/sbin/init"}
		req.Privileged = true
		req.Tmpfs = map[string]string{"/run": "rw", "/run/lock": "rw"}
		req.WaitingFor = wait.ForExec([]string{"systemctl", "is-system-running", "--wait"}).
			WithStartupTimeout(90 * time.Second)
	} else {
		req.Cmd = []string{"sleep", "infinity"}
		req.WaitingFor = wait.ForExec([]string{"true"})
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("failed to start container: %v", err)
	}

	ic := &InstallerContainer{Container: container, ctx: ctx}
	t.Cleanup(func() {
		cctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		_ = container.Terminate(cctx)
	})

	ic.mustExec(t, []string{"apt-get", "update"})
	ic.mustExec(t, []string{"apt-get", "install", "-y", "python3"})
	ic.copyBinary(t)
	ic.serveFixtureArchive(t)
	return ic
}

func (ic *InstallerContainer) copyBinary(t *testing.T) {
	t.Helper()
	binary := BuildInstallerBinary(t)
	data, err := os.ReadFile(binary)
	if err != nil {
		t.Fatalf("failed to read built installer binary: %v", err)
	}
	if err := ic.Container.CopyToContainer(ic.ctx, data, InstallerPathInContainer, 0o755); err != nil {
		t.Fatalf("failed to copy installer binary into container: %v", err)
	}
}

// serveFixtureArchive writes a small deterministic blob into the
// container and serves it over loopback HTTP on port 8899, standing
// in for a real Nix release tarball -- the action DAG under test
// verifies digest and moves the blob, and never inspects its
// contents, so a real xz-compressed store closure buys nothing here.
func (ic *InstallerContainer) serveFixtureArchive(t *testing.T) {
	t.Helper()
	content := []byte("nix-installer e2e fixture archive\n")
	sum := sha256.Sum256(content)
	ic.ArchiveDigest = hex.EncodeToString(sum[:])

	if err := ic.Container.CopyToContainer(ic.ctx, content, ArchivePathInContainer, 0o644); err != nil {
		t.Fatalf("failed to copy fixture archive into container: %v", err)
	}

	go func() {
		_, _, _ = ic.Container.Exec(context.Background(), []string{
			"python3", "-m", "http.server", "8899", "--directory", "/root",
		})
	}()

	deadline := time.Now().Add(15 * time.Second)
	for time.Now().Before(deadline) {
		code, _, err := ic.Container.Exec(ic.ctx, []string{"curl", "-sf", "http://127.0.0.1:8899/fixture-archive.tar.xz", "-o", "/dev/null"})
		if err == nil && code == 0 {
			ic.ArchiveURL = "http://127.0.0.1:8899/fixture-archive.tar.xz"
			return
		}
		time.Sleep(500 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for fixture archive server to come up")
}

func (ic *InstallerContainer) mustExec(t *testing.T, cmd []string) {
	t.Helper()
	code, reader, err := ic.Container.Exec(ic.ctx, cmd)
	if err != nil {
		t.Fatalf("exec %v failed: %v", cmd, err)
	}
	if code != 0 {
		out, _ := io.ReadAll(reader)
		t.Fatalf("exec %v exited %d: %s", cmd, code, out)
	}
}

// ExecResult is the outcome of running one command inside the
// container, mirroring testutil.CommandResult's shape for the local
// binary harness.
type ExecResult struct {
	ExitCode int
	Output   string
}

// Exec runs an arbitrary command inside the container and returns its
// combined output and exit code without failing the test.
func (ic *InstallerContainer) Exec(t *testing.T, cmd []string) ExecResult {
	t.Helper()
	code, reader, err := ic.Container.Exec(ic.ctx, cmd)
	if err != nil {
		t.Fatalf("exec %v failed: %v", cmd, err)
	}
	out, err := io.ReadAll(reader)
	if err != nil {
		t.Fatalf("exec %v: reading output failed: %v", cmd, err)
	}
	return ExecResult{ExitCode: code, Output: string(out)}
}

// RunInstaller runs the installer binary inside the container with
// the given subcommand arguments.
func (ic *InstallerContainer) RunInstaller(t *testing.T, args ...string) ExecResult {
	t.Helper()
	return ic.Exec(t, append([]string{InstallerPathInContainer}, args...))
}

// ReadFile copies a single file out of the container and returns its
// contents.
func (ic *InstallerContainer) ReadFile(t *testing.T, path string) ([]byte, error) {
	t.Helper()
	reader, err := ic.Container.CopyFileFromContainer(ic.ctx, path)
	if err != nil {
		return nil, err
	}
	defer reader.Close()
	return io.ReadAll(reader)
}

// ReadReceiptJSON reads the receipt file out of the container and
// unmarshals it into a generic map, sufficient for the shape
// assertions the S1-S6 scenarios make without pulling in the
// action-kind registry cross-process.
func (ic *InstallerContainer) ReadReceiptJSON(t *testing.T, path string) map[string]interface{} {
	t.Helper()
	data, err := ic.ReadFile(t, path)
	if err != nil {
		t.Fatalf("failed to read receipt %s from container: %v", path, err)
	}
	var out map[string]interface{}
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("failed to unmarshal receipt %s: %v\nraw: %s", path, err, data)
	}
	return out
}

// FileExists reports whether a path exists inside the container.
func (ic *InstallerContainer) FileExists(t *testing.T, path string) bool {
	t.Helper()
	code, _, err := ic.Container.Exec(ic.ctx, []string{"test", "-e", path})
	if err != nil {
		t.Fatalf("exec test -e %s failed: %v", path, err)
	}
	return code == 0
}

// UserExists reports whether a user exists on the container's
// passwd database.
func (ic *InstallerContainer) UserExists(t *testing.T, name string) bool {
	t.Helper()
	code, _, err := ic.Container.Exec(ic.ctx, []string{"id", "-u", name})
	if err != nil {
		t.Fatalf("exec id -u %s failed: %v", name, err)
	}
	return code == 0
}

// GroupExists reports whether a group exists on the container.
func (ic *InstallerContainer) GroupExists(t *testing.T, name string) bool {
	t.Helper()
	code, _, err := ic.Container.Exec(ic.ctx, []string{"getent", "group", name})
	if err != nil {
		t.Fatalf("exec getent group %s failed: %v", name, err)
	}
	return code == 0
}

// DeleteUsersExternally simulates an operator manually removing the
// build users out from under the installer, for S6.
func (ic *InstallerContainer) DeleteUsersExternally(t *testing.T, names ...string) {
	t.Helper()
	for _, n := range names {
		ic.mustExec(t, []string{"userdel", n})
	}
}

// WriteFile writes content to a path inside the container.
func (ic *InstallerContainer) WriteFile(t *testing.T, path, content string) {
	t.Helper()
	if err := ic.Container.CopyToContainer(ic.ctx, []byte(content), path, 0o644); err != nil {
		t.Fatalf("failed to write %s into container: %v", path, err)
	}
}

// RemoveReceipt deletes the receipt file inside the container,
// simulating S3's "receipt moved aside" pre-state.
func (ic *InstallerContainer) RemoveReceipt(t *testing.T, path string) {
	t.Helper()
	ic.mustExec(t, []string{"mv", path, path + ".bak"})
}
