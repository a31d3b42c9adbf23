package supervisorinit

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"golang.org/x/sys/unix"
)

// Manager wraps the supervisord binary for the single nix-daemon
// program, adapted from the teacher's pkg/supervisor.Manager (which
// managed a whole MongoDB topology of programs) down to the one
// program this installer ever registers.
type Manager struct {
	configPath string
	logDir     string
	binaryPath string
	httpPort   int
}

// NewManager constructs a Manager for a supervisord config already
// written by GenerateConfig.
func NewManager(configPath, logDir, binaryPath string, httpPort int) *Manager {
	return &Manager{configPath: configPath, logDir: logDir, binaryPath: binaryPath, httpPort: httpPort}
}

func (m *Manager) pidFile() string { return filepath.Join(m.logDir, "supervisord.pid") }

// IsRunning reports whether the supervisord process recorded in the
// pidfile is alive.
func (m *Manager) IsRunning() bool {
	data, err := os.ReadFile(m.pidFile())
	if err != nil {
		return false
	}
	var pid int
	if _, err := fmt.Sscanf(string(data), "%d", &pid); err != nil {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(unix.Signal(0)) == nil
}

// Start launches supervisord as a background daemon supervising
// nix-daemon, waiting briefly to confirm it came up.
func (m *Manager) Start(ctx context.Context) error {
	if m.IsRunning() {
		return nil
	}
	cmd := exec.CommandContext(ctx, m.binaryPath, "-c", m.configPath)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting supervisord: %w", err)
	}
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if m.IsRunning() {
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}
	return fmt.Errorf("supervisord did not report running within 5s (see %s)", filepath.Join(m.logDir, "supervisord.log"))
}

func (m *Manager) ctl(ctx context.Context, args ...string) *exec.Cmd {
	serverURL := fmt.Sprintf("http://localhost:%d", m.httpPort)
	ctlArgs := append([]string{"ctl", "-c", m.configPath, "-s", serverURL}, args...)
	return exec.CommandContext(ctx, m.binaryPath, ctlArgs...)
}

// Stop shuts supervisord (and nix-daemon with it) down gracefully.
func (m *Manager) Stop(ctx context.Context) error {
	if !m.IsRunning() {
		return nil
	}
	if out, err := m.ctl(ctx, "shutdown").CombinedOutput(); err != nil {
		return fmt.Errorf("stopping supervisord: %w (output: %s)", err, out)
	}
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		if !m.IsRunning() {
			return nil
		}
		time.Sleep(200 * time.Millisecond)
	}
	return fmt.Errorf("supervisord did not stop within 10s")
}

// StartProgram starts the nix-daemon program under an already-running
// supervisord.
func (m *Manager) StartProgram(ctx context.Context) error {
	out, err := m.ctl(ctx, "start", ProgramName).CombinedOutput()
	if err != nil {
		return fmt.Errorf("starting %s: %w (output: %s)", ProgramName, err, out)
	}
	return nil
}

// StopProgram stops the nix-daemon program without tearing down
// supervisord itself.
func (m *Manager) StopProgram(ctx context.Context) error {
	out, err := m.ctl(ctx, "stop", ProgramName).CombinedOutput()
	if err != nil {
		return fmt.Errorf("stopping %s: %w (output: %s)", ProgramName, err, out)
	}
	return nil
}
