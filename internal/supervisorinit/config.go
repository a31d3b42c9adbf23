// Package supervisorinit adapts the teacher's supervisord-based cluster
// process manager (pkg/supervisor) to a single always-on program: the
// nix-daemon, for hosts that run the InitSystemSupervisor variant
// (containers and other environments with neither systemd nor
// launchd). Where the teacher generates one supervisor.ini stanza per
// mongod/mongos/configsvr node, this package generates exactly one
// stanza for nix-daemon and drives it through the same ochinchina
// supervisord config/ctl surface.
package supervisorinit

import (
	"fmt"
	"os"
	"path/filepath"

	sconfig "github.com/ochinchina/supervisord/config"
)

// ProgramName is the fixed supervisord program name nix-installer
// registers the daemon under.
const ProgramName = "nix-daemon"

// GenerateConfig writes a supervisord ini file at configPath with a
// single [program:nix-daemon] section pointed at daemonBinary, and an
// [inet_http_server] section on httpPort so ctl commands can reach it,
// grounded on the teacher's ConfigGenerator.GenerateUnifiedConfig.
func GenerateConfig(configPath, daemonBinary, logDir string, httpPort int) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("creating supervisor config directory: %w", err)
	}
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return fmt.Errorf("creating supervisor log directory: %w", err)
	}
	file, err := os.Create(configPath)
	if err != nil {
		return fmt.Errorf("creating supervisor config %s: %w", configPath, err)
	}
	defer file.Close()

	logFile := filepath.Join(logDir, "nix-daemon.log")

	fmt.Fprintf(file, "[supervisord]\n")
	fmt.Fprintf(file, "logfile = %s\n", filepath.Join(logDir, "supervisord.log"))
	fmt.Fprintf(file, "loglevel = info\n")
	fmt.Fprintf(file, "pidfile = %s\n", filepath.Join(logDir, "supervisord.pid"))
	fmt.Fprintf(file, "nodaemon = false\n\n")

	fmt.Fprintf(file, "[inet_http_server]\n")
	fmt.Fprintf(file, "port = 127.0.0.1:%d\n\n", httpPort)

	fmt.Fprintf(file, "[program:%s]\n", ProgramName)
	fmt.Fprintf(file, "command = %s\n", daemonBinary)
	fmt.Fprintf(file, "autostart = true\n")
	fmt.Fprintf(file, "autorestart = true\n")
	fmt.Fprintf(file, "startsecs = 2\n")
	fmt.Fprintf(file, "startretries = 3\n")
	fmt.Fprintf(file, "stdout_logfile = %s\n", logFile)
	fmt.Fprintf(file, "stderr_logfile = %s\n", logFile)
	return nil
}

// Validate loads configPath through the ochinchina supervisord config
// parser and confirms the nix-daemon program is present, catching a
// malformed ini before ConfigureInitService reports success.
func Validate(configPath string) error {
	cfg := sconfig.NewConfig(configPath)
	if _, err := cfg.Load(); err != nil {
		return fmt.Errorf("loading supervisor config %s: %w", configPath, err)
	}
	for _, name := range cfg.GetProgramNames() {
		if name == "program:"+ProgramName || name == ProgramName {
			return nil
		}
	}
	return fmt.Errorf("supervisor config %s has no %s program", configPath, ProgramName)
}
