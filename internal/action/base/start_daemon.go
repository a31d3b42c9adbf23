package base

import (
	"context"
	"encoding/json"

	"github.com/nixinstall/nix-installer/internal/action"
	"github.com/nixinstall/nix-installer/internal/config"
	"github.com/nixinstall/nix-installer/internal/supervisorinit"
)

const KindStartDaemon action.Kind = "start_daemon"

func init() {
	action.Register(KindStartDaemon, func() action.Unmarshaler { return &StartDaemon{} })
}

// StartDaemon brings nix-daemon up through whichever init system was
// configured, treating "already running" as AlreadyDone rather than a
// failure so a re-plan/re-execute after a partial prior run is
// idempotent (spec.md §4.A idempotent execute).
type StartDaemon struct {
	action.Base
	InitSystem     config.InitSystem
	SupervisorRoot string
	wasRunning     bool
}

func NewStartDaemon(initSystem config.InitSystem, supervisorRoot string) *StartDaemon {
	s := &StartDaemon{InitSystem: initSystem, SupervisorRoot: supervisorRoot}
	s.Base = action.NewBase(KindStartDaemon)
	return s
}

func (s *StartDaemon) TracingSynopsis() string                  { return "start nix-daemon" }
func (s *StartDaemon) Reversibility() action.Reversibility       { return action.ReversibilityLossless }
func (s *StartDaemon) ParallelSafe() bool                        { return false }
func (s *StartDaemon) Children() []action.Action                 { return nil }

func (s *StartDaemon) PlannedDescriptions() ([]action.Description, error) {
	if err := s.RequireDescribable(); err != nil {
		return nil, err
	}
	return []action.Description{action.NewDescription("Start the nix-daemon service")}, nil
}

func (s *StartDaemon) ExecutedDescriptions() ([]action.Description, error) {
	if err := s.RequireExecutedDescribable(); err != nil {
		return nil, err
	}
	return []action.Description{action.NewDescription("Stop the nix-daemon service")}, nil
}

func (s *StartDaemon) TryPlan(ctx context.Context) error {
	return s.MarkPlanned()
}

func (s *StartDaemon) TryExecute(ctx context.Context) error {
	if err := s.RequirePlanned(); err != nil {
		return err
	}
	switch s.InitSystem {
	case config.InitSystemSystemd:
		if _, err := Host.Run(ctx, "systemctl", "is-active", "--quiet", "nix-daemon"); err == nil {
			s.wasRunning = true
			return s.MarkCompleted()
		}
		if _, err := Host.Run(ctx, "systemctl", "start", "nix-daemon"); err != nil {
			return action.NewError(action.TagActionFailed, s.TracingSynopsis(), err)
		}
	case config.InitSystemLaunchd:
		if _, err := Host.Run(ctx, "launchctl", "kickstart", "system/org.nixos.nix-daemon"); err != nil {
			return action.NewError(action.TagActionFailed, s.TracingSynopsis(), err)
		}
	case config.InitSystemSupervisor:
		mgr := supervisorinit.NewManager(s.SupervisorRoot+"/supervisor.ini", s.SupervisorRoot+"/log", "supervisord", 9001)
		if mgr.IsRunning() {
			s.wasRunning = true
			return s.MarkCompleted()
		}
		if err := mgr.Start(ctx); err != nil {
			return action.NewError(action.TagActionFailed, s.TracingSynopsis(), err)
		}
	case config.InitSystemNone:
		// no supervising init system: nix-daemon is expected to be started
		// out-of-band by whatever manages this host's long-running processes.
	}
	return s.MarkCompleted()
}

func (s *StartDaemon) TryRevert(ctx context.Context) error {
	if err := s.RequireCompleted(); err != nil {
		return err
	}
	if s.wasRunning {
		return s.MarkReverted()
	}
	switch s.InitSystem {
	case config.InitSystemSystemd:
		if _, err := Host.Run(ctx, "systemctl", "stop", "nix-daemon"); err != nil {
			return action.NewError(action.TagRevertFailed, s.TracingSynopsis(), err)
		}
	case config.InitSystemLaunchd:
		if _, err := Host.Run(ctx, "launchctl", "kill", "SIGTERM", "system/org.nixos.nix-daemon"); err != nil {
			return action.NewError(action.TagRevertFailed, s.TracingSynopsis(), err)
		}
	case config.InitSystemSupervisor:
		mgr := supervisorinit.NewManager(s.SupervisorRoot+"/supervisor.ini", s.SupervisorRoot+"/log", "supervisord", 9001)
		if err := mgr.Stop(ctx); err != nil {
			return action.NewError(action.TagRevertFailed, s.TracingSynopsis(), err)
		}
	case config.InitSystemNone:
	}
	return s.MarkReverted()
}

type startDaemonFields struct {
	InitSystem     config.InitSystem `json:"init_system"`
	SupervisorRoot string            `json:"supervisor_root"`
	WasRunning     bool              `json:"was_running"`
}

func (s *StartDaemon) MarshalFields() (json.RawMessage, error) {
	return json.Marshal(startDaemonFields{s.InitSystem, s.SupervisorRoot, s.wasRunning})
}

func (s *StartDaemon) UnmarshalFields(data json.RawMessage) error {
	var f startDaemonFields
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	s.InitSystem, s.SupervisorRoot, s.wasRunning = f.InitSystem, f.SupervisorRoot, f.WasRunning
	return nil
}
