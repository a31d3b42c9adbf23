package base

import (
	"context"
	"encoding/json"

	"github.com/nixinstall/nix-installer/internal/action"
	"github.com/nixinstall/nix-installer/internal/config"
	"github.com/nixinstall/nix-installer/internal/supervisorinit"
)

const KindStopDaemon action.Kind = "stop_daemon"

func init() {
	action.Register(KindStopDaemon, func() action.Unmarshaler { return &StopDaemon{} })
}

// StopDaemon is the uninstall-phase mirror of StartDaemon: execute
// stops the service, revert starts it back up. It is deliberately its
// own kind rather than a generic "reverse of StartDaemon" wrapper,
// since uninstall plans are built independently of any install plan
// (spec.md §4.C: "uninstall is symmetric, not literally the reverse
// execution of a stored install plan").
type StopDaemon struct {
	action.Base
	InitSystem     config.InitSystem
	SupervisorRoot string
	wasRunning     bool
}

func NewStopDaemon(initSystem config.InitSystem, supervisorRoot string) *StopDaemon {
	s := &StopDaemon{InitSystem: initSystem, SupervisorRoot: supervisorRoot}
	s.Base = action.NewBase(KindStopDaemon)
	return s
}

func (s *StopDaemon) TracingSynopsis() string            { return "stop nix-daemon" }
func (s *StopDaemon) Reversibility() action.Reversibility { return action.ReversibilityLossless }
func (s *StopDaemon) ParallelSafe() bool                  { return false }
func (s *StopDaemon) Children() []action.Action           { return nil }

func (s *StopDaemon) PlannedDescriptions() ([]action.Description, error) {
	if err := s.RequireDescribable(); err != nil {
		return nil, err
	}
	return []action.Description{action.NewDescription("Stop the nix-daemon service")}, nil
}

func (s *StopDaemon) ExecutedDescriptions() ([]action.Description, error) {
	if err := s.RequireExecutedDescribable(); err != nil {
		return nil, err
	}
	return []action.Description{action.NewDescription("Start the nix-daemon service")}, nil
}

func (s *StopDaemon) TryPlan(ctx context.Context) error {
	return s.MarkPlanned()
}

func (s *StopDaemon) TryExecute(ctx context.Context) error {
	if err := s.RequirePlanned(); err != nil {
		return err
	}
	switch s.InitSystem {
	case config.InitSystemSystemd:
		if _, err := Host.Run(ctx, "systemctl", "is-active", "--quiet", "nix-daemon"); err != nil {
			return s.MarkCompleted()
		}
		s.wasRunning = true
		if _, err := Host.Run(ctx, "systemctl", "stop", "nix-daemon"); err != nil {
			return action.NewError(action.TagActionFailed, s.TracingSynopsis(), err)
		}
	case config.InitSystemLaunchd:
		s.wasRunning = true
		if _, err := Host.Run(ctx, "launchctl", "kill", "SIGTERM", "system/org.nixos.nix-daemon"); err != nil {
			return action.NewError(action.TagActionFailed, s.TracingSynopsis(), err)
		}
	case config.InitSystemSupervisor:
		mgr := supervisorinit.NewManager(s.SupervisorRoot+"/supervisor.ini", s.SupervisorRoot+"/log", "supervisord", 9001)
		if !mgr.IsRunning() {
			return s.MarkCompleted()
		}
		s.wasRunning = true
		if err := mgr.Stop(ctx); err != nil {
			return action.NewError(action.TagActionFailed, s.TracingSynopsis(), err)
		}
	case config.InitSystemNone:
	}
	return s.MarkCompleted()
}

func (s *StopDaemon) TryRevert(ctx context.Context) error {
	if err := s.RequireCompleted(); err != nil {
		return err
	}
	if !s.wasRunning {
		return s.MarkReverted()
	}
	switch s.InitSystem {
	case config.InitSystemSystemd:
		if _, err := Host.Run(ctx, "systemctl", "start", "nix-daemon"); err != nil {
			return action.NewError(action.TagRevertFailed, s.TracingSynopsis(), err)
		}
	case config.InitSystemLaunchd:
		if _, err := Host.Run(ctx, "launchctl", "kickstart", "system/org.nixos.nix-daemon"); err != nil {
			return action.NewError(action.TagRevertFailed, s.TracingSynopsis(), err)
		}
	case config.InitSystemSupervisor:
		mgr := supervisorinit.NewManager(s.SupervisorRoot+"/supervisor.ini", s.SupervisorRoot+"/log", "supervisord", 9001)
		if err := mgr.Start(ctx); err != nil {
			return action.NewError(action.TagRevertFailed, s.TracingSynopsis(), err)
		}
	case config.InitSystemNone:
	}
	return s.MarkReverted()
}

type stopDaemonFields struct {
	InitSystem     config.InitSystem `json:"init_system"`
	SupervisorRoot string            `json:"supervisor_root"`
	WasRunning     bool              `json:"was_running"`
}

func (s *StopDaemon) MarshalFields() (json.RawMessage, error) {
	return json.Marshal(stopDaemonFields{s.InitSystem, s.SupervisorRoot, s.wasRunning})
}

func (s *StopDaemon) UnmarshalFields(data json.RawMessage) error {
	var f stopDaemonFields
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	s.InitSystem, s.SupervisorRoot, s.wasRunning = f.InitSystem, f.SupervisorRoot, f.WasRunning
	return nil
}
