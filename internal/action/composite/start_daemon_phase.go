package composite

import (
	"context"
	"encoding/json"

	"github.com/nixinstall/nix-installer/internal/action"
	"github.com/nixinstall/nix-installer/internal/action/base"
	"github.com/nixinstall/nix-installer/internal/config"
)

const KindStartDaemonPhase action.Kind = "start_daemon_phase"

func init() {
	action.Register(KindStartDaemonPhase, func() action.Unmarshaler { return &StartDaemonPhase{} })
}

// StartDaemonPhase is the final install-time composite: it starts
// nix-daemon if Settings.StartDaemon is set, otherwise plans zero
// children so the receipt still records the phase ran (as a no-op).
type StartDaemonPhase struct {
	action.Composite
	Settings       config.Settings
	SupervisorRoot string
}

func NewStartDaemonPhase(settings config.Settings, supervisorRoot string) *StartDaemonPhase {
	s := &StartDaemonPhase{Settings: settings, SupervisorRoot: supervisorRoot}
	s.Composite = action.NewComposite(KindStartDaemonPhase, "start nix-daemon", false)
	return s
}

func (s *StartDaemonPhase) TryPlan(ctx context.Context) error {
	if !s.Settings.StartDaemon {
		s.SetPlannedDescriptions([]action.Description{
			action.NewDescription("Skip starting nix-daemon (--no-start-daemon)"),
		})
		return s.MarkPlanned()
	}
	start := base.NewStartDaemon(s.Settings.Init, s.SupervisorRoot)
	if err := start.TryPlan(ctx); err != nil {
		return action.Enrich(err, s.TracingSynopsis())
	}
	s.Kids = []action.Action{start}
	s.SetPlannedDescriptions([]action.Description{action.NewDescription("Start nix-daemon")})
	return s.MarkPlanned()
}

func (s *StartDaemonPhase) TryExecute(ctx context.Context) error {
	if err := s.RequirePlanned(); err != nil {
		return err
	}
	if err := s.ExecuteChildrenSequential(ctx); err != nil {
		return err
	}
	return s.MarkCompleted()
}

func (s *StartDaemonPhase) TryRevert(ctx context.Context) error {
	if err := s.RequireCompleted(); err != nil {
		return err
	}
	if err := s.RevertChildrenSequential(ctx); err != nil {
		return err
	}
	return s.MarkReverted()
}

func (s *StartDaemonPhase) RestoreChildren(children []action.Action) { s.Kids = children }

type startDaemonPhaseFields struct {
	Settings       config.Settings `json:"settings"`
	SupervisorRoot string          `json:"supervisor_root"`
}

func (s *StartDaemonPhase) MarshalFields() (json.RawMessage, error) {
	return json.Marshal(startDaemonPhaseFields{s.Settings, s.SupervisorRoot})
}

func (s *StartDaemonPhase) UnmarshalFields(data json.RawMessage) error {
	var f startDaemonPhaseFields
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	s.Settings, s.SupervisorRoot = f.Settings, f.SupervisorRoot
	return nil
}
