package base

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nixinstall/nix-installer/internal/action"
	"github.com/nixinstall/nix-installer/internal/config"
	"github.com/nixinstall/nix-installer/internal/supervisorinit"
)

const KindConfigureInitService action.Kind = "configure_init_service"

func init() {
	action.Register(KindConfigureInitService, func() action.Unmarshaler { return &ConfigureInitService{} })
}

// ConfigureInitService registers nix-daemon with the target init
// system. Each variant delegates its unit/config file write to a
// RenderTemplate (or, for the supervisor variant, to
// internal/supervisorinit), then invokes the system enable command.
type ConfigureInitService struct {
	action.Base
	InitSystem     config.InitSystem
	DaemonBinary   string
	SupervisorRoot string
	render         *RenderTemplate
}

func NewConfigureInitService(initSystem config.InitSystem, daemonBinary, supervisorRoot string) *ConfigureInitService {
	c := &ConfigureInitService{InitSystem: initSystem, DaemonBinary: daemonBinary, SupervisorRoot: supervisorRoot}
	c.Base = action.NewBase(KindConfigureInitService)
	return c
}

func (c *ConfigureInitService) TracingSynopsis() string {
	return fmt.Sprintf("configure %s to run nix-daemon", c.InitSystem)
}
func (c *ConfigureInitService) Reversibility() action.Reversibility { return action.ReversibilityLossless }
func (c *ConfigureInitService) ParallelSafe() bool                  { return false }
func (c *ConfigureInitService) Children() []action.Action           { return nil }

func (c *ConfigureInitService) PlannedDescriptions() ([]action.Description, error) {
	if err := c.RequireDescribable(); err != nil {
		return nil, err
	}
	return []action.Description{action.NewDescription(fmt.Sprintf("Register nix-daemon with %s", c.InitSystem))}, nil
}

func (c *ConfigureInitService) ExecutedDescriptions() ([]action.Description, error) {
	if err := c.RequireExecutedDescribable(); err != nil {
		return nil, err
	}
	return []action.Description{action.NewDescription(fmt.Sprintf("Unregister nix-daemon from %s", c.InitSystem))}, nil
}

func (c *ConfigureInitService) TryPlan(ctx context.Context) error {
	switch c.InitSystem {
	case config.InitSystemSystemd:
		c.render = NewRenderTemplate("nix-daemon.service.tmpl", "/etc/systemd/system/nix-daemon.service",
			map[string]any{"NixStorePrefix": "/nix"}, 0o644)
		if err := c.render.TryPlan(ctx); err != nil {
			return err
		}
	case config.InitSystemLaunchd, config.InitSystemSupervisor, config.InitSystemNone:
		// launchd and supervisor variants generate their unit/config from
		// concrete paths only known at TryExecute (supervisorinit needs a
		// free HTTP port); none has nothing to configure.
	default:
		return action.NewError(action.TagPlanConflict, c.TracingSynopsis(), fmt.Errorf("unknown init system %q", c.InitSystem))
	}
	return c.MarkPlanned()
}

func (c *ConfigureInitService) TryExecute(ctx context.Context) error {
	if err := c.RequirePlanned(); err != nil {
		return err
	}
	switch c.InitSystem {
	case config.InitSystemSystemd:
		if err := c.render.TryExecute(ctx); err != nil {
			return action.Enrich(err, c.TracingSynopsis())
		}
		if _, err := Host.Run(ctx, "systemctl", "daemon-reload"); err != nil {
			return action.NewError(action.TagActionFailed, c.TracingSynopsis(), err)
		}
		if _, err := Host.Run(ctx, "systemctl", "enable", "nix-daemon"); err != nil {
			return action.NewError(action.TagActionFailed, c.TracingSynopsis(), err)
		}
	case config.InitSystemLaunchd:
		if _, err := Host.Run(ctx, "launchctl", "load", "-w", "/Library/LaunchDaemons/org.nixos.nix-daemon.plist"); err != nil {
			return action.NewError(action.TagActionFailed, c.TracingSynopsis(), err)
		}
	case config.InitSystemSupervisor:
		configPath := c.SupervisorRoot + "/supervisor.ini"
		logDir := c.SupervisorRoot + "/log"
		if err := supervisorinit.GenerateConfig(configPath, c.DaemonBinary, logDir, 9001); err != nil {
			return action.NewError(action.TagActionFailed, c.TracingSynopsis(), err)
		}
		if err := supervisorinit.Validate(configPath); err != nil {
			return action.NewError(action.TagActionFailed, c.TracingSynopsis(), err)
		}
	case config.InitSystemNone:
		// nothing to register; StartDaemonPhase will exec nix-daemon directly.
	}
	return c.MarkCompleted()
}

func (c *ConfigureInitService) TryRevert(ctx context.Context) error {
	if err := c.RequireCompleted(); err != nil {
		return err
	}
	switch c.InitSystem {
	case config.InitSystemSystemd:
		if _, err := Host.Run(ctx, "systemctl", "disable", "nix-daemon"); err != nil {
			return action.NewError(action.TagRevertFailed, c.TracingSynopsis(), err)
		}
		if err := c.render.TryRevert(ctx); err != nil {
			return action.Enrich(err, c.TracingSynopsis())
		}
		if _, err := Host.Run(ctx, "systemctl", "daemon-reload"); err != nil {
			return action.NewError(action.TagRevertFailed, c.TracingSynopsis(), err)
		}
	case config.InitSystemLaunchd:
		if _, err := Host.Run(ctx, "launchctl", "unload", "/Library/LaunchDaemons/org.nixos.nix-daemon.plist"); err != nil {
			return action.NewError(action.TagRevertFailed, c.TracingSynopsis(), err)
		}
	case config.InitSystemSupervisor:
		if err := Host.RemoveAll(c.SupervisorRoot); err != nil {
			return action.NewError(action.TagRevertFailed, c.TracingSynopsis(), err)
		}
	case config.InitSystemNone:
	}
	return c.MarkReverted()
}

type configureInitServiceFields struct {
	InitSystem     config.InitSystem `json:"init_system"`
	DaemonBinary   string            `json:"daemon_binary"`
	SupervisorRoot string            `json:"supervisor_root"`
	Render         json.RawMessage   `json:"render,omitempty"`
}

func (c *ConfigureInitService) MarshalFields() (json.RawMessage, error) {
	var render json.RawMessage
	if c.render != nil {
		env, err := action.Marshal(c.render)
		if err != nil {
			return nil, err
		}
		render = env.Fields
	}
	return json.Marshal(configureInitServiceFields{c.InitSystem, c.DaemonBinary, c.SupervisorRoot, render})
}

func (c *ConfigureInitService) UnmarshalFields(data json.RawMessage) error {
	var f configureInitServiceFields
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	c.InitSystem, c.DaemonBinary, c.SupervisorRoot = f.InitSystem, f.DaemonBinary, f.SupervisorRoot
	if len(f.Render) > 0 {
		c.render = &RenderTemplate{}
		if err := c.render.UnmarshalFields(f.Render); err != nil {
			return err
		}
	}
	return nil
}
