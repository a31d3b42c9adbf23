package composite

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nixinstall/nix-installer/internal/action"
	"github.com/nixinstall/nix-installer/internal/action/base"
	"github.com/nixinstall/nix-installer/internal/config"
)

const KindConfigureInitPhase action.Kind = "configure_init_phase"

func init() {
	action.Register(KindConfigureInitPhase, func() action.Unmarshaler { return &ConfigureInitPhase{} })
}

// ConfigureInitPhase wraps ConfigureInitService plus, on systemd
// hosts, an EnableSocket step for lazy activation. It exists as its
// own composite (rather than folding EnableSocket into
// ConfigureInitService directly) so a planner that doesn't want socket
// activation can omit the socket step without touching the service
// action itself.
type ConfigureInitPhase struct {
	action.Composite
	InitSystem     config.InitSystem
	DaemonBinary   string
	SupervisorRoot string
	EnableSocket   bool
}

func NewConfigureInitPhase(initSystem config.InitSystem, daemonBinary, supervisorRoot string, enableSocket bool) *ConfigureInitPhase {
	c := &ConfigureInitPhase{
		InitSystem: initSystem, DaemonBinary: daemonBinary,
		SupervisorRoot: supervisorRoot, EnableSocket: enableSocket,
	}
	c.Composite = action.NewComposite(KindConfigureInitPhase, "configure init system", false)
	return c
}

func (c *ConfigureInitPhase) TryPlan(ctx context.Context) error {
	service := base.NewConfigureInitService(c.InitSystem, c.DaemonBinary, c.SupervisorRoot)
	if err := service.TryPlan(ctx); err != nil {
		return action.Enrich(err, c.TracingSynopsis())
	}
	kids := []action.Action{service}
	if c.EnableSocket && c.InitSystem == config.InitSystemSystemd {
		socket := base.NewEnableSocket("nix-daemon.socket")
		if err := socket.TryPlan(ctx); err != nil {
			return action.Enrich(err, c.TracingSynopsis())
		}
		kids = append(kids, socket)
	}
	c.Kids = kids
	c.SetPlannedDescriptions([]action.Description{
		action.NewDescription(fmt.Sprintf("Configure %s to supervise nix-daemon", c.InitSystem)),
	})
	return c.MarkPlanned()
}

func (c *ConfigureInitPhase) TryExecute(ctx context.Context) error {
	if err := c.RequirePlanned(); err != nil {
		return err
	}
	if err := c.ExecuteChildrenSequential(ctx); err != nil {
		return err
	}
	return c.MarkCompleted()
}

func (c *ConfigureInitPhase) TryRevert(ctx context.Context) error {
	if err := c.RequireCompleted(); err != nil {
		return err
	}
	if err := c.RevertChildrenSequential(ctx); err != nil {
		return err
	}
	return c.MarkReverted()
}

func (c *ConfigureInitPhase) RestoreChildren(children []action.Action) { c.Kids = children }

type configureInitPhaseFields struct {
	InitSystem     config.InitSystem `json:"init_system"`
	DaemonBinary   string            `json:"daemon_binary"`
	SupervisorRoot string            `json:"supervisor_root"`
	EnableSocket   bool              `json:"enable_socket"`
}

func (c *ConfigureInitPhase) MarshalFields() (json.RawMessage, error) {
	return json.Marshal(configureInitPhaseFields{c.InitSystem, c.DaemonBinary, c.SupervisorRoot, c.EnableSocket})
}

func (c *ConfigureInitPhase) UnmarshalFields(data json.RawMessage) error {
	var f configureInitPhaseFields
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	c.InitSystem, c.DaemonBinary, c.SupervisorRoot, c.EnableSocket = f.InitSystem, f.DaemonBinary, f.SupervisorRoot, f.EnableSocket
	return nil
}
