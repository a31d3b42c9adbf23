package base

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nixinstall/nix-installer/internal/action"
)

const KindEnableSocket action.Kind = "enable_socket"

func init() {
	action.Register(KindEnableSocket, func() action.Unmarshaler { return &EnableSocket{} })
}

// EnableSocket enables a systemd socket unit for lazy activation of
// nix-daemon (nix-daemon.socket), a systemd-specific refinement some
// planners layer on top of ConfigureInitService. It is its own kind
// rather than folded into ConfigureInitService since it is optional
// and independently revertible.
type EnableSocket struct {
	action.Base
	UnitName    string
	wasEnabled  bool
}

func NewEnableSocket(unitName string) *EnableSocket {
	e := &EnableSocket{UnitName: unitName}
	e.Base = action.NewBase(KindEnableSocket)
	return e
}

func (e *EnableSocket) TracingSynopsis() string            { return fmt.Sprintf("enable socket %s", e.UnitName) }
func (e *EnableSocket) Reversibility() action.Reversibility { return action.ReversibilityLossless }
func (e *EnableSocket) ParallelSafe() bool                  { return false }
func (e *EnableSocket) Children() []action.Action           { return nil }

func (e *EnableSocket) PlannedDescriptions() ([]action.Description, error) {
	if err := e.RequireDescribable(); err != nil {
		return nil, err
	}
	return []action.Description{action.NewDescription(fmt.Sprintf("Enable socket unit %s", e.UnitName))}, nil
}

func (e *EnableSocket) ExecutedDescriptions() ([]action.Description, error) {
	if err := e.RequireExecutedDescribable(); err != nil {
		return nil, err
	}
	return []action.Description{action.NewDescription(fmt.Sprintf("Disable socket unit %s", e.UnitName))}, nil
}

func (e *EnableSocket) TryPlan(ctx context.Context) error {
	if out, err := Host.Run(ctx, "systemctl", "is-enabled", e.UnitName); err == nil && out != "" {
		e.wasEnabled = true
	}
	return e.MarkPlanned()
}

func (e *EnableSocket) TryExecute(ctx context.Context) error {
	if err := e.RequirePlanned(); err != nil {
		return err
	}
	if e.wasEnabled {
		return e.MarkCompleted()
	}
	if _, err := Host.Run(ctx, "systemctl", "enable", "--now", e.UnitName); err != nil {
		return action.NewError(action.TagActionFailed, e.TracingSynopsis(), err)
	}
	return e.MarkCompleted()
}

func (e *EnableSocket) TryRevert(ctx context.Context) error {
	if err := e.RequireCompleted(); err != nil {
		return err
	}
	if !e.wasEnabled {
		if _, err := Host.Run(ctx, "systemctl", "disable", "--now", e.UnitName); err != nil {
			return action.NewError(action.TagRevertFailed, e.TracingSynopsis(), err)
		}
	}
	return e.MarkReverted()
}

type enableSocketFields struct {
	UnitName   string `json:"unit_name"`
	WasEnabled bool   `json:"was_enabled"`
}

func (e *EnableSocket) MarshalFields() (json.RawMessage, error) {
	return json.Marshal(enableSocketFields{e.UnitName, e.wasEnabled})
}

func (e *EnableSocket) UnmarshalFields(data json.RawMessage) error {
	var f enableSocketFields
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	e.UnitName, e.wasEnabled = f.UnitName, f.WasEnabled
	return nil
}
