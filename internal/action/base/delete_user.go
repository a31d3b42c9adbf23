package base

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nixinstall/nix-installer/internal/action"
)

const KindDeleteUser action.Kind = "delete_user"

func init() {
	action.Register(KindDeleteUser, func() action.Unmarshaler { return &DeleteUser{} })
}

// DeleteUser removes a build user during uninstall, the mirror of
// CreateUser, grounded on original_source/src/action/base/delete_user.rs.
// Revert recreates the user at the recorded UID/group, best-effort:
// any other account metadata (password hash, shell, comment) present
// at delete time is not restored.
type DeleteUser struct {
	action.Base
	Name      string
	uid       uint32
	groupName string
	existed   bool
}

func NewDeleteUser(name string) *DeleteUser {
	d := &DeleteUser{Name: name}
	d.Base = action.NewBase(KindDeleteUser)
	return d
}

func (d *DeleteUser) TracingSynopsis() string                  { return fmt.Sprintf("delete user %s", d.Name) }
func (d *DeleteUser) Reversibility() action.Reversibility       { return action.ReversibilityBestEffort }
func (d *DeleteUser) ParallelSafe() bool                        { return false }
func (d *DeleteUser) Children() []action.Action                 { return nil }

func (d *DeleteUser) PlannedDescriptions() ([]action.Description, error) {
	if err := d.RequireDescribable(); err != nil {
		return nil, err
	}
	return []action.Description{action.NewDescription(fmt.Sprintf("Delete user %s", d.Name))}, nil
}

func (d *DeleteUser) ExecutedDescriptions() ([]action.Description, error) {
	if err := d.RequireExecutedDescribable(); err != nil {
		return nil, err
	}
	return []action.Description{action.NewDescription(fmt.Sprintf("Recreate user %s", d.Name))}, nil
}

func (d *DeleteUser) TryPlan(ctx context.Context) error {
	u, found, err := Host.LookupUser(d.Name)
	if err != nil {
		return action.NewError(action.TagPlanConflict, d.TracingSynopsis(), err)
	}
	d.existed = found
	if found {
		uid, err := parseUintField(u.Uid)
		if err != nil {
			return action.NewError(action.TagPlanConflict, d.TracingSynopsis(), err)
		}
		d.uid = uid
		g, found, err := Host.LookupGroup(u.Gid)
		if err == nil && found {
			d.groupName = g.Name
		}
	}
	return d.MarkPlanned()
}

func (d *DeleteUser) TryExecute(ctx context.Context) error {
	if err := d.RequirePlanned(); err != nil {
		return err
	}
	if d.existed {
		if _, err := Host.Run(ctx, "userdel", d.Name); err != nil {
			return action.NewError(action.TagActionFailed, d.TracingSynopsis(), err)
		}
	}
	return d.MarkCompleted()
}

func (d *DeleteUser) TryRevert(ctx context.Context) error {
	if err := d.RequireCompleted(); err != nil {
		return err
	}
	if d.existed {
		args := []string{"-M", "-N", "-r", "-s", "/sbin/nologin", "-u", fmt.Sprintf("%d", d.uid)}
		if d.groupName != "" {
			args = append(args, "-g", d.groupName)
		}
		args = append(args, d.Name)
		if _, err := Host.Run(ctx, "useradd", args...); err != nil {
			return action.NewError(action.TagRevertFailed, d.TracingSynopsis(), err)
		}
	}
	return d.MarkReverted()
}

func parseUintField(s string) (uint32, error) {
	var v uint32
	_, err := fmt.Sscanf(s, "%d", &v)
	return v, err
}

type deleteUserFields struct {
	Name      string `json:"name"`
	UID       uint32 `json:"uid"`
	GroupName string `json:"group_name"`
	Existed   bool   `json:"existed"`
}

func (d *DeleteUser) MarshalFields() (json.RawMessage, error) {
	return json.Marshal(deleteUserFields{d.Name, d.uid, d.groupName, d.existed})
}

func (d *DeleteUser) UnmarshalFields(data json.RawMessage) error {
	var f deleteUserFields
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	d.Name, d.uid, d.groupName, d.existed = f.Name, f.UID, f.GroupName, f.Existed
	return nil
}
