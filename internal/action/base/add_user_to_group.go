package base

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nixinstall/nix-installer/internal/action"
)

const KindAddUserToGroup action.Kind = "add_user_to_group"

func init() {
	action.Register(KindAddUserToGroup, func() action.Unmarshaler { return &AddUserToGroup{} })
}

// AddUserToGroup adds an existing user as a supplementary member of a
// group, used to fold the invoking user into the build group so
// `nix` works without a re-login on some planners.
type AddUserToGroup struct {
	action.Base
	User        string
	Group       string
	alreadyHere bool
}

func NewAddUserToGroup(user, group string) *AddUserToGroup {
	a := &AddUserToGroup{User: user, Group: group}
	a.Base = action.NewBase(KindAddUserToGroup)
	return a
}

func (a *AddUserToGroup) TracingSynopsis() string {
	return fmt.Sprintf("add %s to group %s", a.User, a.Group)
}
func (a *AddUserToGroup) Reversibility() action.Reversibility { return action.ReversibilityLossless }
func (a *AddUserToGroup) ParallelSafe() bool                  { return false }
func (a *AddUserToGroup) Children() []action.Action           { return nil }

func (a *AddUserToGroup) PlannedDescriptions() ([]action.Description, error) {
	if err := a.RequireDescribable(); err != nil {
		return nil, err
	}
	return []action.Description{action.NewDescription(fmt.Sprintf("Add %s to group %s", a.User, a.Group))}, nil
}

func (a *AddUserToGroup) ExecutedDescriptions() ([]action.Description, error) {
	if err := a.RequireExecutedDescribable(); err != nil {
		return nil, err
	}
	return []action.Description{action.NewDescription(fmt.Sprintf("Remove %s from group %s", a.User, a.Group))}, nil
}

func (a *AddUserToGroup) TryPlan(ctx context.Context) error {
	members, err := Host.GroupMembers(a.Group)
	if err != nil {
		return action.NewError(action.TagPlanConflict, a.TracingSynopsis(), err)
	}
	for _, m := range members {
		if m == a.User {
			a.alreadyHere = true
			break
		}
	}
	return a.MarkPlanned()
}

func (a *AddUserToGroup) TryExecute(ctx context.Context) error {
	if err := a.RequirePlanned(); err != nil {
		return err
	}
	if a.alreadyHere {
		return a.MarkCompleted()
	}
	if _, err := Host.Run(ctx, "usermod", "-aG", a.Group, a.User); err != nil {
		return action.NewError(action.TagActionFailed, a.TracingSynopsis(), err)
	}
	return a.MarkCompleted()
}

func (a *AddUserToGroup) TryRevert(ctx context.Context) error {
	if err := a.RequireCompleted(); err != nil {
		return err
	}
	if !a.alreadyHere {
		if _, err := Host.Run(ctx, "gpasswd", "-d", a.User, a.Group); err != nil {
			return action.NewError(action.TagRevertFailed, a.TracingSynopsis(), err)
		}
	}
	return a.MarkReverted()
}

type addUserToGroupFields struct {
	User        string `json:"user"`
	Group       string `json:"group"`
	AlreadyHere bool   `json:"already_here"`
}

func (a *AddUserToGroup) MarshalFields() (json.RawMessage, error) {
	return json.Marshal(addUserToGroupFields{a.User, a.Group, a.alreadyHere})
}

func (a *AddUserToGroup) UnmarshalFields(data json.RawMessage) error {
	var f addUserToGroupFields
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	a.User, a.Group, a.alreadyHere = f.User, f.Group, f.AlreadyHere
	return nil
}
