package base

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nixinstall/nix-installer/internal/action"
)

const KindCreateUser action.Kind = "create_user"

func init() {
	action.Register(KindCreateUser, func() action.Unmarshaler { return &CreateUser{} })
}

// CreateUser provisions one Nix build user: a system account with no
// login shell, a fixed UID, and primary group membership in the build
// group. One instance is planned per build-user index; ProvisionIdentities
// (internal/action/composite) fans a batch of these out in parallel.
type CreateUser struct {
	action.Base
	Name        string
	UID         uint32
	GroupName   string
	Comment     string
	alreadyHere bool
}

func NewCreateUser(name string, uid uint32, groupName, comment string) *CreateUser {
	c := &CreateUser{Name: name, UID: uid, GroupName: groupName, Comment: comment}
	c.Base = action.NewBase(KindCreateUser)
	return c
}

func (c *CreateUser) TracingSynopsis() string {
	return fmt.Sprintf("create user %s (uid %d)", c.Name, c.UID)
}
func (c *CreateUser) Reversibility() action.Reversibility { return action.ReversibilityLossless }
func (c *CreateUser) ParallelSafe() bool                  { return false }
func (c *CreateUser) Children() []action.Action           { return nil }

func (c *CreateUser) PlannedDescriptions() ([]action.Description, error) {
	if err := c.RequireDescribable(); err != nil {
		return nil, err
	}
	return []action.Description{action.NewDescription(fmt.Sprintf("Create user %s with UID %d", c.Name, c.UID))}, nil
}

func (c *CreateUser) ExecutedDescriptions() ([]action.Description, error) {
	if err := c.RequireExecutedDescribable(); err != nil {
		return nil, err
	}
	return []action.Description{action.NewDescription(fmt.Sprintf("Delete user %s", c.Name))}, nil
}

func (c *CreateUser) TryPlan(ctx context.Context) error {
	u, found, err := Host.LookupUser(c.Name)
	if err != nil {
		return action.NewError(action.TagPlanConflict, c.TracingSynopsis(), err)
	}
	if found {
		if u.Uid != fmt.Sprintf("%d", c.UID) {
			return action.NewError(action.TagPlanConflict, c.TracingSynopsis(),
				fmt.Errorf("user %s already exists with uid %s, expected %d", c.Name, u.Uid, c.UID))
		}
		c.alreadyHere = true
	}
	return c.MarkPlanned()
}

func (c *CreateUser) TryExecute(ctx context.Context) error {
	if err := c.RequirePlanned(); err != nil {
		return err
	}
	if c.alreadyHere {
		return c.MarkCompleted()
	}
	args := []string{
		"-c", c.Comment,
		"-d", "/var/empty",
		"-g", c.GroupName,
		"-M",
		"-N",
		"-r",
		"-s", "/sbin/nologin",
		"-u", fmt.Sprintf("%d", c.UID),
		c.Name,
	}
	if _, err := Host.Run(ctx, "useradd", args...); err != nil {
		return action.NewError(action.TagActionFailed, c.TracingSynopsis(), err)
	}
	return c.MarkCompleted()
}

func (c *CreateUser) TryRevert(ctx context.Context) error {
	if err := c.RequireCompleted(); err != nil {
		return err
	}
	if !c.alreadyHere {
		if _, err := Host.Run(ctx, "userdel", c.Name); err != nil {
			return action.NewError(action.TagRevertFailed, c.TracingSynopsis(), err)
		}
	}
	return c.MarkReverted()
}

// CompareGhost implements action.AdoptableAction: same name and UID is a
// Match, same name and UID with a different Comment is Adoptable
// (spec.md §4.F example), anything else with the same name is a UID
// conflict.
func (c *CreateUser) CompareGhost(ghost action.Action) (action.Verdict, string) {
	g, ok := ghost.(*CreateUser)
	if !ok || g.Name != c.Name {
		return action.VerdictMissing, ""
	}
	if g.UID != c.UID {
		return action.VerdictConflicting, fmt.Sprintf("user %s exists with uid %d, plan expects %d", c.Name, g.UID, c.UID)
	}
	if g.Comment != c.Comment {
		return action.VerdictAdoptable, ""
	}
	return action.VerdictMatches, ""
}

// AdoptGhost absorbs the ghost's comment field, the one CreateUser
// parameter cure treats as adoptable rather than conflicting.
func (c *CreateUser) AdoptGhost(ghost action.Action) {
	if g, ok := ghost.(*CreateUser); ok {
		c.Comment = g.Comment
		c.alreadyHere = true
	}
}

type createUserFields struct {
	Name        string `json:"name"`
	UID         uint32 `json:"uid"`
	GroupName   string `json:"group_name"`
	Comment     string `json:"comment"`
	AlreadyHere bool   `json:"already_here"`
}

func (c *CreateUser) MarshalFields() (json.RawMessage, error) {
	return json.Marshal(createUserFields{c.Name, c.UID, c.GroupName, c.Comment, c.alreadyHere})
}

func (c *CreateUser) UnmarshalFields(data json.RawMessage) error {
	var f createUserFields
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	c.Name, c.UID, c.GroupName, c.Comment, c.alreadyHere = f.Name, f.UID, f.GroupName, f.Comment, f.AlreadyHere
	return nil
}
