package base

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nixinstall/nix-installer/internal/action"
)

const KindCreateGroup action.Kind = "create_group"

func init() {
	action.Register(KindCreateGroup, func() action.Unmarshaler { return &CreateGroup{} })
}

// CreateGroup creates the Nix build group at a pinned GID, refusing to
// proceed if the name already resolves to a different GID (a plan
// conflict, not something safe to paper over), grounded on
// original_source/src/action/base/create_group.rs.
type CreateGroup struct {
	action.Base
	Name        string
	GID         uint32
	alreadyHere bool
}

func NewCreateGroup(name string, gid uint32) *CreateGroup {
	c := &CreateGroup{Name: name, GID: gid}
	c.Base = action.NewBase(KindCreateGroup)
	return c
}

func (c *CreateGroup) TracingSynopsis() string {
	return fmt.Sprintf("create group %s (gid %d)", c.Name, c.GID)
}
func (c *CreateGroup) Reversibility() action.Reversibility { return action.ReversibilityLossless }
func (c *CreateGroup) ParallelSafe() bool                  { return false }
func (c *CreateGroup) Children() []action.Action           { return nil }

func (c *CreateGroup) PlannedDescriptions() ([]action.Description, error) {
	if err := c.RequireDescribable(); err != nil {
		return nil, err
	}
	return []action.Description{action.NewDescription(fmt.Sprintf("Create group %s with GID %d", c.Name, c.GID))}, nil
}

func (c *CreateGroup) ExecutedDescriptions() ([]action.Description, error) {
	if err := c.RequireExecutedDescribable(); err != nil {
		return nil, err
	}
	return []action.Description{action.NewDescription(fmt.Sprintf("Delete group %s", c.Name))}, nil
}

func (c *CreateGroup) TryPlan(ctx context.Context) error {
	group, found, err := Host.LookupGroup(c.Name)
	if err != nil {
		return action.NewError(action.TagPlanConflict, c.TracingSynopsis(), err)
	}
	if found {
		if group.Gid != fmt.Sprintf("%d", c.GID) {
			return action.NewError(action.TagPlanConflict, c.TracingSynopsis(),
				fmt.Errorf("group %s already exists with gid %s, expected %d", c.Name, group.Gid, c.GID))
		}
		c.alreadyHere = true
	}
	return c.MarkPlanned()
}

func (c *CreateGroup) TryExecute(ctx context.Context) error {
	if err := c.RequirePlanned(); err != nil {
		return err
	}
	if c.alreadyHere {
		return c.MarkCompleted()
	}
	if _, err := Host.Run(ctx, "groupadd", "-g", fmt.Sprintf("%d", c.GID), c.Name); err != nil {
		return action.NewError(action.TagActionFailed, c.TracingSynopsis(), err)
	}
	return c.MarkCompleted()
}

func (c *CreateGroup) TryRevert(ctx context.Context) error {
	if err := c.RequireCompleted(); err != nil {
		return err
	}
	if !c.alreadyHere {
		if _, err := Host.Run(ctx, "groupdel", c.Name); err != nil {
			return action.NewError(action.TagRevertFailed, c.TracingSynopsis(), err)
		}
	}
	return c.MarkReverted()
}

// CompareGhost implements action.AdoptableAction. A group has no field
// besides its GID, so there is no adoptable middle ground: same name
// and GID matches, same name and a different GID conflicts.
func (c *CreateGroup) CompareGhost(ghost action.Action) (action.Verdict, string) {
	g, ok := ghost.(*CreateGroup)
	if !ok || g.Name != c.Name {
		return action.VerdictMissing, ""
	}
	if g.GID != c.GID {
		return action.VerdictConflicting, fmt.Sprintf("group %s exists with gid %d, plan expects %d", c.Name, g.GID, c.GID)
	}
	return action.VerdictMatches, ""
}

// AdoptGhost copies the ghost's alreadyHere flag. CompareGhost never
// returns VerdictAdoptable, so the cure engine never calls this.
func (c *CreateGroup) AdoptGhost(ghost action.Action) {
	if g, ok := ghost.(*CreateGroup); ok {
		c.alreadyHere = g.alreadyHere
	}
}

type createGroupFields struct {
	Name        string `json:"name"`
	GID         uint32 `json:"gid"`
	AlreadyHere bool   `json:"already_here"`
}

func (c *CreateGroup) MarshalFields() (json.RawMessage, error) {
	return json.Marshal(createGroupFields{c.Name, c.GID, c.alreadyHere})
}

func (c *CreateGroup) UnmarshalFields(data json.RawMessage) error {
	var f createGroupFields
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	c.Name, c.GID, c.alreadyHere = f.Name, f.GID, f.AlreadyHere
	return nil
}
