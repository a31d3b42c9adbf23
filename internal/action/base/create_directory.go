package base

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/nixinstall/nix-installer/internal/action"
)

const KindCreateDirectory action.Kind = "create_directory"

func init() {
	action.Register(KindCreateDirectory, func() action.Unmarshaler { return &CreateDirectory{} })
}

// CreateDirectory creates a directory (mkdir -p semantics) with a
// fixed mode, optionally chowning it to a build user/group. Grounded
// on the teacher's CreateDirectoryHandlerV2.
type CreateDirectory struct {
	action.Base
	Path        string
	Mode        os.FileMode
	Owner       string
	Group       string
	alreadyHere bool
}

func NewCreateDirectory(path string, mode os.FileMode, owner, group string) *CreateDirectory {
	c := &CreateDirectory{Path: path, Mode: mode, Owner: owner, Group: group}
	c.Base = action.NewBase(KindCreateDirectory)
	return c
}

func (c *CreateDirectory) TracingSynopsis() string { return fmt.Sprintf("create directory %s", c.Path) }
func (c *CreateDirectory) Reversibility() action.Reversibility { return action.ReversibilityLossless }
func (c *CreateDirectory) ParallelSafe() bool                  { return false }
func (c *CreateDirectory) Children() []action.Action           { return nil }

func (c *CreateDirectory) PlannedDescriptions() ([]action.Description, error) {
	if err := c.RequireDescribable(); err != nil {
		return nil, err
	}
	return []action.Description{action.NewDescription(
		fmt.Sprintf("Create directory %s with mode %o", c.Path, c.Mode),
	)}, nil
}

func (c *CreateDirectory) ExecutedDescriptions() ([]action.Description, error) {
	if err := c.RequireExecutedDescribable(); err != nil {
		return nil, err
	}
	return []action.Description{action.NewDescription(
		fmt.Sprintf("Remove directory %s", c.Path),
	)}, nil
}

func (c *CreateDirectory) TryPlan(ctx context.Context) error {
	isDir, err := Host.IsDirectory(c.Path)
	if err != nil {
		return action.NewError(action.TagPlanConflict, c.TracingSynopsis(), err)
	}
	if !isDir {
		present, err := Host.FileExists(c.Path)
		if err != nil {
			return action.NewError(action.TagPlanConflict, c.TracingSynopsis(), err)
		}
		if present {
			return action.NewError(action.TagPlanConflict, c.TracingSynopsis(),
				fmt.Errorf("%s already exists and is not a directory", c.Path))
		}
	}
	c.alreadyHere = isDir
	return c.MarkPlanned()
}

func (c *CreateDirectory) TryExecute(ctx context.Context) error {
	if err := c.RequirePlanned(); err != nil {
		return err
	}
	if !c.alreadyHere {
		if err := Host.Mkdir(c.Path, c.Mode); err != nil {
			return action.NewError(action.TagActionFailed, c.TracingSynopsis(), fmt.Errorf("mkdir %s: %w", c.Path, err))
		}
	}
	if c.Owner != "" {
		if _, err := Host.Run(ctx, "chown", fmt.Sprintf("%s:%s", c.Owner, c.Group), c.Path); err != nil {
			return action.NewError(action.TagActionFailed, c.TracingSynopsis(), err)
		}
	}
	return c.MarkCompleted()
}

func (c *CreateDirectory) TryRevert(ctx context.Context) error {
	if err := c.RequireCompleted(); err != nil {
		return err
	}
	if !c.alreadyHere {
		empty, err := Host.IsEmptyDirectory(c.Path)
		if err == nil && empty {
			if err := Host.Remove(c.Path); err != nil {
				return action.NewError(action.TagRevertFailed, c.TracingSynopsis(), err)
			}
		}
	}
	return c.MarkReverted()
}

type createDirectoryFields struct {
	Path        string `json:"path"`
	Mode        uint32 `json:"mode"`
	Owner       string `json:"owner,omitempty"`
	Group       string `json:"group,omitempty"`
	AlreadyHere bool   `json:"already_here"`
}

func (c *CreateDirectory) MarshalFields() (json.RawMessage, error) {
	return json.Marshal(createDirectoryFields{c.Path, uint32(c.Mode), c.Owner, c.Group, c.alreadyHere})
}

func (c *CreateDirectory) UnmarshalFields(data json.RawMessage) error {
	var f createDirectoryFields
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	c.Path, c.Mode, c.Owner, c.Group, c.alreadyHere = f.Path, os.FileMode(f.Mode), f.Owner, f.Group, f.AlreadyHere
	return nil
}
