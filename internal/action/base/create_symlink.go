package base

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nixinstall/nix-installer/internal/action"
)

const KindCreateSymlink action.Kind = "create_symlink"

func init() {
	action.Register(KindCreateSymlink, func() action.Unmarshaler { return &CreateSymlink{} })
}

// CreateSymlink creates (or repoints) a symlink, backing up any
// pre-existing non-symlink or wrong-target entry to a fingerprinted
// sibling before replacing it.
type CreateSymlink struct {
	action.Base
	Link       string
	Target     string
	backupPath string
}

func NewCreateSymlink(link, target string) *CreateSymlink {
	c := &CreateSymlink{Link: link, Target: target}
	c.Base = action.NewBase(KindCreateSymlink)
	return c
}

func (c *CreateSymlink) TracingSynopsis() string {
	return fmt.Sprintf("symlink %s -> %s", c.Link, c.Target)
}
func (c *CreateSymlink) Reversibility() action.Reversibility { return action.ReversibilityLossless }
func (c *CreateSymlink) ParallelSafe() bool                  { return false }
func (c *CreateSymlink) Children() []action.Action           { return nil }

func (c *CreateSymlink) PlannedDescriptions() ([]action.Description, error) {
	if err := c.RequireDescribable(); err != nil {
		return nil, err
	}
	return []action.Description{action.NewDescription(fmt.Sprintf("Link %s to %s", c.Link, c.Target))}, nil
}

func (c *CreateSymlink) ExecutedDescriptions() ([]action.Description, error) {
	if err := c.RequireExecutedDescribable(); err != nil {
		return nil, err
	}
	return []action.Description{action.NewDescription(fmt.Sprintf("Remove symlink %s", c.Link))}, nil
}

func (c *CreateSymlink) TryPlan(ctx context.Context) error {
	return c.MarkPlanned()
}

func (c *CreateSymlink) TryExecute(ctx context.Context) error {
	if err := c.RequirePlanned(); err != nil {
		return err
	}
	if existing, err := Host.ReadSymlink(c.Link); err == nil {
		if existing == c.Target {
			return c.MarkCompleted()
		}
		fp := Fingerprinter()
		c.backupPath = c.Link + string(fp.BackupSuffix())
		if err := Host.Rename(c.Link, c.backupPath); err != nil {
			return action.NewError(action.TagActionFailed, c.TracingSynopsis(), err)
		}
	} else if exists, _ := Host.FileExists(c.Link); exists {
		fp := Fingerprinter()
		c.backupPath = c.Link + string(fp.BackupSuffix())
		if err := Host.Rename(c.Link, c.backupPath); err != nil {
			return action.NewError(action.TagActionFailed, c.TracingSynopsis(), err)
		}
	}
	if err := Host.Symlink(c.Target, c.Link); err != nil {
		return action.NewError(action.TagActionFailed, c.TracingSynopsis(), err)
	}
	return c.MarkCompleted()
}

func (c *CreateSymlink) TryRevert(ctx context.Context) error {
	if err := c.RequireCompleted(); err != nil {
		return err
	}
	if err := Host.Remove(c.Link); err != nil {
		return action.NewError(action.TagRevertFailed, c.TracingSynopsis(), err)
	}
	if c.backupPath != "" {
		if err := Host.Rename(c.backupPath, c.Link); err != nil {
			return action.NewError(action.TagRevertFailed, c.TracingSynopsis(), err)
		}
	}
	return c.MarkReverted()
}

type createSymlinkFields struct {
	Link       string `json:"link"`
	Target     string `json:"target"`
	BackupPath string `json:"backup_path,omitempty"`
}

func (c *CreateSymlink) MarshalFields() (json.RawMessage, error) {
	return json.Marshal(createSymlinkFields{c.Link, c.Target, c.backupPath})
}

func (c *CreateSymlink) UnmarshalFields(data json.RawMessage) error {
	var f createSymlinkFields
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	c.Link, c.Target, c.backupPath = f.Link, f.Target, f.BackupPath
	return nil
}
