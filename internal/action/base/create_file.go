package base

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/nixinstall/nix-installer/internal/action"
	"github.com/nixinstall/nix-installer/internal/hostio"
)

const KindCreateFile action.Kind = "create_file"

func init() {
	action.Register(KindCreateFile, func() action.Unmarshaler { return &CreateFile{} })
}

// CreateFile writes literal content to a path, backing up any
// pre-existing file to a fingerprinted sibling instead of overwriting
// it silently (spec.md §4.A back-up discipline).
type CreateFile struct {
	action.Base
	Path            string
	Content         string
	Mode            os.FileMode
	Force           bool
	backupPath      string
	fingerprintUsed hostio.Fingerprint
}

func NewCreateFile(path, content string, mode os.FileMode, force bool) *CreateFile {
	c := &CreateFile{Path: path, Content: content, Mode: mode, Force: force}
	c.Base = action.NewBase(KindCreateFile)
	return c
}

func (c *CreateFile) TracingSynopsis() string { return fmt.Sprintf("create file %s", c.Path) }
func (c *CreateFile) Reversibility() action.Reversibility {
	return action.ReversibilityLossless
}
func (c *CreateFile) ParallelSafe() bool        { return false }
func (c *CreateFile) Children() []action.Action { return nil }

func (c *CreateFile) PlannedDescriptions() ([]action.Description, error) {
	if err := c.RequireDescribable(); err != nil {
		return nil, err
	}
	return []action.Description{action.NewDescription(fmt.Sprintf("Create file %s", c.Path))}, nil
}

func (c *CreateFile) ExecutedDescriptions() ([]action.Description, error) {
	if err := c.RequireExecutedDescribable(); err != nil {
		return nil, err
	}
	if c.backupPath != "" {
		return []action.Description{action.NewDescription(
			fmt.Sprintf("Remove %s and restore backup from %s", c.Path, c.backupPath))}, nil
	}
	return []action.Description{action.NewDescription(fmt.Sprintf("Remove file %s", c.Path))}, nil
}

func (c *CreateFile) TryPlan(ctx context.Context) error {
	if _, err := Host.FileExists(c.Path); err != nil {
		return action.NewError(action.TagPlanConflict, c.TracingSynopsis(), err)
	}
	return c.MarkPlanned()
}

func (c *CreateFile) TryExecute(ctx context.Context) error {
	if err := c.RequirePlanned(); err != nil {
		return err
	}
	exists, err := Host.FileExists(c.Path)
	if err != nil {
		return action.NewError(action.TagActionFailed, c.TracingSynopsis(), err)
	}
	if exists {
		existing, err := Host.ReadFile(c.Path)
		if err == nil && string(existing) == c.Content {
			return c.MarkCompleted()
		}
		fp := Fingerprinter()
		c.backupPath = c.Path + string(fp.BackupSuffix())
		c.fingerprintUsed = fp
		if err := Host.Rename(c.Path, c.backupPath); err != nil {
			return action.NewError(action.TagActionFailed, c.TracingSynopsis(), fmt.Errorf("backing up existing %s: %w", c.Path, err))
		}
	}
	if err := Host.WriteFile(c.Path, []byte(c.Content), c.Mode); err != nil {
		return action.NewError(action.TagActionFailed, c.TracingSynopsis(), err)
	}
	return c.MarkCompleted()
}

func (c *CreateFile) TryRevert(ctx context.Context) error {
	if err := c.RequireCompleted(); err != nil {
		return err
	}
	if err := Host.Remove(c.Path); err != nil && !os.IsNotExist(err) {
		return action.NewError(action.TagRevertFailed, c.TracingSynopsis(), err)
	}
	if c.backupPath != "" {
		if err := Host.Rename(c.backupPath, c.Path); err != nil {
			return action.NewError(action.TagRevertFailed, c.TracingSynopsis(), fmt.Errorf("restoring backup %s: %w", c.backupPath, err))
		}
	}
	return c.MarkReverted()
}

type createFileFields struct {
	Path       string `json:"path"`
	Content    string `json:"content"`
	Mode       uint32 `json:"mode"`
	Force      bool   `json:"force"`
	BackupPath string `json:"backup_path,omitempty"`
}

func (c *CreateFile) MarshalFields() (json.RawMessage, error) {
	return json.Marshal(createFileFields{c.Path, c.Content, uint32(c.Mode), c.Force, c.backupPath})
}

func (c *CreateFile) UnmarshalFields(data json.RawMessage) error {
	var f createFileFields
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	c.Path, c.Content, c.Mode, c.Force, c.backupPath = f.Path, f.Content, os.FileMode(f.Mode), f.Force, f.BackupPath
	return nil
}
