package base

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/nixinstall/nix-installer/internal/action"
)

const KindCreateOrMergeFile action.Kind = "create_or_merge_file"

func init() {
	action.Register(KindCreateOrMergeFile, func() action.Unmarshaler { return &CreateOrMergeFile{} })
}

const (
	sentinelBegin = "# Nix (installed by nix-installer)"
	sentinelEnd   = "# End Nix"
)

// CreateOrMergeFile appends a sentinel-delimited block to an existing
// file (e.g. a shell profile) rather than overwriting it, and can
// remove exactly that block on revert without disturbing the rest of
// the file. If the file does not exist, it is created containing only
// the block. Grounded on original_source's shell-profile patching,
// which uses the same begin/end marker convention.
type CreateOrMergeFile struct {
	action.Base
	Path      string
	Block     string
	Mode      os.FileMode
	createdNew bool
}

func NewCreateOrMergeFile(path, block string, mode os.FileMode) *CreateOrMergeFile {
	c := &CreateOrMergeFile{Path: path, Block: block, Mode: mode}
	c.Base = action.NewBase(KindCreateOrMergeFile)
	return c
}

func (c *CreateOrMergeFile) TracingSynopsis() string {
	return fmt.Sprintf("create or merge %s", c.Path)
}
func (c *CreateOrMergeFile) Reversibility() action.Reversibility { return action.ReversibilityLossless }
func (c *CreateOrMergeFile) ParallelSafe() bool                  { return false }
func (c *CreateOrMergeFile) Children() []action.Action           { return nil }

func (c *CreateOrMergeFile) PlannedDescriptions() ([]action.Description, error) {
	if err := c.RequireDescribable(); err != nil {
		return nil, err
	}
	return []action.Description{action.NewDescription(fmt.Sprintf("Add Nix block to %s", c.Path))}, nil
}

func (c *CreateOrMergeFile) ExecutedDescriptions() ([]action.Description, error) {
	if err := c.RequireExecutedDescribable(); err != nil {
		return nil, err
	}
	return []action.Description{action.NewDescription(fmt.Sprintf("Remove Nix block from %s", c.Path))}, nil
}

func withBlock(existing, block string) string {
	var b strings.Builder
	if len(existing) > 0 && !strings.HasSuffix(existing, "\n") {
		b.WriteString(existing)
		b.WriteString("\n")
	} else {
		b.WriteString(existing)
	}
	fmt.Fprintf(&b, "%s\n%s\n%s\n", sentinelBegin, block, sentinelEnd)
	return b.String()
}

func withoutBlock(content string) string {
	begin := strings.Index(content, sentinelBegin)
	if begin < 0 {
		return content
	}
	end := strings.Index(content, sentinelEnd)
	if end < 0 {
		return content
	}
	end += len(sentinelEnd)
	if end < len(content) && content[end] == '\n' {
		end++
	}
	return content[:begin] + content[end:]
}

func (c *CreateOrMergeFile) TryPlan(ctx context.Context) error {
	exists, err := Host.FileExists(c.Path)
	if err != nil {
		return action.NewError(action.TagPlanConflict, c.TracingSynopsis(), err)
	}
	c.createdNew = !exists
	return c.MarkPlanned()
}

func (c *CreateOrMergeFile) TryExecute(ctx context.Context) error {
	if err := c.RequirePlanned(); err != nil {
		return err
	}
	existing := ""
	if !c.createdNew {
		data, err := Host.ReadFile(c.Path)
		if err != nil {
			return action.NewError(action.TagActionFailed, c.TracingSynopsis(), err)
		}
		if strings.Contains(string(data), sentinelBegin) {
			return c.MarkCompleted()
		}
		existing = string(data)
	}
	if err := Host.WriteFile(c.Path, []byte(withBlock(existing, c.Block)), c.Mode); err != nil {
		return action.NewError(action.TagActionFailed, c.TracingSynopsis(), err)
	}
	return c.MarkCompleted()
}

func (c *CreateOrMergeFile) TryRevert(ctx context.Context) error {
	if err := c.RequireCompleted(); err != nil {
		return err
	}
	data, err := Host.ReadFile(c.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return c.MarkReverted()
		}
		return action.NewError(action.TagRevertFailed, c.TracingSynopsis(), err)
	}
	if c.createdNew {
		if err := Host.Remove(c.Path); err != nil {
			return action.NewError(action.TagRevertFailed, c.TracingSynopsis(), err)
		}
		return c.MarkReverted()
	}
	stripped := withoutBlock(string(data))
	if err := Host.WriteFile(c.Path, []byte(stripped), c.Mode); err != nil {
		return action.NewError(action.TagRevertFailed, c.TracingSynopsis(), err)
	}
	return c.MarkReverted()
}

type createOrMergeFileFields struct {
	Path       string `json:"path"`
	Block      string `json:"block"`
	Mode       uint32 `json:"mode"`
	CreatedNew bool   `json:"created_new"`
}

func (c *CreateOrMergeFile) MarshalFields() (json.RawMessage, error) {
	return json.Marshal(createOrMergeFileFields{c.Path, c.Block, uint32(c.Mode), c.createdNew})
}

func (c *CreateOrMergeFile) UnmarshalFields(data json.RawMessage) error {
	var f createOrMergeFileFields
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	c.Path, c.Block, c.Mode, c.createdNew = f.Path, f.Block, os.FileMode(f.Mode), f.CreatedNew
	return nil
}
