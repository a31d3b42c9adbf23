package base

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nixinstall/nix-installer/internal/action"
)

const KindRemoveDirectory action.Kind = "remove_directory"

func init() {
	action.Register(KindRemoveDirectory, func() action.Unmarshaler { return &RemoveDirectory{} })
}

// RemoveDirectory recursively removes a directory tree during uninstall
// phases. It is best-effort reversible only: revert recreates the empty
// directory but cannot restore its prior contents, so uninstall
// composites that need real reversibility back this action with a
// preceding archive step instead of relying on RemoveDirectory alone.
type RemoveDirectory struct {
	action.Base
	Path    string
	existed bool
}

func NewRemoveDirectory(path string) *RemoveDirectory {
	r := &RemoveDirectory{Path: path}
	r.Base = action.NewBase(KindRemoveDirectory)
	return r
}

func (r *RemoveDirectory) TracingSynopsis() string { return fmt.Sprintf("remove directory %s", r.Path) }
func (r *RemoveDirectory) Reversibility() action.Reversibility { return action.ReversibilityBestEffort }
func (r *RemoveDirectory) ParallelSafe() bool                  { return false }
func (r *RemoveDirectory) Children() []action.Action           { return nil }

func (r *RemoveDirectory) PlannedDescriptions() ([]action.Description, error) {
	if err := r.RequireDescribable(); err != nil {
		return nil, err
	}
	return []action.Description{action.NewDescription(fmt.Sprintf("Remove directory tree %s", r.Path))}, nil
}

func (r *RemoveDirectory) ExecutedDescriptions() ([]action.Description, error) {
	if err := r.RequireExecutedDescribable(); err != nil {
		return nil, err
	}
	return []action.Description{action.NewDescription(fmt.Sprintf("Recreate empty directory %s", r.Path))}, nil
}

func (r *RemoveDirectory) TryPlan(ctx context.Context) error {
	exists, err := Host.IsDirectory(r.Path)
	if err != nil {
		return action.NewError(action.TagPlanConflict, r.TracingSynopsis(), err)
	}
	r.existed = exists
	return r.MarkPlanned()
}

func (r *RemoveDirectory) TryExecute(ctx context.Context) error {
	if err := r.RequirePlanned(); err != nil {
		return err
	}
	if r.existed {
		if err := Host.RemoveAll(r.Path); err != nil {
			return action.NewError(action.TagActionFailed, r.TracingSynopsis(), err)
		}
	}
	return r.MarkCompleted()
}

func (r *RemoveDirectory) TryRevert(ctx context.Context) error {
	if err := r.RequireCompleted(); err != nil {
		return err
	}
	if r.existed {
		if err := Host.Mkdir(r.Path, 0o755); err != nil {
			return action.NewError(action.TagRevertFailed, r.TracingSynopsis(), err)
		}
	}
	return r.MarkReverted()
}

type removeDirectoryFields struct {
	Path    string `json:"path"`
	Existed bool   `json:"existed"`
}

func (r *RemoveDirectory) MarshalFields() (json.RawMessage, error) {
	return json.Marshal(removeDirectoryFields{r.Path, r.existed})
}

func (r *RemoveDirectory) UnmarshalFields(data json.RawMessage) error {
	var f removeDirectoryFields
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	r.Path, r.existed = f.Path, f.Existed
	return nil
}
