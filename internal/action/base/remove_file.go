package base

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/nixinstall/nix-installer/internal/action"
)

const KindRemoveFile action.Kind = "remove_file"

func init() {
	action.Register(KindRemoveFile, func() action.Unmarshaler { return &RemoveFile{} })
}

// RemoveFile deletes a file during an uninstall phase, preserving its
// content in memory so revert can restore it. Uninstall receipts are
// only ever loaded for the lifetime of one uninstall run, so holding
// the byte content on the in-memory action is acceptable; it is never
// persisted back into a receipt (RemoveFile does not implement
// Marshaler content roundtrip for the backup bytes, only for path).
type RemoveFile struct {
	action.Base
	Path    string
	existed bool
	content []byte
	mode    os.FileMode
}

func NewRemoveFile(path string) *RemoveFile {
	r := &RemoveFile{Path: path}
	r.Base = action.NewBase(KindRemoveFile)
	return r
}

func (r *RemoveFile) TracingSynopsis() string                  { return fmt.Sprintf("remove file %s", r.Path) }
func (r *RemoveFile) Reversibility() action.Reversibility       { return action.ReversibilityLossless }
func (r *RemoveFile) ParallelSafe() bool                        { return false }
func (r *RemoveFile) Children() []action.Action                 { return nil }

func (r *RemoveFile) PlannedDescriptions() ([]action.Description, error) {
	if err := r.RequireDescribable(); err != nil {
		return nil, err
	}
	return []action.Description{action.NewDescription(fmt.Sprintf("Remove file %s", r.Path))}, nil
}

func (r *RemoveFile) ExecutedDescriptions() ([]action.Description, error) {
	if err := r.RequireExecutedDescribable(); err != nil {
		return nil, err
	}
	return []action.Description{action.NewDescription(fmt.Sprintf("Restore file %s", r.Path))}, nil
}

func (r *RemoveFile) TryPlan(ctx context.Context) error {
	exists, err := Host.FileExists(r.Path)
	if err != nil {
		return action.NewError(action.TagPlanConflict, r.TracingSynopsis(), err)
	}
	r.existed = exists
	return r.MarkPlanned()
}

func (r *RemoveFile) TryExecute(ctx context.Context) error {
	if err := r.RequirePlanned(); err != nil {
		return err
	}
	if r.existed {
		data, err := Host.ReadFile(r.Path)
		if err != nil {
			return action.NewError(action.TagActionFailed, r.TracingSynopsis(), err)
		}
		info, err := os.Stat(r.Path)
		if err == nil {
			r.mode = info.Mode()
		} else {
			r.mode = 0o644
		}
		r.content = data
		if err := Host.Remove(r.Path); err != nil {
			return action.NewError(action.TagActionFailed, r.TracingSynopsis(), err)
		}
	}
	return r.MarkCompleted()
}

func (r *RemoveFile) TryRevert(ctx context.Context) error {
	if err := r.RequireCompleted(); err != nil {
		return err
	}
	if r.existed {
		if err := Host.WriteFile(r.Path, r.content, r.mode); err != nil {
			return action.NewError(action.TagRevertFailed, r.TracingSynopsis(), err)
		}
	}
	return r.MarkReverted()
}

type removeFileFields struct {
	Path    string `json:"path"`
	Existed bool   `json:"existed"`
}

func (r *RemoveFile) MarshalFields() (json.RawMessage, error) {
	return json.Marshal(removeFileFields{r.Path, r.existed})
}

func (r *RemoveFile) UnmarshalFields(data json.RawMessage) error {
	var f removeFileFields
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	r.Path, r.existed = f.Path, f.Existed
	return nil
}
